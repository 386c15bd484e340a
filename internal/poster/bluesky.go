// Package poster publishes report posts to a social service.
package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"gridpulse/internal/adapter/fetch"
	"gridpulse/internal/config"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "poster"

const postCollection = "app.bsky.feed.post"

// Poster publishes a post, optionally with a PNG chart attached.
type Poster interface {
	Post(ctx context.Context, text string, image []byte, imageAlt string) error
}

// BlueskyPoster posts via the Bluesky XRPC API. Sessions are created lazily
// and re-created when a request is rejected as unauthorized.
type BlueskyPoster struct {
	serviceURL string
	handle     string
	password   string
	httpCfg    fetch.ClientConfig
	circuit    *gobreaker.CircuitBreaker

	accessJwt string
	did       string
}

// NewBlueskyPoster creates a poster for the configured service.
func NewBlueskyPoster(cfg config.PostingConfig) *BlueskyPoster {
	serviceURL := strings.TrimSuffix(cfg.ServiceURL, "/")
	if serviceURL == "" {
		serviceURL = "https://bsky.social"
	}
	return &BlueskyPoster{
		serviceURL: serviceURL,
		handle:     cfg.Handle,
		password:   cfg.Password,
		httpCfg:    fetch.DefaultClientConfig(30 * time.Second),
		circuit:    fetch.NewBreaker("bluesky"),
	}
}

type sessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

type blobRef struct {
	Type     string          `json:"$type"`
	Ref      json.RawMessage `json:"ref"`
	MimeType string          `json:"mimeType"`
	Size     int             `json:"size"`
}

type uploadBlobResponse struct {
	Blob blobRef `json:"blob"`
}

type imageEmbed struct {
	Type   string       `json:"$type"`
	Images []embedImage `json:"images"`
}

type embedImage struct {
	Alt   string  `json:"alt"`
	Image blobRef `json:"image"`
}

type postRecord struct {
	Type      string      `json:"$type"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"createdAt"`
	Langs     []string    `json:"langs,omitempty"`
	Embed     *imageEmbed `json:"embed,omitempty"`
}

type createRecordRequest struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     postRecord `json:"record"`
}

// Post publishes text with an optional chart. A failed image upload degrades
// to a text-only post rather than failing the sub-task.
func (p *BlueskyPoster) Post(ctx context.Context, text string, image []byte, imageAlt string) error {
	if err := p.ensureSession(ctx); err != nil {
		return err
	}

	var embed *imageEmbed
	if len(image) > 0 {
		blob, err := p.uploadBlob(ctx, image)
		if err != nil {
			logger.Warnf("Image upload failed, falling back to a text-only post: %v", err)
		} else {
			embed = &imageEmbed{
				Type:   "app.bsky.embed.images",
				Images: []embedImage{{Alt: imageAlt, Image: *blob}},
			}
		}
	}

	record := createRecordRequest{
		Repo:       p.did,
		Collection: postCollection,
		Record: postRecord{
			Type:      postCollection,
			Text:      text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Langs:     []string{"en"},
			Embed:     embed,
		},
	}

	var out json.RawMessage
	if err := p.xrpcPost(ctx, "com.atproto.repo.createRecord", "application/json", mustJSON(record), &out); err != nil {
		// The session token may have expired between cycles; log in again
		// and retry once before giving up.
		p.accessJwt = ""
		if err2 := p.ensureSession(ctx); err2 != nil {
			return errs.InternalError(moduleName, "failed to create post", err)
		}
		record.Repo = p.did
		if err2 := p.xrpcPost(ctx, "com.atproto.repo.createRecord", "application/json", mustJSON(record), &out); err2 != nil {
			return errs.InternalError(moduleName, "failed to create post", err2)
		}
	}
	logger.Infof("Posted update to %s (%d chars, image=%t).", p.serviceURL, len(text), embed != nil)
	return nil
}

// ensureSession logs in once and reuses the session for the process lifetime.
func (p *BlueskyPoster) ensureSession(ctx context.Context) error {
	if p.accessJwt != "" {
		return nil
	}
	body := mustJSON(map[string]string{
		"identifier": p.handle,
		"password":   p.password,
	})
	var session sessionResponse
	if err := p.xrpcPost(ctx, "com.atproto.server.createSession", "application/json", body, &session); err != nil {
		return errs.InternalError(moduleName, "failed to create session", err)
	}
	p.accessJwt = session.AccessJwt
	p.did = session.DID
	logger.Infof("Logged into %s as %s.", p.serviceURL, session.Handle)
	return nil
}

func (p *BlueskyPoster) uploadBlob(ctx context.Context, image []byte) (*blobRef, error) {
	var out uploadBlobResponse
	if err := p.xrpcPost(ctx, "com.atproto.repo.uploadBlob", "image/png", image, &out); err != nil {
		return nil, err
	}
	return &out.Blob, nil
}

func (p *BlueskyPoster) xrpcPost(ctx context.Context, method, contentType string, body []byte, out interface{}) error {
	url := fmt.Sprintf("%s/xrpc/%s", p.serviceURL, method)

	resp, err := fetch.Do(ctx, p.httpCfg, p.circuit, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		if p.accessJwt != "" {
			req.Header.Set("Authorization", "Bearer "+p.accessJwt)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", method, err)
		}
	}
	return nil
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err) // request types marshal unconditionally
	}
	return data
}
