package poster_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpulse/internal/config"
	"gridpulse/internal/poster"
)

// xrpcServer fakes the three XRPC endpoints the poster uses and records
// the create-record payloads it receives.
type xrpcServer struct {
	*httptest.Server

	sessions   int
	uploads    int
	records    []map[string]json.RawMessage
	failUpload bool
	// rejectFirstRecord simulates an expired session token on the first
	// create-record call.
	rejectFirstRecord bool
	recordCalls       int
}

func newXRPCServer(t *testing.T) *xrpcServer {
	t.Helper()
	s := &xrpcServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			s.sessions++
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "bot.example.com", creds["identifier"])
			_, _ = w.Write([]byte(`{"accessJwt": "jwt-token", "did": "did:plc:abc123", "handle": "bot.example.com"}`))
		case "/xrpc/com.atproto.repo.uploadBlob":
			s.uploads++
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))
			if s.failUpload {
				http.Error(w, `{"error": "BlobTooLarge"}`, http.StatusBadRequest)
				return
			}
			body, _ := io.ReadAll(r.Body)
			assert.NotEmpty(t, body)
			_, _ = w.Write([]byte(`{"blob": {"$type": "blob", "ref": {"$link": "bafyabc"}, "mimeType": "image/png", "size": 512}}`))
		case "/xrpc/com.atproto.repo.createRecord":
			s.recordCalls++
			if s.rejectFirstRecord && s.recordCalls == 1 {
				http.Error(w, `{"error": "ExpiredToken"}`, http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))
			var req map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			s.records = append(s.records, req)
			_, _ = w.Write([]byte(`{"uri": "at://did:plc:abc123/app.bsky.feed.post/3k44", "cid": "bafyxyz"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestPoster(serviceURL string) *poster.BlueskyPoster {
	return poster.NewBlueskyPoster(config.PostingConfig{
		ServiceURL: serviceURL,
		Handle:     "bot.example.com",
		Password:   "app-password",
	})
}

func TestPost_WithImage(t *testing.T) {
	srv := newXRPCServer(t)
	p := newTestPoster(srv.URL)

	err := p.Post(context.Background(), "⚡️ ComEd Grid Report", []byte("png-bytes"), "ComEd load chart")
	require.NoError(t, err)

	assert.Equal(t, 1, srv.sessions)
	assert.Equal(t, 1, srv.uploads)
	require.Len(t, srv.records, 1)

	var record struct {
		Type      string `json:"$type"`
		Text      string `json:"text"`
		CreatedAt string `json:"createdAt"`
		Langs     []string
		Embed     *struct {
			Type   string `json:"$type"`
			Images []struct {
				Alt string `json:"alt"`
			} `json:"images"`
		} `json:"embed"`
	}
	require.NoError(t, json.Unmarshal(srv.records[0]["record"], &record))

	assert.Equal(t, "app.bsky.feed.post", record.Type)
	assert.Equal(t, "⚡️ ComEd Grid Report", record.Text)
	assert.NotEmpty(t, record.CreatedAt)
	require.NotNil(t, record.Embed)
	assert.Equal(t, "app.bsky.embed.images", record.Embed.Type)
	require.Len(t, record.Embed.Images, 1)
	assert.Equal(t, "ComEd load chart", record.Embed.Images[0].Alt)

	var repo string
	require.NoError(t, json.Unmarshal(srv.records[0]["repo"], &repo))
	assert.Equal(t, "did:plc:abc123", repo)
}

func TestPost_TextOnly(t *testing.T) {
	srv := newXRPCServer(t)
	p := newTestPoster(srv.URL)

	err := p.Post(context.Background(), "report text", nil, "")
	require.NoError(t, err)

	assert.Zero(t, srv.uploads)
	require.Len(t, srv.records, 1)
	assert.NotContains(t, string(srv.records[0]["record"]), `"embed"`)
}

func TestPost_ImageUploadFailureDegradesToText(t *testing.T) {
	srv := newXRPCServer(t)
	srv.failUpload = true
	p := newTestPoster(srv.URL)

	err := p.Post(context.Background(), "report text", []byte("png-bytes"), "alt")
	require.NoError(t, err)

	assert.Equal(t, 1, srv.uploads)
	require.Len(t, srv.records, 1)
	assert.NotContains(t, string(srv.records[0]["record"]), `"embed"`)
}

func TestPost_RetriesAfterExpiredSession(t *testing.T) {
	srv := newXRPCServer(t)
	srv.rejectFirstRecord = true
	p := newTestPoster(srv.URL)

	err := p.Post(context.Background(), "report text", nil, "")
	require.NoError(t, err)

	// The rejected first attempt triggers a fresh login and one retry.
	assert.Equal(t, 2, srv.sessions)
	assert.Equal(t, 2, srv.recordCalls)
	require.Len(t, srv.records, 1)
}

func TestPost_SessionReusedAcrossPosts(t *testing.T) {
	srv := newXRPCServer(t)
	p := newTestPoster(srv.URL)

	require.NoError(t, p.Post(context.Background(), "first", nil, ""))
	require.NoError(t, p.Post(context.Background(), "second", nil, ""))

	assert.Equal(t, 1, srv.sessions)
	assert.Len(t, srv.records, 2)
}
