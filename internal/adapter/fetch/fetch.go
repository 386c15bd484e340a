// Package fetch provides the resilient HTTP execution shared by the source
// adapters: bounded retries with exponential backoff behind a circuit breaker.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ClientConfig bundles the HTTP client and resilience settings.
type ClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	// ErrRateLimited marks an HTTP 429 from the upstream provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrServerError marks an HTTP 5xx from the upstream provider.
	ErrServerError = errors.New("server error")
	// ErrUnexpectedStatus marks any other non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// DefaultClientConfig returns the adapter-wide default resilience settings.
func DefaultClientConfig(timeout time.Duration) ClientConfig {
	return ClientConfig{
		Client: &http.Client{Timeout: timeout},
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

// NewBreaker creates a circuit breaker with the adapter-wide default settings.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// Do executes the HTTP request with retries, exponential backoff and the
// circuit breaker. Rate limits and server errors are retried; other non-2xx
// statuses fail immediately. The caller owns the returned response body.
func Do(
	ctx context.Context,
	cfg ClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, ErrRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, ErrServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, errors.New("unexpected circuit breaker result type")
			}
			return resp, nil
		}

		lastErr = err

		// Only transient failures are worth another attempt.
		retryable := errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) ||
			errors.Is(err, gobreaker.ErrOpenState) || isNetworkError(err)
		if !retryable || attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		interval := time.Duration(float64(cfg.Backoff.InitialInterval) * math.Pow(2, float64(attempt)))
		if cfg.Backoff.MaxInterval > 0 && interval > cfg.Backoff.MaxInterval {
			interval = cfg.Backoff.MaxInterval
		}
		attempt++

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func isNetworkError(err error) bool {
	// Transport-level failures come back as *url.Error wrapping the cause;
	// anything that is not one of our sentinel statuses is treated as such.
	return !errors.Is(err, ErrUnexpectedStatus) &&
		!errors.Is(err, ErrRateLimited) &&
		!errors.Is(err, ErrServerError) &&
		!errors.Is(err, gobreaker.ErrOpenState)
}
