// Package gridstatus implements the load-data source against the Grid Status API.
package gridstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"gridpulse/internal/adapter/fetch"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "gridstatus"

// Client is a minimal Grid Status API client for dataset queries.
type Client struct {
	apiKey  string
	baseURL string
	httpCfg fetch.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a Grid Status API client. If baseURL is empty it defaults
// to "https://api.gridstatus.io".
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.gridstatus.io"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: fetch.DefaultClientConfig(30 * time.Second),
		circuit: fetch.NewBreaker(moduleName),
	}
}

// datasetResponse matches the JSON shape of a dataset query response.
type datasetResponse struct {
	StatusCode int                        `json:"status_code"`
	Data       []map[string]json.RawMessage `json:"data"`
}

// QueryDataset fetches raw rows for a dataset over [start, end). Column names
// follow the upstream schema, including dotted load column names.
func (c *Client) QueryDataset(ctx context.Context, dataset string, start, end time.Time, columns []string, limit int) ([]map[string]json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, errs.Newf(errs.KindConfig, moduleName, "API key is not set")
	}
	if dataset == "" {
		return nil, errs.Newf(errs.KindConfig, moduleName, "dataset id is required")
	}

	u, err := url.Parse(c.baseURL + "/v1/datasets/" + dataset + "/query")
	if err != nil {
		return nil, errs.FetchError(moduleName, "invalid base URL", err)
	}
	q := u.Query()
	q.Set("start_time", start.UTC().Format(time.RFC3339))
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	if len(columns) > 0 {
		q.Set("columns", strings.Join(columns, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	logger.Debugf("Grid Status request: GET %s (dataset=%s, start=%s, end=%s)",
		u.Path, dataset, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	resp, err := fetch.Do(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		req, reqErr := http.NewRequest(http.MethodGet, u.String(), nil)
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, errs.FetchError(moduleName, "dataset query failed", err)
	}
	defer resp.Body.Close()

	var result datasetResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.FetchError(moduleName, "failed to decode dataset response", err)
	}
	logger.Debugf("Grid Status response: %d rows (dataset=%s)", len(result.Data), dataset)
	return result.Data, nil
}
