// Package eia implements the generator-capacity source against the EIA v2
// operating-generator-capacity API.
package eia

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"gridpulse/internal/adapter/fetch"
	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "eia"

// CapacityMWTolerance is the write-skip threshold: an incoming period whose
// generators all differ from the stored values by less than this is not
// rewritten.
const CapacityMWTolerance = 0.01

// Adapter fetches monthly capacity data windowed to the recent past so the
// newest period is captured even when upstream delays publication.
type Adapter struct {
	baseURL    string
	apiKey     string
	plantIDs   []int
	windowDays int
	httpCfg    fetch.ClientConfig
	circuit    *gobreaker.CircuitBreaker
	// now is injected for tests.
	now func() time.Time
}

// NewAdapter creates the capacity adapter from configuration.
func NewAdapter(cfg config.EIAConfig) *Adapter {
	return &Adapter{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		plantIDs:   cfg.PlantIDs,
		windowDays: cfg.WindowDays,
		httpCfg:    fetch.DefaultClientConfig(30 * time.Second),
		circuit:    fetch.NewBreaker(moduleName),
		now:        time.Now,
	}
}

// capacityResponse matches the JSON envelope of the EIA v2 API.
type capacityResponse struct {
	Response struct {
		Data []capacityRow `json:"data"`
	} `json:"response"`
}

// capacityRow is one raw API row. Numeric fields may arrive as JSON numbers
// or quoted strings depending on the dataset revision.
type capacityRow struct {
	Period           string          `json:"period"`
	PlantID          json.RawMessage `json:"plantid"`
	GeneratorID      json.RawMessage `json:"generatorid"`
	NetSummerCapacity json.RawMessage `json:"net-summer-capacity-mw"`
	NetWinterCapacity json.RawMessage `json:"net-winter-capacity-mw"`
}

// FetchCapacity fetches the recent monthly window and deduplicates to one row
// per (plant, generator), keeping the most recent period.
func (a *Adapter) FetchCapacity(ctx context.Context) ([]model.CapacitySample, error) {
	if a.apiKey == "" {
		return nil, errs.Newf(errs.KindConfig, moduleName, "API key is not set")
	}

	end := a.now()
	start := end.AddDate(0, 0, -a.windowDays)

	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, errs.FetchError(moduleName, "invalid base URL", err)
	}
	q := u.Query()
	q.Set("frequency", "monthly")
	q.Add("data[0]", "net-summer-capacity-mw")
	q.Add("data[1]", "net-winter-capacity-mw")
	for _, pid := range a.plantIDs {
		q.Add("facets[plantid][]", strconv.Itoa(pid))
	}
	q.Set("start", start.Format("2006-01"))
	q.Set("end", end.Format("2006-01"))
	q.Set("sort[0][column]", "period")
	q.Set("sort[0][direction]", "desc")
	q.Set("api_key", a.apiKey)
	u.RawQuery = q.Encode()

	resp, err := fetch.Do(ctx, a.httpCfg, a.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u.String(), nil)
	})
	if err != nil {
		return nil, errs.FetchError(moduleName, "capacity query failed", err)
	}
	defer resp.Body.Close()

	var result capacityResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.FetchError(moduleName, "invalid response format from EIA API", err)
	}
	if len(result.Response.Data) == 0 {
		return nil, errs.Newf(errs.KindFetch, moduleName, "no capacity data returned from EIA API")
	}

	samples := make([]model.CapacitySample, 0, len(result.Response.Data))
	dropped := 0
	for _, row := range result.Response.Data {
		sample, ok := normalizeRow(row)
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, sample)
	}
	if dropped > 0 {
		logger.Warnf("Dropped %d of %d capacity rows with missing values.", dropped, len(result.Response.Data))
	}

	return dedupeNewestPeriod(samples), nil
}

// normalizeRow converts a raw API row, dropping rows with missing values.
func normalizeRow(row capacityRow) (model.CapacitySample, bool) {
	if row.Period == "" {
		return model.CapacitySample{}, false
	}
	plantID, ok := rawToString(row.PlantID)
	if !ok {
		return model.CapacitySample{}, false
	}
	generatorID, ok := rawToString(row.GeneratorID)
	if !ok {
		return model.CapacitySample{}, false
	}
	summer, ok := rawToFloat(row.NetSummerCapacity)
	if !ok {
		return model.CapacitySample{}, false
	}
	winter, ok := rawToFloat(row.NetWinterCapacity)
	if !ok {
		return model.CapacitySample{}, false
	}
	return model.CapacitySample{
		Period:              row.Period,
		PlantID:             plantID,
		GeneratorID:         generatorID,
		NetSummerCapacityMW: summer,
		NetWinterCapacityMW: winter,
	}, true
}

// dedupeNewestPeriod keeps one row per (plant, generator), the most recent
// period. "YYYY-MM" periods sort lexicographically.
func dedupeNewestPeriod(samples []model.CapacitySample) []model.CapacitySample {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Period > samples[j].Period
	})
	type key struct{ plant, gen string }
	seen := make(map[key]bool, len(samples))
	out := make([]model.CapacitySample, 0, len(samples))
	for _, s := range samples {
		k := key{s.PlantID, s.GeneratorID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// HasChanges reports whether any incoming generator's summer or winter
// capacity differs from the stored rows for the same period by more than
// CapacityMWTolerance. When it returns false the write is skipped entirely.
func HasChanges(existing, incoming []model.CapacitySample) bool {
	type key struct{ period, plant, gen string }
	stored := make(map[key]model.CapacitySample, len(existing))
	for _, s := range existing {
		stored[key{s.Period, s.PlantID, s.GeneratorID}] = s
	}
	for _, s := range incoming {
		prev, ok := stored[key{s.Period, s.PlantID, s.GeneratorID}]
		if !ok {
			return true
		}
		if math.Abs(prev.NetSummerCapacityMW-s.NetSummerCapacityMW) > CapacityMWTolerance ||
			math.Abs(prev.NetWinterCapacityMW-s.NetWinterCapacityMW) > CapacityMWTolerance {
			return true
		}
	}
	return false
}

func rawToString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

func rawToFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if parsed, perr := strconv.ParseFloat(s, 64); perr == nil {
			return parsed, true
		}
	}
	return 0, false
}
