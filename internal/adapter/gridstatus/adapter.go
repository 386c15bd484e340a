package gridstatus

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

// timestampLayouts are tried in order when the upstream timestamp is not
// RFC3339. Layouts without an offset are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Adapter maps the Grid Status dataset feed to LoadSamples. Rows missing a
// required field are dropped; rows with negative load are treated as sensor
// error and silently discarded.
type Adapter struct {
	client  *Client
	dataset string
	columns []string
	limit   int
	// loadColumn is the dataset-specific load column (e.g. "load.comed"),
	// the first configured column that is not an interval boundary.
	loadColumn string
}

// NewAdapter creates the load-source adapter from configuration.
func NewAdapter(client *Client, cfg config.LoadConfig) *Adapter {
	loadColumn := ""
	for _, col := range cfg.Columns {
		if col != "interval_start_utc" && col != "interval_end_utc" {
			loadColumn = col
			break
		}
	}
	return &Adapter{
		client:     client,
		dataset:    cfg.Dataset,
		columns:    cfg.Columns,
		limit:      cfg.Limit,
		loadColumn: loadColumn,
	}
}

// FetchLoad fetches and normalizes load samples for [start, end).
// An empty result set means the feed legitimately has nothing new.
func (a *Adapter) FetchLoad(ctx context.Context, start, end time.Time) ([]model.LoadSample, error) {
	if a.loadColumn == "" {
		return nil, errs.Newf(errs.KindConfig, moduleName, "no load column configured")
	}

	rows, err := a.client.QueryDataset(ctx, a.dataset, start, end, a.columns, a.limit)
	if err != nil {
		return nil, err
	}

	samples := make([]model.LoadSample, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		intervalStart, ok := parseTimestampField(row, "interval_start_utc")
		if !ok {
			dropped++
			continue
		}
		intervalEnd, ok := parseTimestampField(row, "interval_end_utc")
		if !ok {
			dropped++
			continue
		}
		loadMW, ok := parseFloatField(row, a.loadColumn)
		if !ok {
			dropped++
			continue
		}
		if loadMW < 0 {
			// Negative load is a sensor error, not a reportable failure.
			dropped++
			continue
		}
		samples = append(samples, model.LoadSample{
			IntervalStartUTC: intervalStart,
			IntervalEndUTC:   intervalEnd,
			LoadMW:           loadMW,
		})
	}
	if dropped > 0 {
		logger.Warnf("Dropped %d of %d load rows after validation.", dropped, len(rows))
	}
	return samples, nil
}

// parseTimestampField extracts a timestamp field, assuming UTC for naive
// values and converting any non-UTC offset to UTC.
func parseTimestampField(row map[string]json.RawMessage, key string) (time.Time, bool) {
	raw, ok := row[key]
	if !ok {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if strings.Contains(layout, "Z07:00") {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseFloatField extracts a numeric field that may arrive as a JSON number
// or a quoted string. Missing or null values fail the row.
func parseFloatField(row map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := row[key]
	if !ok {
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
