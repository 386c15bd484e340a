// Package nrc implements the reactor-status source against the NRC power
// reactor status feed, a pipe-delimited plaintext report.
package nrc

import (
	"bufio"
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"gridpulse/internal/adapter/fetch"
	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "nrc"

// PowerPctTolerance is the write-skip threshold: a stored (date, unit) row
// whose power differs from the incoming value by less than this is not
// rewritten. A deliberate write-amplification reduction, not a correctness
// requirement.
const PowerPctTolerance = 0.01

// dateLayouts are tried in order for the feed's report date column.
var dateLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// Adapter parses the feed line-by-line, corrects the report timestamp and
// filters to the configured unit allow-list.
type Adapter struct {
	url     string
	units   map[string]bool
	loc     *time.Location
	offset  time.Duration
	httpCfg fetch.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewAdapter creates the reactor-status adapter from configuration. The
// source time zone must resolve; an unknown zone is a configuration error.
func NewAdapter(cfg config.NRCConfig) (*Adapter, error) {
	loc, err := time.LoadLocation(cfg.SourceTimezone)
	if err != nil {
		return nil, errs.ConfigError(moduleName, "unknown source timezone "+cfg.SourceTimezone, err)
	}
	units := make(map[string]bool, len(cfg.Units))
	for _, u := range cfg.Units {
		units[u] = true
	}
	return &Adapter{
		url:     cfg.URL,
		units:   units,
		loc:     loc,
		offset:  time.Duration(cfg.CollectionHourOffset) * time.Hour,
		httpCfg: fetch.DefaultClientConfig(30 * time.Second),
		circuit: fetch.NewBreaker(moduleName),
	}, nil
}

// FetchStatus fetches and parses the current feed. Malformed lines are
// skipped with a warning; partial parse success is acceptable.
func (a *Adapter) FetchStatus(ctx context.Context) ([]model.ReactorStatusSample, error) {
	resp, err := fetch.Do(ctx, a.httpCfg, a.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, a.url, nil)
	})
	if err != nil {
		return nil, errs.FetchError(moduleName, "reactor status feed fetch failed", err)
	}
	defer resp.Body.Close()

	var samples []model.ReactorStatusSample
	scanner := bufio.NewScanner(resp.Body)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 || line == "" {
			// First line is the header row.
			continue
		}
		sample, ok := a.parseLine(line)
		if !ok {
			continue
		}
		if len(a.units) > 0 && !a.units[sample.UnitName] {
			continue
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.FetchError(moduleName, "failed to read reactor status feed", err)
	}
	if len(samples) == 0 {
		logger.Warnf("No valid reactor status rows found in feed.")
	}
	return samples, nil
}

// parseLine parses one "date|unit|power" line. Wrong field counts and
// non-numeric power values are warnings, never fatal.
func (a *Adapter) parseLine(line string) (model.ReactorStatusSample, bool) {
	fields := strings.Split(line, "|")
	if len(fields) != 3 {
		logger.Warnf("Skipping malformed reactor status line: %q", line)
		return model.ReactorStatusSample{}, false
	}

	reported, ok := parseReportDate(strings.TrimSpace(fields[0]))
	if !ok {
		logger.Warnf("Skipping reactor status line with unparsable date: %q", line)
		return model.ReactorStatusSample{}, false
	}

	power, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		logger.Warnf("Skipping reactor status line with non-numeric power: %q", line)
		return model.ReactorStatusSample{}, false
	}

	return model.ReactorStatusSample{
		ReportDate: a.correctReportTime(reported),
		UnitName:   strings.TrimSpace(fields[1]),
		PowerPct:   power,
	}, true
}

// correctReportTime recovers the true collection time. The feed stamps each
// report at midnight, but the data is actually collected around 9 AM in the
// source region's civil time: add the fixed offset to the naive timestamp,
// localize the result in the source zone (DST-aware), then convert to UTC.
func (a *Adapter) correctReportTime(reported time.Time) time.Time {
	shifted := reported.Add(a.offset)
	local := time.Date(
		shifted.Year(), shifted.Month(), shifted.Day(),
		shifted.Hour(), shifted.Minute(), shifted.Second(), 0,
		a.loc,
	)
	return local.UTC()
}

func parseReportDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FilterChanged returns the incoming samples that actually need writing: a
// sample is dropped when the stored row for the same (date, unit) differs in
// power by less than PowerPctTolerance.
func FilterChanged(existing, incoming []model.ReactorStatusSample) []model.ReactorStatusSample {
	type key struct {
		date time.Time
		unit string
	}
	stored := make(map[key]float64, len(existing))
	for _, s := range existing {
		stored[key{s.ReportDate.UTC(), s.UnitName}] = s.PowerPct
	}

	changed := make([]model.ReactorStatusSample, 0, len(incoming))
	for _, s := range incoming {
		if prev, ok := stored[key{s.ReportDate.UTC(), s.UnitName}]; ok {
			if math.Abs(prev-s.PowerPct) < PowerPctTolerance {
				continue
			}
		}
		changed = append(changed, s)
	}
	return changed
}
