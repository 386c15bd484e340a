package nrc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
)

func testConfig(url string, units ...string) config.NRCConfig {
	return config.NRCConfig{
		URL:                  url,
		Units:                units,
		SourceTimezone:       "America/New_York",
		CollectionHourOffset: 9,
	}
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchStatus_ParsesAndFilters(t *testing.T) {
	feed := "ReportDt|Unit|Power\n" +
		"01/15/2025|Byron 1|100\n" +
		"01/15/2025|Byron 2|98\n" +
		"01/15/2025|Palo Verde 1|100\n" + // not in allow-list
		"\n" +
		"garbage line without pipes\n" +
		"01/15/2025|Dresden 2|not-a-number\n"

	srv := serveFeed(t, feed)
	a, err := NewAdapter(testConfig(srv.URL, "Byron 1", "Byron 2", "Dresden 2"))
	require.NoError(t, err)

	samples, err := a.FetchStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "Byron 1", samples[0].UnitName)
	assert.Equal(t, 100.0, samples[0].PowerPct)
	assert.Equal(t, "Byron 2", samples[1].UnitName)
}

func TestFetchStatus_HeaderOnlyFeed(t *testing.T) {
	srv := serveFeed(t, "ReportDt|Unit|Power\n")
	a, err := NewAdapter(testConfig(srv.URL, "Byron 1"))
	require.NoError(t, err)

	samples, err := a.FetchStatus(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, samples)
}

func TestCorrectReportTime_StandardTime(t *testing.T) {
	// January: Eastern standard time, UTC-5. Midnight + 9h = 09:00 ET = 14:00 UTC.
	a, err := NewAdapter(testConfig("http://example.invalid", "Byron 1"))
	require.NoError(t, err)

	reported := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	corrected := a.correctReportTime(reported)
	assert.Equal(t, time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC), corrected)
}

func TestCorrectReportTime_DaylightTime(t *testing.T) {
	// July: Eastern daylight time, UTC-4. 09:00 ET = 13:00 UTC.
	a, err := NewAdapter(testConfig("http://example.invalid", "Byron 1"))
	require.NoError(t, err)

	reported := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	corrected := a.correctReportTime(reported)
	assert.Equal(t, time.Date(2025, 7, 15, 13, 0, 0, 0, time.UTC), corrected)
}

func TestNewAdapter_UnknownTimezone(t *testing.T) {
	cfg := testConfig("http://example.invalid", "Byron 1")
	cfg.SourceTimezone = "Not/AZone"
	_, err := NewAdapter(cfg)
	assert.Error(t, err)
}

func TestFetchStatus_TimestampedReportDates(t *testing.T) {
	// The live feed stamps ReportDt with a midnight time component.
	feed := "ReportDt|Unit|Power\n" +
		"06/15/2025 12:00:00 AM|Byron 1|100\n" +
		"06/15/2025 12:00:00 AM|Byron 2|97\n"

	srv := serveFeed(t, feed)
	a, err := NewAdapter(testConfig(srv.URL, "Byron 1", "Byron 2"))
	require.NoError(t, err)

	samples, err := a.FetchStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	// June: Eastern daylight time. Midnight + 9h = 09:00 ET = 13:00 UTC.
	assert.Equal(t, time.Date(2025, 6, 15, 13, 0, 0, 0, time.UTC), samples[0].ReportDate)
}

func TestParseReportDate_Layouts(t *testing.T) {
	for _, s := range []string{"01/15/2025", "01/15/2025 12:00:00 AM", "2025-01-15", "2025-01-15 00:00:00"} {
		got, ok := parseReportDate(s)
		require.True(t, ok, s)
		assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got.Truncate(24*time.Hour))
	}
	_, ok := parseReportDate("15 Jan 2025")
	assert.False(t, ok)
}

func TestFilterChanged(t *testing.T) {
	date := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	existing := []model.ReactorStatusSample{
		{ReportDate: date, UnitName: "Byron 1", PowerPct: 100},
		{ReportDate: date, UnitName: "Byron 2", PowerPct: 98},
	}
	incoming := []model.ReactorStatusSample{
		{ReportDate: date, UnitName: "Byron 1", PowerPct: 100.005}, // within tolerance
		{ReportDate: date, UnitName: "Byron 2", PowerPct: 97},      // changed
		{ReportDate: date, UnitName: "Dresden 2", PowerPct: 90},    // new unit
	}

	changed := FilterChanged(existing, incoming)
	require.Len(t, changed, 2)
	assert.Equal(t, "Byron 2", changed[0].UnitName)
	assert.Equal(t, "Dresden 2", changed[1].UnitName)
}

func TestFilterChanged_AllWithinTolerance(t *testing.T) {
	date := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	existing := []model.ReactorStatusSample{
		{ReportDate: date, UnitName: "Byron 1", PowerPct: 100},
	}
	incoming := []model.ReactorStatusSample{
		{ReportDate: date, UnitName: "Byron 1", PowerPct: 100},
	}
	assert.Empty(t, FilterChanged(existing, incoming))
}
