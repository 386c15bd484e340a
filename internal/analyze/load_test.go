package analyze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpulse/internal/domain/model"
	"gridpulse/internal/support/errs"
)

func hourlySeries(start time.Time, values ...float64) []model.LoadSample {
	out := make([]model.LoadSample, 0, len(values))
	for i, v := range values {
		ts := start.Add(time.Duration(i) * time.Hour)
		out = append(out, model.LoadSample{
			IntervalStartUTC: ts,
			IntervalEndUTC:   ts.Add(time.Hour),
			LoadMW:           v,
		})
	}
	return out
}

func TestCalculateStats(t *testing.T) {
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	samples := hourlySeries(start, 10000, 10000, 10500, 11000, 12000)

	stats, err := NewLoadAnalyzer(time.UTC).CalculateStats(samples)
	require.NoError(t, err)

	assert.Equal(t, 12000.0, stats.CurrentLoadMW)
	assert.Equal(t, 10000.0, stats.BaseLoadMW)
	assert.InDelta(t, 10700.0/12000.0, stats.LoadFactor, 1e-9)
	assert.Equal(t, 1000.0, stats.MaxRampMWPerHour)
	assert.Equal(t, start.Add(4*time.Hour), stats.MaxRampTime)
	assert.InDelta(t, 836.66/10700.0, stats.Volatility, 1e-3)
	assert.Equal(t, TrendIncreasing, stats.TrendDirection)
	assert.InDelta(t, 20.0, stats.TrendPct, 1e-9)
	assert.Equal(t, start.Add(4*time.Hour), stats.ReportTime)
	assert.Equal(t, stats.ReportTime.Add(-ReportWindow), stats.PeriodStart)
}

func TestCalculateStats_WindowAnchoredToLastSample(t *testing.T) {
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	// A huge spike two days before the window must not influence the stats.
	old := model.LoadSample{
		IntervalStartUTC: start.AddDate(0, 0, -2),
		IntervalEndUTC:   start.AddDate(0, 0, -2).Add(time.Hour),
		LoadMW:           50000,
	}
	samples := append([]model.LoadSample{old}, hourlySeries(start, 10000, 10000, 10000, 10000)...)

	stats, err := NewLoadAnalyzer(time.UTC).CalculateStats(samples)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats.LoadFactor)
	assert.Equal(t, 10000.0, stats.BaseLoadMW)
}

func TestCalculateStats_DecreasingTrend(t *testing.T) {
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	samples := hourlySeries(start, 12000, 12000, 11500, 11000, 10000)

	stats, err := NewLoadAnalyzer(time.UTC).CalculateStats(samples)
	require.NoError(t, err)
	assert.Equal(t, TrendDecreasing, stats.TrendDirection)
	assert.InDelta(t, 100.0*2000.0/12000.0, stats.TrendPct, 1e-9)
}

func TestCalculateStats_StableTrend(t *testing.T) {
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	samples := hourlySeries(start, 10000, 10000, 10050, 10000, 10050)

	stats, err := NewLoadAnalyzer(time.UTC).CalculateStats(samples)
	require.NoError(t, err)
	assert.Equal(t, TrendStable, stats.TrendDirection)
}

func TestCalculateStats_NotEnoughData(t *testing.T) {
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, err := NewLoadAnalyzer(time.UTC).CalculateStats(nil)
	require.Error(t, err)
	assert.True(t, errs.IsAvailability(err))

	_, err = NewLoadAnalyzer(time.UTC).CalculateStats(hourlySeries(start, 10000))
	require.Error(t, err)
	assert.True(t, errs.IsAvailability(err))
}

func TestFormatMessage_Load(t *testing.T) {
	tz := time.FixedZone("CDT", -5*3600)
	stats := &LoadStats{
		CurrentLoadMW:    11987.6,
		BaseLoadMW:       9750.4,
		LoadFactor:       0.874,
		MaxRampMWPerHour: 1522.3,
		MaxRampTime:      time.Date(2025, 6, 15, 7, 30, 0, 0, tz),
		Volatility:       0.0523,
		TrendDirection:   TrendIncreasing,
		TrendPct:         3.456,
		ReportTime:       time.Date(2025, 6, 15, 15, 5, 0, 0, tz),
	}

	got := NewLoadAnalyzer(tz).FormatMessage(stats)
	want := "⚡️ ComEd Grid Report\n" +
		"(Last 24H as of 3:05pm)\n\n" +
		"🔌 Current Load: 11,988 MW\n\n" +
		"📊 System Dynamics:\n" +
		"Peak Ramp Rate: 1,522 MW/hr (7:30am)\n" +
		"Load Volatility: 5.2%\n" +
		"Load is increasing (+3.46%)\n\n" +
		"🏭 System Efficiency:\n" +
		"Load Factor: 87%\n" +
		"Base Load: 9,750 MW\n\n" +
		"Data From Grid Status"
	assert.Equal(t, want, got)
}

func TestFormatMessage_TrendSigns(t *testing.T) {
	tz := time.UTC
	a := NewLoadAnalyzer(tz)
	base := LoadStats{ReportTime: time.Date(2025, 6, 15, 12, 0, 0, 0, tz)}

	dec := base
	dec.TrendDirection = TrendDecreasing
	dec.TrendPct = 2.5
	assert.Contains(t, a.FormatMessage(&dec), "Load is decreasing (-2.50%)")

	stable := base
	stable.TrendDirection = TrendStable
	stable.TrendPct = 0.4
	assert.Contains(t, a.FormatMessage(&stable), "Load is stable (±0.40%)")
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "0", groupThousands(0.2))
	assert.Equal(t, "987", groupThousands(987))
	assert.Equal(t, "1,000", groupThousands(999.7))
	assert.Equal(t, "23,456", groupThousands(23456.4))
	assert.Equal(t, "1,234,567", groupThousands(1234567))
	assert.Equal(t, "-1,522", groupThousands(-1522.3))
}

func TestPercentile(t *testing.T) {
	values := []float64{10000, 12000, 11000, 10000, 10500}
	assert.InDelta(t, 10000.0, percentile(values, 0.10), 1e-9)
	assert.Equal(t, 12000.0, percentile(values, 1.0))
	assert.Equal(t, 10000.0, percentile(values, 0.0))
	assert.Equal(t, 42.0, percentile([]float64{42}, 0.10))
}
