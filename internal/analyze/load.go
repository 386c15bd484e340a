// Package analyze computes the descriptive statistics and report text for
// the load and nuclear reporting sub-tasks.
package analyze

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gridpulse/internal/domain/model"
	"gridpulse/internal/estimate"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "analyze"

// ReportWindow is the analysis window for the load report.
const ReportWindow = 24 * time.Hour

// Trend classifies the load direction over the window.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// LoadStats is the 24-hour load report payload.
type LoadStats struct {
	CurrentLoadMW float64
	// BaseLoadMW is the 10th percentile of the window.
	BaseLoadMW float64
	// LoadFactor is average load divided by peak load.
	LoadFactor float64
	// MaxRampMWPerHour is the steepest interval-to-interval increase scaled
	// to MW/hr by the series' sampling interval.
	MaxRampMWPerHour float64
	MaxRampTime      time.Time
	// Volatility is the standard deviation divided by the mean.
	Volatility float64
	TrendDirection Trend
	TrendPct       float64
	PeriodStart    time.Time
	ReportTime     time.Time
}

// LoadAnalyzer computes the 24-hour load statistics in the display time zone.
type LoadAnalyzer struct {
	tz *time.Location
}

// NewLoadAnalyzer creates a load analyzer reporting in the given time zone.
func NewLoadAnalyzer(tz *time.Location) *LoadAnalyzer {
	return &LoadAnalyzer{tz: tz}
}

// CalculateStats computes the load report over the last 24 hours of the
// given series. The series must be time-ordered ascending UTC samples.
func (a *LoadAnalyzer) CalculateStats(samples []model.LoadSample) (*LoadStats, error) {
	if len(samples) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "no load data to analyze")
	}

	nowUTC := samples[len(samples)-1].IntervalStartUTC
	periodStart := nowUTC.Add(-ReportWindow)

	recent := make([]model.LoadSample, 0, len(samples))
	for _, s := range samples {
		if !s.IntervalStartUTC.Before(periodStart) {
			recent = append(recent, s)
		}
	}
	if len(recent) < 2 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "not enough load data in the report window")
	}

	values := make([]float64, len(recent))
	for i, s := range recent {
		values[i] = s.LoadMW
	}

	mean := meanOf(values)
	peak := maxOf(values)
	if peak == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "load data is zero or missing")
	}

	interval, err := estimate.ModalInterval(recent)
	if err != nil {
		return nil, err
	}

	// Ramp rate: per-interval delta scaled to an hourly rate.
	scale := float64(time.Hour) / float64(interval)
	maxRamp := math.Inf(-1)
	var maxRampAt time.Time
	for i := 1; i < len(recent); i++ {
		ramp := (recent[i].LoadMW - recent[i-1].LoadMW) * scale
		if ramp > maxRamp {
			maxRamp = ramp
			maxRampAt = recent[i].IntervalStartUTC
		}
	}

	direction, trendPct := loadTrend(values, interval)

	stats := &LoadStats{
		CurrentLoadMW:    recent[len(recent)-1].LoadMW,
		BaseLoadMW:       percentile(values, 0.10),
		LoadFactor:       mean / peak,
		MaxRampMWPerHour: maxRamp,
		MaxRampTime:      maxRampAt.In(a.tz),
		Volatility:       stddev(values) / mean,
		TrendDirection:   direction,
		TrendPct:         trendPct,
		PeriodStart:      periodStart.In(a.tz),
		ReportTime:       nowUTC.In(a.tz),
	}
	logger.Infof("Calculated load stats for period %s to %s.",
		stats.PeriodStart.Format(time.RFC3339), stats.ReportTime.Format(time.RFC3339))
	return stats, nil
}

// FormatMessage renders the post text for the load report.
func (a *LoadAnalyzer) FormatMessage(stats *LoadStats) string {
	timeStr := clockString(stats.ReportTime)
	rampTime := clockString(stats.MaxRampTime)

	trendSign := "±"
	switch stats.TrendDirection {
	case TrendIncreasing:
		trendSign = "+"
	case TrendDecreasing:
		trendSign = "-"
	}

	return fmt.Sprintf(
		"⚡️ ComEd Grid Report\n"+
			"(Last 24H as of %s)\n\n"+
			"🔌 Current Load: %s MW\n\n"+
			"📊 System Dynamics:\n"+
			"Peak Ramp Rate: %s MW/hr (%s)\n"+
			"Load Volatility: %.1f%%\n"+
			"Load is %s (%s%.2f%%)\n\n"+
			"🏭 System Efficiency:\n"+
			"Load Factor: %.0f%%\n"+
			"Base Load: %s MW\n\n"+
			"Data From Grid Status",
		timeStr,
		groupThousands(stats.CurrentLoadMW),
		groupThousands(stats.MaxRampMWPerHour), rampTime,
		stats.Volatility*100,
		stats.TrendDirection, trendSign, stats.TrendPct,
		stats.LoadFactor*100,
		groupThousands(stats.BaseLoadMW),
	)
}

// loadTrend compares the first and last one-hour rolling averages and
// classifies the direction at a ±1% threshold.
func loadTrend(values []float64, interval time.Duration) (Trend, float64) {
	window := int(time.Hour / interval)
	if window < 1 {
		window = 1
	}
	if len(values) < window*2 {
		return TrendStable, 0
	}

	rolling := rollingMean(values, window)
	startAvg := meanOf(rolling[window:min(window*2, len(rolling))])
	endAvg := meanOf(rolling[len(rolling)-window:])
	if startAvg == 0 {
		return TrendStable, 0
	}
	pct := (endAvg - startAvg) / startAvg * 100

	switch {
	case pct > 1:
		return TrendIncreasing, math.Abs(pct)
	case pct < -1:
		return TrendDecreasing, math.Abs(pct)
	default:
		return TrendStable, math.Abs(pct)
	}
}

// rollingMean returns trailing means over the given window, starting at the
// first index with a full window.
func rollingMean(values []float64, window int) []float64 {
	if window < 1 || len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// percentile computes the q-quantile with linear interpolation.
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// stddev is the sample standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := meanOf(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// clockString formats a wall-clock time like "3:05pm".
func clockString(t time.Time) string {
	s := strings.ToLower(t.Format("3:04PM"))
	return s
}

// groupThousands renders a rounded value with comma separators ("23,456").
func groupThousands(v float64) string {
	n := int64(math.Round(v))
	negative := n < 0
	if negative {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if negative {
		return "-" + s
	}
	return s
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
