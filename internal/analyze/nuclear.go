package analyze

import (
	"context"
	"fmt"
	"math"
	"time"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/estimate"
	"gridpulse/internal/store"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

// NRCFreshnessLimit is the maximum age of the newest reactor status report
// before the nuclear analysis refuses to run.
const NRCFreshnessLimit = 24 * time.Hour

// NuclearStats is the nuclear coverage report payload.
type NuclearStats struct {
	// NuclearPct is estimated nuclear generation as a share of total load.
	NuclearPct float64
	// FullCoveragePct is the share of the window during which estimated
	// nuclear output met or exceeded load.
	FullCoveragePct float64
	// TotalNuclearMW and TotalLoadMW are sums of the aligned MW samples;
	// their ratio is NuclearPct. They are not energy figures.
	TotalNuclearMW float64
	TotalLoadMW    float64
	// Joined is the aligned load/generation series backing the stats,
	// kept for charting.
	Joined     []model.JoinedRow
	ReportTime time.Time
}

// NuclearAnalyzer estimates fleet generation and compares it against load
// over the report window.
type NuclearAnalyzer struct {
	store     store.Store
	estimator *estimate.Estimator
	cfg       config.ProcessConfig
	units     []string
	tz        *time.Location
	now       func() time.Time
}

// NewNuclearAnalyzer creates a nuclear analyzer.
func NewNuclearAnalyzer(s store.Store, est *estimate.Estimator, nuclearCfg config.NuclearConfig, procCfg config.ProcessConfig, tz *time.Location) *NuclearAnalyzer {
	return &NuclearAnalyzer{
		store:     s,
		estimator: est,
		cfg:       procCfg,
		units:     nuclearCfg.NRC.Units,
		tz:        tz,
		now:       time.Now,
	}
}

// Analyze runs the nuclear coverage analysis over the last 24 hours of load.
func (a *NuclearAnalyzer) Analyze(ctx context.Context, load []model.LoadSample) (*NuclearStats, error) {
	if a.cfg.RequireRecentNRCData {
		if err := a.checkFreshness(ctx); err != nil {
			return nil, err
		}
	}

	if len(load) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "no load data to analyze")
	}
	nowUTC := load[len(load)-1].IntervalStartUTC
	periodStart := nowUTC.Add(-ReportWindow)
	recent := make([]model.LoadSample, 0, len(load))
	for _, s := range load {
		if !s.IntervalStartUTC.Before(periodStart) {
			recent = append(recent, s)
		}
	}
	if len(recent) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "no load data in the report window")
	}

	estimates, err := a.estimator.Estimate(ctx)
	if err != nil {
		return nil, err
	}

	joined, err := estimate.AlignToLoad(recent, estimates)
	if err != nil {
		return nil, err
	}

	var totalNuclear, totalLoad float64
	covered := 0
	for _, row := range joined {
		totalNuclear += row.EstimatedMW
		totalLoad += row.LoadMW
		if row.EstimatedMW >= row.LoadMW {
			covered++
		}
	}
	if totalLoad == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "joined load series sums to zero")
	}

	stats := &NuclearStats{
		NuclearPct:      totalNuclear / totalLoad * 100,
		FullCoveragePct: float64(covered) / float64(len(joined)) * 100,
		TotalNuclearMW:  totalNuclear,
		TotalLoadMW:     totalLoad,
		Joined:          joined,
		ReportTime:      nowUTC.In(a.tz),
	}
	logger.Infof("Nuclear analysis: %.1f%% of demand, full coverage %.1f%% of the window.",
		stats.NuclearPct, stats.FullCoveragePct)
	return stats, nil
}

// FormatMessage renders the post text for the nuclear report.
func (a *NuclearAnalyzer) FormatMessage(stats *NuclearStats) string {
	return fmt.Sprintf(
		"⚛️⚡️ Over the last 24 hours, enough nuclear energy was available to supply %d%% of overall electricity demand in northern Illinois.\n\n"+
			"⏰ Nuclear plants could meet all electricity demand %d%% of the last 24 hours.",
		int(math.Round(stats.NuclearPct)),
		int(math.Round(stats.FullCoveragePct)),
	)
}

// checkFreshness rejects the run when the newest reactor status report is
// older than the freshness limit.
func (a *NuclearAnalyzer) checkFreshness(ctx context.Context) error {
	statuses, err := a.store.GetLatestReactorStatus(ctx, a.units)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		return errs.Newf(errs.KindAvailability, moduleName, "no reactor status data available")
	}
	newest := statuses[0].ReportDate
	for _, s := range statuses[1:] {
		if s.ReportDate.After(newest) {
			newest = s.ReportDate
		}
	}
	age := a.now().UTC().Sub(newest)
	if age > NRCFreshnessLimit {
		return errs.Newf(errs.KindAvailability, moduleName,
			"reactor status data is stale: newest report %s is %s old",
			newest.Format(time.RFC3339), age.Round(time.Minute))
	}
	return nil
}
