// Package runner orchestrates one report cycle: sync, analyze, chart, post,
// and the optional retention and export steps.
package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"gridpulse/internal/analyze"
	"gridpulse/internal/chart"
	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/export"
	"gridpulse/internal/metrics"
	"gridpulse/internal/poster"
	"gridpulse/internal/store"
	"gridpulse/internal/support/logger"
	"gridpulse/internal/syncer"
)

// Runner executes one report cycle. The load and nuclear sub-tasks are
// independent: either can fail without aborting the other, and the cycle
// counts as failed only when every enabled sub-task failed.
type Runner struct {
	engine      *syncer.Engine
	store       store.Store
	loadAna     *analyze.LoadAnalyzer
	nuclearAna  *analyze.NuclearAnalyzer
	renderer    chart.Renderer
	poster      poster.Poster
	exporter    *export.Exporter
	recorder    metrics.Recorder
	postingCfg  config.PostingConfig
	loadProc    config.ProcessConfig
	nuclearProc config.ProcessConfig
	exportCfg   config.ExportConfig
	retention   config.RetentionConfig
}

// Params collects the runner's collaborators.
type Params struct {
	Engine          *syncer.Engine
	Store           store.Store
	LoadAnalyzer    *analyze.LoadAnalyzer
	NuclearAnalyzer *analyze.NuclearAnalyzer
	Renderer        chart.Renderer
	Poster          poster.Poster
	Exporter        *export.Exporter
	Recorder        metrics.Recorder
	Config          *config.Config
}

// New creates a cycle runner.
func New(p Params) *Runner {
	gc := p.Config.Gridpulse
	return &Runner{
		engine:      p.Engine,
		store:       p.Store,
		loadAna:     p.LoadAnalyzer,
		nuclearAna:  p.NuclearAnalyzer,
		renderer:    p.Renderer,
		poster:      p.Poster,
		exporter:    p.Exporter,
		recorder:    p.Recorder,
		postingCfg:  gc.Posting,
		loadProc:    gc.Posting.Processes.Load,
		nuclearProc: gc.Posting.Processes.Nuclear,
		exportCfg:   gc.Export,
		retention:   gc.Retention,
	}
}

// RunCycle executes one full cycle and returns the aggregated error of any
// failed steps. The returned error is nil when at least one enabled report
// sub-task succeeded and all housekeeping steps passed.
func (r *Runner) RunCycle(ctx context.Context) error {
	cycleID := uuid.New().String()
	cycleStart := time.Now()
	logger.Infof("Starting cycle %s.", cycleID)

	var result *multierror.Error
	succeeded := 0
	enabled := 0

	// The load sync feeds both sub-tasks; its samples are shared so the
	// nuclear sub-task does not trigger a second upstream fetch.
	samples, loadSyncErr := r.engine.SyncLoad(ctx)

	if r.loadProc.Enabled {
		enabled++
		if err := r.timed("load", func() error {
			if loadSyncErr != nil {
				return loadSyncErr
			}
			return r.runLoadReport(ctx, samples)
		}); err != nil {
			logger.Errorf("Load sub-task failed: %v", err)
			result = multierror.Append(result, err)
		} else {
			succeeded++
		}
	} else if loadSyncErr != nil {
		// Sync failures still surface when the report itself is disabled.
		logger.Errorf("Load sync failed: %v", loadSyncErr)
		result = multierror.Append(result, loadSyncErr)
	}

	if r.nuclearProc.Enabled {
		enabled++
		if err := r.timed("nuclear", func() error {
			return r.runNuclearReport(ctx, samples, loadSyncErr)
		}); err != nil {
			logger.Errorf("Nuclear sub-task failed: %v", err)
			result = multierror.Append(result, err)
		} else {
			succeeded++
		}
	}

	if r.retention.Enabled {
		if err := r.timed("retention", func() error {
			deleted, err := r.store.CleanupOldLoad(ctx, r.retention.Days)
			if err != nil {
				return err
			}
			r.recorder.RecordRowsDeleted(deleted)
			return nil
		}); err != nil {
			logger.Errorf("Retention cleanup failed: %v", err)
			result = multierror.Append(result, err)
		}
	}

	if r.exportCfg.Enabled && r.exporter != nil {
		if err := r.timed("export", func() error {
			return r.exporter.Export(ctx)
		}); err != nil {
			logger.Errorf("Export failed: %v", err)
			result = multierror.Append(result, err)
		}
	}

	status := "success"
	if enabled > 0 && succeeded == 0 {
		status = "failure"
	} else if result.ErrorOrNil() != nil {
		status = "partial"
	}
	r.recorder.RecordCycleEnd(status, time.Since(cycleStart))
	if err := r.recorder.Push(); err != nil {
		logger.Warnf("Metrics push failed: %v", err)
	}
	logger.Infof("Cycle %s finished with status '%s' in %s.", cycleID, status, time.Since(cycleStart).Round(time.Millisecond))

	// At least one successful report keeps the cycle's exit status clean.
	if enabled > 0 && succeeded > 0 {
		return nil
	}
	return result.ErrorOrNil()
}

// runLoadReport analyzes the load window, renders the chart and posts.
func (r *Runner) runLoadReport(ctx context.Context, samples []model.LoadSample) error {
	stats, err := r.loadAna.CalculateStats(samples)
	if err != nil {
		return err
	}

	var image []byte
	if img, err := r.renderer.RenderLoad(windowOf(samples, stats.PeriodStart.UTC())); err != nil {
		logger.Warnf("Load chart rendering failed, posting text only: %v", err)
	} else {
		image = img
	}

	text := r.loadAna.FormatMessage(stats)
	if !r.postingCfg.Enabled {
		logger.Infof("Posting disabled, load report:\n%s", text)
		return nil
	}
	alt := "ComEd load chart for " + stats.ReportTime.Format("2006-01-02")
	return r.poster.Post(ctx, text, image, alt)
}

// runNuclearReport syncs reactor status and capacity, then analyzes coverage.
func (r *Runner) runNuclearReport(ctx context.Context, samples []model.LoadSample, loadSyncErr error) error {
	var result *multierror.Error
	if err := r.engine.SyncReactorStatus(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := r.engine.SyncCapacity(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	if loadSyncErr != nil {
		return loadSyncErr
	}

	stats, err := r.nuclearAna.Analyze(ctx, samples)
	if err != nil {
		return err
	}

	var image []byte
	if img, err := r.renderer.RenderNuclear(stats.Joined); err != nil {
		logger.Warnf("Nuclear chart rendering failed, posting text only: %v", err)
	} else {
		image = img
	}

	text := r.nuclearAna.FormatMessage(stats)
	if !r.postingCfg.Enabled {
		logger.Infof("Posting disabled, nuclear report:\n%s", text)
		return nil
	}
	alt := "Nuclear generation vs demand chart for " + stats.ReportTime.Format("2006-01-02")
	return r.poster.Post(ctx, text, image, alt)
}

// timed runs fn and records its duration and outcome.
func (r *Runner) timed(subTask string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.recorder.RecordSubTaskEnd(subTask, status, time.Since(start))
	return err
}

// windowOf trims samples to those at or after start.
func windowOf(samples []model.LoadSample, start time.Time) []model.LoadSample {
	out := make([]model.LoadSample, 0, len(samples))
	for _, s := range samples {
		if !s.IntervalStartUTC.Before(start) {
			out = append(out, s)
		}
	}
	return out
}
