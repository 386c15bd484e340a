// Package app assembles the gridpulse application with uber-fx and runs one
// report cycle per invocation.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"gridpulse/internal/adapter"
	"gridpulse/internal/adapter/eia"
	"gridpulse/internal/adapter/gridstatus"
	"gridpulse/internal/adapter/nrc"
	"gridpulse/internal/analyze"
	"gridpulse/internal/chart"
	"gridpulse/internal/config"
	"gridpulse/internal/estimate"
	"gridpulse/internal/export"
	"gridpulse/internal/metrics"
	"gridpulse/internal/poster"
	"gridpulse/internal/runner"
	"gridpulse/internal/store"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/syncer"
)

// NewDisplayLocation resolves the configured display time zone.
func NewDisplayLocation(cfg *config.Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Gridpulse.System.Timezone)
	if err != nil {
		return nil, errs.ConfigError("app", "invalid display timezone", err)
	}
	return loc, nil
}

// NewLoadSource builds the gridstatus adapter behind the LoadSource interface.
func NewLoadSource(cfg *config.Config) adapter.LoadSource {
	client := gridstatus.NewClient(cfg.Gridpulse.Load.APIKey, cfg.Gridpulse.Load.BaseURL)
	return gridstatus.NewAdapter(client, cfg.Gridpulse.Load)
}

// NewReactorStatusSource builds the NRC adapter.
func NewReactorStatusSource(cfg *config.Config) (adapter.ReactorStatusSource, error) {
	return nrc.NewAdapter(cfg.Gridpulse.Nuclear.NRC)
}

// NewCapacitySource builds the EIA adapter.
func NewCapacitySource(cfg *config.Config) adapter.CapacitySource {
	return eia.NewAdapter(cfg.Gridpulse.Nuclear.EIA)
}

// NewRecorder builds the Prometheus metrics recorder.
func NewRecorder(cfg *config.Config) metrics.Recorder {
	return metrics.NewPrometheusRecorder(cfg.Gridpulse.Metrics)
}

// NewSyncEngine builds the incremental sync engine.
func NewSyncEngine(
	s store.Store,
	loadSource adapter.LoadSource,
	statusSource adapter.ReactorStatusSource,
	capacitySource adapter.CapacitySource,
	cfg *config.Config,
	recorder metrics.Recorder,
) *syncer.Engine {
	return syncer.NewEngine(s, loadSource, statusSource, capacitySource, cfg.Gridpulse.Load, recorder)
}

// NewEstimator builds the generation estimator.
func NewEstimator(s store.Store, cfg *config.Config) *estimate.Estimator {
	return estimate.NewEstimator(s, cfg.Gridpulse.Nuclear)
}

// NewAnalyzers builds both report analyzers.
func NewAnalyzers(s store.Store, est *estimate.Estimator, cfg *config.Config, tz *time.Location) (*analyze.LoadAnalyzer, *analyze.NuclearAnalyzer) {
	return analyze.NewLoadAnalyzer(tz),
		analyze.NewNuclearAnalyzer(s, est, cfg.Gridpulse.Nuclear, cfg.Gridpulse.Posting.Processes.Nuclear, tz)
}

// NewRenderer builds the PNG chart renderer.
func NewRenderer(tz *time.Location) chart.Renderer {
	return chart.NewPNGRenderer(tz)
}

// NewPoster builds the Bluesky poster.
func NewPoster(cfg *config.Config) poster.Poster {
	return poster.NewBlueskyPoster(cfg.Gridpulse.Posting)
}

// NewExporter builds the Parquet exporter with its configured sinks. Returns
// nil when export is disabled.
func NewExporter(s store.Store, cfg *config.Config) (*export.Exporter, error) {
	ec := cfg.Gridpulse.Export
	if !ec.Enabled {
		return nil, nil
	}

	var sinks []export.Sink
	if ec.OutputDir != "" {
		sinks = append(sinks, export.NewLocalSink(ec.OutputDir))
	}
	if ec.GCSBucket != "" {
		gcs, err := export.NewGCSSink(context.Background(), ec.GCSBucket, ec.GCSPrefix, ec.CredentialsFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, gcs)
	}
	if len(sinks) == 0 {
		return nil, errs.Newf(errs.KindConfig, "app", "export is enabled but no output directory or GCS bucket is configured")
	}
	return export.NewExporter(s, ec, sinks), nil
}

// NewRunner builds the cycle runner.
func NewRunner(
	engine *syncer.Engine,
	s store.Store,
	loadAna *analyze.LoadAnalyzer,
	nuclearAna *analyze.NuclearAnalyzer,
	renderer chart.Renderer,
	p poster.Poster,
	exporter *export.Exporter,
	recorder metrics.Recorder,
	cfg *config.Config,
) *runner.Runner {
	return runner.New(runner.Params{
		Engine:          engine,
		Store:           s,
		LoadAnalyzer:    loadAna,
		NuclearAnalyzer: nuclearAna,
		Renderer:        renderer,
		Poster:          p,
		Exporter:        exporter,
		Recorder:        recorder,
		Config:          cfg,
	})
}

// Module wires every application component into the Fx container.
var Module = fx.Options(
	config.Module,
	store.Module,
	fx.Provide(NewDisplayLocation),
	fx.Provide(NewLoadSource),
	fx.Provide(NewReactorStatusSource),
	fx.Provide(NewCapacitySource),
	fx.Provide(NewRecorder),
	fx.Provide(NewSyncEngine),
	fx.Provide(NewEstimator),
	fx.Provide(NewAnalyzers),
	fx.Provide(NewRenderer),
	fx.Provide(NewPoster),
	fx.Provide(NewExporter),
	fx.Provide(NewRunner),
)
