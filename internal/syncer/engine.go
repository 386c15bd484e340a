// Package syncer implements the incremental sync engine: it decides what
// window to fetch from each source, fetches it (chunked when large), persists
// only validated records, and serves back a consistent read window from the
// store for downstream analysis.
package syncer

import (
	"context"
	"time"

	"gridpulse/internal/adapter"
	"gridpulse/internal/adapter/eia"
	"gridpulse/internal/adapter/nrc"
	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/metrics"
	"gridpulse/internal/store"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "syncer"

// FetchStartBuffer is added to the latest stored timestamp when computing the
// next fetch window, to avoid re-fetching a partially-closed interval.
const FetchStartBuffer = time.Minute

// Engine orchestrates the source adapters against the store. The engine is
// the sole writer path into the store.
type Engine struct {
	store          store.Store
	loadSource     adapter.LoadSource
	statusSource   adapter.ReactorStatusSource
	capacitySource adapter.CapacitySource
	loadCfg        config.LoadConfig
	recorder       metrics.Recorder
	now            func() time.Time
}

// NewEngine creates a sync engine over the given store and sources.
func NewEngine(
	st store.Store,
	loadSource adapter.LoadSource,
	statusSource adapter.ReactorStatusSource,
	capacitySource adapter.CapacitySource,
	loadCfg config.LoadConfig,
	recorder metrics.Recorder,
) *Engine {
	return &Engine{
		store:          st,
		loadSource:     loadSource,
		statusSource:   statusSource,
		capacitySource: capacitySource,
		loadCfg:        loadCfg,
		recorder:       recorder,
		now:            time.Now,
	}
}

// recordUpserted is nil-safe so tests can construct the engine without a
// metrics recorder.
func (e *Engine) recordUpserted(dataset string, count int64) {
	if e.recorder != nil {
		e.recorder.RecordRowsUpserted(dataset, count)
	}
}

// SyncLoad performs one incremental load sync and returns the stored rows
// within the configured display window. The returned dataset always comes
// from the store, never from the adapter response, so callers get a
// consistent view whether or not new data was needed.
func (e *Engine) SyncLoad(ctx context.Context) ([]model.LoadSample, error) {
	end := e.now().UTC()

	latest, err := e.store.GetLatestTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	var start time.Time
	if latest != nil {
		start = latest.Add(FetchStartBuffer)
		logger.Infof("Found existing data, fetching from %s onwards.", start.Format(time.RFC3339))
	} else {
		start = end.AddDate(0, 0, -e.loadCfg.InitialDaysBack)
		logger.Infof("No existing data found, performing initial load from %s to %s.",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	if start.Before(end) {
		if err := e.fetchAndPersist(ctx, start, end); err != nil {
			return nil, err
		}
	} else {
		logger.Infof("Store is up to date, no new data to fetch.")
	}

	displayStart := end.AddDate(0, 0, -e.loadCfg.DaysBack)
	samples, err := e.store.GetLoadSince(ctx, displayStart)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "no load data available for analysis")
	}
	return samples, nil
}

// fetchAndPersist fetches [start, end), splitting into fixed-size chunks when
// the window exceeds the chunk size. Each chunk is committed before the next
// is fetched, so an interrupted backfill resumes from the latest committed
// timestamp rather than the original start.
func (e *Engine) fetchAndPersist(ctx context.Context, start, end time.Time) error {
	chunkSize := time.Duration(e.loadCfg.ChunkDays) * 24 * time.Hour

	if end.Sub(start) <= chunkSize {
		samples, err := e.loadSource.FetchLoad(ctx, start, end)
		if err != nil {
			return err
		}
		n, err := e.store.UpsertLoad(ctx, samples)
		if err != nil {
			return err
		}
		e.recordUpserted("load", n)
		return nil
	}

	logger.Infof("Performing chunked fetch over %s.", end.Sub(start))
	for current := start; current.Before(end); {
		chunkEnd := current.Add(chunkSize)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		logger.Infof("Fetching chunk from %s to %s.", current.Format(time.RFC3339), chunkEnd.Format(time.RFC3339))

		samples, err := e.loadSource.FetchLoad(ctx, current, chunkEnd)
		if err != nil {
			return err
		}
		n, err := e.store.UpsertLoad(ctx, samples)
		if err != nil {
			return err
		}
		e.recordUpserted("load", n)
		current = chunkEnd
	}
	return nil
}

// SyncReactorStatus fetches the current reactor status feed and upserts the
// rows that actually changed. The tolerance comparison runs against the rows
// already stored for the feed's most recent report date.
func (e *Engine) SyncReactorStatus(ctx context.Context) error {
	incoming, err := e.statusSource.FetchStatus(ctx)
	if err != nil {
		return err
	}
	if len(incoming) == 0 {
		logger.Warnf("No valid reactor status data to store.")
		return nil
	}

	latestDate := incoming[0].ReportDate
	for _, s := range incoming[1:] {
		if s.ReportDate.After(latestDate) {
			latestDate = s.ReportDate
		}
	}

	// The change check runs over the newest report date only; the feed
	// carries a year of history per unit and older dates never change.
	latest := make([]model.ReactorStatusSample, 0, len(incoming))
	for _, s := range incoming {
		if s.ReportDate.Equal(latestDate) {
			latest = append(latest, s)
		}
	}

	existing, err := e.store.GetReactorStatusForDate(ctx, latestDate)
	if err != nil {
		return err
	}
	if len(existing) > 0 && len(nrc.FilterChanged(existing, latest)) == 0 {
		logger.Infof("No changes in reactor status for %s, skipping upsert.", latestDate.Format(time.RFC3339))
		return nil
	}
	n, err := e.store.UpsertReactorStatus(ctx, incoming)
	if err != nil {
		return err
	}
	e.recordUpserted("reactor_status", n)
	return nil
}

// SyncCapacity fetches recent capacity data and upserts it unless the newest
// period's values are unchanged within tolerance.
func (e *Engine) SyncCapacity(ctx context.Context) error {
	incoming, err := e.capacitySource.FetchCapacity(ctx)
	if err != nil {
		return err
	}
	if len(incoming) == 0 {
		return nil
	}

	latestPeriod := incoming[0].Period
	for _, s := range incoming[1:] {
		if s.Period > latestPeriod {
			latestPeriod = s.Period
		}
	}

	existing, err := e.store.GetCapacityForPeriod(ctx, latestPeriod)
	if err != nil {
		return err
	}
	if len(existing) > 0 && !eia.HasChanges(existing, incoming) {
		logger.Infof("No changes in capacity data for period %s, skipping upsert.", latestPeriod)
		return nil
	}
	n, err := e.store.UpsertCapacity(ctx, incoming)
	if err != nil {
		return err
	}
	e.recordUpserted("capacity", n)
	return nil
}
