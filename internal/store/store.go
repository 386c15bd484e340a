// Package store implements the durable, idempotent persistence layer for the
// three sample series. The store is the sole owner of persisted rows; the sync
// engine is its only writer path.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "store"

// Store is the persistence contract the sync engine and the analyzers depend on.
// All returned timestamps are timezone-aware UTC regardless of how rows were
// written. Implementations are safe for concurrent callers.
type Store interface {
	// GetLatestTimestamp returns the maximum interval_end_utc across load
	// samples, or nil when the table is empty.
	GetLatestTimestamp(ctx context.Context) (*time.Time, error)
	// UpsertLoad inserts or overwrites samples by interval start in a single
	// transaction and returns the number of rows affected.
	UpsertLoad(ctx context.Context, samples []model.LoadSample) (int64, error)
	// GetLoadSince returns samples with interval_start_utc >= start, ascending.
	GetLoadSince(ctx context.Context, start time.Time) ([]model.LoadSample, error)
	// CleanupOldLoad deletes load samples older than the given number of days
	// and returns the number of rows deleted.
	CleanupOldLoad(ctx context.Context, days int) (int64, error)

	UpsertReactorStatus(ctx context.Context, samples []model.ReactorStatusSample) (int64, error)
	// GetReactorStatusForDate returns all unit rows stored for the exact report date.
	GetReactorStatusForDate(ctx context.Context, date time.Time) ([]model.ReactorStatusSample, error)
	// GetLatestReactorStatus returns the rows for the most recent report date
	// present, filtered to the given unit set.
	GetLatestReactorStatus(ctx context.Context, units []string) ([]model.ReactorStatusSample, error)

	UpsertCapacity(ctx context.Context, samples []model.CapacitySample) (int64, error)
	// GetCapacityForPeriod returns all rows stored for a "YYYY-MM" period.
	GetCapacityForPeriod(ctx context.Context, period string) ([]model.CapacitySample, error)
	// GetLatestCapacity returns, for each (plant, generator) among the given
	// plants, the row of its most recent period.
	GetLatestCapacity(ctx context.Context, plantIDs []string) ([]model.CapacitySample, error)
}

// GormStore is the GORM-backed Store implementation.
type GormStore struct {
	db             *gorm.DB
	acquireTimeout time.Duration
}

var _ Store = (*GormStore)(nil)

// New creates a Store on an already-opened and migrated database handle.
func New(db *gorm.DB, cfg config.DatabaseConfig) *GormStore {
	return &GormStore{db: db, acquireTimeout: cfg.AcquireTimeout()}
}

// opCtx bounds one logical unit of work by the pool acquisition timeout.
// When all pooled connections stay busy past the deadline the operation fails
// with a storage error instead of blocking the cycle indefinitely.
func (s *GormStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.acquireTimeout)
}

// wrap classifies a database error as a storage error, noting pool timeouts.
func wrap(message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.StorageError(moduleName, "timeout waiting for an available database connection: "+message, err)
	}
	return errs.StorageError(moduleName, message, err)
}

func (s *GormStore) GetLatestTimestamp(ctx context.Context) (*time.Time, error) {
	c, cancel := s.opCtx(ctx)
	defer cancel()

	var e LoadSampleEntity
	err := s.db.WithContext(c).
		Order("interval_end_utc DESC").
		Limit(1).
		Take(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrap("failed to read latest timestamp", err)
	}
	ts := e.IntervalEndUTC.UTC()
	return &ts, nil
}

func (s *GormStore) UpsertLoad(ctx context.Context, samples []model.LoadSample) (int64, error) {
	if len(samples) == 0 {
		logger.Debugf("No load samples to upsert.")
		return 0, nil
	}
	c, cancel := s.opCtx(ctx)
	defer cancel()

	entities := make([]LoadSampleEntity, 0, len(samples))
	for _, s := range samples {
		entities = append(entities, fromDomainLoad(s))
	}

	var affected int64
	err := s.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "interval_start_utc"}},
			DoUpdates: clause.AssignmentColumns([]string{"interval_end_utc", "load_mw"}),
		}).Create(&entities)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, wrap("failed to upsert load samples", err)
	}
	logger.Infof("Upserted %d load samples.", affected)
	return affected, nil
}

func (s *GormStore) GetLoadSince(ctx context.Context, start time.Time) ([]model.LoadSample, error) {
	c, cancel := s.opCtx(ctx)
	defer cancel()

	var entities []LoadSampleEntity
	err := s.db.WithContext(c).
		Where("interval_start_utc >= ?", start.UTC()).
		Order("interval_start_utc ASC").
		Find(&entities).Error
	if err != nil {
		return nil, wrap("failed to read load samples", err)
	}

	samples := make([]model.LoadSample, 0, len(entities))
	for _, e := range entities {
		samples = append(samples, toDomainLoad(e))
	}
	return samples, nil
}

func (s *GormStore) CleanupOldLoad(ctx context.Context, days int) (int64, error) {
	c, cancel := s.opCtx(ctx)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res := s.db.WithContext(c).
		Where("interval_start_utc < ?", cutoff).
		Delete(&LoadSampleEntity{})
	if res.Error != nil {
		return 0, wrap("failed to delete old load samples", res.Error)
	}
	if res.RowsAffected > 0 {
		logger.Infof("Deleted %d load samples older than %d days.", res.RowsAffected, days)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) UpsertReactorStatus(ctx context.Context, samples []model.ReactorStatusSample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	c, cancel := s.opCtx(ctx)
	defer cancel()

	entities := make([]ReactorStatusEntity, 0, len(samples))
	for _, s := range samples {
		entities = append(entities, fromDomainReactorStatus(s))
	}

	var affected int64
	err := s.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "report_date"}, {Name: "unit_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"power_pct"}),
		}).Create(&entities)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, wrap("failed to upsert reactor status samples", err)
	}
	logger.Infof("Upserted %d reactor status samples.", affected)
	return affected, nil
}

func (s *GormStore) GetReactorStatusForDate(ctx context.Context, date time.Time) ([]model.ReactorStatusSample, error) {
	c, cancel := s.opCtx(ctx)
	defer cancel()

	var entities []ReactorStatusEntity
	err := s.db.WithContext(c).
		Where("report_date = ?", date.UTC()).
		Order("unit_name ASC").
		Find(&entities).Error
	if err != nil {
		return nil, wrap("failed to read reactor status samples", err)
	}
	return mapReactorStatus(entities), nil
}

func (s *GormStore) GetLatestReactorStatus(ctx context.Context, units []string) ([]model.ReactorStatusSample, error) {
	c, cancel := s.opCtx(ctx)
	defer cancel()

	var latest ReactorStatusEntity
	err := s.db.WithContext(c).
		Where("unit_name IN ?", units).
		Order("report_date DESC").
		Limit(1).
		Take(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrap("failed to find latest reactor status date", err)
	}

	var entities []ReactorStatusEntity
	err = s.db.WithContext(c).
		Where("report_date = ? AND unit_name IN ?", latest.ReportDate, units).
		Order("unit_name ASC").
		Find(&entities).Error
	if err != nil {
		return nil, wrap("failed to read latest reactor status samples", err)
	}
	return mapReactorStatus(entities), nil
}

func (s *GormStore) UpsertCapacity(ctx context.Context, samples []model.CapacitySample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	c, cancel := s.opCtx(ctx)
	defer cancel()

	entities := make([]CapacityEntity, 0, len(samples))
	for _, s := range samples {
		entities = append(entities, fromDomainCapacity(s))
	}

	var affected int64
	err := s.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "period"}, {Name: "plant_id"}, {Name: "generator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"net_summer_capacity_mw", "net_winter_capacity_mw"}),
		}).Create(&entities)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, wrap("failed to upsert capacity samples", err)
	}
	logger.Infof("Upserted %d capacity samples.", affected)
	return affected, nil
}

func (s *GormStore) GetCapacityForPeriod(ctx context.Context, period string) ([]model.CapacitySample, error) {
	c, cancel := s.opCtx(ctx)
	defer cancel()

	var entities []CapacityEntity
	err := s.db.WithContext(c).
		Where("period = ?", period).
		Order("plant_id ASC, generator_id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, wrap("failed to read capacity samples", err)
	}
	return mapCapacity(entities), nil
}

func (s *GormStore) GetLatestCapacity(ctx context.Context, plantIDs []string) ([]model.CapacitySample, error) {
	c, cancel := s.opCtx(ctx)
	defer cancel()

	// Periods sort lexicographically in "YYYY-MM" form, so descending order
	// yields the newest period first; keep the first row per (plant, generator).
	var entities []CapacityEntity
	err := s.db.WithContext(c).
		Where("plant_id IN ?", plantIDs).
		Order("period DESC, plant_id ASC, generator_id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, wrap("failed to read latest capacity samples", err)
	}

	type key struct{ plant, gen string }
	seen := make(map[key]bool)
	samples := make([]model.CapacitySample, 0, len(entities))
	for _, e := range entities {
		k := key{e.PlantID, e.GeneratorID}
		if seen[k] {
			continue
		}
		seen[k] = true
		samples = append(samples, toDomainCapacity(e))
	}
	return samples, nil
}

func mapReactorStatus(entities []ReactorStatusEntity) []model.ReactorStatusSample {
	samples := make([]model.ReactorStatusSample, 0, len(entities))
	for _, e := range entities {
		samples = append(samples, toDomainReactorStatus(e))
	}
	return samples
}

func mapCapacity(entities []CapacityEntity) []model.CapacitySample {
	samples := make([]model.CapacitySample, 0, len(entities))
	for _, e := range entities {
		samples = append(samples, toDomainCapacity(e))
	}
	return samples
}
