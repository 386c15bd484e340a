// Package store_test provides unit tests for the GORM-backed store against a
// real sqlite database file.
package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/store"
	"gridpulse/internal/support/errs"
)

// setupStore opens a migrated sqlite store in a temp directory.
func setupStore(t *testing.T) store.Store {
	t.Helper()

	cfg := config.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "gridpulse_test.db"),
		Pool: config.PoolConfig{
			MaxOpenConns:          5,
			MaxIdleConns:          5,
			AcquireTimeoutSeconds: 5,
		},
	}

	db, err := store.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations(db, cfg))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return store.New(db, cfg)
}

func loadSample(start time.Time, mw float64) model.LoadSample {
	return model.LoadSample{
		IntervalStartUTC: start,
		IntervalEndUTC:   start.Add(5 * time.Minute),
		LoadMW:           mw,
	}
}

func TestGetLatestTimestamp_EmptyStore(t *testing.T) {
	s := setupStore(t)

	ts, err := s.GetLatestTimestamp(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, ts)
}

func TestUpsertLoad_Idempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	samples := []model.LoadSample{
		loadSample(base, 10000),
		loadSample(base.Add(5*time.Minute), 10100),
		loadSample(base.Add(10*time.Minute), 10200),
	}

	_, err := s.UpsertLoad(ctx, samples)
	require.NoError(t, err)

	// Re-upserting the same keys must not create duplicates.
	samples[1].LoadMW = 10150
	_, err = s.UpsertLoad(ctx, samples)
	require.NoError(t, err)

	got, err := s.GetLoadSince(ctx, base)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 10150.0, got[1].LoadMW)
}

func TestUpsertLoad_EmptyBatch(t *testing.T) {
	s := setupStore(t)

	n, err := s.UpsertLoad(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetLoadSince_OrderedAndUTC(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 7, 0, 0, 0, chicago) // 12:00 UTC
	// Insert out of order; the store must return ascending UTC.
	_, err = s.UpsertLoad(ctx, []model.LoadSample{
		loadSample(base.Add(10*time.Minute), 10200),
		loadSample(base, 10000),
		loadSample(base.Add(5*time.Minute), 10100),
	})
	require.NoError(t, err)

	got, err := s.GetLoadSince(ctx, base)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), got[0].IntervalStartUTC)
	assert.Equal(t, time.UTC, got[0].IntervalStartUTC.Location())
	assert.True(t, got[0].IntervalStartUTC.Before(got[1].IntervalStartUTC))
	assert.True(t, got[1].IntervalStartUTC.Before(got[2].IntervalStartUTC))
}

func TestGetLatestTimestamp_ReturnsMaxIntervalEnd(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.UpsertLoad(ctx, []model.LoadSample{
		loadSample(base, 10000),
		loadSample(base.Add(5*time.Minute), 10100),
	})
	require.NoError(t, err)

	ts, err := s.GetLatestTimestamp(ctx)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, base.Add(10*time.Minute), *ts)
	assert.Equal(t, time.UTC, ts.Location())
}

func TestCleanupOldLoad(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := s.UpsertLoad(ctx, []model.LoadSample{
		loadSample(now.AddDate(0, 0, -10), 9000),
		loadSample(now.Add(-time.Hour), 10000),
	})
	require.NoError(t, err)

	deleted, err := s.CleanupOldLoad(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := s.GetLoadSince(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10000.0, got[0].LoadMW)
}

func TestReactorStatus_UpsertAndLatest(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	older := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)
	units := []string{"Byron 1", "Byron 2"}

	_, err := s.UpsertReactorStatus(ctx, []model.ReactorStatusSample{
		{ReportDate: older, UnitName: "Byron 1", PowerPct: 100},
		{ReportDate: older, UnitName: "Byron 2", PowerPct: 98},
		{ReportDate: newer, UnitName: "Byron 1", PowerPct: 95},
		{ReportDate: newer, UnitName: "Byron 2", PowerPct: 97},
		{ReportDate: newer, UnitName: "Dresden 2", PowerPct: 90},
	})
	require.NoError(t, err)

	got, err := s.GetLatestReactorStatus(ctx, units)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, sample := range got {
		assert.Equal(t, newer, sample.ReportDate)
		assert.Contains(t, units, sample.UnitName)
	}

	// Overwriting one unit's reading keeps the composite key unique.
	_, err = s.UpsertReactorStatus(ctx, []model.ReactorStatusSample{
		{ReportDate: newer, UnitName: "Byron 1", PowerPct: 96},
	})
	require.NoError(t, err)

	forDate, err := s.GetReactorStatusForDate(ctx, newer)
	require.NoError(t, err)
	require.Len(t, forDate, 3)
	assert.Equal(t, 96.0, forDate[0].PowerPct) // "Byron 1" sorts first
}

func TestGetLatestReactorStatus_Empty(t *testing.T) {
	s := setupStore(t)

	got, err := s.GetLatestReactorStatus(context.Background(), []string{"Byron 1"})
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestCapacity_LatestPerGenerator(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.UpsertCapacity(ctx, []model.CapacitySample{
		{Period: "2025-03", PlantID: "6023", GeneratorID: "1", NetSummerCapacityMW: 1164, NetWinterCapacityMW: 1208},
		{Period: "2025-04", PlantID: "6023", GeneratorID: "1", NetSummerCapacityMW: 1166, NetWinterCapacityMW: 1210},
		{Period: "2025-04", PlantID: "6023", GeneratorID: "2", NetSummerCapacityMW: 1136, NetWinterCapacityMW: 1176},
		{Period: "2025-04", PlantID: "880", GeneratorID: "1", NetSummerCapacityMW: 908, NetWinterCapacityMW: 940},
	})
	require.NoError(t, err)

	got, err := s.GetLatestCapacity(ctx, []string{"6023", "880"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, sample := range got {
		assert.Equal(t, "2025-04", sample.Period)
	}

	forPeriod, err := s.GetCapacityForPeriod(ctx, "2025-03")
	require.NoError(t, err)
	require.Len(t, forPeriod, 1)
	assert.Equal(t, 1164.0, forPeriod[0].NetSummerCapacityMW)
}

func TestUpsertLoad_StorageErrorClassification(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin().WillReturnError(assert.AnError)

	s := store.New(gormDB, config.DatabaseConfig{Pool: config.PoolConfig{AcquireTimeoutSeconds: 5}})
	_, err = s.UpsertLoad(context.Background(), []model.LoadSample{
		loadSample(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 10000),
	})
	require.Error(t, err)
	assert.True(t, errs.IsStorage(err))
}
