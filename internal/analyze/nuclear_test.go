package analyze

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/estimate"
	"gridpulse/internal/support/errs"
)

// stubStore serves canned nuclear-side rows to the analyzer and estimator.
type stubStore struct {
	status   []model.ReactorStatusSample
	capacity []model.CapacitySample
}

func (s *stubStore) GetLatestTimestamp(ctx context.Context) (*time.Time, error) { return nil, nil }
func (s *stubStore) UpsertLoad(ctx context.Context, samples []model.LoadSample) (int64, error) {
	return 0, nil
}
func (s *stubStore) GetLoadSince(ctx context.Context, start time.Time) ([]model.LoadSample, error) {
	return nil, nil
}
func (s *stubStore) CleanupOldLoad(ctx context.Context, days int) (int64, error) { return 0, nil }
func (s *stubStore) UpsertReactorStatus(ctx context.Context, samples []model.ReactorStatusSample) (int64, error) {
	return 0, nil
}
func (s *stubStore) GetReactorStatusForDate(ctx context.Context, date time.Time) ([]model.ReactorStatusSample, error) {
	return nil, nil
}
func (s *stubStore) GetLatestReactorStatus(ctx context.Context, units []string) ([]model.ReactorStatusSample, error) {
	return s.status, nil
}
func (s *stubStore) UpsertCapacity(ctx context.Context, samples []model.CapacitySample) (int64, error) {
	return 0, nil
}
func (s *stubStore) GetCapacityForPeriod(ctx context.Context, period string) ([]model.CapacitySample, error) {
	return nil, nil
}
func (s *stubStore) GetLatestCapacity(ctx context.Context, plantIDs []string) ([]model.CapacitySample, error) {
	return s.capacity, nil
}

func testNuclearConfig() config.NuclearConfig {
	return config.NuclearConfig{
		NRC: config.NRCConfig{Units: []string{"Byron 1"}},
		EIA: config.EIAConfig{
			PlantIDs: []int{6022},
			PlantMappings: map[string]config.PlantMapping{
				"byron": {EIAPlantID: 6022, NRCNames: []string{"Byron 1"}},
			},
		},
	}
}

func newTestAnalyzer(st *stubStore, requireFresh bool, now time.Time) *NuclearAnalyzer {
	cfg := testNuclearConfig()
	a := NewNuclearAnalyzer(st, estimate.NewEstimator(st, cfg), cfg,
		config.ProcessConfig{Enabled: true, RequireRecentNRCData: requireFresh}, time.UTC)
	a.now = func() time.Time { return now }
	return a
}

func fiveMinuteSeries(start time.Time, values ...float64) []model.LoadSample {
	out := make([]model.LoadSample, 0, len(values))
	for i, v := range values {
		ts := start.Add(time.Duration(i) * 5 * time.Minute)
		out = append(out, model.LoadSample{
			IntervalStartUTC: ts,
			IntervalEndUTC:   ts.Add(5 * time.Minute),
			LoadMW:           v,
		})
	}
	return out
}

func TestNuclearAnalyze(t *testing.T) {
	reportDate := time.Date(2025, 7, 10, 13, 0, 0, 0, time.UTC)
	st := &stubStore{
		status: []model.ReactorStatusSample{
			{ReportDate: reportDate, UnitName: "Byron 1", PowerPct: 100},
		},
		capacity: []model.CapacitySample{
			{Period: "2025-05", PlantID: "6022", GeneratorID: "1", NetSummerCapacityMW: 8500, NetWinterCapacityMW: 8800},
		},
	}

	load := fiveMinuteSeries(reportDate, 10000, 8000, 8000, 9000)
	a := newTestAnalyzer(st, false, reportDate.Add(time.Hour))

	stats, err := a.Analyze(context.Background(), load)
	require.NoError(t, err)

	// The 8500 MW fleet estimate forward-fills across all four load rows.
	require.Len(t, stats.Joined, 4)
	assert.InDelta(t, 34000.0/35000.0*100, stats.NuclearPct, 1e-9)
	assert.Equal(t, 50.0, stats.FullCoveragePct)
	assert.Equal(t, 34000.0, stats.TotalNuclearMW)
	assert.Equal(t, 35000.0, stats.TotalLoadMW)
	assert.Equal(t, load[3].IntervalStartUTC, stats.ReportTime)
}

func TestNuclearAnalyze_FreshnessGate(t *testing.T) {
	reportDate := time.Date(2025, 7, 10, 13, 0, 0, 0, time.UTC)
	st := &stubStore{
		status: []model.ReactorStatusSample{
			{ReportDate: reportDate, UnitName: "Byron 1", PowerPct: 100},
		},
		capacity: []model.CapacitySample{
			{Period: "2025-05", PlantID: "6022", GeneratorID: "1", NetSummerCapacityMW: 8500, NetWinterCapacityMW: 8800},
		},
	}
	load := fiveMinuteSeries(reportDate, 10000, 9000)

	// A 30-hour-old report is rejected.
	stale := newTestAnalyzer(st, true, reportDate.Add(30*time.Hour))
	_, err := stale.Analyze(context.Background(), load)
	require.Error(t, err)
	assert.True(t, errs.IsAvailability(err))

	// The same report within the limit passes.
	fresh := newTestAnalyzer(st, true, reportDate.Add(12*time.Hour))
	_, err = fresh.Analyze(context.Background(), load)
	require.NoError(t, err)

	// With the gate disabled the stale report is still analyzed.
	ungated := newTestAnalyzer(st, false, reportDate.Add(30*time.Hour))
	_, err = ungated.Analyze(context.Background(), load)
	require.NoError(t, err)
}

func TestNuclearAnalyze_NoStatusData(t *testing.T) {
	st := &stubStore{}
	a := newTestAnalyzer(st, true, time.Date(2025, 7, 10, 13, 0, 0, 0, time.UTC))

	_, err := a.Analyze(context.Background(), fiveMinuteSeries(time.Now().UTC(), 10000, 9000))
	require.Error(t, err)
	assert.True(t, errs.IsAvailability(err))
}

func TestNuclearAnalyze_EmptyLoad(t *testing.T) {
	st := &stubStore{}
	a := newTestAnalyzer(st, false, time.Now())

	_, err := a.Analyze(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errs.IsAvailability(err))
}

func TestFormatMessage_Nuclear(t *testing.T) {
	st := &stubStore{}
	a := newTestAnalyzer(st, false, time.Now())

	got := a.FormatMessage(&NuclearStats{NuclearPct: 97.1428, FullCoveragePct: 50.0})
	want := "⚛️⚡️ Over the last 24 hours, enough nuclear energy was available to supply 97% of overall electricity demand in northern Illinois.\n\n" +
		"⏰ Nuclear plants could meet all electricity demand 50% of the last 24 hours."
	assert.Equal(t, want, got)
}
