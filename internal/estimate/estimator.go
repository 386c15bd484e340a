// Package estimate implements the generation estimator: it joins the latest
// reactor-status rows with the matching capacity rows to estimate fleet
// generation in MW, seasonally adjusting capacity by report month.
package estimate

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/store"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "estimate"

// Estimator derives generation estimates from stored reactor-status and
// capacity rows. Estimates are ephemeral: recomputed on every analysis
// request, never cached.
type Estimator struct {
	store store.Store
	cfg   config.NuclearConfig
}

// NewEstimator creates an estimator over the given store and nuclear config.
func NewEstimator(st store.Store, cfg config.NuclearConfig) *Estimator {
	return &Estimator{store: st, cfg: cfg}
}

// SeasonalCapacity selects the capacity appropriate for the report month:
// June through September use summer capacity, December through March use
// winter capacity, and the shoulder months use the mean of the two.
func SeasonalCapacity(month time.Month, summerMW, winterMW float64) float64 {
	switch month {
	case time.June, time.July, time.August, time.September:
		return summerMW
	case time.December, time.January, time.February, time.March:
		return winterMW
	default:
		return (summerMW + winterMW) / 2
	}
}

// Estimate computes the per-unit generation estimates from the latest stored
// reactor-status and capacity rows. Missing data on either side is a
// data-availability error: generation cannot be estimated from one source.
func (e *Estimator) Estimate(ctx context.Context) ([]model.GenerationEstimate, error) {
	units := make([]string, 0)
	for _, mapping := range e.cfg.EIA.PlantMappings {
		units = append(units, mapping.NRCNames...)
	}

	statusRows, err := e.store.GetLatestReactorStatus(ctx, units)
	if err != nil {
		return nil, err
	}

	plantIDs := make([]string, 0, len(e.cfg.EIA.PlantIDs))
	for _, pid := range e.cfg.EIA.PlantIDs {
		plantIDs = append(plantIDs, strconv.Itoa(pid))
	}
	capacityRows, err := e.store.GetLatestCapacity(ctx, plantIDs)
	if err != nil {
		return nil, err
	}

	if len(statusRows) == 0 || len(capacityRows) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "missing required reactor status or capacity data")
	}

	statusByUnit := make(map[string]model.ReactorStatusSample, len(statusRows))
	for _, s := range statusRows {
		statusByUnit[s.UnitName] = s
	}

	type capKey struct{ plant, gen string }
	capacityByKey := make(map[capKey]model.CapacitySample, len(capacityRows))
	for _, c := range capacityRows {
		capacityByKey[capKey{c.PlantID, c.GeneratorID}] = c
	}

	var estimates []model.GenerationEstimate
	for plant, mapping := range e.cfg.EIA.PlantMappings {
		plantID := strconv.Itoa(mapping.EIAPlantID)
		for _, unitName := range mapping.NRCNames {
			status, ok := statusByUnit[unitName]
			if !ok {
				continue
			}
			capacity, ok := capacityByKey[capKey{plantID, generatorIDFromUnit(unitName)}]
			if !ok {
				logger.Warnf("No capacity row for plant %s unit %q, skipping.", plant, unitName)
				continue
			}

			selected := SeasonalCapacity(status.ReportDate.UTC().Month(),
				capacity.NetSummerCapacityMW, capacity.NetWinterCapacityMW)
			estimates = append(estimates, model.GenerationEstimate{
				Timestamp:    status.ReportDate.UTC(),
				Unit:         unitName,
				EstimatedMW:  selected * (status.PowerPct / 100),
				CapacityUsed: selected,
			})
		}
	}

	if len(estimates) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "no unit could be matched to a capacity row")
	}
	return estimates, nil
}

// generatorIDFromUnit extracts the trailing numeric generator identifier from
// an upstream unit name ("Braidwood 1" -> "1").
func generatorIDFromUnit(unitName string) string {
	fields := strings.Fields(unitName)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// AlignToLoad aligns the (much coarser) fleet estimate to the load series'
// native sampling interval: it computes the load series' modal timestamp
// delta, builds a uniform time grid at that interval, forward-fills the fleet
// total onto the grid, and inner-joins the result to the load series on
// timestamp. Forward-fill is the deliberate interpolation policy; nuclear
// status updates far less often than load. An empty join is a
// data-availability error: there is no basis for comparison.
func AlignToLoad(load []model.LoadSample, estimates []model.GenerationEstimate) ([]model.JoinedRow, error) {
	if len(load) == 0 || len(estimates) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "cannot align empty series")
	}

	sorted := make([]model.LoadSample, len(load))
	copy(sorted, load)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].IntervalStartUTC.Before(sorted[j].IntervalStartUTC)
	})

	interval, err := ModalInterval(sorted)
	if err != nil {
		return nil, err
	}

	// Fleet total per estimate timestamp, ascending.
	totals := make(map[time.Time]float64)
	for _, est := range estimates {
		totals[est.Timestamp.UTC()] += est.EstimatedMW
	}
	estTimes := make([]time.Time, 0, len(totals))
	for ts := range totals {
		estTimes = append(estTimes, ts)
	}
	sort.Slice(estTimes, func(i, j int) bool { return estTimes[i].Before(estTimes[j]) })

	// Uniform grid spanning the load window, forward-filled with the fleet
	// total, then inner-joined against the load rows.
	loadByTime := make(map[time.Time]float64, len(sorted))
	for _, s := range sorted {
		loadByTime[s.IntervalStartUTC.UTC()] = s.LoadMW
	}

	start := sorted[0].IntervalStartUTC.UTC()
	end := sorted[len(sorted)-1].IntervalStartUTC.UTC()

	var joined []model.JoinedRow
	estIdx := -1
	for ts := start; !ts.After(end); ts = ts.Add(interval) {
		for estIdx+1 < len(estTimes) && !estTimes[estIdx+1].After(ts) {
			estIdx++
		}
		if estIdx < 0 {
			// No estimate yet at this grid point; nothing to forward-fill.
			continue
		}
		loadMW, ok := loadByTime[ts]
		if !ok {
			continue
		}
		joined = append(joined, model.JoinedRow{
			Timestamp:   ts,
			LoadMW:      loadMW,
			EstimatedMW: totals[estTimes[estIdx]],
		})
	}

	if len(joined) == 0 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "no overlap between load and estimated generation series")
	}
	return joined, nil
}

// ModalInterval returns the most common delta between consecutive samples of
// an ascending load series.
func ModalInterval(sorted []model.LoadSample) (time.Duration, error) {
	if len(sorted) < 2 {
		return 0, errs.Newf(errs.KindAvailability, moduleName, "cannot determine sampling interval from load data")
	}
	counts := make(map[time.Duration]int)
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].IntervalStartUTC.Sub(sorted[i-1].IntervalStartUTC)
		if d > 0 {
			counts[d]++
		}
	}
	var mode time.Duration
	best := 0
	for d, n := range counts {
		if n > best || (n == best && (mode == 0 || d < mode)) {
			mode = d
			best = n
		}
	}
	if mode <= 0 {
		return 0, errs.Newf(errs.KindAvailability, moduleName, "cannot determine sampling interval from load data")
	}
	return mode, nil
}
