// Package model holds the domain types exchanged between the source adapters,
// the sync engine, the store and the analyzers. All timestamps are UTC.
package model

import "time"

// LoadSample is one grid-load observation. Uniqueness follows IntervalStartUTC;
// a later fetch of the same interval overwrites the earlier one.
type LoadSample struct {
	IntervalStartUTC time.Time
	IntervalEndUTC   time.Time
	LoadMW           float64
}

// ReactorStatusSample is one reactor unit's reported power level at a report
// time. ReportDate carries the corrected collection time (the upstream feed's
// midnight stamp shifted to the true ~9 AM Eastern collection time), in UTC.
type ReactorStatusSample struct {
	ReportDate time.Time
	UnitName   string
	PowerPct   float64
}

// CapacitySample is one generator's seasonal net capacity for a monthly
// reporting period ("YYYY-MM").
type CapacitySample struct {
	Period              string
	PlantID             string
	GeneratorID         string
	NetSummerCapacityMW float64
	NetWinterCapacityMW float64
}

// GenerationEstimate is a derived, never-persisted estimate of one unit's
// generation at the report timestamp. Recomputed on every analysis request.
type GenerationEstimate struct {
	Timestamp    time.Time
	Unit         string
	EstimatedMW  float64
	CapacityUsed float64
}

// JoinedRow is one row of the load series inner-joined with the forward-filled
// fleet generation estimate, on a uniform time grid at the load series' modal
// sampling interval.
type JoinedRow struct {
	Timestamp   time.Time
	LoadMW      float64
	EstimatedMW float64
}
