// Package adapter defines the source contracts between the upstream data
// providers and the sync engine. Each adapter normalizes one feed into store
// records and enforces that feed's idiosyncrasies; adapters never write to the
// store themselves.
package adapter

import (
	"context"
	"time"

	"gridpulse/internal/domain/model"
)

// LoadSource fetches grid-load samples for a half-open [start, end) window.
// An empty result is a legitimate outcome, not an error.
type LoadSource interface {
	FetchLoad(ctx context.Context, start, end time.Time) ([]model.LoadSample, error)
}

// ReactorStatusSource fetches the current reactor status feed, normalized and
// filtered to the configured unit allow-list.
type ReactorStatusSource interface {
	FetchStatus(ctx context.Context) ([]model.ReactorStatusSample, error)
}

// CapacitySource fetches recent generator-capacity periods, deduplicated to
// one row per (plant, generator) keeping the most recent period.
type CapacitySource interface {
	FetchCapacity(ctx context.Context) ([]model.CapacitySample, error)
}

// NormalizeUTC interprets a possibly-naive timestamp as UTC and converts any
// non-UTC timestamp to UTC. Callers parse naive timestamps into time.UTC
// already; this keeps the invariant explicit at the adapter boundary.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC()
}
