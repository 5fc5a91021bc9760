// Package gridstore reads pre-aggregated per-cell records from the grid store.
// The store is consumed read-only; both record types are fetched with one
// bulk lookup per call.
package gridstore

import "context"

// Placeholder time-of-day shares written by the loader when a cell has no
// real traffic pattern.
const (
	PlaceholderMorning = 33.0
	PlaceholderDay     = 34.0
	PlaceholderNight   = 33.0
)

// StoreRecord holds per-category store counts and optional churn counts for
// one cell.
type StoreRecord struct {
	CellID          string         `json:"cell_id"`
	Counts          map[string]int `json:"counts"`
	ClosureCount    *int           `json:"closure_count,omitempty"`
	OpeningCount    *int           `json:"opening_count,omitempty"`
	PrevPeriodCount *int           `json:"prev_period_count,omitempty"`
}

// Total sums the positive counts across every category.
func (r StoreRecord) Total() int {
	var n int
	for _, c := range r.Counts {
		if c > 0 {
			n += c
		}
	}
	return n
}

// Closures returns the recorded closure count, or zero.
func (r StoreRecord) Closures() int { return positive(r.ClosureCount) }

// Openings returns the recorded opening count, or zero.
func (r StoreRecord) Openings() int { return positive(r.OpeningCount) }

// HasChurn reports whether the cell recorded any closure or opening.
// Churn recorded as all-zero carries no signal.
func (r StoreRecord) HasChurn() bool {
	return r.Closures() > 0 || r.Openings() > 0
}

// ChurnBase is the store population the cell's churn is measured against:
// the previous-period count when recorded, otherwise the current total.
func (r StoreRecord) ChurnBase() int {
	if prev := positive(r.PrevPeriodCount); prev > 0 {
		return prev
	}
	return r.Total()
}

func positive(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

// TrafficRecord holds the floating-population signal for one cell.
type TrafficRecord struct {
	CellID       string   `json:"cell_id"`
	Index        *float64 `json:"index,omitempty"`
	Morning      float64  `json:"morning"`
	Day          float64  `json:"day"`
	Night        float64  `json:"night"`
	WeekendRatio *float64 `json:"weekend_ratio,omitempty"`
}

// IsPlaceholder reports whether the time-of-day triple is exactly 33/34/33.
func (r TrafficRecord) IsPlaceholder() bool {
	return IsPlaceholderTriple(r.Morning, r.Day, r.Night)
}

// IsPlaceholderTriple compares by exact equality.
func IsPlaceholderTriple(morning, day, night float64) bool {
	return morning == PlaceholderMorning && day == PlaceholderDay && night == PlaceholderNight
}

// Reader is the grid store contract. Cells without a record are omitted
// from the result; they are not errors.
type Reader interface {
	StoreRecords(ctx context.Context, cells []string) ([]StoreRecord, error)
	TrafficRecords(ctx context.Context, cells []string) ([]TrafficRecord, error)
}

func intPtr(v int64) *int {
	i := int(v)
	return &i
}

func floatPtr(v float64) *float64 {
	return &v
}
