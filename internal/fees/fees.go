// Package fees converts elapsed session time into usage fees. All
// functions are pure; the lifecycle manager owns when they are applied.
package fees

import (
	"math"
	"time"
)

// Billing policy constants. These mirror the configured defaults and are
// used directly by the calculator so the arithmetic stays testable without
// a config instance; config overrides flow in through Policy.
const (
	FeePerUnit            = 0.01 // per billing unit
	SecondsPerUnit        = 6
	MinimumFee            = 0.01
	MaximumSessionMinutes = 60
	MaximumSessionSeconds = MaximumSessionMinutes * 60
)

// Policy carries the tunable billing parameters.
type Policy struct {
	UnitSeconds     int
	FeePerUnit      float64
	MinimumFee      float64
	MaxBillableTime time.Duration
}

// DefaultPolicy returns the reference billing policy.
func DefaultPolicy() Policy {
	return Policy{
		UnitSeconds:     SecondsPerUnit,
		FeePerUnit:      FeePerUnit,
		MinimumFee:      MinimumFee,
		MaxBillableTime: MaximumSessionSeconds * time.Second,
	}
}

// BillableSeconds returns the whole seconds between start and end, capped
// at the policy maximum. A negative interval bills zero seconds; wall
// clocks are not assumed to advance monotonically across restarts.
func (p Policy) BillableSeconds(start, end time.Time) int64 {
	secs := int64(end.Sub(start) / time.Second)
	if secs < 0 {
		return 0
	}
	maxSecs := int64(p.MaxBillableTime / time.Second)
	if secs > maxSecs {
		return maxSecs
	}
	return secs
}

// UsageFee computes the fee for a billed session between start and end:
// ceil(seconds / unit) units at the per-unit rate, never below the
// minimum fee, rounded to two decimal places.
func (p Policy) UsageFee(start, end time.Time) float64 {
	secs := p.BillableSeconds(start, end)
	units := secs / int64(p.UnitSeconds)
	if secs%int64(p.UnitSeconds) != 0 {
		units++
	}
	fee := float64(units) * p.FeePerUnit
	if fee < p.MinimumFee {
		fee = p.MinimumFee
	}
	return RoundTwo(fee)
}

// DurationMinutes returns the billable duration in minutes, rounded to
// two decimal places. Display helper only.
func (p Policy) DurationMinutes(start, end time.Time) float64 {
	return RoundTwo(float64(p.BillableSeconds(start, end)) / 60)
}

// RoundTwo rounds a monetary value to exactly two decimal places. Every
// arithmetic step in the ledger passes through this so unrounded cents
// never accumulate.
func RoundTwo(v float64) float64 {
	return math.Round(v*100) / 100
}
