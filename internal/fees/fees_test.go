package fees

import (
	"testing"
	"time"
)

func TestUsageFee(t *testing.T) {
	p := DefaultPolicy()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"zero elapsed still bills the minimum", 0, 0.01},
		{"under one unit", 3 * time.Second, 0.01},
		{"exactly one unit", 6 * time.Second, 0.01},
		{"partial second unit rounds up", 7 * time.Second, 0.02},
		{"sixty five seconds", 65 * time.Second, 0.11},
		{"hundred thirty seconds", 130 * time.Second, 0.22},
		{"one hour", time.Hour, 6.00},
		{"beyond the cap bills one hour", 3 * time.Hour, 6.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.UsageFee(start, start.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("UsageFee(%s) = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestUsageFee_Monotonic(t *testing.T) {
	p := DefaultPolicy()
	start := time.Now()

	prev := 0.0
	for secs := 1; secs <= 600; secs += 7 {
		fee := p.UsageFee(start, start.Add(time.Duration(secs)*time.Second))
		if fee < prev {
			t.Fatalf("fee decreased from %v to %v at %ds", prev, fee, secs)
		}
		prev = fee
	}
}

func TestBillableSeconds_ClockSkew(t *testing.T) {
	p := DefaultPolicy()
	start := time.Now()

	// End before start can happen after a host clock reset.
	if got := p.BillableSeconds(start, start.Add(-time.Minute)); got != 0 {
		t.Errorf("negative interval should bill 0 seconds, got %d", got)
	}
}

func TestDurationMinutes(t *testing.T) {
	p := DefaultPolicy()
	start := time.Now()

	if got := p.DurationMinutes(start, start.Add(90*time.Second)); got != 1.5 {
		t.Errorf("DurationMinutes(90s) = %v, want 1.5", got)
	}
}

func TestRoundTwo(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.005, 0.01},
		{0.004, 0.0},
		{10.126, 10.13},
		{0.1 + 0.2, 0.3},
	}
	for _, tt := range tests {
		if got := RoundTwo(tt.in); got != tt.want {
			t.Errorf("RoundTwo(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
