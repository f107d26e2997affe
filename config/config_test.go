package config

import (
	"os"
	"testing"
	"time"
)

func TestGet_Singleton(t *testing.T) {
	// Reset for clean test
	Reload()

	// Get config twice
	cfg1 := Get()
	cfg2 := Get()

	// Should be the same instance
	if cfg1 != cfg2 {
		t.Error("Get() should return the same instance (singleton pattern)")
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		shouldPanic bool
	}{
		{
			name: "valid config",
			env: map[string]string{
				"SERVER_PORT": "5000",
				"ENV":         "development",
				"LOG_LEVEL":   "info",
			},
			shouldPanic: false,
		},
		{
			name: "invalid port",
			env: map[string]string{
				"SERVER_PORT": "invalid",
			},
			shouldPanic: true,
		},
		{
			name: "invalid environment",
			env: map[string]string{
				"ENV": "invalid",
			},
			shouldPanic: true,
		},
		{
			name: "invalid billing unit",
			env: map[string]string{
				"BILLING_UNIT_SECONDS": "0",
			},
			shouldPanic: true,
		},
		{
			name: "idle timeout shorter than heartbeat",
			env: map[string]string{
				"JANITOR_IDLE_TIMEOUT":       "1s",
				"BILLING_HEARTBEAT_INTERVAL": "6s",
			},
			shouldPanic: true,
		},
		{
			name: "missing jwt secret in production",
			env: map[string]string{
				"ENV": "production",
			},
			shouldPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.env {
					os.Unsetenv(key)
				}
				Reload()
			}()

			defer func() {
				r := recover()
				if tt.shouldPanic && r == nil {
					t.Error("expected panic for invalid configuration")
				}
				if !tt.shouldPanic && r != nil {
					t.Errorf("unexpected panic: %v", r)
				}
			}()

			Reload()
			Get()
		})
	}
}

func TestConfig_BillingDefaults(t *testing.T) {
	Reload()
	cfg := Get()

	if cfg.Billing.UnitSeconds != 6 {
		t.Errorf("expected 6 second billing unit, got %d", cfg.Billing.UnitSeconds)
	}
	if cfg.Billing.FeePerUnit != 0.01 {
		t.Errorf("expected 0.01 fee per unit, got %v", cfg.Billing.FeePerUnit)
	}
	if cfg.Billing.MaxBillableTime != 60*time.Minute {
		t.Errorf("expected 60 minute billing cap, got %s", cfg.Billing.MaxBillableTime)
	}
}

func TestConfig_GetServerAddress(t *testing.T) {
	Reload()
	cfg := Get()

	want := cfg.Server.Host + ":" + cfg.Server.Port
	if got := cfg.GetServerAddress(); got != want {
		t.Errorf("GetServerAddress() = %q, want %q", got, want)
	}
}
