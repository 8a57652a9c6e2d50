package config

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/poultry_test")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "")
	t.Setenv("BAG_WEIGHT_KG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Farm.BagWeightKg != 50 {
		t.Errorf("bag weight = %v, want 50", cfg.Farm.BagWeightKg)
	}
	if cfg.Farm.ChickStartWeightGrams != 45 {
		t.Errorf("chick weight = %v, want 45", cfg.Farm.ChickStartWeightGrams)
	}
	if cfg.Farm.LowStockThresholdBags != 3 {
		t.Errorf("low stock threshold = %d, want 3", cfg.Farm.LowStockThresholdBags)
	}
	if cfg.Farm.TargetCycleDays != 42 {
		t.Errorf("target days = %d, want 42", cfg.Farm.TargetCycleDays)
	}
	if want := decimal.NewFromInt(22); !cfg.Costs.ChickCostPerBird.Equal(want) {
		t.Errorf("chick cost = %s, want %s", cfg.Costs.ChickCostPerBird, want)
	}
	if cfg.Costs.FallbackFCR != 1.53 {
		t.Errorf("fallback fcr = %v, want 1.53", cfg.Costs.FallbackFCR)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BAG_WEIGHT_KG", "25")
	t.Setenv("LOW_STOCK_THRESHOLD_BAGS", "5")
	t.Setenv("FEED_COST_PER_BAG", "1800")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Farm.BagWeightKg != 25 {
		t.Errorf("bag weight = %v, want 25", cfg.Farm.BagWeightKg)
	}
	if cfg.Farm.LowStockThresholdBags != 5 {
		t.Errorf("low stock threshold = %d, want 5", cfg.Farm.LowStockThresholdBags)
	}
	if want := decimal.NewFromInt(1800); !cfg.Costs.FeedCostPerBag.Equal(want) {
		t.Errorf("feed cost per bag = %s, want %s", cfg.Costs.FeedCostPerBag, want)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T)
		wantErr string
	}{
		{
			name: "missing database url",
			setup: func(t *testing.T) {
				t.Setenv("DATABASE_URL", "")
				t.Setenv("JWT_SECRET", "test-secret")
			},
			wantErr: "DATABASE_URL",
		},
		{
			name: "missing jwt secret",
			setup: func(t *testing.T) {
				t.Setenv("DATABASE_URL", "postgres://localhost/poultry_test")
				t.Setenv("JWT_SECRET", "")
			},
			wantErr: "JWT_SECRET",
		},
		{
			name: "malformed bag weight",
			setup: func(t *testing.T) {
				setRequired(t)
				t.Setenv("BAG_WEIGHT_KG", "heavy")
			},
			wantErr: "BAG_WEIGHT_KG",
		},
		{
			name: "zero target days",
			setup: func(t *testing.T) {
				setRequired(t)
				t.Setenv("TARGET_CYCLE_DAYS", "0")
			},
			wantErr: "TARGET_CYCLE_DAYS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			_, err := Load("")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err.Error(), tt.wantErr)
			}
		})
	}
}
