package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"

	"github.com/shopspring/decimal"
)

func TestFeed_PurchaseLedger(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cfg := core.DefaultEngineConfig()
	cycles := core.NewCycleService(pool)
	feed := core.NewFeedService(pool, cfg)
	entries := core.NewEntryService(pool, cfg)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)

	t.Run("AddPurchase_RaisesStock", func(t *testing.T) {
		p, err := feed.AddPurchase(ctx, 1, cycle.ID, core.FeedPurchaseInput{
			PurchaseDate: start.AddDate(0, 0, 2),
			FeedName:     "Starter Crumb",
			BillNumber:   "INV-1042",
			Bags:         10,
			PricePerKg:   decimal.NewFromInt(40),
		})
		if err != nil {
			t.Fatalf("AddPurchase: %v", err)
		}
		// Bag weight defaults to the configured 50kg: 10 x 50 x 40.
		if !p.TotalCost.Equal(decimal.NewFromInt(20000)) {
			t.Errorf("expected total cost 20000, got %s", p.TotalCost)
		}
		if p.BagWeightKg != 50 {
			t.Errorf("expected default bag weight 50, got %v", p.BagWeightKg)
		}

		c, err := cycles.GetCycle(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetCycle: %v", err)
		}
		if c.RemainingFeedBags != 30 {
			t.Errorf("expected 30 bags after purchase, got %d", c.RemainingFeedBags)
		}
	})

	t.Run("GetFeedStatus", func(t *testing.T) {
		status, err := feed.GetFeedStatus(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetFeedStatus: %v", err)
		}
		if status.TotalSuppliedBags != 30 {
			t.Errorf("expected 30 supplied, got %d", status.TotalSuppliedBags)
		}
		if status.TotalConsumedBags != 0 || status.RemainingBags != 30 {
			t.Errorf("expected 0 consumed / 30 remaining, got %d / %d",
				status.TotalConsumedBags, status.RemainingBags)
		}
		if status.LowStock {
			t.Error("expected low stock to be false at 30 bags")
		}
	})

	t.Run("DeletePurchase_AfterConsumption_Rejected", func(t *testing.T) {
		// Eat into the purchased bags, then try to remove the purchase.
		_, _, err := entries.RecordEntry(ctx, 1, cycle.ID, core.EntryInput{
			EntryDate:        start.AddDate(0, 0, 3),
			FeedBagsConsumed: 25,
		})
		if err != nil {
			t.Fatalf("RecordEntry: %v", err)
		}

		purchases, err := feed.GetPurchases(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetPurchases: %v", err)
		}
		if len(purchases) != 1 {
			t.Fatalf("expected 1 purchase, got %d", len(purchases))
		}

		var conflict *core.ConflictError
		if err := feed.DeletePurchase(ctx, 1, cycle.ID, purchases[0].ID); !errors.As(err, &conflict) {
			t.Fatalf("expected conflict deleting consumed purchase, got %v", err)
		}
	})

	t.Run("DeletePurchase_Unconsumed_RestoresStock", func(t *testing.T) {
		p, err := feed.AddPurchase(ctx, 1, cycle.ID, core.FeedPurchaseInput{
			PurchaseDate: start.AddDate(0, 0, 4),
			FeedName:     "Finisher Pellet",
			Bags:         8,
		})
		if err != nil {
			t.Fatalf("AddPurchase: %v", err)
		}
		if err := feed.DeletePurchase(ctx, 1, cycle.ID, p.ID); err != nil {
			t.Fatalf("DeletePurchase: %v", err)
		}

		c, err := cycles.GetCycle(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetCycle: %v", err)
		}
		if c.RemainingFeedBags != 5 {
			t.Errorf("expected 5 bags after delete, got %d", c.RemainingFeedBags)
		}
	})
}

func TestFeed_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cfg := core.DefaultEngineConfig()
	cycles := core.NewCycleService(pool)
	feed := core.NewFeedService(pool, cfg)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)

	tests := []struct {
		name  string
		input core.FeedPurchaseInput
		field string
	}{
		{"missing date", core.FeedPurchaseInput{FeedName: "Starter", Bags: 5}, "purchase_date"},
		{"missing name", core.FeedPurchaseInput{PurchaseDate: start, Bags: 5}, "feed_name"},
		{"zero bags", core.FeedPurchaseInput{PurchaseDate: start, FeedName: "Starter"}, "bags"},
		{"negative price", core.FeedPurchaseInput{
			PurchaseDate: start, FeedName: "Starter", Bags: 5,
			PricePerKg: decimal.NewFromInt(-1),
		}, "price_per_kg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := feed.AddPurchase(ctx, 1, cycle.ID, tt.input)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}

	t.Run("archived cycle rejected", func(t *testing.T) {
		if _, err := cycles.ArchiveCycle(ctx, 1, cycle.ID, start.AddDate(0, 0, 42)); err != nil {
			t.Fatalf("ArchiveCycle: %v", err)
		}
		_, err := feed.AddPurchase(ctx, 1, cycle.ID, core.FeedPurchaseInput{
			PurchaseDate: start,
			FeedName:     "Starter",
			Bags:         5,
		})
		var conflict *core.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected conflict on archived cycle, got %v", err)
		}
	})
}
