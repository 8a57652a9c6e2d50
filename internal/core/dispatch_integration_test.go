package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

func TestDispatch_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cycles := core.NewCycleService(pool)
	dispatches := core.NewDispatchService(pool)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)

	var dispatchID int

	t.Run("CreateDispatch", func(t *testing.T) {
		_, err := dispatches.CreateDispatch(ctx, 1, cycle.ID, core.DispatchInput{
			DispatchDate: start.AddDate(0, 0, 40),
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "party_name" {
			t.Fatalf("expected party_name validation error, got %v", err)
		}

		d, err := dispatches.CreateDispatch(ctx, 1, cycle.ID, core.DispatchInput{
			DispatchDate:  start.AddDate(0, 0, 40),
			PartyName:     "City Traders",
			VehicleNumber: "KA-05-MX-2211",
			DriverName:    "Ravi",
		})
		if err != nil {
			t.Fatalf("CreateDispatch: %v", err)
		}
		if d.Status != core.DispatchPending {
			t.Errorf("expected pending status, got %s", d.Status)
		}
		dispatchID = d.ID
	})

	t.Run("AddWeighings_AccumulateTotals", func(t *testing.T) {
		if _, err := dispatches.AddWeighing(ctx, 1, cycle.ID, dispatchID, 50, 110.5); err != nil {
			t.Fatalf("AddWeighing 1: %v", err)
		}
		if _, err := dispatches.AddWeighing(ctx, 1, cycle.ID, dispatchID, 45, 99.0); err != nil {
			t.Fatalf("AddWeighing 2: %v", err)
		}
		d, err := dispatches.AddWeighing(ctx, 1, cycle.ID, dispatchID, 55, 122.5)
		if err != nil {
			t.Fatalf("AddWeighing 3: %v", err)
		}

		if d.TotalBirds != 150 {
			t.Errorf("expected 150 birds, got %d", d.TotalBirds)
		}
		if !closeTo(d.TotalWeightKg, 332.0) {
			t.Errorf("expected 332.0 kg, got %v", d.TotalWeightKg)
		}
		if !closeTo(d.AvgWeightKg, 332.0/150) {
			t.Errorf("expected avg %v, got %v", 332.0/150, d.AvgWeightKg)
		}
		if len(d.Weighings) != 3 {
			t.Fatalf("expected 3 weighings, got %d", len(d.Weighings))
		}
		if d.Weighings[2].SerialNo != 3 {
			t.Errorf("expected serial 3 on last weighing, got %d", d.Weighings[2].SerialNo)
		}
	})

	t.Run("DeleteWeighing_RefreshesTotals", func(t *testing.T) {
		d, err := dispatches.GetDispatch(ctx, 1, cycle.ID, dispatchID)
		if err != nil {
			t.Fatalf("GetDispatch: %v", err)
		}
		d, err = dispatches.DeleteWeighing(ctx, 1, cycle.ID, dispatchID, d.Weighings[1].ID)
		if err != nil {
			t.Fatalf("DeleteWeighing: %v", err)
		}
		if d.TotalBirds != 105 || !closeTo(d.TotalWeightKg, 233.0) {
			t.Errorf("expected 105 birds / 233.0 kg, got %d / %v", d.TotalBirds, d.TotalWeightKg)
		}

		// Put it back for the completion test.
		if _, err := dispatches.AddWeighing(ctx, 1, cycle.ID, dispatchID, 45, 99.0); err != nil {
			t.Fatalf("AddWeighing: %v", err)
		}
	})

	t.Run("Complete_FreezesAndDecrements", func(t *testing.T) {
		d, err := dispatches.CompleteDispatch(ctx, 1, cycle.ID, dispatchID)
		if err != nil {
			t.Fatalf("CompleteDispatch: %v", err)
		}
		if d.Status != core.DispatchCompleted {
			t.Errorf("expected completed status, got %s", d.Status)
		}
		if d.CompletedAt == nil {
			t.Error("expected completed_at to be set")
		}
		if d.TotalBirds != 150 {
			t.Errorf("expected 150 birds, got %d", d.TotalBirds)
		}

		c, err := cycles.GetCycle(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetCycle: %v", err)
		}
		if c.CurrentBirds != 850 {
			t.Errorf("expected 850 birds after dispatch, got %d", c.CurrentBirds)
		}

		// Frozen: no further weighings, no second completion.
		var conflict *core.ConflictError
		if _, err := dispatches.AddWeighing(ctx, 1, cycle.ID, dispatchID, 10, 20); !errors.As(err, &conflict) {
			t.Errorf("expected conflict adding weighing to completed dispatch, got %v", err)
		}
		if _, err := dispatches.CompleteDispatch(ctx, 1, cycle.ID, dispatchID); !errors.As(err, &conflict) {
			t.Errorf("expected conflict completing twice, got %v", err)
		}
	})

	t.Run("DeleteCompleted_RestoresBirds", func(t *testing.T) {
		if err := dispatches.DeleteDispatch(ctx, 1, cycle.ID, dispatchID); err != nil {
			t.Fatalf("DeleteDispatch: %v", err)
		}
		c, err := cycles.GetCycle(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetCycle: %v", err)
		}
		if c.CurrentBirds != 1000 {
			t.Errorf("expected 1000 birds restored, got %d", c.CurrentBirds)
		}
	})
}

func TestDispatch_CompleteRequiresWeighings(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cycles := core.NewCycleService(pool)
	dispatches := core.NewDispatchService(pool)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)

	d, err := dispatches.CreateDispatch(ctx, 1, cycle.ID, core.DispatchInput{
		DispatchDate: start.AddDate(0, 0, 40),
		PartyName:    "City Traders",
	})
	if err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}

	_, err = dispatches.CompleteDispatch(ctx, 1, cycle.ID, d.ID)
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Field != "weighings" {
		t.Fatalf("expected weighings validation error, got %v", err)
	}
}

func TestDispatch_OverbookFloorsAndCapsRestore(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cfg := core.DefaultEngineConfig()
	cycles := core.NewCycleService(pool)
	entries := core.NewEntryService(pool, cfg)
	dispatches := core.NewDispatchService(pool)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 100, 20)

	// 10 recorded deaths leave 90 on the books, but the crates held 120.
	_, _, err := entries.RecordEntry(ctx, 1, cycle.ID, core.EntryInput{
		EntryDate: start,
		Mortality: 10,
	})
	if err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}

	d, err := dispatches.CreateDispatch(ctx, 1, cycle.ID, core.DispatchInput{
		DispatchDate: start.AddDate(0, 0, 35),
		PartyName:    "City Traders",
	})
	if err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}
	if _, err := dispatches.AddWeighing(ctx, 1, cycle.ID, d.ID, 120, 250.0); err != nil {
		t.Fatalf("AddWeighing: %v", err)
	}
	if _, err := dispatches.CompleteDispatch(ctx, 1, cycle.ID, d.ID); err != nil {
		t.Fatalf("CompleteDispatch: %v", err)
	}

	c, err := cycles.GetCycle(ctx, 1, cycle.ID)
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if c.CurrentBirds != 0 {
		t.Errorf("expected live count floored at 0, got %d", c.CurrentBirds)
	}

	// Undo the sale: restore only up to start minus recorded mortality.
	if err := dispatches.DeleteDispatch(ctx, 1, cycle.ID, d.ID); err != nil {
		t.Fatalf("DeleteDispatch: %v", err)
	}
	c, err = cycles.GetCycle(ctx, 1, cycle.ID)
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if c.CurrentBirds != 90 {
		t.Errorf("expected 90 birds after capped restore, got %d", c.CurrentBirds)
	}
}
