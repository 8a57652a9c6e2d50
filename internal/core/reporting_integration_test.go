package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"

	"github.com/shopspring/decimal"
)

func TestReporting_CycleStats(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cfg := core.DefaultEngineConfig()
	cycles := core.NewCycleService(pool)
	entries := core.NewEntryService(pool, cfg)
	costs := core.NewCostsService(pool)
	reports := core.NewReportingService(pool, cfg)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := start.AddDate(0, 0, 1)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)

	_, _, err := entries.RecordEntry(ctx, 1, cycle.ID, core.EntryInput{
		EntryDate: start, Mortality: 5, FeedBagsConsumed: 2, SampledWeightGrams: 50,
	})
	if err != nil {
		t.Fatalf("RecordEntry day 1: %v", err)
	}
	_, _, err = entries.RecordEntry(ctx, 1, cycle.ID, core.EntryInput{
		EntryDate: day2, Mortality: 3, FeedBagsConsumed: 3, SampledWeightGrams: 120,
	})
	if err != nil {
		t.Fatalf("RecordEntry day 2: %v", err)
	}
	if _, err := costs.AddMedicine(ctx, 1, cycle.ID, core.MedicineInput{
		PurchaseDate: start, Name: "Vaccine", Cost: decimal.NewFromInt(1500),
	}); err != nil {
		t.Fatalf("AddMedicine: %v", err)
	}
	if _, err := costs.AddExpense(ctx, 1, cycle.ID, core.ExpenseInput{
		ExpenseDate: start, Category: "labour", Amount: decimal.NewFromInt(2000),
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	stats, err := reports.GetCycleStats(ctx, 1, cycle.ID, day2)
	if err != nil {
		t.Fatalf("GetCycleStats: %v", err)
	}

	if stats.CurrentBirds != 992 || stats.TotalMortality != 8 {
		t.Errorf("expected 992 birds / 8 dead, got %d / %d", stats.CurrentBirds, stats.TotalMortality)
	}
	if stats.TotalFeedBagsConsumed != 5 || !closeTo(stats.TotalFeedKg, 250) {
		t.Errorf("expected 5 bags / 250 kg, got %d / %v", stats.TotalFeedBagsConsumed, stats.TotalFeedKg)
	}
	if !closeTo(stats.SurvivalRate, 99.2) {
		t.Errorf("expected survival 99.2, got %v", stats.SurvivalRate)
	}
	if !closeTo(stats.AverageWeightKg, 0.0675) {
		t.Errorf("expected average weight 0.0675, got %v", stats.AverageWeightKg)
	}
	wantCumFCR := 250.0 / (992 * 0.0225)
	if !closeTo(stats.CumulativeFCR, wantCumFCR) {
		t.Errorf("expected cumulative FCR %v, got %v", wantCumFCR, stats.CumulativeFCR)
	}
	if stats.DaysRunning != 2 || stats.DaysToTarget != 40 {
		t.Errorf("expected days 2 / 40 to target, got %d / %d", stats.DaysRunning, stats.DaysToTarget)
	}
	if stats.TodaysFCR == nil {
		t.Fatal("expected todays FCR on the entry day")
	}
	wantToday := 150.0 / (992 * 0.035)
	if !closeTo(*stats.TodaysFCR, wantToday) {
		t.Errorf("expected todays FCR %v, got %v", wantToday, *stats.TodaysFCR)
	}
	if !stats.TotalFeedCost.Equal(decimal.NewFromInt(11250)) {
		t.Errorf("expected feed cost 11250, got %s", stats.TotalFeedCost)
	}
	if !stats.TotalMedicineCost.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected medicine cost 1500, got %s", stats.TotalMedicineCost)
	}
	if !stats.TotalExpenses.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected expenses 2000, got %s", stats.TotalExpenses)
	}
}

func TestReporting_Dashboard(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cfg := core.DefaultEngineConfig()
	cycles := core.NewCycleService(pool)
	entries := core.NewEntryService(pool, cfg)
	reports := core.NewReportingService(pool, cfg)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("NoActiveCycle_EmptySummary", func(t *testing.T) {
		dash, err := reports.GetDashboard(ctx, 1, start)
		if err != nil {
			t.Fatalf("GetDashboard: %v", err)
		}
		if dash.Cycle != nil || dash.Stats != nil {
			t.Errorf("expected empty summary, got %+v", dash)
		}
	})

	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 4)
	_, _, err := entries.RecordEntry(ctx, 1, cycle.ID, core.EntryInput{
		EntryDate: start, Mortality: 2, FeedBagsConsumed: 1, SampledWeightGrams: 50,
	})
	if err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}

	t.Run("EntryRecordedToday", func(t *testing.T) {
		dash, err := reports.GetDashboard(ctx, 1, start)
		if err != nil {
			t.Fatalf("GetDashboard: %v", err)
		}
		if dash.Cycle == nil || dash.Cycle.ID != cycle.ID {
			t.Fatalf("expected active cycle %d, got %+v", cycle.ID, dash.Cycle)
		}
		if dash.NoEntryToday {
			t.Error("expected NoEntryToday false on the entry day")
		}
		if dash.LastEntryDate == nil || !dash.LastEntryDate.Equal(start) {
			t.Errorf("expected last entry %v, got %v", start, dash.LastEntryDate)
		}
		// 4 - 1 = 3 bags left, right at the threshold.
		if !dash.LowFeed {
			t.Error("expected low feed at 3 bags")
		}
	})

	t.Run("MissingEntryNextDay", func(t *testing.T) {
		dash, err := reports.GetDashboard(ctx, 1, start.AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("GetDashboard: %v", err)
		}
		if !dash.NoEntryToday {
			t.Error("expected NoEntryToday true the day after")
		}
	})
}

func TestReporting_EstimateIncome(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cfg := core.DefaultEngineConfig()
	cycles := core.NewCycleService(pool)
	entries := core.NewEntryService(pool, cfg)
	reports := core.NewReportingService(pool, cfg)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)
	_, _, err := entries.RecordEntry(ctx, 1, cycle.ID, core.EntryInput{
		EntryDate: start, Mortality: 5, FeedBagsConsumed: 2, SampledWeightGrams: 50,
	})
	if err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}

	est, err := reports.EstimateIncome(ctx, 1, cycle.ID, core.IncomeEstimateInput{
		ChickCostPerBird: decimal.NewFromInt(22),
		FeedCostPerKg:    decimal.NewFromInt(48),
		MedicineCost:     decimal.NewFromInt(1000),
		MarketRatePerKg:  decimal.NewFromInt(80),
		UseMarketRate:    true,
	})
	if err != nil {
		t.Fatalf("EstimateIncome: %v", err)
	}

	if est.LiveBirds != 995 {
		t.Errorf("expected 995 live birds, got %d", est.LiveBirds)
	}
	if est.IncomeBasis != "market" {
		t.Errorf("expected market basis, got %s", est.IncomeBasis)
	}
	if !est.ChickCost.Equal(decimal.NewFromInt(22000)) {
		t.Errorf("expected chick cost 22000, got %s", est.ChickCost)
	}
	// Profit is always income minus production cost.
	if !est.EstimatedProfit.Equal(est.EstimatedIncome.Sub(est.ProductionCost)) {
		t.Errorf("profit %s does not reconcile with income %s - cost %s",
			est.EstimatedProfit, est.EstimatedIncome, est.ProductionCost)
	}
}
