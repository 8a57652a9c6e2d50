package core

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testBase = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// day returns the test calendar: day(0) is the cycle start date.
func day(n int) time.Time { return testBase.AddDate(0, 0, n) }

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func testCycle() *Cycle {
	return &Cycle{
		ID:                1,
		CompanyID:         1,
		CycleNumber:       1,
		StartDate:         day(0),
		StartBirds:        1000,
		CurrentBirds:      1000,
		StartFeedBags:     20,
		RemainingFeedBags: 20,
		Status:            CycleActive,
	}
}

func TestComputeDailyEntryTwoDayScenario(t *testing.T) {
	cfg := DefaultEngineConfig()
	cycle := testCycle()

	// Day 1: 1000 birds, 20 bags on hand.
	e1, mut1, warn1, err := ComputeDailyEntry(cfg, cycle, nil, EntryInput{
		EntryDate:          day(0),
		Mortality:          5,
		FeedBagsConsumed:   2,
		SampledWeightGrams: 50,
	}, FeedSupply{TotalBags: 20})
	if err != nil {
		t.Fatalf("day 1: unexpected error: %v", err)
	}
	if warn1 != nil {
		t.Fatalf("day 1: unexpected low-stock warning with %d bags", e1.RemainingFeedBags)
	}
	if e1.BirdsSurviving != 995 {
		t.Errorf("day 1 birds surviving = %d, want 995", e1.BirdsSurviving)
	}
	if e1.RemainingFeedBags != 18 {
		t.Errorf("day 1 remaining bags = %d, want 18", e1.RemainingFeedBags)
	}
	approx(t, "day 1 avg weight", e1.AvgWeightKg, 0.05)
	approx(t, "day 1 fcr", e1.FCR, 100.0/(0.05*995))
	approx(t, "day 1 avg feed per bird", e1.AvgFeedPerBirdGrams, 2*50*1000/995.0/1)
	approx(t, "day 1 mortality rate", e1.MortalityRate, 0.5)
	if mut1.CurrentBirds != 995 || mut1.RemainingFeedBags != 18 {
		t.Errorf("day 1 mutation = %+v, want {995 18}", *mut1)
	}

	ApplyEntry(cycle, e1)
	if cycle.CurrentBirds != 995 || cycle.RemainingFeedBags != 18 {
		t.Fatalf("cycle after day 1 = %d birds / %d bags, want 995/18", cycle.CurrentBirds, cycle.RemainingFeedBags)
	}

	// Day 2: smoothing kicks in against day 1's derived average.
	e2, _, _, err := ComputeDailyEntry(cfg, cycle, []DailyEntry{*e1}, EntryInput{
		EntryDate:          day(1),
		Mortality:          3,
		FeedBagsConsumed:   3,
		SampledWeightGrams: 120,
	}, FeedSupply{TotalBags: 20})
	if err != nil {
		t.Fatalf("day 2: unexpected error: %v", err)
	}
	if e2.BirdsSurviving != 992 {
		t.Errorf("day 2 birds surviving = %d, want 992", e2.BirdsSurviving)
	}
	if e2.RemainingFeedBags != 15 {
		t.Errorf("day 2 remaining bags = %d, want 15", e2.RemainingFeedBags)
	}
	if e2.CumulativeFeedBags != 5 {
		t.Errorf("day 2 cumulative bags = %d, want 5", e2.CumulativeFeedBags)
	}
	approx(t, "day 2 avg weight", e2.AvgWeightKg, 0.085)
	approx(t, "day 2 fcr", e2.FCR, 250.0/(0.085*992))
	approx(t, "day 2 avg feed per bird", e2.AvgFeedPerBirdGrams, 5*50*1000/992.0/2)
	approx(t, "day 2 mortality rate", e2.MortalityRate, 0.8)
	if e2.CumulativeMortality != 8 {
		t.Errorf("day 2 cumulative mortality = %d, want 8", e2.CumulativeMortality)
	}
}

func TestComputeDailyEntryValidation(t *testing.T) {
	cfg := DefaultEngineConfig()

	tests := []struct {
		name      string
		input     EntryInput
		wantField string
	}{
		{
			name:      "negative mortality",
			input:     EntryInput{EntryDate: day(1), Mortality: -1},
			wantField: "mortality",
		},
		{
			name:      "negative feed consumed",
			input:     EntryInput{EntryDate: day(1), FeedBagsConsumed: -2},
			wantField: "feed_bags_consumed",
		},
		{
			name:      "negative feed added",
			input:     EntryInput{EntryDate: day(1), FeedBagsAdded: -1},
			wantField: "feed_bags_added",
		},
		{
			name:      "negative weight",
			input:     EntryInput{EntryDate: day(1), SampledWeightGrams: -50},
			wantField: "sampled_weight_grams",
		},
		{
			name:      "mortality exceeds live birds",
			input:     EntryInput{EntryDate: day(1), Mortality: 1001},
			wantField: "mortality",
		},
		{
			name:      "entry date before cycle start",
			input:     EntryInput{EntryDate: day(-1), Mortality: 1},
			wantField: "entry_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := testCycle()
			_, _, _, err := ComputeDailyEntry(cfg, cycle, nil, tt.input, FeedSupply{TotalBags: 20})
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
			// Rejection must not touch the cycle.
			if cycle.CurrentBirds != 1000 || cycle.RemainingFeedBags != 20 {
				t.Errorf("cycle mutated on rejection: %d birds / %d bags", cycle.CurrentBirds, cycle.RemainingFeedBags)
			}
		})
	}
}

func TestComputeDailyEntryInsufficientFeed(t *testing.T) {
	cfg := DefaultEngineConfig()
	cycle := testCycle()
	cycle.CurrentBirds = 995
	priors := []DailyEntry{{EntryDate: day(0), FeedBagsConsumed: 2, Mortality: 5, AvgWeightKg: 0.05}}

	_, _, _, err := ComputeDailyEntry(cfg, cycle, priors, EntryInput{
		EntryDate:        day(1),
		FeedBagsConsumed: 19,
	}, FeedSupply{TotalBags: 20})
	if err == nil {
		t.Fatal("expected insufficient-inventory error, got nil")
	}
	var ierr *InsufficientInventoryError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *InsufficientInventoryError, got %T: %v", err, err)
	}
	if ierr.AttemptedBags != 19 {
		t.Errorf("attempted = %d, want 19", ierr.AttemptedBags)
	}
	if ierr.AvailableBags != 18 {
		t.Errorf("available = %d, want 18", ierr.AvailableBags)
	}
	if ierr.ShortageBags != 1 {
		t.Errorf("shortage = %d, want 1", ierr.ShortageBags)
	}
	if !strings.Contains(err.Error(), "short 1") {
		t.Errorf("error message %q does not carry the shortage", err.Error())
	}
}

func TestComputeDailyEntryLowStockWarning(t *testing.T) {
	cfg := DefaultEngineConfig()

	tests := []struct {
		name     string
		consumed int
		want     bool
		wantLeft int
	}{
		{"well stocked", 14, false, 4},
		{"at threshold", 15, true, 3},
		{"exactly exhausted", 18, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := testCycle()
			cycle.CurrentBirds = 995
			priors := []DailyEntry{{EntryDate: day(0), FeedBagsConsumed: 2, Mortality: 5, AvgWeightKg: 0.05}}
			entry, _, warn, err := ComputeDailyEntry(cfg, cycle, priors, EntryInput{
				EntryDate:        day(1),
				FeedBagsConsumed: tt.consumed,
			}, FeedSupply{TotalBags: 20})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entry.RemainingFeedBags != tt.wantLeft {
				t.Errorf("remaining = %d, want %d", entry.RemainingFeedBags, tt.wantLeft)
			}
			if got := warn != nil; got != tt.want {
				t.Errorf("warning present = %v, want %v", got, tt.want)
			}
			if warn != nil && warn.RemainingBags != tt.wantLeft {
				t.Errorf("warning remaining = %d, want %d", warn.RemainingBags, tt.wantLeft)
			}
		})
	}
}

func TestComputeDailyEntryFeedAddedExtendsSupply(t *testing.T) {
	cfg := DefaultEngineConfig()
	cycle := testCycle()
	cycle.CurrentBirds = 995
	priors := []DailyEntry{{EntryDate: day(0), FeedBagsConsumed: 2, Mortality: 5, AvgWeightKg: 0.05}}

	// 19 bags against 18 available fails, but adding 5 today makes room.
	entry, _, _, err := ComputeDailyEntry(cfg, cycle, priors, EntryInput{
		EntryDate:        day(1),
		FeedBagsConsumed: 19,
		FeedBagsAdded:    5,
	}, FeedSupply{TotalBags: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.RemainingFeedBags != 4 {
		t.Errorf("remaining = %d, want 4", entry.RemainingFeedBags)
	}
}

func TestComputeDailyEntrySmoothing(t *testing.T) {
	cfg := DefaultEngineConfig()

	tests := []struct {
		name    string
		priors  []DailyEntry
		sampled float64
		want    float64
	}{
		{
			name:    "no priors takes raw sample",
			sampled: 50,
			want:    0.05,
		},
		{
			name:    "positive previous average smooths",
			priors:  []DailyEntry{{EntryDate: day(0), AvgWeightKg: 0.05}},
			sampled: 120,
			want:    0.085,
		},
		{
			name:    "zero previous average skips smoothing",
			priors:  []DailyEntry{{EntryDate: day(0), AvgWeightKg: 0}},
			sampled: 120,
			want:    0.12,
		},
		{
			name:    "zero sample still averages against previous",
			priors:  []DailyEntry{{EntryDate: day(0), AvgWeightKg: 0.08}},
			sampled: 0,
			want:    0.04,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := testCycle()
			entry, _, _, err := ComputeDailyEntry(cfg, cycle, tt.priors, EntryInput{
				EntryDate:          day(len(tt.priors)),
				SampledWeightGrams: tt.sampled,
			}, FeedSupply{TotalBags: 20})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			approx(t, "avg weight", entry.AvgWeightKg, tt.want)
		})
	}
}

func TestReverseEntryRestoresCycleState(t *testing.T) {
	cfg := DefaultEngineConfig()
	cycle := testCycle()

	entry, _, _, err := ComputeDailyEntry(cfg, cycle, nil, EntryInput{
		EntryDate:          day(0),
		Mortality:          5,
		FeedBagsConsumed:   2,
		FeedBagsAdded:      1,
		SampledWeightGrams: 50,
	}, FeedSupply{TotalBags: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ApplyEntry(cycle, entry)
	if cycle.CurrentBirds != 995 || cycle.RemainingFeedBags != 19 {
		t.Fatalf("after apply: %d birds / %d bags, want 995/19", cycle.CurrentBirds, cycle.RemainingFeedBags)
	}

	ReverseEntry(cycle, entry)
	if cycle.CurrentBirds != 1000 {
		t.Errorf("birds after reverse = %d, want 1000", cycle.CurrentBirds)
	}
	if cycle.RemainingFeedBags != 20 {
		t.Errorf("bags after reverse = %d, want 20", cycle.RemainingFeedBags)
	}
}

func TestComputeCycleStatsExcludesZeroSamples(t *testing.T) {
	cfg := DefaultEngineConfig()
	cycle := testCycle()
	cycle.CurrentBirds = 992

	// Middle entry has no weighing and no FCR; naive inclusion would drag
	// both averages down.
	entries := []DailyEntry{
		{EntryDate: day(0), FeedBagsConsumed: 2, Mortality: 5, FCR: 2.0, AvgWeightKg: 0.05},
		{EntryDate: day(1), FeedBagsConsumed: 0, Mortality: 3, FCR: 0, AvgWeightKg: 0},
		{EntryDate: day(2), FeedBagsConsumed: 3, Mortality: 0, FCR: 3.0, AvgWeightKg: 0.085},
	}

	stats := ComputeCycleStats(cfg, cycle, entries, nil, nil, day(2))
	approx(t, "average fcr", stats.AverageFCR, 2.5)
	approx(t, "average weight", stats.AverageWeightKg, 0.0675)
	if stats.TotalFeedBagsConsumed != 5 {
		t.Errorf("total bags = %d, want 5", stats.TotalFeedBagsConsumed)
	}
	if stats.TotalMortality != 8 {
		t.Errorf("total mortality = %d, want 8", stats.TotalMortality)
	}
	approx(t, "total feed kg", stats.TotalFeedKg, 250)
	approx(t, "survival rate", stats.SurvivalRate, 99.2)
	approx(t, "mortality rate", stats.MortalityRate, 0.8)
	approx(t, "cumulative fcr", stats.CumulativeFCR, 250.0/(992*(0.0675-0.045)))
	if stats.DaysRunning != 3 {
		t.Errorf("days running = %d, want 3", stats.DaysRunning)
	}
	if stats.DaysToTarget != 39 {
		t.Errorf("days to target = %d, want 39", stats.DaysToTarget)
	}
}

func TestComputeCycleStatsCumulativeFCRGuard(t *testing.T) {
	cfg := DefaultEngineConfig()

	tests := []struct {
		name   string
		weight float64
	}{
		{"no weight gain yet", 0.045},
		{"below chick weight", 0.04},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := testCycle()
			entries := []DailyEntry{{EntryDate: day(0), FeedBagsConsumed: 2, FCR: 1, AvgWeightKg: tt.weight}}
			stats := ComputeCycleStats(cfg, cycle, entries, nil, nil, day(0))
			if stats.CumulativeFCR != 0 {
				t.Errorf("cumulative fcr = %v, want 0", stats.CumulativeFCR)
			}
		})
	}
}

func TestComputeCycleStatsCosts(t *testing.T) {
	cfg := DefaultEngineConfig()
	cycle := testCycle()
	entries := []DailyEntry{
		{EntryDate: day(0), FeedBagsConsumed: 2},
		{EntryDate: day(1), FeedBagsConsumed: 3},
	}
	medicines := []Medicine{
		{Cost: decimal.NewFromInt(1200)},
		{Cost: decimal.NewFromInt(800)},
	}
	expenses := []Expense{{Amount: decimal.NewFromInt(5000)}}

	stats := ComputeCycleStats(cfg, cycle, entries, medicines, expenses, day(1))
	if want := decimal.NewFromInt(11250); !stats.TotalFeedCost.Equal(want) {
		t.Errorf("feed cost = %s, want %s", stats.TotalFeedCost, want)
	}
	if want := decimal.NewFromInt(2000); !stats.TotalMedicineCost.Equal(want) {
		t.Errorf("medicine cost = %s, want %s", stats.TotalMedicineCost, want)
	}
	if want := decimal.NewFromInt(5000); !stats.TotalExpenses.Equal(want) {
		t.Errorf("expenses = %s, want %s", stats.TotalExpenses, want)
	}
}

func TestComputeTodaysFCR(t *testing.T) {
	cfg := DefaultEngineConfig()

	t.Run("diff against yesterday", func(t *testing.T) {
		cycle := testCycle()
		cycle.CurrentBirds = 992
		entries := []DailyEntry{
			{EntryDate: day(0), FeedBagsConsumed: 2, AvgWeightKg: 0.05},
			{EntryDate: day(1), FeedBagsConsumed: 3, AvgWeightKg: 0.085},
		}
		got := ComputeTodaysFCR(cfg, cycle, entries, day(1))
		if got == nil {
			t.Fatal("expected a value, got nil")
		}
		approx(t, "todays fcr", *got, 150.0/(992*0.035))
	})

	t.Run("falls back to linear growth without yesterday", func(t *testing.T) {
		cycle := testCycle()
		cycle.CurrentBirds = 992
		cycle.StartDate = day(0)
		entries := []DailyEntry{{EntryDate: day(1), FeedBagsConsumed: 3, AvgWeightKg: 0.085}}
		got := ComputeTodaysFCR(cfg, cycle, entries, day(1))
		if got == nil {
			t.Fatal("expected fallback value, got nil")
		}
		estGain := (0.085 - 0.045) / 2
		approx(t, "fallback fcr", *got, 150.0/(992*estGain))
	})

	t.Run("nil when latest entry is not today", func(t *testing.T) {
		cycle := testCycle()
		entries := []DailyEntry{{EntryDate: day(0), FeedBagsConsumed: 2, AvgWeightKg: 0.05}}
		if got := ComputeTodaysFCR(cfg, cycle, entries, day(1)); got != nil {
			t.Errorf("expected nil, got %v", *got)
		}
	})

	t.Run("nil without weight gain", func(t *testing.T) {
		cycle := testCycle()
		entries := []DailyEntry{{EntryDate: day(0), FeedBagsConsumed: 2, AvgWeightKg: 0.045}}
		if got := ComputeTodaysFCR(cfg, cycle, entries, day(0)); got != nil {
			t.Errorf("expected nil, got %v", *got)
		}
	})

	t.Run("nil without entries", func(t *testing.T) {
		cycle := testCycle()
		if got := ComputeTodaysFCR(cfg, cycle, nil, day(0)); got != nil {
			t.Errorf("expected nil, got %v", *got)
		}
	})
}

func TestAggregateWeighing(t *testing.T) {
	samples := []WeighingSample{
		{SerialNo: 1, BirdCount: 50, WeightKg: 110.5},
		{SerialNo: 2, BirdCount: 48, WeightKg: 103.2},
		{SerialNo: 3, BirdCount: 52, WeightKg: 118.3},
	}
	got := AggregateWeighing(samples)
	if got.TotalBirds != 150 {
		t.Errorf("total birds = %d, want 150", got.TotalBirds)
	}
	approx(t, "total weight", got.TotalWeightKg, 332.0)
	approx(t, "avg weight per bird", got.AvgWeightPerBirdKg, 332.0/150)
	// Totals must reconcile within float rounding.
	approx(t, "avg times birds", got.AvgWeightPerBirdKg*float64(got.TotalBirds), got.TotalWeightKg)
}

func TestAggregateWeighingEmpty(t *testing.T) {
	got := AggregateWeighing(nil)
	if got.TotalBirds != 0 || got.TotalWeightKg != 0 || got.AvgWeightPerBirdKg != 0 {
		t.Errorf("empty aggregate = %+v, want zeros", got)
	}
}

func TestEstimateIncome(t *testing.T) {
	cycle := testCycle()
	cycle.CurrentBirds = 992
	stats := CycleStats{AverageWeightKg: 2.0, CumulativeFCR: 1.5}

	input := IncomeEstimateInput{
		ChickCostPerBird: decimal.NewFromInt(22),
		FeedCostPerKg:    decimal.NewFromInt(45),
		MedicineCost:     decimal.NewFromInt(18000),
		VaccineCost:      decimal.NewFromInt(1800),
		OtherCost:        decimal.NewFromInt(18000),
		MarketRatePerKg:  decimal.NewFromInt(130),
		PCRatePerBird:    decimal.NewFromInt(95),
		IncomeRatePerKg:  decimal.NewFromFloat(6.5),
		FallbackFCR:      1.53,
	}

	t.Run("market basis", func(t *testing.T) {
		in := input
		in.UseMarketRate = true
		got := EstimateIncome(cycle, stats, in)

		approx(t, "live weight", got.LiveWeightKg, 1984)
		if want := decimal.NewFromInt(22000); !got.ChickCost.Equal(want) {
			t.Errorf("chick cost = %s, want %s", got.ChickCost, want)
		}
		if want := decimal.NewFromInt(133920); !got.FeedCost.Equal(want) {
			t.Errorf("feed cost = %s, want %s", got.FeedCost, want)
		}
		if want := decimal.NewFromInt(193720); !got.ProductionCost.Equal(want) {
			t.Errorf("production cost = %s, want %s", got.ProductionCost, want)
		}
		if want := decimal.NewFromInt(257920); !got.EstimatedIncome.Equal(want) {
			t.Errorf("income = %s, want %s", got.EstimatedIncome, want)
		}
		if want := decimal.NewFromInt(64200); !got.EstimatedProfit.Equal(want) {
			t.Errorf("profit = %s, want %s", got.EstimatedProfit, want)
		}
		if want := decimal.RequireFromString("97.64"); !got.CostPerKg.Equal(want) {
			t.Errorf("cost per kg = %s, want %s", got.CostPerKg, want)
		}
		if got.IncomeBasis != "market" {
			t.Errorf("basis = %q, want market", got.IncomeBasis)
		}
	})

	t.Run("pc basis", func(t *testing.T) {
		got := EstimateIncome(cycle, stats, input)
		if want := decimal.NewFromInt(107136); !got.EstimatedIncome.Equal(want) {
			t.Errorf("income = %s, want %s", got.EstimatedIncome, want)
		}
		if got.IncomeBasis != "pc" {
			t.Errorf("basis = %q, want pc", got.IncomeBasis)
		}
	})

	t.Run("fallback fcr sizes feed when no real ratio", func(t *testing.T) {
		in := input
		in.UseMarketRate = true
		in.FallbackFCR = 1.5
		noFCR := stats
		noFCR.CumulativeFCR = 0
		got := EstimateIncome(cycle, noFCR, in)
		if want := decimal.NewFromInt(133920); !got.FeedCost.Equal(want) {
			t.Errorf("feed cost = %s, want %s", got.FeedCost, want)
		}
	})
}
