package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// EngineConfig carries the unit constants the cycle computations depend on.
// All callers pass it explicitly; the engine keeps no package state.
type EngineConfig struct {
	BagWeightKg           float64
	ChickStartWeightKg    float64
	LowStockThresholdBags int
	TargetCycleDays       int
	FeedCostPerBag        decimal.Decimal
}

// DefaultEngineConfig returns the stock configuration: 50 kg bags, 45 g
// chicks, low-stock warning at 3 bags, 42-day target cycle.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BagWeightKg:           50,
		ChickStartWeightKg:    0.045,
		LowStockThresholdBags: 3,
		TargetCycleDays:       42,
		FeedCostPerBag:        decimal.NewFromInt(2250),
	}
}

// dateOnly strips the time-of-day component, keeping the calendar date as
// observed in the value's own location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b (negative when b
// precedes a).
func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

// sameDate reports whether two timestamps fall on the same calendar date.
func sameDate(a, b time.Time) bool {
	return dateOnly(a).Equal(dateOnly(b))
}

// ── Daily entry computation ──────────────────────────────────────────────────

// ComputeDailyEntry validates a proposed daily entry against the cycle's
// running state and derives every stored field. priors must be the cycle's
// entries dated before input.EntryDate, in date order. supply is the feed
// ledger total at the entry date, excluding the entry's own FeedBagsAdded.
//
// Pure: no storage access. On success the caller persists the returned entry
// and applies the mutation to the cycle; on error nothing may change.
func ComputeDailyEntry(cfg EngineConfig, cycle *Cycle, priors []DailyEntry, input EntryInput, supply FeedSupply) (*DailyEntry, *CycleMutation, *LowStockWarning, error) {
	if input.Mortality < 0 {
		return nil, nil, nil, newValidationError("mortality", "must not be negative")
	}
	if input.FeedBagsConsumed < 0 {
		return nil, nil, nil, newValidationError("feed_bags_consumed", "must not be negative")
	}
	if input.FeedBagsAdded < 0 {
		return nil, nil, nil, newValidationError("feed_bags_added", "must not be negative")
	}
	if input.SampledWeightGrams < 0 {
		return nil, nil, nil, newValidationError("sampled_weight_grams", "must not be negative")
	}

	birdsSurviving := cycle.CurrentBirds - input.Mortality
	if birdsSurviving < 0 {
		return nil, nil, nil, newValidationError("mortality",
			"mortality %d exceeds the %d birds currently alive", input.Mortality, cycle.CurrentBirds)
	}

	// Inclusive day count: an entry on the start date is day 1.
	daysElapsed := daysBetween(cycle.StartDate, input.EntryDate) + 1
	if daysElapsed < 1 {
		return nil, nil, nil, newValidationError("entry_date",
			"entry date %s precedes the cycle start %s",
			dateOnly(input.EntryDate).Format("2006-01-02"), dateOnly(cycle.StartDate).Format("2006-01-02"))
	}

	cumFeedBags := input.FeedBagsConsumed
	cumMortality := input.Mortality
	for _, p := range priors {
		cumFeedBags += p.FeedBagsConsumed
		cumMortality += p.Mortality
	}

	var avgFeedPerBirdGrams float64
	if birdsSurviving > 0 {
		avgFeedPerBirdGrams = float64(cumFeedBags) * cfg.BagWeightKg * 1000 /
			float64(birdsSurviving) / float64(daysElapsed)
	}

	// Two-point smoothing against the immediately preceding entry's derived
	// average. Inherited behavior: not a rolling mean, and it applies even
	// when today's sample is zero.
	avgWeightKg := input.SampledWeightGrams / 1000
	if n := len(priors); n > 0 && priors[n-1].AvgWeightKg > 0 {
		avgWeightKg = (avgWeightKg + priors[n-1].AvgWeightKg) / 2
	}

	var fcr float64
	if avgWeightKg > 0 && birdsSurviving > 0 {
		fcr = float64(cumFeedBags) * cfg.BagWeightKg / (avgWeightKg * float64(birdsSurviving))
	}

	totalSupplied := supply.TotalBags + input.FeedBagsAdded
	remainingBags := totalSupplied - cumFeedBags
	if remainingBags < 0 {
		available := totalSupplied - (cumFeedBags - input.FeedBagsConsumed)
		return nil, nil, nil, &InsufficientInventoryError{
			AttemptedBags: input.FeedBagsConsumed,
			AvailableBags: available,
			ShortageBags:  -remainingBags,
		}
	}
	var warning *LowStockWarning
	if remainingBags <= cfg.LowStockThresholdBags {
		warning = &LowStockWarning{RemainingBags: remainingBags, ThresholdBags: cfg.LowStockThresholdBags}
	}

	var mortalityRate float64
	if cycle.StartBirds > 0 {
		mortalityRate = float64(cumMortality) / float64(cycle.StartBirds) * 100
	}

	entry := &DailyEntry{
		CycleID:             cycle.ID,
		EntryDate:           dateOnly(input.EntryDate),
		Mortality:           input.Mortality,
		FeedBagsConsumed:    input.FeedBagsConsumed,
		FeedBagsAdded:       input.FeedBagsAdded,
		SampledWeightGrams:  input.SampledWeightGrams,
		BirdsSurviving:      birdsSurviving,
		AvgFeedPerBirdGrams: avgFeedPerBirdGrams,
		AvgWeightKg:         avgWeightKg,
		FCR:                 fcr,
		CumulativeMortality: cumMortality,
		CumulativeFeedBags:  cumFeedBags,
		RemainingFeedBags:   remainingBags,
		MortalityRate:       mortalityRate,
	}
	mutation := &CycleMutation{CurrentBirds: birdsSurviving, RemainingFeedBags: remainingBags}
	return entry, mutation, warning, nil
}

// ApplyEntry applies an accepted entry's effect to the cycle's running state.
func ApplyEntry(cycle *Cycle, e *DailyEntry) {
	cycle.CurrentBirds = e.BirdsSurviving
	cycle.RemainingFeedBags = e.RemainingFeedBags
}

// ReverseEntry undoes one entry's effect on the cycle: the birds it killed
// come back and its feed movement is reversed. Compensating mutation only —
// derived fields stored on later entries are not recomputed, so deleting out
// of chronological order leaves them stale.
func ReverseEntry(cycle *Cycle, e *DailyEntry) {
	cycle.CurrentBirds += e.Mortality
	cycle.RemainingFeedBags += e.FeedBagsConsumed - e.FeedBagsAdded
}

// ── Cycle aggregation ────────────────────────────────────────────────────────

// ComputeCycleStats recomputes the whole-cycle summary from the stored rows.
// Read-only and idempotent. Entries with zero FCR or zero weight are excluded
// from the respective averages rather than counted as zeros; naive inclusion
// would drag the means down.
func ComputeCycleStats(cfg EngineConfig, cycle *Cycle, entries []DailyEntry, medicines []Medicine, expenses []Expense, asOf time.Time) CycleStats {
	stats := CycleStats{
		CycleID:           cycle.ID,
		StartBirds:        cycle.StartBirds,
		CurrentBirds:      cycle.CurrentBirds,
		RemainingFeedBags: cycle.RemainingFeedBags,
		TotalFeedCost:     decimal.Zero,
		TotalMedicineCost: decimal.Zero,
		TotalExpenses:     decimal.Zero,
	}

	var fcrSum, weightSum float64
	var fcrN, weightN int
	for _, e := range entries {
		stats.TotalFeedBagsConsumed += e.FeedBagsConsumed
		stats.TotalMortality += e.Mortality
		if e.FCR > 0 {
			fcrSum += e.FCR
			fcrN++
		}
		if e.AvgWeightKg > 0 {
			weightSum += e.AvgWeightKg
			weightN++
		}
	}
	if fcrN > 0 {
		stats.AverageFCR = fcrSum / float64(fcrN)
	}
	if weightN > 0 {
		stats.AverageWeightKg = weightSum / float64(weightN)
	}

	stats.TotalFeedKg = float64(stats.TotalFeedBagsConsumed) * cfg.BagWeightKg

	gainDenom := float64(cycle.CurrentBirds) * (stats.AverageWeightKg - cfg.ChickStartWeightKg)
	if gainDenom > 0 {
		stats.CumulativeFCR = stats.TotalFeedKg / gainDenom
	}

	if cycle.StartBirds > 0 {
		stats.SurvivalRate = float64(cycle.CurrentBirds) / float64(cycle.StartBirds) * 100
		stats.MortalityRate = float64(stats.TotalMortality) / float64(cycle.StartBirds) * 100
	}

	if d := daysBetween(cycle.StartDate, asOf); d >= 0 {
		stats.DaysRunning = d + 1
	}
	if stats.DaysToTarget = cfg.TargetCycleDays - stats.DaysRunning; stats.DaysToTarget < 0 {
		stats.DaysToTarget = 0
	}

	stats.TotalFeedCost = decimal.NewFromInt(int64(stats.TotalFeedBagsConsumed)).Mul(cfg.FeedCostPerBag)
	for _, m := range medicines {
		stats.TotalMedicineCost = stats.TotalMedicineCost.Add(m.Cost)
	}
	for _, x := range expenses {
		stats.TotalExpenses = stats.TotalExpenses.Add(x.Amount)
	}
	return stats
}

// ComputeTodaysFCR diffs the most recent entry against the one exactly a
// calendar day earlier. When that diff is unusable (missing yesterday, zero
// weights, no gain) it falls back to a linear-growth estimate from the chick
// starting weight. Returns nil when no entry exists for today or even the
// fallback denominator is non-positive.
func ComputeTodaysFCR(cfg EngineConfig, cycle *Cycle, entries []DailyEntry, today time.Time) *float64 {
	if len(entries) == 0 || cycle.CurrentBirds <= 0 {
		return nil
	}
	latest := entries[len(entries)-1]
	if !sameDate(latest.EntryDate, today) {
		return nil
	}

	// Dates are unique and ordered, so only the immediately preceding entry
	// can be yesterday's.
	var yesterdayW float64
	if n := len(entries); n >= 2 && daysBetween(entries[n-2].EntryDate, latest.EntryDate) == 1 {
		yesterdayW = entries[n-2].AvgWeightKg
	}

	todayFeedKg := float64(latest.FeedBagsConsumed) * cfg.BagWeightKg
	if gain := latest.AvgWeightKg - yesterdayW; latest.AvgWeightKg > 0 && yesterdayW > 0 && gain > 0 {
		fcr := todayFeedKg / (float64(cycle.CurrentBirds) * gain)
		return &fcr
	}

	daysRunning := daysBetween(cycle.StartDate, today) + 1
	totalGain := latest.AvgWeightKg - cfg.ChickStartWeightKg
	if daysRunning <= 0 || totalGain <= 0 {
		return nil
	}
	estGain := totalGain / float64(daysRunning)
	fcr := todayFeedKg / (float64(cycle.CurrentBirds) * estGain)
	return &fcr
}

// ── Dispatch weighing ────────────────────────────────────────────────────────

// AggregateWeighing totals a dispatch's weighing samples. A session with no
// birds yields a zero average rather than a division error.
func AggregateWeighing(samples []WeighingSample) WeighingTotals {
	var t WeighingTotals
	for _, s := range samples {
		t.TotalBirds += s.BirdCount
		t.TotalWeightKg += s.WeightKg
	}
	if t.TotalBirds > 0 {
		t.AvgWeightPerBirdKg = t.TotalWeightKg / float64(t.TotalBirds)
	}
	return t
}

// ── Income estimate ──────────────────────────────────────────────────────────

// EstimateIncome projects the cycle's production cost and sale income from
// the supplied unit rates. Weights ride on the aggregated stats; when no
// real cumulative FCR exists yet the fallback ratio sizes the feed estimate.
func EstimateIncome(cycle *Cycle, stats CycleStats, in IncomeEstimateInput) IncomeEstimate {
	liveBirds := cycle.CurrentBirds
	liveWeightKg := float64(liveBirds) * stats.AverageWeightKg

	fcrUsed := stats.CumulativeFCR
	if fcrUsed <= 0 {
		fcrUsed = in.FallbackFCR
	}
	feedKg := liveWeightKg * fcrUsed

	chickCost := decimal.NewFromInt(int64(cycle.StartBirds)).Mul(in.ChickCostPerBird)
	feedCost := decimal.NewFromFloat(feedKg).Mul(in.FeedCostPerKg)
	productionCost := chickCost.Add(feedCost).Add(in.MedicineCost).Add(in.VaccineCost).Add(in.OtherCost)

	weight := decimal.NewFromFloat(liveWeightKg)
	var income decimal.Decimal
	basis := "pc"
	if in.UseMarketRate {
		basis = "market"
		income = weight.Mul(in.MarketRatePerKg)
	} else {
		income = decimal.NewFromInt(int64(liveBirds)).Mul(in.PCRatePerBird).
			Add(weight.Mul(in.IncomeRatePerKg))
	}

	costPerKg := decimal.Zero
	if liveWeightKg > 0 {
		costPerKg = productionCost.Div(weight).Round(2)
	}

	return IncomeEstimate{
		CycleID:         cycle.ID,
		LiveBirds:       liveBirds,
		LiveWeightKg:    liveWeightKg,
		ChickCost:       chickCost,
		FeedCost:        feedCost.Round(2),
		MedicineCost:    in.MedicineCost,
		VaccineCost:     in.VaccineCost,
		OtherCost:       in.OtherCost,
		ProductionCost:  productionCost.Round(2),
		EstimatedIncome: income.Round(2),
		EstimatedProfit: income.Sub(productionCost).Round(2),
		CostPerKg:       costPerKg,
		IncomeBasis:     basis,
	}
}
