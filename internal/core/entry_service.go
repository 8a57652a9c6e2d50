package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntryService manages the daily records of a cycle. Every mutation locks the
// cycle row, derives the stored fields through the engine, and keeps the
// cycle's running bird and feed counters consistent by compensation. Derived
// fields stored on entries dated after an edited one are not rewritten; the
// reporting queries always recompute from the raw rows.
type EntryService interface {
	RecordEntry(ctx context.Context, companyID, cycleID int, input EntryInput) (*DailyEntry, *LowStockWarning, error)
	GetEntries(ctx context.Context, companyID, cycleID int) ([]DailyEntry, error)
	GetEntry(ctx context.Context, companyID, cycleID, entryID int) (*DailyEntry, error)
	UpdateEntry(ctx context.Context, companyID, cycleID, entryID int, input EntryInput) (*DailyEntry, *LowStockWarning, error)
	DeleteEntry(ctx context.Context, companyID, cycleID, entryID int) error
}

type entryService struct {
	pool *pgxpool.Pool
	cfg  EngineConfig
}

func NewEntryService(pool *pgxpool.Pool, cfg EngineConfig) EntryService {
	return &entryService{pool: pool, cfg: cfg}
}

const entryColumns = `de.id, de.cycle_id, de.entry_date, de.mortality, de.feed_bags_consumed,
	       de.feed_bags_added, de.sampled_weight_grams, de.birds_surviving, de.avg_feed_per_bird_grams,
	       de.avg_weight_kg, de.fcr, de.cumulative_mortality, de.cumulative_feed_bags,
	       de.remaining_feed_bags, de.mortality_rate, de.created_at`

func scanEntry(row pgx.Row) (*DailyEntry, error) {
	var e DailyEntry
	err := row.Scan(
		&e.ID, &e.CycleID, &e.EntryDate, &e.Mortality, &e.FeedBagsConsumed,
		&e.FeedBagsAdded, &e.SampledWeightGrams, &e.BirdsSurviving, &e.AvgFeedPerBirdGrams,
		&e.AvgWeightKg, &e.FCR, &e.CumulativeMortality, &e.CumulativeFeedBags,
		&e.RemainingFeedBags, &e.MortalityRate, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// lockActiveCycle fetches and row-locks the cycle, requiring it to be active.
func lockActiveCycle(ctx context.Context, tx pgx.Tx, companyID, cycleID int) (*Cycle, error) {
	cycle, err := scanCycle(tx.QueryRow(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, cycleID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("cycle", cycleID)
		}
		return nil, fmt.Errorf("failed to lock cycle %d: %w", cycleID, err)
	}
	if cycle.Status != CycleActive {
		return nil, newConflictError("cycle %d is archived; unarchive it to make changes", cycleID)
	}
	return cycle, nil
}

// loadEntries returns all of the cycle's entries, oldest first.
func loadEntries(ctx context.Context, q pgxRowQuerier, cycleID int) ([]DailyEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries de
		WHERE de.cycle_id = $1
		ORDER BY de.entry_date
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []DailyEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// loadPriorEntries returns the cycle's entries strictly before the given date,
// oldest first, excluding excludeID when non-zero.
func loadPriorEntries(ctx context.Context, q pgxRowQuerier, cycleID int, before time.Time, excludeID int) ([]DailyEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries de
		WHERE de.cycle_id = $1 AND de.entry_date < $2 AND de.id <> $3
		ORDER BY de.entry_date
	`, cycleID, before, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior entries: %w", err)
	}
	defer rows.Close()

	var entries []DailyEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// feedSupplyAt computes the ledger supply visible to an entry on the given
// date: starting stock, purchases dated on or before it, and the additions
// recorded on the prior entries.
func feedSupplyAt(ctx context.Context, q pgxQuerier, cycle *Cycle, priors []DailyEntry, date time.Time) (FeedSupply, error) {
	var purchased int
	err := q.QueryRow(ctx,
		"SELECT COALESCE(SUM(bags), 0) FROM feed_purchases WHERE cycle_id = $1 AND purchase_date <= $2",
		cycle.ID, date,
	).Scan(&purchased)
	if err != nil {
		return FeedSupply{}, fmt.Errorf("failed to sum feed purchases: %w", err)
	}

	total := cycle.StartFeedBags + purchased
	for _, p := range priors {
		total += p.FeedBagsAdded
	}
	return FeedSupply{TotalBags: total}, nil
}

func (s *entryService) RecordEntry(ctx context.Context, companyID, cycleID int, input EntryInput) (*DailyEntry, *LowStockWarning, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle, err := lockActiveCycle(ctx, tx, companyID, cycleID)
	if err != nil {
		return nil, nil, err
	}

	entryDate := dateOnly(input.EntryDate)
	var existingID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM daily_entries WHERE cycle_id = $1 AND entry_date = $2",
		cycleID, entryDate,
	).Scan(&existingID)
	if err == nil {
		return nil, nil, newConflictError("an entry for %s already exists", entryDate.Format("2006-01-02"))
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("failed to check for existing entry: %w", err)
	}

	priors, err := loadPriorEntries(ctx, tx, cycleID, entryDate, 0)
	if err != nil {
		return nil, nil, err
	}
	supply, err := feedSupplyAt(ctx, tx, cycle, priors, entryDate)
	if err != nil {
		return nil, nil, err
	}

	entry, _, warning, err := ComputeDailyEntry(s.cfg, cycle, priors, input, supply)
	if err != nil {
		return nil, nil, err
	}

	// Compensating update of the running counters. For an entry appended at
	// the head of the cycle this equals the engine's own remaining value; for
	// a backfilled date it additionally preserves the later entries' effect.
	newBirds := cycle.CurrentBirds - input.Mortality
	newRemaining := cycle.RemainingFeedBags + input.FeedBagsAdded - input.FeedBagsConsumed
	if newRemaining < 0 {
		return nil, nil, &InsufficientInventoryError{
			AttemptedBags: input.FeedBagsConsumed,
			AvailableBags: cycle.RemainingFeedBags + input.FeedBagsAdded,
			ShortageBags:  -newRemaining,
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO daily_entries (cycle_id, entry_date, mortality, feed_bags_consumed, feed_bags_added,
		                           sampled_weight_grams, birds_surviving, avg_feed_per_bird_grams,
		                           avg_weight_kg, fcr, cumulative_mortality, cumulative_feed_bags,
		                           remaining_feed_bags, mortality_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`, cycleID, entry.EntryDate, entry.Mortality, entry.FeedBagsConsumed, entry.FeedBagsAdded,
		entry.SampledWeightGrams, entry.BirdsSurviving, entry.AvgFeedPerBirdGrams,
		entry.AvgWeightKg, entry.FCR, entry.CumulativeMortality, entry.CumulativeFeedBags,
		entry.RemainingFeedBags, entry.MortalityRate,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE cycles SET current_birds = $1, remaining_feed_bags = $2 WHERE id = $3",
		newBirds, newRemaining, cycleID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update cycle counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit entry: %w", err)
	}
	return entry, warning, nil
}

func (s *entryService) GetEntries(ctx context.Context, companyID, cycleID int) ([]DailyEntry, error) {
	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return nil, err
	}
	return loadEntries(ctx, s.pool, cycleID)
}

func (s *entryService) GetEntry(ctx context.Context, companyID, cycleID, entryID int) (*DailyEntry, error) {
	entry, err := scanEntry(s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries de
		JOIN cycles c ON c.id = de.cycle_id
		WHERE c.company_id = $1 AND de.cycle_id = $2 AND de.id = $3
	`, companyID, cycleID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("entry", entryID)
		}
		return nil, fmt.Errorf("failed to fetch entry %d: %w", entryID, err)
	}
	return entry, nil
}

func (s *entryService) UpdateEntry(ctx context.Context, companyID, cycleID, entryID int, input EntryInput) (*DailyEntry, *LowStockWarning, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle, err := lockActiveCycle(ctx, tx, companyID, cycleID)
	if err != nil {
		return nil, nil, err
	}

	old, err := scanEntry(tx.QueryRow(ctx,
		"SELECT "+entryColumns+" FROM daily_entries de WHERE de.cycle_id = $1 AND de.id = $2",
		cycleID, entryID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, newNotFoundError("entry", entryID)
		}
		return nil, nil, fmt.Errorf("failed to fetch entry %d: %w", entryID, err)
	}

	entryDate := dateOnly(input.EntryDate)
	var clashID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM daily_entries WHERE cycle_id = $1 AND entry_date = $2 AND id <> $3",
		cycleID, entryDate, entryID,
	).Scan(&clashID)
	if err == nil {
		return nil, nil, newConflictError("an entry for %s already exists", entryDate.Format("2006-01-02"))
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("failed to check for conflicting entry: %w", err)
	}

	// Recompute against the cycle as if the old entry had never happened.
	ReverseEntry(cycle, old)

	priors, err := loadPriorEntries(ctx, tx, cycleID, entryDate, entryID)
	if err != nil {
		return nil, nil, err
	}
	supply, err := feedSupplyAt(ctx, tx, cycle, priors, entryDate)
	if err != nil {
		return nil, nil, err
	}

	entry, _, warning, err := ComputeDailyEntry(s.cfg, cycle, priors, input, supply)
	if err != nil {
		return nil, nil, err
	}

	newBirds := cycle.CurrentBirds - input.Mortality
	newRemaining := cycle.RemainingFeedBags + input.FeedBagsAdded - input.FeedBagsConsumed
	if newRemaining < 0 {
		return nil, nil, &InsufficientInventoryError{
			AttemptedBags: input.FeedBagsConsumed,
			AvailableBags: cycle.RemainingFeedBags + input.FeedBagsAdded,
			ShortageBags:  -newRemaining,
		}
	}

	entry.ID = entryID
	entry.CreatedAt = old.CreatedAt
	_, err = tx.Exec(ctx, `
		UPDATE daily_entries
		SET entry_date = $1, mortality = $2, feed_bags_consumed = $3, feed_bags_added = $4,
		    sampled_weight_grams = $5, birds_surviving = $6, avg_feed_per_bird_grams = $7,
		    avg_weight_kg = $8, fcr = $9, cumulative_mortality = $10, cumulative_feed_bags = $11,
		    remaining_feed_bags = $12, mortality_rate = $13
		WHERE id = $14
	`, entry.EntryDate, entry.Mortality, entry.FeedBagsConsumed, entry.FeedBagsAdded,
		entry.SampledWeightGrams, entry.BirdsSurviving, entry.AvgFeedPerBirdGrams,
		entry.AvgWeightKg, entry.FCR, entry.CumulativeMortality, entry.CumulativeFeedBags,
		entry.RemainingFeedBags, entry.MortalityRate, entryID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update entry %d: %w", entryID, err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE cycles SET current_birds = $1, remaining_feed_bags = $2 WHERE id = $3",
		newBirds, newRemaining, cycleID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update cycle counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit entry update: %w", err)
	}
	return entry, warning, nil
}

func (s *entryService) DeleteEntry(ctx context.Context, companyID, cycleID, entryID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle, err := lockActiveCycle(ctx, tx, companyID, cycleID)
	if err != nil {
		return err
	}

	old, err := scanEntry(tx.QueryRow(ctx,
		"SELECT "+entryColumns+" FROM daily_entries de WHERE de.cycle_id = $1 AND de.id = $2",
		cycleID, entryID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newNotFoundError("entry", entryID)
		}
		return fmt.Errorf("failed to fetch entry %d: %w", entryID, err)
	}

	// The entry's birds come back and its feed movement is reversed. Feed the
	// entry added may already be consumed by later entries; refuse to leave
	// the ledger negative.
	newBirds := cycle.CurrentBirds + old.Mortality
	newRemaining := cycle.RemainingFeedBags + old.FeedBagsConsumed - old.FeedBagsAdded
	if newRemaining < 0 {
		return newConflictError("cannot delete entry for %s: %d bags it added were already consumed",
			old.EntryDate.Format("2006-01-02"), -newRemaining)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM daily_entries WHERE id = $1", entryID); err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", entryID, err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE cycles SET current_birds = $1, remaining_feed_bags = $2 WHERE id = $3",
		newBirds, newRemaining, cycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit entry deletion: %w", err)
	}
	return nil
}
