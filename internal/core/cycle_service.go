package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CycleService manages the rearing-cycle lifecycle. A company holds at most
// one active cycle at a time; archived cycles stay readable for reporting.
type CycleService interface {
	CreateCycle(ctx context.Context, companyID int, input CycleInput) (*Cycle, error)
	GetCycle(ctx context.Context, companyID, cycleID int) (*Cycle, error)
	// GetActiveCycle returns ErrNoActiveCycle when the company has none.
	GetActiveCycle(ctx context.Context, companyID int) (*Cycle, error)
	GetCycles(ctx context.Context, companyID int) ([]Cycle, error)
	// ListActiveCycles spans all companies. It exists for the reminder
	// scheduler; request handlers must use the company-scoped getters.
	ListActiveCycles(ctx context.Context) ([]Cycle, error)
	ArchiveCycle(ctx context.Context, companyID, cycleID int, endDate time.Time) (*Cycle, error)
	UnarchiveCycle(ctx context.Context, companyID, cycleID int) (*Cycle, error)
	DeleteCycle(ctx context.Context, companyID, cycleID int) error
}

type cycleService struct {
	pool *pgxpool.Pool
}

func NewCycleService(pool *pgxpool.Pool) CycleService {
	return &cycleService{pool: pool}
}

const cycleColumns = `id, company_id, cycle_number, start_date, start_birds, current_birds,
	       start_feed_bags, remaining_feed_bags, status, end_date, created_at`

func scanCycle(row pgx.Row) (*Cycle, error) {
	var c Cycle
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.CycleNumber, &c.StartDate, &c.StartBirds, &c.CurrentBirds,
		&c.StartFeedBags, &c.RemainingFeedBags, &c.Status, &c.EndDate, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// checkCycle verifies the cycle exists and belongs to the company.
func checkCycle(ctx context.Context, q pgxQuerier, companyID, cycleID int) error {
	var id int
	err := q.QueryRow(ctx,
		"SELECT id FROM cycles WHERE company_id = $1 AND id = $2",
		companyID, cycleID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newNotFoundError("cycle", cycleID)
		}
		return fmt.Errorf("failed to check cycle %d: %w", cycleID, err)
	}
	return nil
}

func (s *cycleService) CreateCycle(ctx context.Context, companyID int, input CycleInput) (*Cycle, error) {
	if input.StartDate.IsZero() {
		return nil, newValidationError("start_date", "must be provided")
	}
	if input.StartBirds <= 0 {
		return nil, newValidationError("start_birds", "must be positive")
	}
	if input.StartFeedBags < 0 {
		return nil, newValidationError("start_feed_bags", "must not be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the company row so concurrent cycle creation serializes; the
	// partial unique index on active cycles backstops this.
	var exists int
	err = tx.QueryRow(ctx, "SELECT id FROM companies WHERE id = $1 FOR UPDATE", companyID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("company", companyID)
		}
		return nil, fmt.Errorf("failed to lock company %d: %w", companyID, err)
	}

	var activeNumber *int
	err = tx.QueryRow(ctx,
		"SELECT cycle_number FROM cycles WHERE company_id = $1 AND status = 'active'",
		companyID,
	).Scan(&activeNumber)
	if err == nil {
		return nil, newConflictError("company already has an active cycle (#%d); archive it first", *activeNumber)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check for active cycle: %w", err)
	}

	var nextNumber int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(cycle_number), 0) + 1 FROM cycles WHERE company_id = $1",
		companyID,
	).Scan(&nextNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to assign cycle number: %w", err)
	}

	cycle, err := scanCycle(tx.QueryRow(ctx, `
		INSERT INTO cycles (company_id, cycle_number, start_date, start_birds, current_birds,
		                    start_feed_bags, remaining_feed_bags, status)
		VALUES ($1, $2, $3, $4, $4, $5, $5, 'active')
		RETURNING `+cycleColumns,
		companyID, nextNumber, input.StartDate, input.StartBirds, input.StartFeedBags,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert cycle: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cycle creation: %w", err)
	}
	return cycle, nil
}

func (s *cycleService) GetCycle(ctx context.Context, companyID, cycleID int) (*Cycle, error) {
	cycle, err := scanCycle(s.pool.QueryRow(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE company_id = $1 AND id = $2",
		companyID, cycleID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("cycle", cycleID)
		}
		return nil, fmt.Errorf("failed to fetch cycle %d: %w", cycleID, err)
	}
	return cycle, nil
}

func (s *cycleService) GetActiveCycle(ctx context.Context, companyID int) (*Cycle, error) {
	cycle, err := scanCycle(s.pool.QueryRow(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE company_id = $1 AND status = 'active'",
		companyID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCycle
		}
		return nil, fmt.Errorf("failed to fetch active cycle: %w", err)
	}
	return cycle, nil
}

func (s *cycleService) GetCycles(ctx context.Context, companyID int) ([]Cycle, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE company_id = $1 ORDER BY cycle_number DESC",
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, *c)
	}
	return cycles, rows.Err()
}

func (s *cycleService) ListActiveCycles(ctx context.Context) ([]Cycle, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE status = 'active' ORDER BY company_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, *c)
	}
	return cycles, rows.Err()
}

func (s *cycleService) ArchiveCycle(ctx context.Context, companyID, cycleID int, endDate time.Time) (*Cycle, error) {
	if endDate.IsZero() {
		endDate = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status CycleStatus
	err = tx.QueryRow(ctx,
		"SELECT status FROM cycles WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, cycleID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("cycle", cycleID)
		}
		return nil, fmt.Errorf("failed to fetch cycle %d: %w", cycleID, err)
	}
	if status != CycleActive {
		return nil, newConflictError("cycle %d is already archived", cycleID)
	}

	cycle, err := scanCycle(tx.QueryRow(ctx, `
		UPDATE cycles SET status = 'archived', end_date = $1
		WHERE company_id = $2 AND id = $3
		RETURNING `+cycleColumns,
		endDate, companyID, cycleID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to archive cycle %d: %w", cycleID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit archive: %w", err)
	}
	return cycle, nil
}

func (s *cycleService) UnarchiveCycle(ctx context.Context, companyID, cycleID int) (*Cycle, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status CycleStatus
	err = tx.QueryRow(ctx,
		"SELECT status FROM cycles WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, cycleID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("cycle", cycleID)
		}
		return nil, fmt.Errorf("failed to fetch cycle %d: %w", cycleID, err)
	}
	if status != CycleArchived {
		return nil, newConflictError("cycle %d is not archived", cycleID)
	}

	var activeNumber int
	err = tx.QueryRow(ctx,
		"SELECT cycle_number FROM cycles WHERE company_id = $1 AND status = 'active' AND id <> $2",
		companyID, cycleID,
	).Scan(&activeNumber)
	if err == nil {
		return nil, newConflictError("company already has an active cycle (#%d); archive it first", activeNumber)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check for active cycle: %w", err)
	}

	cycle, err := scanCycle(tx.QueryRow(ctx, `
		UPDATE cycles SET status = 'active', end_date = NULL
		WHERE company_id = $1 AND id = $2
		RETURNING `+cycleColumns,
		companyID, cycleID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to unarchive cycle %d: %w", cycleID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit unarchive: %w", err)
	}
	return cycle, nil
}

func (s *cycleService) DeleteCycle(ctx context.Context, companyID, cycleID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status CycleStatus
	err = tx.QueryRow(ctx,
		"SELECT status FROM cycles WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, cycleID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newNotFoundError("cycle", cycleID)
		}
		return fmt.Errorf("failed to fetch cycle %d: %w", cycleID, err)
	}
	if status != CycleArchived {
		return newConflictError("cycle %d is active; archive it before deleting", cycleID)
	}

	// Child rows (entries, purchases, medicines, expenses, dispatches) go with
	// the cycle via ON DELETE CASCADE.
	_, err = tx.Exec(ctx,
		"DELETE FROM cycles WHERE company_id = $1 AND id = $2",
		companyID, cycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cycle %d: %w", cycleID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}
