package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DispatchService manages bird sales. A dispatch opens pending, accumulates
// weighing samples, and on completion freezes its totals and decrements the
// cycle's live count.
type DispatchService interface {
	CreateDispatch(ctx context.Context, companyID, cycleID int, input DispatchInput) (*Dispatch, error)
	GetDispatches(ctx context.Context, companyID, cycleID int) ([]Dispatch, error)
	GetDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*Dispatch, error)
	AddWeighing(ctx context.Context, companyID, cycleID, dispatchID, birdCount int, weightKg float64) (*Dispatch, error)
	DeleteWeighing(ctx context.Context, companyID, cycleID, dispatchID, weighingID int) (*Dispatch, error)
	CompleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*Dispatch, error)
	DeleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) error
}

type dispatchService struct {
	pool *pgxpool.Pool
}

func NewDispatchService(pool *pgxpool.Pool) DispatchService {
	return &dispatchService{pool: pool}
}

const dispatchColumns = `d.id, d.cycle_id, d.dispatch_date, d.party_name, d.vehicle_number,
	       d.driver_name, d.status, d.total_birds, d.total_weight_kg, d.avg_weight_kg,
	       d.completed_at, d.created_at`

func scanDispatch(row pgx.Row) (*Dispatch, error) {
	var d Dispatch
	err := row.Scan(
		&d.ID, &d.CycleID, &d.DispatchDate, &d.PartyName, &d.VehicleNumber,
		&d.DriverName, &d.Status, &d.TotalBirds, &d.TotalWeightKg, &d.AvgWeightKg,
		&d.CompletedAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *dispatchService) CreateDispatch(ctx context.Context, companyID, cycleID int, input DispatchInput) (*Dispatch, error) {
	if input.DispatchDate.IsZero() {
		return nil, newValidationError("dispatch_date", "must be provided")
	}
	if input.PartyName == "" {
		return nil, newValidationError("party_name", "must be provided")
	}

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
	if cycle.Status != CycleActive {
		return nil, newConflictError("cycle %d is archived; unarchive it to make changes", cycleID)
	}

	dispatch, err := scanDispatch(s.pool.QueryRow(ctx, `
		INSERT INTO dispatches (cycle_id, dispatch_date, party_name, vehicle_number, driver_name, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING `+dispatchColumns,
		cycleID, dateOnly(input.DispatchDate), input.PartyName, input.VehicleNumber, input.DriverName,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert dispatch: %w", err)
	}
	return dispatch, nil
}

func (s *dispatchService) GetDispatches(ctx context.Context, companyID, cycleID int) ([]Dispatch, error) {
	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches d
		WHERE d.cycle_id = $1
		ORDER BY d.dispatch_date DESC, d.id DESC
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatches: %w", err)
	}
	defer rows.Close()

	var dispatches []Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispatch: %w", err)
		}
		dispatches = append(dispatches, *d)
	}
	return dispatches, rows.Err()
}

func (s *dispatchService) GetDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*Dispatch, error) {
	dispatch, err := scanDispatch(s.pool.QueryRow(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches d
		JOIN cycles c ON c.id = d.cycle_id
		WHERE c.company_id = $1 AND d.cycle_id = $2 AND d.id = $3
	`, companyID, cycleID, dispatchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("dispatch", dispatchID)
		}
		return nil, fmt.Errorf("failed to fetch dispatch %d: %w", dispatchID, err)
	}

	weighings, err := fetchWeighings(ctx, s.pool, dispatchID)
	if err != nil {
		return nil, err
	}
	dispatch.Weighings = weighings
	return dispatch, nil
}

func fetchWeighings(ctx context.Context, q pgxRowQuerier, dispatchID int) ([]WeighingSample, error) {
	rows, err := q.Query(ctx, `
		SELECT id, dispatch_id, serial_no, bird_count, weight_kg, created_at
		FROM dispatch_weighings
		WHERE dispatch_id = $1
		ORDER BY serial_no
	`, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weighings: %w", err)
	}
	defer rows.Close()

	var samples []WeighingSample
	for rows.Next() {
		var w WeighingSample
		if err := rows.Scan(&w.ID, &w.DispatchID, &w.SerialNo, &w.BirdCount, &w.WeightKg, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weighing: %w", err)
		}
		samples = append(samples, w)
	}
	return samples, rows.Err()
}

// lockPendingDispatch row-locks the dispatch, requiring pending status.
func lockPendingDispatch(ctx context.Context, tx pgx.Tx, companyID, cycleID, dispatchID int) error {
	var status DispatchStatus
	err := tx.QueryRow(ctx, `
		SELECT d.status
		FROM dispatches d
		JOIN cycles c ON c.id = d.cycle_id
		WHERE c.company_id = $1 AND d.cycle_id = $2 AND d.id = $3
		FOR UPDATE OF d
	`, companyID, cycleID, dispatchID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newNotFoundError("dispatch", dispatchID)
		}
		return fmt.Errorf("failed to lock dispatch %d: %w", dispatchID, err)
	}
	if status != DispatchPending {
		return newConflictError("dispatch %d is completed; its weighings are frozen", dispatchID)
	}
	return nil
}

// refreshTotals recomputes the dispatch's cached totals from its samples.
func refreshTotals(ctx context.Context, tx pgx.Tx, dispatchID int) error {
	samples, err := fetchWeighings(ctx, tx, dispatchID)
	if err != nil {
		return err
	}
	totals := AggregateWeighing(samples)
	_, err = tx.Exec(ctx,
		"UPDATE dispatches SET total_birds = $1, total_weight_kg = $2, avg_weight_kg = $3 WHERE id = $4",
		totals.TotalBirds, totals.TotalWeightKg, totals.AvgWeightPerBirdKg, dispatchID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dispatch totals: %w", err)
	}
	return nil
}

func (s *dispatchService) AddWeighing(ctx context.Context, companyID, cycleID, dispatchID, birdCount int, weightKg float64) (*Dispatch, error) {
	if birdCount <= 0 {
		return nil, newValidationError("bird_count", "must be positive")
	}
	if weightKg <= 0 {
		return nil, newValidationError("weight_kg", "must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockPendingDispatch(ctx, tx, companyID, cycleID, dispatchID); err != nil {
		return nil, err
	}

	var serial int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(serial_no), 0) + 1 FROM dispatch_weighings WHERE dispatch_id = $1",
		dispatchID,
	).Scan(&serial)
	if err != nil {
		return nil, fmt.Errorf("failed to assign weighing serial: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO dispatch_weighings (dispatch_id, serial_no, bird_count, weight_kg) VALUES ($1, $2, $3, $4)",
		dispatchID, serial, birdCount, weightKg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert weighing: %w", err)
	}

	if err := refreshTotals(ctx, tx, dispatchID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit weighing: %w", err)
	}
	return s.GetDispatch(ctx, companyID, cycleID, dispatchID)
}

func (s *dispatchService) DeleteWeighing(ctx context.Context, companyID, cycleID, dispatchID, weighingID int) (*Dispatch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockPendingDispatch(ctx, tx, companyID, cycleID, dispatchID); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		"DELETE FROM dispatch_weighings WHERE dispatch_id = $1 AND id = $2",
		dispatchID, weighingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete weighing %d: %w", weighingID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, newNotFoundError("weighing", weighingID)
	}

	if err := refreshTotals(ctx, tx, dispatchID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit weighing deletion: %w", err)
	}
	return s.GetDispatch(ctx, companyID, cycleID, dispatchID)
}

func (s *dispatchService) CompleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*Dispatch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle, err := lockActiveCycle(ctx, tx, companyID, cycleID)
	if err != nil {
		return nil, err
	}
	if err := lockPendingDispatch(ctx, tx, companyID, cycleID, dispatchID); err != nil {
		return nil, err
	}

	samples, err := fetchWeighings(ctx, tx, dispatchID)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, newValidationError("weighings", "at least one weighing is required to complete a dispatch")
	}
	totals := AggregateWeighing(samples)

	// The weighed count can legitimately exceed the book count when earlier
	// mortality went unrecorded; floor the live counter at zero instead of
	// failing the sale.
	newBirds := cycle.CurrentBirds - totals.TotalBirds
	if newBirds < 0 {
		newBirds = 0
	}

	_, err = tx.Exec(ctx, `
		UPDATE dispatches
		SET status = 'completed', total_birds = $1, total_weight_kg = $2, avg_weight_kg = $3, completed_at = NOW()
		WHERE id = $4
	`, totals.TotalBirds, totals.TotalWeightKg, totals.AvgWeightPerBirdKg, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete dispatch %d: %w", dispatchID, err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE cycles SET current_birds = $1 WHERE id = $2",
		newBirds, cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update cycle bird count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit dispatch completion: %w", err)
	}
	return s.GetDispatch(ctx, companyID, cycleID, dispatchID)
}

func (s *dispatchService) DeleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle, err := lockActiveCycle(ctx, tx, companyID, cycleID)
	if err != nil {
		return err
	}

	var status DispatchStatus
	var totalBirds int
	err = tx.QueryRow(ctx,
		"SELECT status, total_birds FROM dispatches WHERE cycle_id = $1 AND id = $2 FOR UPDATE",
		cycleID, dispatchID,
	).Scan(&status, &totalBirds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newNotFoundError("dispatch", dispatchID)
		}
		return fmt.Errorf("failed to fetch dispatch %d: %w", dispatchID, err)
	}

	if status == DispatchCompleted && totalBirds > 0 {
		// Restore the sold birds, but never above what the mortality records
		// say can still be alive. The decrement floors at zero, so a plain
		// add-back could overshoot.
		var totalMortality int
		err = tx.QueryRow(ctx,
			"SELECT COALESCE(SUM(mortality), 0) FROM daily_entries WHERE cycle_id = $1",
			cycleID,
		).Scan(&totalMortality)
		if err != nil {
			return fmt.Errorf("failed to sum mortality: %w", err)
		}

		restored := cycle.CurrentBirds + totalBirds
		if limit := cycle.StartBirds - totalMortality; restored > limit {
			restored = limit
		}
		if restored < 0 {
			restored = 0
		}

		_, err = tx.Exec(ctx,
			"UPDATE cycles SET current_birds = $1 WHERE id = $2",
			restored, cycleID,
		)
		if err != nil {
			return fmt.Errorf("failed to restore cycle bird count: %w", err)
		}
	}

	// Weighings go with the dispatch via ON DELETE CASCADE.
	if _, err := tx.Exec(ctx, "DELETE FROM dispatches WHERE id = $1", dispatchID); err != nil {
		return fmt.Errorf("failed to delete dispatch %d: %w", dispatchID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dispatch deletion: %w", err)
	}
	return nil
}
