package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only aggregation over the cycle records.
// Everything is recomputed from the raw rows on each call; the derived fields
// stored on entries are display history, never report inputs.
type ReportingService interface {
	// GetCycleStats returns the whole-cycle summary as of the given day.
	GetCycleStats(ctx context.Context, companyID, cycleID int, asOf time.Time) (*CycleStats, error)

	// GetDashboard returns the landing-page snapshot for the company's active
	// cycle. With no active cycle it returns an empty summary, not an error.
	GetDashboard(ctx context.Context, companyID int, today time.Time) (*DashboardSummary, error)

	// EstimateIncome projects production cost and sale income for the cycle
	// from the supplied unit rates. The caller fills defaults for any rate the
	// operator left blank.
	EstimateIncome(ctx context.Context, companyID, cycleID int, input IncomeEstimateInput) (*IncomeEstimate, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	pool *pgxpool.Pool
	cfg  EngineConfig
}

// NewReportingService constructs a ReportingService backed by the given pool.
func NewReportingService(pool *pgxpool.Pool, cfg EngineConfig) ReportingService {
	return &reportingService{pool: pool, cfg: cfg}
}

// loadCycleRecords fetches everything the aggregations need in one place.
func (s *reportingService) loadCycleRecords(ctx context.Context, companyID, cycleID int) (*Cycle, []DailyEntry, []Medicine, []Expense, error) {
	cycle, err := scanCycle(s.pool.QueryRow(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE company_id = $1 AND id = $2",
		companyID, cycleID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil, nil, newNotFoundError("cycle", cycleID)
		}
		return nil, nil, nil, nil, fmt.Errorf("failed to fetch cycle %d: %w", cycleID, err)
	}

	entries, err := loadEntries(ctx, s.pool, cycleID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	medRows, err := s.pool.Query(ctx,
		"SELECT "+medicineColumns+" FROM medicines WHERE cycle_id = $1 ORDER BY purchase_date, id",
		cycleID,
	)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to query medicines: %w", err)
	}
	defer medRows.Close()
	var medicines []Medicine
	for medRows.Next() {
		m, err := scanMedicine(medRows)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		medicines = append(medicines, *m)
	}
	if err := medRows.Err(); err != nil {
		return nil, nil, nil, nil, err
	}

	expRows, err := s.pool.Query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE cycle_id = $1 ORDER BY expense_date, id",
		cycleID,
	)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer expRows.Close()
	var expenses []Expense
	for expRows.Next() {
		x, err := scanExpense(expRows)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *x)
	}
	return cycle, entries, medicines, expenses, expRows.Err()
}

func (s *reportingService) GetCycleStats(ctx context.Context, companyID, cycleID int, asOf time.Time) (*CycleStats, error) {
	cycle, entries, medicines, expenses, err := s.loadCycleRecords(ctx, companyID, cycleID)
	if err != nil {
		return nil, err
	}

	stats := ComputeCycleStats(s.cfg, cycle, entries, medicines, expenses, asOf)
	stats.TodaysFCR = ComputeTodaysFCR(s.cfg, cycle, entries, asOf)
	return &stats, nil
}

func (s *reportingService) GetDashboard(ctx context.Context, companyID int, today time.Time) (*DashboardSummary, error) {
	cycle, err := scanCycle(s.pool.QueryRow(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE company_id = $1 AND status = 'active'",
		companyID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &DashboardSummary{}, nil
		}
		return nil, fmt.Errorf("failed to fetch active cycle: %w", err)
	}

	stats, err := s.GetCycleStats(ctx, companyID, cycle.ID, today)
	if err != nil {
		return nil, err
	}

	var lastEntryDate *time.Time
	err = s.pool.QueryRow(ctx,
		"SELECT MAX(entry_date) FROM daily_entries WHERE cycle_id = $1",
		cycle.ID,
	).Scan(&lastEntryDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch last entry date: %w", err)
	}

	noEntryToday := lastEntryDate == nil || !sameDate(*lastEntryDate, today)

	return &DashboardSummary{
		Cycle:         cycle,
		Stats:         stats,
		LastEntryDate: lastEntryDate,
		NoEntryToday:  noEntryToday,
		LowFeed:       cycle.RemainingFeedBags <= s.cfg.LowStockThresholdBags,
	}, nil
}

func (s *reportingService) EstimateIncome(ctx context.Context, companyID, cycleID int, input IncomeEstimateInput) (*IncomeEstimate, error) {
	cycle, entries, medicines, expenses, err := s.loadCycleRecords(ctx, companyID, cycleID)
	if err != nil {
		return nil, err
	}

	stats := ComputeCycleStats(s.cfg, cycle, entries, medicines, expenses, time.Now())
	estimate := EstimateIncome(cycle, stats, input)
	return &estimate, nil
}
