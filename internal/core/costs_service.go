package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CostsService records medicines and miscellaneous expenses against a cycle.
// These are plain bookkeeping rows: they feed the cost reports but never touch
// the cycle's running counters, so archived cycles accept them too (bills
// often arrive after the birds are gone).
type CostsService interface {
	AddMedicine(ctx context.Context, companyID, cycleID int, input MedicineInput) (*Medicine, error)
	GetMedicines(ctx context.Context, companyID, cycleID int) ([]Medicine, error)
	DeleteMedicine(ctx context.Context, companyID, cycleID, medicineID int) error

	AddExpense(ctx context.Context, companyID, cycleID int, input ExpenseInput) (*Expense, error)
	GetExpenses(ctx context.Context, companyID, cycleID int) ([]Expense, error)
	DeleteExpense(ctx context.Context, companyID, cycleID, expenseID int) error
}

type costsService struct {
	pool *pgxpool.Pool
}

func NewCostsService(pool *pgxpool.Pool) CostsService {
	return &costsService{pool: pool}
}

const medicineColumns = "id, cycle_id, purchase_date, name, cost, notes, created_at"

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.CycleID, &m.PurchaseDate, &m.Name, &m.Cost, &m.Notes, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const expenseColumns = "id, cycle_id, expense_date, category, description, amount, created_at"

func scanExpense(row pgx.Row) (*Expense, error) {
	var x Expense
	err := row.Scan(&x.ID, &x.CycleID, &x.ExpenseDate, &x.Category, &x.Description, &x.Amount, &x.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &x, nil
}

func (s *costsService) AddMedicine(ctx context.Context, companyID, cycleID int, input MedicineInput) (*Medicine, error) {
	if input.PurchaseDate.IsZero() {
		return nil, newValidationError("purchase_date", "must be provided")
	}
	if input.Name == "" {
		return nil, newValidationError("name", "must be provided")
	}
	if input.Cost.IsNegative() {
		return nil, newValidationError("cost", "must not be negative")
	}

	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return nil, err
	}

	medicine, err := scanMedicine(s.pool.QueryRow(ctx, `
		INSERT INTO medicines (cycle_id, purchase_date, name, cost, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+medicineColumns,
		cycleID, dateOnly(input.PurchaseDate), input.Name, input.Cost, input.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert medicine: %w", err)
	}
	return medicine, nil
}

func (s *costsService) GetMedicines(ctx context.Context, companyID, cycleID int) ([]Medicine, error) {
	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+medicineColumns+" FROM medicines WHERE cycle_id = $1 ORDER BY purchase_date, id",
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query medicines: %w", err)
	}
	defer rows.Close()

	var medicines []Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		medicines = append(medicines, *m)
	}
	return medicines, rows.Err()
}

func (s *costsService) DeleteMedicine(ctx context.Context, companyID, cycleID, medicineID int) error {
	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		"DELETE FROM medicines WHERE cycle_id = $1 AND id = $2",
		cycleID, medicineID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete medicine %d: %w", medicineID, err)
	}
	if tag.RowsAffected() == 0 {
		return newNotFoundError("medicine", medicineID)
	}
	return nil
}

func (s *costsService) AddExpense(ctx context.Context, companyID, cycleID int, input ExpenseInput) (*Expense, error) {
	if input.ExpenseDate.IsZero() {
		return nil, newValidationError("expense_date", "must be provided")
	}
	if input.Category == "" {
		return nil, newValidationError("category", "must be provided")
	}
	if input.Amount.IsNegative() {
		return nil, newValidationError("amount", "must not be negative")
	}

	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return nil, err
	}

	expense, err := scanExpense(s.pool.QueryRow(ctx, `
		INSERT INTO expenses (cycle_id, expense_date, category, description, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+expenseColumns,
		cycleID, dateOnly(input.ExpenseDate), input.Category, input.Description, input.Amount,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}
	return expense, nil
}

func (s *costsService) GetExpenses(ctx context.Context, companyID, cycleID int) ([]Expense, error) {
	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE cycle_id = $1 ORDER BY expense_date, id",
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		x, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *x)
	}
	return expenses, rows.Err()
}

func (s *costsService) DeleteExpense(ctx context.Context, companyID, cycleID, expenseID int) error {
	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		"DELETE FROM expenses WHERE cycle_id = $1 AND id = $2",
		cycleID, expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", expenseID, err)
	}
	if tag.RowsAffected() == 0 {
		return newNotFoundError("expense", expenseID)
	}
	return nil
}
