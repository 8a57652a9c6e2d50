package app

import (
	"context"
	"io"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

// ApplicationService is the single interface all UI adapters (browser pages,
// JSON API, background jobs) call. It decouples presentation from business
// logic. Implementations must contain no display logic of any kind.
type ApplicationService interface {
	// RegisterCompany creates a farm and its founding admin user in one
	// transaction and returns a session for immediate login.
	RegisterCompany(ctx context.Context, req RegisterCompanyRequest) (*UserSession, error)

	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID int) (*core.User, error)

	// GetCompany returns the company record.
	GetCompany(ctx context.Context, companyID int) (*core.Company, error)

	// ListUsers returns every user in the company, newest first.
	ListUsers(ctx context.Context, companyID int) ([]core.User, error)

	// CreateUser adds a user to the company. Role defaults to manager.
	CreateUser(ctx context.Context, companyID int, input core.UserInput) (*core.User, error)

	// SetUserActive enables or disables a user's login.
	SetUserActive(ctx context.Context, companyID, userID int, active bool) (*core.User, error)

	// CreateCycle opens a new production cycle. Fails while another is active.
	CreateCycle(ctx context.Context, companyID int, input core.CycleInput) (*core.Cycle, error)

	// GetCycle returns one cycle of the company.
	GetCycle(ctx context.Context, companyID, cycleID int) (*core.Cycle, error)

	// GetActiveCycle returns the running cycle, or core.ErrNoActiveCycle.
	GetActiveCycle(ctx context.Context, companyID int) (*core.Cycle, error)

	// ListCycles returns all the company's cycles, newest first.
	ListCycles(ctx context.Context, companyID int) ([]core.Cycle, error)

	// ArchiveCycle closes the cycle. A zero endDate means today.
	ArchiveCycle(ctx context.Context, companyID, cycleID int, endDate time.Time) (*core.Cycle, error)

	// UnarchiveCycle reopens an archived cycle if no other cycle is active.
	UnarchiveCycle(ctx context.Context, companyID, cycleID int) (*core.Cycle, error)

	// DeleteCycle removes an archived cycle and all its records.
	DeleteCycle(ctx context.Context, companyID, cycleID int) error

	// RecordEntry books one day's figures against the cycle. The result
	// carries a warning when feed stock ends at or below the threshold.
	RecordEntry(ctx context.Context, companyID, cycleID int, input core.EntryInput) (*EntryResult, error)

	// GetEntries returns the cycle's daily entries in date order.
	GetEntries(ctx context.Context, companyID, cycleID int) ([]core.DailyEntry, error)

	// GetEntry returns a single daily entry.
	GetEntry(ctx context.Context, companyID, cycleID, entryID int) (*core.DailyEntry, error)

	// UpdateEntry replaces an entry's figures and rebalances the cycle's
	// running counters.
	UpdateEntry(ctx context.Context, companyID, cycleID, entryID int, input core.EntryInput) (*EntryResult, error)

	// DeleteEntry removes an entry and restores the counters it moved.
	DeleteEntry(ctx context.Context, companyID, cycleID, entryID int) error

	// ImportEntries records daily entries from a CSV stream, one row at a
	// time. Row failures are reported in the result, not returned as errors.
	ImportEntries(ctx context.Context, companyID, cycleID int, r io.Reader) (*core.ImportReport, error)

	// AddFeedPurchase books a feed delivery and raises the cycle's stock.
	AddFeedPurchase(ctx context.Context, companyID, cycleID int, input core.FeedPurchaseInput) (*core.FeedPurchase, error)

	// GetFeedPurchases returns the cycle's purchases, newest first.
	GetFeedPurchases(ctx context.Context, companyID, cycleID int) ([]core.FeedPurchase, error)

	// DeleteFeedPurchase removes a purchase whose bags are still in stock.
	DeleteFeedPurchase(ctx context.Context, companyID, cycleID, purchaseID int) error

	// GetFeedStatus returns the cycle's feed-bag balance.
	GetFeedStatus(ctx context.Context, companyID, cycleID int) (*core.FeedStatus, error)

	// AddMedicine records a medicine or vaccine cost against the cycle.
	AddMedicine(ctx context.Context, companyID, cycleID int, input core.MedicineInput) (*core.Medicine, error)

	// GetMedicines returns the cycle's medicine records, newest first.
	GetMedicines(ctx context.Context, companyID, cycleID int) ([]core.Medicine, error)

	// DeleteMedicine removes a medicine record.
	DeleteMedicine(ctx context.Context, companyID, cycleID, medicineID int) error

	// AddExpense records a miscellaneous expense against the cycle.
	AddExpense(ctx context.Context, companyID, cycleID int, input core.ExpenseInput) (*core.Expense, error)

	// GetExpenses returns the cycle's expenses, newest first.
	GetExpenses(ctx context.Context, companyID, cycleID int) ([]core.Expense, error)

	// DeleteExpense removes an expense record.
	DeleteExpense(ctx context.Context, companyID, cycleID, expenseID int) error

	// CreateDispatch opens a pending dispatch for a buying party.
	CreateDispatch(ctx context.Context, companyID, cycleID int, input core.DispatchInput) (*core.Dispatch, error)

	// GetDispatches returns the cycle's dispatches, newest first.
	GetDispatches(ctx context.Context, companyID, cycleID int) ([]core.Dispatch, error)

	// GetDispatch returns one dispatch with its weighings.
	GetDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*core.Dispatch, error)

	// AddWeighing appends a weighbridge reading to a pending dispatch.
	AddWeighing(ctx context.Context, companyID, cycleID, dispatchID, birdCount int, weightKg float64) (*core.Dispatch, error)

	// DeleteWeighing removes a reading from a pending dispatch.
	DeleteWeighing(ctx context.Context, companyID, cycleID, dispatchID, weighingID int) (*core.Dispatch, error)

	// CompleteDispatch freezes the weighings and removes the dispatched
	// birds from the cycle.
	CompleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*core.Dispatch, error)

	// DeleteDispatch removes a dispatch; a completed one returns its birds.
	DeleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) error

	// GetDashboard returns the landing-page snapshot for the active cycle.
	GetDashboard(ctx context.Context, companyID int) (*core.DashboardSummary, error)

	// GetCycleStats returns the cycle's cumulative performance figures.
	GetCycleStats(ctx context.Context, companyID, cycleID int) (*core.CycleStats, error)

	// EstimateIncome projects cost and income for the cycle. Rates the
	// operator left blank fall back to the configured defaults.
	EstimateIncome(ctx context.Context, companyID, cycleID int, input core.IncomeEstimateInput) (*core.IncomeEstimate, error)

	// ExportEntriesCSV streams the cycle's daily entries as CSV.
	ExportEntriesCSV(ctx context.Context, companyID, cycleID int, w io.Writer) error

	// ExportCycleXLSX streams the full cycle report as an XLSX workbook.
	ExportCycleXLSX(ctx context.Context, companyID, cycleID int, w io.Writer) error

	// ParseDailyReport sends a free-text farm report to the AI parser and
	// returns either a daily entry draft or a clarification request.
	ParseDailyReport(ctx context.Context, report string) (*ReportParseResult, error)
}
