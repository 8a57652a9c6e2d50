package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arunteja30/poultry-tracker/internal/ai"
	"github.com/arunteja30/poultry-tracker/internal/config"
	"github.com/arunteja30/poultry-tracker/internal/core"
	"github.com/arunteja30/poultry-tracker/internal/export"
	"github.com/arunteja30/poultry-tracker/internal/metrics"
)

// Services bundles the core services the facade drives.
type Services struct {
	Users      core.UserService
	Cycles     core.CycleService
	Entries    core.EntryService
	Feed       core.FeedService
	Costs      core.CostsService
	Dispatches core.DispatchService
	Reporting  core.ReportingService
	Importer   core.ImportService
}

type appService struct {
	pool         *pgxpool.Pool
	svcs         Services
	parser       ai.ReportParser
	metrics      *metrics.Metrics
	costDefaults config.CostConfig
}

// NewAppService constructs an appService that satisfies ApplicationService.
// parser may be nil when no AI key is configured; the parse endpoint then
// reports the feature as unavailable.
func NewAppService(
	pool *pgxpool.Pool,
	svcs Services,
	parser ai.ReportParser,
	m *metrics.Metrics,
	costDefaults config.CostConfig,
) ApplicationService {
	return &appService{
		pool:         pool,
		svcs:         svcs,
		parser:       parser,
		metrics:      m,
		costDefaults: costDefaults,
	}
}

// RegisterCompany creates a farm and its founding admin user.
func (s *appService) RegisterCompany(ctx context.Context, req RegisterCompanyRequest) (*UserSession, error) {
	company, user, err := s.svcs.Users.RegisterCompany(ctx, req.FarmName, core.UserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     core.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}
	return &UserSession{User: user, Company: company}, nil
}

// AuthenticateUser verifies credentials and returns a session on success.
func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.svcs.Users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	company, err := s.GetCompany(ctx, user.CompanyID)
	if err != nil {
		return nil, err
	}
	return &UserSession{User: user, Company: company}, nil
}

// GetUser returns a user profile by ID.
func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.svcs.Users.GetByID(ctx, userID)
}

// GetCompany returns the company record.
func (s *appService) GetCompany(ctx context.Context, companyID int) (*core.Company, error) {
	c := &core.Company{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, created_at FROM companies WHERE id = $1", companyID,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &core.NotFoundError{Resource: "company", ID: companyID}
		}
		return nil, fmt.Errorf("failed to fetch company %d: %w", companyID, err)
	}
	return c, nil
}

// ListUsers returns every user in the company, newest first.
func (s *appService) ListUsers(ctx context.Context, companyID int) ([]core.User, error) {
	return s.svcs.Users.GetUsers(ctx, companyID)
}

// CreateUser adds a user to the company.
func (s *appService) CreateUser(ctx context.Context, companyID int, input core.UserInput) (*core.User, error) {
	return s.svcs.Users.CreateUser(ctx, companyID, input)
}

// SetUserActive enables or disables a user's login.
func (s *appService) SetUserActive(ctx context.Context, companyID, userID int, active bool) (*core.User, error) {
	return s.svcs.Users.SetUserActive(ctx, companyID, userID, active)
}

// CreateCycle opens a new production cycle.
func (s *appService) CreateCycle(ctx context.Context, companyID int, input core.CycleInput) (*core.Cycle, error) {
	return s.svcs.Cycles.CreateCycle(ctx, companyID, input)
}

// GetCycle returns one cycle of the company.
func (s *appService) GetCycle(ctx context.Context, companyID, cycleID int) (*core.Cycle, error) {
	return s.svcs.Cycles.GetCycle(ctx, companyID, cycleID)
}

// GetActiveCycle returns the running cycle, or core.ErrNoActiveCycle.
func (s *appService) GetActiveCycle(ctx context.Context, companyID int) (*core.Cycle, error) {
	return s.svcs.Cycles.GetActiveCycle(ctx, companyID)
}

// ListCycles returns all the company's cycles, newest first.
func (s *appService) ListCycles(ctx context.Context, companyID int) ([]core.Cycle, error) {
	return s.svcs.Cycles.GetCycles(ctx, companyID)
}

// ArchiveCycle closes the cycle.
func (s *appService) ArchiveCycle(ctx context.Context, companyID, cycleID int, endDate time.Time) (*core.Cycle, error) {
	return s.svcs.Cycles.ArchiveCycle(ctx, companyID, cycleID, endDate)
}

// UnarchiveCycle reopens an archived cycle.
func (s *appService) UnarchiveCycle(ctx context.Context, companyID, cycleID int) (*core.Cycle, error) {
	return s.svcs.Cycles.UnarchiveCycle(ctx, companyID, cycleID)
}

// DeleteCycle removes an archived cycle and all its records.
func (s *appService) DeleteCycle(ctx context.Context, companyID, cycleID int) error {
	return s.svcs.Cycles.DeleteCycle(ctx, companyID, cycleID)
}

// RecordEntry books one day's figures against the cycle.
func (s *appService) RecordEntry(ctx context.Context, companyID, cycleID int, input core.EntryInput) (*EntryResult, error) {
	entry, warning, err := s.svcs.Entries.RecordEntry(ctx, companyID, cycleID, input)
	if err != nil {
		s.metrics.RecordEntryRejected(entryRejectReason(err))
		return nil, err
	}
	s.metrics.RecordEntryAccepted(warning != nil)
	return &EntryResult{Entry: entry, Warning: warning}, nil
}

// GetEntries returns the cycle's daily entries in date order.
func (s *appService) GetEntries(ctx context.Context, companyID, cycleID int) ([]core.DailyEntry, error) {
	return s.svcs.Entries.GetEntries(ctx, companyID, cycleID)
}

// GetEntry returns a single daily entry.
func (s *appService) GetEntry(ctx context.Context, companyID, cycleID, entryID int) (*core.DailyEntry, error) {
	return s.svcs.Entries.GetEntry(ctx, companyID, cycleID, entryID)
}

// UpdateEntry replaces an entry's figures.
func (s *appService) UpdateEntry(ctx context.Context, companyID, cycleID, entryID int, input core.EntryInput) (*EntryResult, error) {
	entry, warning, err := s.svcs.Entries.UpdateEntry(ctx, companyID, cycleID, entryID, input)
	if err != nil {
		return nil, err
	}
	return &EntryResult{Entry: entry, Warning: warning}, nil
}

// DeleteEntry removes an entry and restores the counters it moved.
func (s *appService) DeleteEntry(ctx context.Context, companyID, cycleID, entryID int) error {
	return s.svcs.Entries.DeleteEntry(ctx, companyID, cycleID, entryID)
}

// ImportEntries records daily entries from a CSV stream.
func (s *appService) ImportEntries(ctx context.Context, companyID, cycleID int, r io.Reader) (*core.ImportReport, error) {
	report, err := s.svcs.Importer.ImportEntries(ctx, companyID, cycleID, r)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordImportRows(report.Imported, report.Skipped)
	return report, nil
}

// AddFeedPurchase books a feed delivery and raises the cycle's stock.
func (s *appService) AddFeedPurchase(ctx context.Context, companyID, cycleID int, input core.FeedPurchaseInput) (*core.FeedPurchase, error) {
	return s.svcs.Feed.AddPurchase(ctx, companyID, cycleID, input)
}

// GetFeedPurchases returns the cycle's purchases, newest first.
func (s *appService) GetFeedPurchases(ctx context.Context, companyID, cycleID int) ([]core.FeedPurchase, error) {
	return s.svcs.Feed.GetPurchases(ctx, companyID, cycleID)
}

// DeleteFeedPurchase removes a purchase whose bags are still in stock.
func (s *appService) DeleteFeedPurchase(ctx context.Context, companyID, cycleID, purchaseID int) error {
	return s.svcs.Feed.DeletePurchase(ctx, companyID, cycleID, purchaseID)
}

// GetFeedStatus returns the cycle's feed-bag balance.
func (s *appService) GetFeedStatus(ctx context.Context, companyID, cycleID int) (*core.FeedStatus, error) {
	return s.svcs.Feed.GetFeedStatus(ctx, companyID, cycleID)
}

// AddMedicine records a medicine or vaccine cost against the cycle.
func (s *appService) AddMedicine(ctx context.Context, companyID, cycleID int, input core.MedicineInput) (*core.Medicine, error) {
	return s.svcs.Costs.AddMedicine(ctx, companyID, cycleID, input)
}

// GetMedicines returns the cycle's medicine records, newest first.
func (s *appService) GetMedicines(ctx context.Context, companyID, cycleID int) ([]core.Medicine, error) {
	return s.svcs.Costs.GetMedicines(ctx, companyID, cycleID)
}

// DeleteMedicine removes a medicine record.
func (s *appService) DeleteMedicine(ctx context.Context, companyID, cycleID, medicineID int) error {
	return s.svcs.Costs.DeleteMedicine(ctx, companyID, cycleID, medicineID)
}

// AddExpense records a miscellaneous expense against the cycle.
func (s *appService) AddExpense(ctx context.Context, companyID, cycleID int, input core.ExpenseInput) (*core.Expense, error) {
	return s.svcs.Costs.AddExpense(ctx, companyID, cycleID, input)
}

// GetExpenses returns the cycle's expenses, newest first.
func (s *appService) GetExpenses(ctx context.Context, companyID, cycleID int) ([]core.Expense, error) {
	return s.svcs.Costs.GetExpenses(ctx, companyID, cycleID)
}

// DeleteExpense removes an expense record.
func (s *appService) DeleteExpense(ctx context.Context, companyID, cycleID, expenseID int) error {
	return s.svcs.Costs.DeleteExpense(ctx, companyID, cycleID, expenseID)
}

// CreateDispatch opens a pending dispatch for a buying party.
func (s *appService) CreateDispatch(ctx context.Context, companyID, cycleID int, input core.DispatchInput) (*core.Dispatch, error) {
	return s.svcs.Dispatches.CreateDispatch(ctx, companyID, cycleID, input)
}

// GetDispatches returns the cycle's dispatches, newest first.
func (s *appService) GetDispatches(ctx context.Context, companyID, cycleID int) ([]core.Dispatch, error) {
	return s.svcs.Dispatches.GetDispatches(ctx, companyID, cycleID)
}

// GetDispatch returns one dispatch with its weighings.
func (s *appService) GetDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*core.Dispatch, error) {
	return s.svcs.Dispatches.GetDispatch(ctx, companyID, cycleID, dispatchID)
}

// AddWeighing appends a weighbridge reading to a pending dispatch.
func (s *appService) AddWeighing(ctx context.Context, companyID, cycleID, dispatchID, birdCount int, weightKg float64) (*core.Dispatch, error) {
	return s.svcs.Dispatches.AddWeighing(ctx, companyID, cycleID, dispatchID, birdCount, weightKg)
}

// DeleteWeighing removes a reading from a pending dispatch.
func (s *appService) DeleteWeighing(ctx context.Context, companyID, cycleID, dispatchID, weighingID int) (*core.Dispatch, error) {
	return s.svcs.Dispatches.DeleteWeighing(ctx, companyID, cycleID, dispatchID, weighingID)
}

// CompleteDispatch freezes the weighings and removes the dispatched birds.
func (s *appService) CompleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) (*core.Dispatch, error) {
	dispatch, err := s.svcs.Dispatches.CompleteDispatch(ctx, companyID, cycleID, dispatchID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordDispatchCompleted()
	return dispatch, nil
}

// DeleteDispatch removes a dispatch; a completed one returns its birds.
func (s *appService) DeleteDispatch(ctx context.Context, companyID, cycleID, dispatchID int) error {
	return s.svcs.Dispatches.DeleteDispatch(ctx, companyID, cycleID, dispatchID)
}

// GetDashboard returns the landing-page snapshot for the active cycle.
func (s *appService) GetDashboard(ctx context.Context, companyID int) (*core.DashboardSummary, error) {
	return s.svcs.Reporting.GetDashboard(ctx, companyID, time.Now())
}

// GetCycleStats returns the cycle's cumulative performance figures.
func (s *appService) GetCycleStats(ctx context.Context, companyID, cycleID int) (*core.CycleStats, error) {
	return s.svcs.Reporting.GetCycleStats(ctx, companyID, cycleID, time.Now())
}

// EstimateIncome projects cost and income for the cycle, filling configured
// defaults for every rate the operator left blank.
func (s *appService) EstimateIncome(ctx context.Context, companyID, cycleID int, input core.IncomeEstimateInput) (*core.IncomeEstimate, error) {
	return s.svcs.Reporting.EstimateIncome(ctx, companyID, cycleID, s.fillIncomeDefaults(input))
}

// ExportEntriesCSV streams the cycle's daily entries as CSV.
func (s *appService) ExportEntriesCSV(ctx context.Context, companyID, cycleID int, w io.Writer) error {
	if _, err := s.svcs.Cycles.GetCycle(ctx, companyID, cycleID); err != nil {
		return err
	}
	entries, err := s.svcs.Entries.GetEntries(ctx, companyID, cycleID)
	if err != nil {
		return err
	}
	return export.WriteEntriesCSV(w, entries)
}

// ExportCycleXLSX streams the full cycle report as an XLSX workbook.
func (s *appService) ExportCycleXLSX(ctx context.Context, companyID, cycleID int, w io.Writer) error {
	report, err := s.buildCycleReport(ctx, companyID, cycleID)
	if err != nil {
		return err
	}
	return export.WriteCycleXLSX(w, report)
}

// ParseDailyReport sends a free-text farm report to the AI parser and returns
// either a daily entry draft or a clarification request.
func (s *appService) ParseDailyReport(ctx context.Context, report string) (*ReportParseResult, error) {
	if s.parser == nil {
		return nil, &core.ConflictError{Message: "AI report parsing is not configured; set OPENAI_API_KEY"}
	}

	response, err := s.parser.ParseDailyReport(ctx, report, time.Now())
	if err != nil {
		s.metrics.RecordReportParse("error")
		return nil, err
	}

	if response.IsClarificationRequest {
		s.metrics.RecordReportParse("clarification")
		return &ReportParseResult{
			IsClarification:      true,
			ClarificationMessage: response.Clarification.Message,
		}, nil
	}

	s.metrics.RecordReportParse("draft")
	return &ReportParseResult{Draft: response.Draft}, nil
}

// ── private helpers ───────────────────────────────────────────────────────────

// fillIncomeDefaults substitutes the configured default for every rate the
// operator left at zero.
func (s *appService) fillIncomeDefaults(in core.IncomeEstimateInput) core.IncomeEstimateInput {
	d := s.costDefaults
	if in.ChickCostPerBird.IsZero() {
		in.ChickCostPerBird = d.ChickCostPerBird
	}
	if in.FeedCostPerKg.IsZero() {
		in.FeedCostPerKg = d.FeedCostPerKg
	}
	if in.MedicineCost.IsZero() {
		in.MedicineCost = d.MedicineCost
	}
	if in.VaccineCost.IsZero() {
		in.VaccineCost = d.VaccineCost
	}
	if in.OtherCost.IsZero() {
		in.OtherCost = d.OtherCost
	}
	if in.MarketRatePerKg.IsZero() {
		in.MarketRatePerKg = d.MarketRatePerKg
	}
	if in.PCRatePerBird.IsZero() {
		in.PCRatePerBird = d.PCRatePerBird
	}
	if in.IncomeRatePerKg.IsZero() {
		in.IncomeRatePerKg = d.IncomeRatePerKg
	}
	if in.FallbackFCR <= 0 {
		in.FallbackFCR = d.FallbackFCR
	}
	return in
}

// buildCycleReport gathers every record the workbook export presents.
func (s *appService) buildCycleReport(ctx context.Context, companyID, cycleID int) (export.CycleReport, error) {
	var report export.CycleReport

	cycle, err := s.svcs.Cycles.GetCycle(ctx, companyID, cycleID)
	if err != nil {
		return report, err
	}
	stats, err := s.svcs.Reporting.GetCycleStats(ctx, companyID, cycleID, time.Now())
	if err != nil {
		return report, err
	}
	entries, err := s.svcs.Entries.GetEntries(ctx, companyID, cycleID)
	if err != nil {
		return report, err
	}
	purchases, err := s.svcs.Feed.GetPurchases(ctx, companyID, cycleID)
	if err != nil {
		return report, err
	}
	medicines, err := s.svcs.Costs.GetMedicines(ctx, companyID, cycleID)
	if err != nil {
		return report, err
	}
	expenses, err := s.svcs.Costs.GetExpenses(ctx, companyID, cycleID)
	if err != nil {
		return report, err
	}
	dispatches, err := s.svcs.Dispatches.GetDispatches(ctx, companyID, cycleID)
	if err != nil {
		return report, err
	}

	return export.CycleReport{
		Cycle:      cycle,
		Stats:      stats,
		Entries:    entries,
		Purchases:  purchases,
		Medicines:  medicines,
		Expenses:   expenses,
		Dispatches: dispatches,
	}, nil
}

// entryRejectReason buckets an entry failure for the rejection counter.
func entryRejectReason(err error) string {
	var insufficientErr *core.InsufficientInventoryError
	var validationErr *core.ValidationError
	var conflictErr *core.ConflictError
	switch {
	case errors.As(err, &insufficientErr):
		return "insufficient_feed"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &conflictErr):
		return "duplicate"
	default:
		return "other"
	}
}
