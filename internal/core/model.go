package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type CycleStatus string

const (
	CycleActive   CycleStatus = "active"
	CycleArchived CycleStatus = "archived"
)

type Company struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Cycle is one rearing batch from stocking to dispatch/archival.
// CurrentBirds and RemainingFeedBags are running state, mutated only through
// the entry, feed and dispatch services.
type Cycle struct {
	ID                int         `json:"id"`
	CompanyID         int         `json:"company_id"`
	CycleNumber       int         `json:"cycle_number"`
	StartDate         time.Time   `json:"start_date"`
	StartBirds        int         `json:"start_birds"`
	CurrentBirds      int         `json:"current_birds"`
	StartFeedBags     int         `json:"start_feed_bags"`
	RemainingFeedBags int         `json:"remaining_feed_bags"`
	Status            CycleStatus `json:"status"`
	EndDate           *time.Time  `json:"end_date,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// CycleInput is the operator submission opening a cycle.
type CycleInput struct {
	StartDate     time.Time
	StartBirds    int
	StartFeedBags int
}

// DailyEntry is one calendar-day record for a cycle. The raw fields are what
// the operator submitted; everything from BirdsSurviving down is derived at
// accept time and stored as computed.
type DailyEntry struct {
	ID                 int       `json:"id"`
	CycleID            int       `json:"cycle_id"`
	EntryDate          time.Time `json:"entry_date"`
	Mortality          int       `json:"mortality"`
	FeedBagsConsumed   int       `json:"feed_bags_consumed"`
	FeedBagsAdded      int       `json:"feed_bags_added"`
	SampledWeightGrams float64   `json:"sampled_weight_grams"`

	BirdsSurviving      int     `json:"birds_surviving"`
	AvgFeedPerBirdGrams float64 `json:"avg_feed_per_bird_grams"`
	AvgWeightKg         float64 `json:"avg_weight_kg"`
	FCR                 float64 `json:"fcr"`
	CumulativeMortality int     `json:"cumulative_mortality"`
	CumulativeFeedBags  int     `json:"cumulative_feed_bags"`
	RemainingFeedBags   int     `json:"remaining_feed_bags"`
	MortalityRate       float64 `json:"mortality_rate"`

	CreatedAt time.Time `json:"created_at"`
}

// EntryInput is the raw operator submission for one day.
type EntryInput struct {
	EntryDate          time.Time
	Mortality          int
	FeedBagsConsumed   int
	FeedBagsAdded      int
	SampledWeightGrams float64
}

// FeedSupply is the engine's view of the feed ledger at the proposed entry
// date: start bags plus purchases dated on or before it plus the additions
// recorded on prior entries. The proposed entry's own FeedBagsAdded is NOT
// included; the engine adds it.
type FeedSupply struct {
	TotalBags int
}

// CycleMutation is the running-state update an accepted entry produces.
// Persistence is the caller's responsibility.
type CycleMutation struct {
	CurrentBirds      int
	RemainingFeedBags int
}

type FeedPurchase struct {
	ID           int             `json:"id"`
	CycleID      int             `json:"cycle_id"`
	PurchaseDate time.Time       `json:"purchase_date"`
	FeedName     string          `json:"feed_name"`
	BillNumber   string          `json:"bill_number"`
	Bags         int             `json:"bags"`
	BagWeightKg  float64         `json:"bag_weight_kg"`
	PricePerKg   decimal.Decimal `json:"price_per_kg"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	CreatedAt    time.Time       `json:"created_at"`
}

// FeedPurchaseInput is the operator submission for one feed purchase.
type FeedPurchaseInput struct {
	PurchaseDate time.Time
	FeedName     string
	BillNumber   string
	Bags         int
	BagWeightKg  float64
	PricePerKg   decimal.Decimal
}

type Medicine struct {
	ID           int             `json:"id"`
	CycleID      int             `json:"cycle_id"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Name         string          `json:"name"`
	Cost         decimal.Decimal `json:"cost"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
}

type MedicineInput struct {
	PurchaseDate time.Time
	Name         string
	Cost         decimal.Decimal
	Notes        string
}

type Expense struct {
	ID          int             `json:"id"`
	CycleID     int             `json:"cycle_id"`
	ExpenseDate time.Time       `json:"expense_date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ExpenseInput struct {
	ExpenseDate time.Time
	Category    string
	Description string
	Amount      decimal.Decimal
}

type DispatchStatus string

const (
	DispatchPending   DispatchStatus = "pending"
	DispatchCompleted DispatchStatus = "completed"
)

// Dispatch is one bird-sale event. Weighing samples accumulate while the
// dispatch is pending; completion freezes the totals and decrements the
// cycle's live count.
type Dispatch struct {
	ID            int              `json:"id"`
	CycleID       int              `json:"cycle_id"`
	DispatchDate  time.Time        `json:"dispatch_date"`
	PartyName     string           `json:"party_name"`
	VehicleNumber string           `json:"vehicle_number"`
	DriverName    string           `json:"driver_name"`
	Status        DispatchStatus   `json:"status"`
	TotalBirds    int              `json:"total_birds"`
	TotalWeightKg float64          `json:"total_weight_kg"`
	AvgWeightKg   float64          `json:"avg_weight_kg"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Weighings     []WeighingSample `json:"weighings,omitempty"`
}

// DispatchInput is the operator submission opening a dispatch.
type DispatchInput struct {
	DispatchDate  time.Time
	PartyName     string
	VehicleNumber string
	DriverName    string
}

type WeighingSample struct {
	ID         int       `json:"id"`
	DispatchID int       `json:"dispatch_id"`
	SerialNo   int       `json:"serial_no"`
	BirdCount  int       `json:"bird_count"`
	WeightKg   float64   `json:"weight_kg"`
	CreatedAt  time.Time `json:"created_at"`
}

// WeighingTotals is the aggregate of a dispatch's weighing samples.
type WeighingTotals struct {
	TotalBirds         int     `json:"total_birds"`
	TotalWeightKg      float64 `json:"total_weight_kg"`
	AvgWeightPerBirdKg float64 `json:"avg_weight_per_bird_kg"`
}

// CycleStats is the whole-cycle summary recomputed on demand from the stored
// rows. Zero-valued FCR/weight entries are excluded from the averages, not
// counted as zeros.
type CycleStats struct {
	CycleID               int             `json:"cycle_id"`
	StartBirds            int             `json:"start_birds"`
	CurrentBirds          int             `json:"current_birds"`
	TotalMortality        int             `json:"total_mortality"`
	TotalFeedBagsConsumed int             `json:"total_feed_bags_consumed"`
	TotalFeedKg           float64         `json:"total_feed_kg"`
	RemainingFeedBags     int             `json:"remaining_feed_bags"`
	AverageFCR            float64         `json:"average_fcr"`
	AverageWeightKg       float64         `json:"average_weight_kg"`
	CumulativeFCR         float64         `json:"cumulative_fcr"`
	TodaysFCR             *float64        `json:"todays_fcr,omitempty"`
	SurvivalRate          float64         `json:"survival_rate"`
	MortalityRate         float64         `json:"mortality_rate"`
	DaysRunning           int             `json:"days_running"`
	DaysToTarget          int             `json:"days_to_target"`
	TotalFeedCost         decimal.Decimal `json:"total_feed_cost"`
	TotalMedicineCost     decimal.Decimal `json:"total_medicine_cost"`
	TotalExpenses         decimal.Decimal `json:"total_expenses"`
}

// FeedStatus summarizes the cycle's feed-bag balance.
type FeedStatus struct {
	TotalSuppliedBags int  `json:"total_supplied_bags"`
	TotalConsumedBags int  `json:"total_consumed_bags"`
	RemainingBags     int  `json:"remaining_bags"`
	LowStock          bool `json:"low_stock"`
}

// DashboardSummary is the active-cycle snapshot for the landing page.
type DashboardSummary struct {
	Cycle         *Cycle      `json:"cycle,omitempty"`
	Stats         *CycleStats `json:"stats,omitempty"`
	LastEntryDate *time.Time  `json:"last_entry_date,omitempty"`
	NoEntryToday  bool        `json:"no_entry_today"`
	LowFeed       bool        `json:"low_feed"`
}

// IncomeEstimateInput carries the unit costs and rates for the income
// projection. Zero-valued fields fall back to configured defaults.
type IncomeEstimateInput struct {
	ChickCostPerBird decimal.Decimal
	FeedCostPerKg    decimal.Decimal
	MedicineCost     decimal.Decimal
	VaccineCost      decimal.Decimal
	OtherCost        decimal.Decimal
	MarketRatePerKg  decimal.Decimal
	PCRatePerBird    decimal.Decimal
	IncomeRatePerKg  decimal.Decimal
	FallbackFCR      float64
	UseMarketRate    bool
}

// IncomeEstimate is the projected profit/loss breakdown for a cycle.
type IncomeEstimate struct {
	CycleID         int             `json:"cycle_id"`
	LiveBirds       int             `json:"live_birds"`
	LiveWeightKg    float64         `json:"live_weight_kg"`
	ChickCost       decimal.Decimal `json:"chick_cost"`
	FeedCost        decimal.Decimal `json:"feed_cost"`
	MedicineCost    decimal.Decimal `json:"medicine_cost"`
	VaccineCost     decimal.Decimal `json:"vaccine_cost"`
	OtherCost       decimal.Decimal `json:"other_cost"`
	ProductionCost  decimal.Decimal `json:"production_cost"`
	EstimatedIncome decimal.Decimal `json:"estimated_income"`
	EstimatedProfit decimal.Decimal `json:"estimated_profit"`
	CostPerKg       decimal.Decimal `json:"cost_per_kg"`
	IncomeBasis     string          `json:"income_basis"` // 'market' or 'pc'
}

// DailyReportDraft is the AI-parsed daily entry proposal. It is never
// committed directly; the operator confirms it through the normal entry path.
type DailyReportDraft struct {
	EntryDate          string  `json:"entry_date" jsonschema_description:"The entry date in YYYY-MM-DD format. Use today's date if the report does not name one."`
	Mortality          int     `json:"mortality" jsonschema_description:"Number of birds that died, 0 if not mentioned"`
	FeedBagsConsumed   int     `json:"feed_bags_consumed" jsonschema_description:"Feed bags consumed today, 0 if not mentioned"`
	FeedBagsAdded      int     `json:"feed_bags_added" jsonschema_description:"Feed bags added to stock today, 0 if not mentioned"`
	SampledWeightGrams float64 `json:"sampled_weight_grams" jsonschema_description:"Sampled average bird weight in grams, 0 if not mentioned"`
	Confidence         float64 `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning          string  `json:"reasoning" jsonschema_description:"Explanation of how the values were read from the report"`
}

// ClarificationRequest is returned by the AI when the report is ambiguous.
type ClarificationRequest struct {
	Message string `json:"message" jsonschema_description:"A message asking the operator for the missing or ambiguous details."`
}

// ReportParseResponse wraps the AI output to handle branching between a valid
// draft or a clarification request. The AI must return exactly one of these.
type ReportParseResponse struct {
	IsClarificationRequest bool                  `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if you lack enough information to propose a daily entry."`
	Clarification          *ClarificationRequest `json:"clarification,omitempty" jsonschema_description:"Required if is_clarification_request is true."`
	Draft                  *DailyReportDraft     `json:"draft,omitempty" jsonschema_description:"Required if is_clarification_request is false."`
}

