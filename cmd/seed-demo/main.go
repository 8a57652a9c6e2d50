// seed-demo wipes and recreates the demo farm so the app can be tried against
// realistic data: one finished cycle with dispatches and one active cycle in
// its second week. Entries go through the regular services, which keeps the
// derived columns consistent with what the app would have computed.
//
// Usage: go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/arunteja30/poultry-tracker/internal/core"
	"github.com/arunteja30/poultry-tracker/internal/db"
)

const demoFarmName = "Demo Broiler Farm"

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, envDatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	log.Println("Removing previous demo farm...")
	if _, err := pool.Exec(ctx, "DELETE FROM companies WHERE name = $1", demoFarmName); err != nil {
		log.Fatalf("Failed to remove previous demo farm: %v", err)
	}

	engineCfg := core.DefaultEngineConfig()
	users := core.NewUserService(pool)
	cycles := core.NewCycleService(pool)
	entries := core.NewEntryService(pool, engineCfg)
	feed := core.NewFeedService(pool, engineCfg)
	costs := core.NewCostsService(pool)
	dispatches := core.NewDispatchService(pool)

	log.Println("Creating demo farm and users...")
	company, _, err := users.RegisterCompany(ctx, demoFarmName, core.UserInput{
		Username: "demo",
		Email:    "demo@example.com",
		Password: "demo1234",
	})
	if err != nil {
		log.Fatalf("Failed to register demo farm: %v", err)
	}
	if _, err := users.CreateUser(ctx, company.ID, core.UserInput{
		Username: "supervisor",
		Email:    "supervisor@example.com",
		Password: "demo1234",
		Role:     core.RoleManager,
	}); err != nil {
		log.Fatalf("Failed to create supervisor user: %v", err)
	}
	if _, err := users.CreateUser(ctx, company.ID, core.UserInput{
		Username: "accountant",
		Email:    "accountant@example.com",
		Password: "demo1234",
		Role:     core.RoleViewer,
	}); err != nil {
		log.Fatalf("Failed to create accountant user: %v", err)
	}

	s := seeder{
		companyID:  company.ID,
		cycles:     cycles,
		entries:    entries,
		feed:       feed,
		costs:      costs,
		dispatches: dispatches,
	}

	log.Println("Seeding finished cycle #1...")
	if err := s.seedFinishedCycle(ctx); err != nil {
		log.Fatalf("Failed to seed finished cycle: %v", err)
	}

	log.Println("Seeding active cycle #2...")
	if err := s.seedActiveCycle(ctx); err != nil {
		log.Fatalf("Failed to seed active cycle: %v", err)
	}

	log.Println("Demo farm ready. Log in as demo / demo1234.")
}

func envDatabaseURL() string {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Fatal("DATABASE_URL must be set")
	}
	return url
}

type seeder struct {
	companyID  int
	cycles     core.CycleService
	entries    core.EntryService
	feed       core.FeedService
	costs      core.CostsService
	dispatches core.DispatchService
}

// seedFinishedCycle writes a full 42-day grow-out that ended a month ago:
// daily entries, feed deliveries, medicines, expenses, three completed
// dispatches clearing the shed, then the archive.
func (s *seeder) seedFinishedCycle(ctx context.Context) error {
	start := today().AddDate(0, 0, -75)

	cycle, err := s.cycles.CreateCycle(ctx, s.companyID, core.CycleInput{
		StartDate:     start,
		StartBirds:    5000,
		StartFeedBags: 60,
	})
	if err != nil {
		return err
	}

	if err := s.seedCosts(ctx, cycle.ID, start); err != nil {
		return err
	}

	billNo := 101
	for d := 1; d <= 42; d++ {
		date := start.AddDate(0, 0, d)

		// A delivery lands every five days, ahead of the growing consumption.
		if d%5 == 4 {
			if _, err := s.feed.AddPurchase(ctx, s.companyID, cycle.ID, core.FeedPurchaseInput{
				PurchaseDate: date,
				FeedName:     feedNameForDay(d),
				BillNumber:   fmt.Sprintf("FB-%03d", billNo),
				Bags:         55,
				BagWeightKg:  50,
				PricePerKg:   feedPriceForDay(d),
			}); err != nil {
				return err
			}
			billNo++
		}

		if _, _, err := s.entries.RecordEntry(ctx, s.companyID, cycle.ID, demoEntry(date, d)); err != nil {
			return err
		}
	}

	if err := s.seedDispatches(ctx, cycle.ID, start.AddDate(0, 0, 43)); err != nil {
		return err
	}

	_, err = s.cycles.ArchiveCycle(ctx, s.companyID, cycle.ID, start.AddDate(0, 0, 45))
	return err
}

// seedActiveCycle writes a cycle two weeks in, with yesterday recorded and
// today still open so the dashboard reminder state shows.
func (s *seeder) seedActiveCycle(ctx context.Context) error {
	start := today().AddDate(0, 0, -14)

	cycle, err := s.cycles.CreateCycle(ctx, s.companyID, core.CycleInput{
		StartDate:     start,
		StartBirds:    5000,
		StartFeedBags: 60,
	})
	if err != nil {
		return err
	}

	if _, err := s.costs.AddMedicine(ctx, s.companyID, cycle.ID, core.MedicineInput{
		PurchaseDate: start.AddDate(0, 0, 2),
		Name:         "Gumboro vaccine",
		Cost:         decimal.NewFromInt(4500),
	}); err != nil {
		return err
	}
	if _, err := s.costs.AddExpense(ctx, s.companyID, cycle.ID, core.ExpenseInput{
		ExpenseDate: start.AddDate(0, 0, 1),
		Category:    "litter",
		Description: "Fresh bedding",
		Amount:      decimal.NewFromInt(3500),
	}); err != nil {
		return err
	}

	for d := 1; d <= 13; d++ {
		date := start.AddDate(0, 0, d)

		if d == 8 {
			if _, err := s.feed.AddPurchase(ctx, s.companyID, cycle.ID, core.FeedPurchaseInput{
				PurchaseDate: date,
				FeedName:     "Starter crumble",
				BillNumber:   "FB-201",
				Bags:         20,
				BagWeightKg:  50,
				PricePerKg:   decimal.NewFromFloat(47),
			}); err != nil {
				return err
			}
		}

		if _, _, err := s.entries.RecordEntry(ctx, s.companyID, cycle.ID, demoEntry(date, d)); err != nil {
			return err
		}
	}

	return nil
}

func (s *seeder) seedCosts(ctx context.Context, cycleID int, start time.Time) error {
	medicines := []core.MedicineInput{
		{PurchaseDate: start.AddDate(0, 0, 7), Name: "Gumboro vaccine", Cost: decimal.NewFromInt(4500)},
		{PurchaseDate: start.AddDate(0, 0, 14), Name: "Lasota booster", Cost: decimal.NewFromInt(2800)},
		{PurchaseDate: start.AddDate(0, 0, 21), Name: "Vitamin supplement", Cost: decimal.NewFromInt(1200), Notes: "water line"},
	}
	for _, m := range medicines {
		if _, err := s.costs.AddMedicine(ctx, s.companyID, cycleID, m); err != nil {
			return err
		}
	}

	expenses := []core.ExpenseInput{
		{ExpenseDate: start.AddDate(0, 0, 1), Category: "litter", Description: "Rice husk bedding", Amount: decimal.NewFromInt(3500)},
		{ExpenseDate: start.AddDate(0, 0, 15), Category: "electricity", Description: "Brooding period bill", Amount: decimal.NewFromInt(2400)},
		{ExpenseDate: start.AddDate(0, 0, 30), Category: "labour", Description: "Shed help, month 1", Amount: decimal.NewFromInt(6000)},
		{ExpenseDate: start.AddDate(0, 0, 43), Category: "transport", Description: "Catching crew", Amount: decimal.NewFromInt(2800)},
	}
	for _, e := range expenses {
		if _, err := s.costs.AddExpense(ctx, s.companyID, cycleID, e); err != nil {
			return err
		}
	}
	return nil
}

// seedDispatches clears the finished shed across three completed lorry loads.
func (s *seeder) seedDispatches(ctx context.Context, cycleID int, firstDate time.Time) error {
	parties := []struct {
		name    string
		vehicle string
		driver  string
		loads   int
	}{
		{"Sri Venkateswara Traders", "AP 26 T 4521", "Ramesh", 8},
		{"Sri Venkateswara Traders", "AP 26 T 4521", "Ramesh", 8},
		{"KFC Suppliers Guntur", "AP 07 V 9912", "Shankar", 7},
	}

	for i, p := range parties {
		dispatch, err := s.dispatches.CreateDispatch(ctx, s.companyID, cycleID, core.DispatchInput{
			DispatchDate:  firstDate.AddDate(0, 0, i),
			PartyName:     p.name,
			VehicleNumber: p.vehicle,
			DriverName:    p.driver,
		})
		if err != nil {
			return err
		}

		for load := 0; load < p.loads; load++ {
			// Roughly 200 birds per crate stack at finishing weight.
			birds := 200
			weight := 2.75 * float64(birds)
			if _, err := s.dispatches.AddWeighing(ctx, s.companyID, cycleID, dispatch.ID, birds, weight); err != nil {
				return err
			}
		}

		if _, err := s.dispatches.CompleteDispatch(ctx, s.companyID, cycleID, dispatch.ID); err != nil {
			return err
		}
	}
	return nil
}

// demoEntry synthesizes one plausible grow-out day: first-week mortality is
// the highest, feed consumption ramps with age, sampled weight follows a
// broiler growth curve.
func demoEntry(date time.Time, day int) core.EntryInput {
	weight := 45 + 8*float64(day) + 1.55*float64(day*day)
	return core.EntryInput{
		EntryDate:          date,
		Mortality:          2 + (day*5)%6,
		FeedBagsConsumed:   2 + (day*3)/7,
		SampledWeightGrams: math.Round(weight),
	}
}

func feedNameForDay(day int) string {
	switch {
	case day <= 12:
		return "Starter crumble"
	case day <= 28:
		return "Grower pellets"
	default:
		return "Finisher pellets"
	}
}

func feedPriceForDay(day int) decimal.Decimal {
	switch {
	case day <= 12:
		return decimal.NewFromFloat(47)
	case day <= 28:
		return decimal.NewFromFloat(45)
	default:
		return decimal.NewFromFloat(43.5)
	}
}

// today truncates now to local midnight so seeded dates line up with the
// app's day boundaries.
func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}
