package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"

	"github.com/shopspring/decimal"
)

func TestCosts_MedicinesAndExpenses(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cycles := core.NewCycleService(pool)
	costs := core.NewCostsService(pool)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)

	t.Run("Medicine_Roundtrip", func(t *testing.T) {
		m, err := costs.AddMedicine(ctx, 1, cycle.ID, core.MedicineInput{
			PurchaseDate: start.AddDate(0, 0, 3),
			Name:         "Gumboro vaccine",
			Cost:         decimal.NewFromInt(1500),
			Notes:        "second dose due day 14",
		})
		if err != nil {
			t.Fatalf("AddMedicine: %v", err)
		}
		if !m.Cost.Equal(decimal.NewFromInt(1500)) {
			t.Errorf("expected cost 1500, got %s", m.Cost)
		}

		list, err := costs.GetMedicines(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetMedicines: %v", err)
		}
		if len(list) != 1 || list[0].Name != "Gumboro vaccine" {
			t.Fatalf("expected the vaccine back, got %+v", list)
		}

		if err := costs.DeleteMedicine(ctx, 1, cycle.ID, m.ID); err != nil {
			t.Fatalf("DeleteMedicine: %v", err)
		}
		list, err = costs.GetMedicines(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetMedicines: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected no medicines after delete, got %d", len(list))
		}
	})

	t.Run("Expense_Roundtrip", func(t *testing.T) {
		x, err := costs.AddExpense(ctx, 1, cycle.ID, core.ExpenseInput{
			ExpenseDate: start.AddDate(0, 0, 5),
			Category:    "electricity",
			Description: "brooder heating",
			Amount:      decimal.NewFromFloat(2350.50),
		})
		if err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
		if !x.Amount.Equal(decimal.NewFromFloat(2350.50)) {
			t.Errorf("expected amount 2350.50, got %s", x.Amount)
		}

		list, err := costs.GetExpenses(ctx, 1, cycle.ID)
		if err != nil {
			t.Fatalf("GetExpenses: %v", err)
		}
		if len(list) != 1 || list[0].Category != "electricity" {
			t.Fatalf("expected the expense back, got %+v", list)
		}

		if err := costs.DeleteExpense(ctx, 1, cycle.ID, x.ID); err != nil {
			t.Fatalf("DeleteExpense: %v", err)
		}
	})

	t.Run("DeleteMissing_NotFound", func(t *testing.T) {
		var notFound *core.NotFoundError
		if err := costs.DeleteMedicine(ctx, 1, cycle.ID, 99999); !errors.As(err, &notFound) {
			t.Errorf("expected not found for missing medicine, got %v", err)
		}
		if err := costs.DeleteExpense(ctx, 1, cycle.ID, 99999); !errors.As(err, &notFound) {
			t.Errorf("expected not found for missing expense, got %v", err)
		}
	})

	t.Run("ArchivedCycle_StillAccepts", func(t *testing.T) {
		// Medicine and expense bills often arrive after the cycle closed.
		if _, err := cycles.ArchiveCycle(ctx, 1, cycle.ID, start.AddDate(0, 0, 42)); err != nil {
			t.Fatalf("ArchiveCycle: %v", err)
		}

		_, err := costs.AddMedicine(ctx, 1, cycle.ID, core.MedicineInput{
			PurchaseDate: start.AddDate(0, 0, 40),
			Name:         "Vitamin supplement",
			Cost:         decimal.NewFromInt(600),
		})
		if err != nil {
			t.Errorf("AddMedicine on archived cycle: %v", err)
		}
		_, err = costs.AddExpense(ctx, 1, cycle.ID, core.ExpenseInput{
			ExpenseDate: start.AddDate(0, 0, 43),
			Category:    "labour",
			Amount:      decimal.NewFromInt(4000),
		})
		if err != nil {
			t.Errorf("AddExpense on archived cycle: %v", err)
		}
	})
}

func TestCosts_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	cycles := core.NewCycleService(pool)
	costs := core.NewCostsService(pool)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cycle := mustCreateCycle(t, cycles, 1, start, 1000, 20)

	t.Run("medicine", func(t *testing.T) {
		_, err := costs.AddMedicine(ctx, 1, cycle.ID, core.MedicineInput{
			PurchaseDate: start,
			Name:         "",
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "name" {
			t.Fatalf("expected name validation error, got %v", err)
		}

		_, err = costs.AddMedicine(ctx, 1, cycle.ID, core.MedicineInput{
			PurchaseDate: start,
			Name:         "Vaccine",
			Cost:         decimal.NewFromInt(-10),
		})
		if !errors.As(err, &verr) || verr.Field != "cost" {
			t.Fatalf("expected cost validation error, got %v", err)
		}
	})

	t.Run("expense", func(t *testing.T) {
		_, err := costs.AddExpense(ctx, 1, cycle.ID, core.ExpenseInput{
			ExpenseDate: start,
			Category:    "",
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "category" {
			t.Fatalf("expected category validation error, got %v", err)
		}

		_, err = costs.AddExpense(ctx, 1, cycle.ID, core.ExpenseInput{
			ExpenseDate: start,
			Category:    "labour",
			Amount:      decimal.NewFromInt(-5),
		})
		if !errors.As(err, &verr) || verr.Field != "amount" {
			t.Fatalf("expected amount validation error, got %v", err)
		}
	})
}
