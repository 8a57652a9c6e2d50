// Package export renders cycle records into downloadable CSV and XLSX
// documents. The writers are pure: callers fetch the records and stream the
// result wherever it needs to go.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

// CycleReport bundles everything the workbook export presents.
type CycleReport struct {
	Cycle      *core.Cycle
	Stats      *core.CycleStats
	Entries    []core.DailyEntry
	Purchases  []core.FeedPurchase
	Medicines  []core.Medicine
	Expenses   []core.Expense
	Dispatches []core.Dispatch
}

var entryCSVColumns = []string{
	"entry_date", "mortality", "feed_bags_consumed", "feed_bags_added",
	"sampled_weight_grams", "birds_surviving", "avg_feed_per_bird_grams",
	"avg_weight_kg", "fcr", "cumulative_mortality", "cumulative_feed_bags",
	"remaining_feed_bags", "mortality_rate",
}

// WriteEntriesCSV writes the cycle's daily entries, raw columns first and the
// derived columns after, one row per day.
func WriteEntriesCSV(w io.Writer, entries []core.DailyEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(entryCSVColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.EntryDate.Format("2006-01-02"),
			strconv.Itoa(e.Mortality),
			strconv.Itoa(e.FeedBagsConsumed),
			strconv.Itoa(e.FeedBagsAdded),
			formatFloat(e.SampledWeightGrams),
			strconv.Itoa(e.BirdsSurviving),
			formatFloat(e.AvgFeedPerBirdGrams),
			formatFloat(e.AvgWeightKg),
			formatFloat(e.FCR),
			strconv.Itoa(e.CumulativeMortality),
			strconv.Itoa(e.CumulativeFeedBags),
			strconv.Itoa(e.RemainingFeedBags),
			formatFloat(e.MortalityRate),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat keeps the stored precision rather than rounding for display;
// spreadsheets format on their side.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCycleXLSX writes a workbook with one sheet per record family plus a
// summary sheet.
func WriteCycleXLSX(w io.Writer, report CycleReport) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummarySheet(f, header, report); err != nil {
		return err
	}
	if err := writeEntriesSheet(f, header, report.Entries); err != nil {
		return err
	}
	if err := writePurchasesSheet(f, header, report.Purchases); err != nil {
		return err
	}
	if err := writeCostSheets(f, header, report.Medicines, report.Expenses); err != nil {
		return err
	}
	if err := writeDispatchSheet(f, header, report.Dispatches); err != nil {
		return err
	}

	// The default sheet is replaced by Summary.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex("Summary")
	if err != nil {
		return fmt.Errorf("failed to locate summary sheet: %w", err)
	}
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func newSheet(f *excelize.File, name string, headerStyle int, columns []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, col); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", name, err)
		}
	}
	if len(columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header of %s: %w", name, err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, headerStyle int, report CycleReport) error {
	const sheet = "Summary"
	if err := newSheet(f, sheet, headerStyle, []string{"Metric", "Value"}); err != nil {
		return err
	}

	rows := [][]any{
		{"Cycle number", report.Cycle.CycleNumber},
		{"Start date", report.Cycle.StartDate.Format("2006-01-02")},
		{"Status", string(report.Cycle.Status)},
		{"Birds stocked", report.Cycle.StartBirds},
		{"Birds alive", report.Stats.CurrentBirds},
		{"Total mortality", report.Stats.TotalMortality},
		{"Survival rate %", report.Stats.SurvivalRate},
		{"Feed bags consumed", report.Stats.TotalFeedBagsConsumed},
		{"Feed consumed kg", report.Stats.TotalFeedKg},
		{"Feed bags remaining", report.Stats.RemainingFeedBags},
		{"Average weight kg", report.Stats.AverageWeightKg},
		{"Average FCR", report.Stats.AverageFCR},
		{"Cumulative FCR", report.Stats.CumulativeFCR},
		{"Days running", report.Stats.DaysRunning},
		{"Days to target", report.Stats.DaysToTarget},
		{"Feed cost", report.Stats.TotalFeedCost.StringFixed(2)},
		{"Medicine cost", report.Stats.TotalMedicineCost.StringFixed(2)},
		{"Other expenses", report.Stats.TotalExpenses.StringFixed(2)},
	}
	if report.Cycle.EndDate != nil {
		rows = append(rows, []any{"End date", report.Cycle.EndDate.Format("2006-01-02")})
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 22)
}

func writeEntriesSheet(f *excelize.File, headerStyle int, entries []core.DailyEntry) error {
	const sheet = "Daily Entries"
	columns := []string{
		"Date", "Mortality", "Bags consumed", "Bags added", "Sampled g",
		"Birds surviving", "Feed per bird g", "Avg weight kg", "FCR",
		"Cum mortality", "Cum bags", "Bags remaining", "Mortality %",
	}
	if err := newSheet(f, sheet, headerStyle, columns); err != nil {
		return err
	}
	for i, e := range entries {
		row := []any{
			e.EntryDate.Format("2006-01-02"), e.Mortality, e.FeedBagsConsumed,
			e.FeedBagsAdded, e.SampledWeightGrams, e.BirdsSurviving,
			e.AvgFeedPerBirdGrams, e.AvgWeightKg, e.FCR,
			e.CumulativeMortality, e.CumulativeFeedBags, e.RemainingFeedBags,
			e.MortalityRate,
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 12)
}

func writePurchasesSheet(f *excelize.File, headerStyle int, purchases []core.FeedPurchase) error {
	const sheet = "Feed Purchases"
	columns := []string{"Date", "Feed", "Bill no", "Bags", "Bag kg", "Price per kg", "Total cost"}
	if err := newSheet(f, sheet, headerStyle, columns); err != nil {
		return err
	}
	for i, p := range purchases {
		row := []any{
			p.PurchaseDate.Format("2006-01-02"), p.FeedName, p.BillNumber,
			p.Bags, p.BagWeightKg, p.PricePerKg.StringFixed(2), p.TotalCost.StringFixed(2),
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeCostSheets(f *excelize.File, headerStyle int, medicines []core.Medicine, expenses []core.Expense) error {
	if err := newSheet(f, "Medicines", headerStyle, []string{"Date", "Name", "Cost", "Notes"}); err != nil {
		return err
	}
	for i, m := range medicines {
		row := []any{m.PurchaseDate.Format("2006-01-02"), m.Name, m.Cost.StringFixed(2), m.Notes}
		if err := setRow(f, "Medicines", i+2, row); err != nil {
			return err
		}
	}

	if err := newSheet(f, "Expenses", headerStyle, []string{"Date", "Category", "Description", "Amount"}); err != nil {
		return err
	}
	for i, x := range expenses {
		row := []any{x.ExpenseDate.Format("2006-01-02"), x.Category, x.Description, x.Amount.StringFixed(2)}
		if err := setRow(f, "Expenses", i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeDispatchSheet(f *excelize.File, headerStyle int, dispatches []core.Dispatch) error {
	const sheet = "Dispatches"
	columns := []string{"Date", "Party", "Vehicle", "Driver", "Status", "Birds", "Weight kg", "Avg kg"}
	if err := newSheet(f, sheet, headerStyle, columns); err != nil {
		return err
	}
	for i, d := range dispatches {
		row := []any{
			d.DispatchDate.Format("2006-01-02"), d.PartyName, d.VehicleNumber,
			d.DriverName, string(d.Status), d.TotalBirds, d.TotalWeightKg, d.AvgWeightKg,
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}
