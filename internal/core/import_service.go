package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// entryCSVHeader is the column layout required of an entries CSV upload.
var entryCSVHeader = []string{"entry_date", "mortality", "feed_bags_consumed", "feed_bags_added", "sampled_weight_grams"}

// ImportRowResult reports the fate of a single CSV data row. Row numbers
// count from the top of the file, so the first data row is row 2.
type ImportRowResult struct {
	Row       int    `json:"row"`
	EntryDate string `json:"entry_date,omitempty"`
	Imported  bool   `json:"imported"`
	Reason    string `json:"reason,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// ImportReport summarizes a CSV import. Rows that fail are skipped with a
// reason; the rows that succeed stay committed regardless.
type ImportReport struct {
	BatchID  string            `json:"batch_id"`
	Total    int               `json:"total"`
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"`
	Rows     []ImportRowResult `json:"rows"`
}

// ImportService ingests daily entries in bulk from CSV files.
type ImportService interface {
	// ImportEntries reads a CSV of daily entries and records each row
	// through the normal entry path. File-level problems (unreadable
	// data, wrong header) return an error; row-level problems are
	// reported per row.
	ImportEntries(ctx context.Context, companyID, cycleID int, r io.Reader) (*ImportReport, error)
}

type importService struct {
	entries EntryService
}

// NewImportService constructs an ImportService that records rows through
// the given EntryService, one transaction per row.
func NewImportService(entries EntryService) ImportService {
	return &importService{entries: entries}
}

func (s *importService) ImportEntries(ctx context.Context, companyID, cycleID int, r io.Reader) (*ImportReport, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, newValidationError("file", "CSV must have a header and at least one data row")
	}
	if err := checkEntryCSVHeader(records[0]); err != nil {
		return nil, err
	}

	report := &ImportReport{BatchID: uuid.New().String()}
	for i, record := range records[1:] {
		row := ImportRowResult{Row: i + 2}

		input, err := parseEntryCSVRow(record)
		if err != nil {
			row.Reason = err.Error()
			report.Rows = append(report.Rows, row)
			continue
		}
		row.EntryDate = input.EntryDate.Format("2006-01-02")

		_, warn, err := s.entries.RecordEntry(ctx, companyID, cycleID, input)
		if err != nil {
			row.Reason = err.Error()
			report.Rows = append(report.Rows, row)
			continue
		}
		row.Imported = true
		if warn != nil {
			row.Warning = warn.Message()
		}
		report.Rows = append(report.Rows, row)
	}

	report.Total = len(report.Rows)
	for _, row := range report.Rows {
		if row.Imported {
			report.Imported++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

func checkEntryCSVHeader(header []string) error {
	if len(header) != len(entryCSVHeader) {
		return newValidationError("header", "expected columns %v, got %v", entryCSVHeader, header)
	}
	for i, want := range entryCSVHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != want {
			return newValidationError("header", "expected columns %v, got %v", entryCSVHeader, header)
		}
	}
	return nil
}

func parseEntryCSVRow(record []string) (EntryInput, error) {
	if len(record) != len(entryCSVHeader) {
		return EntryInput{}, fmt.Errorf("expected %d columns, got %d", len(entryCSVHeader), len(record))
	}

	date, err := parseEntryDate(record[0])
	if err != nil {
		return EntryInput{}, err
	}
	mortality, err := parseCSVInt(record[1], "mortality")
	if err != nil {
		return EntryInput{}, err
	}
	consumed, err := parseCSVInt(record[2], "feed_bags_consumed")
	if err != nil {
		return EntryInput{}, err
	}
	added, err := parseCSVInt(record[3], "feed_bags_added")
	if err != nil {
		return EntryInput{}, err
	}
	weight, err := parseCSVFloat(record[4], "sampled_weight_grams")
	if err != nil {
		return EntryInput{}, err
	}

	return EntryInput{
		EntryDate:          date,
		Mortality:          mortality,
		FeedBagsConsumed:   consumed,
		FeedBagsAdded:      added,
		SampledWeightGrams: weight,
	}, nil
}

// entryDateLayouts accepts ISO dates first and the day-first forms that
// spreadsheet exports commonly produce.
var entryDateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

func parseEntryDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range entryDateLayouts {
		if d, err := time.Parse(layout, trimmed); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid entry_date %q (expected YYYY-MM-DD)", trimmed)
}

// parseCSVInt reads a count column; a blank cell means zero.
func parseCSVInt(value, column string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", column, trimmed)
	}
	return n, nil
}

func parseCSVFloat(value, column string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", column, trimmed)
	}
	return f, nil
}
