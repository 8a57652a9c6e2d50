package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// stubEntryService accepts every row except dates it is told to reject,
// so import tests can exercise the per-row reporting without a database.
type stubEntryService struct {
	EntryService
	rejectDates map[string]error
	warnDates   map[string]*LowStockWarning
	recorded    []EntryInput
}

func (s *stubEntryService) RecordEntry(ctx context.Context, companyID, cycleID int, input EntryInput) (*DailyEntry, *LowStockWarning, error) {
	key := input.EntryDate.Format("2006-01-02")
	if err, ok := s.rejectDates[key]; ok {
		return nil, nil, err
	}
	s.recorded = append(s.recorded, input)
	return &DailyEntry{CycleID: cycleID, EntryDate: input.EntryDate}, s.warnDates[key], nil
}

func TestImportEntriesPerRowResults(t *testing.T) {
	stub := &stubEntryService{
		rejectDates: map[string]error{
			"2026-03-02": newConflictError("an entry for 2026-03-02 already exists"),
		},
		warnDates: map[string]*LowStockWarning{
			"2026-03-03": {RemainingBags: 2, ThresholdBags: 3},
		},
	}
	svc := NewImportService(stub)

	csvData := strings.Join([]string{
		"entry_date,mortality,feed_bags_consumed,feed_bags_added,sampled_weight_grams",
		"2026-03-01,5,2,0,50",
		"2026-03-02,3,3,0,65",
		"2026-03-03,0,3,0,85",
		"bad-date,1,1,0,0",
		"2026-03-05,x,1,0,0",
	}, "\n")

	report, err := svc.ImportEntries(context.Background(), 1, 1, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportEntries: %v", err)
	}

	if report.BatchID == "" {
		t.Error("expected a batch ID")
	}
	if report.Total != 5 || report.Imported != 2 || report.Skipped != 3 {
		t.Errorf("got total=%d imported=%d skipped=%d, want 5/2/3",
			report.Total, report.Imported, report.Skipped)
	}
	if len(stub.recorded) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(stub.recorded))
	}

	rows := report.Rows
	if !rows[0].Imported || rows[0].Row != 2 {
		t.Errorf("row 2 = %+v, want imported", rows[0])
	}
	if rows[1].Imported || !strings.Contains(rows[1].Reason, "already exists") {
		t.Errorf("row 3 = %+v, want conflict reason", rows[1])
	}
	if !rows[2].Imported || !strings.Contains(rows[2].Warning, "feed stock low") {
		t.Errorf("row 4 = %+v, want low stock warning", rows[2])
	}
	if rows[3].Imported || !strings.Contains(rows[3].Reason, "invalid entry_date") {
		t.Errorf("row 5 = %+v, want date reason", rows[3])
	}
	if rows[4].Imported || !strings.Contains(rows[4].Reason, "invalid mortality") {
		t.Errorf("row 6 = %+v, want mortality reason", rows[4])
	}
}

func TestImportEntriesRejectsBadHeader(t *testing.T) {
	svc := NewImportService(&stubEntryService{})

	tests := []struct {
		name string
		data string
	}{
		{"wrong columns", "date,deaths\n2026-03-01,5\n"},
		{"header only", "entry_date,mortality,feed_bags_consumed,feed_bags_added,sampled_weight_grams\n"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ImportEntries(context.Background(), 1, 1, strings.NewReader(tt.data))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestParseEntryCSVRow(t *testing.T) {
	input, err := parseEntryCSVRow([]string{"04/03/2026", "2", "", "10", "92.5"})
	if err != nil {
		t.Fatalf("parseEntryCSVRow: %v", err)
	}
	want := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !input.EntryDate.Equal(want) {
		t.Errorf("EntryDate = %v, want %v", input.EntryDate, want)
	}
	if input.Mortality != 2 || input.FeedBagsConsumed != 0 || input.FeedBagsAdded != 10 {
		t.Errorf("counts = %d/%d/%d, want 2/0/10",
			input.Mortality, input.FeedBagsConsumed, input.FeedBagsAdded)
	}
	if input.SampledWeightGrams != 92.5 {
		t.Errorf("SampledWeightGrams = %v, want 92.5", input.SampledWeightGrams)
	}
}
