package core

import (
	"fmt"
	"strings"
	"time"
)

// Normalize fills the defaults the model is allowed to omit: a missing or
// blank entry date becomes today.
func (d *DailyReportDraft) Normalize(today time.Time) {
	d.EntryDate = strings.TrimSpace(d.EntryDate)
	if d.EntryDate == "" {
		d.EntryDate = today.Format("2006-01-02")
	}
	d.Reasoning = strings.TrimSpace(d.Reasoning)
}

// Validate checks the draft is well-formed before it is shown to the operator.
func (d *DailyReportDraft) Validate() error {
	if _, err := time.Parse("2006-01-02", d.EntryDate); err != nil {
		return fmt.Errorf("invalid entry_date %q: expected YYYY-MM-DD", d.EntryDate)
	}
	if d.Mortality < 0 {
		return fmt.Errorf("mortality cannot be negative")
	}
	if d.FeedBagsConsumed < 0 {
		return fmt.Errorf("feed_bags_consumed cannot be negative")
	}
	if d.FeedBagsAdded < 0 {
		return fmt.Errorf("feed_bags_added cannot be negative")
	}
	if d.SampledWeightGrams < 0 {
		return fmt.Errorf("sampled_weight_grams cannot be negative")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", d.Confidence)
	}
	return nil
}

// ToEntryInput converts a confirmed draft into the normal entry submission.
func (d *DailyReportDraft) ToEntryInput() (EntryInput, error) {
	date, err := time.Parse("2006-01-02", d.EntryDate)
	if err != nil {
		return EntryInput{}, fmt.Errorf("invalid entry_date %q: expected YYYY-MM-DD", d.EntryDate)
	}
	return EntryInput{
		EntryDate:          date,
		Mortality:          d.Mortality,
		FeedBagsConsumed:   d.FeedBagsConsumed,
		FeedBagsAdded:      d.FeedBagsAdded,
		SampledWeightGrams: d.SampledWeightGrams,
	}, nil
}

// Validate enforces the branch contract: exactly one of draft or
// clarification, matching the flag.
func (r *ReportParseResponse) Validate() error {
	if r.IsClarificationRequest {
		if r.Clarification == nil || strings.TrimSpace(r.Clarification.Message) == "" {
			return fmt.Errorf("clarification requested without a message")
		}
		return nil
	}
	if r.Draft == nil {
		return fmt.Errorf("response carries neither a draft nor a clarification")
	}
	return r.Draft.Validate()
}
