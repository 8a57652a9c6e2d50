// Package scheduler runs the daily reminder job.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arunteja30/poultry-tracker/internal/core"
	"github.com/arunteja30/poultry-tracker/internal/notify"
)

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	cycles    core.CycleService
	reporting core.ReportingService
	notifier  notify.Notifier
	logger    *zap.Logger
}

// New creates a scheduler that fires the reminder check on the given cron
// spec (standard 5-field cron), evaluated in loc. A nil loc means local time.
func New(spec string, loc *time.Location, cycles core.CycleService, reporting core.ReportingService, notifier notify.Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		spec:      spec,
		cycles:    cycles,
		reporting: reporting,
		notifier:  notifier,
		logger:    logger,
	}
}

// Start registers the reminder job and starts the cron loop. The cron spec
// comes from configuration, so a parse failure is returned rather than logged.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("reminder_cron", s.spec))

	if _, err := s.cron.AddFunc(s.spec, s.runReminderCheck); err != nil {
		return fmt.Errorf("failed to schedule reminder check: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop. A job already running finishes on its own.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

// runReminderCheck walks every active cycle and pushes an alert when today's
// entry is missing or feed stock is low. It is read-only.
func (s *Scheduler) runReminderCheck() {
	s.logger.Info("running reminder check")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cycles, err := s.cycles.ListActiveCycles(ctx)
	if err != nil {
		s.logger.Error("failed to list active cycles", zap.Error(err))
		return
	}

	for _, cycle := range cycles {
		summary, err := s.reporting.GetDashboard(ctx, cycle.CompanyID, time.Now())
		if err != nil {
			s.logger.Error("failed to load dashboard",
				zap.Int("company_id", cycle.CompanyID), zap.Error(err))
			continue
		}

		if summary.NoEntryToday {
			s.push(ctx, cycle, notify.AlertMissingEntry,
				fmt.Sprintf("no daily entry recorded today for cycle #%d", cycle.CycleNumber))
		}
		if summary.LowFeed && summary.Stats != nil {
			s.push(ctx, cycle, notify.AlertLowFeed,
				fmt.Sprintf("feed stock low for cycle #%d: %d bags remaining",
					cycle.CycleNumber, summary.Stats.RemainingFeedBags))
		}
	}
}

func (s *Scheduler) push(ctx context.Context, cycle core.Cycle, kind, message string) {
	alert := notify.Alert{
		Kind:        kind,
		CompanyID:   cycle.CompanyID,
		CycleID:     cycle.ID,
		CycleNumber: cycle.CycleNumber,
		Message:     message,
		SentAt:      time.Now(),
	}

	if err := s.notifier.SendAlert(ctx, alert); err != nil {
		s.logger.Error("failed to send alert",
			zap.String("kind", kind),
			zap.Int("company_id", cycle.CompanyID),
			zap.Error(err))
		return
	}

	s.logger.Info("alert sent",
		zap.String("kind", kind),
		zap.Int("company_id", cycle.CompanyID),
		zap.Int("cycle_number", cycle.CycleNumber))
}
