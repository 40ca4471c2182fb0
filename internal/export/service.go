package export

import (
	"context"
	"sort"
	"time"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/history"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/schedule"
)

// Service coordinates export runs. It resolves date ranges, drives the
// engine, records every completed run in history, and advances the
// schedule watermark after runs with at least one success. At most one
// run is active at a time; a second trigger fails with
// models.ErrExportInProgress.
type Service struct {
	engine   *Engine
	history  history.Store
	schedule *schedule.Store
	logger   *events.Logger
}

// NewService creates an export service.
func NewService(engine *Engine, historyStore history.Store, scheduleStore *schedule.Store, logger *events.Logger) *Service {
	return &Service{
		engine:   engine,
		history:  historyStore,
		schedule: scheduleStore,
		logger:   logger.WithField("component", "export_service"),
	}
}

// RunManual exports the inclusive day range from start to end.
func (s *Service) RunManual(ctx context.Context, start, end time.Time) (*models.ExportResult, error) {
	days := ResolveDates(start, end)

	result, err := s.engine.Export(ctx, days)
	if err != nil {
		return nil, err
	}

	s.record(models.SourceManual, days, result)
	return result, nil
}

// RunScheduled exports the schedule's current target range: yesterday
// for a daily schedule, the last seven data-days for a weekly one.
func (s *Service) RunScheduled(ctx context.Context) (*models.ExportResult, error) {
	sched, err := s.schedule.Load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	end := models.Day(now).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, 1-sched.Frequency.IntervalDays())
	days := ResolveDates(start, end)

	result, err := s.engine.Export(ctx, days)
	if err != nil {
		return nil, err
	}

	s.record(models.SourceScheduled, days, result)
	s.advanceWatermark(&sched, result, now)
	return result, nil
}

// RunCatchUp backfills data-days missed since the last successful run
// and classifies the outcome for notification display.
func (s *Service) RunCatchUp(ctx context.Context) (*models.CatchUpResult, error) {
	sched, err := s.schedule.Load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	days := schedule.MissedDays(&sched, now)
	if len(days) == 0 {
		s.logger.Debug("Catch-up not needed")
		return &models.CatchUpResult{Status: models.CatchUpNotNeeded}, nil
	}

	s.logger.WithFields(map[string]interface{}{
		"days":  len(days),
		"first": models.DayLabel(days[0]),
	}).Info("Catching up missed days")

	result, err := s.engine.Export(ctx, days)
	if err != nil {
		return nil, err
	}

	s.record(models.SourceScheduled, days, result)
	s.advanceWatermark(&sched, result, now)
	return classifyCatchUp(result), nil
}

// RunRetry re-exports a previous run's failed days. When the entry
// recorded none it re-exports the entry's full range.
func (s *Service) RunRetry(ctx context.Context, entry *models.HistoryEntry) (*models.ExportResult, error) {
	days := retryDays(entry)

	result, err := s.engine.Export(ctx, days)
	if err != nil {
		return nil, err
	}

	s.record(models.SourceManual, days, result)
	return result, nil
}

// Cancel stops the active run at the next day boundary.
func (s *Service) Cancel() {
	s.engine.Cancel()
}

// Events returns the engine's event channel.
func (s *Service) Events() <-chan Event {
	return s.engine.Events()
}

// GetProgress returns the active run's progress.
func (s *Service) GetProgress() *Progress {
	return s.engine.GetProgress()
}

// record appends the run to history. Persistence failures are logged,
// not surfaced; the run outcome stands on its own.
func (s *Service) record(source models.ExportSource, days []time.Time, result *models.ExportResult) {
	if len(days) == 0 {
		return
	}

	entry := models.NewHistoryEntry(source, days[0], days[len(days)-1], result, time.Now())
	if err := s.history.Record(&entry); err != nil {
		s.logger.WithError(err).Error("Failed to record export history")
	}
}

// advanceWatermark moves LastExportDate to the run time after any run
// with at least one success, and persists the schedule.
func (s *Service) advanceWatermark(sched *models.Schedule, result *models.ExportResult, now time.Time) {
	if result.SuccessCount == 0 {
		return
	}

	sched.MarkExported(now)
	if err := s.schedule.Save(*sched); err != nil {
		s.logger.WithError(err).Error("Failed to persist schedule watermark")
	}
}

// classifyCatchUp reduces a run result to the notification-facing
// catch-up outcome.
func classifyCatchUp(result *models.ExportResult) *models.CatchUpResult {
	switch {
	case result.IsFullSuccess():
		return &models.CatchUpResult{
			Status:       models.CatchUpSuccess,
			DaysExported: result.SuccessCount,
			TotalDays:    result.TotalCount,
		}
	case result.IsPartialSuccess():
		return &models.CatchUpResult{
			Status:       models.CatchUpPartial,
			DaysExported: result.SuccessCount,
			TotalDays:    result.TotalCount,
		}
	default:
		out := &models.CatchUpResult{
			Status:    models.CatchUpFailure,
			TotalDays: result.TotalCount,
			Reason:    models.FailureUnknown,
		}
		if f := result.FirstFailure(); f != nil {
			out.Reason = f.Reason
		}
		return out
	}
}

// retryDays lists the days a retry must cover: the failed days when any
// were recorded, else the entry's full range.
func retryDays(entry *models.HistoryEntry) []time.Time {
	if len(entry.FailedDates) == 0 {
		start, end := entry.RetryRange()
		return ResolveDates(start, end)
	}

	seen := make(map[string]bool)
	var days []time.Time
	for _, f := range entry.FailedDates {
		label := models.DayLabel(f.Date)
		if seen[label] {
			continue
		}
		seen[label] = true
		days = append(days, models.Day(f.Date))
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
