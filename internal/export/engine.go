// Package export implements the per-day export run: resolving a date
// range into calendar days, acquiring each day from the health source,
// rendering it, and writing it into the vault. Per-day failures are
// collected into the result instead of aborting the run.
package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/healthapi"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/render"
	"github.com/vitalvault/vitalvault/internal/vault"
)

// Engine runs the export loop against a health source and a vault.
type Engine struct {
	source   healthapi.Source
	vault    vault.Vault
	renderer render.Renderer
	logger   *events.Logger

	// Progress tracking
	progress atomic.Value // *Progress
	events   chan Event

	// Run state
	mu           sync.Mutex
	running      bool
	cancelFn     context.CancelFunc
	eventsClosed bool
}

// Progress tracks a running export.
type Progress struct {
	Current    int
	Total      int
	CurrentDay string
	Succeeded  int
	Failed     int
	StartTime  time.Time
}

// Event represents an export event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Day       string
	Failure   *models.FailedDate
	Result    *models.ExportResult
	Progress  *Progress
}

// EventType defines export event types.
type EventType string

const (
	EventStarted     EventType = "started"
	EventDayStarted  EventType = "day_started"
	EventDayExported EventType = "day_exported"
	EventDayFailed   EventType = "day_failed"
	EventCompleted   EventType = "completed"
)

// abortKind classifies why a day produced no outcome.
type abortKind int

const (
	abortNone abortKind = iota
	abortCancelled
	abortExpired
)

// NewEngine creates an export engine.
func NewEngine(source healthapi.Source, store vault.Vault, renderer render.Renderer, logger *events.Logger) *Engine {
	return &Engine{
		source:   source,
		vault:    store,
		renderer: renderer,
		logger:   logger.WithField("component", "export_engine"),
		events:   make(chan Event, 100),
	}
}

// Events returns the event channel. It is closed when a run finishes.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// GetProgress returns current progress.
func (e *Engine) GetProgress() *Progress {
	if p := e.progress.Load(); p != nil {
		return p.(*Progress)
	}
	return nil
}

// Export acquires, renders, and writes every day in the list, in order.
// Day-level failures are recorded in the result and never abort the run.
// Cancelling ctx stops the loop at the next day boundary and leaves the
// unattempted days out of the tallies; when the ctx deadline expires the
// in-flight day and everything after it are recorded as expired instead.
// The only error returned is models.ErrExportInProgress when a run is
// already active.
func (e *Engine) Export(ctx context.Context, days []time.Time) (*models.ExportResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, models.ErrExportInProgress
	}
	e.running = true

	// Recreate the events channel if a previous run closed it.
	if e.eventsClosed {
		e.events = make(chan Event, 100)
		e.eventsClosed = false
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancelFn = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.cancelFn = nil
		if !e.eventsClosed {
			close(e.events)
			e.eventsClosed = true
		}
		e.mu.Unlock()
	}()

	result := &models.ExportResult{}
	if len(days) == 0 {
		e.logger.Debug("No days to export")
		return result, nil
	}

	progress := &Progress{
		Total:     len(days),
		StartTime: time.Now(),
	}
	e.progress.Store(progress)

	e.logger.WithFields(map[string]interface{}{
		"days":  len(days),
		"first": models.DayLabel(days[0]),
		"last":  models.DayLabel(days[len(days)-1]),
	}).Info("Starting export")

	e.emitEvent(Event{
		Type:      EventStarted,
		Timestamp: time.Now(),
		Progress:  progress,
	})

	// Without a selected, reachable vault no day can succeed, so the
	// device is never contacted.
	if !e.vault.HasAccess() {
		e.failAll(result, days, models.FailureNoVaultSelected, "")
		return e.finish(result), nil
	}

	if err := e.vault.Start(); err != nil {
		reason := models.FailureAccessDenied
		if errors.Is(err, models.ErrNoVaultSelected) {
			reason = models.FailureNoVaultSelected
		}
		e.failAll(result, days, reason, err.Error())
		return e.finish(result), nil
	}
	defer e.vault.Stop()

	expired := false

loop:
	for i, day := range days {
		// Cancellation is observed at day granularity.
		switch ctx.Err() {
		case nil:
		case context.DeadlineExceeded:
			e.expireFrom(result, days[i:])
			expired = true
			break loop
		default:
			result.WasCancelled = true
			break loop
		}

		label := models.DayLabel(day)

		next := *progress
		next.Current = i + 1
		next.CurrentDay = label
		e.progress.Store(&next)
		progress = &next

		e.emitEvent(Event{
			Type:      EventDayStarted,
			Timestamp: time.Now(),
			Day:       label,
		})

		failure, abort := e.exportDay(ctx, day)
		switch abort {
		case abortCancelled:
			result.WasCancelled = true
			break loop
		case abortExpired:
			e.expireFrom(result, days[i:])
			expired = true
			break loop
		}

		updated := *progress
		if failure != nil {
			result.FailedDates = append(result.FailedDates, *failure)
			updated.Failed++
			e.logger.WithFields(map[string]interface{}{
				"day":    label,
				"reason": string(failure.Reason),
			}).Warn("Day export failed")
			e.emitEvent(Event{
				Type:      EventDayFailed,
				Timestamp: time.Now(),
				Day:       label,
				Failure:   failure,
				Progress:  &updated,
			})
		} else {
			result.SuccessCount++
			updated.Succeeded++
			e.emitEvent(Event{
				Type:      EventDayExported,
				Timestamp: time.Now(),
				Day:       label,
				Progress:  &updated,
			})
		}
		e.progress.Store(&updated)
		progress = &updated
	}

	if result.WasCancelled && !expired {
		// Unattempted days are absent from the tallies.
		result.TotalCount = result.SuccessCount + len(result.FailedDates)
	} else {
		result.TotalCount = len(days)
	}

	return e.finish(result), nil
}

// exportDay runs acquire, render, write for one day. A nil FailedDate
// means the day was written. A non-none abort means the run context ended
// mid-fetch and the day received no outcome of its own.
func (e *Engine) exportDay(ctx context.Context, day time.Time) (*models.FailedDate, abortKind) {
	record, err := e.source.FetchDay(ctx, day)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) && errors.Is(ctx.Err(), context.Canceled):
			return nil, abortCancelled
		case errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, abortExpired
		}
		return &models.FailedDate{
			Date:     day,
			Reason:   models.ClassifyFetchError(err),
			RawError: err.Error(),
		}, abortNone
	}

	if !record.HasAnyData() {
		return &models.FailedDate{
			Date:   day,
			Reason: models.FailureNoHealthData,
		}, abortNone
	}

	data, err := e.renderer.Render(record)
	if err != nil {
		return &models.FailedDate{
			Date:     day,
			Reason:   models.FailureWrite,
			RawError: err.Error(),
		}, abortNone
	}

	name := render.Filename(e.renderer, record)
	if err := e.vault.Write(name, data); err != nil {
		return &models.FailedDate{
			Date:     day,
			Reason:   models.ClassifyWriteError(err),
			RawError: err.Error(),
		}, abortNone
	}

	e.logger.WithFields(map[string]interface{}{
		"day":  models.DayLabel(day),
		"file": name,
		"size": len(data),
	}).Debug("Day exported")

	return nil, abortNone
}

// Cancel stops a running export at the next day boundary.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelFn != nil {
		e.logger.Info("Cancelling export")
		e.cancelFn()
	}
}

// failAll marks every day failed with one reason, for precondition
// failures where no day was attempted.
func (e *Engine) failAll(result *models.ExportResult, days []time.Time, reason models.FailureReason, raw string) {
	for _, day := range days {
		result.FailedDates = append(result.FailedDates, models.FailedDate{
			Date:     day,
			Reason:   reason,
			RawError: raw,
		})
	}
	result.TotalCount = len(days)
}

// expireFrom marks the in-flight day and everything after it as expired.
func (e *Engine) expireFrom(result *models.ExportResult, remaining []time.Time) {
	for _, day := range remaining {
		result.FailedDates = append(result.FailedDates, models.FailedDate{
			Date:   day,
			Reason: models.FailureTaskExpired,
		})
	}
	result.WasCancelled = true
}

// finish emits the completion event and logs the run outcome.
func (e *Engine) finish(result *models.ExportResult) *models.ExportResult {
	e.logger.WithFields(map[string]interface{}{
		"succeeded": result.SuccessCount,
		"failed":    len(result.FailedDates),
		"total":     result.TotalCount,
		"cancelled": result.WasCancelled,
	}).Info("Export finished")

	e.emitEvent(Event{
		Type:      EventCompleted,
		Timestamp: time.Now(),
		Result:    result,
	})
	return result
}

func (e *Engine) emitEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.eventsClosed {
		return
	}

	select {
	case e.events <- event:
	default:
		// Channel full, drop event
		e.logger.Debug("Event channel full, dropping event")
	}
}
