// Package daemon runs exports unattended: it fires the stored schedule,
// sweeps for missed days, and reacts to device push events.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/devicelink"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/schedule"
)

const (
	// sweepSpec fires the catch-up sweep at the top of every hour.
	sweepSpec = "0 0 * * * *"

	defaultPushDebounce = 30 * time.Second
	defaultRetryDelay   = 15 * time.Minute
)

// Runner is the slice of the export service the daemon drives.
type Runner interface {
	RunScheduled(ctx context.Context) (*models.ExportResult, error)
	RunCatchUp(ctx context.Context) (*models.CatchUpResult, error)
}

// Daemon owns the unattended export loop. Construct with New, then call
// Run; it blocks until the context is cancelled.
type Daemon struct {
	runner   Runner
	schedule *schedule.Store
	cfg      *config.DaemonConfig
	pushes   <-chan devicelink.Push
	logger   *events.Logger

	// exportReq and catchUpReq coalesce: a request arriving while one is
	// already queued is covered by the queued run.
	exportReq  chan string
	catchUpReq chan string

	// timer drives the stored schedule. Nil when a cron override or a
	// disabled schedule leaves nothing to arm.
	timer *time.Timer

	pushDebounce time.Duration
	retryDelay   time.Duration

	mu    sync.Mutex
	retry *time.Timer // pending device-unlock retry
}

// New wires a daemon over the export runner. pushes may be nil when the
// device link is disabled or the device is not paired.
func New(runner Runner, sched *schedule.Store, cfg *config.DaemonConfig, pushes <-chan devicelink.Push, logger *events.Logger) *Daemon {
	return &Daemon{
		runner:       runner,
		schedule:     sched,
		cfg:          cfg,
		pushes:       pushes,
		logger:       logger.WithField("component", "daemon"),
		exportReq:    make(chan string, 1),
		catchUpReq:   make(chan string, 1),
		pushDebounce: defaultPushDebounce,
		retryDelay:   defaultRetryDelay,
	}
}

// Run executes the daemon loop until ctx is cancelled. Schedule edits
// made while the loop runs are picked up when the next timer or sweep
// fires.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())

	if d.cfg.CronOverride != "" {
		if _, err := c.AddFunc(d.cfg.CronOverride, func() {
			d.requestExport("cron")
		}); err != nil {
			return fmt.Errorf("parse cron override %q: %w", d.cfg.CronOverride, err)
		}
		d.logger.WithField("cron", d.cfg.CronOverride).Info("Schedule overridden by cron expression")
	}

	if d.cfg.CatchUpSweep {
		if _, err := c.AddFunc(sweepSpec, func() {
			d.requestCatchUp("sweep")
		}); err != nil {
			return fmt.Errorf("register catch-up sweep: %w", err)
		}
	}

	c.Start()
	defer func() { <-c.Stop().Done() }()
	defer d.stopRetry()

	// The machine may have been off or asleep across fire times, so the
	// first act is always a catch-up pass.
	d.requestCatchUp("startup")

	timerC := d.armTimer(time.Now())
	defer d.stopTimer()

	pushesC := d.pushes
	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	d.logger.Info("Daemon started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Daemon stopping")
			return nil

		case <-timerC:
			d.requestExport("schedule")
			timerC = d.armTimer(time.Now())

		case p, ok := <-pushesC:
			if !ok {
				d.logger.Warn("Device link closed")
				pushesC = nil
				continue
			}
			switch p.Op {
			case devicelink.PushDataAvailable:
				// Pushes arrive in bursts while the device syncs; one
				// catch-up run after the burst covers them all.
				if debounceC == nil {
					debounce = time.NewTimer(d.pushDebounce)
					debounceC = debounce.C
				}
			case devicelink.PushDeviceStatus:
				// The device announcing itself usually means it was just
				// unlocked; run a pending unlock retry now instead of
				// waiting out the delay.
				d.fireRetryEarly()
			}

		case <-debounceC:
			debounceC = nil
			d.requestCatchUp("push")

		case reason := <-d.exportReq:
			d.runExport(ctx, reason)
			timerC = d.armTimer(time.Now())

		case reason := <-d.catchUpReq:
			d.runCatchUp(ctx, reason)
			timerC = d.armTimer(time.Now())
		}
	}
}

func (d *Daemon) requestExport(reason string) {
	select {
	case d.exportReq <- reason:
	default:
	}
}

func (d *Daemon) requestCatchUp(reason string) {
	select {
	case d.catchUpReq <- reason:
	default:
	}
}

// armTimer arms the next scheduled fire and returns its channel. A cron
// override or a disabled schedule returns nil, which blocks forever in
// the select.
func (d *Daemon) armTimer(now time.Time) <-chan time.Time {
	d.stopTimer()

	if d.cfg.CronOverride != "" {
		return nil
	}

	sched, err := d.schedule.Load()
	if err != nil {
		d.logger.WithError(err).Warn("Cannot load schedule, timer not armed")
		return nil
	}
	if !sched.IsEnabled {
		d.logger.Debug("Schedule disabled, timer not armed")
		return nil
	}

	next := schedule.NextRun(&sched, now)
	d.logger.WithFields(map[string]interface{}{
		"next_run":  next.Format(time.RFC3339),
		"frequency": string(sched.Frequency),
	}).Info("Scheduled export armed")

	d.timer = time.NewTimer(next.Sub(now))
	return d.timer.C
}

func (d *Daemon) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Daemon) runExport(ctx context.Context, reason string) {
	runCtx, cancel := d.budget(ctx)
	defer cancel()

	logger := d.logger.WithField("trigger", reason)
	logger.Info("Starting scheduled export")

	result, err := d.runner.RunScheduled(runCtx)
	if err != nil {
		logger.WithError(err).Error("Scheduled export failed")
		return
	}

	logger.WithFields(map[string]interface{}{
		"total":    result.TotalCount,
		"exported": result.SuccessCount,
		"failed":   len(result.FailedDates),
	}).Info("Scheduled export finished")
}

func (d *Daemon) runCatchUp(ctx context.Context, reason string) {
	runCtx, cancel := d.budget(ctx)
	defer cancel()

	logger := d.logger.WithField("trigger", reason)
	logger.Debug("Starting catch-up run")

	result, err := d.runner.RunCatchUp(runCtx)
	if err != nil {
		logger.WithError(err).Error("Catch-up run failed")
		return
	}

	switch result.Status {
	case models.CatchUpNotNeeded:
		logger.Debug("Catch-up not needed")
	case models.CatchUpSuccess, models.CatchUpPartial:
		logger.WithFields(map[string]interface{}{
			"status":   string(result.Status),
			"exported": result.DaysExported,
			"total":    result.TotalDays,
		}).Info("Catch-up run finished")
	case models.CatchUpFailure:
		logger.WithField("reason", string(result.Reason)).Warn("Catch-up run failed")
	}

	if result.NeedsRetryReminder() {
		d.armRetry()
	}
}

// budget bounds one unattended run so a hung device cannot wedge the
// loop past the next fire time.
func (d *Daemon) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.RunBudget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.RunBudget)
}

// armRetry schedules one delayed catch-up after a locked device blocked
// the run. At most one retry is pending at a time.
func (d *Daemon) armRetry() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.retry != nil {
		return
	}

	d.logger.WithField("retry_in", d.retryDelay.String()).Info("Device locked, catch-up retry armed")
	d.retry = time.AfterFunc(d.retryDelay, func() {
		d.mu.Lock()
		d.retry = nil
		d.mu.Unlock()
		d.requestCatchUp("unlock_retry")
	})
}

func (d *Daemon) fireRetryEarly() {
	d.mu.Lock()
	armed := d.retry != nil
	if armed {
		d.retry.Stop()
		d.retry = nil
	}
	d.mu.Unlock()

	if armed {
		d.requestCatchUp("device_status")
	}
}

func (d *Daemon) stopRetry() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.retry != nil {
		d.retry.Stop()
		d.retry = nil
	}
}
