package daemon

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/devicelink"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/schedule"
)

// fakeRunner counts runs and plays back queued catch-up results.
type fakeRunner struct {
	mu             sync.Mutex
	scheduled      int
	catchUps       int
	catchUpResults []*models.CatchUpResult
	block          time.Duration
	blockedCtxErr  error
}

func (f *fakeRunner) RunScheduled(ctx context.Context) (*models.ExportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled++
	return &models.ExportResult{}, nil
}

func (f *fakeRunner) RunCatchUp(ctx context.Context) (*models.CatchUpResult, error) {
	if f.block > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.block):
		}
		f.mu.Lock()
		f.blockedCtxErr = ctx.Err()
		f.mu.Unlock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.catchUps++
	if len(f.catchUpResults) > 0 {
		r := f.catchUpResults[0]
		f.catchUpResults = f.catchUpResults[1:]
		return r, nil
	}
	return &models.CatchUpResult{Status: models.CatchUpNotNeeded}, nil
}

func (f *fakeRunner) counts() (scheduled, catchUps int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled, f.catchUps
}

func (f *fakeRunner) blockedErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockedCtxErr
}

func newTestDaemon(t *testing.T, runner Runner, cfg *config.DaemonConfig, pushes <-chan devicelink.Push) *Daemon {
	t.Helper()

	logger := events.NewTestLogger(events.DebugLevel, "json", io.Discard)
	store, err := schedule.NewStore(filepath.Join(t.TempDir(), "schedule.json"), logger)
	require.NoError(t, err)

	return New(runner, store, cfg, pushes, logger)
}

// startDaemon runs the daemon in the background and stops it at test end.
func startDaemon(t *testing.T, d *Daemon) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func TestDaemonRunsCatchUpAtStartup(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDaemon(t, runner, &config.DaemonConfig{RunBudget: time.Second}, nil)
	startDaemon(t, d)

	require.Eventually(t, func() bool {
		_, c := runner.counts()
		return c == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDaemonCoalescesPushBurst(t *testing.T) {
	runner := &fakeRunner{}
	pushes := make(chan devicelink.Push, 10)
	d := newTestDaemon(t, runner, &config.DaemonConfig{RunBudget: time.Second}, pushes)
	d.pushDebounce = 20 * time.Millisecond
	startDaemon(t, d)

	// Let the startup catch-up settle first.
	require.Eventually(t, func() bool {
		_, c := runner.counts()
		return c == 1
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		pushes <- devicelink.Push{Op: devicelink.PushDataAvailable}
	}

	// The burst collapses into a single catch-up run.
	require.Eventually(t, func() bool {
		_, c := runner.counts()
		return c == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		_, c := runner.counts()
		return c > 2
	}, 150*time.Millisecond, 10*time.Millisecond)
}

func TestDaemonRetriesAfterDeviceLocked(t *testing.T) {
	runner := &fakeRunner{
		catchUpResults: []*models.CatchUpResult{
			{Status: models.CatchUpFailure, Reason: models.FailureDeviceLocked},
		},
	}
	d := newTestDaemon(t, runner, &config.DaemonConfig{RunBudget: time.Second}, nil)
	d.retryDelay = 20 * time.Millisecond
	startDaemon(t, d)

	require.Eventually(t, func() bool {
		_, c := runner.counts()
		return c >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDaemonDeviceStatusFiresRetryEarly(t *testing.T) {
	runner := &fakeRunner{
		catchUpResults: []*models.CatchUpResult{
			{Status: models.CatchUpFailure, Reason: models.FailureDeviceLocked},
		},
	}
	pushes := make(chan devicelink.Push, 1)
	d := newTestDaemon(t, runner, &config.DaemonConfig{RunBudget: time.Second}, pushes)
	d.retryDelay = 10 * time.Minute // far beyond the test, only the push can fire it
	startDaemon(t, d)

	require.Eventually(t, func() bool {
		_, c := runner.counts()
		return c == 1
	}, 2*time.Second, 10*time.Millisecond)

	pushes <- devicelink.Push{Op: devicelink.PushDeviceStatus}

	require.Eventually(t, func() bool {
		_, c := runner.counts()
		return c == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDaemonCronOverride(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDaemon(t, runner, &config.DaemonConfig{
		RunBudget:    time.Second,
		CronOverride: "* * * * * *", // every second
	}, nil)
	startDaemon(t, d)

	require.Eventually(t, func() bool {
		s, _ := runner.counts()
		return s >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestDaemonRejectsBadCronOverride(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDaemon(t, runner, &config.DaemonConfig{
		CronOverride: "not a cron spec",
	}, nil)

	err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron override")
}

func TestDaemonRunBudgetBoundsRun(t *testing.T) {
	runner := &fakeRunner{block: 500 * time.Millisecond}
	d := newTestDaemon(t, runner, &config.DaemonConfig{RunBudget: 30 * time.Millisecond}, nil)
	startDaemon(t, d)

	require.Eventually(t, func() bool {
		return runner.blockedErr() != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, runner.blockedErr(), context.DeadlineExceeded)
}

func TestArmTimer(t *testing.T) {
	logger := events.NewTestLogger(events.ErrorLevel, "json", io.Discard)
	store, err := schedule.NewStore(filepath.Join(t.TempDir(), "schedule.json"), logger)
	require.NoError(t, err)

	d := New(&fakeRunner{}, store, &config.DaemonConfig{}, nil, logger)

	// Default schedule is disabled, so no timer is armed.
	assert.Nil(t, d.armTimer(time.Now()))

	sched := models.DefaultSchedule()
	sched.IsEnabled = true
	require.NoError(t, store.Save(sched))
	assert.NotNil(t, d.armTimer(time.Now()))
	d.stopTimer()

	// A cron override supersedes the stored schedule.
	d.cfg = &config.DaemonConfig{CronOverride: "0 0 3 * * *"}
	assert.Nil(t, d.armTimer(time.Now()))
}
