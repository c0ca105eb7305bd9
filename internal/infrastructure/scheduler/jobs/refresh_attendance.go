// Package jobs contains implementations of scheduled jobs for the attendance service.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH ATTENDANCE JOB
// ══════════════════════════════════════════════════════════════════════════════

// Refresher reloads the attendance aggregate unless a write is pending.
type Refresher interface {
	Refresh(ctx context.Context) (skipped bool, err error)
}

// RefreshStats describes the outcome of the last run.
type RefreshStats struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Skipped   bool          `json:"skipped"`
	Error     string        `json:"error,omitempty"`
}

// RefreshAttendanceJob periodically reloads the attendance document so that
// changes made by other sessions become visible.
type RefreshAttendanceJob struct {
	repo    Refresher
	logger  *slog.Logger
	timeout time.Duration

	runs    atomic.Int64
	skips   atomic.Int64
	lastRun atomic.Pointer[RefreshStats]
}

// NewRefreshAttendanceJob creates the job. timeout bounds a single reload.
func NewRefreshAttendanceJob(repo Refresher, logger *slog.Logger, timeout time.Duration) *RefreshAttendanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshAttendanceJob{
		repo:    repo,
		logger:  logger.With("job", "refresh_attendance"),
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *RefreshAttendanceJob) Name() string {
	return "refresh_attendance"
}

// Description returns a human-readable description.
func (j *RefreshAttendanceJob) Description() string {
	return "Reloads the attendance document unless a save is in progress"
}

// Run executes one refresh.
func (j *RefreshAttendanceJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	skipped, err := j.repo.Refresh(ctx)
	stats := &RefreshStats{
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Skipped:   skipped,
	}
	j.runs.Add(1)

	if err != nil {
		stats.Error = err.Error()
		j.lastRun.Store(stats)
		return fmt.Errorf("refresh attendance: %w", err)
	}

	if skipped {
		j.skips.Add(1)
		j.logger.Info("refresh skipped, write in flight")
	}
	j.lastRun.Store(stats)
	return nil
}

// Runs returns how many refreshes were attempted and how many were skipped.
func (j *RefreshAttendanceJob) Runs() (total, skipped int64) {
	return j.runs.Load(), j.skips.Load()
}

// LastRun returns the stats of the last run, or nil before the first one.
func (j *RefreshAttendanceJob) LastRun() *RefreshStats {
	return j.lastRun.Load()
}
