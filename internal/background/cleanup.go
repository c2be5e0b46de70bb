package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/metrics"
)

// AttemptPruner deletes login attempts older than a cutoff
type AttemptPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically prunes the login attempt log.
// Retention must cover twice the guard's lookback (attempt window + block duration).
type CleanupManager struct {
	attempts  AttemptPruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewCleanupManager(
	attempts AttemptPruner,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *CleanupManager {
	return &CleanupManager{
		attempts:  attempts,
		retention: retention,
		interval:  interval,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then every interval until Stop or ctx cancellation
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce deletes attempts older than the retention period
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.now().Add(-cm.retention)
	rowsDeleted, err := cm.attempts.DeleteOlderThan(cleanupCtx, cutoff)
	if err != nil {
		cm.metrics.IncrementCleanupRuns("error")
		cm.logger.Error("failed to prune login attempts", slog.Any("error", err))
		return
	}

	cm.metrics.IncrementCleanupRuns("success")
	cm.metrics.AddCleanupDeleted(rowsDeleted)
	if rowsDeleted > 0 {
		cm.logger.Info("login attempt cleanup completed",
			slog.Int64("rows_deleted", rowsDeleted),
			slog.Time("cutoff", cutoff))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
