package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (p *fakePruner) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.deleted, p.err
}

func (p *fakePruner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func newTestManager(pruner AttemptPruner, interval time.Duration) (*CleanupManager, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewCleanupManager(pruner, 24*time.Hour, interval, logger, m), m
}

func TestCleanupManager_RunOnceUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pruner := &fakePruner{deleted: 7}
	cm, m := newTestManager(pruner, time.Hour)
	cm.now = func() time.Time { return now }

	cm.RunOnce(context.Background())

	assert.Equal(t, []time.Time{now.Add(-24 * time.Hour)}, pruner.cutoffs)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.CleanupDeletedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupRunsTotal.WithLabelValues("success")))
}

func TestCleanupManager_RunOnceError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("db down")}
	cm, m := newTestManager(pruner, time.Hour)

	cm.RunOnce(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupRunsTotal.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CleanupDeletedTotal))
}

func TestCleanupManager_StartAndStop(t *testing.T) {
	pruner := &fakePruner{}
	cm, _ := newTestManager(pruner, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return pruner.calls() >= 2 }, time.Second, 5*time.Millisecond)

	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm, _ := newTestManager(&fakePruner{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager ignored context cancellation")
	}
}
