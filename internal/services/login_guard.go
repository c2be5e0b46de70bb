package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/metrics"
	"github.com/BradenHooton/expense-tracker/internal/models"
	pkglogger "github.com/BradenHooton/expense-tracker/pkg/logger"
)

// LoginAttemptRepository is the attempt log consulted by the guard
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	GetFailedAttemptTimes(ctx context.Context, username string, since time.Time) ([]time.Time, error)
	GetFailedAttemptTimesBetween(ctx context.Context, username string, since, before time.Time) ([]time.Time, error)
}

// BlockCache short-circuits checks for users already known to be blocked.
// GetBlockedUntil returns nil on a miss.
type BlockCache interface {
	GetBlockedUntil(ctx context.Context, username string) (*time.Time, error)
	SetBlockedUntil(ctx context.Context, username string, until time.Time, ttl time.Duration) error
}

// LoginGuardConfig holds the brute-force thresholds
type LoginGuardConfig struct {
	FailedAttemptsThreshold int
	AttemptWindow           time.Duration
	BlockDuration           time.Duration
}

// DefaultLoginGuardConfig blocks for 30 minutes after 5 failures within a minute
func DefaultLoginGuardConfig() LoginGuardConfig {
	return LoginGuardConfig{
		FailedAttemptsThreshold: 5,
		AttemptWindow:           time.Minute,
		BlockDuration:           30 * time.Minute,
	}
}

const (
	guardOpRecord = "record"
	guardOpCheck  = "check"
)

// LoginGuard records login attempts per username and derives block state from them.
//
// A failure trips the threshold when it is not inside an active block and at least
// FailedAttemptsThreshold failures fall in [max(t-AttemptWindow, end of previous block), t].
// The tripping failure anchors a block lasting BlockDuration. Failures during a block
// never re-anchor it, and successful logins neither delete failures nor lift a block.
type LoginGuard struct {
	repo    LoginAttemptRepository
	config  LoginGuardConfig
	logger  *slog.Logger
	now     func() time.Time
	cache   BlockCache
	metrics *metrics.Metrics
}

// NewLoginGuard creates a guard. Zero config fields take their defaults.
func NewLoginGuard(repo LoginAttemptRepository, config LoginGuardConfig, logger *slog.Logger) *LoginGuard {
	defaults := DefaultLoginGuardConfig()
	if config.FailedAttemptsThreshold <= 0 {
		config.FailedAttemptsThreshold = defaults.FailedAttemptsThreshold
	}
	if config.AttemptWindow <= 0 {
		config.AttemptWindow = defaults.AttemptWindow
	}
	if config.BlockDuration <= 0 {
		config.BlockDuration = defaults.BlockDuration
	}

	return &LoginGuard{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (g *LoginGuard) SetClock(now func() time.Time) {
	g.now = now
}

// SetBlockCache enables the block cache
func (g *LoginGuard) SetBlockCache(cache BlockCache) {
	g.cache = cache
}

// SetMetrics enables guard metrics
func (g *LoginGuard) SetMetrics(m *metrics.Metrics) {
	g.metrics = m
}

// Config returns the effective thresholds
func (g *LoginGuard) Config() LoginGuardConfig {
	return g.config
}

// RecordAttempt appends one attempt stamped with the guard clock. An empty ipAddress is stored as NULL.
// An empty username is rejected with models.ErrBadRequest.
func (g *LoginGuard) RecordAttempt(ctx context.Context, username, ipAddress string, success bool) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", models.ErrBadRequest)
	}

	attempt := &models.LoginAttempt{
		Username:    username,
		Success:     success,
		AttemptedAt: g.now(),
	}
	if ipAddress != "" {
		attempt.IPAddress = &ipAddress
	}

	if err := g.repo.RecordAttempt(ctx, attempt); err != nil {
		g.metrics.IncrementGuardErrors(guardOpRecord)
		return fmt.Errorf("%w: record login attempt: %w", models.ErrStorageUnavailable, err)
	}

	g.metrics.IncrementAttemptsRecorded(success)
	return nil
}

// IsBlocked reports whether username is inside an active block
func (g *LoginGuard) IsBlocked(ctx context.Context, username string) (bool, error) {
	state, err := g.BlockState(ctx, username)
	if err != nil {
		return false, err
	}
	return state.Blocked, nil
}

// BlockRemaining returns the whole seconds left on the block, rounded up; 0 when not blocked
func (g *LoginGuard) BlockRemaining(ctx context.Context, username string) (int, error) {
	state, err := g.BlockState(ctx, username)
	if err != nil {
		return 0, err
	}
	return state.RetryAfterSeconds, nil
}

// Check returns a *models.RateLimitError when username is blocked
func (g *LoginGuard) Check(ctx context.Context, username string) error {
	state, err := g.BlockState(ctx, username)
	if err != nil {
		return err
	}
	if !state.Blocked {
		return nil
	}

	g.metrics.IncrementBlocked()
	g.logger.Warn("login rejected for blocked account",
		slog.String("username", pkglogger.SanitizedUsername(username)),
		slog.Int("retry_after_seconds", state.RetryAfterSeconds))

	return &models.RateLimitError{RetryAfter: state.RetryAfter()}
}

// BlockState derives the block state of username from one read of the attempt log
func (g *LoginGuard) BlockState(ctx context.Context, username string) (*models.BlockState, error) {
	now := g.now()

	if until, ok := g.cachedBlock(ctx, username, now); ok {
		return g.blockedState(username, until, now), nil
	}

	failures, err := g.loadFailures(ctx, username, now)
	if err != nil {
		g.metrics.IncrementGuardErrors(guardOpCheck)
		return nil, fmt.Errorf("%w: load failed attempts: %w", models.ErrStorageUnavailable, err)
	}

	anchor := findBlockAnchor(failures, g.config)
	if anchor == nil {
		return &models.BlockState{Username: username}, nil
	}

	until := anchor.Add(g.config.BlockDuration)
	if !now.Before(until) {
		return &models.BlockState{Username: username, AnchorAt: anchor, BlockedUntil: &until}, nil
	}

	g.storeBlock(ctx, username, until, now)
	return g.blockedState(username, until, now), nil
}

func (g *LoginGuard) blockedState(username string, until, now time.Time) *models.BlockState {
	anchor := until.Add(-g.config.BlockDuration)
	return &models.BlockState{
		Username:          username,
		Blocked:           true,
		AnchorAt:          &anchor,
		BlockedUntil:      &until,
		RetryAfterSeconds: ceilSeconds(until.Sub(now)),
	}
}

// cachedBlock consults the cache; any cache error falls through to the attempt log
func (g *LoginGuard) cachedBlock(ctx context.Context, username string, now time.Time) (time.Time, bool) {
	if g.cache == nil {
		return time.Time{}, false
	}

	until, err := g.cache.GetBlockedUntil(ctx, username)
	if err != nil {
		g.metrics.IncrementCacheLookup("error")
		g.logger.Warn("block cache lookup failed", slog.Any("error", err))
		return time.Time{}, false
	}
	if until == nil || !now.Before(*until) {
		g.metrics.IncrementCacheLookup("miss")
		return time.Time{}, false
	}

	g.metrics.IncrementCacheLookup("hit")
	return *until, true
}

func (g *LoginGuard) storeBlock(ctx context.Context, username string, until, now time.Time) {
	if g.cache == nil {
		return
	}
	if err := g.cache.SetBlockedUntil(ctx, username, until, until.Sub(now)); err != nil {
		g.logger.Warn("block cache store failed", slog.Any("error", err))
	}
}

// Lookback returns how far back a single block can influence the current state
func (c LoginGuardConfig) Lookback() time.Duration {
	return c.AttemptWindow + c.BlockDuration
}

// loadFailures returns the failures the anchor scan needs, oldest first.
//
// Failures inside the last Lookback are not enough on their own: an earlier block may
// have swallowed some of them. History is read further back, doubling the span each
// time, until a failure is found with no other failure in the Lookback before it. No
// block anchored earlier can reach past that point, so the scan starts there fresh.
func (g *LoginGuard) loadFailures(ctx context.Context, username string, now time.Time) ([]time.Time, error) {
	lookback := g.config.Lookback()
	since := now.Add(-lookback)

	failures, err := g.repo.GetFailedAttemptTimes(ctx, username, since)
	if err != nil {
		return nil, err
	}

	span := lookback
	for {
		if i := quietStart(failures, since, lookback); i >= 0 {
			return failures[i:], nil
		}

		span *= 2
		from := since.Add(-span)
		older, err := g.repo.GetFailedAttemptTimesBetween(ctx, username, from, since)
		if err != nil {
			return nil, err
		}
		failures = append(older, failures...)
		since = from
	}
}

// quietStart returns the index of the latest failure preceded by at least gap without
// failures, counting the unread time before since as unknown. It returns -1 when no
// such failure is known yet.
func quietStart(failures []time.Time, since time.Time, gap time.Duration) int {
	if len(failures) == 0 {
		return 0
	}
	for i := len(failures) - 1; i >= 0; i-- {
		prev := since
		if i > 0 {
			prev = failures[i-1]
		}
		if failures[i].Sub(prev) >= gap {
			return i
		}
	}
	return -1
}

// findBlockAnchor returns the most recent threshold-tripping failure, or nil.
// failures must be sorted ascending.
func findBlockAnchor(failures []time.Time, config LoginGuardConfig) *time.Time {
	var anchor *time.Time
	var blockEnd time.Time
	start := 0

	for i, t := range failures {
		if t.Before(blockEnd) {
			continue
		}

		windowStart := t.Add(-config.AttemptWindow)
		if windowStart.Before(blockEnd) {
			windowStart = blockEnd
		}
		for start < i && failures[start].Before(windowStart) {
			start++
		}

		if i-start+1 >= config.FailedAttemptsThreshold {
			tripped := t
			anchor = &tripped
			blockEnd = t.Add(config.BlockDuration)
			start = i + 1
		}
	}

	return anchor
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
