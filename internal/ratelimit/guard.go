// Package ratelimit throttles and bans users who flood the bot.
//
// Every inbound interaction is recorded in a sliding window. A user with more
// than RequestLimit interactions in the window is blocked for TempBlock; a
// user who keeps going up to BanThreshold interactions is banned for good.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Verdict is the outcome of a guard check
type Verdict int

const (
	Allowed Verdict = iota
	RateLimited
	TempBlocked
	Banned
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case RateLimited:
		return "rate_limited"
	case TempBlocked:
		return "temp_blocked"
	case Banned:
		return "banned"
	}
	return "unknown"
}

// Decision describes what the bot should do with an interaction
type Decision struct {
	Verdict Verdict
	// Count is the number of interactions in the current window
	Count int
	// BlockedUntil is set for RateLimited and TempBlocked
	BlockedUntil time.Time
	// NewlyBanned is true when this interaction produced the ban
	NewlyBanned bool
	// FirstNotice is true on the first rejection of a user banned elsewhere
	FirstNotice bool
}

// Allowed reports whether handlers may process the interaction
func (d Decision) Allowed() bool {
	return d.Verdict == Allowed
}

// Config holds the guard thresholds
type Config struct {
	Window       time.Duration
	RequestLimit int
	BanThreshold int
	TempBlock    time.Duration
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		Window:       30 * time.Second,
		RequestLimit: 12,
		BanThreshold: 32,
		TempBlock:    30 * time.Minute,
	}
}

// BanStore persists permanent bans. storage.Storage satisfies it.
type BanStore interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
	BanUser(ctx context.Context, userID int64) (bool, error)
}

// StateStore keeps the sliding windows and temporary blocks
type StateStore interface {
	// Record drops entries not newer than now-window, appends now and
	// returns the number of entries left in the window.
	Record(ctx context.Context, userID int64, now time.Time, window time.Duration) (int, error)
	ClearWindow(ctx context.Context, userID int64) error
	// Block stores a temporary block lasting from now until until. now comes
	// from the guard clock.
	Block(ctx context.Context, userID int64, now, until time.Time) error
	BlockedUntil(ctx context.Context, userID int64) (time.Time, bool, error)
	Unblock(ctx context.Context, userID int64) error
}

// Guard decides whether an interaction reaches the handlers
type Guard struct {
	cfg    Config
	state  StateStore
	bans   BanStore
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	notified map[int64]bool
}

// Option configures a Guard
type Option func(*Guard)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard. Zero fields of cfg fall back to DefaultConfig.
func NewGuard(cfg Config, state StateStore, bans BanStore, logger *zap.Logger, opts ...Option) *Guard {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.RequestLimit <= 0 {
		cfg.RequestLimit = def.RequestLimit
	}
	if cfg.BanThreshold <= 0 {
		cfg.BanThreshold = def.BanThreshold
	}
	if cfg.TempBlock <= 0 {
		cfg.TempBlock = def.TempBlock
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Guard{
		cfg:      cfg,
		state:    state,
		bans:     bans,
		logger:   logger,
		now:      time.Now,
		notified: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the thresholds in use
func (g *Guard) Config() Config {
	return g.cfg
}

// Check records the interaction and returns the decision for it
func (g *Guard) Check(ctx context.Context, userID int64) (Decision, error) {
	now := g.now()

	banned, err := g.bans.IsBanned(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check ban: %w", err)
	}
	if banned {
		return Decision{Verdict: Banned, FirstNotice: g.markNotified(userID)}, nil
	}

	count, err := g.state.Record(ctx, userID, now, g.cfg.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to record interaction: %w", err)
	}

	if count >= g.cfg.BanThreshold {
		added, err := g.bans.BanUser(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to ban user: %w", err)
		}
		g.markNotified(userID)
		g.logger.Warn("User banned for flooding",
			zap.Int64("user_id", userID),
			zap.Int("count", count))
		return Decision{Verdict: Banned, Count: count, NewlyBanned: added}, nil
	}

	until, blocked, err := g.state.BlockedUntil(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read block: %w", err)
	}
	if blocked {
		if now.Before(until) {
			return Decision{Verdict: TempBlocked, Count: count, BlockedUntil: until}, nil
		}
		if err := g.state.Unblock(ctx, userID); err != nil {
			return Decision{}, fmt.Errorf("failed to lift block: %w", err)
		}
		if err := g.state.ClearWindow(ctx, userID); err != nil {
			return Decision{}, fmt.Errorf("failed to clear window: %w", err)
		}
		return Decision{Verdict: Allowed}, nil
	}

	if count > g.cfg.RequestLimit {
		until := now.Add(g.cfg.TempBlock)
		if err := g.state.Block(ctx, userID, now, until); err != nil {
			return Decision{}, fmt.Errorf("failed to block user: %w", err)
		}
		g.logger.Info("User rate limited",
			zap.Int64("user_id", userID),
			zap.Int("count", count),
			zap.Time("until", until))
		return Decision{Verdict: RateLimited, Count: count, BlockedUntil: until}, nil
	}

	return Decision{Verdict: Allowed, Count: count}, nil
}

// Reset forgets the window, block and ban notice of a user. Used on unban.
func (g *Guard) Reset(ctx context.Context, userID int64) error {
	if err := g.state.Unblock(ctx, userID); err != nil {
		return fmt.Errorf("failed to lift block: %w", err)
	}
	if err := g.state.ClearWindow(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear window: %w", err)
	}

	g.mu.Lock()
	delete(g.notified, userID)
	g.mu.Unlock()
	return nil
}

// markNotified returns true only the first time it is called for a user
func (g *Guard) markNotified(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.notified[userID] {
		return false
	}
	g.notified[userID] = true
	return true
}
