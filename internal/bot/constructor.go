package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/metrics"
	"inspira/internal/ratelimit"
	"inspira/internal/trace"
)

// NewBot connects to Telegram and creates the bot
func NewBot(token string, opts Options) (*Bot, *tgbotapi.BotAPI, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return New(api, opts), api, nil
}

// New creates a bot on top of any Sender
func New(api Sender, opts Options) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop{}
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	guard := opts.Guard
	if guard == nil {
		guard = ratelimit.NewGuard(ratelimit.DefaultConfig(), ratelimit.NewMemoryStore(), opts.Storage, logger,
			ratelimit.WithClock(now))
	}

	s := opts.Settings
	if s.LessonWeeks <= 0 {
		s.LessonWeeks = 4
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = 15 * time.Minute
	}
	if s.BroadcastPauseEvery <= 0 {
		s.BroadcastPauseEvery = 15
	}

	superusers := make(map[int64]bool)
	for _, id := range opts.SuperuserIDs {
		superusers[id] = true
	}

	return &Bot{
		api:        api,
		db:         opts.Storage,
		guard:      guard,
		sessions:   NewSessionStore(s.SessionTTL, now),
		tickets:    opts.Tickets,
		tracer:     tracer,
		traceStats: opts.TraceStats,
		metrics:    reg,
		logger:     logger,
		settings:   s,
		superusers: superusers,
		restart:    opts.Restart,
		hostStats:  opts.HostStats,
		now:        now,
		baseCtx:    context.Background(),
	}
}

// SeedSuperusers stores the configured superusers in the admins table
func (b *Bot) SeedSuperusers(ctx context.Context) error {
	for id := range b.superusers {
		if err := b.db.AddAdmin(ctx, adminRecord(id, true)); err != nil {
			return fmt.Errorf("failed to seed superuser %d: %w", id, err)
		}
	}
	return nil
}

// Wait blocks until background jobs such as broadcasts finish
func (b *Bot) Wait() {
	b.jobs.Wait()
}
