package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/metrics"
	"inspira/internal/ratelimit"
	"inspira/internal/storage"
	"inspira/internal/ticket"
	"inspira/internal/trace"
)

// Sender is the part of the Telegram API the handlers use
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TicketRenderer draws the booking ticket picture
type TicketRenderer interface {
	Render(t ticket.Ticket) ([]byte, error)
}

// TraceStats reports trace counts for the daily digest
type TraceStats interface {
	CountSince(ctx context.Context, since time.Time) (map[trace.Status]int, error)
}

// Settings holds the behaviour knobs of the bot
type Settings struct {
	Version string

	LessonCapacity int
	LessonTimes    []string
	Activities     []string
	LessonWeeks    int

	SupportURL  string
	SiteURL     string
	FeedbackURL string

	BroadcastDelay      time.Duration
	BroadcastPauseEvery int
	BroadcastPause      time.Duration

	SessionTTL  time.Duration
	RebootDelay time.Duration
}

// Options holds the dependencies of the bot
type Options struct {
	Settings Settings

	Storage    storage.Storage
	Guard      *ratelimit.Guard
	Tickets    TicketRenderer
	Tracer     trace.Tracer
	TraceStats TraceStats
	Metrics    *metrics.Registry
	Logger     *zap.Logger

	SuperuserIDs []int64

	// Restart replaces the running process, used by /reboot
	Restart func() error
	// HostStats renders the /PC/ report
	HostStats func(ctx context.Context) (string, error)
	// Now overrides the clock in tests
	Now func() time.Time
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api        Sender
	db         storage.Storage
	guard      *ratelimit.Guard
	sessions   *SessionStore
	userLocks  userLocks
	tickets    TicketRenderer
	tracer     trace.Tracer
	traceStats TraceStats
	metrics    *metrics.Registry
	logger     *zap.Logger
	settings   Settings
	superusers map[int64]bool

	restart   func() error
	hostStats func(ctx context.Context) (string, error)
	now       func() time.Time

	// background work started by handlers, e.g. broadcasts
	baseCtx context.Context
	jobs    sync.WaitGroup
}
