package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"inspira/internal/bot"
	"inspira/internal/config"
	"inspira/internal/metrics"
	"inspira/internal/ratelimit"
	"inspira/internal/storage"
	"inspira/internal/storage/ch"
	"inspira/internal/storage/sqldb"
	"inspira/internal/storage/stubs"
	"inspira/internal/sysinfo"
	"inspira/internal/ticket"
	"inspira/internal/trace"
)

// App represents the application
type App struct {
	config  *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry

	db       storage.Storage
	redis    *redis.Client
	traces   *ch.TraceStore
	csvTrace *trace.CSVTracer

	api *tgbotapi.BotAPI
	bot *bot.Bot
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewRegistry(),
	}

	logger.Info("Starting Inspira bot", zap.String("version", cfg.Version))

	if err := app.initDatabase(ctx); err != nil {
		app.Shutdown()
		return nil, err
	}
	if err := app.initTracing(ctx); err != nil {
		app.Shutdown()
		return nil, err
	}
	if err := app.initBot(ctx); err != nil {
		app.Shutdown()
		return nil, err
	}
	return app, nil
}

// initDatabase initializes the relational store
func (a *App) initDatabase(ctx context.Context) error {
	var db storage.Storage
	if a.config.UseMockDB {
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	} else {
		a.logger.Info("Opening database", zap.String("driver", a.config.Database.Driver))
		sqlDB, err := sqldb.Open(a.config.Database.Driver, a.config.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		db = sqlDB
	}

	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initTracing opens the CSV and ClickHouse trace sinks that are configured
func (a *App) initTracing(ctx context.Context) error {
	if a.config.TraceFile != "" {
		csvTrace, err := trace.NewCSVTracer(a.config.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		a.csvTrace = csvTrace
	}

	cfg := a.config.ClickHouse
	if cfg.Host == "" {
		return nil
	}
	tlsStatus := "without TLS"
	if cfg.UseTLS {
		tlsStatus = "with TLS"
	}
	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("tls", tlsStatus),
	)
	store, err := ch.NewTraceStore(cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.UseTLS)
	if err != nil {
		return err
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize trace table: %w", err)
	}
	a.traces = store
	return nil
}

// initGuard picks the rate limiter state store
func (a *App) initGuard(ctx context.Context) (*ratelimit.Guard, error) {
	rl := a.config.RateLimit
	cfg := ratelimit.Config{
		Window:       rl.Window.Std(),
		RequestLimit: rl.RequestLimit,
		BanThreshold: rl.BanThreshold,
		TempBlock:    rl.TempBlock.Std(),
	}

	var state ratelimit.StateStore = ratelimit.NewMemoryStore()
	if a.config.Redis.URL != "" {
		opts, err := redis.ParseURL(a.config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		a.redis = client
		state = ratelimit.NewRedisStore(client, a.config.Redis.Prefix)
		a.logger.Info("Rate limiter uses redis")
	}
	return ratelimit.NewGuard(cfg, state, a.db, a.logger), nil
}

// initBot initializes the Telegram bot
func (a *App) initBot(ctx context.Context) error {
	guard, err := a.initGuard(ctx)
	if err != nil {
		return err
	}

	opts := bot.Options{
		Settings: bot.Settings{
			Version:             a.config.Version,
			LessonCapacity:      a.config.Lessons.Capacity,
			LessonTimes:         a.config.Lessons.Times,
			Activities:          a.config.Lessons.Activities,
			LessonWeeks:         a.config.Lessons.Weeks,
			SupportURL:          a.config.Links.Support,
			SiteURL:             a.config.Links.Site,
			FeedbackURL:         a.config.Links.Feedback,
			BroadcastDelay:      a.config.Broadcast.Delay.Std(),
			BroadcastPauseEvery: a.config.Broadcast.PauseEvery,
			BroadcastPause:      a.config.Broadcast.Pause.Std(),
			SessionTTL:          a.config.SessionTTL.Std(),
			RebootDelay:         5 * time.Second,
		},
		Storage:      a.db,
		Guard:        guard,
		Tracer:       a.tracer(),
		Metrics:      a.metrics,
		Logger:       a.logger,
		SuperuserIDs: a.config.SuperuserIDs,
		Restart:      Restart,
		HostStats: func(ctx context.Context) (string, error) {
			s, err := sysinfo.Collect(ctx)
			if err != nil {
				return "", err
			}
			return s.Format(), nil
		},
	}
	if a.traces != nil {
		opts.TraceStats = a.traces
	}

	renderer, err := ticket.NewRenderer(a.config.Ticket.TemplateDir, a.config.Ticket.FontPath)
	if err != nil {
		a.logger.Warn("Tickets are sent as text", zap.Error(err))
	} else {
		opts.Tickets = renderer
	}

	telegramBot, api, err := bot.NewBot(a.config.TelegramToken, opts)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	if err := telegramBot.SeedSuperusers(ctx); err != nil {
		return err
	}
	a.logger.Info("Bot created successfully", zap.Int64s("superusers", a.config.SuperuserIDs))

	a.api = api
	a.bot = telegramBot
	return nil
}

func (a *App) tracer() trace.Tracer {
	var sinks []trace.Tracer
	if a.csvTrace != nil {
		sinks = append(sinks, a.csvTrace)
	}
	if a.traces != nil {
		sinks = append(sinks, a.traces)
	}
	return trace.NewMulti(sinks...)
}

// Run starts the bot, the HTTP server and the background jobs and blocks
// until ctx is cancelled or one of them fails
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// the webhook must be registered before the server starts serving updates
	if a.config.HTTP.WebhookMode {
		if err := a.bot.StartWebhook(ctx, a.api, a.config.HTTP.WebhookURL, WebhookPath); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured", zap.String("path", WebhookPath))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.HTTP.Port),
		Handler:      NewRouter(ctx, a.bot, a.metrics, a.config.HTTP.WebhookMode, a.logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.Int("port", a.config.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if !a.config.HTTP.WebhookMode {
		g.Go(func() error {
			return a.bot.Start(ctx, a.api)
		})
	}

	if a.config.DigestHour >= 0 {
		g.Go(func() error {
			a.bot.RunDigest(ctx, a.config.DigestHour, time.Minute)
			return nil
		})
	}

	err := g.Wait()
	a.bot.Wait()
	return err
}

// Shutdown releases every connection the app holds
func (a *App) Shutdown() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.traces != nil {
		if err := a.traces.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close clickhouse: %w", err))
		}
	}
	if a.csvTrace != nil {
		if err := a.csvTrace.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace file: %w", err))
		}
	}
	a.logger.Info("Shutdown complete")
	return errors.Join(errs...)
}
