package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"inspira/internal/app"
	"inspira/internal/config"
	"inspira/internal/logger"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogEnv)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, zl))
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) int {
	application, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Error("Failed to create application", zap.Error(err))
		return 1
	}

	runErr := application.Run(ctx)
	if err := application.Shutdown(); err != nil {
		zl.Warn("Shutdown finished with errors", zap.Error(err))
	}
	if runErr == nil || ctx.Err() != nil {
		return 0
	}

	zl.Error("Application failed", zap.Error(runErr))
	if cfg.RestartOnFailure {
		zl.Info("Restarting after failure")
		if err := app.Restart(); err != nil {
			zl.Error("Restart failed", zap.Error(err))
		}
	}
	return 1
}
