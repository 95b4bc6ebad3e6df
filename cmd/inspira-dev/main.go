package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"go.uber.org/zap"

	"inspira/internal/app"
	"inspira/internal/config"
	"inspira/internal/logger"
)

// Runs the bot against a throwaway ClickHouse trace store and a local sqlite file
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("Starting ClickHouse testcontainer...")

	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(context.Background()); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}
	log.Printf("ClickHouse started at %s:%s", host, port.Port())

	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("WEBHOOK_MODE", "false")
	os.Setenv("LOG_ENV", "development")
	if os.Getenv("DB_DSN") == "" {
		os.Setenv("DB_DRIVER", "sqlite")
		os.Setenv("DB_DSN", "inspira-dev.db")
	}

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set. Please set it in your .env file or environment.")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return
	}
	zl, err := logger.New(cfg.LogEnv)
	if err != nil {
		log.Printf("Failed to create logger: %v", err)
		return
	}
	defer zl.Sync()

	application, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Error("Failed to create application", zap.Error(err))
		return
	}
	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		zl.Error("Application error", zap.Error(err))
	}
	if err := application.Shutdown(); err != nil {
		zl.Warn("Shutdown finished with errors", zap.Error(err))
	}
}
