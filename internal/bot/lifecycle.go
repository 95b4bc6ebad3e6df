package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Poller is the part of the Telegram API used for long polling
type Poller interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Start runs the bot in polling mode until ctx is cancelled
func (b *Bot) Start(ctx context.Context, api Poller) error {
	b.logger.Info("Starting bot in polling mode")
	b.baseCtx = ctx

	// Remove webhook (if any was set previously)
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			b.logger.Info("Polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("updates channel closed")
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// StartWebhook registers the webhook. Updates then arrive through
// HandleUpdate from the HTTP server.
func (b *Bot) StartWebhook(ctx context.Context, api *tgbotapi.BotAPI, webhookURL, path string) error {
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))
	b.baseCtx = ctx

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + path)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	webhookConfig.MaxConnections = 40

	if _, err := api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}
	return nil
}
