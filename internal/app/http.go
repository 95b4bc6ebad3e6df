package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/metrics"
)

// WebhookPath receives Telegram updates in webhook mode
const WebhookPath = "/telegram-webhook"

// UpdateHandler processes a Telegram update
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// NewRouter builds the HTTP routes for health checks, metrics and the webhook.
// Webhook updates are processed in the background under ctx so Telegram gets
// a quick answer.
func NewRouter(ctx context.Context, handler UpdateHandler, reg *metrics.Registry, webhookMode bool, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware(reg))

	mode := "polling"
	if webhookMode {
		mode = "webhook"
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, fmt.Sprintf("Inspira bot is running (mode: %s)", mode))
	})
	r.GET("/metrics", gin.WrapH(reg.Handler()))

	if webhookMode {
		r.POST(WebhookPath, func(c *gin.Context) {
			var update tgbotapi.Update
			if err := c.ShouldBindJSON(&update); err != nil {
				logger.Warn("Error decoding webhook update", zap.Error(err))
				c.Status(http.StatusBadRequest)
				return
			}
			go handler.HandleUpdate(ctx, update)
			c.Status(http.StatusOK)
		})
	}
	return r
}
