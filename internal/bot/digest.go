package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"inspira/internal/models"
	"inspira/internal/trace"
)

// RunDigest sends the daily summary to admins at the given local hour.
// It blocks until ctx is cancelled.
func (b *Bot) RunDigest(ctx context.Context, hour int, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	b.logger.Info("Starting daily digest job", zap.Int("hour", hour))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDay string
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Daily digest job stopped")
			return
		case <-ticker.C:
			now := b.now()
			day := now.Format("2006-01-02")
			if now.Hour() != hour || day == lastDay {
				continue
			}
			lastDay = day
			if err := b.SendDigest(ctx); err != nil {
				b.logger.Error("Failed to send digest", zap.Error(err))
			}
		}
	}
}

// Digest builds the summary of the last 24 hours
func (b *Bot) Digest(ctx context.Context) (string, error) {
	since := b.now().Add(-24 * time.Hour)

	users, err := b.db.ListUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list users: %w", err)
	}
	fresh := 0
	for _, u := range users {
		if u.RegisteredAt.After(since) {
			fresh++
		}
	}

	counts, err := b.db.CountByStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count statuses: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("➜ <b>DAILY DIGEST</b> ➜\n\n")
	fmt.Fprintf(&sb, "Users: %d (+%d)\n\n", len(users), fresh)
	for _, s := range []models.ProductStatus{models.StatusWaiting, models.StatusInWork, models.StatusReady, models.StatusReceived} {
		fmt.Fprintf(&sb, "%s: %d\n", s.Label(), counts[s])
	}

	if b.traceStats != nil {
		stats, err := b.traceStats.CountSince(ctx, since)
		if err != nil {
			b.logger.Warn("Failed to read trace stats", zap.Error(err))
		} else {
			fmt.Fprintf(&sb, "\nErrors: %d\nWarnings: %d\n",
				stats[trace.StatusError]+stats[trace.StatusCritical], stats[trace.StatusWarning])
		}
	}
	return sb.String(), nil
}

// SendDigest delivers the summary to every admin
func (b *Bot) SendDigest(ctx context.Context) error {
	text, err := b.Digest(ctx)
	if err != nil {
		return err
	}
	b.notifyAdmins(ctx, text, nil)
	b.trace(ctx, trace.StatusSystem, 0, "digest", "daily digest sent", nil)
	return nil
}
