package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"inspira/internal/trace"
)

// BroadcastReport summarizes a mass mailing
type BroadcastReport struct {
	RunID   string
	Sent    int
	Failed  int
	Skipped int
	Elapsed time.Duration
}

// Broadcast sends the HTML text to every user who is not banned. Sends are
// paced by BroadcastDelay with a longer pause every BroadcastPauseEvery
// messages.
func (b *Bot) Broadcast(ctx context.Context, text string) (BroadcastReport, error) {
	report := BroadcastReport{RunID: uuid.NewString()}
	start := time.Now()

	users, err := b.db.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list users: %w", err)
	}

	log := b.logger.With(zap.String("run_id", report.RunID))
	log.Info("Broadcast started", zap.Int("recipients", len(users)))

	attempts := 0
	for _, u := range users {
		banned, err := b.db.IsBanned(ctx, u.UserID)
		if err != nil {
			log.Warn("Failed to check ban", zap.Int64("user_id", u.UserID), zap.Error(err))
		}
		if banned {
			report.Skipped++
			continue
		}

		if attempts > 0 {
			wait := b.settings.BroadcastDelay
			if attempts%b.settings.BroadcastPauseEvery == 0 {
				wait = b.settings.BroadcastPause
			}
			if !sleep(ctx, wait) {
				break
			}
		}
		attempts++

		msg := tgbotapi.NewMessage(u.UserID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := b.sendMessage(msg); err != nil {
			report.Failed++
			b.metrics.BroadcastTotal.WithLabelValues("failed").Inc()
			continue
		}
		report.Sent++
		b.metrics.BroadcastTotal.WithLabelValues("sent").Inc()
	}

	report.Elapsed = time.Since(start)
	log.Info("Broadcast finished",
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, ctx.Err()
}

// sleep waits for d unless ctx ends first
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handleBroadcast starts /all in the background and reports when done
func (b *Bot) handleBroadcast(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "all") {
		return
	}
	text := strings.TrimSpace(strings.ReplaceAll(message.CommandArguments(), `\n`, "\n"))
	if text == "" {
		b.reply(message.Chat.ID, textArgsInvalid, nil)
		return
	}

	adminID := message.From.ID
	chatID := message.Chat.ID
	b.trace(ctx, trace.StatusAdmin, adminID, "all", "broadcast started", nil)
	b.reply(chatID, "➜ SENDING STREAM MESSAGES ... [wait]", nil)

	b.jobs.Add(1)
	go func() {
		defer b.jobs.Done()
		report, err := b.Broadcast(b.baseCtx, text)
		if err != nil {
			b.logger.Error("Broadcast interrupted", zap.String("run_id", report.RunID), zap.Error(err))
			b.trace(b.baseCtx, trace.StatusError, adminID, "all", "broadcast interrupted", err)
		}
		b.reply(chatID, formatBroadcastReport(report), adminPanelKeyboard())
	}()
}

func formatBroadcastReport(r BroadcastReport) string {
	elapsed := r.Elapsed.Round(time.Second)
	h := int(elapsed.Hours())
	m := int(elapsed.Minutes()) % 60
	s := int(elapsed.Seconds()) % 60
	return fmt.Sprintf("➜ DONE %d\n➜ NOT COMPLETED %d\n➜ SKIPPED %d\n\n➜ TIMING – %d h, %d m, %d s",
		r.Sent, r.Failed, r.Skipped, h, m, s)
}
