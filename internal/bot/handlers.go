package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/ratelimit"
	"inspira/internal/trace"
)

// HandleUpdate processes a single update from polling or webhook. Updates
// of the same user are handled one at a time.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if userID, ok := senderID(update); ok {
		unlock := b.userLocks.lock(userID)
		defer unlock()
	}

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func senderID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	}
	return 0, false
}

// admit runs the flood guard. Rejected interactions never reach handlers.
func (b *Bot) admit(ctx context.Context, userID, chatID int64) bool {
	d, err := b.guard.Check(ctx, userID)
	if err != nil {
		// the guard state is unavailable, serve the user rather than drop everyone
		b.logger.Error("Flood guard failed", zap.Int64("user_id", userID), zap.Error(err))
		b.trace(ctx, trace.StatusError, userID, "guard", "flood guard failed", err)
		return true
	}
	b.metrics.GuardDecisionsTotal.WithLabelValues(d.Verdict.String()).Inc()

	switch d.Verdict {
	case ratelimit.Allowed:
		return true
	case ratelimit.RateLimited:
		b.logger.Warn("User rate limited", zap.Int64("user_id", userID), zap.Int("count", d.Count))
		b.trace(ctx, trace.StatusWarning, userID, "guard",
			fmt.Sprintf("rate limited until %s", d.BlockedUntil.Format(trace.TimestampLayout)), nil)
		b.reply(chatID, fmt.Sprintf(textRateLimited, b.guard.Config().TempBlock), nil)
	case ratelimit.Banned:
		if d.NewlyBanned {
			b.logger.Warn("User banned for flooding", zap.Int64("user_id", userID), zap.Int("count", d.Count))
			b.trace(ctx, trace.StatusCritical, userID, "guard", "banned for flooding", nil)
			b.notifyAdmins(ctx, fmt.Sprintf("⚠ User <code>%d</code> was banned for flooding", userID), nil)
			b.reply(chatID, textBanned, nil)
		} else if d.FirstNotice {
			b.trace(ctx, trace.StatusWarning, userID, "guard", "banned user tried to get in", nil)
			b.notifyAdmins(ctx, fmt.Sprintf("⚠ Banned user <code>%d</code> tried to use the bot", userID), nil)
			b.reply(chatID, textBanned, nil)
		}
	}
	return false
}

// handleMessage processes a single message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID

	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.trace(ctx, trace.StatusCritical, message.From.ID, "handleMessage", fmt.Sprint(r), nil)
			b.reply(chatID, textFailure, nil)
		}
	}()

	b.metrics.UpdatesTotal.WithLabelValues("message").Inc()
	userID := message.From.ID
	if !b.admit(ctx, userID, chatID) {
		return
	}

	// Check if user is in a conversation
	if sess, ok := b.sessions.Get(userID); ok {
		if message.IsCommand() {
			// Any command interrupts an ongoing conversation
			b.sessions.Delete(userID)
			if message.Command() == "cancel" {
				b.reply(chatID, textCancelled, nil)
				return
			}
		} else {
			b.handleConversation(ctx, message, sess)
			return
		}
	}

	if message.Contact != nil {
		b.handleContact(ctx, message)
		return
	}

	// Reply keyboard buttons. Panel buttons look like commands to Telegram.
	switch strings.TrimSpace(message.Text) {
	case btnStart:
		b.handleStart(ctx, message)
		return
	case btnSharePhone:
		b.askPhone(chatID)
		return
	case btnCheckStatus:
		b.handleStatus(ctx, message)
		return
	case btnSignUp:
		b.handleRegistrationStart(ctx, message)
		return
	case btnAdmin, "inspira":
		b.handleAdminPanel(ctx, message)
		return
	case btnGroups:
		b.handleGroups(ctx, message)
		return
	case btnCommands:
		b.handleCommandList(ctx, message)
		return
	case btnAdmins:
		b.handleAdminList(ctx, message)
		return
	case btnUsers:
		b.handleUserList(ctx, message)
		return
	case btnLessons:
		b.handleLessons(ctx, message)
		return
	case btnPC:
		b.handleHostStats(ctx, message)
		return
	}

	if !message.IsCommand() {
		b.reply(chatID, textNotUnderstood, nil)
		return
	}

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "status":
		b.handleStatus(ctx, message)
	case "registration":
		b.handleRegistrationStart(ctx, message)
	case "cancel":
		b.reply(chatID, textNothingToStop, nil)
	case "inspira":
		b.handleAdminPanel(ctx, message)
	case "block":
		b.handleBlock(ctx, message)
	case "unblock":
		b.handleUnblock(ctx, message)
	case "limited_users":
		b.handleLimitedUsers(ctx, message)
	case "i":
		b.handleUserInfo(ctx, message)
	case "drop":
		b.handleDropUser(ctx, message)
	case "sms":
		b.handleSMS(ctx, message)
	case "all":
		b.handleBroadcast(ctx, message)
	case "export":
		b.handleExport(ctx, message)
	case "referrals":
		b.handleReferrals(ctx, message)
	case "add_admin":
		b.handleAddAdminStart(ctx, message)
	case "drop_admin":
		b.handleDropAdmin(ctx, message)
	case "reboot":
		b.handleReboot(ctx, message)
	default:
		b.reply(chatID, textNotUnderstood, nil)
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.From == nil {
		return
	}

	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
			b.trace(ctx, trace.StatusCritical, query.From.ID, "handleCallbackQuery", fmt.Sprint(r), nil)
		}
	}()

	b.metrics.UpdatesTotal.WithLabelValues("callback").Inc()

	// Answer the callback query to remove loading state
	b.answerCallback(query.ID)

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	if !b.admit(ctx, query.From.ID, chatID) {
		return
	}

	prefix, arg := splitCallback(query.Data)
	switch prefix {
	case cbFillGuestCard:
		b.handleFillGuestCard(ctx, query, chatID, arg)
	case cbBringToWork:
		b.handleBringToWork(ctx, query, chatID, arg)
	case cbSetReady:
		b.handleSetReady(ctx, query, chatID, arg)
	case cbReceived:
		b.handleReceived(ctx, query, chatID, arg)
	case cbCancelSignup:
		b.handleCancelSignup(ctx, query, chatID, arg)
	case cbShowGroups:
		b.handleShowGroupsPage(ctx, query, chatID, arg)
	case cbUsersByGroup:
		b.handleUsersByGroup(ctx, query, chatID, arg)
	case cbUserCard:
		b.handleUserCard(ctx, query, chatID, arg)
	default:
		b.logger.Warn("Unknown callback", zap.String("data", query.Data), zap.Int64("user_id", query.From.ID))
	}
}
