package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/models"
	"inspira/internal/storage"
	"inspira/internal/trace"
)

// sendMessage sends a prepared message and logs failures
func (b *Bot) sendMessage(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.api == nil {
		return tgbotapi.Message{}, nil // For testing
	}
	m, err := b.api.Send(c)
	if err != nil {
		b.logger.Warn("Failed to send message", zap.Error(err))
	}
	return m, err
}

// reply sends an HTML text with optional markup
func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	b.sendMessage(msg)
}

func (b *Bot) answerCallback(id string) {
	if b.api == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

// trace writes an audit record. Sink failures are logged only.
func (b *Bot) trace(ctx context.Context, status trace.Status, userID int64, function, message string, cause error) {
	e := trace.Entry{
		Version:   b.settings.Version,
		Timestamp: b.now(),
		Status:    status,
		UserID:    userID,
		Function:  function,
		Message:   message,
	}
	if cause != nil {
		e.Cause = cause.Error()
	}
	if err := b.tracer.Trace(ctx, e); err != nil {
		b.logger.Warn("Failed to write trace", zap.Error(err), zap.String("function", function))
	}
}

// fail reports a handler error to the log, the trace sinks and the user
func (b *Bot) fail(ctx context.Context, chatID, userID int64, handler string, err error) {
	b.logger.Error("Handler failed",
		zap.String("handler", handler),
		zap.Int64("user_id", userID),
		zap.Error(err),
	)
	b.metrics.HandlerErrorsTotal.WithLabelValues(handler).Inc()
	b.trace(ctx, trace.StatusError, userID, handler, "handler failed", err)
	b.reply(chatID, textFailure, nil)
}

func (b *Bot) isSuperuser(userID int64) bool {
	return b.superusers[userID]
}

func (b *Bot) isAdmin(ctx context.Context, userID int64) bool {
	if b.superusers[userID] {
		return true
	}
	ok, err := b.db.IsAdmin(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to check admin", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return ok
}

// adminIDs returns the stored admins together with the configured superusers
func (b *Bot) adminIDs(ctx context.Context) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	admins, err := b.db.ListAdmins(ctx)
	if err != nil {
		b.logger.Error("Failed to list admins", zap.Error(err))
	}
	for _, a := range admins {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	for id := range b.superusers {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// notifyAdmins sends the text to every admin, failures are logged
func (b *Bot) notifyAdmins(ctx context.Context, text string, markup interface{}) {
	for _, id := range b.adminIDs(ctx) {
		b.reply(id, text, markup)
	}
}

func adminRecord(userID int64, superuser bool) models.Admin {
	clearance := models.ClearanceAdmin
	if superuser {
		clearance = models.ClearanceSuperuser
	}
	return models.Admin{UserID: userID, Clearance: clearance, Active: true}
}

// guestContact describes a user for admin messages
func guestContact(u models.User) string {
	name := u.FullName
	if name == "" {
		name = "guest"
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	if u.HasPhone() {
		return fmt.Sprintf("%s (%s)", name, u.Phone)
	}
	return fmt.Sprintf("%s (id %d)", name, u.UserID)
}

// contactOf looks the user up and falls back to the bare id
func (b *Bot) contactOf(ctx context.Context, userID int64) string {
	u, err := b.db.GetUser(ctx, userID)
	if err != nil {
		return fmt.Sprintf("id %d", userID)
	}
	return guestContact(u)
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// productCard renders the item of a guest for admins
func productCard(p models.Product) string {
	group := p.Group
	if group == "" {
		group = "–"
	}
	item := p.ProductID
	if item == "" {
		item = "–"
	}
	return fmt.Sprintf("Group – <code>%s</code>\nItem – <code>%s</code>\nStatus – %s", group, item, p.Status.Label())
}

// parseUserID reads a numeric user id argument
func parseUserID(arg string) (int64, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// splitCallback splits "prefix:arg" callback data
func splitCallback(data string) (string, string) {
	prefix, arg, _ := strings.Cut(data, callbackSeparator)
	return prefix, arg
}

func callbackData(prefix string, arg interface{}) string {
	return fmt.Sprintf("%s%s%v", prefix, callbackSeparator, arg)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

// Keyboards

func guestKeyboard(hasPhone bool) tgbotapi.ReplyKeyboardMarkup {
	if !hasPhone {
		return sharePhoneKeyboard()
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCheckStatus)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSignUp)),
	)
}

func sharePhoneKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(btnSharePhone)),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func signUpKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSignUp)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCheckStatus)),
	)
}

func adminEntryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnAdmin)),
	)
}

func adminPanelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnGroups),
			tgbotapi.NewKeyboardButton(btnCommands),
			tgbotapi.NewKeyboardButton(btnAdmins),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnUsers),
			tgbotapi.NewKeyboardButton(btnLessons),
			tgbotapi.NewKeyboardButton(btnPC),
		),
	)
}

// choiceKeyboard lays out options two per row
func choiceKeyboard(options []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(options); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(options[i])}
		if i+1 < len(options) {
			row = append(row, tgbotapi.NewKeyboardButton(options[i+1]))
		}
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}

func inlineButton(text, prefix string, arg interface{}) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, callbackData(prefix, arg))),
	)
}
