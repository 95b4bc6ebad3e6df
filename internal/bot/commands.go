package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/models"
	"inspira/internal/ticket"
	"inspira/internal/trace"
)

// handleStart registers the guest and shows the main keyboard
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	created, err := b.db.EnsureUser(ctx, models.User{
		UserID:   userID,
		FullName: fullName(message.From),
		Username: message.From.UserName,
	})
	if err != nil {
		b.fail(ctx, chatID, userID, "start", err)
		return
	}
	b.trace(ctx, trace.StatusInfo, userID, "start", "user launched the bot", nil)

	if created {
		b.logger.Info("New guest registered", zap.Int64("user_id", userID))
		b.trace(ctx, trace.StatusAdmin, userID, "start", "new guest registered", nil)
		text := fmt.Sprintf("➜ <b>NEW GUEST</b> ➜\n\n%s\n<code>%d</code>",
			guestContact(models.User{UserID: userID, FullName: fullName(message.From), Username: message.From.UserName}),
			userID)
		b.notifyAdmins(ctx, text, inlineButton("Add to a group", cbFillGuestCard, userID))
	}

	if source := referralSource(message); source != "" {
		added, err := b.db.AddReferral(ctx, userID, source)
		if err != nil {
			b.logger.Error("Failed to save referral", zap.Int64("user_id", userID), zap.Error(err))
		} else if added {
			b.trace(ctx, trace.StatusInfo, userID, "start", "arrived from "+source, nil)
		}
	}

	if b.isAdmin(ctx, userID) {
		b.reply(chatID, textWelcome, adminEntryKeyboard())
		return
	}

	user, err := b.db.GetUser(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, userID, "start", err)
		return
	}
	b.reply(chatID, textWelcome, guestKeyboard(user.HasPhone()))
}

// referralSource returns the deep link payload of /start
func referralSource(message *tgbotapi.Message) string {
	if !message.IsCommand() {
		return ""
	}
	fields := strings.Fields(message.CommandArguments())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	var row []tgbotapi.InlineKeyboardButton
	if b.settings.SupportURL != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("Support", b.settings.SupportURL))
	}
	if b.settings.SiteURL != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("Site", b.settings.SiteURL))
	}
	if len(row) == 0 {
		b.reply(message.Chat.ID, textHelp, nil)
		return
	}
	b.reply(message.Chat.ID, textHelp, tgbotapi.NewInlineKeyboardMarkup(row))
}

func (b *Bot) askPhone(chatID int64) {
	b.reply(chatID, textAskPhone, sharePhoneKeyboard())
}

// handleContact stores the phone number shared by the guest
func (b *Bot) handleContact(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID
	contact := message.Contact

	if contact.UserID != 0 && contact.UserID != userID {
		b.reply(chatID, textForeignContact, sharePhoneKeyboard())
		return
	}

	if _, err := b.db.EnsureUser(ctx, models.User{
		UserID:   userID,
		FullName: fullName(message.From),
		Username: message.From.UserName,
	}); err != nil {
		b.fail(ctx, chatID, userID, "contact", err)
		return
	}
	if err := b.db.UpdatePhone(ctx, userID, contact.PhoneNumber); err != nil {
		b.fail(ctx, chatID, userID, "contact", err)
		return
	}

	b.trace(ctx, trace.StatusInfo, userID, "contact", "phone number confirmed", nil)
	b.reply(chatID, textPhoneSaved, signUpKeyboard())
}

// handleStatus tells the guest where the item is
func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	user, err := b.db.GetUser(ctx, userID)
	if isNotFound(err) || (err == nil && !user.HasPhone()) {
		b.askPhone(chatID)
		return
	}
	if err != nil {
		b.fail(ctx, chatID, userID, "status", err)
		return
	}

	product, err := b.db.GetProduct(ctx, userID)
	if err != nil && !isNotFound(err) {
		b.fail(ctx, chatID, userID, "status", err)
		return
	}

	switch product.Status {
	case models.StatusInWork:
		b.reply(chatID, textStatusWork, nil)
	case models.StatusReady:
		b.reply(chatID, textStatusDone, inlineButton("I RECEIVED IT ✅", cbReceived, userID))
	case models.StatusReceived:
		b.reply(chatID, textStatusReceived, nil)
	case models.StatusWaiting:
		b.reply(chatID, textStatusWait, nil)
	default:
		b.reply(chatID, textStatusUnknown, nil)
	}
}

// handleRegistrationStart opens the class sign-up conversation
func (b *Bot) handleRegistrationStart(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	user, err := b.db.GetUser(ctx, userID)
	if isNotFound(err) || (err == nil && !user.HasPhone()) {
		b.askPhone(chatID)
		return
	}
	if err != nil {
		b.fail(ctx, chatID, userID, "registration", err)
		return
	}

	b.sessions.Put(Session{UserID: userID, Flow: flowRegistration, Step: stepDate})
	b.reply(chatID, textChooseDate, choiceKeyboard(b.dateOptions()))
}

// dateOptions lists the upcoming Saturdays as button labels
func (b *Bot) dateOptions() []string {
	days := ticket.UpcomingSaturdays(b.now(), b.settings.LessonWeeks)
	labels := make([]string, len(days))
	for i, d := range days {
		labels[i] = ticket.DateLabel(d)
	}
	return labels
}
