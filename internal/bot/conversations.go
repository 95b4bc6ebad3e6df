package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/models"
	"inspira/internal/ticket"
	"inspira/internal/trace"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, sess Session) {
	switch sess.Flow {
	case flowRegistration:
		b.handleRegistrationConversation(ctx, message, sess)
	case flowGuestCard:
		b.handleGuestCardConversation(ctx, message, sess)
	case flowAddAdmin:
		b.handleAddAdminConversation(ctx, message, sess)
	default:
		b.sessions.Delete(sess.UserID)
	}
}

// handleRegistrationConversation walks the guest through date, time and activity
func (b *Bot) handleRegistrationConversation(ctx context.Context, message *tgbotapi.Message, sess Session) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch sess.Step {
	case stepDate:
		day, ok := b.offeredDay(text)
		if !ok {
			b.reply(chatID, textSessionInput, choiceKeyboard(b.dateOptions()))
			return
		}
		sess.Day = day
		sess.Step = stepTime
		b.sessions.Put(sess)
		b.reply(chatID, textChooseTime, choiceKeyboard(b.settings.LessonTimes))

	case stepTime:
		if !contains(b.settings.LessonTimes, text) {
			b.reply(chatID, textSessionInput, choiceKeyboard(b.settings.LessonTimes))
			return
		}
		sess.Time = text
		sess.Step = stepActivity
		b.sessions.Put(sess)
		b.reply(chatID, textChooseActivity, choiceKeyboard(b.settings.Activities))

	case stepActivity:
		if !contains(b.settings.Activities, text) {
			b.reply(chatID, textSessionInput, choiceKeyboard(b.settings.Activities))
			return
		}
		sess.Activity = text
		b.sessions.Delete(sess.UserID)
		b.completeSignup(ctx, message, sess)
	}
}

// offeredDay accepts only the dates shown on the keyboard
func (b *Bot) offeredDay(label string) (time.Time, bool) {
	day, err := ticket.ParseDateLabel(label, b.now())
	if err != nil {
		return time.Time{}, false
	}
	for _, d := range ticket.UpcomingSaturdays(b.now(), b.settings.LessonWeeks) {
		if d.Equal(day) {
			return day, true
		}
	}
	return time.Time{}, false
}

func (b *Bot) completeSignup(ctx context.Context, message *tgbotapi.Message, sess Session) {
	userID := message.From.ID
	chatID := message.Chat.ID

	result, err := b.db.SignUp(ctx, models.Appointment{
		UserID:   userID,
		Activity: sess.Activity,
		Date:     ticket.LessonDate(sess.Day),
		Time:     sess.Time,
	}, b.settings.LessonCapacity)
	if err != nil {
		b.fail(ctx, chatID, userID, "registration", err)
		return
	}

	switch result {
	case models.SignupAlreadyBooked:
		b.metrics.SignupsTotal.WithLabelValues("already_booked").Inc()
		b.reply(chatID, textAlreadyBooked, inlineButton("I WON'T COME 🛑", cbCancelSignup, userID))
		return
	case models.SignupFull:
		b.metrics.SignupsTotal.WithLabelValues("full").Inc()
		b.reply(chatID, textSlotFull, signUpKeyboard())
		return
	}
	b.metrics.SignupsTotal.WithLabelValues("booked").Inc()

	group := ticket.GroupLabel(sess.Day, sess.Time)
	if err := b.db.AssignGroup(ctx, userID, group); err != nil {
		b.logger.Error("Failed to assign lesson group", zap.Int64("user_id", userID), zap.Error(err))
	}

	b.sendTicket(ctx, chatID, userID, ticket.ForDay(sess.Day, sess.Time, sess.Activity))
	b.trace(ctx, trace.StatusInfo, userID, "registration",
		fmt.Sprintf("signed up for %s %s %s", sess.Activity, ticket.LessonDate(sess.Day), sess.Time), nil)

	b.notifyAdmins(ctx, fmt.Sprintf("➜ Guest %s signed up ✅\n\nDate – %s\nTime – %s\nActivity – %s",
		b.contactOf(ctx, userID), ticket.DateLabel(sess.Day), sess.Time, sess.Activity), nil)
}

// sendTicket sends the rendered ticket, falling back to text
func (b *Bot) sendTicket(ctx context.Context, chatID, userID int64, t ticket.Ticket) {
	caption := fmt.Sprintf("%s\n\n%s %s, %s", textTicketCaption, t.Day, t.Month, t.Time)
	if b.tickets != nil {
		png, err := b.tickets.Render(t)
		if err == nil {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "ticket.png", Bytes: png})
			photo.Caption = caption
			photo.ReplyMarkup = signUpKeyboard()
			b.sendMessage(photo)
			return
		}
		b.logger.Error("Failed to render ticket", zap.Int64("user_id", userID), zap.Error(err))
		b.trace(ctx, trace.StatusError, userID, "ticket", "ticket render failed", err)
	}
	b.reply(chatID, caption, signUpKeyboard())
}

// handleGuestCardConversation lets an admin fill the group and item number
func (b *Bot) handleGuestCardConversation(ctx context.Context, message *tgbotapi.Message, sess Session) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)
	if text == "" {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}

	switch sess.Step {
	case stepGroup:
		sess.Group = text
		product, err := b.db.GetProduct(ctx, sess.TargetUserID)
		if err == nil && product.Group != "" {
			// a guest signed up through the bot already has a lesson group
			sess.Group = product.Group
		}
		sess.Step = stepProductID
		b.sessions.Put(sess)
		b.reply(chatID, fmt.Sprintf("PROGRESS 2/2 ➜\n\nGroup – <code>%s</code>\nEnter the item number", sess.Group), nil)

	case stepProductID:
		b.sessions.Delete(sess.UserID)
		target := sess.TargetUserID

		if err := b.db.AssignGroup(ctx, target, sess.Group); err != nil {
			b.fail(ctx, chatID, sess.UserID, "fill_guest_card", err)
			return
		}
		if err := b.db.SetProductID(ctx, target, text); err != nil {
			b.fail(ctx, chatID, sess.UserID, "fill_guest_card", err)
			return
		}
		b.trace(ctx, trace.StatusAdmin, sess.UserID, "fill_guest_card",
			fmt.Sprintf("guest %d: group %s, item %s", target, sess.Group, text), nil)

		phone := "Phone confirmed ✅"
		if u, err := b.db.GetUser(ctx, target); err != nil || !u.HasPhone() {
			phone = "Phone not confirmed ⚠"
		}
		b.reply(chatID,
			fmt.Sprintf("Saved! ✅\n\nGroup – <code>%s</code>\nItem – <code>%s</code>\n\n%s", sess.Group, text, phone),
			inlineButton("BRING TO WORK ⌛", cbBringToWork, target))
	}
}

// handleAddAdminConversation waits for the id of the new admin
func (b *Bot) handleAddAdminConversation(ctx context.Context, message *tgbotapi.Message, sess Session) {
	chatID := message.Chat.ID
	id, ok := parseUserID(message.Text)
	if !ok {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}
	b.sessions.Delete(sess.UserID)

	if err := b.db.AddAdmin(ctx, adminRecord(id, false)); err != nil {
		b.fail(ctx, chatID, sess.UserID, "add_admin", err)
		return
	}
	b.trace(ctx, trace.StatusAdmin, sess.UserID, "add_admin", fmt.Sprintf("granted admin rights to %d", id), nil)
	b.reply(chatID, fmt.Sprintf("[ OK ] ✅\n\n<code>%d</code> is an admin now", id), adminPanelKeyboard())
	b.reply(id, "You have been granted admin rights 🔑\n\nPress /inspira to open the panel.", nil)
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
