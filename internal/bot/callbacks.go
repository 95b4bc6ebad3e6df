package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/models"
	"inspira/internal/storage"
	"inspira/internal/trace"
)

// groupsPerPage is the page size of the /GROUPS/ list
const groupsPerPage = 20

// handleFillGuestCard starts the admin flow that fills a guest's item
func (b *Bot) handleFillGuestCard(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, arg string) {
	adminID := query.From.ID
	if !b.isAdmin(ctx, adminID) {
		b.rejectNonAdmin(ctx, adminID, cbFillGuestCard)
		return
	}
	target, ok := parseUserID(arg)
	if !ok {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}

	b.sessions.Put(Session{UserID: adminID, Flow: flowGuestCard, Step: stepGroup, TargetUserID: target})

	text := fmt.Sprintf("PROGRESS 1/2 ➜\n\nGuest %s\nEnter the group", b.contactOf(ctx, target))
	if p, err := b.db.GetProduct(ctx, target); err == nil && p.Group != "" {
		text = fmt.Sprintf("PROGRESS 1/2 ➜\n\nGuest %s\nGroup <code>%s</code> is kept, send any text to continue",
			b.contactOf(ctx, target), p.Group)
	}
	b.reply(chatID, text, nil)
}

// advance moves the item of a guest and reports refusals to the admin
func (b *Bot) advance(ctx context.Context, chatID, actorID, target int64, handler string, status models.ProductStatus) bool {
	err := b.db.AdvanceStatus(ctx, target, status)
	switch {
	case err == nil:
		b.metrics.StatusChangesTotal.WithLabelValues(string(status)).Inc()
		return true
	case errors.Is(err, storage.ErrInvalidTransition):
		current := "unknown"
		if p, err := b.db.GetProduct(ctx, target); err == nil {
			current = p.Status.Label()
		}
		b.logger.Info("Status change refused",
			zap.Int64("user_id", target),
			zap.String("to", string(status)),
			zap.String("current", current),
		)
		b.reply(chatID, fmt.Sprintf("Status not changed ⚠\n\nThe item is: %s", current), nil)
	case errors.Is(err, storage.ErrNotFound):
		b.reply(chatID, "➜ USER not exist ❌", nil)
	default:
		b.fail(ctx, chatID, actorID, handler, err)
	}
	return false
}

func (b *Bot) handleBringToWork(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, arg string) {
	adminID := query.From.ID
	if !b.isAdmin(ctx, adminID) {
		b.rejectNonAdmin(ctx, adminID, cbBringToWork)
		return
	}
	target, ok := parseUserID(arg)
	if !ok {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}
	if !b.advance(ctx, chatID, adminID, target, cbBringToWork, models.StatusInWork) {
		return
	}

	b.trace(ctx, trace.StatusAdmin, adminID, cbBringToWork, fmt.Sprintf("item of %d taken into work", target), nil)
	card := ""
	if p, err := b.db.GetProduct(ctx, target); err == nil {
		card = productCard(p)
	}
	b.notifyAdmins(ctx, fmt.Sprintf("➜ ACCEPTED INTO WORK ⌛\n\n%s\n%s", b.contactOf(ctx, target), card),
		inlineButton("SET READY 🟡", cbSetReady, target))
	b.reply(target, textTakenIntoWork, nil)
}

func (b *Bot) handleSetReady(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, arg string) {
	adminID := query.From.ID
	if !b.isAdmin(ctx, adminID) {
		b.rejectNonAdmin(ctx, adminID, cbSetReady)
		return
	}
	target, ok := parseUserID(arg)
	if !ok {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}
	if !b.advance(ctx, chatID, adminID, target, cbSetReady, models.StatusReady) {
		return
	}

	b.trace(ctx, trace.StatusAdmin, adminID, cbSetReady, fmt.Sprintf("item of %d is ready", target), nil)
	b.notifyAdmins(ctx, fmt.Sprintf("➜ READY 🟡\n\n%s", b.contactOf(ctx, target)), nil)
	b.reply(target, textItemReady, inlineButton("I RECEIVED IT ✅", cbReceived, target))
}

// handleReceived is pressed by the guest once the item is picked up
func (b *Bot) handleReceived(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, arg string) {
	actorID := query.From.ID
	target, ok := parseUserID(arg)
	if !ok {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}
	if actorID != target && !b.isAdmin(ctx, actorID) {
		b.rejectNonAdmin(ctx, actorID, cbReceived)
		return
	}
	if !b.advance(ctx, chatID, actorID, target, cbReceived, models.StatusReceived) {
		return
	}

	group := "–"
	if p, err := b.db.GetProduct(ctx, target); err == nil && p.Group != "" {
		group = p.Group
	}
	b.trace(ctx, trace.StatusInfo, target, cbReceived, "item received", nil)
	b.notifyAdmins(ctx, fmt.Sprintf("➜ Guest %s from group <code>%s</code> confirmed receipt ✅",
		b.contactOf(ctx, target), group), nil)

	if b.settings.FeedbackURL != "" {
		b.reply(target, textThanks, tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Leave feedback", b.settings.FeedbackURL),
		)))
		return
	}
	b.reply(target, textThanks, nil)
}

func (b *Bot) handleCancelSignup(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, arg string) {
	actorID := query.From.ID
	target, ok := parseUserID(arg)
	if !ok {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}
	if actorID != target && !b.isAdmin(ctx, actorID) {
		b.rejectNonAdmin(ctx, actorID, cbCancelSignup)
		return
	}

	removed, err := b.db.CancelSignup(ctx, target)
	if err != nil {
		b.fail(ctx, chatID, actorID, cbCancelSignup, err)
		return
	}
	if !removed {
		b.reply(chatID, textNoSignup, nil)
		return
	}

	b.metrics.SignupsTotal.WithLabelValues("cancelled").Inc()
	b.trace(ctx, trace.StatusInfo, target, cbCancelSignup, "booking cancelled", nil)
	b.reply(chatID, textSignupCancel, signUpKeyboard())
	b.notifyAdmins(ctx, fmt.Sprintf("➜ Guest %s cancelled the booking 🛑", b.contactOf(ctx, target)), nil)
}

// groupsPage renders one page of group buttons
func (b *Bot) groupsPage(ctx context.Context, page int) (string, tgbotapi.InlineKeyboardMarkup, error) {
	groups, err := b.db.ListGroups(ctx)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	if len(groups) == 0 {
		return "No groups yet", tgbotapi.InlineKeyboardMarkup{}, nil
	}

	pages := (len(groups) + groupsPerPage - 1) / groupsPerPage
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start := page * groupsPerPage
	end := start + groupsPerPage
	if end > len(groups) {
		end = len(groups)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, g := range groups[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("GROUP "+g, callbackData(cbUsersByGroup, g)),
		))
	}
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅ Back", callbackData(cbShowGroups, page-1)))
	}
	if page < pages-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡", callbackData(cbShowGroups, page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	text := fmt.Sprintf("➜ <b>GROUPS</b> ➜\n\nPage %d of %d, %d groups", page+1, pages, len(groups))
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

func (b *Bot) replyGroups(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if len(markup.InlineKeyboard) == 0 {
		b.reply(chatID, text, nil)
		return
	}
	b.reply(chatID, text, markup)
}

// handleShowGroupsPage flips the group list in place
func (b *Bot) handleShowGroupsPage(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, arg string) {
	adminID := query.From.ID
	if !b.isAdmin(ctx, adminID) {
		b.rejectNonAdmin(ctx, adminID, cbShowGroups)
		return
	}
	page, err := strconv.Atoi(arg)
	if err != nil {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}

	text, markup, err := b.groupsPage(ctx, page)
	if err != nil {
		b.fail(ctx, chatID, adminID, cbShowGroups, err)
		return
	}
	if query.Message == nil || len(markup.InlineKeyboard) == 0 {
		b.replyGroups(chatID, text, markup)
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, query.Message.MessageID, text, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(edit)
}

func (b *Bot) handleUsersByGroup(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, group string) {
	adminID := query.From.ID
	if !b.isAdmin(ctx, adminID) {
		b.rejectNonAdmin(ctx, adminID, cbUsersByGroup)
		return
	}

	ids, err := b.db.ListUsersInGroup(ctx, group)
	if err != nil {
		b.fail(ctx, chatID, adminID, cbUsersByGroup, err)
		return
	}
	if len(ids) == 0 {
		b.reply(chatID, fmt.Sprintf("Group <code>%s</code> is empty", group), nil)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Guest "+b.contactOf(ctx, id), callbackData(cbUserCard, id)),
		))
	}
	b.reply(chatID, fmt.Sprintf("➜ GROUP <code>%s</code> ➜\n\n%d guests", group, len(ids)),
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleUserCard shows a guest's item with the next allowed action
func (b *Bot) handleUserCard(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, arg string) {
	adminID := query.From.ID
	if !b.isAdmin(ctx, adminID) {
		b.rejectNonAdmin(ctx, adminID, cbUserCard)
		return
	}
	target, ok := parseUserID(arg)
	if !ok {
		b.reply(chatID, textArgsInvalid, nil)
		return
	}

	product, err := b.db.GetProduct(ctx, target)
	if isNotFound(err) {
		b.reply(chatID, "➜ USER not exist ❌", nil)
		return
	}
	if err != nil {
		b.fail(ctx, chatID, adminID, cbUserCard, err)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	switch product.Status {
	case models.StatusNotStarted, models.StatusWaiting:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("BRING TO WORK ⌛", callbackData(cbBringToWork, target))))
	case models.StatusInWork:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("SET READY 🟡", callbackData(cbSetReady, target))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("FILL AGAIN ✏", callbackData(cbFillGuestCard, target))))

	b.reply(chatID, fmt.Sprintf("➜ USER CARD ➜\n\n%s\n<code>%d</code>\n\n%s",
		b.contactOf(ctx, target), target, productCard(product)), tgbotapi.NewInlineKeyboardMarkup(rows...))
}
