package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"inspira/internal/trace"
)

// usersShown is the number of latest registrations listed by /USERS/
const usersShown = 20

// rejectNonAdmin records an attempt to use staff functions
func (b *Bot) rejectNonAdmin(ctx context.Context, userID int64, function string) {
	b.logger.Warn("Unauthorized admin access attempt",
		zap.Int64("user_id", userID),
		zap.String("function", function),
	)
	b.trace(ctx, trace.StatusWarning, userID, function, "unauthorized admin access attempt", nil)
}

// requireAdmin answers non-admins as if the command did not exist
func (b *Bot) requireAdmin(ctx context.Context, message *tgbotapi.Message, function string) bool {
	if b.isAdmin(ctx, message.From.ID) {
		return true
	}
	b.rejectNonAdmin(ctx, message.From.ID, function)
	b.reply(message.Chat.ID, textNotUnderstood, nil)
	return false
}

func (b *Bot) requireSuperuser(ctx context.Context, message *tgbotapi.Message, function string) bool {
	if b.isSuperuser(message.From.ID) {
		return true
	}
	b.rejectNonAdmin(ctx, message.From.ID, function)
	b.reply(message.Chat.ID, textNotUnderstood, nil)
	return false
}

func (b *Bot) handleAdminPanel(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "admin_panel") {
		return
	}
	b.reply(message.Chat.ID, textAdminPanel, adminPanelKeyboard())
}

func (b *Bot) handleGroups(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "groups") {
		return
	}
	text, markup, err := b.groupsPage(ctx, 0)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "groups", err)
		return
	}
	b.replyGroups(message.Chat.ID, text, markup)
}

func (b *Bot) handleCommandList(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "commands") {
		return
	}
	b.reply(message.Chat.ID, textCommands, nil)
}

func (b *Bot) handleAdminList(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "admins") {
		return
	}
	ids := b.adminIDs(ctx)
	var sb strings.Builder
	sb.WriteString("➜ <b>ADMINS</b> ➜\n\n")
	for _, id := range ids {
		role := "admin"
		if b.isSuperuser(id) {
			role = "superuser"
		}
		fmt.Fprintf(&sb, "%s – <code>%d</code> (%s)\n", b.contactOf(ctx, id), id, role)
	}
	fmt.Fprintf(&sb, "\nTOTAL: %d", len(ids))
	b.reply(message.Chat.ID, sb.String(), nil)
}

// handleUserList shows the latest registrations
func (b *Bot) handleUserList(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "users") {
		return
	}
	users, err := b.db.ListUsers(ctx)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "users", err)
		return
	}

	var sb strings.Builder
	sb.WriteString("➜ <b>USERS</b> ➜\n\n")
	shown := 0
	for i := len(users) - 1; i >= 0 && shown < usersShown; i-- {
		u := users[i]
		fmt.Fprintf(&sb, "[%d]: (%s) %s\n<code>%d</code>\n",
			u.ID, u.RegisteredAt.Format("02.01.2006"), guestContact(u), u.UserID)
		shown++
	}
	if rest := len(users) - shown; rest > 0 {
		fmt.Fprintf(&sb, "\n... and %d more\n", rest)
	}
	fmt.Fprintf(&sb, "\nTOTAL: %d", len(users))
	b.reply(message.Chat.ID, sb.String(), nil)
}

// handleLessons shows the occupancy of upcoming classes
func (b *Bot) handleLessons(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "lessons") {
		return
	}
	now := b.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	slots, err := b.db.UpcomingLessons(ctx, today)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "lessons", err)
		return
	}
	if len(slots) == 0 {
		b.reply(message.Chat.ID, "No upcoming lessons", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("➜ <b>LESSONS</b> ➜\n\n")
	for _, s := range slots {
		fmt.Fprintf(&sb, "%s %s: %d people\n", s.Date, s.Time, s.Count)
	}
	b.reply(message.Chat.ID, sb.String(), nil)
}

func (b *Bot) handleHostStats(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "pc") {
		return
	}
	if b.hostStats == nil {
		b.reply(message.Chat.ID, "Host statistics are not available", nil)
		return
	}
	report, err := b.hostStats(ctx)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "pc", err)
		return
	}
	b.reply(message.Chat.ID, report, nil)
}

func (b *Bot) handleBlock(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "block") {
		return
	}
	id, ok := parseUserID(message.CommandArguments())
	if !ok {
		b.reply(message.Chat.ID, textArgsInvalid, nil)
		return
	}
	added, err := b.db.BanUser(ctx, id)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "block", err)
		return
	}
	if !added {
		b.reply(message.Chat.ID, "➜ ALREADY BLOCKED 🟧", nil)
		return
	}
	b.trace(ctx, trace.StatusAdmin, message.From.ID, "block", fmt.Sprintf("banned %d", id), nil)
	b.reply(message.Chat.ID, fmt.Sprintf("➜ BLOCKED ✅\n\n<code>%d</code>", id), nil)
}

func (b *Bot) handleUnblock(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "unblock") {
		return
	}
	id, ok := parseUserID(message.CommandArguments())
	if !ok {
		b.reply(message.Chat.ID, textArgsInvalid, nil)
		return
	}
	removed, err := b.db.UnbanUser(ctx, id)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "unblock", err)
		return
	}
	if err := b.guard.Reset(ctx, id); err != nil {
		b.logger.Warn("Failed to reset flood state", zap.Int64("user_id", id), zap.Error(err))
	}
	if !removed {
		b.reply(message.Chat.ID, "➜ NOT BLOCKED 🟧", nil)
		return
	}
	b.trace(ctx, trace.StatusAdmin, message.From.ID, "unblock", fmt.Sprintf("unbanned %d", id), nil)
	b.reply(message.Chat.ID, fmt.Sprintf("➜ UNBLOCKED ✅\n\n<code>%d</code>", id), nil)
}

func (b *Bot) handleLimitedUsers(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "limited_users") {
		return
	}
	banned, err := b.db.ListBanned(ctx)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "limited_users", err)
		return
	}
	if len(banned) == 0 {
		b.reply(message.Chat.ID, "No blocked users", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("➜ <b>BLOCKED USERS</b> ➜\n\n")
	for _, u := range banned {
		fmt.Fprintf(&sb, "<code>%d</code> – %s\n", u.UserID, u.BannedAt.Format(trace.TimestampLayout))
	}
	b.reply(message.Chat.ID, sb.String(), nil)
}

// handleUserInfo shows the card of any user
func (b *Bot) handleUserInfo(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "i") {
		return
	}
	id, ok := parseUserID(message.CommandArguments())
	if !ok {
		b.reply(message.Chat.ID, textArgsInvalid, nil)
		return
	}

	user, err := b.db.GetUser(ctx, id)
	if isNotFound(err) {
		b.reply(message.Chat.ID, "➜ USER not exist ❌", nil)
		return
	}
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "i", err)
		return
	}
	product, err := b.db.GetProduct(ctx, id)
	if err != nil && !isNotFound(err) {
		b.fail(ctx, message.Chat.ID, message.From.ID, "i", err)
		return
	}

	var sb strings.Builder
	sb.WriteString("➜ USER CARD ➜\n\n")
	fmt.Fprintf(&sb, "%s\n<code>%d</code>\nRegistered – %s\n\n%s",
		guestContact(user), user.UserID, user.RegisteredAt.Format(trace.TimestampLayout), productCard(product))
	if banned, err := b.db.IsBanned(ctx, id); err == nil && banned {
		sb.WriteString("\n\n(BANNED ❌)")
	}
	b.reply(message.Chat.ID, sb.String(), nil)
}

func (b *Bot) handleDropUser(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "drop") {
		return
	}
	id, ok := parseUserID(message.CommandArguments())
	if !ok {
		b.reply(message.Chat.ID, textArgsInvalid, nil)
		return
	}
	err := b.db.DeleteUser(ctx, id)
	if isNotFound(err) {
		b.reply(message.Chat.ID, "➜ DROP USER: ERROR ❌ user not found", nil)
		return
	}
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "drop", err)
		return
	}
	b.trace(ctx, trace.StatusAdmin, message.From.ID, "drop", fmt.Sprintf("deleted user %d", id), nil)
	b.reply(message.Chat.ID, "➜ DROP USER: OK ✅", nil)
}

// handleSMS sends an HTML message to one user. A literal \n in the text
// becomes a line break.
func (b *Bot) handleSMS(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "sms") {
		return
	}
	idArg, text, _ := strings.Cut(strings.TrimSpace(message.CommandArguments()), " ")
	id, ok := parseUserID(idArg)
	text = strings.TrimSpace(strings.ReplaceAll(text, `\n`, "\n"))
	if !ok || text == "" {
		b.reply(message.Chat.ID, textArgsInvalid, nil)
		return
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.sendMessage(msg); err != nil {
		b.trace(ctx, trace.StatusWarning, message.From.ID, "sms", fmt.Sprintf("delivery to %d failed", id), err)
		b.reply(message.Chat.ID, "➜ FAILED ❌", nil)
		return
	}
	b.trace(ctx, trace.StatusAdmin, message.From.ID, "sms", fmt.Sprintf("message sent to %d", id), nil)
	b.reply(message.Chat.ID, "➜ DELIVERED ✅", nil)
}

// handleReferrals lists the latest arrivals with their source
func (b *Bot) handleReferrals(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "referrals") {
		return
	}
	refs, err := b.db.ListReferrals(ctx, usersShown)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "referrals", err)
		return
	}
	if len(refs) == 0 {
		b.reply(message.Chat.ID, "No referrals yet", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("➜ <b>REFERRALS</b> ➜\n\n")
	for _, r := range refs {
		fmt.Fprintf(&sb, "%s – <code>%d</code> from %s\n", r.ArrivedAt.Format("02.01.2006"), r.UserID, r.Source)
	}
	b.reply(message.Chat.ID, sb.String(), nil)
}

func (b *Bot) handleAddAdminStart(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireSuperuser(ctx, message, "add_admin") {
		return
	}
	b.sessions.Put(Session{UserID: message.From.ID, Flow: flowAddAdmin, Step: stepAdminID})
	b.reply(message.Chat.ID, "➜ Enter the user id of the new admin", nil)
}

func (b *Bot) handleDropAdmin(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireSuperuser(ctx, message, "drop_admin") {
		return
	}
	id, ok := parseUserID(message.CommandArguments())
	if !ok {
		b.reply(message.Chat.ID, textArgsInvalid, nil)
		return
	}
	removed, err := b.db.RemoveAdmin(ctx, id)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "drop_admin", err)
		return
	}
	if !removed {
		b.reply(message.Chat.ID, "[ ERROR ] ❌ not an admin", nil)
		return
	}
	b.trace(ctx, trace.StatusAdmin, message.From.ID, "drop_admin", fmt.Sprintf("revoked admin rights of %d", id), nil)
	b.reply(message.Chat.ID, "[ OK ] ✅", nil)
}

// handleReboot replaces the process after a short delay
func (b *Bot) handleReboot(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireSuperuser(ctx, message, "reboot") {
		return
	}
	if b.restart == nil {
		b.reply(message.Chat.ID, "Restart is not available", nil)
		return
	}

	delay := b.settings.RebootDelay
	b.trace(ctx, trace.StatusSystem, message.From.ID, "reboot", "restart requested", nil)
	b.reply(message.Chat.ID, fmt.Sprintf("➜ REBOOT in %s... ➜", delay), nil)

	b.jobs.Add(1)
	go func() {
		defer b.jobs.Done()
		if delay > 0 {
			time.Sleep(delay)
		}
		if err := b.restart(); err != nil {
			b.logger.Error("Restart failed", zap.Error(err))
			b.trace(context.Background(), trace.StatusCritical, message.From.ID, "reboot", "restart failed", err)
		}
	}()
}
