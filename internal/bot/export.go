package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"inspira/internal/trace"
)

var exportHeader = []string{"user_id", "full_name", "username", "phone", "registered_at", "group", "product_id", "status"}

// ExportCSV writes every user with the item state as CSV
func (b *Bot) ExportCSV(ctx context.Context) ([]byte, error) {
	users, err := b.db.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, u := range users {
		p, err := b.db.GetProduct(ctx, u.UserID)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to get product of %d: %w", u.UserID, err)
		}
		record := []string{
			strconv.FormatInt(u.UserID, 10),
			u.FullName,
			u.Username,
			u.Phone,
			u.RegisteredAt.Format(trace.TimestampLayout),
			p.Group,
			p.ProductID,
			string(p.Status),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (b *Bot) handleExport(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message, "export") {
		return
	}
	data, err := b.ExportCSV(ctx)
	if err != nil {
		b.fail(ctx, message.Chat.ID, message.From.ID, "export", err)
		return
	}

	name := fmt.Sprintf("inspira-users-%s.csv", b.now().Format("2006-01-02"))
	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileBytes{Name: name, Bytes: data})
	b.sendMessage(doc)
	b.trace(ctx, trace.StatusAdmin, message.From.ID, "export", "users exported", nil)
}
