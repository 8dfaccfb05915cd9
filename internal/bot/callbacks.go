package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdInfo        = "info"
	cmdRun         = "run"
	cmdStop        = "stop"
	cmdReport      = "report"
	cmdAddProvider = "addprovider"

	cbDeleteConfirm = "delete_confirm"
	cbDelete        = "delete"
)

func campaignKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	data := func(action string) string { return fmt.Sprintf("%s:%d", action, id) }
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Run", data(cmdRun)),
			tgbotapi.NewInlineKeyboardButtonData("Stop", data(cmdStop)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Report", data(cmdReport)),
			tgbotapi.NewInlineKeyboardButtonData("Delete", data(cbDeleteConfirm)),
		),
	)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return
	}

	action := parts[0]
	idStr := parts[1]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	var userID int64
	var username string
	if cb.From != nil {
		userID, username = cb.From.ID, cb.From.UserName
	}
	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", userID,
		"username", username,
	)

	switch action {
	case cmdInfo:
		b.handleInfo(ctx, chatID, idStr)
	case cmdRun:
		b.handleRun(ctx, chatID, idStr)
	case cmdStop:
		b.handleStop(ctx, chatID, idStr)
	case cmdReport:
		b.handleReport(ctx, chatID, idStr)
	case cbDeleteConfirm:
		b.handleDeleteConfirm(ctx, chatID, idStr)
	case cbDelete:
		b.handleDelete(ctx, chatID, id)
	}
}
