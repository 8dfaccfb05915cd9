// Package bot is the Telegram operator surface: it manages campaigns and
// providers, starts and stops campaign loops, delivers reports and relays
// engine notifications.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"social_monitor/internal/config"
	"social_monitor/internal/model"
	"social_monitor/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Runner starts campaign loops.
type Runner interface {
	Start(ctx context.Context, id int64) bool
	IsRunning(id int64) bool
}

// ProviderTester sends a test request through an AI provider.
type ProviderTester interface {
	Ping(ctx context.Context, p *model.AIProvider) (string, error)
}

// Bot is the Telegram bot that handles operator commands and sends
// notifications.
type Bot struct {
	api    telegramAPI
	store  storage.Storage
	cfg    *config.Config
	runner Runner
	tester ProviderTester
	log    *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, runner Runner, tester ProviderTester, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:    api,
		store:  store,
		cfg:    cfg,
		runner: runner,
		tester: tester,
		log:    log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if from := update.CallbackQuery.From; from == nil || !b.cfg.IsUserAllowed(from.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	if cmd == cmdAddProvider {
		b.log.Debug("command", "cmd", cmd, "chat_id", chatID)
	} else {
		b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)
	}

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "campaigns":
		b.handleCampaigns(ctx, chatID)
	case cmdInfo:
		b.handleInfo(ctx, chatID, args)
	case "addcampaign":
		b.handleAddCampaign(ctx, chatID, args)
	case "keywords":
		b.handleKeywords(ctx, chatID, args)
	case "interval":
		b.handleInterval(ctx, chatID, args)
	case "limits":
		b.handleLimits(ctx, chatID, args)
	case "window":
		b.handleWindow(ctx, chatID, args)
	case "assign":
		b.handleAssign(ctx, chatID, args)
	case cmdRun:
		b.handleRun(ctx, chatID, args)
	case cmdStop:
		b.handleStop(ctx, chatID, args)
	case cmdReport:
		b.handleReport(ctx, chatID, args)
	case "delete":
		b.handleDeleteConfirm(ctx, chatID, args)
	case "providers":
		b.handleProviders(ctx, chatID)
	case cmdAddProvider:
		b.handleAddProvider(ctx, chatID, args)
	case "testprovider":
		b.handleTestProvider(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
