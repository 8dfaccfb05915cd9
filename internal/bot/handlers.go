package bot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"social_monitor/internal/dedupe"
	"social_monitor/internal/model"
	"social_monitor/internal/report"
)

const defaultFrequencyMinutes = 5

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Social Monitor!

Campaigns search a network for keywords on a schedule, classify the posts they find and collect the results.

Quick start:
1. /addprovider <name> <type> <api_key> - configure an AI provider
2. /addcampaign <network> | <title> | <kw1, kw2> - create a campaign
3. /run <id> - start it

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Campaigns:
/campaigns - list campaigns
/info <id> - campaign details
/addcampaign <network> | <title> | <kw1, kw2> - create a campaign
/keywords <id> <kw1, kw2> - add keywords
/interval <id> <min> - set cycle frequency (1-1440)
/limits <id> <per_channel> <max_channels> - set channel quotas
/window <id> <start|-> <end|-> - set the active window (YYYY-MM-DD)
/assign <id> <provider_id|-> - pin an AI provider
/run <id> - activate and start now
/stop <id> - stop after the current step
/report <id> - statistics and xlsx export
/delete <id> - delete a campaign and its results

AI providers:
/providers - list providers
/addprovider <name> <type> <api_key> [model] [base_url] - add a provider
/testprovider <id> - send a test request`)
}

// loadCampaign replies with an error and returns nil when the campaign
// cannot be loaded.
func (b *Bot) loadCampaign(ctx context.Context, chatID, id int64) *model.Campaign {
	c, err := b.store.GetCampaign(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return nil
	}
	if c == nil {
		b.reply(chatID, fmt.Sprintf("Campaign #%d not found.", id))
		return nil
	}
	return c
}

func (b *Bot) handleCampaigns(ctx context.Context, chatID int64) {
	campaigns, err := b.store.ListCampaigns(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	running := make(map[int64]bool, len(campaigns))
	for _, c := range campaigns {
		running[c.ID] = b.runner.IsRunning(c.ID)
	}
	b.reply(chatID, FormatCampaignList(campaigns, running))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /info <id>")
		return
	}
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}

	keywords, _ := b.store.GetKeywords(ctx, id)
	provider, _ := b.store.ResolveAIProvider(ctx, id)
	results, _ := b.store.ListResults(ctx, id)

	msg := tgbotapi.NewMessage(chatID, FormatCampaignInfo(CampaignInfo{
		Campaign: c,
		Keywords: keywords,
		Provider: provider,
		Results:  len(results),
		Running:  b.runner.IsRunning(id),
	}))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = campaignKeyboard(id)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send campaign info", "error", err)
	}
}

func (b *Bot) handleAddCampaign(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseCampaignArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	c := &model.Campaign{
		Title:            parsed.Title,
		Network:          parsed.Network,
		Status:           model.StatusInactive,
		FrequencyMinutes: defaultFrequencyMinutes,
		PerChannelLimit:  dedupe.DefaultPerChannel,
		MaxChannels:      dedupe.DefaultChannels,
	}
	if err := b.store.CreateCampaign(ctx, c); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save campaign: %v", err))
		return
	}
	if len(parsed.Keywords) > 0 {
		if err := b.store.AddKeywords(ctx, c.ID, parsed.Keywords); err != nil {
			b.reply(chatID, fmt.Sprintf("Campaign #%d created but keywords failed: %v", c.ID, err))
			return
		}
	}

	b.log.Info("campaign created", "campaign_id", c.ID, "network", c.Network, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Campaign #%d \"%s\" created on %s with %d keyword(s).\nUse /run %d to start it.",
		c.ID, c.Title, c.Network, len(parsed.Keywords), c.ID))
}

func (b *Bot) handleKeywords(ctx context.Context, chatID int64, args string) {
	id, kws, err := ParseKeywordsArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}
	if err := b.store.AddKeywords(ctx, id, kws); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Added %d keyword(s) to #%d \"%s\".", len(kws), id, c.Title))
}

func (b *Bot) handleInterval(ctx context.Context, chatID int64, args string) {
	id, mins, err := ParseIntervalArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.updateCampaign(ctx, chatID, id, func(c *model.Campaign) string {
		c.FrequencyMinutes = mins
		return fmt.Sprintf("Campaign #%d frequency set to %d min.", id, mins)
	})
}

func (b *Bot) handleLimits(ctx context.Context, chatID int64, args string) {
	id, per, maxCh, err := ParseLimitsArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.updateCampaign(ctx, chatID, id, func(c *model.Campaign) string {
		c.PerChannelLimit = per
		c.MaxChannels = maxCh
		return fmt.Sprintf("Campaign #%d limits set to %d per channel, %d channels.", id, per, maxCh)
	})
}

func (b *Bot) handleWindow(ctx context.Context, chatID int64, args string) {
	id, start, end, err := ParseWindowArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.updateCampaign(ctx, chatID, id, func(c *model.Campaign) string {
		c.StartDate = start
		c.EndDate = end
		return fmt.Sprintf("Campaign #%d window set to %s to %s.", id, formatBound(start), formatBound(end))
	})
}

func (b *Bot) handleAssign(ctx context.Context, chatID int64, args string) {
	id, providerID, err := ParseAssignArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if providerID != nil {
		p, err := b.store.GetAIProvider(ctx, *providerID)
		if err != nil || p == nil {
			b.reply(chatID, fmt.Sprintf("Provider #%d not found.", *providerID))
			return
		}
	}
	b.updateCampaign(ctx, chatID, id, func(c *model.Campaign) string {
		c.AIProviderID = providerID
		if providerID == nil {
			return fmt.Sprintf("Campaign #%d uses the default provider.", id)
		}
		return fmt.Sprintf("Campaign #%d uses provider #%d.", id, *providerID)
	})
}

func (b *Bot) updateCampaign(ctx context.Context, chatID, id int64, apply func(c *model.Campaign) string) {
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}
	text := apply(c)
	if err := b.store.UpdateCampaign(ctx, c); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, text)
}

func (b *Bot) handleRun(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /run <id>")
		return
	}
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}
	keywords, err := b.store.GetKeywords(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(keywords) == 0 {
		b.reply(chatID, fmt.Sprintf("Campaign #%d has no keywords. Use /keywords first.", id))
		return
	}

	if err := b.store.SetCampaignStatus(ctx, id, model.StatusActive); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	c.Status = model.StatusActive

	if !c.AllowedAt(time.Now()) {
		b.reply(chatID, fmt.Sprintf("Campaign #%d is active but outside its time window. It will start when the window opens.", id))
		return
	}
	if !b.runner.Start(ctx, id) {
		b.reply(chatID, fmt.Sprintf("Campaign #%d is already running.", id))
		return
	}
	b.log.Info("campaign run requested", "campaign_id", id, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Campaign #%d \"%s\" started.", id, c.Title))
}

func (b *Bot) handleStop(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /stop <id>")
		return
	}
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}
	if err := b.store.SetCampaignStatus(ctx, id, model.StatusStopped); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.log.Info("campaign stop requested", "campaign_id", id, "chat_id", chatID)
	if b.runner.IsRunning(id) {
		b.reply(chatID, fmt.Sprintf("Campaign #%d \"%s\" will stop after its current step.", id, c.Title))
		return
	}
	b.reply(chatID, fmt.Sprintf("Campaign #%d \"%s\" stopped.", id, c.Title))
}

func (b *Bot) handleReport(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /report <id>")
		return
	}
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}
	results, err := b.store.ListResults(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, FormatSummary(c, report.Summarize(results)))
	if len(results) == 0 {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, c, results); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to build report: %v", err))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: report.Filename(c), Bytes: buf.Bytes()})
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send report", "campaign_id", id, "error", err)
		b.reply(chatID, "Failed to send the report file.")
	}
}

func (b *Bot) handleDeleteConfirm(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /delete <id>")
		return
	}
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Delete #%d \"%s\" and all its results? This cannot be undone.", id, c.Title))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete", fmt.Sprintf("%s:%d", cbDelete, id)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send delete confirmation", "error", err)
	}
}

func (b *Bot) handleDelete(ctx context.Context, chatID, id int64) {
	c := b.loadCampaign(ctx, chatID, id)
	if c == nil {
		return
	}
	if b.runner.IsRunning(id) {
		b.reply(chatID, fmt.Sprintf("Campaign #%d is running. Use /stop %d and try again once it has stopped.", id, id))
		return
	}
	if err := b.store.DeleteCampaign(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting campaign: %v", err))
		return
	}
	b.log.Info("campaign deleted", "campaign_id", id, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Campaign #%d \"%s\" deleted.", id, c.Title))
}

func (b *Bot) handleProviders(ctx context.Context, chatID int64) {
	providers, err := b.store.ListAIProviders(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatProviderList(providers))
}

func (b *Bot) handleAddProvider(ctx context.Context, chatID int64, args string) {
	p, err := ParseProviderArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.store.CreateAIProvider(ctx, &p); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save provider: %v", err))
		return
	}
	b.log.Info("ai provider created", "provider", p)
	b.reply(chatID, fmt.Sprintf("Provider #%d %s (%s) added with key %s.\nUse /testprovider %d to check it.",
		p.ID, p.Name, p.Type, MaskKey(p.APIKey), p.ID))
}

func (b *Bot) handleTestProvider(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /testprovider <id>")
		return
	}
	p, err := b.store.GetAIProvider(ctx, id)
	if err != nil || p == nil {
		b.reply(chatID, fmt.Sprintf("Provider #%d not found.", id))
		return
	}
	sample, err := b.tester.Ping(ctx, p)
	if err != nil {
		b.log.Warn("provider test failed", "provider", *p, "error", err)
		b.reply(chatID, fmt.Sprintf("Provider #%d test failed: %v", id, err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Provider #%d OK. Sample reply: %s", id, sample))
}
