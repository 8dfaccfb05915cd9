package bot

import (
	"fmt"
	"strings"
	"time"

	"social_monitor/internal/model"
	"social_monitor/internal/report"
)

const (
	statusRunning = "running"
	statusIdle    = "idle"
)

var analysisLabels = []model.Analysis{
	model.AnalysisApprove,
	model.AnalysisReject,
	model.AnalysisNotRelated,
	model.AnalysisPending,
	model.AnalysisError,
}

// FormatCampaignList formats campaigns for display.
func FormatCampaignList(campaigns []model.Campaign, running map[int64]bool) string {
	if len(campaigns) == 0 {
		return "There are no campaigns yet. Use /addcampaign to create one."
	}
	var b strings.Builder
	b.WriteString("Campaigns:\n")
	for _, c := range campaigns {
		state := statusIdle
		if running[c.ID] {
			state = statusRunning
		}
		fmt.Fprintf(&b, "\n#%d %s [%s, %s]\n", c.ID, c.Title, c.Status, state)
		fmt.Fprintf(&b, "   %s, every %d min\n", c.Network, frequency(&c))
	}
	return b.String()
}

// CampaignInfo is everything /info shows about a campaign.
type CampaignInfo struct {
	Campaign *model.Campaign
	Keywords []string
	Provider *model.AIProvider
	Results  int
	Running  bool
}

// FormatCampaignInfo formats detailed information about a single campaign.
func FormatCampaignInfo(info CampaignInfo) string {
	c := info.Campaign
	state := statusIdle
	if info.Running {
		state = statusRunning
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s, %s]\n", c.ID, c.Title, c.Status, state)
	fmt.Fprintf(&b, "Network: %s\n", c.Network)
	fmt.Fprintf(&b, "Frequency: every %d min\n", frequency(c))
	fmt.Fprintf(&b, "Limits: %d per channel, %d channels\n", c.PerChannelLimit, c.MaxChannels)
	fmt.Fprintf(&b, "Window: %s to %s\n", formatBound(c.StartDate), formatBound(c.EndDate))
	if info.Provider != nil {
		fmt.Fprintf(&b, "AI provider: #%d %s (%s)\n", info.Provider.ID, info.Provider.Name, info.Provider.Type)
	} else {
		b.WriteString("AI provider: none\n")
	}
	fmt.Fprintf(&b, "Results: %d\n", info.Results)
	if len(info.Keywords) == 0 {
		b.WriteString("\nNo keywords. Use /keywords to add some.")
	} else {
		fmt.Fprintf(&b, "\nKeywords: %s", strings.Join(info.Keywords, ", "))
	}
	return b.String()
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.Format(dateLayout)
}

func frequency(c *model.Campaign) int {
	return int(c.Interval().Minutes())
}

// FormatSummary formats report statistics of a campaign.
func FormatSummary(c *model.Campaign, s report.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report for #%d %s\n", c.ID, c.Title)
	fmt.Fprintf(&b, "Total results: %d (reportage %d, video %d)\n", s.Total, s.Reportage, s.Videos)
	if s.Total == 0 {
		return b.String()
	}

	b.WriteString("\nAnalysis:\n")
	for _, a := range analysisLabels {
		if n := s.ByAnalysis[a]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", a, n)
		}
	}

	b.WriteString("\nKeywords:\n")
	for _, k := range s.Keywords {
		fmt.Fprintf(&b, "  %s: %d results, %d channels\n", k.Keyword, k.Results, k.Channels)
	}

	b.WriteString("\nTop channels:\n")
	for i, ch := range s.Channels {
		if i == 10 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(s.Channels)-i)
			break
		}
		fmt.Fprintf(&b, "  %s (%s): %d\n", ch.ChannelName, ch.ChannelID, ch.Results)
	}
	return b.String()
}

// FormatProviderList formats AI providers without revealing their keys.
func FormatProviderList(providers []model.AIProvider) string {
	if len(providers) == 0 {
		return "No AI providers configured. Use /addprovider to add one."
	}
	var b strings.Builder
	b.WriteString("AI providers:\n")
	for _, p := range providers {
		state := "active"
		if !p.IsActive {
			state = "inactive"
		}
		fmt.Fprintf(&b, "\n#%d %s [%s, %s]\n", p.ID, p.Name, p.Type, state)
		fmt.Fprintf(&b, "   key %s", MaskKey(p.APIKey))
		if p.Model != "" {
			fmt.Fprintf(&b, ", model %s", p.Model)
		}
		if p.BaseURL != "" {
			fmt.Fprintf(&b, ", %s", p.BaseURL)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// MaskKey keeps the last four characters of an API key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
