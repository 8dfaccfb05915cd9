package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"social_monitor/internal/classifier"
	"social_monitor/internal/model"
)

const dateLayout = "2006-01-02"

// CampaignArgs holds the parsed arguments of /addcampaign.
type CampaignArgs struct {
	Network  string
	Title    string
	Keywords []string
}

// ParseCampaignArgs parses "<network> | <title> | <kw1, kw2, ...>". The
// keyword part is optional.
func ParseCampaignArgs(args string) (CampaignArgs, error) {
	parts := strings.Split(args, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return CampaignArgs{}, fmt.Errorf("usage: /addcampaign <network> | <title> | <kw1, kw2>")
	}
	network := strings.TrimSpace(parts[0])
	title := strings.TrimSpace(parts[1])
	if network == "" || strings.ContainsAny(network, " \t") {
		return CampaignArgs{}, fmt.Errorf("invalid network %q", network)
	}
	if title == "" {
		return CampaignArgs{}, fmt.Errorf("title cannot be empty")
	}
	out := CampaignArgs{Network: network, Title: title}
	if len(parts) == 3 {
		out.Keywords = splitKeywords(parts[2])
	}
	return out, nil
}

// ParseKeywordsArgs parses "<id> <kw1, kw2, ...>".
func ParseKeywordsArgs(args string) (int64, []string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 {
		return 0, nil, fmt.Errorf("usage: /keywords <id> <kw1, kw2>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid campaign ID %q", parts[0])
	}
	kws := splitKeywords(parts[1])
	if len(kws) == 0 {
		return 0, nil, fmt.Errorf("at least one keyword is required")
	}
	return id, kws, nil
}

func splitKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParseIntervalArgs extracts a campaign ID and frequency in minutes.
func ParseIntervalArgs(args string) (int64, int, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("usage: /interval <id> <minutes>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid campaign ID %q", parts[0])
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 1 || mins > 1440 {
		return 0, 0, fmt.Errorf("interval must be between 1 and 1440 minutes")
	}
	return id, mins, nil
}

// ParseLimitsArgs extracts a campaign ID, the per-channel limit and the
// channel cap.
func ParseLimitsArgs(args string) (int64, int, int, error) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("usage: /limits <id> <per_channel> <max_channels>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid campaign ID %q", parts[0])
	}
	per, err := strconv.Atoi(parts[1])
	if err != nil || per < 1 || per > 50 {
		return 0, 0, 0, fmt.Errorf("per_channel must be between 1 and 50")
	}
	maxCh, err := strconv.Atoi(parts[2])
	if err != nil || maxCh < 1 || maxCh > 200 {
		return 0, 0, 0, fmt.Errorf("max_channels must be between 1 and 200")
	}
	return id, per, maxCh, nil
}

// ParseWindowArgs parses "<id> <start> <end>" with dates as YYYY-MM-DD
// and "-" for an open bound. The end date covers the whole day.
func ParseWindowArgs(args string) (int64, *time.Time, *time.Time, error) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return 0, nil, nil, fmt.Errorf("usage: /window <id> <start|-> <end|->")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("invalid campaign ID %q", parts[0])
	}
	start, err := parseDate(parts[1])
	if err != nil {
		return 0, nil, nil, err
	}
	end, err := parseDate(parts[2])
	if err != nil {
		return 0, nil, nil, err
	}
	if end != nil {
		e := end.Add(24*time.Hour - time.Second)
		end = &e
	}
	if start != nil && end != nil && end.Before(*start) {
		return 0, nil, nil, fmt.Errorf("end date is before start date")
	}
	return id, start, end, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "-" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return &t, nil
}

// ParseAssignArgs extracts a campaign ID and a provider ID. Provider "-"
// clears the assignment.
func ParseAssignArgs(args string) (int64, *int64, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("usage: /assign <campaign_id> <provider_id|->")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid campaign ID %q", parts[0])
	}
	if parts[1] == "-" {
		return id, nil, nil
	}
	pid, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid provider ID %q", parts[1])
	}
	return id, &pid, nil
}

// ParseProviderArgs parses "<name> <type> <api_key> [model] [base_url]".
// The type is coerced to a known provider type and the base URL is
// normalized.
func ParseProviderArgs(args string) (model.AIProvider, error) {
	parts := strings.Fields(args)
	if len(parts) < 3 || len(parts) > 5 {
		return model.AIProvider{}, fmt.Errorf("usage: /addprovider <name> <type> <api_key> [model] [base_url]")
	}
	p := model.AIProvider{
		Name:     parts[0],
		Type:     model.ParseProviderType(strings.ToLower(parts[1])),
		APIKey:   parts[2],
		IsActive: true,
	}
	if len(parts) > 3 && parts[3] != "-" {
		p.Model = parts[3]
	}
	if len(parts) > 4 {
		p.BaseURL = classifier.NormalizeBaseURL(parts[4])
	}
	return p, nil
}
