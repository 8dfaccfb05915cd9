// Package model defines the domain types used across the application.
package model

import (
	"log/slog"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign as set by its operator.
type CampaignStatus string

// Supported campaign statuses.
const (
	StatusActive   CampaignStatus = "active"
	StatusInactive CampaignStatus = "inactive"
	StatusStopped  CampaignStatus = "stopped"
)

// Campaign is a scheduled monitoring task bound to one network, a keyword
// set and a time window.
type Campaign struct {
	ID               int64
	Title            string
	Status           CampaignStatus
	StartDate        *time.Time
	EndDate          *time.Time
	FrequencyMinutes int
	PerChannelLimit  int
	MaxChannels      int
	Network          string
	AIProviderID     *int64
	CreatedAt        time.Time
}

// AllowedAt reports whether the campaign may run at t: it must be active
// and t must fall inside [StartDate, EndDate]. Missing bounds are open.
func (c *Campaign) AllowedAt(t time.Time) bool {
	if c == nil || c.Status != StatusActive {
		return false
	}
	if c.StartDate != nil && t.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && t.After(*c.EndDate) {
		return false
	}
	return true
}

// Interval returns the pause between two cycles. Non-positive frequencies
// fall back to one minute.
func (c *Campaign) Interval() time.Duration {
	if c == nil || c.FrequencyMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(c.FrequencyMinutes) * time.Minute
}

// Keyword is a search string owned by one campaign.
type Keyword struct {
	ID         int64
	CampaignID int64
	Value      string
}

// ProviderType identifies the vendor behind an AI provider.
type ProviderType string

// Supported provider types.
const (
	ProviderOpenAI   ProviderType = "openai"
	ProviderDeepSeek ProviderType = "deepseek"
	ProviderCustom   ProviderType = "custom"
	ProviderAvalAI   ProviderType = "avalai"
)

// ParseProviderType maps free-form input to a known provider type.
// Unknown values become ProviderCustom and empty input ProviderOpenAI.
func ParseProviderType(s string) ProviderType {
	switch ProviderType(s) {
	case "":
		return ProviderOpenAI
	case ProviderOpenAI, ProviderDeepSeek, ProviderCustom, ProviderAvalAI:
		return ProviderType(s)
	}
	return ProviderCustom
}

// AIProvider is the configuration of a remote classification endpoint.
type AIProvider struct {
	ID       int64
	Name     string
	Type     ProviderType
	APIKey   string
	Model    string
	BaseURL  string
	IsActive bool
}

// LogValue keeps the API key out of log output.
func (p AIProvider) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", p.ID),
		slog.String("name", p.Name),
		slog.String("type", string(p.Type)),
		slog.String("model", p.Model),
		slog.String("base_url", p.BaseURL),
	)
}

// Analysis is the classification label stored with a result.
type Analysis string

// Supported analysis labels.
const (
	AnalysisApprove    Analysis = "approve"
	AnalysisReject     Analysis = "reject"
	AnalysisNotRelated Analysis = "not related"
	AnalysisPending    Analysis = "pending"
	AnalysisError      Analysis = "error"
)

// Candidate is a post observed during one search pass. It never outlives
// the pass that created it.
type Candidate struct {
	ChannelName string
	ChannelID   string
	Text        string
	Preview     string
	IsVideo     bool
	MemberText  string
	ViewText    string
	DateText    string
	URL         string
	PostID      string
	MemberCount int64
	ViewCount   int64
	IsReportage bool
}

// Result is a persisted, classified observation.
type Result struct {
	ID             int64
	CampaignID     int64
	Keyword        string
	ChannelName    string
	ChannelID      string
	PostURL        string
	MemberCount    int64
	ViewCount      int64
	PostDate       string
	IsVideo        bool
	AnalysisResult Analysis
	AnalysisScore  int
	IsReportage    bool
	PostText       string
	PostID         string
	CheckedAt      time.Time
}

// ResultUpdate carries the fields of a partial result update. Nil fields
// are left untouched.
type ResultUpdate struct {
	MemberCount    *int64
	ViewCount      *int64
	PostDate       *string
	AnalysisResult *Analysis
	AnalysisScore  *int
	CheckedAt      *time.Time
}
