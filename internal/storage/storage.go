// Package storage defines the campaign store interface and its SQLite
// implementation.
package storage

import (
	"context"
	"errors"

	"social_monitor/internal/model"
)

// ErrDuplicate is returned by InsertResult when a result with the same
// post and channel already exists. Callers treat it as a no-op.
var ErrDuplicate = errors.New("duplicate result")

// Storage is the interface for all persistence operations. Lookups of a
// single record return nil and no error when the record does not exist.
type Storage interface {
	CreateAIProvider(ctx context.Context, p *model.AIProvider) error
	GetAIProvider(ctx context.Context, id int64) (*model.AIProvider, error)
	ListAIProviders(ctx context.Context) ([]model.AIProvider, error)
	// ResolveAIProvider returns the campaign's assigned provider, else the
	// first active provider, else nil.
	ResolveAIProvider(ctx context.Context, campaignID int64) (*model.AIProvider, error)

	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	ListActiveCampaigns(ctx context.Context) ([]model.Campaign, error)
	UpdateCampaign(ctx context.Context, c *model.Campaign) error
	SetCampaignStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	DeleteCampaign(ctx context.Context, id int64) error

	AddKeywords(ctx context.Context, campaignID int64, values []string) error
	GetKeywords(ctx context.Context, campaignID int64) ([]string, error)

	FindResult(ctx context.Context, postID, channelID string) (*model.Result, error)
	InsertResult(ctx context.Context, r *model.Result) error
	UpdateResult(ctx context.Context, id int64, u model.ResultUpdate) error
	ListErrorResults(ctx context.Context, campaignID int64, limit int) ([]model.Result, error)
	ListResults(ctx context.Context, campaignID int64) ([]model.Result, error)

	Close() error
}
