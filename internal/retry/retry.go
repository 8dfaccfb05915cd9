// Package retry re-submits failed classifications so that error rows heal
// on a later cycle without operator action.
package retry

import (
	"context"
	"log/slog"
	"time"

	"social_monitor/internal/classifier"
	"social_monitor/internal/model"
)

// DefaultLimit is the number of error rows re-classified per pass.
const DefaultLimit = 5

// Store is the subset of the campaign store the coordinator needs.
type Store interface {
	ListErrorResults(ctx context.Context, campaignID int64, limit int) ([]model.Result, error)
	UpdateResult(ctx context.Context, id int64, u model.ResultUpdate) error
}

// Classifier classifies one post. It never fails.
type Classifier interface {
	Classify(ctx context.Context, p *model.AIProvider, keyword, url, text string) classifier.Verdict
}

// Coordinator re-classifies the most recently checked error rows of a
// campaign.
type Coordinator struct {
	store      Store
	classifier Classifier
	limit      int
	now        func() time.Time
	log        *slog.Logger
	onHealed   func()
}

// New creates a Coordinator. A non-positive limit selects DefaultLimit.
func New(store Store, c Classifier, limit int, log *slog.Logger) *Coordinator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Coordinator{
		store:      store,
		classifier: c,
		limit:      limit,
		now:        time.Now,
		log:        log,
	}
}

// OnHealed registers a callback invoked once per healed row.
func (c *Coordinator) OnHealed(fn func()) {
	c.onHealed = fn
}

// Run re-classifies up to the configured number of error rows and returns
// how many were overwritten with a non-error verdict. Rows whose retry
// fails again are left untouched. Store errors are logged and end the
// pass early.
func (c *Coordinator) Run(ctx context.Context, campaignID int64, p *model.AIProvider, fallbackKeyword string) int {
	if p == nil {
		return 0
	}

	rows, err := c.store.ListErrorResults(ctx, campaignID, c.limit)
	if err != nil {
		c.log.Error("failed to list error results", "campaign_id", campaignID, "error", err)
		return 0
	}

	healed := 0
	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}

		keyword := r.Keyword
		if keyword == "" {
			keyword = fallbackKeyword
		}

		v := c.classifier.Classify(ctx, p, keyword, r.PostURL, r.PostText)
		if v.Result == model.AnalysisError {
			c.log.Debug("retry still failing", "campaign_id", campaignID, "result_id", r.ID)
			continue
		}

		now := c.now().UTC()
		result, score := v.Result, v.Score
		err := c.store.UpdateResult(ctx, r.ID, model.ResultUpdate{
			AnalysisResult: &result,
			AnalysisScore:  &score,
			CheckedAt:      &now,
		})
		if err != nil {
			c.log.Error("failed to update retried result", "campaign_id", campaignID, "result_id", r.ID, "error", err)
			return healed
		}

		healed++
		if c.onHealed != nil {
			c.onHealed()
		}
		c.log.Info("retried classification", "campaign_id", campaignID, "result_id", r.ID,
			"result", v.Result, "score", v.Score)
	}
	return healed
}
