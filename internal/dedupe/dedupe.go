// Package dedupe enforces per-pass channel quotas and keeps persisted
// results idempotent across repeated observations of the same post.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
	"unicode/utf8"

	"social_monitor/internal/model"
)

// Quota bounds and defaults.
const (
	DefaultPerChannel = 3
	MaxPerChannel     = 50
	DefaultChannels   = 20
	MaxChannels       = 200
	MaxResults        = 200

	minDetailText = 20
)

// Limits are the effective quotas of one search pass.
type Limits struct {
	PerChannel  int
	MaxChannels int
}

// NewLimits clamps the campaign settings. Zero or negative values select
// the defaults.
func NewLimits(perChannel, maxChannels int) Limits {
	return Limits{
		PerChannel:  clamp(perChannel, DefaultPerChannel, MaxPerChannel),
		MaxChannels: clamp(maxChannels, DefaultChannels, MaxChannels),
	}
}

// LimitsFor returns the limits configured on c.
func LimitsFor(c *model.Campaign) Limits {
	return NewLimits(c.PerChannelLimit, c.MaxChannels)
}

// MaxResults is the number of listing entries worth inspecting.
func (l Limits) MaxResults() int {
	return min(MaxResults, l.PerChannel*l.MaxChannels)
}

func clamp(v, def, hi int) int {
	if v <= 0 {
		return def
	}
	return min(v, hi)
}

// SkipReason explains why a candidate was not admitted.
type SkipReason string

// Skip reasons emitted in logs and metrics.
const (
	SkipNone            SkipReason = ""
	SkipKeywordMismatch SkipReason = "keyword_mismatch"
	SkipChannelCap      SkipReason = "channel_cap"
	SkipChannelQuota    SkipReason = "channel_quota"
	SkipDuplicate       SkipReason = "duplicate"
)

// Tracker counts admitted candidates per channel within one pass.
type Tracker struct {
	limits Limits
	counts map[string]int
}

// NewTracker returns an empty tracker for one search pass.
func NewTracker(l Limits) *Tracker {
	return &Tracker{limits: l, counts: make(map[string]int)}
}

// Admit decides whether a candidate from channelID fits the quotas and
// records it when it does. Once MaxChannels distinct channels have been
// admitted new channels are rejected; known channels stay eligible until
// their own quota is used up.
func (t *Tracker) Admit(channelID string) (bool, SkipReason) {
	n, seen := t.counts[channelID]
	if !seen && len(t.counts) >= t.limits.MaxChannels {
		return false, SkipChannelCap
	}
	if n >= t.limits.PerChannel {
		return false, SkipChannelQuota
	}
	t.counts[channelID] = n + 1
	return true, SkipNone
}

// Channels returns the number of distinct admitted channels.
func (t *Tracker) Channels() int { return len(t.counts) }

// Count returns the number of candidates admitted for channelID.
func (t *Tracker) Count(channelID string) int { return t.counts[channelID] }

// ChannelID returns a stable channel identifier, falling back to the
// channel name and finally to "unknown".
func ChannelID(id, name string) string {
	switch {
	case id != "":
		return id
	case name != "":
		return "name:" + name
	default:
		return "unknown"
	}
}

// PostID returns the source's native id when present, otherwise a
// fingerprint over channel id, url and text in that order.
func PostID(native, channelID, url, text string) string {
	if native != "" {
		return native
	}
	h := sha256.Sum256([]byte(channelID + "|" + url + "|" + text))
	return hex.EncodeToString(h[:])
}

// PostText prefers the text extracted from the opened post and falls back
// to the listing preview when the extraction looks incomplete.
func PostText(extracted, preview string) string {
	if extracted == "" || utf8.RuneCountInString(extracted) < minDetailText {
		if preview != "" {
			return preview
		}
	}
	return extracted
}

// Store is the part of the campaign store the resolver needs.
type Store interface {
	FindResult(ctx context.Context, postID, channelID string) (*model.Result, error)
	UpdateResult(ctx context.Context, id int64, upd model.ResultUpdate) error
}

// Outcome is the result of resolving a candidate against stored results.
type Outcome int

// Resolution outcomes.
const (
	// OutcomeNew means the post is unknown and must be classified.
	OutcomeNew Outcome = iota
	// OutcomeMerged means a stored result was improved in place.
	OutcomeMerged
	// OutcomeUnchanged means a stored result exists and nothing improved.
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeMerged:
		return "merged"
	case OutcomeUnchanged:
		return "unchanged"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Resolver checks candidates against previously stored results.
type Resolver struct {
	store Store
	now   func() time.Time
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// Resolve looks up the stored result for the candidate's (post id,
// channel id). Known posts are never re-classified; their counters are
// merged instead.
func (r *Resolver) Resolve(ctx context.Context, c *model.Candidate) (Outcome, error) {
	existing, err := r.store.FindResult(ctx, c.PostID, c.ChannelID)
	if err != nil {
		return OutcomeNew, fmt.Errorf("find result: %w", err)
	}
	if existing == nil {
		return OutcomeNew, nil
	}

	upd, ok := MergeUpdate(existing, c, r.now().UTC())
	if !ok {
		return OutcomeUnchanged, nil
	}
	if err := r.store.UpdateResult(ctx, existing.ID, upd); err != nil {
		return OutcomeUnchanged, fmt.Errorf("update result: %w", err)
	}
	return OutcomeMerged, nil
}

// MergeUpdate builds the update for a re-observed post. It reports false
// when the observation adds nothing: a stored zero counter must become
// positive or an empty post date must be filled. Counters never decrease.
func MergeUpdate(existing *model.Result, c *model.Candidate, now time.Time) (model.ResultUpdate, bool) {
	improves := (existing.MemberCount == 0 && c.MemberCount > 0) ||
		(existing.ViewCount == 0 && c.ViewCount > 0) ||
		(existing.PostDate == "" && c.DateText != "")
	if !improves {
		return model.ResultUpdate{}, false
	}

	members := max(existing.MemberCount, c.MemberCount)
	views := max(existing.ViewCount, c.ViewCount)
	date := existing.PostDate
	if date == "" {
		date = c.DateText
	}
	return model.ResultUpdate{
		MemberCount: &members,
		ViewCount:   &views,
		PostDate:    &date,
		CheckedAt:   &now,
	}, true
}
