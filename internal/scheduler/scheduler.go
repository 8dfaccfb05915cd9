// Package scheduler runs campaign loops: one sequential loop per campaign,
// gated on the campaign window and paced by its frequency.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"social_monitor/internal/automation"
	"social_monitor/internal/classifier"
	"social_monitor/internal/dedupe"
	"social_monitor/internal/metrics"
	"social_monitor/internal/model"
	"social_monitor/internal/normalize"
	"social_monitor/internal/retry"
	"social_monitor/internal/similarity"
	"social_monitor/internal/storage"
)

// DefaultLoginBackoff is the pause before re-checking a session that
// requires login.
const DefaultLoginBackoff = 60 * time.Second

// DefaultFailureNotifyInterval is the minimum gap between two identical
// failure notices for one campaign.
const DefaultFailureNotifyInterval = time.Hour

// Notifier is the interface for sending operator messages.
type Notifier interface {
	SendMessage(chatID int64, text string)
}

// Classifier classifies one post. It never fails.
type Classifier interface {
	Classify(ctx context.Context, p *model.AIProvider, keyword, url, text string) classifier.Verdict
}

// Options tune a Scheduler. Zero values select the defaults.
type Options struct {
	SimilarityThreshold float64
	RetryLimit          int
	LoginBackoff        time.Duration
	Notifier            Notifier
	AdminChatID         int64
	Metrics             *metrics.Metrics
	// FailureNotifyInterval mutes a repeated failure notice for a campaign
	// that keeps failing with the same error on every supervisor restart.
	FailureNotifyInterval time.Duration
}

// Scheduler executes campaigns.
type Scheduler struct {
	store        storage.Storage
	launcher     automation.Launcher
	classifier   Classifier
	registry     *Registry
	retry        *retry.Coordinator
	resolver     *dedupe.Resolver
	clusterer    *similarity.Clusterer
	metrics      *metrics.Metrics
	notifier     Notifier
	adminChatID  int64
	loginBackoff time.Duration
	log          *slog.Logger

	failMu       sync.Mutex
	failures     map[int64]failureNote
	failInterval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	wg sync.WaitGroup
}

// New creates a Scheduler.
func New(store storage.Storage, launcher automation.Launcher, cl Classifier, registry *Registry, log *slog.Logger, opts Options) *Scheduler {
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.LoginBackoff <= 0 {
		opts.LoginBackoff = DefaultLoginBackoff
	}
	if opts.FailureNotifyInterval <= 0 {
		opts.FailureNotifyInterval = DefaultFailureNotifyInterval
	}

	s := &Scheduler{
		store:        store,
		launcher:     launcher,
		classifier:   cl,
		registry:     registry,
		retry:        retry.New(store, cl, opts.RetryLimit, log),
		resolver:     dedupe.NewResolver(store),
		clusterer:    similarity.New(opts.SimilarityThreshold),
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		adminChatID:  opts.AdminChatID,
		loginBackoff: opts.LoginBackoff,
		log:          log,
		failures:     make(map[int64]failureNote),
		failInterval: opts.FailureNotifyInterval,
		now:          time.Now,
		sleep:        sleepContext,
	}
	s.retry.OnHealed(s.metrics.RetryHealed)
	return s
}

// Registry returns the running-campaign registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// IsRunning reports whether the campaign owns a running loop.
func (s *Scheduler) IsRunning(id int64) bool {
	return s.registry.IsRunning(id)
}

// Run executes the campaign loop in the calling goroutine until the
// campaign stops, ctx is cancelled or a fatal error occurs. It returns nil
// immediately when the campaign is already running.
func (s *Scheduler) Run(ctx context.Context, id int64) error {
	if !s.acquire(id) {
		s.log.Debug("campaign already running", "campaign_id", id)
		return nil
	}
	defer s.release(id)
	return s.execute(ctx, id)
}

// Start launches the campaign loop in a new goroutine. It reports false
// when the campaign is already running.
func (s *Scheduler) Start(ctx context.Context, id int64) bool {
	if !s.acquire(id) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(id)
		_ = s.execute(ctx, id)
	}()
	return true
}

// Wait blocks until every loop launched by Start has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) acquire(id int64) bool {
	if !s.registry.TryAcquire(id) {
		return false
	}
	s.metrics.SetRunning(len(s.registry.Running()))
	return true
}

func (s *Scheduler) release(id int64) {
	s.registry.Release(id)
	s.metrics.SetRunning(len(s.registry.Running()))
}

func (s *Scheduler) execute(ctx context.Context, id int64) (err error) {
	log := s.log.With("campaign_id", id, "run_id", uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			log.Error("campaign failed", "error", err)
			if s.failureNoticeDue(id, err.Error()) {
				s.notify(fmt.Sprintf("Campaign %d failed: %v", id, err))
			} else {
				log.Debug("failure notice muted", "interval", s.failInterval)
			}
			return
		}
		s.clearFailure(id)
	}()

	sess, err := s.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("close session", "error", cerr)
		}
	}()

	log.Info("campaign started")
	reason, err := s.loop(ctx, log, id, sess)
	if err != nil && ctx.Err() != nil {
		reason, err = "cancelled", nil
	}
	if err != nil {
		return err
	}
	log.Info("campaign stopped", "reason", reason)
	return nil
}

// loop runs cycles until the campaign may no longer run. It returns the
// stop reason, or an error that ends the campaign.
func (s *Scheduler) loop(ctx context.Context, log *slog.Logger, id int64, sess automation.Session) (string, error) {
	for {
		if ctx.Err() != nil {
			return "cancelled", nil
		}

		campaign, reason, err := s.loadAllowed(ctx, id)
		if err != nil || reason != "" {
			return reason, err
		}

		keywords, err := s.store.GetKeywords(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load keywords: %w", err)
		}
		if len(keywords) == 0 {
			return "no keywords", nil
		}

		provider, err := s.store.ResolveAIProvider(ctx, id)
		if err != nil {
			return "", fmt.Errorf("resolve provider: %w", err)
		}
		if provider == nil {
			log.Warn("no ai provider configured, results stay pending")
		}

		s.metrics.CycleStarted(id)
		log.Info("campaign cycle started", "keywords", len(keywords), "network", campaign.Network)

		s.retry.Run(ctx, id, provider, keywords[0])

		ready, err := s.prepare(ctx, log, sess, campaign)
		if err != nil {
			return "", err
		}
		if !ready {
			if s.sleep(ctx, s.loginBackoff) != nil {
				return "cancelled", nil
			}
			continue
		}

		for _, kw := range keywords {
			if ctx.Err() != nil {
				return "cancelled", nil
			}
			current, reason, err := s.loadAllowed(ctx, id)
			if err != nil {
				return "", err
			}
			if reason != "" {
				break
			}
			if err := s.searchKeyword(ctx, log.With("keyword", kw), sess, current, provider, kw); err != nil {
				if automation.IsTransient(err) {
					log.Warn("keyword search interrupted", "keyword", kw, "error", err)
				} else {
					log.Error("keyword search failed", "keyword", kw, "error", err)
				}
			}
		}

		refreshed, reason, err := s.loadAllowed(ctx, id)
		if err != nil || reason != "" {
			return reason, err
		}
		wait := refreshed.Interval()
		log.Info("waiting for next cycle", "wait", wait)
		if s.sleep(ctx, wait) != nil {
			return "cancelled", nil
		}
	}
}

// loadAllowed reloads the campaign and returns a non-empty reason when it
// may not run now.
func (s *Scheduler) loadAllowed(ctx context.Context, id int64) (*model.Campaign, string, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("load campaign: %w", err)
	}
	now := s.now()
	switch {
	case c == nil:
		return nil, "campaign not found", nil
	case c.Status != model.StatusActive:
		return c, "status " + string(c.Status), nil
	case !c.AllowedAt(now):
		return c, "outside time window", nil
	}
	return c, "", nil
}

// prepare re-establishes the automation session. It reports false when
// the cycle must wait for a login or for a transient failure to clear.
func (s *Scheduler) prepare(ctx context.Context, log *slog.Logger, sess automation.Session, c *model.Campaign) (bool, error) {
	if err := sess.EnsureSession(ctx, c.Network); err != nil {
		if automation.IsTransient(err) {
			log.Warn("session not ready", "error", err)
			return false, nil
		}
		return false, fmt.Errorf("ensure session: %w", err)
	}

	login, err := sess.IsLoginRequired(ctx)
	if err != nil {
		if automation.IsTransient(err) {
			log.Warn("login check interrupted", "error", err)
			return false, nil
		}
		return false, fmt.Errorf("check login: %w", err)
	}
	if login {
		log.Warn("login required", "network", c.Network, "backoff", s.loginBackoff)
		s.notify(fmt.Sprintf("Campaign %d (%s): login required on %s", c.ID, c.Title, c.Network))
		return false, nil
	}
	return true, nil
}

// searchKeyword runs one search-and-collect pass and persists the new
// candidates it yields.
func (s *Scheduler) searchKeyword(ctx context.Context, log *slog.Logger, sess automation.Session,
	c *model.Campaign, provider *model.AIProvider, keyword string) error {
	log.Info("searching keyword")

	if err := sess.Search(ctx, keyword); err != nil {
		return fmt.Errorf("search: %w", err)
	}

	limits := dedupe.LimitsFor(c)
	items, err := sess.ListCandidates(ctx, limits.MaxResults())
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}

	tracker := dedupe.NewTracker(limits)
	var collected []model.Candidate
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if cand, ok := s.collect(ctx, log, sess, tracker, item, keyword); ok {
			collected = append(collected, cand)
		}
	}

	s.clusterer.Flag(collected)

	for i := range collected {
		if ctx.Err() != nil {
			break
		}
		s.persist(ctx, log, c.ID, provider, keyword, &collected[i])
	}
	return nil
}

// collect opens one listing entry and decides whether it becomes a new
// candidate of this pass.
func (s *Scheduler) collect(ctx context.Context, log *slog.Logger, sess automation.Session,
	tracker *dedupe.Tracker, item automation.RawItem, keyword string) (model.Candidate, bool) {
	if item.Preview != "" && !normalize.Contains(item.Preview, keyword) {
		s.skip(log, dedupe.SkipKeywordMismatch, "ref", item.Ref)
		return model.Candidate{}, false
	}

	ext, err := sess.Open(ctx, item)
	if err != nil {
		if automation.IsTransient(err) {
			log.Warn("failed to open candidate", "ref", item.Ref, "error", err)
		} else {
			log.Error("failed to open candidate", "ref", item.Ref, "error", err)
		}
		return model.Candidate{}, false
	}

	channelID := dedupe.ChannelID(ext.ChannelID, ext.ChannelName)
	if ok, reason := tracker.Admit(channelID); !ok {
		s.skip(log, reason, "channel_id", channelID)
		return model.Candidate{}, false
	}

	name := ext.ChannelName
	if name == "" {
		name = "Unknown"
	}
	text := dedupe.PostText(ext.Text, item.Preview)
	cand := model.Candidate{
		ChannelName: name,
		ChannelID:   channelID,
		Text:        text,
		Preview:     item.Preview,
		IsVideo:     ext.IsVideo,
		MemberText:  ext.MemberText,
		ViewText:    ext.ViewText,
		DateText:    ext.DateText,
		URL:         ext.URL,
		PostID:      dedupe.PostID(ext.NativeID, channelID, ext.URL, text),
		MemberCount: normalize.ParseNumber(ext.MemberText),
		ViewCount:   normalize.ParseNumber(ext.ViewText),
	}

	outcome, err := s.resolver.Resolve(ctx, &cand)
	if err != nil {
		log.Error("failed to resolve candidate", "post_id", cand.PostID, "error", err)
		return model.Candidate{}, false
	}
	switch outcome {
	case dedupe.OutcomeMerged:
		log.Info("candidate merged", "post_id", cand.PostID, "channel_id", channelID)
		return model.Candidate{}, false
	case dedupe.OutcomeUnchanged:
		s.skip(log, dedupe.SkipDuplicate, "post_id", cand.PostID)
		return model.Candidate{}, false
	}
	return cand, true
}

func (s *Scheduler) persist(ctx context.Context, log *slog.Logger, campaignID int64,
	provider *model.AIProvider, keyword string, c *model.Candidate) {
	v := s.classifier.Classify(ctx, provider, keyword, c.URL, c.Text)
	s.metrics.Classified(string(v.Result))
	log.Info("classified", "post_id", c.PostID, "result", v.Result, "score", v.Score)

	r := model.Result{
		CampaignID:     campaignID,
		Keyword:        keyword,
		ChannelName:    c.ChannelName,
		ChannelID:      c.ChannelID,
		PostURL:        c.URL,
		MemberCount:    c.MemberCount,
		ViewCount:      c.ViewCount,
		PostDate:       c.DateText,
		IsVideo:        c.IsVideo,
		AnalysisResult: v.Result,
		AnalysisScore:  v.Score,
		IsReportage:    c.IsReportage,
		PostText:       c.Text,
		PostID:         c.PostID,
		CheckedAt:      s.now().UTC(),
	}
	err := s.store.InsertResult(ctx, &r)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		s.skip(log, dedupe.SkipDuplicate, "post_id", c.PostID)
	case err != nil:
		log.Error("failed to save result", "post_id", c.PostID, "error", err)
	default:
		s.metrics.ResultSaved()
		log.Info("result saved", "result_id", r.ID, "url", c.URL, "result", v.Result)
	}
}

func (s *Scheduler) skip(log *slog.Logger, reason dedupe.SkipReason, args ...any) {
	s.metrics.CandidateSkipped(string(reason))
	log.Info("candidate skipped", append([]any{"reason", reason}, args...)...)
}

func (s *Scheduler) notify(text string) {
	if s.notifier == nil || s.adminChatID == 0 {
		return
	}
	s.notifier.SendMessage(s.adminChatID, text)
}

type failureNote struct {
	text string
	at   time.Time
}

// failureNoticeDue reports whether a failure with text should reach the
// operator. The same text for the same campaign is muted for failInterval.
func (s *Scheduler) failureNoticeDue(id int64, text string) bool {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	now := s.now()
	if last, ok := s.failures[id]; ok && last.text == text && now.Sub(last.at) < s.failInterval {
		return false
	}
	s.failures[id] = failureNote{text: text, at: now}
	return true
}

func (s *Scheduler) clearFailure(id int64) {
	s.failMu.Lock()
	delete(s.failures, id)
	s.failMu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
