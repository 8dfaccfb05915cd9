package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"social_monitor/internal/model"
)

// DefaultSupervisorSchedule is how often active campaigns are resumed.
const DefaultSupervisorSchedule = "@every 1m"

// CampaignLister lists the campaigns eligible to run.
type CampaignLister interface {
	ListActiveCampaigns(ctx context.Context) ([]model.Campaign, error)
}

// Starter launches a campaign loop unless it is already running.
type Starter interface {
	Start(ctx context.Context, id int64) bool
}

// Supervisor periodically starts every active campaign that is inside its
// time window and not already running.
type Supervisor struct {
	store    CampaignLister
	starter  Starter
	schedule string
	cron     *cron.Cron
	log      *slog.Logger
	now      func() time.Time
}

// NewSupervisor creates a Supervisor. An empty schedule selects
// DefaultSupervisorSchedule.
func NewSupervisor(store CampaignLister, starter Starter, schedule string, log *slog.Logger) *Supervisor {
	if schedule == "" {
		schedule = DefaultSupervisorSchedule
	}
	return &Supervisor{
		store:    store,
		starter:  starter,
		schedule: schedule,
		cron:     cron.New(),
		log:      log,
		now:      time.Now,
	}
}

// Start resumes campaigns once and then on every tick of the schedule.
// Loops started by the supervisor run under ctx.
func (s *Supervisor) Start(ctx context.Context) error {
	s.resume(ctx)

	if _, err := s.cron.AddFunc(s.schedule, func() { s.resume(ctx) }); err != nil {
		return fmt.Errorf("schedule supervisor %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info("supervisor started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (s *Supervisor) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("supervisor stopped")
}

func (s *Supervisor) resume(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	campaigns, err := s.store.ListActiveCampaigns(ctx)
	if err != nil {
		s.log.Error("failed to list active campaigns", "error", err)
		return 0
	}

	now := s.now()
	started := 0
	for i := range campaigns {
		c := &campaigns[i]
		if !c.AllowedAt(now) {
			continue
		}
		if s.starter.Start(ctx, c.ID) {
			started++
			s.log.Info("campaign resumed", "campaign_id", c.ID, "title", c.Title)
		}
	}
	if started > 0 {
		s.log.Debug("supervisor tick", "started", started, "active", len(campaigns))
	}
	return started
}
