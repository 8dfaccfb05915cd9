package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"social_monitor/internal/model"
)

type fakeLister struct {
	campaigns []model.Campaign
	err       error
}

func (f *fakeLister) ListActiveCampaigns(_ context.Context) ([]model.Campaign, error) {
	return f.campaigns, f.err
}

type fakeStarter struct {
	mu      sync.Mutex
	running map[int64]bool
	started []int64
}

func (f *fakeStarter) Start(_ context.Context, id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[id] {
		return false
	}
	f.started = append(f.started, id)
	return true
}

func (f *fakeStarter) getStarted() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.started...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSupervisorResume(t *testing.T) {
	later := testNow.Add(time.Hour)
	earlier := testNow.Add(-time.Hour)

	lister := &fakeLister{campaigns: []model.Campaign{
		{ID: 1, Status: model.StatusActive},
		{ID: 2, Status: model.StatusActive, StartDate: &later},
		{ID: 3, Status: model.StatusActive, EndDate: &earlier},
		{ID: 4, Status: model.StatusActive},
		{ID: 5, Status: model.StatusActive, StartDate: &earlier, EndDate: &later},
	}}
	starter := &fakeStarter{running: map[int64]bool{4: true}}

	s := NewSupervisor(lister, starter, "", discardLogger())
	s.now = func() time.Time { return testNow }

	if got := s.resume(context.Background()); got != 2 {
		t.Errorf("resume() = %d, want 2", got)
	}
	if diff := cmp.Diff([]int64{1, 5}, starter.getStarted()); diff != "" {
		t.Errorf("started mismatch (-want +got):\n%s", diff)
	}
}

func TestSupervisorResumeErrors(t *testing.T) {
	starter := &fakeStarter{}
	s := NewSupervisor(&fakeLister{err: errors.New("db locked")}, starter, "", discardLogger())
	if got := s.resume(context.Background()); got != 0 {
		t.Errorf("resume() = %d, want 0", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = NewSupervisor(&fakeLister{campaigns: []model.Campaign{{ID: 1, Status: model.StatusActive}}}, starter, "", discardLogger())
	if got := s.resume(ctx); got != 0 {
		t.Errorf("resume() after cancel = %d, want 0", got)
	}
	if len(starter.getStarted()) != 0 {
		t.Errorf("unexpected starts: %v", starter.getStarted())
	}
}

func TestSupervisorStart(t *testing.T) {
	lister := &fakeLister{campaigns: []model.Campaign{{ID: 9, Status: model.StatusActive}}}
	starter := &fakeStarter{}
	s := NewSupervisor(lister, starter, "@every 1h", discardLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()

	if diff := cmp.Diff([]int64{9}, starter.getStarted()); diff != "" {
		t.Errorf("initial resume mismatch (-want +got):\n%s", diff)
	}
}

func TestSupervisorInvalidSchedule(t *testing.T) {
	s := NewSupervisor(&fakeLister{}, &fakeStarter{}, "every now and then", discardLogger())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected schedule error")
	}
}
