package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"social_monitor/internal/classifier"
	"social_monitor/internal/model"
)

type fakeStore struct {
	rows      []model.Result
	listErr   error
	gotLimit  int
	updates   map[int64]model.ResultUpdate
	updateErr error
}

func (s *fakeStore) ListErrorResults(_ context.Context, _ int64, limit int) ([]model.Result, error) {
	s.gotLimit = limit
	return s.rows, s.listErr
}

func (s *fakeStore) UpdateResult(_ context.Context, id int64, u model.ResultUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.updates == nil {
		s.updates = map[int64]model.ResultUpdate{}
	}
	s.updates[id] = u
	return nil
}

type call struct {
	keyword, url, text string
}

type fakeClassifier struct {
	verdicts map[string]classifier.Verdict
	calls    []call
}

func (c *fakeClassifier) Classify(_ context.Context, _ *model.AIProvider, keyword, url, text string) classifier.Verdict {
	c.calls = append(c.calls, call{keyword, url, text})
	if v, ok := c.verdicts[text]; ok {
		return v
	}
	return classifier.Failed
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{rows: []model.Result{
		{ID: 1, Keyword: "kw", PostURL: "u1", PostText: "heals"},
		{ID: 2, Keyword: "", PostURL: "u2", PostText: "still broken"},
		{ID: 3, Keyword: "other", PostURL: "u3", PostText: "heals too"},
	}}
	cl := &fakeClassifier{verdicts: map[string]classifier.Verdict{
		"heals":     {Result: model.AnalysisApprove, Score: 15},
		"heals too": {Result: model.AnalysisNotRelated, Score: 10},
	}}

	c := New(store, cl, 0, discardLogger())
	c.now = func() time.Time { return now }
	healedCalls := 0
	c.OnHealed(func() { healedCalls++ })

	got := c.Run(context.Background(), 7, &model.AIProvider{ID: 1}, "first")
	if got != 2 || healedCalls != 2 {
		t.Fatalf("healed = %d (callbacks %d), want 2", got, healedCalls)
	}
	if store.gotLimit != DefaultLimit {
		t.Errorf("limit = %d, want %d", store.gotLimit, DefaultLimit)
	}

	wantCalls := []call{
		{"kw", "u1", "heals"},
		{"first", "u2", "still broken"},
		{"other", "u3", "heals too"},
	}
	if diff := cmp.Diff(wantCalls, cl.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("classifier calls mismatch (-want +got):\n%s", diff)
	}

	approve, notRelated := model.AnalysisApprove, model.AnalysisNotRelated
	fifteen, ten := 15, 10
	want := map[int64]model.ResultUpdate{
		1: {AnalysisResult: &approve, AnalysisScore: &fifteen, CheckedAt: &now},
		3: {AnalysisResult: &notRelated, AnalysisScore: &ten, CheckedAt: &now},
	}
	if diff := cmp.Diff(want, store.updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWithoutProvider(t *testing.T) {
	store := &fakeStore{rows: []model.Result{{ID: 1, PostText: "x"}}}
	cl := &fakeClassifier{}
	c := New(store, cl, 5, discardLogger())

	if got := c.Run(context.Background(), 1, nil, "kw"); got != 0 {
		t.Errorf("healed = %d, want 0", got)
	}
	if len(cl.calls) != 0 {
		t.Errorf("classifier called %d times without provider", len(cl.calls))
	}
}

func TestRunStoreErrors(t *testing.T) {
	cl := &fakeClassifier{verdicts: map[string]classifier.Verdict{"x": {Result: model.AnalysisReject, Score: 2}}}

	listFail := &fakeStore{listErr: errors.New("db down")}
	if got := New(listFail, cl, 5, discardLogger()).Run(context.Background(), 1, &model.AIProvider{}, "kw"); got != 0 {
		t.Errorf("healed on list failure = %d, want 0", got)
	}

	updateFail := &fakeStore{
		rows:      []model.Result{{ID: 1, PostText: "x"}, {ID: 2, PostText: "x"}},
		updateErr: errors.New("db locked"),
	}
	if got := New(updateFail, cl, 5, discardLogger()).Run(context.Background(), 1, &model.AIProvider{}, "kw"); got != 0 {
		t.Errorf("healed on update failure = %d, want 0", got)
	}
	if len(cl.calls) != 1 {
		t.Errorf("classifier calls = %d, want 1 (pass ends on store error)", len(cl.calls))
	}
}
