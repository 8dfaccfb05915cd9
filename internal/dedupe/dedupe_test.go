package dedupe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"social_monitor/internal/model"
)

func TestNewLimits(t *testing.T) {
	tests := []struct {
		name           string
		perChannel     int
		maxChannels    int
		want           Limits
		wantMaxResults int
	}{
		{name: "defaults", want: Limits{PerChannel: 3, MaxChannels: 20}, wantMaxResults: 60},
		{name: "negative uses defaults", perChannel: -1, maxChannels: -5, want: Limits{PerChannel: 3, MaxChannels: 20}, wantMaxResults: 60},
		{name: "clamped high", perChannel: 99, maxChannels: 999, want: Limits{PerChannel: 50, MaxChannels: 200}, wantMaxResults: 200},
		{name: "explicit", perChannel: 1, maxChannels: 1, want: Limits{PerChannel: 1, MaxChannels: 1}, wantMaxResults: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLimits(tt.perChannel, tt.maxChannels)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewLimits mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMaxResults, got.MaxResults()); diff != "" {
				t.Errorf("MaxResults mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrackerAdmit(t *testing.T) {
	type step struct {
		channel    string
		wantOK     bool
		wantReason SkipReason
	}
	tests := []struct {
		name   string
		limits Limits
		steps  []step
	}{
		{
			name:   "per channel quota",
			limits: Limits{PerChannel: 2, MaxChannels: 5},
			steps: []step{
				{"@a", true, SkipNone},
				{"@a", true, SkipNone},
				{"@a", false, SkipChannelQuota},
				{"@b", true, SkipNone},
			},
		},
		{
			name:   "channel cap keeps known channels eligible",
			limits: Limits{PerChannel: 2, MaxChannels: 2},
			steps: []step{
				{"@a", true, SkipNone},
				{"@b", true, SkipNone},
				{"@c", false, SkipChannelCap},
				{"@a", true, SkipNone},
				{"@b", true, SkipNone},
				{"@b", false, SkipChannelQuota},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.limits)
			for i, s := range tt.steps {
				ok, reason := tr.Admit(s.channel)
				if ok != s.wantOK || reason != s.wantReason {
					t.Errorf("step %d Admit(%q) = (%v, %q), want (%v, %q)", i, s.channel, ok, reason, s.wantOK, s.wantReason)
				}
			}
		})
	}
}

func TestTrackerNeverExceedsQuotas(t *testing.T) {
	limits := Limits{PerChannel: 3, MaxChannels: 4}
	tr := NewTracker(limits)
	channels := []string{"@a", "@b", "@a", "@c", "@d", "@e", "@a", "@a", "@f", "@b", "@b", "@b", "@c"}
	for i := 0; i < 5; i++ {
		for _, ch := range channels {
			tr.Admit(ch)
		}
	}
	if tr.Channels() > limits.MaxChannels {
		t.Errorf("admitted %d channels, cap is %d", tr.Channels(), limits.MaxChannels)
	}
	for _, ch := range channels {
		if n := tr.Count(ch); n > limits.PerChannel {
			t.Errorf("channel %s admitted %d times, quota is %d", ch, n, limits.PerChannel)
		}
	}
}

func TestChannelID(t *testing.T) {
	tests := []struct {
		id, name, want string
	}{
		{"@news", "News", "@news"},
		{"", "News", "name:News"},
		{"", "", "unknown"},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ChannelID(tt.id, tt.name)); diff != "" {
			t.Errorf("ChannelID(%q, %q) mismatch (-want +got):\n%s", tt.id, tt.name, diff)
		}
	}
}

func TestPostID(t *testing.T) {
	if got := PostID("1234", "@a", "https://x/1", "text"); got != "1234" {
		t.Errorf("native id not used, got %q", got)
	}

	a := PostID("", "@a", "https://x/1", "text")
	b := PostID("", "@a", "https://x/1", "text")
	if a != b {
		t.Errorf("fingerprint not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 || strings.Trim(a, "0123456789abcdef") != "" {
		t.Errorf("expected 64 hex chars, got %q", a)
	}
	if c := PostID("", "@b", "https://x/1", "text"); c == a {
		t.Error("different channel produced the same fingerprint")
	}
	if c := PostID("", "@a|https://x/1", "", "text"); c == a {
		t.Error("field boundaries must be part of the fingerprint input")
	}
}

func TestPostText(t *testing.T) {
	tests := []struct {
		name      string
		extracted string
		preview   string
		want      string
	}{
		{name: "long extraction kept", extracted: "this text is definitely long enough", preview: "preview", want: "this text is definitely long enough"},
		{name: "empty falls back", extracted: "", preview: "preview text", want: "preview text"},
		{name: "short falls back", extracted: "short", preview: "preview text", want: "preview text"},
		{name: "short kept without preview", extracted: "short", preview: "", want: "short"},
		{name: "runes counted not bytes", extracted: "سلام دنیای عزیز من", preview: "پیش نمایش", want: "پیش نمایش"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, PostText(tt.extracted, tt.preview)); diff != "" {
				t.Errorf("PostText mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type fakeStore struct {
	results map[string]*model.Result
	updates map[int64]model.ResultUpdate
	findErr error
}

func (f *fakeStore) FindResult(_ context.Context, postID, channelID string) (*model.Result, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.results[postID+"|"+channelID], nil
}

func (f *fakeStore) UpdateResult(_ context.Context, id int64, upd model.ResultUpdate) error {
	if f.updates == nil {
		f.updates = make(map[int64]model.ResultUpdate)
	}
	f.updates[id] = upd
	return nil
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{results: map[string]*model.Result{
		"p1|@a": {ID: 1, PostID: "p1", ChannelID: "@a", MemberCount: 0, ViewCount: 500, PostDate: "2026-02-01"},
		"p2|@a": {ID: 2, PostID: "p2", ChannelID: "@a", MemberCount: 100, ViewCount: 500, PostDate: "2026-02-01"},
	}}
	r := NewResolver(store)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	tests := []struct {
		name string
		cand model.Candidate
		want Outcome
	}{
		{name: "unknown post", cand: model.Candidate{PostID: "p9", ChannelID: "@a"}, want: OutcomeNew},
		{name: "same post other channel is new", cand: model.Candidate{PostID: "p1", ChannelID: "@b"}, want: OutcomeNew},
		{name: "fills zero member count", cand: model.Candidate{PostID: "p1", ChannelID: "@a", MemberCount: 42, ViewCount: 10}, want: OutcomeMerged},
		{name: "nothing to improve", cand: model.Candidate{PostID: "p2", ChannelID: "@a", MemberCount: 50, ViewCount: 900, DateText: "x"}, want: OutcomeUnchanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, &tt.cand)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}

	upd, ok := store.updates[1]
	if !ok {
		t.Fatal("expected update for result 1")
	}
	if *upd.MemberCount != 42 || *upd.ViewCount != 500 || *upd.PostDate != "2026-02-01" || !upd.CheckedAt.Equal(now) {
		t.Errorf("unexpected merge: members=%d views=%d date=%q checked=%v", *upd.MemberCount, *upd.ViewCount, *upd.PostDate, *upd.CheckedAt)
	}
	if _, ok := store.updates[2]; ok {
		t.Error("no-op observation must not write")
	}
}

func TestResolveStoreError(t *testing.T) {
	store := &fakeStore{findErr: errors.New("db down")}
	_, err := NewResolver(store).Resolve(context.Background(), &model.Candidate{PostID: "p", ChannelID: "@a"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMergeUpdateNeverDecreases(t *testing.T) {
	existing := &model.Result{MemberCount: 0, ViewCount: 900, PostDate: ""}
	upd, ok := MergeUpdate(existing, &model.Candidate{MemberCount: 10, ViewCount: 100, DateText: "today"}, time.Now())
	if !ok {
		t.Fatal("expected merge")
	}
	if *upd.ViewCount != 900 {
		t.Errorf("view count decreased to %d", *upd.ViewCount)
	}
	if *upd.MemberCount != 10 {
		t.Errorf("member count = %d, want 10", *upd.MemberCount)
	}
	if *upd.PostDate != "today" {
		t.Errorf("post date = %q, want today", *upd.PostDate)
	}
}
