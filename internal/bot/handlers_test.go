package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"social_monitor/internal/model"
	"social_monitor/internal/report"
)

func TestParseCampaignArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    CampaignArgs
		wantErr bool
	}{
		{
			name: "with keywords",
			args: "example.com | Elections 2024 | vote, ballot",
			want: CampaignArgs{Network: "example.com", Title: "Elections 2024", Keywords: []string{"vote", "ballot"}},
		},
		{
			name: "without keywords",
			args: "example.com|Elections",
			want: CampaignArgs{Network: "example.com", Title: "Elections"},
		},
		{name: "missing title", args: "example.com", wantErr: true},
		{name: "empty title", args: "example.com | ", wantErr: true},
		{name: "network with spaces", args: "example com | t", wantErr: true},
		{name: "too many parts", args: "a | b | c | d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCampaignArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCampaignArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseKeywordsArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		wantID   int64
		wantKeys []string
		wantErr  bool
	}{
		{name: "valid", args: "3 vote, general election ,", wantID: 3, wantKeys: []string{"vote", "general election"}},
		{name: "missing keywords", args: "3", wantErr: true},
		{name: "only commas", args: "3 , ,", wantErr: true},
		{name: "bad id", args: "x vote", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, kws, err := ParseKeywordsArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("id = %d, want %d", id, tt.wantID)
			}
			if diff := cmp.Diff(tt.wantKeys, kws); diff != "" {
				t.Errorf("keywords mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    int64
		wantErr bool
	}{
		{name: "valid", args: "42", want: 42},
		{name: "with spaces", args: "  7  ", want: 7},
		{name: "extra args", args: "5 extra", want: 5},
		{name: "empty", args: "", wantErr: true},
		{name: "not a number", args: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDArg(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseIDArg() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIntervalArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		wantID   int64
		wantMins int
		wantErr  bool
	}{
		{name: "valid", args: "1 30", wantID: 1, wantMins: 30},
		{name: "min boundary", args: "1 1", wantID: 1, wantMins: 1},
		{name: "max boundary", args: "1 1440", wantID: 1, wantMins: 1440},
		{name: "zero", args: "1 0", wantErr: true},
		{name: "too large", args: "1 1441", wantErr: true},
		{name: "missing minutes", args: "1", wantErr: true},
		{name: "invalid id", args: "abc 30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, mins, err := ParseIntervalArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID || mins != tt.wantMins {
				t.Errorf("got (%d, %d), want (%d, %d)", id, mins, tt.wantID, tt.wantMins)
			}
		})
	}
}

func TestParseLimitsArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    [3]int64
		wantErr bool
	}{
		{name: "valid", args: "2 3 40", want: [3]int64{2, 3, 40}},
		{name: "upper bounds", args: "2 50 200", want: [3]int64{2, 50, 200}},
		{name: "per channel too large", args: "2 51 10", wantErr: true},
		{name: "channels zero", args: "2 3 0", wantErr: true},
		{name: "missing value", args: "2 3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, per, maxCh, err := ParseLimitsArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, [3]int64{id, int64(per), int64(maxCh)}); diff != "" {
				t.Errorf("ParseLimitsArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseWindowArgs(t *testing.T) {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name      string
		args      string
		wantStart *time.Time
		wantEnd   *time.Time
		wantErr   bool
	}{
		{name: "both bounds", args: "1 2024-04-01 2024-04-30", wantStart: &start, wantEnd: &end},
		{name: "open start", args: "1 - 2024-04-30", wantEnd: &end},
		{name: "open both", args: "1 - -"},
		{name: "same day", args: "1 2024-04-01 2024-04-01", wantStart: &start, wantEnd: ptr(start.Add(24*time.Hour - time.Second))},
		{name: "end before start", args: "1 2024-04-30 2024-04-01", wantErr: true},
		{name: "bad date", args: "1 01/04/2024 -", wantErr: true},
		{name: "missing end", args: "1 2024-04-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, gotStart, gotEnd, err := ParseWindowArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantStart, gotStart); diff != "" {
				t.Errorf("start mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantEnd, gotEnd); diff != "" {
				t.Errorf("end mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestParseAssignArgs(t *testing.T) {
	id, pid, err := ParseAssignArgs("4 2")
	if err != nil || id != 4 || pid == nil || *pid != 2 {
		t.Errorf("ParseAssignArgs(4 2) = %d, %v, %v", id, pid, err)
	}
	id, pid, err = ParseAssignArgs("4 -")
	if err != nil || id != 4 || pid != nil {
		t.Errorf("ParseAssignArgs(4 -) = %d, %v, %v", id, pid, err)
	}
	if _, _, err := ParseAssignArgs("4"); err == nil {
		t.Error("expected usage error")
	}
	if _, _, err := ParseAssignArgs("4 x"); err == nil {
		t.Error("expected provider id error")
	}
}

func TestParseProviderArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    model.AIProvider
		wantErr bool
	}{
		{
			name: "minimal",
			args: "main openai sk-1",
			want: model.AIProvider{Name: "main", Type: model.ProviderOpenAI, APIKey: "sk-1", IsActive: true},
		},
		{
			name: "unknown type becomes custom",
			args: "local llama key-1 llama3 localhost:8080/",
			want: model.AIProvider{Name: "local", Type: model.ProviderCustom, APIKey: "key-1", Model: "llama3", BaseURL: "https://localhost:8080", IsActive: true},
		},
		{
			name: "type is case-insensitive",
			args: "ds DeepSeek key-2 deepseek-chat",
			want: model.AIProvider{Name: "ds", Type: model.ProviderDeepSeek, APIKey: "key-2", Model: "deepseek-chat", IsActive: true},
		},
		{name: "missing key", args: "main openai", wantErr: true},
		{name: "too many fields", args: "a b c d e f", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProviderArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseProviderArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatCampaignList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatCampaignList(nil, nil)
		if !strings.Contains(got, "no campaigns") {
			t.Errorf("unexpected output: %s", got)
		}
	})

	t.Run("entries", func(t *testing.T) {
		campaigns := []model.Campaign{
			{ID: 1, Title: "Elections", Status: model.StatusActive, Network: "example.com", FrequencyMinutes: 10},
			{ID: 2, Title: "Sports", Status: model.StatusStopped, Network: "other.org"},
		}
		got := FormatCampaignList(campaigns, map[int64]bool{1: true})
		want := "Campaigns:\n" +
			"\n#1 Elections [active, running]\n   example.com, every 10 min\n" +
			"\n#2 Sports [stopped, idle]\n   other.org, every 1 min\n"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("FormatCampaignList() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFormatCampaignInfo(t *testing.T) {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	c := &model.Campaign{ID: 3, Title: "Elections", Status: model.StatusActive, Network: "example.com",
		FrequencyMinutes: 15, PerChannelLimit: 2, MaxChannels: 10, StartDate: &start}

	got := FormatCampaignInfo(CampaignInfo{Campaign: c, Results: 4})
	want := "#3 Elections [active, idle]\n" +
		"Network: example.com\n" +
		"Frequency: every 15 min\n" +
		"Limits: 2 per channel, 10 channels\n" +
		"Window: 2024-04-01 to open\n" +
		"AI provider: none\n" +
		"Results: 4\n" +
		"\nNo keywords. Use /keywords to add some."
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FormatCampaignInfo() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatSummary(t *testing.T) {
	c := &model.Campaign{ID: 1, Title: "Elections"}
	s := report.Summary{
		Total:      3,
		ByAnalysis: map[model.Analysis]int{model.AnalysisApprove: 2, model.AnalysisError: 1},
		Reportage:  1,
		Keywords:   []report.KeywordStat{{Keyword: "vote", Results: 3, Channels: 2}},
		Channels:   []report.ChannelStat{{ChannelID: "@a", ChannelName: "A", Results: 2}, {ChannelID: "@b", ChannelName: "B", Results: 1}},
	}
	got := FormatSummary(c, s)
	want := "Report for #1 Elections\n" +
		"Total results: 3 (reportage 1, video 0)\n" +
		"\nAnalysis:\n  approve: 2\n  error: 1\n" +
		"\nKeywords:\n  vote: 3 results, 2 channels\n" +
		"\nTop channels:\n  A (@a): 2\n  B (@b): 1\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FormatSummary() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatProviderList(t *testing.T) {
	providers := []model.AIProvider{
		{ID: 1, Name: "main", Type: model.ProviderOpenAI, APIKey: "sk-abcdef123456", Model: "gpt-4o-mini", IsActive: true},
		{ID: 2, Name: "old", Type: model.ProviderCustom, APIKey: "k", BaseURL: "https://llm.local"},
	}
	got := FormatProviderList(providers)
	want := "AI providers:\n" +
		"\n#1 main [openai, active]\n   key ****3456, model gpt-4o-mini\n" +
		"\n#2 old [custom, inactive]\n   key ****, https://llm.local\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FormatProviderList() mismatch (-want +got):\n%s", diff)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "", want: "****"},
		{key: "abcd", want: "****"},
		{key: "sk-secret-9876", want: "****9876"},
	}
	for _, tt := range tests {
		if got := MaskKey(tt.key); got != tt.want {
			t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
