package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"social_monitor/internal/model"
)

func sampleResults() []model.Result {
	checked := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	return []model.Result{
		{ID: 1, Keyword: "election", ChannelID: "@a", ChannelName: "A", AnalysisResult: model.AnalysisApprove, AnalysisScore: 15, MemberCount: 1200, IsReportage: true, CheckedAt: checked},
		{ID: 2, Keyword: "election", ChannelID: "@b", ChannelName: "B", AnalysisResult: model.AnalysisReject, AnalysisScore: 3, IsReportage: true, CheckedAt: checked},
		{ID: 3, Keyword: "election", ChannelID: "@a", ChannelName: "A", AnalysisResult: model.AnalysisApprove, AnalysisScore: 12, IsVideo: true, CheckedAt: checked},
		{ID: 4, Keyword: "vote", ChannelID: "@c", ChannelName: "C", AnalysisResult: model.AnalysisError, CheckedAt: checked},
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleResults())
	want := Summary{
		Total: 4,
		ByAnalysis: map[model.Analysis]int{
			model.AnalysisApprove: 2,
			model.AnalysisReject:  1,
			model.AnalysisError:   1,
		},
		Reportage: 2,
		Videos:    1,
		Keywords: []KeywordStat{
			{Keyword: "election", Results: 3, Channels: 2},
			{Keyword: "vote", Results: 1, Channels: 1},
		},
		Channels: []ChannelStat{
			{ChannelID: "@a", ChannelName: "A", Results: 2},
			{ChannelID: "@b", ChannelName: "B", Results: 1},
			{ChannelID: "@c", ChannelName: "C", Results: 1},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil)
	if got.Total != 0 || len(got.Keywords) != 0 || len(got.Channels) != 0 {
		t.Errorf("unexpected summary: %+v", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	c := &model.Campaign{ID: 7, Title: "Elections", Network: "example.com"}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, c, sampleResults()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	xl, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = xl.Close() }()

	if diff := cmp.Diff([]string{ResultsSheet, SummarySheet}, xl.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}

	rows, err := xl.GetRows(ResultsSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want header plus 4", len(rows))
	}
	if rows[0][0] != "id" || rows[0][9] != "analysis_result" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	wantFirst := []string{"1", "election", "A", "@a", "", "1200", "0", "", "no", "approve", "15", "yes", "", "", "2024-04-02T10:00:00Z"}
	if diff := cmp.Diff(wantFirst, rows[1]); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}

	cells := map[string]string{
		"B2":  "Elections",
		"B4":  "4",
		"B5":  "2",
		"A9":  "approve",
		"B9":  "2",
		"A16": "election",
		"B16": "3",
		"C16": "2",
	}
	for cell, want := range cells {
		got, err := xl.GetCellValue(SummarySheet, cell)
		if err != nil {
			t.Fatalf("get %s: %v", cell, err)
		}
		if got != want {
			t.Errorf("summary %s = %q, want %q", cell, got, want)
		}
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(&model.Campaign{ID: 12}); got != "campaign_12_report.xlsx" {
		t.Errorf("Filename() = %q", got)
	}
}
