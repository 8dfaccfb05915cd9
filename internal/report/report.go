// Package report summarizes campaign results and exports them as xlsx.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"social_monitor/internal/model"
)

// Sheet names of the exported workbook.
const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"
)

var analysisOrder = []model.Analysis{
	model.AnalysisApprove,
	model.AnalysisReject,
	model.AnalysisNotRelated,
	model.AnalysisPending,
	model.AnalysisError,
}

// KeywordStat counts results found by one keyword.
type KeywordStat struct {
	Keyword  string
	Results  int
	Channels int
}

// ChannelStat counts results of one channel.
type ChannelStat struct {
	ChannelID   string
	ChannelName string
	Results     int
}

// Summary aggregates the results of a campaign.
type Summary struct {
	Total      int
	ByAnalysis map[model.Analysis]int
	Reportage  int
	Videos     int
	Keywords   []KeywordStat
	Channels   []ChannelStat
}

// Summarize aggregates results. Keywords and channels are ordered by
// result count, descending, then by name.
func Summarize(results []model.Result) Summary {
	s := Summary{Total: len(results), ByAnalysis: make(map[model.Analysis]int)}

	kwIndex := map[string]int{}
	kwChannels := map[string]map[string]struct{}{}
	chIndex := map[string]int{}

	for _, r := range results {
		s.ByAnalysis[r.AnalysisResult]++
		if r.IsReportage {
			s.Reportage++
		}
		if r.IsVideo {
			s.Videos++
		}

		i, ok := kwIndex[r.Keyword]
		if !ok {
			i = len(s.Keywords)
			kwIndex[r.Keyword] = i
			kwChannels[r.Keyword] = map[string]struct{}{}
			s.Keywords = append(s.Keywords, KeywordStat{Keyword: r.Keyword})
		}
		s.Keywords[i].Results++
		kwChannels[r.Keyword][r.ChannelID] = struct{}{}

		j, ok := chIndex[r.ChannelID]
		if !ok {
			j = len(s.Channels)
			chIndex[r.ChannelID] = j
			s.Channels = append(s.Channels, ChannelStat{ChannelID: r.ChannelID, ChannelName: r.ChannelName})
		}
		s.Channels[j].Results++
	}

	for i := range s.Keywords {
		s.Keywords[i].Channels = len(kwChannels[s.Keywords[i].Keyword])
	}
	slices.SortStableFunc(s.Keywords, func(a, b KeywordStat) int {
		return cmp.Or(cmp.Compare(b.Results, a.Results), strings.Compare(a.Keyword, b.Keyword))
	})
	slices.SortStableFunc(s.Channels, func(a, b ChannelStat) int {
		return cmp.Or(cmp.Compare(b.Results, a.Results), strings.Compare(a.ChannelID, b.ChannelID))
	})
	return s
}

// Filename returns the download name of a campaign report.
func Filename(c *model.Campaign) string {
	return fmt.Sprintf("campaign_%d_report.xlsx", c.ID)
}

// WriteXLSX writes a workbook with one row per result and a summary sheet.
func WriteXLSX(w io.Writer, c *model.Campaign, results []model.Result) error {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), ResultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeResults(xl, results); err != nil {
		return err
	}

	if _, err := xl.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(xl, c, Summarize(results)); err != nil {
		return err
	}

	if err := xl.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeResults(xl *excelize.File, results []model.Result) error {
	header := []any{
		"id", "keyword", "channel_name", "channel_id", "post_url", "member_count",
		"view_count", "post_date", "is_video", "analysis_result", "analysis_score",
		"is_reportage", "post_text", "post_id", "checked_at",
	}
	if err := xl.SetSheetRow(ResultsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		record := []any{
			r.ID, r.Keyword, r.ChannelName, r.ChannelID, r.PostURL, r.MemberCount,
			r.ViewCount, r.PostDate, yesNo(r.IsVideo), string(r.AnalysisResult), r.AnalysisScore,
			yesNo(r.IsReportage), r.PostText, r.PostID, r.CheckedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := xl.SetSheetRow(ResultsSheet, cell, &record); err != nil {
			return fmt.Errorf("write result %d: %w", r.ID, err)
		}
	}
	return nil
}

func writeSummary(xl *excelize.File, c *model.Campaign, s Summary) error {
	rows := [][]any{
		{"campaign_id", c.ID},
		{"title", c.Title},
		{"network", c.Network},
		{"total", s.Total},
		{"reportage", s.Reportage},
		{"videos", s.Videos},
		{},
		{"analysis", "results"},
	}
	for _, a := range analysisOrder {
		rows = append(rows, []any{string(a), s.ByAnalysis[a]})
	}
	rows = append(rows, []any{}, []any{"keyword", "results", "channels"})
	for _, k := range s.Keywords {
		rows = append(rows, []any{k.Keyword, k.Results, k.Channels})
	}
	rows = append(rows, []any{}, []any{"channel_id", "channel_name", "results"})
	for _, ch := range s.Channels {
		rows = append(rows, []any{ch.ChannelID, ch.ChannelName, ch.Results})
	}

	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := xl.SetSheetRow(SummarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
