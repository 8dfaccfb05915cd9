package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"social_monitor/internal/model"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 20
)

// ErrMalformed reports model output that contains no usable JSON object.
var ErrMalformed = errors.New("malformed classification")

// Verdict is the classification of one post.
type Verdict struct {
	Result model.Analysis
	Score  int
}

// Sentinel verdicts.
var (
	Failed  = Verdict{Result: model.AnalysisError, Score: 0}
	Pending = Verdict{Result: model.AnalysisPending, Score: 0}
)

var (
	resultKeys = []string{"analyse_result", "analyze_result", "analysis_result", "result"}
	scoreKeys  = []string{"analyse_score", "analyze_score", "analysis_score", "score"}

	fenceRe = regexp.MustCompile("(?i)```(json)?")
)

// Decode extracts a verdict from free-form model output. Code fences and
// prose around the outermost JSON object are ignored. Unknown labels
// become model.AnalysisError and scores are clamped to [MinScore,
// MaxScore]. Output without a parseable JSON object yields Failed and
// ErrMalformed.
func Decode(content string) (Verdict, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(content, ""))
	if cleaned == "" {
		return Failed, ErrMalformed
	}
	first := strings.IndexByte(cleaned, '{')
	last := strings.LastIndexByte(cleaned, '}')
	if first >= 0 && last > first {
		cleaned = cleaned[first : last+1]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return Failed, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj == nil {
		return Failed, ErrMalformed
	}

	return Verdict{
		Result: NormalizeResult(lookup(obj, resultKeys)),
		Score:  clampScore(lookup(obj, scoreKeys)),
	}, nil
}

func lookup(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// NormalizeResult maps a label to approve, reject or not related,
// ignoring case, surrounding space and '_' or '-' separators. Anything
// else maps to model.AnalysisError.
func NormalizeResult(v any) model.Analysis {
	var s string
	switch t := v.(type) {
	case nil:
		return model.AnalysisError
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	s = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(s))
	switch strings.Join(strings.Fields(s), " ") {
	case "approve":
		return model.AnalysisApprove
	case "reject":
		return model.AnalysisReject
	case "not related":
		return model.AnalysisNotRelated
	}
	return model.AnalysisError
}

func clampScore(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return MinScore
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return MinScore
		}
		f = n
	case bool:
		if t {
			f = 1
		}
	default:
		return MinScore
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return MinScore
	}
	return int(math.Max(MinScore, math.Min(MaxScore, math.Floor(f+0.5))))
}
