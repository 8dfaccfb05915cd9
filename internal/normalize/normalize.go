// Package normalize converts localized numbers and Persian/Arabic text into
// canonical forms for counting and keyword matching.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٬", ",", // Arabic thousands separator
	"،", ",", // Arabic comma
	"٫", ".", // Arabic decimal separator
)

var letterReplacer = strings.NewReplacer(
	"\u200c", "", // zero-width non-joiner
	"ي", "ی",
	"ك", "ک",
)

// A suffix letter counts only when it ends the word, so "12 messages" is 12.
var numberRe = regexp.MustCompile(`([\d,.]*\d[\d,.]*)\s*(?:([KkMm])\b)?`)

const (
	wordThousand = "هزار"
	wordMillion  = "میلیون"
)

// Digits converts Persian and Arabic-Indic digits and separators to ASCII
// and collapses runs of whitespace into single spaces.
func Digits(s string) string {
	return strings.Join(strings.Fields(digitReplacer.Replace(s)), " ")
}

// ParseNumber extracts the first number from a display string such as
// "۱٬۲۳۴ عضو", "2.5K views" or "۳ هزار". It returns 0 when no number is
// present and never fails.
func ParseNumber(text string) int64 {
	if text == "" {
		return 0
	}
	normalized := Digits(text)

	m := numberRe.FindStringSubmatch(normalized)
	if m == nil {
		return 0
	}
	n, ok := parseFloatPrefix(strings.ReplaceAll(m[1], ",", ""))
	if !ok {
		return 0
	}

	switch strings.ToLower(m[2]) {
	case "k":
		return round(n * 1_000)
	case "m":
		return round(n * 1_000_000)
	}

	lower := strings.ToLower(normalized)
	switch {
	case strings.Contains(lower, wordThousand):
		return round(n * 1_000)
	case strings.Contains(lower, wordMillion):
		return round(n * 1_000_000)
	}
	return round(n)
}

// parseFloatPrefix parses the longest leading decimal of s, so "1.2.3"
// yields 1.2.
func parseFloatPrefix(s string) (float64, bool) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if j := strings.IndexByte(s[i+1:], '.'); j >= 0 {
			s = s[:i+1+j]
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func round(f float64) int64 {
	r := math.Floor(f + 0.5)
	if r < 0 {
		return 0
	}
	if r > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(r)
}

// MatchText prepares text for keyword containment checks: it removes
// zero-width non-joiners, unifies the Arabic and Persian forms of ye and
// kaf, collapses whitespace and trims.
func MatchText(s string) string {
	s = letterReplacer.Replace(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// Contains reports whether keyword occurs in text after both pass through
// MatchText. The match is case-insensitive for scripts with case.
func Contains(text, keyword string) bool {
	kw := strings.ToLower(MatchText(keyword))
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(MatchText(text)), kw)
}
