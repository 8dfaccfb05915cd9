// Package similarity flags near-duplicate posts published by different
// channels within one search pass.
package similarity

import (
	"strings"
	"unicode"

	"social_monitor/internal/model"
)

// DefaultThreshold is the score a pair must exceed to count as a
// near-duplicate.
const DefaultThreshold = 0.82

// Func scores the similarity of two texts in [0,1].
type Func func(a, b string) float64

// Clusterer marks candidates that have at least one near-duplicate from
// another channel.
type Clusterer struct {
	Threshold  float64
	Similarity Func
}

// New returns a Clusterer using Dice. A non-positive threshold selects
// DefaultThreshold.
func New(threshold float64) *Clusterer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Clusterer{Threshold: threshold, Similarity: Dice}
}

// Flag sets IsReportage on every candidate whose text scores above the
// threshold against a candidate from a different channel. Pairs with an
// empty text are ignored. The set is expected to be small; the cost is
// quadratic.
func (c *Clusterer) Flag(items []model.Candidate) {
	sim := c.Similarity
	if sim == nil {
		sim = Dice
	}
	for i := range items {
		similar := 0
		for j := range items {
			if i == j {
				continue
			}
			a, b := &items[i], &items[j]
			if a.Text == "" || b.Text == "" {
				continue
			}
			if a.ChannelID != "" && a.ChannelID == b.ChannelID {
				continue
			}
			if sim(a.Text, b.Text) > c.Threshold {
				similar++
			}
		}
		items[i].IsReportage = similar >= 1
	}
}

// Dice returns the Sørensen–Dice coefficient over the character bigrams
// of a and b with all whitespace removed.
func Dice(a, b string) float64 {
	ra, rb := stripSpace(a), stripSpace(b)
	if string(ra) == string(rb) {
		return 1
	}
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[[2]rune{ra[i], ra[i+1]}]++
	}

	intersection := 0
	for i := 0; i < len(rb)-1; i++ {
		bg := [2]rune{rb[i], rb[i+1]}
		if n := bigrams[bg]; n > 0 {
			bigrams[bg] = n - 1
			intersection++
		}
	}
	return 2 * float64(intersection) / float64(len(ra)+len(rb)-2)
}

func stripSpace(s string) []rune {
	return []rune(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}
