// Package synthesis derives cross-perspective signals from a batch of
// normalized analysis results: a heuristic confidence score per perspective,
// points of agreement, points of tension, and a composite score.
package synthesis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/foldingvectors/prism/internal/normalize"
)

// Phrase tiers checked in strict precedence order; the first tier with a hit
// sets the base score.
var (
	strongPositive = []string{"strongly recommend", "highly recommend", "excellent", "outstanding", "exceptional", "compelling", "clear opportunity"}
	strongNegative = []string{"avoid", "reject", "significant risk", "major concern", "not recommend", "serious issues"}
	positive       = []string{"recommend", "proceed", "invest", "promising", "favorable", "good", "solid", "strong"}
	negative       = []string{"concern", "risk", "caution", "careful", "uncertain", "questionable", "deficiencies"}
	neutral        = []string{"mixed", "balanced", "moderate", "depends", "conditional"}
)

// Score maps free text to a 1-10 confidence score. Hedging ("but", "however")
// knocks a point off, floored at 3; "despite" caps an otherwise strong score
// at 8.
func Score(text string) int {
	lower := strings.ToLower(text)

	score := 5
	switch {
	case containsAny(lower, strongPositive):
		score = 9
	case containsAny(lower, strongNegative):
		score = 2
	case containsAny(lower, positive):
		score = 7
	case containsAny(lower, negative):
		score = 4
	case containsAny(lower, neutral):
		score = 5
	}

	if strings.Contains(lower, "but") || strings.Contains(lower, "however") {
		score = max(3, score-1)
	}
	if strings.Contains(lower, "despite") && score > 5 {
		score = min(8, score)
	}

	return min(10, max(1, score))
}

// Input is one perspective's contribution to a synthesis.
type Input struct {
	Selector string
	Name     string
	Result   normalize.Result
}

// Summary is one perspective's scored one-liner in the report.
type Summary struct {
	Selector       string `json:"selector"`
	Name           string `json:"name"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
	Score          int    `json:"score"`
}

// Insight is a detected agreement or tension between two perspectives.
type Insight struct {
	Text    string    `json:"text"`
	Sources [2]string `json:"sources"`
	Details string    `json:"details"`
}

// Report is the full synthesis over one analysis batch.
type Report struct {
	Summaries  []Summary `json:"summaries"`
	Agreements []Insight `json:"agreements"`
	Tensions   []Insight `json:"tensions"`
	Composite  float64   `json:"composite"`
}

type sourcedItem struct {
	text       string
	source     string
	sourceName string
}

const maxInsights = 5

// Synthesize builds a report from the batch. Unparsed results contribute
// nothing; input order determines discovery order for agreements and
// tensions.
func Synthesize(inputs []Input) Report {
	var (
		summaries     []Summary
		opportunities []sourcedItem
		risks         []sourcedItem
	)

	for _, in := range inputs {
		res := in.Result
		if !res.Parsed {
			continue
		}

		summary := scalarField(res, "Summary", "summary")
		recommendation := scalarField(res, "Recommendation", "recommendation")
		if recommendation == "" {
			if v, ok := res.Get("Recommendations"); ok && v.Kind == normalize.KindList && len(v.List) > 0 {
				recommendation = v.List[0]
			}
		}

		score := Score(summary + " " + recommendation)
		if summary != "" {
			summaries = append(summaries, Summary{
				Selector:       in.Selector,
				Name:           in.Name,
				Summary:        summary,
				Recommendation: recommendation,
				Score:          score,
			})
		}

		for _, f := range res.Fields() {
			if f.Value.Kind != normalize.KindList {
				continue
			}
			key := strings.ToLower(f.Key)
			switch {
			case containsAny(key, []string{"opportunit", "strength", "tailwind", "green"}):
				for _, item := range f.Value.List {
					opportunities = append(opportunities, sourcedItem{item, in.Selector, in.Name})
				}
			case containsAny(key, []string{"risk", "concern", "headwind", "gap", "flag"}):
				for _, item := range f.Value.List {
					risks = append(risks, sourcedItem{item, in.Selector, in.Name})
				}
			}
		}
	}

	agreements := findAgreements(opportunities, risks)
	tensions := findTensions(opportunities, risks)

	return Report{
		Summaries:  summaries,
		Agreements: truncate(agreements),
		Tensions:   truncate(tensions),
		Composite:  composite(summaries),
	}
}

func findAgreements(opportunities, risks []sourcedItem) []Insight {
	var out []Insight
	seen := map[string]bool{}

	for _, a := range opportunities {
		for _, b := range opportunities {
			if a.source >= b.source {
				continue
			}
			overlap := sharedWords(a.text, b.text)
			if len(overlap) < 2 {
				continue
			}
			key := pairKey(a.source, b.source)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Insight{
				Text:    fmt.Sprintf("%s and %s both see opportunity in: %s", a.sourceName, b.sourceName, strings.Join(head(overlap, 3), ", ")),
				Sources: [2]string{a.source, b.source},
				Details: fmt.Sprintf("%s: %q\n\n%s: %q", a.sourceName, a.text, b.sourceName, b.text),
			})
		}
	}

	for _, a := range risks {
		for _, b := range risks {
			if a.source >= b.source {
				continue
			}
			overlap := sharedWords(a.text, b.text)
			if len(overlap) < 2 {
				continue
			}
			key := pairKey(a.source, b.source) + "-risk"
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Insight{
				Text:    fmt.Sprintf("%s and %s share concerns about: %s", a.sourceName, b.sourceName, strings.Join(head(overlap, 3), ", ")),
				Sources: [2]string{a.source, b.source},
				Details: fmt.Sprintf("%s: %q\n\n%s: %q", a.sourceName, a.text, b.sourceName, b.text),
			})
		}
	}

	return out
}

func findTensions(opportunities, risks []sourcedItem) []Insight {
	var out []Insight
	seen := map[string]bool{}

	for _, opp := range opportunities {
		for _, risk := range risks {
			if opp.source == risk.source {
				continue
			}
			overlap := sharedWords(opp.text, risk.text)
			if len(overlap) < 2 {
				continue
			}
			key := pairKey(opp.source, risk.source) + overlap[0]
			if seen[key] {
				continue
			}
			seen[key] = true
			topic := strings.Join(head(overlap, 2), " & ")
			out = append(out, Insight{
				Text:    fmt.Sprintf("%s sees opportunity in %s, while %s flags it as a risk", opp.sourceName, topic, risk.sourceName),
				Sources: [2]string{opp.source, risk.source},
				Details: fmt.Sprintf("%s (Opportunity): %q\n\n%s (Risk): %q", opp.sourceName, opp.text, risk.sourceName, risk.text),
			})
		}
	}

	return out
}

// sharedWords returns the words of a (longer than 4 characters) that overlap
// words of b, where overlap means either word contains the other.
func sharedWords(a, b string) []string {
	wordsA := significantWords(a)
	wordsB := significantWords(b)

	var overlap []string
	for _, w := range wordsA {
		for _, w2 := range wordsB {
			if strings.Contains(w, w2) || strings.Contains(w2, w) {
				overlap = append(overlap, w)
				break
			}
		}
	}
	return overlap
}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 4 {
			out = append(out, w)
		}
	}
	return out
}

func composite(summaries []Summary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	total := 0
	for _, s := range summaries {
		total += s.Score
	}
	return math.Round(float64(total)/float64(len(summaries))*10) / 10
}

func scalarField(res normalize.Result, keys ...string) string {
	for _, k := range keys {
		v, ok := res.Get(k)
		if !ok {
			continue
		}
		switch v.Kind {
		case normalize.KindScalar:
			if v.Scalar != "" {
				return v.Scalar
			}
		case normalize.KindList:
			if len(v.List) > 0 {
				return strings.Join(v.List, ",")
			}
		}
	}
	return ""
}

func pairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "-")
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func truncate(items []Insight) []Insight {
	if len(items) > maxInsights {
		return items[:maxInsights]
	}
	return items
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
