package export

import (
	"fmt"
	"strconv"

	"github.com/foldingvectors/prism/internal/synthesis"
)

// SynthesisReport lays out the cross-perspective synthesis: composite score,
// per-perspective score table with full untruncated summaries, then the
// agreement and tension sections.
func SynthesisReport(opts Options, report synthesis.Report) Document {
	opts.applyDefaults("Multi-Perspective Synthesis")

	l := newLayout()
	l.masthead("SYNTHESIS REPORT", opts)

	l.heading("COMPOSITE SCORE")
	l.text(formatScore(report.Composite), margin, 24, true)
	l.y += 14

	l.heading("PERSPECTIVE SCORES")
	for _, s := range report.Summaries {
		l.ensure(blockBreakAt)
		l.text(fmt.Sprintf("%s: %d/10", s.Name, s.Score), margin, 11, true)
		l.y += 5.5
		l.paragraph(s.Summary, 10)
		l.y += 3
	}
	l.y += 5

	insightSection(l, "POINTS OF AGREEMENT", "+", report.Agreements)
	insightSection(l, "POINTS OF TENSION", "~", report.Tensions)

	return Document{
		Title:    opts.Title,
		Filename: filename(opts.Title, "_Synthesis.pdf"),
		Pages:    l.finalize(),
	}
}

func insightSection(l *layout, title, marker string, insights []synthesis.Insight) {
	if len(insights) == 0 {
		return
	}
	l.ensure(blockBreakAt)
	l.heading(title)
	for _, in := range insights {
		l.paragraph(marker+" "+in.Text, 10)
		l.y += 2
	}
	l.y += 5
}

// formatScore renders the composite the way it is displayed: trailing zeros
// dropped, so 7 reads "7/10" and 5.5 reads "5.5/10".
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64) + "/10"
}
