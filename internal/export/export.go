// Package export renders analyses as paginated document directives. The
// directives describe positioned text and rules on A4 pages; a downstream
// renderer turns them into the downloadable binary. Pagination, margins, and
// the repeated footer are all decided here so every output format shares the
// same layout.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Op is the directive kind.
type Op string

const (
	OpText Op = "text"
	OpRule Op = "rule"
)

// Directive is one positioned drawing instruction. Coordinates are in
// millimetres from the top-left corner of an A4 page.
type Directive struct {
	Op    Op      `json:"op"`
	Text  string  `json:"text,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	X2    float64 `json:"x2,omitempty"`
	Size  float64 `json:"size,omitempty"`
	Bold  bool    `json:"bold,omitempty"`
	Align string  `json:"align,omitempty"`
}

// Page holds one page's directives in draw order.
type Page struct {
	Directives []Directive `json:"directives"`
}

// Document is a fully laid-out export, footer included.
type Document struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Pages    []Page `json:"pages"`
}

// A4 geometry and the layout thresholds the formatters share.
const (
	pageWidth  = 210.0
	margin     = 25.0
	textRight  = pageWidth - margin
	centerX    = pageWidth / 2
	labelInset = 20.0

	sectionBreakAt = 250.0
	blockBreakAt   = 240.0
	fieldBreakAt   = 265.0
	lineBreakAt    = 270.0

	footerRuleY = 285.0
	footerTextY = 290.0

	bodyWrap   = 92
	bulletWrap = 86
)

// Options carries the masthead values. Zero values fall back to the product
// defaults.
type Options struct {
	Title     string
	Recipient string
	Sender    string
	Date      time.Time
}

func (o *Options) applyDefaults(fallbackTitle string) {
	if o.Title == "" {
		o.Title = fallbackTitle
	}
	if o.Recipient == "" {
		o.Recipient = "Decision Makers"
	}
	if o.Sender == "" {
		o.Sender = "Folding Vectors"
	}
	if o.Date.IsZero() {
		o.Date = time.Now()
	}
}

// layout accumulates directives page by page, tracking the running vertical
// position the way the formatters paginate.
type layout struct {
	pages []Page
	y     float64
}

func newLayout() *layout {
	return &layout{pages: []Page{{}}, y: 20}
}

func (l *layout) add(d Directive) {
	p := &l.pages[len(l.pages)-1]
	p.Directives = append(p.Directives, d)
}

func (l *layout) newPage() {
	l.pages = append(l.pages, Page{})
	l.y = margin
}

// ensure starts a new page when the running position has passed the given
// threshold, so the next element does not collide with the footer zone.
func (l *layout) ensure(threshold float64) {
	if l.y > threshold {
		l.newPage()
	}
}

func (l *layout) centered(text string, size float64, bold bool) {
	l.add(Directive{Op: OpText, Text: text, X: centerX, Y: l.y, Size: size, Bold: bold, Align: "center"})
}

func (l *layout) text(text string, x, size float64, bold bool) {
	l.add(Directive{Op: OpText, Text: text, X: x, Y: l.y, Size: size, Bold: bold})
}

func (l *layout) rule(x1, x2 float64) {
	l.add(Directive{Op: OpRule, X: x1, Y: l.y, X2: x2})
}

// mastheadLine writes one "LABEL:" / value pair of the masthead.
func (l *layout) mastheadLine(label, value string) {
	l.text(label, margin, 11, true)
	l.text(value, margin+labelInset, 11, false)
	l.y += 7
}

// masthead lays out the document header shared by every formatter: centered
// title, TO/FROM/DATE/RE block, and a separating rule.
func (l *layout) masthead(header string, opts Options) {
	l.centered(header, 18, true)
	l.y += 20

	l.mastheadLine("TO:", opts.Recipient)
	l.mastheadLine("FROM:", opts.Sender)
	l.mastheadLine("DATE:", opts.Date.Format("January 2, 2006"))
	l.mastheadLine("RE:", opts.Title)

	l.y += 3
	l.rule(margin, textRight)
	l.y += 10
}

// paragraph writes wrapped body text at the margin, breaking pages per line.
func (l *layout) paragraph(text string, size float64) {
	for _, line := range wrap(text, bodyWrap) {
		l.ensure(lineBreakAt)
		l.text(line, margin, size, false)
		l.y += 5
	}
}

// bullet writes one list item with a leading marker; continuation lines are
// indented under the text, not the marker.
func (l *layout) bullet(glyph, text string) {
	lines := wrap(text, bulletWrap)
	for i, line := range lines {
		l.ensure(lineBreakAt)
		if i == 0 {
			l.text("  "+glyph+" "+line, margin, 10, false)
		} else {
			l.text("      "+line, margin, 10, false)
		}
		l.y += 5
	}
}

// heading writes an underlined section heading.
func (l *layout) heading(text string) {
	l.text(text, margin, 12, true)
	l.y += 1.5
	l.rule(margin, margin+60)
	l.y += 6.5
}

// finalize stamps the footer on every page and returns the finished pages.
// It runs after the full layout so the page count is known.
func (l *layout) finalize() []Page {
	total := len(l.pages)
	for i := range l.pages {
		p := &l.pages[i]
		p.Directives = append(p.Directives,
			Directive{Op: OpRule, X: margin, Y: footerRuleY, X2: textRight},
			Directive{Op: OpText, Text: "CONFIDENTIAL", X: margin, Y: footerTextY, Size: 8},
			Directive{Op: OpText, Text: fmt.Sprintf("Page %d of %d", i+1, total), X: centerX, Y: footerTextY, Size: 8, Align: "center"},
			Directive{Op: OpText, Text: "Folding Vectors", X: textRight, Y: footerTextY, Size: 8, Align: "right"},
		)
	}
	return l.pages
}

// wrap breaks text into lines of at most width characters, splitting on
// spaces. A single word longer than the width gets its own line.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// filename derives a download name from the document title.
func filename(title, suffix string) string {
	return whitespaceRun.ReplaceAllString(title, "_") + suffix
}
