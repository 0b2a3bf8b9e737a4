package export

import (
	"fmt"
	"strings"

	"github.com/foldingvectors/prism/internal/normalize"
)

// Section is one perspective's contribution to a memo: its display name and
// normalized result, in the order the analysis listed its selectors.
type Section struct {
	Name   string
	Result normalize.Result
}

// Memo lays out the tabular analysis memo: masthead, then one numbered
// section per perspective walking every normalized field. Perspectives whose
// completion failed to parse are skipped entirely; their raw fallback text
// never enters the formatted document.
func Memo(opts Options, sections []Section) Document {
	opts.applyDefaults("Multi-Perspective Analysis")

	l := newLayout()
	l.masthead("MEMORANDUM", opts)

	num := 0
	for _, sec := range sections {
		if !sec.Result.Parsed {
			continue
		}
		num++

		l.ensure(sectionBreakAt)
		l.heading(fmt.Sprintf("%d. %s", num, strings.ToUpper(sec.Name)))

		for _, f := range sec.Result.Ordered() {
			l.ensure(fieldBreakAt)
			l.text(normalize.Label(f.Key), margin, 10, true)
			l.y += 5

			if f.Value.Kind == normalize.KindList {
				glyph := normalize.Glyph(f.Key)
				for _, item := range f.Value.List {
					l.bullet(glyph, item)
				}
			} else {
				l.paragraph(f.Value.Scalar, 10)
			}
			l.y += 3
		}
		l.y += 5
	}

	return Document{
		Title:    opts.Title,
		Filename: filename(opts.Title, "_Memo.pdf"),
		Pages:    l.finalize(),
	}
}
