package export

import "strings"

// RenderText flattens a laid-out document into plain text, one page at a
// time. Rules become dashed lines; horizontal positioning is dropped. It is
// the fallback rendering for clients that cannot consume the directive form.
func RenderText(doc Document) string {
	var b strings.Builder
	for i, page := range doc.Pages {
		if i > 0 {
			b.WriteString("\f")
		}
		lastY := -1.0
		for _, d := range page.Directives {
			switch d.Op {
			case OpRule:
				if lastY >= 0 {
					b.WriteString("\n")
				}
				b.WriteString(strings.Repeat("-", 40) + "\n")
				lastY = -1
			case OpText:
				// Directives sharing a baseline are one visual line.
				if d.Y == lastY {
					b.WriteString(" " + d.Text)
					continue
				}
				if lastY >= 0 {
					b.WriteString("\n")
				}
				b.WriteString(d.Text)
				lastY = d.Y
			}
		}
		if lastY >= 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
