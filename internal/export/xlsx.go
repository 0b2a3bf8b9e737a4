package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/foldingvectors/prism/internal/synthesis"
)

// ScoreWorkbook builds the synthesis score matrix as an xlsx workbook: one
// row per perspective with score, summary, and recommendation, followed by
// the composite and the detected agreements and tensions.
func ScoreWorkbook(title string, report synthesis.Report) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Synthesis")
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, "Title", title)
	addRow(sheet, "Composite Score", formatScore(report.Composite))
	addRow(sheet)

	addRow(sheet, "Perspective", "Score", "Summary", "Recommendation")
	for _, s := range report.Summaries {
		row := sheet.AddRow()
		row.AddCell().Value = s.Name
		row.AddCell().SetInt(s.Score)
		row.AddCell().Value = s.Summary
		row.AddCell().Value = s.Recommendation
	}

	addInsightRows(sheet, "Agreements", report.Agreements)
	addInsightRows(sheet, "Tensions", report.Tensions)

	return f, nil
}

// WriteScoreWorkbook renders the workbook straight to a writer, for handlers
// streaming the download.
func WriteScoreWorkbook(w io.Writer, title string, report synthesis.Report) error {
	f, err := ScoreWorkbook(title, report)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// ScoreWorkbookFilename derives the download name for the workbook.
func ScoreWorkbookFilename(title string) string {
	return filename(title, "_Scores.xlsx")
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().Value = c
	}
}

func addInsightRows(sheet *xlsx.Sheet, label string, insights []synthesis.Insight) {
	if len(insights) == 0 {
		return
	}
	addRow(sheet)
	addRow(sheet, label)
	for _, in := range insights {
		addRow(sheet, in.Text, in.Sources[0], in.Sources[1])
	}
}
