package server

import (
	"context"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/foldingvectors/prism/internal/export"
	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/normalize"
)

func (s *Server) handleExportMemo(w http.ResponseWriter, r *http.Request, email string) {
	analysis, err := s.store.GetAnalysis(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		fail(w, err)
		return
	}

	opts := s.exportOptions()
	opts.Title = analysis.Title
	doc := export.Memo(opts, s.sections(r.Context(), analysis))
	writeDocument(w, r, doc)
}

func (s *Server) handleExportSynthesis(w http.ResponseWriter, r *http.Request, email string) {
	analysis, err := s.store.GetAnalysis(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		fail(w, err)
		return
	}

	opts := s.exportOptions()
	opts.Title = analysis.Title
	doc := export.SynthesisReport(opts, s.synthesize(r.Context(), analysis))
	writeDocument(w, r, doc)
}

func (s *Server) handleExportScores(w http.ResponseWriter, r *http.Request, email string) {
	analysis, err := s.store.GetAnalysis(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		fail(w, err)
		return
	}
	report := s.synthesize(r.Context(), analysis)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.ScoreWorkbookFilename(analysis.Title)))
	if err := export.WriteScoreWorkbook(w, analysis.Title, report); err != nil {
		fail(w, err)
	}
}

// sections builds the memo input in selector order.
func (s *Server) sections(ctx context.Context, analysis *model.Analysis) []export.Section {
	out := make([]export.Section, 0, len(analysis.Selectors))
	for _, sel := range analysis.Selectors {
		raw, ok := analysis.Results[sel]
		if !ok {
			continue
		}
		out = append(out, export.Section{
			Name:   s.displayName(ctx, analysis.OwnerEmail, sel),
			Result: normalize.Parse(raw),
		})
	}
	return out
}

// writeDocument serves a laid-out export as directives or, when asked, as
// plain text.
func writeDocument(w http.ResponseWriter, r *http.Request, doc export.Document) {
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(export.RenderText(doc)))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
