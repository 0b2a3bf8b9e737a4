package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/foldingvectors/prism/internal/analyzer"
	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/normalize"
	"github.com/foldingvectors/prism/internal/registry"
	"github.com/foldingvectors/prism/internal/store"
	"github.com/foldingvectors/prism/internal/synthesis"
)

const defaultListLimit = 20

type analyzeRequest struct {
	Document  string   `json:"document"`
	Selectors []string `json:"perspectives"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, email string) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode analyze request"))
		return
	}

	analysis, err := s.runner.Analyze(r.Context(), analyzer.Request{
		OwnerEmail: email,
		Document:   req.Document,
		Selectors:  req.Selectors,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, analysis)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request, email string) {
	limit := queryInt(r, "limit", defaultListLimit)
	offset := queryInt(r, "offset", 0)

	// one extra row decides hasMore without a count query
	sums, err := s.store.ListAnalyses(r.Context(), store.AnalysisFilter{
		OwnerEmail: email,
		Limit:      limit + 1,
		Offset:     offset,
	})
	if err != nil {
		fail(w, err)
		return
	}

	hasMore := len(sums) > limit
	if hasMore {
		sums = sums[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": sums,
		"hasMore":  hasMore,
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request, email string) {
	analysis, err := s.store.GetAnalysis(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleRenameAnalysis(w http.ResponseWriter, r *http.Request, email string) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode rename request"))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, eris.New("server: title is required"))
		return
	}

	if err := s.store.RenameAnalysis(r.Context(), chi.URLParam(r, "id"), email, title); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.store.DeleteAnalysis(r.Context(), chi.URLParam(r, "id"), email); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSynthesis(w http.ResponseWriter, r *http.Request, email string) {
	analysis, err := s.store.GetAnalysis(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.synthesize(r.Context(), analysis))
}

// synthesize re-derives the cross-perspective report from the stored raw
// completions.
func (s *Server) synthesize(ctx context.Context, analysis *model.Analysis) synthesis.Report {
	inputs := make([]synthesis.Input, 0, len(analysis.Selectors))
	for _, sel := range analysis.Selectors {
		raw, ok := analysis.Results[sel]
		if !ok {
			continue
		}
		inputs = append(inputs, synthesis.Input{
			Selector: sel,
			Name:     s.displayName(ctx, analysis.OwnerEmail, sel),
			Result:   normalize.Parse(raw),
		})
	}
	return synthesis.Synthesize(inputs)
}

// displayName resolves a selector to its human name. Custom perspectives that
// have since been deleted keep a generic label rather than failing the view.
func (s *Server) displayName(ctx context.Context, ownerEmail, selector string) string {
	if model.IsCustomSelector(selector) {
		cp, err := s.store.GetCustomPerspective(ctx, model.CustomID(selector), ownerEmail)
		if err != nil {
			return "Custom Perspective"
		}
		return cp.Name
	}
	if p, ok := registry.Resolve(selector); ok {
		return p.Name
	}
	return normalize.Label(selector)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
