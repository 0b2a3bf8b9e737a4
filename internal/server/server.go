// Package server exposes the analysis service over HTTP: running analyses,
// browsing and sharing results, managing custom perspectives, and exporting
// memos and synthesis reports.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foldingvectors/prism/internal/analyzer"
	"github.com/foldingvectors/prism/internal/export"
	"github.com/foldingvectors/prism/internal/identity"
	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/quota"
	"github.com/foldingvectors/prism/internal/store"
)

// Runner runs one analysis batch. Satisfied by *analyzer.Analyzer.
type Runner interface {
	Analyze(ctx context.Context, req analyzer.Request) (*model.Analysis, error)
}

// Config carries the server's tunables.
type Config struct {
	AllowedOrigins []string
	ExportSender   string
	ExportTo       string
}

// Server routes API requests to the analysis engine and the store.
type Server struct {
	router   chi.Router
	store    store.Store
	runner   Runner
	identity identity.Resolver
	cfg      Config
}

// New wires the full route table.
func New(st store.Store, runner Runner, resolver identity.Resolver, cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    st,
		runner:   runner,
		identity: resolver,
		cfg:      cfg,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", identity.DefaultHeader},
		AllowCredentials: true,
	}))
	s.router.Use(requestLogger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/api/analyze", s.withCaller(s.handleAnalyze))

	s.router.Get("/api/analyses", s.withCaller(s.handleListAnalyses))
	s.router.Get("/api/analyses/{id}", s.withCaller(s.handleGetAnalysis))
	s.router.Patch("/api/analyses/{id}", s.withCaller(s.handleRenameAnalysis))
	s.router.Delete("/api/analyses/{id}", s.withCaller(s.handleDeleteAnalysis))
	s.router.Get("/api/analyses/{id}/synthesis", s.withCaller(s.handleSynthesis))

	s.router.Post("/api/analyses/{id}/share", s.withCaller(s.handleIssueShare))
	s.router.Get("/api/analyses/{id}/share", s.withCaller(s.handleShareStatus))
	s.router.Delete("/api/analyses/{id}/share", s.withCaller(s.handleRevokeShare))
	s.router.Get("/api/shared/{token}", s.handleSharedAnalysis)

	s.router.Get("/api/analyses/{id}/export/memo", s.withCaller(s.handleExportMemo))
	s.router.Get("/api/analyses/{id}/export/synthesis", s.withCaller(s.handleExportSynthesis))
	s.router.Get("/api/analyses/{id}/export/scores", s.withCaller(s.handleExportScores))

	s.router.Get("/api/perspectives", s.handlePerspectiveCatalog)
	s.router.Get("/api/perspectives/custom", s.withCaller(s.handleListCustom))
	s.router.Post("/api/perspectives/custom", s.withCaller(s.handleCreateCustom))
	s.router.Get("/api/perspectives/custom/{id}", s.withCaller(s.handleGetCustom))
	s.router.Put("/api/perspectives/custom/{id}", s.withCaller(s.handleUpdateCustom))
	s.router.Delete("/api/perspectives/custom/{id}", s.withCaller(s.handleDeleteCustom))
}

// callerHandler is a handler that already knows who is asking.
type callerHandler func(w http.ResponseWriter, r *http.Request, email string)

func (s *Server) withCaller(h callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := s.identity.Resolve(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		h(w, r, email)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", r.RemoteAddr))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		zap.L().Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// fail maps domain errors onto HTTP statuses.
func fail(w http.ResponseWriter, err error) {
	var quotaErr *quota.ExceededError
	var selectorErr *analyzer.UnknownSelectorError
	switch {
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": quotaErr.Error(),
			"limit": quotaErr.Limit,
			"used":  quotaErr.Used,
		})
	case errors.As(err, &selectorErr),
		eris.Is(err, analyzer.ErrEmptyDocument),
		eris.Is(err, analyzer.ErrNoSelectors):
		writeError(w, http.StatusBadRequest, err)
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case eris.Is(err, identity.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) exportOptions() export.Options {
	return export.Options{Recipient: s.cfg.ExportTo, Sender: s.cfg.ExportSender}
}
