package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
)

// shareTokenBytes is the entropy behind a share link.
const shareTokenBytes = 16

func newShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", eris.Wrap(err, "server: generate share token")
	}
	return hex.EncodeToString(buf), nil
}

func (s *Server) handleIssueShare(w http.ResponseWriter, r *http.Request, email string) {
	id := chi.URLParam(r, "id")

	// reissuing keeps the existing link stable
	analysis, err := s.store.GetAnalysis(r.Context(), id, email)
	if err != nil {
		fail(w, err)
		return
	}
	if analysis.ShareToken != "" {
		writeJSON(w, http.StatusOK, map[string]string{"token": analysis.ShareToken})
		return
	}

	token, err := newShareToken()
	if err != nil {
		fail(w, err)
		return
	}
	if err := s.store.SetShareToken(r.Context(), id, email, token); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (s *Server) handleShareStatus(w http.ResponseWriter, r *http.Request, email string) {
	analysis, err := s.store.GetAnalysis(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		fail(w, err)
		return
	}
	payload := map[string]any{"shared": analysis.ShareToken != ""}
	if analysis.ShareToken != "" {
		payload["token"] = analysis.ShareToken
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleRevokeShare(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.store.ClearShareToken(r.Context(), chi.URLParam(r, "id"), email); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSharedAnalysis is the one unauthenticated read: anyone holding the
// token sees the analysis, with the owner's email withheld.
func (s *Server) handleSharedAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.store.GetSharedAnalysis(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		fail(w, err)
		return
	}
	analysis.OwnerEmail = ""
	writeJSON(w, http.StatusOK, analysis)
}
