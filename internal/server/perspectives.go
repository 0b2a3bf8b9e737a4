package server

import (
	"encoding/json"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/registry"
)

const maxPerspectiveNameLen = 100

// handlePerspectiveCatalog lists the built-in perspectives grouped by
// category, in catalog order.
func (s *Server) handlePerspectiveCatalog(w http.ResponseWriter, r *http.Request) {
	type group struct {
		ID           registry.Category      `json:"id"`
		Name         string                 `json:"name"`
		Description  string                 `json:"description"`
		Perspectives []registry.Perspective `json:"perspectives"`
	}

	groups := make([]group, 0, len(registry.Categories))
	for _, c := range registry.Categories {
		info, _ := registry.Describe(c)
		groups = append(groups, group{
			ID:           c,
			Name:         info.Name,
			Description:  info.Description,
			Perspectives: registry.ByCategory(c),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": groups,
		"defaults":   registry.DefaultSelectors,
	})
}

type customPerspectiveRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

func (r customPerspectiveRequest) validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return eris.New("server: perspective name is required")
	}
	if len(name) > maxPerspectiveNameLen {
		return eris.Errorf("server: perspective name exceeds %d characters", maxPerspectiveNameLen)
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return eris.New("server: perspective prompt is required")
	}
	return nil
}

func (s *Server) handleCreateCustom(w http.ResponseWriter, r *http.Request, email string) {
	var req customPerspectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode perspective request"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	count, err := s.store.CountCustomPerspectives(r.Context(), email)
	if err != nil {
		fail(w, err)
		return
	}
	if count >= model.MaxCustomPerspectives {
		writeError(w, http.StatusConflict,
			eris.Errorf("server: custom perspective limit of %d reached", model.MaxCustomPerspectives))
		return
	}

	cp := &model.CustomPerspective{
		OwnerEmail: email,
		Name:       strings.TrimSpace(req.Name),
		Prompt:     strings.TrimSpace(req.Prompt),
	}
	if err := s.store.CreateCustomPerspective(r.Context(), cp); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleListCustom(w http.ResponseWriter, r *http.Request, email string) {
	list, err := s.store.ListCustomPerspectives(r.Context(), email)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"perspectives": list})
}

func (s *Server) handleGetCustom(w http.ResponseWriter, r *http.Request, email string) {
	cp, err := s.store.GetCustomPerspective(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleUpdateCustom(w http.ResponseWriter, r *http.Request, email string) {
	var req customPerspectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode perspective request"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cp := &model.CustomPerspective{
		ID:         chi.URLParam(r, "id"),
		OwnerEmail: email,
		Name:       strings.TrimSpace(req.Name),
		Prompt:     strings.TrimSpace(req.Prompt),
	}
	if err := s.store.UpdateCustomPerspective(r.Context(), cp); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleDeleteCustom(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.store.DeleteCustomPerspective(r.Context(), chi.URLParam(r, "id"), email); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
