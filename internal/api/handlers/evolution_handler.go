package handlers

import (
	"net/http"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/services"
)

type EvolutionHandler struct {
	svc services.EvolutionService
}

func NewEvolutionHandler(svc services.EvolutionService) *EvolutionHandler {
	return &EvolutionHandler{svc: svc}
}

// Apply godoc
// @Summary   Open an evolution pull request
// @Tags      evolution
// @Security  BearerAuth
// @Param     body  body      types.EvolutionApplyRequest  true  "changes"
// @Success   200   {object}  types.APIResponse
// @Router    /evolution/apply [post]
func (h *EvolutionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req types.EvolutionApplyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	prURL, err := h.svc.Apply(r.Context(), services.ApplyEvolutionInput{
		ProjectID:   req.ProjectID,
		RepoName:    req.RepoName,
		Changes:     req.Changes,
		Description: req.Description,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"success": true, "prUrl": prURL})
}

func (h *EvolutionHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.History(r.Context(), r.URL.Query().Get("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"history": history})
}

func (h *EvolutionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req types.EvolutionRollbackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sha, err := h.svc.Rollback(r.Context(), req.RepoName, req.SHA)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"success": true, "newSha": sha})
}

func (h *EvolutionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := h.svc.Stats(r.Context(), q.Get("url"), q.Get("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
