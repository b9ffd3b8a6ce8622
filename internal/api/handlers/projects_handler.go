package handlers

import (
	"net/http"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/services"
)

type ProjectsHandler struct {
	svc services.ProjectService
}

func NewProjectsHandler(svc services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{svc: svc}
}

// List godoc
// @Summary      List the caller's projects
// @Description  Unreachable deployment URLs are healed. An empty list triggers an import from the Git host.
// @Tags         projects
// @Security     BearerAuth
// @Success      200  {object}  types.APIResponse
// @Failure      401  {object}  types.APIResponse
// @Router       /projects [get]
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.svc.ListProjects(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    map[string]any{"projects": items},
		Meta:    &types.Meta{Total: int64(len(items))},
	})
}
