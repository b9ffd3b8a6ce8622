package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/services"
)

// RunsHandler starts orchestration runs and serves their workspaces.
type RunsHandler struct {
	svc services.RunService
}

func NewRunsHandler(svc services.RunService) *RunsHandler {
	return &RunsHandler{svc: svc}
}

// Start godoc
// @Summary      Queue a project initialization run
// @Description  The run executes in the worker. Poll GET /runs/{id} for progress.
// @Tags         runs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      types.StartRunRequest  true  "project"
// @Success      202   {object}  types.APIResponse
// @Failure      400   {object}  types.APIResponse
// @Failure      503   {object}  types.APIResponse
// @Router       /runs [post]
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.StartRunRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := h.svc.Start(r.Context(), userID, services.StartRunInput{
		Name:        req.Name,
		Prompt:      req.Prompt,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusAccepted, run)
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	runs, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: runs, Meta: &types.Meta{Total: int64(len(runs))}})
}

func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withRun(w, r, func(s services.RunService, u, id uuid.UUID) (any, error) {
		return s.Get(r.Context(), u, id)
	})
}

func (h *RunsHandler) Abort(w http.ResponseWriter, r *http.Request) {
	h.withRun(w, r, func(s services.RunService, u, id uuid.UUID) (any, error) {
		return s.Abort(r.Context(), u, id)
	})
}

func (h *RunsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req types.ResumeRunRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.withRun(w, r, func(s services.RunService, u, id uuid.UUID) (any, error) {
		return s.Resume(r.Context(), u, id, req.AccessToken)
	})
}

func (h *RunsHandler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateWorkspaceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.withRun(w, r, func(s services.RunService, u, id uuid.UUID) (any, error) {
		return s.UpdateWorkspace(r.Context(), u, id, services.UpdateWorkspaceInput{SQL: req.SQL, Workflow: req.Workflow})
	})
}

func (h *RunsHandler) ResetLog(w http.ResponseWriter, r *http.Request) {
	h.withRun(w, r, func(s services.RunService, u, id uuid.UUID) (any, error) {
		if err := s.ResetLog(r.Context(), u, id); err != nil {
			return nil, err
		}
		return map[string]bool{"reset": true}, nil
	})
}

// withRun resolves the caller and the {id} parameter, then answers with
// whatever fn returns.
func (h *RunsHandler) withRun(w http.ResponseWriter, r *http.Request, fn func(s services.RunService, userID, id uuid.UUID) (any, error)) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := fn(h.svc, userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}
