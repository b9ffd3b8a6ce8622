package handlers

import (
	"net/http"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/services"
)

type DeployHandler struct {
	svc services.DeploymentService
}

func NewDeployHandler(svc services.DeploymentService) *DeployHandler {
	return &DeployHandler{svc: svc}
}

// Create godoc
// @Summary  Deploy a project from files or a linked repository
// @Tags     deploy
// @Param    body  body      types.DeployCreateRequest  true  "deployment"
// @Success  200   {object}  types.APIResponse
// @Failure  400   {object}  types.APIResponse
// @Router   /deploy/create [post]
func (h *DeployHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.DeployCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dep, err := h.svc.Create(r.Context(), services.CreateDeploymentInput{
		Name:        req.Name,
		RepoID:      req.RepoID,
		RepoName:    req.RepoName,
		Files:       req.Files,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"success":      true,
		"deployUrl":    dep.DeployURL,
		"dashboardUrl": dep.DashboardURL,
		"projectId":    dep.ProjectID,
		"projectName":  dep.ProjectName,
	})
}

// Publish always answers 200 once the name is valid; failed actions are
// listed in details.errors.
func (h *DeployHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req types.DeployPublishRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Publish(r.Context(), services.PublishInput{Name: req.Name, Envs: req.Envs, AccessToken: req.AccessToken})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *DeployHandler) Alias(w http.ResponseWriter, r *http.Request) {
	var req types.DeployAliasRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	alias, err := h.svc.Alias(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"success": true, "alias": alias})
}

func (h *DeployHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req types.DeployLinkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Link(r.Context(), req.Name, req.Repo, req.AccessToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Repository linked. Pushes to main will auto-deploy.",
	})
}
