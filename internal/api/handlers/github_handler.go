package handlers

import (
	"net/http"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/services"
)

// GitHubHandler exposes repository creation, pushes and manifest writes.
type GitHubHandler struct {
	svc services.RepositoryService
}

func NewGitHubHandler(svc services.RepositoryService) *GitHubHandler {
	return &GitHubHandler{svc: svc}
}

func (h *GitHubHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.GitHubCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := h.svc.Create(r.Context(), services.CreateRepositoryInput{
		Name:        req.Name,
		Description: req.Description,
		Private:     req.Private,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, ref)
}

func (h *GitHubHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req types.GitHubPushRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sha, err := h.svc.Push(r.Context(), services.PushInput{
		Repo:        req.Repo,
		Files:       req.Files,
		Message:     req.Message,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"success": true, "sha": sha})
}

func (h *GitHubHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	var req types.GitHubMetadataRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.WriteMetadata(r.Context(), req.RepoName, req.Metadata, req.AccessToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"success": true})
}
