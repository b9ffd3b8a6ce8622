package handlers

import (
	"net/http"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/services"
)

type AIHandler struct {
	svc services.ArchitectService
}

func NewAIHandler(svc services.ArchitectService) *AIHandler {
	return &AIHandler{svc: svc}
}

// Plan godoc
// @Summary      Generate a project plan
// @Description  Simulated after a delay when no LLM key is configured.
// @Tags         ai
// @Accept       json
// @Produce      json
// @Param        body  body      types.PromptRequest  true  "prompt"
// @Success      200   {object}  types.APIResponse
// @Failure      400   {object}  types.APIResponse
// @Failure      500   {object}  types.APIResponse
// @Router       /ai/plan [post]
func (h *AIHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req types.PromptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.svc.Plan(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, plan)
}

// Architect godoc
// @Summary  Generate a database blueprint, falling back to a fixture
// @Tags     ai
// @Param    body  body      types.PromptRequest  true  "prompt"
// @Success  200   {object}  types.APIResponse
// @Router   /ai/architect [post]
func (h *AIHandler) Architect(w http.ResponseWriter, r *http.Request) {
	var req types.PromptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bp, err := h.svc.Architect(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, bp)
}

func (h *AIHandler) Codegen(w http.ResponseWriter, r *http.Request) {
	var req types.CodegenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	files, err := h.svc.Codegen(r.Context(), req.Prompt, req.Plan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"files": files})
}

// AutobuildPlan godoc
// @Summary  Diff a prompt's tables against a project's known schema
// @Tags     ai
// @Param    body  body      types.AutobuildPlanRequest  true  "prompt and project"
// @Success  200   {object}  types.APIResponse
// @Router   /autobuild/plan [post]
func (h *AIHandler) AutobuildPlan(w http.ResponseWriter, r *http.Request) {
	var req types.AutobuildPlanRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.svc.AutobuildPlan(r.Context(), req.Prompt, req.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"success": true, "plan": plan})
}
