package types

import "github.com/aether-os/engine/internal/models"

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

type CodegenRequest struct {
	Prompt string      `json:"prompt"`
	Plan   models.Plan `json:"plan"`
}

type AutobuildPlanRequest struct {
	Prompt    string `json:"prompt"`
	ProjectID string `json:"projectId"`
}

type GitHubCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     *bool  `json:"private"`
	AccessToken string `json:"accessToken"`
}

type GitHubPushRequest struct {
	Repo        string        `json:"repo"`
	Files       []models.File `json:"files" validate:"dive"`
	Message     string        `json:"message"`
	AccessToken string        `json:"accessToken"`
}

type GitHubMetadataRequest struct {
	RepoName    string         `json:"repoName"`
	Metadata    map[string]any `json:"metadata"`
	AccessToken string         `json:"accessToken"`
}

type DeployCreateRequest struct {
	Name        string        `json:"name"`
	RepoID      int64         `json:"repoId"`
	RepoName    string        `json:"repoName"`
	Files       []models.File `json:"files"`
	AccessToken string        `json:"accessToken"`
}

type DeployPublishRequest struct {
	Name        string            `json:"name"`
	Envs        map[string]string `json:"envs"`
	AccessToken string            `json:"accessToken"`
}

type DeployAliasRequest struct {
	Name string `json:"name"`
}

type DeployLinkRequest struct {
	Name        string `json:"name"`
	Repo        string `json:"repo"`
	AccessToken string `json:"accessToken"`
}

type EvolutionApplyRequest struct {
	ProjectID   string        `json:"projectId"`
	RepoName    string        `json:"repoName"`
	Changes     []models.File `json:"changes"`
	Description string        `json:"description"`
	AccessToken string        `json:"accessToken"`
}

type EvolutionRollbackRequest struct {
	RepoName string `json:"repoName"`
	SHA      string `json:"sha"`
}

type CheckoutRequest struct {
	Plan   string `json:"plan"`
	UserID string `json:"userId"`
}

type BillingApplyRequest struct {
	SessionID string `json:"sessionId"`
}

type StartRunRequest struct {
	Name        string `json:"name" validate:"required"`
	Prompt      string `json:"prompt" validate:"required"`
	AccessToken string `json:"accessToken"`
}

type ResumeRunRequest struct {
	AccessToken string `json:"accessToken"`
}

type UpdateWorkspaceRequest struct {
	SQL      *string               `json:"sql"`
	Workflow *models.WorkflowGraph `json:"workflow"`
}
