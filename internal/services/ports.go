package services

import (
	"context"
	"time"

	"github.com/aether-os/engine/internal/architect"
	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/vercel"
	"github.com/google/uuid"
)

// Generator is the LLM client.
type Generator interface {
	Configured() bool
	Plan(ctx context.Context, prompt string) (models.Plan, error)
	Architect(ctx context.Context, prompt string) (architect.Blueprint, error)
	Codegen(ctx context.Context, prompt string, plan models.Plan) ([]models.File, error)
}

// RepoHost is the Git hosting client. An empty token means the server token.
type RepoHost interface {
	HasServerToken() bool
	CreateRepository(ctx context.Context, token string, in github.CreateRepoInput) (models.RepoRef, error)
	PushFiles(ctx context.Context, token, fullName, message string, files []models.File) (string, error)
	WriteManifest(ctx context.Context, token, fullName string, manifest any) (string, error)
	CreateEvolutionPR(ctx context.Context, token, fullName, branch, title, body string, changes []models.File) (github.PullRequest, error)
	RestoreCommit(ctx context.Context, token, fullName, sha string) (string, error)
	ListCommits(ctx context.Context, token, fullName string, limit int) ([]github.Commit, error)
	ListOwnRepositories(ctx context.Context, token string) ([]github.Repository, error)
	ReadManifest(ctx context.Context, token, fullName string, dest any) error
}

// Deployer is the deployment platform client. An empty token means the server token.
type Deployer interface {
	Configured() bool
	CreateDeployment(ctx context.Context, token string, in vercel.DeployInput) (models.Deployment, error)
	SetProjectEnv(ctx context.Context, token, name string, envs map[string]string) error
	BindCanonicalAlias(ctx context.Context, token, name string) error
	ResolveLatestURL(ctx context.Context, token, name string) (string, error)
	DisableDeploymentProtection(ctx context.Context, token, name string) error
	LinkGitRepository(ctx context.Context, token, name, repo string) error
}

// Prober checks whether a deployed URL answers.
type Prober interface {
	Reachable(ctx context.Context, raw string) bool
}

// RunDispatcher hands a run to the worker.
type RunDispatcher interface {
	Dispatch(ctx context.Context, runID uuid.UUID, accessToken string) error
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
