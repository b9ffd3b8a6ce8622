package services

import (
	"context"
	"strings"

	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"go.uber.org/zap"
)

// RepositoryService exposes the Git hosting operations used by the editor.
type RepositoryService interface {
	Create(ctx context.Context, in CreateRepositoryInput) (models.RepoRef, error)
	Push(ctx context.Context, in PushInput) (string, error)
	WriteMetadata(ctx context.Context, repoName string, metadata map[string]any, accessToken string) error
}

type CreateRepositoryInput struct {
	Name        string
	Description string
	// Private defaults to true.
	Private     *bool
	AccessToken string
}

type PushInput struct {
	Repo        string
	Files       []models.File
	Message     string
	AccessToken string
}

type repositoryService struct {
	repos RepoHost
}

func NewRepositoryService(repos RepoHost) RepositoryService {
	return &repositoryService{repos: repos}
}

var _ RepositoryService = (*repositoryService)(nil)

func (s *repositoryService) Create(ctx context.Context, in CreateRepositoryInput) (models.RepoRef, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.RepoRef{}, appErr.New(appErr.CodeInvalid, "Missing repo name")
	}
	desc := in.Description
	if desc == "" {
		desc = "Created by Orchestrator"
	}
	private := true
	if in.Private != nil {
		private = *in.Private
	}
	ref, err := s.repos.CreateRepository(ctx, in.AccessToken, github.CreateRepoInput{Name: in.Name, Description: desc, Private: private})
	if err != nil {
		logger.L().Error("create repository failed", zap.String("name", in.Name), zap.Error(err))
		return models.RepoRef{}, err
	}
	logger.L().Info("repository created", zap.String("repo", ref.Name))
	return ref, nil
}

func (s *repositoryService) Push(ctx context.Context, in PushInput) (string, error) {
	if _, _, err := github.SplitRepo(in.Repo); err != nil {
		return "", err
	}
	if len(in.Files) == 0 {
		return "", appErr.New(appErr.CodeInvalid, "No files to push")
	}
	msg := in.Message
	if msg == "" {
		msg = "Automated commit by Orchestrator"
	}
	sha, err := s.repos.PushFiles(ctx, in.AccessToken, in.Repo, msg, in.Files)
	if err != nil {
		logger.L().Error("push failed", zap.String("repo", in.Repo), zap.Error(err))
		return "", err
	}
	return sha, nil
}

func (s *repositoryService) WriteMetadata(ctx context.Context, repoName string, metadata map[string]any, accessToken string) error {
	if repoName == "" || len(metadata) == 0 {
		return appErr.New(appErr.CodeInvalid, "Missing repoName or metadata")
	}
	if _, err := s.repos.WriteManifest(ctx, accessToken, repoName, metadata); err != nil {
		logger.L().Error("write project metadata failed", zap.String("repo", repoName), zap.Error(err))
		return err
	}
	return nil
}
