package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aether-os/engine/internal/architect"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/repository"
	"github.com/aether-os/engine/internal/vercel"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"github.com/aether-os/engine/pkg/utils"
	"go.uber.org/zap"
)

// DeploymentService publishes projects on the deployment platform.
type DeploymentService interface {
	Create(ctx context.Context, in CreateDeploymentInput) (models.Deployment, error)
	Publish(ctx context.Context, in PublishInput) (*PublishResult, error)
	Alias(ctx context.Context, name string) (string, error)
	Link(ctx context.Context, name, repo, accessToken string) error
}

type CreateDeploymentInput struct {
	Name        string
	RepoID      int64
	RepoName    string
	Files       []models.File
	AccessToken string
}

type PublishInput struct {
	Name string
	// Envs override the server defaults key by key.
	Envs        map[string]string
	AccessToken string
}

// PublishResult reports each publish action separately; the call itself
// succeeds even when some actions failed.
type PublishResult struct {
	Success bool           `json:"success"`
	URL     string         `json:"url"`
	Details PublishDetails `json:"details"`
}

type PublishDetails struct {
	Env        bool     `json:"env"`
	Protection bool     `json:"protection"`
	Alias      bool     `json:"alias"`
	Errors     []string `json:"errors"`
}

type deploymentService struct {
	deployer   Deployer
	metadata   repository.MetadataRepository
	projectEnv map[string]string
}

func NewDeploymentService(deployer Deployer, metadata repository.MetadataRepository, projectEnv map[string]string) DeploymentService {
	return &deploymentService{deployer: deployer, metadata: metadata, projectEnv: projectEnv}
}

var _ DeploymentService = (*deploymentService)(nil)

func deploymentName(raw string) (string, error) {
	name := utils.DeploymentName(strings.TrimSpace(raw))
	if name == "" {
		return "", appErr.New(appErr.CodeInvalid, "Missing project name")
	}
	return name, nil
}

// Create deploys, then best-effort forwards the server env and records
// initial metadata.
func (s *deploymentService) Create(ctx context.Context, in CreateDeploymentInput) (models.Deployment, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Deployment{}, appErr.New(appErr.CodeInvalid, "Missing required field: name")
	}
	name := utils.DeploymentName(in.Name)
	dep, err := s.deployer.CreateDeployment(ctx, in.AccessToken, vercel.DeployInput{
		Name:     name,
		RepoID:   in.RepoID,
		RepoName: in.RepoName,
		Files:    in.Files,
	})
	if err != nil {
		logger.L().Error("create deployment failed", zap.String("name", name), zap.Error(err))
		return models.Deployment{}, err
	}

	envTarget := dep.ProjectName
	if envTarget == "" {
		envTarget = name
	}
	if err := s.deployer.SetProjectEnv(ctx, in.AccessToken, envTarget, s.projectEnv); err != nil {
		logger.L().Warn("project env not applied", zap.String("project", envTarget), zap.Error(err))
	}
	key := architect.MetadataKey(dep.ProjectID, in.RepoID, in.Name)
	if err := s.metadata.Upsert(ctx, architect.InitialMetadata(key, in.Name)); err != nil {
		logger.L().Warn("metadata save failed", zap.String("project_id", key), zap.Error(err))
	}

	logger.L().Info("deployment created", zap.String("project", dep.ProjectName), zap.String("url", dep.DeployURL))
	return dep, nil
}

func (s *deploymentService) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	name, err := deploymentName(in.Name)
	if err != nil {
		return nil, err
	}
	envs := make(map[string]string, len(s.projectEnv)+1)
	for k, v := range s.projectEnv {
		envs[k] = v
	}
	for k := range s.projectEnv {
		if v := in.Envs[k]; v != "" {
			envs[k] = v
		}
	}
	if v := in.Envs["VERCEL_ACCESS_TOKEN"]; v != "" {
		envs["VERCEL_ACCESS_TOKEN"] = v
	}

	res := &PublishResult{Success: true, URL: "https://" + vercel.CanonicalAlias(name)}
	res.Details.Errors = []string{}
	record := func(label string, err error) bool {
		if err == nil {
			return true
		}
		logger.L().Warn("publish action failed", zap.String("action", label), zap.String("project", name), zap.Error(err))
		res.Details.Errors = append(res.Details.Errors, fmt.Sprintf("%s: %s", label, appErr.Message(err)))
		return false
	}
	res.Details.Env = record("Env", s.deployer.SetProjectEnv(ctx, in.AccessToken, name, envs))
	res.Details.Protection = record("Protection", s.deployer.DisableDeploymentProtection(ctx, in.AccessToken, name))
	res.Details.Alias = record("Alias", s.deployer.BindCanonicalAlias(ctx, in.AccessToken, name))
	return res, nil
}

func (s *deploymentService) Alias(ctx context.Context, raw string) (string, error) {
	name, err := deploymentName(raw)
	if err != nil {
		return "", err
	}
	if err := s.deployer.BindCanonicalAlias(ctx, "", name); err != nil {
		return "", err
	}
	return vercel.CanonicalAlias(name), nil
}

func (s *deploymentService) Link(ctx context.Context, raw, repo, accessToken string) error {
	name, err := deploymentName(raw)
	if err != nil {
		return err
	}
	if !strings.Contains(repo, "/") {
		return appErr.New(appErr.CodeInvalid, "Invalid repo")
	}
	return s.deployer.LinkGitRepository(ctx, accessToken, name, repo)
}
