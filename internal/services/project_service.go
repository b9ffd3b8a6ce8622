package services

import (
	"context"
	"time"

	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/repository"
	"github.com/aether-os/engine/internal/vercel"
	"github.com/aether-os/engine/pkg/logger"
	"github.com/aether-os/engine/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProjectService lists a user's projects, repairing stale deployment URLs and
// importing projects from the Git host when the user has none recorded.
type ProjectService interface {
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
}

type projectService struct {
	projectRepo repository.ProjectRepository
	deployer    Deployer
	repos       RepoHost
	prober      Prober
	now         func() time.Time
}

func NewProjectService(projectRepo repository.ProjectRepository, deployer Deployer, repos RepoHost, prober Prober) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		deployer:    deployer,
		repos:       repos,
		prober:      prober,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Ensure interfaces are satisfied at compile time
var _ ProjectService = (*projectService)(nil)

func (s *projectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	logger.L().Info("list projects", zap.String("user_id", userID.String()))
	projects, err := s.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(projects) > 0 {
		for i := range projects {
			s.heal(ctx, &projects[i])
		}
		return projects, nil
	}
	if !s.repos.HasServerToken() {
		return []models.Project{}, nil
	}
	return s.syncFromGitHost(ctx, userID), nil
}

// heal replaces an unreachable deployment URL with the platform's latest
// deployment URL. Every failure leaves the project as it was.
func (s *projectService) heal(ctx context.Context, p *models.Project) {
	if p.Status == "" {
		p.Status = "active"
	}
	if s.prober.Reachable(ctx, p.DeploymentURL) || !s.deployer.Configured() {
		return
	}
	resolved, err := s.deployer.ResolveLatestURL(ctx, "", utils.DeploymentName(p.Name))
	if err != nil || resolved == "" {
		logger.L().Debug("deployment url not healed", zap.String("project_id", p.ID.String()), zap.Error(err))
		return
	}
	p.DeploymentURL = resolved
	if err := s.projectRepo.UpdateDeploymentURL(ctx, p.ID, resolved); err != nil {
		logger.L().Warn("persist healed url failed", zap.String("project_id", p.ID.String()), zap.Error(err))
	}
}

// syncFromGitHost imports every repository of the server account that
// carries a project manifest.
func (s *projectService) syncFromGitHost(ctx context.Context, userID uuid.UUID) []models.Project {
	logger.L().Info("no projects recorded, syncing from git host", zap.String("user_id", userID.String()))
	repos, err := s.repos.ListOwnRepositories(ctx, "")
	if err != nil {
		logger.L().Error("auto-sync failed", zap.Error(err))
		return []models.Project{}
	}

	found := make([]models.Project, 0)
	for _, r := range repos {
		var m models.ProjectManifest
		if err := s.repos.ReadManifest(ctx, "", r.FullName, &m); err != nil {
			continue
		}
		p := models.Project{
			UserID:        userID,
			Name:          m.Name,
			RepoName:      r.FullName,
			RepoURL:       r.HTMLURL,
			DeploymentURL: m.DeployURL,
			Status:        "active",
			CreatedAt:     r.CreatedAt,
		}
		if p.Name == "" {
			p.Name = r.Name
		}
		if p.DeploymentURL == "" {
			p.DeploymentURL = "https://" + vercel.CanonicalAlias(r.Name)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now()
		}
		found = append(found, p)
	}
	if len(found) == 0 {
		return found
	}
	if err := s.projectRepo.CreateBatch(ctx, found); err != nil {
		logger.L().Error("store synced projects failed", zap.Error(err))
		return []models.Project{}
	}
	logger.L().Info("projects synced from git host", zap.Int("count", len(found)))
	return found
}
