package repository

import (
	"context"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateDeploymentURL(ctx context.Context, id uuid.UUID, url string) error
	CreateBatch(ctx context.Context, projects []models.Project) error
	GetByRepoName(ctx context.Context, repoName string) (*models.Project, error)
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db, "project"), db: db}
}

func (r *projectRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects by user failed")
	}
	return out, nil
}

func (r *projectRepository) UpdateDeploymentURL(ctx context.Context, id uuid.UUID, url string) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("deployment_url", url)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update deployment url failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "project not found")
	}
	return nil
}

func (r *projectRepository) CreateBatch(ctx context.Context, projects []models.Project) error {
	if len(projects) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&projects).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "insert projects failed")
	}
	return nil
}

func (r *projectRepository) GetByRepoName(ctx context.Context, repoName string) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).Where("repo_name = ?", repoName).Order("created_at DESC").First(&p).Error; err != nil {
		return nil, notFoundOr(err, "project")
	}
	return &p, nil
}
