package repository

import (
	"context"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"gorm.io/gorm"
)

type EvolutionRepository interface {
	BaseRepository[models.EvolutionRecord]
	ListRecent(ctx context.Context, projectID string, limit int) ([]models.EvolutionRecord, error)
}

type evolutionRepository struct {
	BaseRepository[models.EvolutionRecord]
	db *gorm.DB
}

func NewEvolutionRepository(db *gorm.DB) EvolutionRepository {
	return &evolutionRepository{BaseRepository: NewBaseRepository[models.EvolutionRecord](db, "evolution record"), db: db}
}

func (r *evolutionRepository) ListRecent(ctx context.Context, projectID string, limit int) ([]models.EvolutionRecord, error) {
	var out []models.EvolutionRecord
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list evolution history failed")
	}
	return out, nil
}
