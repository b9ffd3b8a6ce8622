package repository

import (
	"context"
	"time"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetadataRepository stores per-project build context.
type MetadataRepository interface {
	Upsert(ctx context.Context, md *models.ProjectMetadata) error
	Get(ctx context.Context, projectID string) (*models.ProjectMetadata, error)
	// SetSchemaTables records the tables known to exist for projectID.
	SetSchemaTables(ctx context.Context, projectID string, tables []string) error
	LogBuildError(ctx context.Context, projectID, message string) error
}

type metadataRepository struct {
	db *gorm.DB
}

func NewMetadataRepository(db *gorm.DB) MetadataRepository {
	return &metadataRepository{db: db}
}

func (r *metadataRepository) Upsert(ctx context.Context, md *models.ProjectMetadata) error {
	md.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "structure", "dependencies", "env_vars", "updated_at"}),
	}).Create(md).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "save project metadata failed")
	}
	return nil
}

func (r *metadataRepository) Get(ctx context.Context, projectID string) (*models.ProjectMetadata, error) {
	var md models.ProjectMetadata
	if err := r.db.WithContext(ctx).First(&md, "project_id = ?", projectID).Error; err != nil {
		return nil, notFoundOr(err, "project metadata")
	}
	return &md, nil
}

func (r *metadataRepository) SetSchemaTables(ctx context.Context, projectID string, tables []string) error {
	md := models.ProjectMetadata{
		ProjectID:    projectID,
		Name:         "project",
		SchemaTables: datatypes.JSONSlice[string](tables),
		UpdatedAt:    time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_tables", "updated_at"}),
	}).Create(&md).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "save schema tables failed")
	}
	return nil
}

func (r *metadataRepository) LogBuildError(ctx context.Context, projectID, message string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var md models.ProjectMetadata
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&md, "project_id = ?", projectID).Error; err != nil {
			return notFoundOr(err, "project metadata")
		}
		md.ErrorLogs = append(md.ErrorLogs, models.BuildErrorEntry{Timestamp: time.Now().UTC(), Message: message})
		md.LastBuildStatus = "failed"
		if err := tx.Save(&md).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "log build error failed")
		}
		return nil
	})
}
