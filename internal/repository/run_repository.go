package repository

import (
	"context"
	"time"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RunRepository interface {
	BaseRepository[models.OrchestrationRun]
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.OrchestrationRun, error)
	// RequestAbort sets the abort flag. The runner observes it before the next step.
	RequestAbort(ctx context.Context, id uuid.UUID) error
	AbortRequested(ctx context.Context, id uuid.UUID) (bool, error)
	ClearLog(ctx context.Context, id uuid.UUID) error
	UpdateWorkspace(ctx context.Context, id uuid.UUID, sql *string, graph *models.WorkflowGraph) error
	// SaveProgress writes the columns the orchestration runner owns and appends
	// logged to the stored log. The abort flag is never written, and the
	// workspace (sql, workflow) only when withWorkspace is set, so API edits
	// made during a run survive.
	SaveProgress(ctx context.Context, run *models.OrchestrationRun, logged []models.LogLine, withWorkspace bool) error
}

type runRepository struct {
	BaseRepository[models.OrchestrationRun]
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{BaseRepository: NewBaseRepository[models.OrchestrationRun](db, "run"), db: db}
}

func (r *runRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.OrchestrationRun, error) {
	var out []models.OrchestrationRun
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list runs failed")
	}
	return out, nil
}

func (r *runRepository) RequestAbort(ctx context.Context, id uuid.UUID) error {
	return r.updateColumns(ctx, id, map[string]any{"abort_requested": true})
}

func (r *runRepository) AbortRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var run models.OrchestrationRun
	if err := r.db.WithContext(ctx).Select("abort_requested").First(&run, "id = ?", id).Error; err != nil {
		return false, notFoundOr(err, "run")
	}
	return run.AbortRequested, nil
}

func (r *runRepository) ClearLog(ctx context.Context, id uuid.UUID) error {
	return r.updateColumns(ctx, id, map[string]any{"log": datatypes.JSONSlice[models.LogLine]{}})
}

func (r *runRepository) UpdateWorkspace(ctx context.Context, id uuid.UUID, sql *string, graph *models.WorkflowGraph) error {
	cols := map[string]any{}
	if sql != nil {
		cols["sql"] = *sql
	}
	if graph != nil {
		cols["workflow"] = datatypes.NewJSONType(*graph)
	}
	if len(cols) == 0 {
		return appErr.New(appErr.CodeInvalid, "nothing to update")
	}
	return r.updateColumns(ctx, id, cols)
}

func (r *runRepository) SaveProgress(ctx context.Context, run *models.OrchestrationRun, logged []models.LogLine, withWorkspace bool) error {
	cols := map[string]any{
		"status":       run.Status,
		"current_step": run.CurrentStep,
		"steps":        run.Steps,
		"plan":         run.Plan,
		"files":        run.Files,
		"repo":         run.Repo,
		"deploy":       run.Deploy,
		"preview_url":  run.PreviewURL,
		"error":        run.Error,
		"project_id":   run.ProjectID,
	}
	if len(logged) > 0 {
		cols["log"] = gorm.Expr("COALESCE(log, '[]'::jsonb) || ?::jsonb", datatypes.JSONSlice[models.LogLine](logged))
	}
	if withWorkspace {
		cols["sql"] = run.SQL
		cols["workflow"] = run.Workflow
	}
	return r.updateColumns(ctx, run.ID, cols)
}

func (r *runRepository) updateColumns(ctx context.Context, id uuid.UUID, cols map[string]any) error {
	cols["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.OrchestrationRun{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update run failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "run not found")
	}
	return nil
}
