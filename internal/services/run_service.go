package services

import (
	"context"
	"strings"
	"time"

	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/repository"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"github.com/aether-os/engine/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunService starts orchestration runs and manages the workspace each run
// carries (SQL, workflow graph, log).
type RunService interface {
	Start(ctx context.Context, userID uuid.UUID, in StartRunInput) (*models.OrchestrationRun, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.OrchestrationRun, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.OrchestrationRun, error)
	Abort(ctx context.Context, userID, id uuid.UUID) (*models.OrchestrationRun, error)
	Resume(ctx context.Context, userID, id uuid.UUID, accessToken string) (*models.OrchestrationRun, error)
	UpdateWorkspace(ctx context.Context, userID, id uuid.UUID, in UpdateWorkspaceInput) (*models.OrchestrationRun, error)
	ResetLog(ctx context.Context, userID, id uuid.UUID) error
}

type StartRunInput struct {
	Name        string `json:"name" validate:"required"`
	Prompt      string `json:"prompt" validate:"required"`
	AccessToken string `json:"accessToken,omitempty"`
}

// UpdateWorkspaceInput replaces whichever fields are set.
type UpdateWorkspaceInput struct {
	SQL      *string               `json:"sql,omitempty"`
	Workflow *models.WorkflowGraph `json:"workflow,omitempty"`
}

const (
	defaultSlug  = "aether-app"
	runListLimit = 20
)

type runService struct {
	runs       repository.RunRepository
	dispatcher RunDispatcher
	// staleAfter is how long a running run may go without an update before
	// it is considered orphaned by a dead worker.
	staleAfter time.Duration
	now        func() time.Time
}

func NewRunService(runs repository.RunRepository, dispatcher RunDispatcher, staleAfter time.Duration) RunService {
	return &runService{
		runs:       runs,
		dispatcher: dispatcher,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ RunService = (*runService)(nil)

func (s *runService) Start(ctx context.Context, userID uuid.UUID, in StartRunInput) (*models.OrchestrationRun, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Prompt) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "Missing name or prompt")
	}
	slug := utils.Slugify(name)
	if slug == "" {
		slug = defaultSlug
	}

	run := &models.OrchestrationRun{
		UserID: userID,
		Name:   name,
		Slug:   slug,
		Prompt: in.Prompt,
		Status: models.RunPending,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, run.ID, in.AccessToken); err != nil {
		s.markFailed(ctx, run, err)
		return nil, err
	}
	logger.ForRun(run.ID.String()).Info("run queued", zap.String("slug", slug), zap.String("user_id", userID.String()))
	return run, nil
}

// markFailed records a dispatch failure so the run does not sit pending forever.
func (s *runService) markFailed(ctx context.Context, run *models.OrchestrationRun, cause error) {
	run.Status = models.RunFailed
	run.Error = appErr.Message(cause)
	if err := s.runs.Update(ctx, run); err != nil {
		logger.ForRun(run.ID.String()).Warn("mark run failed", zap.Error(err))
	}
}

func (s *runService) Get(ctx context.Context, userID, id uuid.UUID) (*models.OrchestrationRun, error) {
	var run models.OrchestrationRun
	if err := s.runs.GetByID(ctx, id, &run); err != nil {
		return nil, err
	}
	if run.UserID != userID {
		return nil, appErr.New(appErr.CodeForbidden, "run belongs to another user")
	}
	return &run, nil
}

func (s *runService) List(ctx context.Context, userID uuid.UUID) ([]models.OrchestrationRun, error) {
	return s.runs.ListByUser(ctx, userID, runListLimit)
}

// Abort asks the worker to stop before the next step. In-flight calls finish.
func (s *runService) Abort(ctx context.Context, userID, id uuid.UUID) (*models.OrchestrationRun, error) {
	run, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if run.Terminal() {
		return nil, appErr.Newf(appErr.CodeConflict, "run is already %s", run.Status)
	}
	if err := s.runs.RequestAbort(ctx, id); err != nil {
		return nil, err
	}
	run.AbortRequested = true
	logger.ForRun(id.String()).Info("abort requested")
	return run, nil
}

// Resume re-queues a failed, aborted or stuck run. Pending and running runs
// count as stuck once they have not been updated for staleAfter. The worker
// skips steps that already completed.
func (s *runService) Resume(ctx context.Context, userID, id uuid.UUID, accessToken string) (*models.OrchestrationRun, error) {
	run, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	switch run.Status {
	case models.RunSucceeded:
		return nil, appErr.New(appErr.CodeConflict, "run already succeeded")
	case models.RunPending:
		// Still queued unless the task was lost.
		if s.now().Sub(run.UpdatedAt) < s.staleAfter {
			return nil, appErr.New(appErr.CodeConflict, "run is queued")
		}
	case models.RunRunning:
		if s.now().Sub(run.UpdatedAt) < s.staleAfter {
			return nil, appErr.New(appErr.CodeConflict, "run is in progress")
		}
	}

	run.Status = models.RunRunning
	run.AbortRequested = false
	run.Error = ""
	if err := s.runs.Update(ctx, run); err != nil {
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, run.ID, accessToken); err != nil {
		s.markFailed(ctx, run, err)
		return nil, err
	}
	logger.ForRun(id.String()).Info("run resumed", zap.Int("completed_steps", len(run.Steps)))
	return run, nil
}

func (s *runService) UpdateWorkspace(ctx context.Context, userID, id uuid.UUID, in UpdateWorkspaceInput) (*models.OrchestrationRun, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.runs.UpdateWorkspace(ctx, id, in.SQL, in.Workflow); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

func (s *runService) ResetLog(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.runs.ClearLog(ctx, id)
}
