package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeOrchestrationRun drives one orchestration run to completion.
const TypeOrchestrationRun = "orchestration:run"

// OrchestrationPayload is the task payload. The access token is carried here
// rather than stored with the run.
type OrchestrationPayload struct {
	RunID       string `json:"run_id"`
	AccessToken string `json:"access_token,omitempty"`
}

// NewOrchestrationTask builds a task that is never retried automatically;
// a failed run is resumed explicitly.
func NewOrchestrationTask(runID uuid.UUID, accessToken string, timeout time.Duration) (*asynq.Task, error) {
	b, err := json.Marshal(OrchestrationPayload{RunID: runID.String(), AccessToken: accessToken})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "encode orchestration payload")
	}
	return asynq.NewTask(TypeOrchestrationRun, b, asynq.MaxRetry(0), asynq.Timeout(timeout)), nil
}

// Enqueuer is the subset of *asynq.Client used to dispatch runs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher enqueues orchestration runs.
type Dispatcher struct {
	client Enqueuer
	// timeout bounds the whole task; each step has its own shorter deadline.
	timeout time.Duration
}

func NewDispatcher(client Enqueuer, timeout time.Duration) *Dispatcher {
	return &Dispatcher{client: client, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, runID uuid.UUID, accessToken string) error {
	if d.client == nil {
		return appErr.New(appErr.CodeUnavailable, "job queue not configured")
	}
	task, err := NewOrchestrationTask(runID, accessToken, d.timeout)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "enqueue orchestration run failed")
	}
	logger.L().Info("orchestration run enqueued", zap.String("run_id", runID.String()), zap.String("task_id", info.ID))
	return nil
}

// Executor runs an orchestration to a terminal status.
type Executor interface {
	Execute(ctx context.Context, id uuid.UUID, accessToken string) (*models.OrchestrationRun, error)
}

// OrchestrationTaskHandler handles orchestration tasks on the worker.
type OrchestrationTaskHandler struct {
	runner Executor
}

func NewOrchestrationTaskHandler(runner Executor) *OrchestrationTaskHandler {
	return &OrchestrationTaskHandler{runner: runner}
}

func (h *OrchestrationTaskHandler) HandleRun(ctx context.Context, t *asynq.Task) error {
	var p OrchestrationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid orchestration task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := uuid.Parse(p.RunID)
	if err != nil {
		logger.L().Error("invalid run id in task", zap.Error(err))
		return fmt.Errorf("parse run id: %v: %w", err, asynq.SkipRetry)
	}

	logger.L().Info("handling orchestration task", zap.String("run_id", id.String()))
	run, err := h.runner.Execute(ctx, id, p.AccessToken)
	if err != nil {
		logger.L().Error("orchestration run aborted by storage error", zap.String("run_id", id.String()), zap.Error(err))
		return err
	}
	logger.L().Info("orchestration task done", zap.String("run_id", id.String()), zap.String("status", run.Status))
	return nil
}
