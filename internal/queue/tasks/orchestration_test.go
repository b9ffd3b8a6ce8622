package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, id uuid.UUID, accessToken string) (*models.OrchestrationRun, error) {
	args := m.Called(ctx, id, accessToken)
	if v := args.Get(0); v != nil {
		return v.(*models.OrchestrationRun), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if v := args.Get(0); v != nil {
		return v.(*asynq.TaskInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestOrchestrationTaskHandler_HandleRun(t *testing.T) {
	runID := uuid.New()
	exec := &mockExecutor{}
	handler := NewOrchestrationTaskHandler(exec)

	exec.On("Execute", mock.Anything, runID, "gho_token").
		Return(&models.OrchestrationRun{ID: runID, Status: models.RunFailed}, nil).Once()

	task, err := NewOrchestrationTask(runID, "gho_token", time.Minute)
	require.NoError(t, err)

	// A failed run is still a handled task: nothing to retry.
	require.NoError(t, handler.HandleRun(context.Background(), task))
	exec.AssertExpectations(t)
}

func TestOrchestrationTaskHandler_StorageErrorPropagates(t *testing.T) {
	runID := uuid.New()
	exec := &mockExecutor{}
	handler := NewOrchestrationTaskHandler(exec)
	exec.On("Execute", mock.Anything, runID, "").Return(nil, errors.New("db down")).Once()

	task, err := NewOrchestrationTask(runID, "", time.Minute)
	require.NoError(t, err)
	require.EqualError(t, handler.HandleRun(context.Background(), task), "db down")
}

func TestOrchestrationTaskHandler_BadPayloadSkipsRetry(t *testing.T) {
	handler := NewOrchestrationTaskHandler(&mockExecutor{})

	err := handler.HandleRun(context.Background(), asynq.NewTask(TypeOrchestrationRun, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	b, _ := json.Marshal(OrchestrationPayload{RunID: "nope"})
	err = handler.HandleRun(context.Background(), asynq.NewTask(TypeOrchestrationRun, b))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDispatcher(t *testing.T) {
	runID := uuid.New()
	q := &mockEnqueuer{}
	q.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p OrchestrationPayload
		return task.Type() == TypeOrchestrationRun &&
			json.Unmarshal(task.Payload(), &p) == nil &&
			p.RunID == runID.String() && p.AccessToken == "tok"
	})).Return(&asynq.TaskInfo{ID: "t1"}, nil).Once()

	require.NoError(t, NewDispatcher(q, time.Minute).Dispatch(context.Background(), runID, "tok"))
	q.AssertExpectations(t)
}

func TestDispatcher_Errors(t *testing.T) {
	err := NewDispatcher(nil, time.Minute).Dispatch(context.Background(), uuid.New(), "")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))

	q := &mockEnqueuer{}
	q.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	err = NewDispatcher(q, time.Minute).Dispatch(context.Background(), uuid.New(), "")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))
}
