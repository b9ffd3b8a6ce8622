package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aether-os/engine/internal/api/middleware"
	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/preview"
	"github.com/aether-os/engine/internal/services"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type mockRunService struct {
	mock.Mock
}

func (m *mockRunService) run(args mock.Arguments) (*models.OrchestrationRun, error) {
	r, _ := args.Get(0).(*models.OrchestrationRun)
	return r, args.Error(1)
}

func (m *mockRunService) Start(ctx context.Context, userID uuid.UUID, in services.StartRunInput) (*models.OrchestrationRun, error) {
	return m.run(m.Called(ctx, userID, in))
}

func (m *mockRunService) Get(ctx context.Context, userID, id uuid.UUID) (*models.OrchestrationRun, error) {
	return m.run(m.Called(ctx, userID, id))
}

func (m *mockRunService) List(ctx context.Context, userID uuid.UUID) ([]models.OrchestrationRun, error) {
	args := m.Called(ctx, userID)
	out, _ := args.Get(0).([]models.OrchestrationRun)
	return out, args.Error(1)
}

func (m *mockRunService) Abort(ctx context.Context, userID, id uuid.UUID) (*models.OrchestrationRun, error) {
	return m.run(m.Called(ctx, userID, id))
}

func (m *mockRunService) Resume(ctx context.Context, userID, id uuid.UUID, accessToken string) (*models.OrchestrationRun, error) {
	return m.run(m.Called(ctx, userID, id, accessToken))
}

func (m *mockRunService) UpdateWorkspace(ctx context.Context, userID, id uuid.UUID, in services.UpdateWorkspaceInput) (*models.OrchestrationRun, error) {
	return m.run(m.Called(ctx, userID, id, in))
}

func (m *mockRunService) ResetLog(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

type mockBillingService struct {
	mock.Mock
}

func (m *mockBillingService) Checkout(ctx context.Context, plan, userID, origin string) (string, error) {
	args := m.Called(ctx, plan, userID, origin)
	return args.String(0), args.Error(1)
}

func (m *mockBillingService) Verify(ctx context.Context, sessionID string) (*services.VerifyResult, error) {
	args := m.Called(ctx, sessionID)
	res, _ := args.Get(0).(*services.VerifyResult)
	return res, args.Error(1)
}

func (m *mockBillingService) Apply(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *mockBillingService) HandleTransfer(ctx context.Context, in services.TransferNotification) (*services.TransferResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*services.TransferResult)
	return res, args.Error(1)
}

func (m *mockBillingService) HandleLegacyPayment(ctx context.Context, in services.LegacyPayment) (*services.LegacyPaymentResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*services.LegacyPaymentResult)
	return res, args.Error(1)
}

func (m *mockBillingService) SetupInfo() services.SetupInfo {
	return m.Called().Get(0).(services.SetupInfo)
}

func runsRouter(svc services.RunService, user uuid.UUID) http.Handler {
	h := NewRunsHandler(svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != uuid.Nil {
				req = req.WithContext(middleware.WithUserID(req.Context(), user))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/runs", h.Start)
	r.Get("/runs/{id}", h.Get)
	r.Post("/runs/{id}/resume", h.Resume)
	r.Put("/runs/{id}/workspace", h.UpdateWorkspace)
	r.Delete("/runs/{id}/log", h.ResetLog)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, types.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var resp types.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return rr, resp
}

func TestStartRunAccepted(t *testing.T) {
	user := uuid.New()
	svc := &mockRunService{}
	svc.On("Start", mock.Anything, user, services.StartRunInput{Name: "Shop", Prompt: "sell hats", AccessToken: "gho"}).
		Return(&models.OrchestrationRun{ID: uuid.New(), Status: models.RunPending}, nil).Once()

	rr, resp := do(t, runsRouter(svc, user), http.MethodPost, "/runs", map[string]string{"name": "Shop", "prompt": "sell hats", "accessToken": "gho"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, resp.Success)
	svc.AssertExpectations(t)
}

func TestStartRunRejectsMissingPrompt(t *testing.T) {
	svc := &mockRunService{}
	rr, resp := do(t, runsRouter(svc, uuid.New()), http.MethodPost, "/runs", map[string]string{"name": "Shop"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid", resp.Error.Code)
	svc.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunRoutesRequireUser(t *testing.T) {
	rr, resp := do(t, runsRouter(&mockRunService{}, uuid.Nil), http.MethodGet, "/runs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestGetRunErrors(t *testing.T) {
	user := uuid.New()
	id := uuid.New()
	svc := &mockRunService{}
	svc.On("Get", mock.Anything, user, id).Return(nil, appErr.New(appErr.CodeForbidden, "run belongs to another user"))

	h := runsRouter(svc, user)
	rr, _ := do(t, h, http.MethodGet, "/runs/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = do(t, h, http.MethodGet, "/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResumeWithoutBody(t *testing.T) {
	user := uuid.New()
	id := uuid.New()
	svc := &mockRunService{}
	svc.On("Resume", mock.Anything, user, id, "").Return(&models.OrchestrationRun{ID: id, Status: models.RunRunning}, nil).Once()

	rr, _ := do(t, runsRouter(svc, user), http.MethodPost, "/runs/"+id.String()+"/resume", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUpdateWorkspace(t *testing.T) {
	user := uuid.New()
	id := uuid.New()
	svc := &mockRunService{}
	svc.On("UpdateWorkspace", mock.Anything, user, id, mock.MatchedBy(func(in services.UpdateWorkspaceInput) bool {
		return in.SQL != nil && *in.SQL == "select 1" && in.Workflow == nil
	})).Return(&models.OrchestrationRun{ID: id, SQL: "select 1"}, nil).Once()

	rr, _ := do(t, runsRouter(svc, user), http.MethodPut, "/runs/"+id.String()+"/workspace", map[string]string{"sql": "select 1"})
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestResetLogConflict(t *testing.T) {
	user := uuid.New()
	id := uuid.New()
	svc := &mockRunService{}
	svc.On("ResetLog", mock.Anything, user, id).Return(appErr.New(appErr.CodeNotFound, "run not found"))

	rr, resp := do(t, runsRouter(svc, user), http.MethodDelete, "/runs/"+id.String()+"/log", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "run not found", resp.Error.Message)
}

func TestTransferWebhook(t *testing.T) {
	svc := &mockBillingService{}
	h := NewBillingHandler(svc)
	in := services.TransferNotification{Gateway: "VietQR", TransferContent: "AETHER UPGRADE x", TransferAmount: 100}
	svc.On("HandleTransfer", mock.Anything, in).Return(&services.TransferResult{Message: "Ignored: No User ID found"}, nil)

	rr, resp := do(t, http.HandlerFunc(h.TransferWebhook), http.MethodPost, "/webhooks/payment", in)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"message": "Ignored: No User ID found"}, resp.Data)
}

func TestTransferWebhookAcceptsFractionalAmount(t *testing.T) {
	svc := &mockBillingService{}
	h := NewBillingHandler(svc)
	want := services.TransferNotification{Gateway: "VietQR", TransferContent: "AETHER UPGRADE", TransferAmount: 500000.5}
	svc.On("HandleTransfer", mock.Anything, want).Return(&services.TransferResult{Success: true, UpgradedTo: "pro"}, nil)

	body := json.RawMessage(`{"gateway":"VietQR","transferContent":"AETHER UPGRADE","transferAmount":500000.50}`)
	rr, _ := do(t, http.HandlerFunc(h.TransferWebhook), http.MethodPost, "/webhooks/payment", body)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCheckoutMisconfigured(t *testing.T) {
	svc := &mockBillingService{}
	h := NewBillingHandler(svc)
	svc.On("Checkout", mock.Anything, "pro", "", "").Return("", appErr.New(appErr.CodeMisconfigured, "STRIPE_SECRET_KEY missing"))

	rr, resp := do(t, http.HandlerFunc(h.Checkout), http.MethodPost, "/billing/checkout", map[string]string{"plan": "pro"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "STRIPE_SECRET_KEY missing", resp.Error.Message)
}

func TestPreviewCheckRejectsBadURL(t *testing.T) {
	h := NewPreviewHandler(preview.NewChecker(time.Second), preview.NewProxy(time.Second))
	rr, resp := do(t, http.HandlerFunc(h.Check), http.MethodGet, "/preview/check?url=ftp://example.com", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid url", resp.Error.Message)
}

func TestPreviewCheckReportsFraming(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
	}))
	defer upstream.Close()

	h := NewPreviewHandler(preview.NewChecker(time.Second), preview.NewProxy(time.Second))
	rr, resp := do(t, http.HandlerFunc(h.Check), http.MethodGet, "/preview/check?url="+upstream.URL, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["blocked"])
	assert.Equal(t, true, data["ok"])
}
