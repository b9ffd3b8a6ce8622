package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/aether-os/engine/internal/architect"
	"github.com/aether-os/engine/internal/billing"
	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/vercel"
	"github.com/aether-os/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type mockGenerator struct {
	mock.Mock
	configured bool
}

func (m *mockGenerator) Configured() bool { return m.configured }

func (m *mockGenerator) Plan(ctx context.Context, prompt string) (models.Plan, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(models.Plan), args.Error(1)
}

func (m *mockGenerator) Architect(ctx context.Context, prompt string) (architect.Blueprint, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(architect.Blueprint), args.Error(1)
}

func (m *mockGenerator) Codegen(ctx context.Context, prompt string, plan models.Plan) ([]models.File, error) {
	args := m.Called(ctx, prompt, plan)
	files, _ := args.Get(0).([]models.File)
	return files, args.Error(1)
}

type mockRepoHost struct {
	mock.Mock
	serverToken bool
}

func (m *mockRepoHost) HasServerToken() bool { return m.serverToken }

func (m *mockRepoHost) CreateRepository(ctx context.Context, token string, in github.CreateRepoInput) (models.RepoRef, error) {
	args := m.Called(ctx, token, in)
	return args.Get(0).(models.RepoRef), args.Error(1)
}

func (m *mockRepoHost) PushFiles(ctx context.Context, token, fullName, message string, files []models.File) (string, error) {
	args := m.Called(ctx, token, fullName, message, files)
	return args.String(0), args.Error(1)
}

func (m *mockRepoHost) WriteManifest(ctx context.Context, token, fullName string, manifest any) (string, error) {
	args := m.Called(ctx, token, fullName, manifest)
	return args.String(0), args.Error(1)
}

func (m *mockRepoHost) CreateEvolutionPR(ctx context.Context, token, fullName, branch, title, body string, changes []models.File) (github.PullRequest, error) {
	args := m.Called(ctx, token, fullName, branch, title, body, changes)
	return args.Get(0).(github.PullRequest), args.Error(1)
}

func (m *mockRepoHost) RestoreCommit(ctx context.Context, token, fullName, sha string) (string, error) {
	args := m.Called(ctx, token, fullName, sha)
	return args.String(0), args.Error(1)
}

func (m *mockRepoHost) ListCommits(ctx context.Context, token, fullName string, limit int) ([]github.Commit, error) {
	args := m.Called(ctx, token, fullName, limit)
	commits, _ := args.Get(0).([]github.Commit)
	return commits, args.Error(1)
}

func (m *mockRepoHost) ListOwnRepositories(ctx context.Context, token string) ([]github.Repository, error) {
	args := m.Called(ctx, token)
	repos, _ := args.Get(0).([]github.Repository)
	return repos, args.Error(1)
}

// ReadManifest copies the mocked manifest into dest.
func (m *mockRepoHost) ReadManifest(ctx context.Context, token, fullName string, dest any) error {
	args := m.Called(ctx, token, fullName, dest)
	if mf, ok := args.Get(0).(models.ProjectManifest); ok {
		*dest.(*models.ProjectManifest) = mf
	}
	return args.Error(1)
}

type mockDeployer struct {
	mock.Mock
	configured bool
}

func (m *mockDeployer) Configured() bool { return m.configured }

func (m *mockDeployer) CreateDeployment(ctx context.Context, token string, in vercel.DeployInput) (models.Deployment, error) {
	args := m.Called(ctx, token, in)
	return args.Get(0).(models.Deployment), args.Error(1)
}

func (m *mockDeployer) SetProjectEnv(ctx context.Context, token, name string, envs map[string]string) error {
	return m.Called(ctx, token, name, envs).Error(0)
}

func (m *mockDeployer) BindCanonicalAlias(ctx context.Context, token, name string) error {
	return m.Called(ctx, token, name).Error(0)
}

func (m *mockDeployer) ResolveLatestURL(ctx context.Context, token, name string) (string, error) {
	args := m.Called(ctx, token, name)
	return args.String(0), args.Error(1)
}

func (m *mockDeployer) DisableDeploymentProtection(ctx context.Context, token, name string) error {
	return m.Called(ctx, token, name).Error(0)
}

func (m *mockDeployer) LinkGitRepository(ctx context.Context, token, name, repo string) error {
	return m.Called(ctx, token, name, repo).Error(0)
}

type stubProber map[string]bool

func (p stubProber) Reachable(_ context.Context, raw string) bool { return p[raw] }

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, runID uuid.UUID, accessToken string) error {
	return m.Called(ctx, runID, accessToken).Error(0)
}

// mockBase implements the shared CRUD methods for the repository mocks.
type mockBase[T any] struct {
	mock.Mock
}

func (m *mockBase[T]) Create(ctx context.Context, obj *T) error {
	return m.Called(ctx, obj).Error(0)
}

func (m *mockBase[T]) GetByID(ctx context.Context, id any, dest *T) error {
	args := m.Called(ctx, id, dest)
	if v, ok := args.Get(0).(*T); ok && v != nil {
		*dest = *v
	}
	return args.Error(1)
}

func (m *mockBase[T]) Update(ctx context.Context, obj *T) error {
	return m.Called(ctx, obj).Error(0)
}

func (m *mockBase[T]) Delete(ctx context.Context, id any) error {
	return m.Called(ctx, id).Error(0)
}

type mockProjectRepo struct {
	mockBase[models.Project]
}

func (m *mockProjectRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	args := m.Called(ctx, userID)
	out, _ := args.Get(0).([]models.Project)
	return out, args.Error(1)
}

func (m *mockProjectRepo) UpdateDeploymentURL(ctx context.Context, id uuid.UUID, url string) error {
	return m.Called(ctx, id, url).Error(0)
}

func (m *mockProjectRepo) CreateBatch(ctx context.Context, projects []models.Project) error {
	return m.Called(ctx, projects).Error(0)
}

func (m *mockProjectRepo) GetByRepoName(ctx context.Context, repoName string) (*models.Project, error) {
	args := m.Called(ctx, repoName)
	p, _ := args.Get(0).(*models.Project)
	return p, args.Error(1)
}

type mockEvolutionRepo struct {
	mockBase[models.EvolutionRecord]
}

func (m *mockEvolutionRepo) ListRecent(ctx context.Context, projectID string, limit int) ([]models.EvolutionRecord, error) {
	args := m.Called(ctx, projectID, limit)
	out, _ := args.Get(0).([]models.EvolutionRecord)
	return out, args.Error(1)
}

type mockRunRepo struct {
	mockBase[models.OrchestrationRun]
}

func (m *mockRunRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.OrchestrationRun, error) {
	args := m.Called(ctx, userID, limit)
	out, _ := args.Get(0).([]models.OrchestrationRun)
	return out, args.Error(1)
}

func (m *mockRunRepo) RequestAbort(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRunRepo) AbortRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockRunRepo) ClearLog(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRunRepo) SaveProgress(ctx context.Context, run *models.OrchestrationRun, logged []models.LogLine, withWorkspace bool) error {
	return m.Called(ctx, run, logged, withWorkspace).Error(0)
}

func (m *mockRunRepo) UpdateWorkspace(ctx context.Context, id uuid.UUID, sql *string, graph *models.WorkflowGraph) error {
	return m.Called(ctx, id, sql, graph).Error(0)
}

type mockMetadataRepo struct {
	mock.Mock
}

func (m *mockMetadataRepo) Upsert(ctx context.Context, md *models.ProjectMetadata) error {
	return m.Called(ctx, md).Error(0)
}

func (m *mockMetadataRepo) Get(ctx context.Context, projectID string) (*models.ProjectMetadata, error) {
	args := m.Called(ctx, projectID)
	md, _ := args.Get(0).(*models.ProjectMetadata)
	return md, args.Error(1)
}

func (m *mockMetadataRepo) SetSchemaTables(ctx context.Context, projectID string, tables []string) error {
	return m.Called(ctx, projectID, tables).Error(0)
}

func (m *mockMetadataRepo) LogBuildError(ctx context.Context, projectID, message string) error {
	return m.Called(ctx, projectID, message).Error(0)
}

type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) Upsert(ctx context.Context, userID uuid.UUID, plan, status string, periodEnd *time.Time) error {
	return m.Called(ctx, userID, plan, status, periodEnd).Error(0)
}

func (m *mockSubscriptionRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, in billing.CheckoutInput) (billing.Session, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(billing.Session), args.Error(1)
}

func (m *mockGateway) GetSession(ctx context.Context, id string) (billing.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(billing.Session), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PaymentSucceeded(ctx context.Context, userID uuid.UUID, plan string, amount float64) error {
	return m.Called(ctx, userID, plan, amount).Error(0)
}

// countingObserver records payment outcomes.
type countingObserver map[string]int

func (o countingObserver) PaymentEvent(result string) { o[result]++ }
