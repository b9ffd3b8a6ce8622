package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
)

func TestHealthScore(t *testing.T) {
	cases := []struct {
		name    string
		reached bool
		ok      bool
		latency time.Duration
		want    float64
	}{
		{"fast and healthy", true, true, 120 * time.Millisecond, 100},
		{"slow", true, true, 700 * time.Millisecond, 90},
		{"slower", true, true, 1500 * time.Millisecond, 70},
		{"slowest", true, true, 3 * time.Second, 40},
		{"server error", true, false, 100 * time.Millisecond, 80},
		{"unreachable", false, false, 0, 60},
		{"unreachable and slow", false, false, 5 * time.Second, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, healthScore(tc.reached, tc.ok, tc.latency))
		})
	}
}

func TestDefaultProposal(t *testing.T) {
	assert.Equal(t, "Critical Health Check", defaultProposal("error", 0).Title)
	assert.Equal(t, "Critical Health Check", defaultProposal("503 Service Unavailable", 10).Title)
	assert.Equal(t, "Latency Optimization", defaultProposal("200 OK", 450).Title)
	assert.Equal(t, "System Optimized", defaultProposal("200 OK", 80).Title)
}

func TestStatsProbesURL(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewEvolutionService(&mockRepoHost{}, &mockProjectRepo{}, &mockEvolutionRepo{}, 5*time.Second)
	stats, err := svc.Stats(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "200 OK", stats.Status)
	assert.Equal(t, "Aether-OS-Evolution", ua)
	assert.Len(t, stats.Proposals, 1)
	assert.Equal(t, 0, stats.Evolution.Total)
}

func TestStatsSummarisesPendingEvolutions(t *testing.T) {
	ctx := context.Background()
	project := &models.Project{ID: uuid.New(), RepoName: "me/shop"}
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	projects := &mockProjectRepo{}
	evolutions := &mockEvolutionRepo{}
	projects.On("GetByRepoName", ctx, "me/shop").Return(project, nil)
	evolutions.On("ListRecent", ctx, project.ID.String(), statsHistoryLimit).Return([]models.EvolutionRecord{
		{Status: "pending", Description: "cache images", CreatedAt: created},
		{Status: "pending"},
		{Status: "merged"},
		{Status: "pending"},
		{Status: "pending"},
	}, nil)

	svc := NewEvolutionService(&mockRepoHost{}, projects, evolutions, time.Second)
	stats, err := svc.Stats(ctx, "", "me/shop")
	require.NoError(t, err)
	assert.Equal(t, "100.0", stats.Health)
	assert.Equal(t, "unknown", stats.Status)
	assert.Equal(t, 5, stats.Evolution.Total)
	assert.Equal(t, 4, stats.Evolution.Pending)
	require.NotNil(t, stats.Evolution.LastActive)
	assert.Equal(t, created, *stats.Evolution.LastActive)
	require.Len(t, stats.Proposals, maxProposals)
	assert.Equal(t, "cache images", stats.Proposals[0].Desc)
	assert.Equal(t, "System optimization pending review.", stats.Proposals[1].Desc)
}

func TestApplyEvolution(t *testing.T) {
	ctx := context.Background()
	repos := &mockRepoHost{}
	evolutions := &mockEvolutionRepo{}
	svc := NewEvolutionService(repos, &mockProjectRepo{}, evolutions, time.Second).(*evolutionService)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	changes := []models.File{{Path: "src/app/page.tsx", Content: "export default function Page() { return null }"}}
	repos.On("CreateEvolutionPR", ctx, "", "me/shop", "evolution-1700000000000", "Evolution X: Optimization Proposal",
		"Automated optimization by Aether OS Evolution Engine.", changes).
		Return(github.PullRequest{Number: 7, URL: "https://github.com/me/shop/pull/7"}, nil).Once()
	evolutions.On("Create", ctx, mock.MatchedBy(func(r *models.EvolutionRecord) bool {
		return r.PRNumber == 7 && r.Version == "evolution-1700000000000" && r.Status == "pending"
	})).Return(nil).Once()

	url, err := svc.Apply(ctx, ApplyEvolutionInput{ProjectID: "p1", RepoName: "me/shop", Changes: changes})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/me/shop/pull/7", url)
	repos.AssertExpectations(t)
	evolutions.AssertExpectations(t)

	_, err = svc.Apply(ctx, ApplyEvolutionInput{RepoName: "me/shop"})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	repos := &mockRepoHost{}
	repos.On("RestoreCommit", ctx, "", "me/shop", "abc123").Return("def456", nil).Once()

	sha, err := NewEvolutionService(repos, &mockProjectRepo{}, &mockEvolutionRepo{}, time.Second).Rollback(ctx, "me/shop", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "def456", sha)
}
