package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/models"
)

func TestListProjectsHealsUnreachableURL(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	live := models.Project{ID: uuid.New(), UserID: user, Name: "Blog", DeploymentURL: "https://blog.vercel.app", Status: "active"}
	stale := models.Project{ID: uuid.New(), UserID: user, Name: "My Shop", DeploymentURL: "https://old-shop.vercel.app"}

	projects := &mockProjectRepo{}
	dep := &mockDeployer{configured: true}
	projects.On("ListByUser", ctx, user).Return([]models.Project{live, stale}, nil)
	dep.On("ResolveLatestURL", ctx, "", "my-shop").Return("https://my-shop.vercel.app", nil).Once()
	projects.On("UpdateDeploymentURL", ctx, stale.ID, "https://my-shop.vercel.app").Return(errors.New("db down")).Once()

	svc := NewProjectService(projects, dep, &mockRepoHost{}, stubProber{"https://blog.vercel.app": true})
	got, err := svc.ListProjects(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://blog.vercel.app", got[0].DeploymentURL)
	assert.Equal(t, "https://my-shop.vercel.app", got[1].DeploymentURL)
	assert.Equal(t, "active", got[1].Status)
	dep.AssertExpectations(t)
	projects.AssertExpectations(t)
}

func TestListProjectsSkipsHealingWithoutDeployer(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	p := models.Project{ID: uuid.New(), UserID: user, Name: "x", DeploymentURL: "https://x.vercel.app"}

	projects := &mockProjectRepo{}
	dep := &mockDeployer{}
	projects.On("ListByUser", ctx, user).Return([]models.Project{p}, nil)

	got, err := NewProjectService(projects, dep, &mockRepoHost{}, stubProber{}).ListProjects(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "https://x.vercel.app", got[0].DeploymentURL)
	dep.AssertNotCalled(t, "ResolveLatestURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestListProjectsSyncsFromGitHost(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	projects := &mockProjectRepo{}
	repos := &mockRepoHost{serverToken: true}
	projects.On("ListByUser", ctx, user).Return([]models.Project{}, nil)
	repos.On("ListOwnRepositories", ctx, "").Return([]github.Repository{
		{Name: "shop", FullName: "me/shop", HTMLURL: "https://github.com/me/shop"},
		{Name: "dotfiles", FullName: "me/dotfiles"},
	}, nil)
	repos.On("ReadManifest", ctx, "", "me/shop", mock.Anything).Return(models.ProjectManifest{Name: "Shop"}, nil)
	repos.On("ReadManifest", ctx, "", "me/dotfiles", mock.Anything).Return(nil, errors.New("404"))
	projects.On("CreateBatch", ctx, mock.MatchedBy(func(ps []models.Project) bool {
		return len(ps) == 1 && ps[0].RepoName == "me/shop"
	})).Return(nil).Once()

	got, err := NewProjectService(projects, &mockDeployer{}, repos, stubProber{}).ListProjects(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Shop", got[0].Name)
	assert.Equal(t, "https://shop.vercel.app", got[0].DeploymentURL)
	assert.Equal(t, user, got[0].UserID)
	assert.False(t, got[0].CreatedAt.IsZero())
	projects.AssertExpectations(t)
}

func TestListProjectsEmptyWithoutServerToken(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	projects := &mockProjectRepo{}
	projects.On("ListByUser", ctx, user).Return(nil, nil)

	got, err := NewProjectService(projects, &mockDeployer{}, &mockRepoHost{}, stubProber{}).ListProjects(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, got)
}
