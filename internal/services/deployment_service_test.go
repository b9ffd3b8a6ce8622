package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/vercel"
	appErr "github.com/aether-os/engine/pkg/errors"
)

var serverEnv = map[string]string{
	"NEXT_PUBLIC_SUPABASE_URL":      "https://db.example.co",
	"NEXT_PUBLIC_SUPABASE_ANON_KEY": "anon",
}

func TestPublishReportsEachAction(t *testing.T) {
	ctx := context.Background()
	dep := &mockDeployer{configured: true}
	svc := NewDeploymentService(dep, &mockMetadataRepo{}, serverEnv)

	wantEnv := map[string]string{
		"NEXT_PUBLIC_SUPABASE_URL":      "https://db.example.co",
		"NEXT_PUBLIC_SUPABASE_ANON_KEY": "user-anon",
		"VERCEL_ACCESS_TOKEN":           "vtok",
	}
	dep.On("SetProjectEnv", ctx, "", "my-app", wantEnv).Return(nil).Once()
	dep.On("DisableDeploymentProtection", ctx, "", "my-app").Return(appErr.New(appErr.CodeUpstream, "forbidden")).Once()
	dep.On("BindCanonicalAlias", ctx, "", "my-app").Return(nil).Once()

	res, err := svc.Publish(ctx, PublishInput{
		Name: "My App",
		Envs: map[string]string{"NEXT_PUBLIC_SUPABASE_ANON_KEY": "user-anon", "VERCEL_ACCESS_TOKEN": "vtok", "UNRELATED": "x"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "https://my-app.vercel.app", res.URL)
	assert.True(t, res.Details.Env)
	assert.False(t, res.Details.Protection)
	assert.True(t, res.Details.Alias)
	assert.Equal(t, []string{"Protection: forbidden"}, res.Details.Errors)
	dep.AssertExpectations(t)
}

func TestPublishRequiresName(t *testing.T) {
	svc := NewDeploymentService(&mockDeployer{}, &mockMetadataRepo{}, serverEnv)
	_, err := svc.Publish(context.Background(), PublishInput{})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestCreateDeploymentSideEffectsAreBestEffort(t *testing.T) {
	ctx := context.Background()
	dep := &mockDeployer{configured: true}
	md := &mockMetadataRepo{}
	svc := NewDeploymentService(dep, md, serverEnv)

	files := []models.File{{Path: "package.json", Content: "{}"}}
	dep.On("CreateDeployment", ctx, "tok", vercel.DeployInput{Name: "my-app", RepoID: 42, Files: files}).
		Return(models.Deployment{ProjectID: "prj_1", ProjectName: "my-app", DeployURL: "https://my-app-abc.vercel.app"}, nil)
	dep.On("SetProjectEnv", ctx, "tok", "my-app", serverEnv).Return(errors.New("rate limited"))
	md.On("Upsert", ctx, mock.MatchedBy(func(m *models.ProjectMetadata) bool {
		return m.ProjectID == "prj_1" && m.Name == "My App"
	})).Return(errors.New("db down")).Once()

	got, err := svc.Create(ctx, CreateDeploymentInput{Name: "My App", RepoID: 42, Files: files, AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "https://my-app-abc.vercel.app", got.DeployURL)
	md.AssertExpectations(t)
}

func TestLinkValidatesRepo(t *testing.T) {
	svc := NewDeploymentService(&mockDeployer{}, &mockMetadataRepo{}, nil)
	err := svc.Link(context.Background(), "app", "no-slash", "")
	assert.Equal(t, "Invalid repo", appErr.Message(err))
}
