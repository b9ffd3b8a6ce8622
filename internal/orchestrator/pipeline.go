package orchestrator

import (
	"context"

	"github.com/aether-os/engine/internal/architect"
	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/vercel"
	"github.com/aether-os/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Step names, in execution order.
const (
	StepPlan       = "plan"
	StepCodegen    = "codegen"
	StepRepository = "repository"
	StepDeploy     = "deploy"
	StepMetadata   = "metadata"
)

// Generator produces the plan and the source files.
type Generator interface {
	Plan(ctx context.Context, prompt string) (models.Plan, error)
	Codegen(ctx context.Context, prompt string, plan models.Plan) ([]models.File, error)
}

// RepoHost creates and writes source repositories.
type RepoHost interface {
	CreateRepository(ctx context.Context, token string, in github.CreateRepoInput) (models.RepoRef, error)
	PushFiles(ctx context.Context, token, fullName, message string, files []models.File) (string, error)
	WriteManifest(ctx context.Context, token, fullName string, manifest any) (string, error)
}

// Deployer publishes projects.
type Deployer interface {
	CreateDeployment(ctx context.Context, token string, in vercel.DeployInput) (models.Deployment, error)
	SetProjectEnv(ctx context.Context, token, name string, envs map[string]string) error
}

// ProjectStore records finished projects.
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project) error
}

// MetadataStore records project metadata.
type MetadataStore interface {
	Upsert(ctx context.Context, md *models.ProjectMetadata) error
}

// Deps are the collaborators of the initialization pipeline.
type Deps struct {
	Generator Generator
	Repos     RepoHost
	Deployer  Deployer
	Projects  ProjectStore
	Metadata  MetadataStore
	// ProjectEnv is pushed to every new deployment.
	ProjectEnv map[string]string
}

// Pipeline returns the project initialization steps.
func Pipeline(d Deps) []Step {
	return []Step{
		{
			Name:     StepPlan,
			Policy:   Soft,
			Announce: func(*State) string { return "PHASE 1: ARCHITECTING SYSTEM STRUCTURE..." },
			Run: func(ctx context.Context, st *State) error {
				plan, err := d.Generator.Plan(ctx, st.Run.Prompt)
				if err != nil {
					return err
				}
				st.Run.Plan = jsonType(plan)
				return nil
			},
			Fallback: func(st *State, _ error) {
				st.Logf("Plan service unavailable. Using fallback plan.")
				st.Run.Plan = jsonType(architect.FallbackPlan())
			},
			Finish: func(st *State) {
				plan := st.Run.Plan.Data()
				var graph *models.WorkflowGraph
				if len(plan.Nodes) > 0 && len(plan.Edges) > 0 {
					g := plan.Graph()
					graph = &g
				}
				st.SeedWorkspace(plan.SQL, graph)
				st.Logf("Blueprint Generated: SQL Schema & Workflow Nodes Ready.")
			},
		},
		{
			Name:     StepCodegen,
			Policy:   Soft,
			Announce: func(*State) string { return "PHASE 2: GENERATING FULL-STACK SOURCE CODE..." },
			Run: func(ctx context.Context, st *State) error {
				files, err := d.Generator.Codegen(ctx, st.Run.Prompt, st.Run.Plan.Data())
				if err != nil {
					return err
				}
				st.Run.Files = files
				return nil
			},
			Fallback: func(st *State, _ error) {
				st.Logf("Codegen service unavailable. Using fallback source.")
				st.Run.Files = architect.FallbackFiles(st.Run.Slug)
			},
			Finish: func(st *State) {
				st.Run.Files = architect.EnsureRequiredFiles(st.Run.Files, st.Run.Slug)
				st.Logf("Code Generation Complete: %d files ready.", len(st.Run.Files))
			},
		},
		{
			Name:     StepRepository,
			Policy:   Soft,
			Announce: func(st *State) string { return "PHASE 3: PUSHING TO GITHUB (" + st.Run.Slug + ")..." },
			Run: func(ctx context.Context, st *State) error {
				repo, err := d.Repos.CreateRepository(ctx, st.AccessToken, github.CreateRepoInput{
					Name:        st.Run.Slug,
					Description: st.Run.Plan.Data().Description,
				})
				if err != nil {
					return err
				}
				st.Run.Repo = jsonType(repo)
				if _, err := d.Repos.PushFiles(ctx, st.AccessToken, repo.Name, "Initial commit from Aether OS", st.Run.Files); err != nil {
					st.Logf("Initial push failed: %s", err.Error())
				}
				return nil
			},
			Fallback: func(st *State, _ error) {
				st.Logf("GitHub unavailable. Switching to direct Vercel deployment.")
				st.Run.Repo = jsonType(models.RepoRef{Name: st.Run.Slug})
			},
			Finish: func(st *State) {
				st.Logf("Repository Created: %s", st.Run.Repo.Data().URL)
			},
		},
		{
			Name:     StepDeploy,
			Policy:   Hard,
			Announce: func(*State) string { return "PHASE 4: TRIGGERING VERCEL DEPLOYMENT..." },
			Run: func(ctx context.Context, st *State) error {
				repo := st.Run.Repo.Data()
				dep, err := d.Deployer.CreateDeployment(ctx, "", vercel.DeployInput{
					Name:     st.Run.Slug,
					RepoID:   repo.ID,
					RepoName: repo.Name,
					Files:    st.Run.Files,
				})
				if err != nil {
					st.Run.Deploy = jsonType(models.Deployment{})
					st.Run.PreviewURL = ""
					return err
				}
				st.Run.Deploy = jsonType(dep)
				name := dep.ProjectName
				if name == "" {
					name = st.Run.Slug
				}
				if err := d.Deployer.SetProjectEnv(ctx, "", name, d.ProjectEnv); err != nil {
					logger.ForRun(st.Run.ID.String()).Warn("project env not applied", zap.Error(err))
				}
				return nil
			},
			Finish: func(st *State) {
				url := st.Run.Deploy.Data().DeployURL
				st.Logf("Deployment Triggered: %s", url)
				if url == "" {
					url = "https://" + vercel.CanonicalAlias(st.Run.Slug)
				}
				st.Run.PreviewURL = url
			},
		},
		{
			Name:   StepMetadata,
			Policy: BestEffort,
			Run: func(ctx context.Context, st *State) error {
				return recordProject(ctx, d, st)
			},
		},
	}
}

// recordProject writes the manifest, the metadata row and the project row.
// Each write is attempted even if an earlier one failed; the first error wins.
func recordProject(ctx context.Context, d Deps, st *State) error {
	run := st.Run
	repo := run.Repo.Data()
	dep := run.Deploy.Data()
	log := logger.ForRun(run.ID.String())

	var first error
	keep := func(what string, err error) {
		if err == nil {
			return
		}
		log.Warn("record project", zap.String("write", what), zap.Error(err))
		if first == nil {
			first = err
		}
	}

	_, err := d.Repos.WriteManifest(ctx, st.AccessToken, repo.Name, models.ProjectManifest{
		Name:      run.Slug,
		RepoName:  repo.Name,
		RepoURL:   repo.URL,
		DeployURL: run.PreviewURL,
		CreatedAt: st.now(),
	})
	keep("manifest", err)

	key := architect.MetadataKey(dep.ProjectID, repo.ID, run.Slug)
	keep("metadata", d.Metadata.Upsert(ctx, architect.InitialMetadata(key, run.Slug)))

	project := &models.Project{
		UserID:        run.UserID,
		Name:          run.Name,
		RepoName:      repo.Name,
		RepoURL:       repo.URL,
		DeploymentURL: run.PreviewURL,
		Status:        "active",
	}
	if err := d.Projects.Create(ctx, project); err != nil {
		keep("project", err)
	} else {
		run.ProjectID = &project.ID
	}
	return first
}

func jsonType[T any](v T) datatypes.JSONType[T] { return datatypes.NewJSONType(v) }
