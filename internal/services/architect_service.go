package services

import (
	"context"
	"strings"
	"time"

	"github.com/aether-os/engine/internal/architect"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/repository"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"go.uber.org/zap"
)

// ArchitectService turns prompts into plans, blueprints and source files.
type ArchitectService interface {
	Plan(ctx context.Context, prompt string) (models.Plan, error)
	Architect(ctx context.Context, prompt string) (architect.Blueprint, error)
	Codegen(ctx context.Context, prompt string, plan models.Plan) ([]models.File, error)
	AutobuildPlan(ctx context.Context, prompt, projectID string) (*AutobuildPlan, error)
}

// AutobuildPlan is the deterministic pipeline plan for an existing project.
type AutobuildPlan struct {
	Nodes      []models.Node         `json:"nodes"`
	Edges      []models.Edge         `json:"edges"`
	SQL        string                `json:"sql"`
	Operations []architect.Operation `json:"operations"`
}

// Latencies applied when answering from fixtures.
type SimulationDelays struct {
	Plan      time.Duration
	Architect time.Duration
}

type architectService struct {
	gen      Generator
	metadata repository.MetadataRepository
	delays   SimulationDelays
}

func NewArchitectService(gen Generator, metadata repository.MetadataRepository, delays SimulationDelays) ArchitectService {
	return &architectService{gen: gen, metadata: metadata, delays: delays}
}

var _ ArchitectService = (*architectService)(nil)

func requirePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return appErr.New(appErr.CodeInvalid, "Prompt is required")
	}
	return nil
}

// Plan asks the LLM for a plan. Without an API key it answers with the
// simulated plan after a delay; with one, LLM errors are returned.
func (s *architectService) Plan(ctx context.Context, prompt string) (models.Plan, error) {
	if err := requirePrompt(prompt); err != nil {
		return models.Plan{}, err
	}
	if !s.gen.Configured() {
		if err := sleep(ctx, s.delays.Plan); err != nil {
			return models.Plan{}, appErr.Wrap(err, appErr.CodeDeadline, "plan cancelled")
		}
		return architect.SimulatedPlan(), nil
	}
	plan, err := s.gen.Plan(ctx, prompt)
	if err != nil {
		logger.L().Error("plan generation failed", zap.Error(err))
		return models.Plan{}, err
	}
	return plan, nil
}

// Architect asks the LLM for a blueprint and falls back to the matching
// fixture when no key is set or the call fails.
func (s *architectService) Architect(ctx context.Context, prompt string) (architect.Blueprint, error) {
	if err := requirePrompt(prompt); err != nil {
		return architect.Blueprint{}, err
	}
	if s.gen.Configured() {
		bp, err := s.gen.Architect(ctx, prompt)
		if err == nil {
			return bp, nil
		}
		logger.L().Warn("architect generation failed, using fixture", zap.Error(err))
	}
	if err := sleep(ctx, s.delays.Architect); err != nil {
		return architect.Blueprint{}, appErr.Wrap(err, appErr.CodeDeadline, "architect cancelled")
	}
	name, bp := architect.MatchFixture(prompt)
	logger.L().Info("architect fixture served", zap.String("fixture", name))
	return bp, nil
}

// codegenSlug names the package in files generated outside a run.
const codegenSlug = "aether-app"

// Codegen asks the LLM for source files. Without a key the fallback set is
// returned. Either way the required Next.js files are present.
func (s *architectService) Codegen(ctx context.Context, prompt string, plan models.Plan) ([]models.File, error) {
	if err := requirePrompt(prompt); err != nil {
		return nil, err
	}
	if !s.gen.Configured() {
		return architect.FallbackFiles(codegenSlug), nil
	}
	files, err := s.gen.Codegen(ctx, prompt, plan)
	if err != nil {
		logger.L().Error("codegen failed", zap.Error(err))
		return nil, err
	}
	return architect.EnsureRequiredFiles(files, codegenSlug), nil
}

// AutobuildPlan diffs the prompt's entities against the project's known
// tables and records the union as the new known set.
func (s *architectService) AutobuildPlan(ctx context.Context, prompt, projectID string) (*AutobuildPlan, error) {
	if strings.TrimSpace(prompt) == "" || projectID == "" {
		return nil, appErr.New(appErr.CodeInvalid, "Missing prompt or projectId")
	}
	tables := architect.ExtractEntities(prompt)

	var known []string
	if md, err := s.metadata.Get(ctx, projectID); err == nil {
		known = md.SchemaTables
	} else if !appErr.IsCode(err, appErr.CodeNotFound) {
		logger.L().Warn("metadata lookup failed", zap.String("project_id", projectID), zap.Error(err))
	}

	if err := s.metadata.SetSchemaTables(ctx, projectID, architect.MergeTables(known, tables)); err != nil {
		return nil, err
	}

	graph := architect.PipelineGraph()
	return &AutobuildPlan{
		Nodes:      graph.Nodes,
		Edges:      graph.Edges,
		SQL:        architect.GenerateSQL(prompt),
		Operations: architect.DiffTables(tables, known),
	}, nil
}
