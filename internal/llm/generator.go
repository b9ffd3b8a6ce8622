// Package llm asks a hosted chat-completion model for plans, blueprints and
// source files. Every call requests a JSON object and decodes it; anything
// the model returns that does not decode is reported as an upstream error.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aether-os/engine/internal/architect"
	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by every method when no API key is set.
var ErrNotConfigured = appErr.New(appErr.CodeMisconfigured, "OPENAI_API_KEY is not configured")

const (
	planInstruction = `You are an Expert Software Architect. Analyze the user's project idea and output a JSON object with:
1. "sql": A valid PostgreSQL migration script (CREATE TABLEs, RLS policies, Relations).
2. "nodes": Array of React Flow nodes ({id, type='custom', position, data: {label, type: 'frontend'|'backend'|'database'}}).
3. "edges": Array of React Flow edges ({id, source, target}).
4. "description": A short technical summary.

Keep the architecture simple but complete.`

	architectInstruction = `You are Aether Architect, an elite software architect AI.
Analyze the user's project prompt and generate a JSON response containing:
1. 'sql': A valid PostgreSQL schema creation script.
2. 'nodes': An array of ReactFlow nodes (id, type, label, x, y, style?).
3. 'edges': An array of ReactFlow edges (id, source, target, animated?).

Focus on creating a logical flow and a robust database schema.`

	codegenInstruction = `You are a senior Next.js engineer. Given a project idea and its architecture plan,
output a JSON object {"files": [{"path": string, "content": string}]} containing a complete
Next.js 14 App Router project (package.json, next.config.js, tsconfig.json, src/app/layout.tsx,
src/app/page.tsx, src/app/globals.css and any components). Paths are relative, without a leading slash.`
)

// Options configures a Generator.
type Options struct {
	APIKey         string
	BaseURL        string
	PlanModel      string
	ArchitectModel string
	CodegenModel   string
}

// Generator wraps an OpenAI-compatible client.
type Generator struct {
	client *openai.Client
	opts   Options
}

// New returns a Generator. With an empty key every call fails with ErrNotConfigured.
func New(opts Options) *Generator {
	g := &Generator{opts: opts}
	if opts.APIKey == "" {
		return g
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	g.client = openai.NewClientWithConfig(cfg)
	return g
}

// Configured reports whether calls will reach a model.
func (g *Generator) Configured() bool { return g != nil && g.client != nil }

// Plan returns {sql,nodes,edges,description} for a project idea.
func (g *Generator) Plan(ctx context.Context, prompt string) (models.Plan, error) {
	var p models.Plan
	if err := g.completeJSON(ctx, g.opts.PlanModel, planInstruction, prompt, &p); err != nil {
		return models.Plan{}, err
	}
	return p, nil
}

// Architect returns a {sql,nodes,edges} blueprint for a project idea.
func (g *Generator) Architect(ctx context.Context, prompt string) (architect.Blueprint, error) {
	var bp architect.Blueprint
	if err := g.completeJSON(ctx, g.opts.ArchitectModel, architectInstruction, prompt, &bp); err != nil {
		return architect.Blueprint{}, err
	}
	return bp, nil
}

// Codegen returns the source files for a project idea and its plan.
func (g *Generator) Codegen(ctx context.Context, prompt string, plan models.Plan) ([]models.File, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "encode plan")
	}
	user := "Project idea:\n" + prompt + "\n\nArchitecture plan:\n" + string(planJSON)

	var out struct {
		Files []models.File `json:"files"`
	}
	if err := g.completeJSON(ctx, g.opts.CodegenModel, codegenInstruction, user, &out); err != nil {
		return nil, err
	}
	if len(out.Files) == 0 {
		return nil, appErr.New(appErr.CodeUpstream, "model returned no files")
	}
	for i := range out.Files {
		out.Files[i].Path = strings.TrimPrefix(out.Files[i].Path, "/")
	}
	return out.Files, nil
}

func (g *Generator) completeJSON(ctx context.Context, model, system, user string, dest any) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		if ctx.Err() != nil {
			return appErr.Wrap(err, appErr.CodeDeadline, "model request timed out")
		}
		return appErr.Wrap(err, appErr.CodeUpstream, "model request failed")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return appErr.New(appErr.CodeUpstream, "No content from OpenAI")
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		logger.L().Warn("model returned malformed JSON", zap.String("model", model), zap.Int("length", len(content)))
		return appErr.Wrap(err, appErr.CodeUpstream, "model returned malformed JSON")
	}
	return nil
}
