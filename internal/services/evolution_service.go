package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aether-os/engine/internal/github"
	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/internal/repository"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"go.uber.org/zap"
)

// EvolutionService proposes, lists and reverts changes to deployed projects.
type EvolutionService interface {
	Apply(ctx context.Context, in ApplyEvolutionInput) (string, error)
	History(ctx context.Context, repo string) ([]github.Commit, error)
	Rollback(ctx context.Context, repo, sha string) (string, error)
	Stats(ctx context.Context, url, repo string) (*EvolutionStats, error)
}

type ApplyEvolutionInput struct {
	ProjectID   string
	RepoName    string
	Changes     []models.File
	Description string
	AccessToken string
}

// Proposal is a suggested next action.
type Proposal struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

type EvolutionSummary struct {
	Total      int        `json:"total"`
	Pending    int        `json:"pending"`
	LastActive *time.Time `json:"last_active"`
}

// EvolutionStats is the live health snapshot of a deployed project.
type EvolutionStats struct {
	Health    string           `json:"health"`
	Latency   int64            `json:"latency"`
	Status    string           `json:"status"`
	Proposals []Proposal       `json:"proposals"`
	Evolution EvolutionSummary `json:"evolution"`
}

const (
	historyLimit      = 20
	statsHistoryLimit = 10
	maxProposals      = 3
)

type evolutionService struct {
	repos       RepoHost
	projectRepo repository.ProjectRepository
	evolutions  repository.EvolutionRepository
	httpClient  *http.Client
	now         func() time.Time
}

func NewEvolutionService(repos RepoHost, projectRepo repository.ProjectRepository, evolutions repository.EvolutionRepository, healthTimeout time.Duration) EvolutionService {
	return &evolutionService{
		repos:       repos,
		projectRepo: projectRepo,
		evolutions:  evolutions,
		httpClient:  &http.Client{Timeout: healthTimeout},
		now:         time.Now,
	}
}

var _ EvolutionService = (*evolutionService)(nil)

// Apply opens a pull request with the changes and records it. A failure to
// record is logged only.
func (s *evolutionService) Apply(ctx context.Context, in ApplyEvolutionInput) (string, error) {
	if in.RepoName == "" || len(in.Changes) == 0 {
		return "", appErr.New(appErr.CodeInvalid, "Missing required fields")
	}
	branch := fmt.Sprintf("evolution-%d", s.now().UnixMilli())
	body := in.Description
	if body == "" {
		body = "Automated optimization by Aether OS Evolution Engine."
	}
	pr, err := s.repos.CreateEvolutionPR(ctx, in.AccessToken, in.RepoName, branch, "Evolution X: Optimization Proposal", body, in.Changes)
	if err != nil {
		logger.L().Error("evolution pr failed", zap.String("repo", in.RepoName), zap.Error(err))
		return "", err
	}
	rec := &models.EvolutionRecord{
		ProjectID:   in.ProjectID,
		Version:     branch,
		Description: in.Description,
		PRNumber:    pr.Number,
		Status:      "pending",
	}
	if err := s.evolutions.Create(ctx, rec); err != nil {
		logger.L().Error("failed to log evolution history", zap.String("branch", branch), zap.Error(err))
	}
	return pr.URL, nil
}

func (s *evolutionService) History(ctx context.Context, repo string) ([]github.Commit, error) {
	if repo == "" {
		return nil, appErr.New(appErr.CodeInvalid, "Missing repo name")
	}
	return s.repos.ListCommits(ctx, "", repo, historyLimit)
}

func (s *evolutionService) Rollback(ctx context.Context, repo, sha string) (string, error) {
	if repo == "" || sha == "" {
		return "", appErr.New(appErr.CodeInvalid, "Missing required fields")
	}
	newSHA, err := s.repos.RestoreCommit(ctx, "", repo, sha)
	if err != nil {
		logger.L().Error("rollback failed", zap.String("repo", repo), zap.String("sha", sha), zap.Error(err))
		return "", err
	}
	logger.L().Info("rollback committed", zap.String("repo", repo), zap.String("sha", newSHA))
	return newSHA, nil
}

// Stats probes url, scores its health and summarises the pending evolutions
// of the project deployed from repo. Both arguments are optional.
func (s *evolutionService) Stats(ctx context.Context, url, repo string) (*EvolutionStats, error) {
	status := "unknown"
	var latency time.Duration
	health := 100.0

	if url != "" {
		var reached, ok bool
		status, latency, reached, ok = s.probe(ctx, url)
		health = healthScore(reached, ok, latency)
	}

	out := &EvolutionStats{Latency: latency.Milliseconds(), Status: status, Proposals: []Proposal{}}
	if repo != "" {
		s.summarise(ctx, repo, out)
	}
	if len(out.Proposals) == 0 {
		out.Proposals = append(out.Proposals, defaultProposal(status, out.Latency))
	}
	if len(out.Proposals) > maxProposals {
		out.Proposals = out.Proposals[:maxProposals]
	}
	out.Health = fmt.Sprintf("%.1f", health)
	return out, nil
}

func (s *evolutionService) probe(ctx context.Context, url string) (status string, latency time.Duration, reached, ok bool) {
	start := s.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "error", 0, false, false
	}
	req.Header.Set("User-Agent", "Aether-OS-Evolution")
	resp, err := s.httpClient.Do(req)
	latency = s.now().Sub(start)
	if err != nil {
		return "error", latency, false, false
	}
	resp.Body.Close()
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)), latency,
		true, resp.StatusCode >= 200 && resp.StatusCode < 300
}

// healthScore starts at 100, loses 40 when unreachable or 20 on a non-2xx
// answer, then loses 10/20/30 more past 500ms/1s/2s. Never negative.
func healthScore(reached, ok bool, latency time.Duration) float64 {
	h := 100.0
	switch {
	case !reached:
		h -= 40
	case !ok:
		h -= 20
	}
	if latency > 500*time.Millisecond {
		h -= 10
	}
	if latency > time.Second {
		h -= 20
	}
	if latency > 2*time.Second {
		h -= 30
	}
	if h < 0 {
		h = 0
	}
	return h
}

func defaultProposal(status string, latencyMS int64) Proposal {
	switch {
	case status == "error" || strings.HasPrefix(status, "5"):
		return Proposal{
			Type:  "performance",
			Title: "Critical Health Check",
			Desc:  fmt.Sprintf("Service is unreachable (%s). Immediate investigation required.", status),
		}
	case latencyMS > 300:
		return Proposal{
			Type:  "performance",
			Title: "Latency Optimization",
			Desc:  fmt.Sprintf("Response time %dms is suboptimal. Consider caching strategy.", latencyMS),
		}
	default:
		return Proposal{Type: "ux", Title: "System Optimized", Desc: "Performance is optimal. Ready for traffic scaling."}
	}
}

func (s *evolutionService) summarise(ctx context.Context, repo string, out *EvolutionStats) {
	project, err := s.projectRepo.GetByRepoName(ctx, repo)
	if err != nil {
		return
	}
	history, err := s.evolutions.ListRecent(ctx, project.ID.String(), statsHistoryLimit)
	if err != nil {
		logger.L().Warn("evolution history lookup failed", zap.String("repo", repo), zap.Error(err))
		return
	}
	if len(history) == 0 {
		return
	}
	out.Evolution.Total = len(history)
	last := history[0].CreatedAt
	out.Evolution.LastActive = &last
	for _, h := range history {
		if h.Status != "pending" {
			continue
		}
		out.Evolution.Pending++
		desc := h.Description
		if desc == "" {
			desc = "System optimization pending review."
		}
		out.Proposals = append(out.Proposals, Proposal{Type: "scale", Title: "Pending Evolution", Desc: desc})
	}
}
