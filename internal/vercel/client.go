// Package vercel is a small REST client for the deployment platform. There is
// no maintained Go SDK, so requests are built by hand over net/http.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Token is used when a caller supplies none.
	Token      string
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.vercel.com"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

// Configured reports whether a server token is available.
func (c *Client) Configured() bool { return c.token != "" }

// apiError is the platform's error envelope.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type statusError struct {
	status int
	code   string
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("vercel: %d %s: %s", e.status, e.code, e.msg)
}

func (c *Client) do(ctx context.Context, token, method, path string, body, dest any) error {
	if token == "" {
		token = c.token
	}
	if token == "" {
		return appErr.New(appErr.CodeMisconfigured, "VERCEL_ACCESS_TOKEN is missing")
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "encode request")
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return appErr.Wrap(err, appErr.CodeDeadline, "deployment platform timed out")
		}
		return appErr.Wrap(err, appErr.CodeUnavailable, "deployment platform unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUpstream, "read response")
	}
	if resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		return &statusError{status: resp.StatusCode, code: ae.Error.Code, msg: ae.Error.Message}
	}
	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return appErr.Wrap(err, appErr.CodeUpstream, "decode response")
		}
	}
	return nil
}

// classify turns a transport or status error into an AppError, preferring
// the platform's own message and falling back to fallback.
func classify(err error, fallback string) error {
	se, ok := err.(*statusError)
	if !ok {
		return err
	}
	msg := se.msg
	if msg == "" {
		msg = fallback
	}
	code := appErr.CodeUpstream
	switch se.status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = appErr.CodeUnauthorized
	case http.StatusNotFound:
		code = appErr.CodeNotFound
	case http.StatusConflict:
		code = appErr.CodeConflict
	}
	return appErr.Wrap(err, code, msg)
}

type project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AccountID string `json:"accountId"`
}

type deployment struct {
	ID           string   `json:"id"`
	UID          string   `json:"uid"`
	DeploymentID string   `json:"deploymentId"`
	URL          string   `json:"url"`
	Name         string   `json:"name"`
	ProjectID    string   `json:"projectId"`
	InspectorURL string   `json:"inspectorUrl"`
	Alias        []string `json:"alias"`
}

func (d deployment) id() string {
	for _, v := range []string{d.ID, d.UID, d.DeploymentID} {
		if v != "" {
			return v
		}
	}
	return ""
}

// publicURL prefers the deployment URL and falls back to its first alias.
func (d deployment) publicURL() string {
	if d.URL != "" {
		return "https://" + d.URL
	}
	if len(d.Alias) > 0 {
		return "https://" + d.Alias[0]
	}
	return ""
}

// CanonicalAlias is the stable production hostname of a project.
func CanonicalAlias(name string) string { return name + ".vercel.app" }

// DeployInput describes a deployment. When Files is non-empty they are
// uploaded directly; otherwise RepoName is linked as a Git-backed project.
type DeployInput struct {
	Name     string
	RepoID   int64
	RepoName string
	Files    []models.File
}

// CreateDeployment deploys a project to production.
func (c *Client) CreateDeployment(ctx context.Context, token string, in DeployInput) (models.Deployment, error) {
	if len(in.Files) > 0 {
		return c.deployFiles(ctx, token, in.Name, in.Files)
	}
	if in.RepoName == "" {
		return models.Deployment{}, appErr.New(appErr.CodeInvalid, "Missing repo info: repoName is required for git deployment")
	}

	gitRepo := map[string]any{"type": "github", "repo": in.RepoName}
	if in.RepoID != 0 {
		gitRepo["repoId"] = in.RepoID
	}
	var p project
	err := c.do(ctx, token, http.MethodPost, "/v9/projects", map[string]any{
		"name":          in.Name,
		"framework":     "nextjs",
		"gitRepository": gitRepo,
	}, &p)
	if err != nil {
		if se, ok := err.(*statusError); ok && se.code == "conflicting_project_path" {
			return models.Deployment{}, appErr.Wrap(err, appErr.CodeConflict,
				fmt.Sprintf("Project %s already exists. Please choose a different name.", in.Name))
		}
		return models.Deployment{}, classify(err, "Failed to create Vercel project")
	}
	return models.Deployment{
		ProjectID:    p.ID,
		ProjectName:  p.Name,
		DeployURL:    "https://" + CanonicalAlias(p.Name),
		DashboardURL: fmt.Sprintf("https://vercel.com/%s/%s", p.AccountID, p.Name),
	}, nil
}

type deployFile struct {
	File string `json:"file"`
	Data string `json:"data"`
}

func (c *Client) deployFiles(ctx context.Context, token, name string, files []models.File) (models.Deployment, error) {
	// The project may already exist; only the deployment below is fatal.
	if err := c.do(ctx, token, http.MethodPost, "/v9/projects", map[string]any{"name": name, "framework": "nextjs"}, nil); err != nil {
		logger.L().Debug("ensure project", zap.String("project", name), zap.Error(err))
	}

	payload := make([]deployFile, 0, len(files))
	for _, f := range files {
		payload = append(payload, deployFile{File: strings.TrimPrefix(f.Path, "/"), Data: f.Content})
	}
	var d deployment
	err := c.do(ctx, token, http.MethodPost, "/v13/deployments", map[string]any{
		"name":            name,
		"files":           payload,
		"projectSettings": map[string]any{"framework": "nextjs"},
		"target":          "production",
	}, &d)
	if err != nil {
		return models.Deployment{}, classify(err, "Failed to upload deployment")
	}

	if id := d.id(); id != "" {
		if err := c.alias(ctx, token, id, name); err != nil {
			logger.L().Warn("canonical alias not bound", zap.String("project", name), zap.Error(err))
		}
	}

	return models.Deployment{
		ProjectID:    d.ProjectID,
		ProjectName:  d.Name,
		DeployURL:    d.publicURL(),
		DashboardURL: "https://vercel.com" + d.InspectorURL,
	}, nil
}

func (c *Client) alias(ctx context.Context, token, deploymentID, name string) error {
	return c.do(ctx, token, http.MethodPost, "/v13/deployments/"+url.PathEscape(deploymentID)+"/aliases",
		map[string]string{"alias": CanonicalAlias(name)}, nil)
}

func (c *Client) getProject(ctx context.Context, token, name string) (project, error) {
	var p project
	if err := c.do(ctx, token, http.MethodGet, "/v9/projects/"+url.PathEscape(name), nil, &p); err != nil {
		if se, ok := err.(*statusError); ok && se.status == http.StatusNotFound {
			return project{}, appErr.Wrap(err, appErr.CodeNotFound, "Project not found")
		}
		return project{}, classify(err, "Project not found")
	}
	return p, nil
}

type envVar struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

var envTargets = []string{"production", "preview"}

// SetProjectEnv creates or updates each variable for production and preview.
// Empty values are skipped.
func (c *Client) SetProjectEnv(ctx context.Context, token, name string, envs map[string]string) error {
	p, err := c.getProject(ctx, token, name)
	if err != nil {
		return err
	}

	var existing struct {
		Envs []envVar `json:"envs"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/v9/projects/"+p.ID+"/env", nil, &existing); err != nil {
		logger.L().Debug("list env failed, creating all", zap.String("project", name), zap.Error(err))
	}
	ids := make(map[string]string, len(existing.Envs))
	for _, e := range existing.Envs {
		ids[e.Key] = e.ID
	}

	for key, value := range envs {
		if value == "" {
			continue
		}
		if id, ok := ids[key]; ok {
			err = c.do(ctx, token, http.MethodPatch, "/v9/projects/"+p.ID+"/env/"+id,
				map[string]any{"value": value, "target": envTargets}, nil)
		} else {
			err = c.do(ctx, token, http.MethodPost, "/v9/projects/"+p.ID+"/env",
				map[string]any{"key": key, "value": value, "type": "encrypted", "target": envTargets}, nil)
		}
		if err != nil {
			return classify(err, "set env "+key)
		}
	}
	return nil
}

// latestDeployment returns the newest deployment of a project.
func (c *Client) latestDeployment(ctx context.Context, token string, p project) (deployment, error) {
	var list struct {
		Deployments []deployment `json:"deployments"`
	}
	q := url.Values{"projectId": {p.ID}, "limit": {"1"}}
	if err := c.do(ctx, token, http.MethodGet, "/v13/deployments?"+q.Encode(), nil, &list); err != nil {
		return deployment{}, classify(err, "No deployments found")
	}
	if len(list.Deployments) == 0 || list.Deployments[0].id() == "" {
		return deployment{}, appErr.New(appErr.CodeNotFound, "No deployment id")
	}
	return list.Deployments[0], nil
}

// BindCanonicalAlias points <name>.vercel.app at the project's latest deployment.
func (c *Client) BindCanonicalAlias(ctx context.Context, token, name string) error {
	p, err := c.getProject(ctx, token, name)
	if err != nil {
		return err
	}
	d, err := c.latestDeployment(ctx, token, p)
	if err != nil {
		return err
	}
	if err := c.alias(ctx, token, d.id(), name); err != nil {
		return classify(err, "Alias bind failed")
	}
	return nil
}

// ResolveLatestURL returns the public URL of the project's latest deployment
// and, best-effort, re-binds the canonical alias to it.
func (c *Client) ResolveLatestURL(ctx context.Context, token, name string) (string, error) {
	p, err := c.getProject(ctx, token, name)
	if err != nil {
		return "", err
	}
	d, err := c.latestDeployment(ctx, token, p)
	if err != nil {
		return "", err
	}
	u := d.publicURL()
	if u == "" {
		return "", appErr.New(appErr.CodeNotFound, "deployment has no url")
	}
	if err := c.alias(ctx, token, d.id(), p.Name); err != nil {
		logger.L().Debug("alias rebind failed", zap.String("project", p.Name), zap.Error(err))
	}
	return u, nil
}

// DisableDeploymentProtection makes the project's deployments publicly viewable.
// Only the project lookup can fail; the update itself is best-effort.
func (c *Client) DisableDeploymentProtection(ctx context.Context, token, name string) error {
	p, err := c.getProject(ctx, token, name)
	if err != nil {
		return err
	}
	err = c.do(ctx, token, http.MethodPatch, "/v9/projects/"+p.ID, map[string]any{
		"vercelAuth":           false,
		"passwordProtection":   false,
		"deploymentProtection": map[string]bool{"enabled": false},
	}, nil)
	if err != nil {
		logger.L().Warn("disable protection failed", zap.String("project", name), zap.Error(err))
	}
	return nil
}

// LinkGitRepository connects an "owner/name" repository so pushes to main deploy.
func (c *Client) LinkGitRepository(ctx context.Context, token, name, repo string) error {
	p, err := c.getProject(ctx, token, name)
	if err != nil {
		return err
	}
	err = c.do(ctx, token, http.MethodPatch, "/v9/projects/"+p.ID, map[string]any{
		"gitRepository": map[string]string{"type": "github", "repo": repo},
	}, nil)
	if err != nil {
		return classify(err, "Failed to link GitHub repository")
	}
	return nil
}
