// Package github drives the Git hosting provider through the go-github client.
// Every call authenticates with the caller's token when one is given and the
// server's personal access token otherwise.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	gh "github.com/google/go-github/v66/github"
)

// MainBranch is the branch every operation reads from and writes to.
const MainBranch = "main"

// ManifestPath is where project metadata is committed inside a repository.
const ManifestPath = ".aether/project.json"

// Options configures a Client.
type Options struct {
	// ServerToken is used when a caller supplies no token of its own.
	ServerToken string
	// BaseURL overrides the REST endpoint, e.g. for GitHub Enterprise or tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Client creates per-call go-github clients bound to the right token.
type Client struct {
	serverToken string
	baseURL     *url.URL
	httpClient  *http.Client
}

func New(opts Options) (*Client, error) {
	c := &Client{serverToken: opts.ServerToken, httpClient: opts.HTTPClient}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeMisconfigured, "invalid GITHUB_API_URL")
		}
		c.baseURL = u
	}
	return c, nil
}

// HasServerToken reports whether GITHUB_PAT is configured.
func (c *Client) HasServerToken() bool { return c.serverToken != "" }

func (c *Client) api(token string) (*gh.Client, error) {
	if token == "" {
		token = c.serverToken
	}
	if token == "" {
		return nil, appErr.New(appErr.CodeUnauthorized, "GitHub Token Missing: No user access token or GITHUB_PAT found.")
	}
	api := gh.NewClient(c.httpClient).WithAuthToken(token)
	if c.baseURL != nil {
		api.BaseURL = c.baseURL
	}
	return api, nil
}

// SplitRepo splits "owner/name".
func SplitRepo(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", appErr.New(appErr.CodeInvalid, "Invalid repo")
	}
	return owner, name, nil
}

// CreateRepoInput describes a new repository.
type CreateRepoInput struct {
	Name        string
	Description string
	Private     bool
}

// CreateRepository creates an initialised repository for the token's user.
func (c *Client) CreateRepository(ctx context.Context, token string, in CreateRepoInput) (models.RepoRef, error) {
	api, err := c.api(token)
	if err != nil {
		return models.RepoRef{}, err
	}
	repo, _, err := api.Repositories.Create(ctx, "", &gh.Repository{
		Name:        gh.String(in.Name),
		Description: gh.String(in.Description),
		Private:     gh.Bool(in.Private),
		AutoInit:    gh.Bool(true),
	})
	if err != nil {
		return models.RepoRef{}, upstream(err, "create repository")
	}
	return models.RepoRef{ID: repo.GetID(), URL: repo.GetHTMLURL(), Name: repo.GetFullName()}, nil
}

// PushFiles commits files on top of main and returns the new commit sha.
func (c *Client) PushFiles(ctx context.Context, token, fullName, message string, files []models.File) (string, error) {
	api, err := c.api(token)
	if err != nil {
		return "", err
	}
	owner, repo, err := SplitRepo(fullName)
	if err != nil {
		return "", err
	}
	head, err := headSHA(ctx, api, owner, repo)
	if err != nil {
		return "", err
	}
	sha, err := commitFiles(ctx, api, owner, repo, head, message, files)
	if err != nil {
		return "", err
	}
	if _, _, err := api.Git.UpdateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("heads/" + MainBranch),
		Object: &gh.GitObject{SHA: gh.String(sha)},
	}, false); err != nil {
		return "", upstream(err, "update main")
	}
	return sha, nil
}

// WriteManifest commits the project manifest file.
func (c *Client) WriteManifest(ctx context.Context, token, fullName string, manifest any) (string, error) {
	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInvalid, "encode metadata")
	}
	return c.PushFiles(ctx, token, fullName, "Add Aether project metadata", []models.File{{Path: ManifestPath, Content: string(body)}})
}

// PullRequest is an opened pull request.
type PullRequest struct {
	Number int    `json:"prNumber"`
	URL    string `json:"prUrl"`
	Branch string `json:"branch"`
}

// CreateEvolutionPR branches from main, commits changes and opens a pull request back into main.
func (c *Client) CreateEvolutionPR(ctx context.Context, token, fullName, branch, title, body string, changes []models.File) (PullRequest, error) {
	api, err := c.api(token)
	if err != nil {
		return PullRequest{}, err
	}
	owner, repo, err := SplitRepo(fullName)
	if err != nil {
		return PullRequest{}, err
	}
	base, err := headSHA(ctx, api, owner, repo)
	if err != nil {
		return PullRequest{}, err
	}
	if _, _, err := api.Git.CreateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: gh.String(base)},
	}); err != nil {
		return PullRequest{}, upstream(err, "create branch")
	}
	sha, err := commitFiles(ctx, api, owner, repo, base, title, changes)
	if err != nil {
		return PullRequest{}, err
	}
	if _, _, err := api.Git.UpdateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("heads/" + branch),
		Object: &gh.GitObject{SHA: gh.String(sha)},
	}, false); err != nil {
		return PullRequest{}, upstream(err, "update branch")
	}
	pr, _, err := api.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.String(title),
		Body:  gh.String(body),
		Head:  gh.String(branch),
		Base:  gh.String(MainBranch),
	})
	if err != nil {
		return PullRequest{}, upstream(err, "open pull request")
	}
	return PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL(), Branch: branch}, nil
}

// RestoreCommit makes main's content equal to the tree of sha by adding a
// new commit on top of the current head. History is never rewritten.
func (c *Client) RestoreCommit(ctx context.Context, token, fullName, sha string) (string, error) {
	api, err := c.api(token)
	if err != nil {
		return "", err
	}
	owner, repo, err := SplitRepo(fullName)
	if err != nil {
		return "", err
	}
	target, _, err := api.Git.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		return "", upstream(err, "read target commit")
	}
	head, err := headSHA(ctx, api, owner, repo)
	if err != nil {
		return "", err
	}
	short := sha
	if len(short) > 7 {
		short = short[:7]
	}
	commit, _, err := api.Git.CreateCommit(ctx, owner, repo, &gh.Commit{
		Message: gh.String("Rollback to version " + short),
		Tree:    &gh.Tree{SHA: target.GetTree().SHA},
		Parents: []*gh.Commit{{SHA: gh.String(head)}},
	}, nil)
	if err != nil {
		return "", upstream(err, "create rollback commit")
	}
	if _, _, err := api.Git.UpdateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("heads/" + MainBranch),
		Object: &gh.GitObject{SHA: commit.SHA},
	}, false); err != nil {
		return "", upstream(err, "update main")
	}
	return commit.GetSHA(), nil
}

// Commit is a summarised history entry.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"`
}

// ListCommits returns the most recent commits on the default branch.
func (c *Client) ListCommits(ctx context.Context, token, fullName string, limit int) ([]Commit, error) {
	api, err := c.api(token)
	if err != nil {
		return nil, err
	}
	owner, repo, err := SplitRepo(fullName)
	if err != nil {
		return nil, err
	}
	list, _, err := api.Repositories.ListCommits(ctx, owner, repo, &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, upstream(err, "list commits")
	}
	out := make([]Commit, 0, len(list))
	for _, rc := range list {
		cm := rc.GetCommit()
		out = append(out, Commit{
			SHA:     rc.GetSHA(),
			Message: cm.GetMessage(),
			Date:    cm.GetAuthor().GetDate().Time,
			Author:  cm.GetAuthor().GetName(),
		})
	}
	return out, nil
}

// Repository is a repository visible to the authenticated user.
type Repository struct {
	ID        int64
	Name      string
	FullName  string
	HTMLURL   string
	CreatedAt time.Time
}

// ListOwnRepositories returns up to 50 repositories of the token's user,
// most recently updated first.
func (c *Client) ListOwnRepositories(ctx context.Context, token string) ([]Repository, error) {
	api, err := c.api(token)
	if err != nil {
		return nil, err
	}
	list, _, err := api.Repositories.ListByAuthenticatedUser(ctx, &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: 50},
	})
	if err != nil {
		return nil, upstream(err, "list repositories")
	}
	out := make([]Repository, 0, len(list))
	for _, r := range list {
		out = append(out, Repository{
			ID:        r.GetID(),
			Name:      r.GetName(),
			FullName:  r.GetFullName(),
			HTMLURL:   r.GetHTMLURL(),
			CreatedAt: r.GetCreatedAt().Time,
		})
	}
	return out, nil
}

// ReadManifest decodes the project manifest of a repository into dest.
// A repository without a manifest yields a not_found error.
func (c *Client) ReadManifest(ctx context.Context, token, fullName string, dest any) error {
	api, err := c.api(token)
	if err != nil {
		return err
	}
	owner, repo, err := SplitRepo(fullName)
	if err != nil {
		return err
	}
	file, _, _, err := api.Repositories.GetContents(ctx, owner, repo, ManifestPath, nil)
	if err != nil {
		return upstream(err, "read manifest")
	}
	if file == nil {
		return appErr.New(appErr.CodeNotFound, "manifest is a directory")
	}
	content, err := file.GetContent()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUpstream, "decode manifest")
	}
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		return appErr.Wrap(err, appErr.CodeUpstream, "parse manifest")
	}
	return nil
}

func headSHA(ctx context.Context, api *gh.Client, owner, repo string) (string, error) {
	ref, _, err := api.Git.GetRef(ctx, owner, repo, "heads/"+MainBranch)
	if err != nil {
		return "", upstream(err, "read main")
	}
	return ref.GetObject().GetSHA(), nil
}

// commitFiles writes one blob per file, a tree over base and a commit parented on base.
func commitFiles(ctx context.Context, api *gh.Client, owner, repo, base, message string, files []models.File) (string, error) {
	entries := make([]*gh.TreeEntry, 0, len(files))
	for _, f := range files {
		blob, _, err := api.Git.CreateBlob(ctx, owner, repo, &gh.Blob{
			Content:  gh.String(f.Content),
			Encoding: gh.String("utf-8"),
		})
		if err != nil {
			return "", upstream(err, "create blob "+f.Path)
		}
		entries = append(entries, &gh.TreeEntry{
			Path: gh.String(strings.TrimPrefix(f.Path, "/")),
			Mode: gh.String("100644"),
			Type: gh.String("blob"),
			SHA:  blob.SHA,
		})
	}
	tree, _, err := api.Git.CreateTree(ctx, owner, repo, base, entries)
	if err != nil {
		return "", upstream(err, "create tree")
	}
	commit, _, err := api.Git.CreateCommit(ctx, owner, repo, &gh.Commit{
		Message: gh.String(message),
		Tree:    &gh.Tree{SHA: tree.SHA},
		Parents: []*gh.Commit{{SHA: gh.String(base)}},
	}, nil)
	if err != nil {
		return "", upstream(err, "create commit")
	}
	return commit.GetSHA(), nil
}

// upstream classifies a go-github error.
func upstream(err error, op string) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return appErr.Wrap(err, appErr.CodeUnauthorized, op+": "+ghErr.Message)
		case http.StatusNotFound:
			return appErr.Wrap(err, appErr.CodeNotFound, op+": "+ghErr.Message)
		case http.StatusUnprocessableEntity:
			return appErr.Wrap(err, appErr.CodeConflict, op+": "+ghErr.Message)
		}
		return appErr.Wrap(err, appErr.CodeUpstream, op+": "+ghErr.Message)
	}
	return appErr.Wrap(err, appErr.CodeUpstream, op)
}
