package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/models"
)

type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) StartRun(ctx context.Context, name, prompt, accessToken string) (*models.OrchestrationRun, error) {
	var run models.OrchestrationRun
	body := types.StartRunRequest{Name: name, Prompt: prompt, AccessToken: accessToken}
	if err := c.do(ctx, http.MethodPost, "/runs", body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *client) GetRun(ctx context.Context, id string) (*models.OrchestrationRun, error) {
	var run models.OrchestrationRun
	if err := c.do(ctx, http.MethodGet, "/runs/"+id, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *client) AbortRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/runs/"+id+"/abort", nil, nil)
}

// Follow prints new log lines of run id until it reaches a terminal status.
// A failed or aborted run is reported as an error.
func (c *client) Follow(ctx context.Context, id string, interval time.Duration, out io.Writer) error {
	seen := 0
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			return err
		}
		for ; seen < len(run.Log); seen++ {
			l := run.Log[seen]
			fmt.Fprintf(out, "%s %s\n", l.Timestamp.Format(time.TimeOnly), l.Message)
		}
		switch run.Status {
		case models.RunSucceeded:
			printRun(out, run)
			return nil
		case models.RunFailed, models.RunAborted:
			printRun(out, run)
			return fmt.Errorf("run %s %s", run.Status, run.Error)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *types.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: unexpected response (%d)", method, path, resp.StatusCode)
	}
	if !env.Success || resp.StatusCode >= 400 {
		if env.Error != nil {
			return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func printRun(w io.Writer, run *models.OrchestrationRun) {
	fmt.Fprintf(w, "id:      %s\nstatus:  %s\nstep:    %s\n", run.ID, run.Status, run.CurrentStep)
	if u := run.Deploy.Data().DeployURL; u != "" {
		fmt.Fprintf(w, "deploy:  %s\n", u)
	}
	if run.Repo.Data().URL != "" {
		fmt.Fprintf(w, "repo:    %s\n", run.Repo.Data().URL)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "error:   %s\n", run.Error)
	}
}
