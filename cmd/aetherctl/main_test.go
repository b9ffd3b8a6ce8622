package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlueprintCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"blueprint", "an online shop with a cart"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "# fixture: ecommerce")
	assert.Contains(t, out.String(), "sql:")
}

func TestBlueprintSQLOnly(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"blueprint", "--sql", "track users and orders"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "CREATE TABLE")
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.APIResponse{Success: status < 400, Data: data})
}

func TestFollowPrintsNewLinesUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		run := models.OrchestrationRun{Status: models.RunRunning}
		run.Log = append(run.Log, models.LogLine{Timestamp: ts, Message: "planning"})
		if polls.Add(1) > 1 {
			run.Status = models.RunSucceeded
			run.Log = append(run.Log, models.LogLine{Timestamp: ts, Message: "done"})
		}
		writeEnvelope(w, http.StatusOK, run)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := newClient(srv.URL, "tok").Follow(context.Background(), "abc", time.Millisecond, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("planning")))
	assert.Contains(t, out.String(), "03:04:05 done")
	assert.Contains(t, out.String(), "status:  succeeded")
}

func TestFollowReportsFailedRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, models.OrchestrationRun{Status: models.RunFailed, Error: "deploy: quota"})
	}))
	defer srv.Close()

	err := newClient(srv.URL, "").Follow(context.Background(), "abc", time.Millisecond, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deploy: quota")
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(types.APIResponse{Error: &types.APIError{Code: "conflict", Message: "run already finished"}})
	}))
	defer srv.Close()

	err := newClient(srv.URL+"/", "").AbortRun(context.Background(), "abc")
	require.EqualError(t, err, "conflict: run already finished")
}

func TestStartRunSendsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runs", r.URL.Path)
		var req types.StartRunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Shop", req.Name)
		assert.Equal(t, "gh-token", req.AccessToken)
		writeEnvelope(w, http.StatusAccepted, models.OrchestrationRun{Name: req.Name, Status: models.RunPending})
	}))
	defer srv.Close()

	run, err := newClient(srv.URL, "").StartRun(context.Background(), "Shop", "a shop", "gh-token")
	require.NoError(t, err)
	assert.Equal(t, models.RunPending, run.Status)
}
