// Package orchestrator runs project initialization as a fixed sequence of
// named steps. Each step declares what happens when it fails, and the run is
// persisted after every step so a worker restart resumes where it stopped.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Policy declares how a step failure affects the run.
type Policy string

const (
	// Soft failures are replaced by the step's fallback and the run continues.
	Soft Policy = "soft"
	// Hard failures end the run as failed.
	Hard Policy = "hard"
	// BestEffort failures are logged and ignored.
	BestEffort Policy = "best_effort"
)

// Step is one unit of the sequence.
type Step struct {
	Name   string
	Policy Policy
	// Announce is logged before Run.
	Announce func(st *State) string
	Run      func(ctx context.Context, st *State) error
	// Fallback substitutes a result after a Soft failure.
	Fallback func(st *State, err error)
	// Finish runs after Run succeeded or Fallback was applied.
	Finish func(st *State)
}

// State is what steps read and write. Run is persisted; AccessToken is not.
type State struct {
	Run         *models.OrchestrationRun
	AccessToken string
	now         func() time.Time

	// logged is how much of Run.Log is already stored.
	logged    int
	workspace bool
}

// SeedWorkspace sets the run's SQL and, when graph is non-nil, its workflow.
// Only seeded workspaces are written back; otherwise the stored workspace
// belongs to the user.
func (s *State) SeedWorkspace(sql string, graph *models.WorkflowGraph) {
	s.Run.SQL = sql
	if graph != nil {
		s.Run.Workflow = datatypes.NewJSONType(*graph)
	}
	s.workspace = true
}

// Logf appends a timestamped line to the run log.
func (s *State) Logf(format string, args ...any) {
	s.Run.Log = append(s.Run.Log, models.LogLine{Timestamp: s.now(), Message: fmt.Sprintf(format, args...)})
}

// RunStore persists runs.
type RunStore interface {
	GetByID(ctx context.Context, id any, dest *models.OrchestrationRun) error
	SaveProgress(ctx context.Context, run *models.OrchestrationRun, logged []models.LogLine, withWorkspace bool) error
	AbortRequested(ctx context.Context, id uuid.UUID) (bool, error)
}

// Observer is told about step and run outcomes.
type Observer interface {
	StepFinished(step, outcome string, d time.Duration)
	RunFinished(status string)
}

type nopObserver struct{}

func (nopObserver) StepFinished(string, string, time.Duration) {}
func (nopObserver) RunFinished(string)                         {}

// Runner executes a step sequence against stored runs.
type Runner struct {
	store       RunStore
	steps       []Step
	stepTimeout time.Duration
	observer    Observer
	now         func() time.Time
}

// Option customises a Runner.
type Option func(*Runner)

func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func NewRunner(store RunStore, steps []Step, stepTimeout time.Duration, opts ...Option) *Runner {
	r := &Runner{
		store:       store,
		steps:       steps,
		stepTimeout: stepTimeout,
		observer:    nopObserver{},
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Messages logged at the edges of a run.
const (
	MsgStart   = "SUPREME ORCHESTRATOR ACTIVATED..."
	MsgDone    = "MISSION ACCOMPLISHED. SYSTEM ONLINE."
	MsgAborted = "MANUAL ABORT INITIATED."
)

// Execute drives run id to a terminal status, skipping steps already done.
// The returned error reports persistence problems only; a failed run is a
// successful execution with status failed.
func (r *Runner) Execute(ctx context.Context, id uuid.UUID, accessToken string) (*models.OrchestrationRun, error) {
	log := logger.ForRun(id.String())

	var run models.OrchestrationRun
	if err := r.store.GetByID(ctx, id, &run); err != nil {
		return nil, err
	}
	if run.Terminal() {
		log.Info("run already finished", zap.String("status", run.Status))
		return &run, nil
	}

	st := &State{Run: &run, AccessToken: accessToken, now: r.now, logged: len(run.Log)}
	if run.Status == models.RunPending {
		st.Logf(MsgStart)
	}
	run.Status = models.RunRunning
	run.Error = ""
	if err := r.save(ctx, st); err != nil {
		return nil, err
	}

	for _, step := range r.steps {
		if run.StepDone(step.Name) {
			continue
		}
		aborted, err := r.store.AbortRequested(ctx, id)
		if err != nil {
			return nil, err
		}
		if aborted {
			st.Logf(MsgAborted)
			return r.finish(ctx, st, models.RunAborted, "")
		}

		run.CurrentStep = step.Name
		failed := r.runStep(ctx, st, step, log)
		if err := r.save(ctx, st); err != nil {
			return nil, err
		}
		if failed != nil {
			st.Logf("CRITICAL ERROR: %s", appErr.Message(failed))
			return r.finish(ctx, st, models.RunFailed, appErr.Message(failed))
		}
	}

	st.Logf(MsgDone)
	return r.finish(ctx, st, models.RunSucceeded, "")
}

// runStep executes one step and records its outcome. It returns the error
// only when the step's policy makes the failure fatal.
func (r *Runner) runStep(ctx context.Context, st *State, step Step, log *zap.Logger) error {
	if step.Announce != nil {
		st.Logf("%s", step.Announce(st))
	}
	rec := models.StepRecord{Name: step.Name, Policy: string(step.Policy), StartedAt: r.now()}

	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	err := step.Run(stepCtx, st)
	if err != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && !appErr.IsCode(err, appErr.CodeDeadline) {
		err = appErr.Wrap(err, appErr.CodeDeadline, fmt.Sprintf("%s timed out after %s", step.Name, r.stepTimeout))
	}
	cancel()

	rec.FinishedAt = r.now()
	var fatal error
	switch {
	case err == nil:
		rec.Outcome = models.StepSucceeded
	case step.Policy == Soft:
		rec.Outcome = models.StepFallback
		if step.Fallback != nil {
			step.Fallback(st, err)
		}
	case step.Policy == Hard:
		rec.Outcome = models.StepFailed
		fatal = err
	default:
		rec.Outcome = models.StepSkipped
	}
	if err != nil {
		rec.Code = string(appErr.CodeOf(err))
		rec.Error = err.Error()
		log.Warn("step failed", zap.String("step", step.Name), zap.String("policy", string(step.Policy)), zap.Error(err))
	}
	if fatal == nil && step.Finish != nil {
		step.Finish(st)
	}
	st.Run.RecordStep(rec)
	r.observer.StepFinished(step.Name, rec.Outcome, rec.FinishedAt.Sub(rec.StartedAt))
	return fatal
}

func (r *Runner) finish(ctx context.Context, st *State, status, errMsg string) (*models.OrchestrationRun, error) {
	st.Run.Status = status
	st.Run.Error = errMsg
	st.Run.CurrentStep = ""
	if err := r.save(ctx, st); err != nil {
		return nil, err
	}
	r.observer.RunFinished(status)
	logger.ForRun(st.Run.ID.String()).Info("run finished", zap.String("status", status))
	return st.Run, nil
}

// save persists the runner-owned columns and the log lines added since the
// last save.
func (r *Runner) save(ctx context.Context, st *State) error {
	if err := r.store.SaveProgress(ctx, st.Run, st.Run.Log[st.logged:], st.workspace); err != nil {
		return err
	}
	st.logged = len(st.Run.Log)
	st.workspace = false
	return nil
}
