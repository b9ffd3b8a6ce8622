package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunAborted   = "aborted"
)

// Step outcomes.
const (
	StepSucceeded = "succeeded"
	StepFallback  = "fallback"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// LogLine is one timestamped orchestration log entry.
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// StepRecord is the persisted outcome of one orchestration step.
type StepRecord struct {
	Name       string    `json:"name"`
	Policy     string    `json:"policy"`
	Outcome    string    `json:"outcome"`
	Code       string    `json:"code,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// OrchestrationRun is a project-initialization job together with the
// workspace it produces (SQL, workflow graph, preview URL). Every step
// persists its result here so the job can resume after a restart.
type OrchestrationRun struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Name        string    `gorm:"not null" json:"name" validate:"required"`
	Slug        string    `gorm:"not null;index" json:"slug"`
	Prompt      string    `gorm:"type:text;not null" json:"prompt" validate:"required"`
	Status      string    `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	CurrentStep string    `gorm:"type:varchar(32)" json:"current_step"`

	Steps  datatypes.JSONSlice[StepRecord] `gorm:"type:jsonb" json:"steps"`
	Plan   datatypes.JSONType[Plan]        `gorm:"type:jsonb" json:"plan"`
	Files  datatypes.JSONSlice[File]       `gorm:"type:jsonb" json:"files"`
	Repo   datatypes.JSONType[RepoRef]     `gorm:"type:jsonb" json:"repo"`
	Deploy datatypes.JSONType[Deployment]  `gorm:"type:jsonb" json:"deploy"`

	SQL        string                            `gorm:"type:text" json:"sql"`
	Workflow   datatypes.JSONType[WorkflowGraph] `gorm:"type:jsonb" json:"workflow"`
	PreviewURL string                            `json:"preview_url"`

	Log            datatypes.JSONSlice[LogLine] `gorm:"type:jsonb" json:"log"`
	Error          string                       `gorm:"type:text" json:"error,omitempty"`
	AbortRequested bool                         `gorm:"not null;default:false" json:"abort_requested"`
	ProjectID      *uuid.UUID                   `gorm:"type:uuid" json:"project_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StepDone reports whether name already has a terminal, non-failed outcome.
func (r *OrchestrationRun) StepDone(name string) bool {
	for _, s := range r.Steps {
		if s.Name == name && s.Outcome != StepFailed {
			return true
		}
	}
	return false
}

// RecordStep replaces any previous record for the same step.
func (r *OrchestrationRun) RecordStep(rec StepRecord) {
	for i, s := range r.Steps {
		if s.Name == rec.Name {
			r.Steps[i] = rec
			return
		}
	}
	r.Steps = append(r.Steps, rec)
}

// Terminal reports whether the run can no longer progress.
func (r *OrchestrationRun) Terminal() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed || r.Status == RunAborted
}
