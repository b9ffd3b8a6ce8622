package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is an application produced by a successful orchestration run.
type Project struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id" validate:"required"`
	Name          string         `gorm:"not null" json:"name" validate:"required"`
	RepoName      string         `gorm:"index" json:"repo_name"`
	RepoURL       string         `json:"repo_url"`
	DeploymentURL string         `json:"deployment_url"`
	Status        string         `gorm:"type:varchar(32);not null;default:active" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-" swaggerignore:"true"`
}

// ProjectManifest is committed to a repository as .aether/project.json so
// projects can be rediscovered from the Git host alone.
type ProjectManifest struct {
	Name      string    `json:"name"`
	RepoName  string    `json:"repoName"`
	RepoURL   string    `json:"repoUrl"`
	DeployURL string    `json:"deployUrl"`
	CreatedAt time.Time `json:"createdAt"`
}
