package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProjectMetadata is what the engine remembers about a deployed project
// between builds: its layout, dependencies and known schema tables.
type ProjectMetadata struct {
	ProjectID       string                              `gorm:"primaryKey" json:"project_id"`
	Name            string                              `json:"name"`
	Structure       datatypes.JSONMap                   `gorm:"type:jsonb" json:"structure"`
	Dependencies    datatypes.JSONSlice[string]         `gorm:"type:jsonb" json:"dependencies"`
	EnvVars         datatypes.JSONMap                   `gorm:"type:jsonb" json:"env_vars"`
	SchemaTables    datatypes.JSONSlice[string]         `gorm:"type:jsonb" json:"schema_tables"`
	LastBuildStatus string                              `gorm:"type:varchar(16)" json:"last_build_status"`
	ErrorLogs       datatypes.JSONSlice[BuildErrorEntry] `gorm:"type:jsonb" json:"error_logs"`
	UpdatedAt       time.Time                           `json:"updated_at"`
}

// BuildErrorEntry is one recorded build failure.
type BuildErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
