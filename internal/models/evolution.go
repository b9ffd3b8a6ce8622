package models

import (
	"time"

	"github.com/google/uuid"
)

// EvolutionRecord tracks an improvement pull request opened against a project repo.
type EvolutionRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID   string    `gorm:"index;not null" json:"project_id"`
	Version     string    `gorm:"not null" json:"version"`
	Description string    `gorm:"type:text" json:"description"`
	PRNumber    int       `json:"pr_number"`
	Status      string    `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
