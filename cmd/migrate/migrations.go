package main

import (
	"github.com/aether-os/engine/internal/models"
	"gorm.io/gorm"
)

// registerModels returns all models that need migration.
func registerModels() []any {
	return []any{
		&models.Project{},
		&models.Subscription{},
		&models.EvolutionRecord{},
		&models.ProjectMetadata{},
		&models.OrchestrationRun{},
	}
}

// runMigrations executes all database migrations.
func runMigrations(db *gorm.DB) error {
	// gen_random_uuid() defaults need pgcrypto before any table is created.
	if err := enableUUIDExtension(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle.
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addRunIndexes,
		addEvolutionIndexes,
	}
	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}
	return nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addRunIndexes serves the "most recent runs" listing.
func addRunIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_orchestration_runs_user_created
		ON orchestration_runs(user_id, created_at DESC)
	`).Error
}

func addEvolutionIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_evolution_records_project_created
		ON evolution_records(project_id, created_at DESC)
	`).Error
}
