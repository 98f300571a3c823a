package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 1

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					state TEXT NOT NULL,
					album_dir TEXT NOT NULL,
					output_dir TEXT NOT NULL,
					batch_size INTEGER NOT NULL,
					pre_filter INTEGER NOT NULL,
					keep_top_k INTEGER NOT NULL,
					aesthetic_weight REAL NOT NULL,
					photo_count INTEGER NOT NULL,
					category_count INTEGER NOT NULL,
					selected_count INTEGER NOT NULL DEFAULT 0,
					error TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_runs_started ON runs(started_at)`,

				`CREATE TABLE IF NOT EXISTS run_classifications (
					run_id INTEGER NOT NULL,
					photo TEXT NOT NULL,
					category TEXT NOT NULL,
					category_number INTEGER NOT NULL,
					probability REAL NOT NULL,
					PRIMARY KEY (run_id, photo),
					FOREIGN KEY (run_id) REFERENCES runs(id)
				)`,
				`CREATE INDEX idx_run_classifications_category ON run_classifications(run_id, category)`,

				`CREATE TABLE IF NOT EXISTS run_selections (
					run_id INTEGER NOT NULL,
					category TEXT NOT NULL,
					photo TEXT NOT NULL,
					rank INTEGER NOT NULL,
					score REAL NOT NULL,
					PRIMARY KEY (run_id, category, rank),
					FOREIGN KEY (run_id) REFERENCES runs(id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute %q: %w", query[:40], err)
				}
			}
			return nil
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
