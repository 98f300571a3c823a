package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the RunStore interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite run store instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: database path is required", common.ErrInvalidConfig)
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun records the start of a selection run and returns its id.
func (s *SQLiteStore) CreateRun(ctx context.Context, params service.RunParams) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, state, album_dir, output_dir, batch_size,
			pre_filter, keep_top_k, aesthetic_weight, photo_count, category_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), model.RunStateRunning,
		params.AlbumDir, params.OutputDir, params.BatchSize,
		params.PreFilter, params.KeepTopK, params.AestheticWeight,
		params.PhotoCount, params.CategoryCount)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

// FinishRun records the terminal state of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, id int64, state model.RunState, runErr string, selectedCount int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, state = ?, error = ?, selected_count = ?
		WHERE id = ?`,
		time.Now().UTC(), state, runErr, selectedCount, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// SaveClassifications persists one record per classified photo for a run.
func (s *SQLiteStore) SaveClassifications(ctx context.Context, runID int64, results model.ClassificationResults) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO run_classifications
			(run_id, photo, category, category_number, probability)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	// Insert in sorted photo order so writes are deterministic.
	photos := make([]string, 0, len(results))
	for photo := range results {
		photos = append(photos, photo)
	}
	sort.Strings(photos)

	for _, photo := range photos {
		record := results[photo]
		if _, err := stmt.ExecContext(ctx, runID, photo,
			record.CategoryName, record.CategoryNumber, record.Probability); err != nil {
			return fmt.Errorf("failed to save classification for %s: %w", photo, err)
		}
	}

	return tx.Commit()
}

// SaveSelection persists the final per-category selection of a run along
// with the composite score of each kept photo.
func (s *SQLiteStore) SaveSelection(ctx context.Context, runID int64, selection model.Selection, scores model.ScoredLists) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO run_selections (run_id, category, photo, rank, score)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, category := range selection.Categories() {
		for rank, photo := range selection[category] {
			score := 0.0
			if list, ok := scores[category]; ok {
				score = list[photo]
			}
			if _, err := stmt.ExecContext(ctx, runID, category, photo, rank, score); err != nil {
				return fmt.Errorf("failed to save selection for %s: %w", category, err)
			}
		}
	}

	return tx.Commit()
}

// GetRun returns a single run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*service.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, state, album_dir, output_dir,
			photo_count, category_count, selected_count, error
		FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]service.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, state, album_dir, output_dir,
			photo_count, category_count, selected_count, error
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []service.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetSelection reconstructs the stored selection of a run, each category in
// rank order.
func (s *SQLiteStore) GetSelection(ctx context.Context, runID int64) (model.Selection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, photo FROM run_selections
		WHERE run_id = ? ORDER BY category, rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}
	defer rows.Close()

	selection := make(model.Selection)
	for rows.Next() {
		var category, photo string
		if err := rows.Scan(&category, &photo); err != nil {
			return nil, fmt.Errorf("failed to scan selection row: %w", err)
		}
		selection[category] = append(selection[category], photo)
	}
	return selection, rows.Err()
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*service.Run, error) {
	var run service.Run
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.State,
		&run.AlbumDir, &run.OutputDir, &run.PhotoCount, &run.CategoryCount,
		&run.SelectedCount, &run.Error); err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}
