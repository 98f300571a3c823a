// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/photodump/internal/model"
)

// Storage defines the contract for the filesystem collaborator. The core
// never touches the filesystem directly; transient uploads and output
// folders are only ever mutated through this interface.
type Storage interface {
	// Copy duplicates src to dst, creating parent directories as needed and
	// overwriting any prior copy.
	Copy(ctx context.Context, src, dst string) error
	// DeleteTree removes a path and everything beneath it. Missing paths are
	// not an error.
	DeleteTree(ctx context.Context, path string) error
	// ClearDir empties a directory without removing the directory itself.
	ClearDir(ctx context.Context, dir string) error
	// ListImages returns the image files directly inside dir in a stable
	// (lexical) order.
	ListImages(ctx context.Context, dir string) ([]model.Photo, error)
	// Remove deletes a single file. Returns common.ErrNotFound when absent.
	Remove(ctx context.Context, path string) error
}

// Run is one recorded execution of the selection pipeline.
type Run struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	State         model.RunState
	AlbumDir      string
	OutputDir     string
	Error         string
	ID            int64
	PhotoCount    int
	CategoryCount int
	SelectedCount int
}

// RunParams captures the knobs a run was started with.
type RunParams struct {
	AlbumDir        string
	OutputDir       string
	BatchSize       int
	PreFilter       int
	KeepTopK        int
	PhotoCount      int
	CategoryCount   int
	AestheticWeight float64
}

// RunStore defines the contract for run history persistence.
type RunStore interface {
	CreateRun(ctx context.Context, params RunParams) (int64, error)
	FinishRun(ctx context.Context, id int64, state model.RunState, runErr string, selectedCount int) error
	SaveClassifications(ctx context.Context, runID int64, results model.ClassificationResults) error
	SaveSelection(ctx context.Context, runID int64, selection model.Selection, scores model.ScoredLists) error
	GetRun(ctx context.Context, id int64) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetSelection(ctx context.Context, runID int64) (model.Selection, error)
}

// RetryOptions configures retry behavior for transient failures.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
