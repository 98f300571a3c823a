// Package engine implements the selection pipeline that turns an unsorted
// photo album into a curated, bounded photo dump.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/dedupe"
	"github.com/Veraticus/photodump/internal/grouper"
	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/ranker"
	"github.com/Veraticus/photodump/internal/service"
)

// Artifact file names written into the output directory for auditability.
const (
	ClassificationArtifact = "category_results.json"
	GroupArtifact          = "category_list.json"
	ScoreArtifact          = "ranked_categories.json"
)

// Config holds configuration options for the selection engine.
type Config struct {
	// OnProgress, when set, is invoked after every classified batch.
	OnProgress func(done, total int)
	// Retry applies to classifier batch calls that fail retryably.
	Retry service.RetryOptions
	// BatchSize bounds how many photos go into one classifier call.
	BatchSize int
	// PreFilter bounds how many confidence-ranked candidates per category
	// are scored; zero scores the whole group.
	PreFilter int
	// KeepTopK bounds the final selection size per category.
	KeepTopK int
	// DedupeDistance enables the near-duplicate pre-pass when positive; it
	// is the maximum perceptual hash distance treated as a duplicate.
	DedupeDistance int
	// AestheticWeight is the convex weight for the aesthetic score.
	AestheticWeight float64
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:       4,
		PreFilter:       100,
		KeepTopK:        1,
		AestheticWeight: 0.6,
	}
}

// SelectionEngine orchestrates classification, grouping, ranking and
// materialization as one unit of work. A session coordinator executes it at
// most once at a time.
type SelectionEngine struct {
	files      service.Storage
	classifier Classifier
	ranker     *ranker.Ranker
	runs       service.RunStore
	config     Config
}

// New creates a selection engine with the default configuration.
func New(files service.Storage, classifier Classifier, similarity, aesthetic ranker.Scorer) *SelectionEngine {
	return NewWithConfig(files, classifier, similarity, aesthetic, DefaultConfig())
}

// NewWithConfig creates a selection engine with custom configuration.
func NewWithConfig(files service.Storage, classifier Classifier, similarity, aesthetic ranker.Scorer, config Config) *SelectionEngine {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &SelectionEngine{
		files:      files,
		classifier: classifier,
		ranker:     ranker.New(similarity, aesthetic),
		config:     config,
	}
}

// WithRunStore attaches a run history store; every subsequent Run records
// its parameters, classification records and final selection there.
func (e *SelectionEngine) WithRunStore(runs service.RunStore) *SelectionEngine {
	e.runs = runs
	return e
}

// Run executes the full pipeline for the album directory: list photos,
// classify them in batches, group per category, rank, and copy the winners
// into per-category folders under outputDir. Returns the final Selection.
func (e *SelectionEngine) Run(ctx context.Context, albumDir, outputDir string, categories []model.Category) (model.Selection, error) {
	if len(categories) < 2 {
		return nil, fmt.Errorf("%w: need at least one category besides %q", common.ErrNoCategories, model.NoneCategory)
	}

	photos, err := e.files.ListImages(ctx, albumDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list album: %w", err)
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("%w in %s", common.ErrNoImages, albumDir)
	}

	slog.Info("Starting selection run",
		"album", albumDir,
		"photos", len(photos),
		"categories", len(categories)-1)

	if e.config.DedupeDistance > 0 {
		photos = dedupe.Filter(ctx, photos, e.config.DedupeDistance)
	}

	runID := e.recordStart(ctx, albumDir, outputDir, len(photos), len(categories)-1)

	results, err := e.classifyAll(ctx, photos, categories)
	if err != nil {
		e.recordFinish(ctx, runID, model.RunStateFailed, err.Error(), 0)
		return nil, err
	}

	groups := grouper.Group(photos, results)

	selection, scores, err := e.ranker.Rank(ctx, groups, ranker.Params{
		PreFilter:       e.config.PreFilter,
		KeepTopK:        e.config.KeepTopK,
		AestheticWeight: e.config.AestheticWeight,
	})
	if err != nil {
		e.recordFinish(ctx, runID, model.RunStateFailed, err.Error(), 0)
		return nil, fmt.Errorf("ranking failed: %w", err)
	}

	if err := e.materialize(ctx, selection, outputDir); err != nil {
		e.recordFinish(ctx, runID, model.RunStateFailed, err.Error(), 0)
		return nil, err
	}

	e.writeArtifacts(outputDir, results, groups, scores)
	e.recordResults(ctx, runID, results, selection, scores)

	slog.Info("Selection run complete",
		"categories", len(selection),
		"selected", selection.Photos())

	return selection, nil
}

// classifyAll feeds photos to the classifier in batches and merges the
// per-photo records. A batch that keeps failing after retries excludes its
// photos from every category; if no photo at all could be classified the
// run fails.
func (e *SelectionEngine) classifyAll(ctx context.Context, photos []model.Photo, categories []model.Category) (model.ClassificationResults, error) {
	results := make(model.ClassificationResults, len(photos))
	failedBatches := 0

	for start := 0; start < len(photos); start += e.config.BatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + e.config.BatchSize
		if end > len(photos) {
			end = len(photos)
		}
		batch := photos[start:end]

		var batchResults model.ClassificationResults
		err := common.WithRetry(ctx, func() error {
			var classifyErr error
			batchResults, classifyErr = e.classifier.Classify(ctx, batch, categories)
			return classifyErr
		}, e.config.Retry)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			slog.Warn("Excluding batch after classification failure",
				"photos", model.PhotoPaths(batch),
				"error", err)
			failedBatches++
		} else {
			for path, record := range batchResults {
				results[path] = record
			}
		}

		if e.config.OnProgress != nil {
			e.config.OnProgress(end, len(photos))
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no photo could be classified (%d batches failed)",
			common.ErrClassificationFailed, failedBatches)
	}

	return results, nil
}

// materialize copies every selected photo into an output folder named after
// its category. Re-running with the same selection overwrites prior copies;
// a source that vanished since classification is skipped, not fatal.
func (e *SelectionEngine) materialize(ctx context.Context, selection model.Selection, outputDir string) error {
	for _, category := range selection.Categories() {
		for _, src := range selection[category] {
			dst := filepath.Join(outputDir, category, filepath.Base(src))
			if err := e.files.Copy(ctx, src, dst); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					slog.Warn("Selected photo no longer exists, skipping",
						"photo", src,
						"category", category)
					continue
				}
				return fmt.Errorf("failed to materialize %s: %w", src, err)
			}
		}
	}
	return nil
}

// writeArtifacts serializes the intermediate pipeline products as JSON for
// debugging. Artifact failures are logged, never fatal.
func (e *SelectionEngine) writeArtifacts(outputDir string, results model.ClassificationResults, groups model.CategoryGroup, scores model.ScoredLists) {
	artifacts := map[string]any{
		ClassificationArtifact: results,
		GroupArtifact:          groups,
		ScoreArtifact:          scores,
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		slog.Warn("Cannot create output directory for artifacts", "dir", outputDir, "error", err)
		return
	}

	for name, artifact := range artifacts {
		data, err := json.MarshalIndent(artifact, "", "  ")
		if err != nil {
			slog.Warn("Failed to serialize artifact", "artifact", name, "error", err)
			continue
		}
		if err := os.WriteFile(filepath.Join(outputDir, name), data, 0o600); err != nil {
			slog.Warn("Failed to write artifact", "artifact", name, "error", err)
		}
	}
}

func (e *SelectionEngine) recordStart(ctx context.Context, albumDir, outputDir string, photoCount, categoryCount int) int64 {
	if e.runs == nil {
		return 0
	}

	runID, err := e.runs.CreateRun(ctx, service.RunParams{
		AlbumDir:        albumDir,
		OutputDir:       outputDir,
		BatchSize:       e.config.BatchSize,
		PreFilter:       e.config.PreFilter,
		KeepTopK:        e.config.KeepTopK,
		AestheticWeight: e.config.AestheticWeight,
		PhotoCount:      photoCount,
		CategoryCount:   categoryCount,
	})
	if err != nil {
		slog.Warn("Failed to record run start", "error", err)
		return 0
	}
	return runID
}

func (e *SelectionEngine) recordFinish(ctx context.Context, runID int64, state model.RunState, runErr string, selected int) {
	if e.runs == nil || runID == 0 {
		return
	}
	if err := e.runs.FinishRun(ctx, runID, state, runErr, selected); err != nil {
		slog.Warn("Failed to record run finish", "run_id", runID, "error", err)
	}
}

func (e *SelectionEngine) recordResults(ctx context.Context, runID int64, results model.ClassificationResults, selection model.Selection, scores model.ScoredLists) {
	if e.runs == nil || runID == 0 {
		return
	}
	if err := e.runs.SaveClassifications(ctx, runID, results); err != nil {
		slog.Warn("Failed to record classifications", "run_id", runID, "error", err)
	}
	if err := e.runs.SaveSelection(ctx, runID, selection, scores); err != nil {
		slog.Warn("Failed to record selection", "run_id", runID, "error", err)
	}
	e.recordFinish(ctx, runID, model.RunStateCompleted, "", selection.Photos())
}
