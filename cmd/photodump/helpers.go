package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/photodump/internal/clip"
	"github.com/Veraticus/photodump/internal/config"
	"github.com/Veraticus/photodump/internal/engine"
	"github.com/Veraticus/photodump/internal/service"
	"github.com/Veraticus/photodump/internal/storage"
)

// initRunStore opens the run history database with auto-migration.
func initRunStore(ctx context.Context) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(config.ExpandPath(viper.GetString("database.path")))
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate run store: %w", err)
	}
	return store, nil
}

// pipelineConfig assembles the engine configuration from viper.
func pipelineConfig() engine.Config {
	return engine.Config{
		BatchSize:       viper.GetInt("pipeline.batch_size"),
		PreFilter:       viper.GetInt("pipeline.pre_filter"),
		KeepTopK:        viper.GetInt("pipeline.keep_top_k"),
		AestheticWeight: viper.GetFloat64("pipeline.aesthetic_weight"),
		DedupeDistance:  viper.GetInt("pipeline.dedupe_distance"),
		Retry:           service.RetryOptions{MaxAttempts: 2},
	}
}

// buildEngine loads the configured ONNX models and assembles the selection
// engine. The returned cleanup releases the model sessions.
func buildEngine(files service.Storage, cfg engine.Config) (*engine.SelectionEngine, func(), error) {
	if err := clip.InitRuntime(config.ExpandPath(viper.GetString("models.runtime_lib"))); err != nil {
		return nil, nil, err
	}

	clipSession, err := clip.NewSession(
		config.ExpandPath(viper.GetString("models.clip")),
		config.ExpandPath(viper.GetString("models.tokenizer")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load CLIP model: %w", err)
	}

	aesthetic, err := clip.NewAestheticScorer(config.ExpandPath(viper.GetString("models.aesthetic")))
	if err != nil {
		clipSession.Destroy()
		return nil, nil, fmt.Errorf("failed to load aesthetic model: %w", err)
	}

	cleanup := func() {
		aesthetic.Destroy()
		clipSession.Destroy()
	}

	eng := engine.NewWithConfig(
		files,
		clip.NewClassifier(clipSession),
		clip.NewSimilarityScorer(clipSession),
		aesthetic,
		cfg,
	)

	return eng, cleanup, nil
}
