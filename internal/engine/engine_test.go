package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/storage"
)

func testCategories(t *testing.T, names ...string) []model.Category {
	t.Helper()
	categories, err := model.MakeCategories(names)
	require.NoError(t, err)
	return categories
}

func seedAlbum(store *storage.MockStore, album string, photos ...string) []string {
	paths := make([]string, len(photos))
	for i, p := range photos {
		paths[i] = album + "/" + p
		store.AddFile(paths[i])
	}
	return paths
}

func TestSelectionEngine_Run_EndToEnd(t *testing.T) {
	store := storage.NewMockStore()
	paths := seedAlbum(store, "/album", "p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg", "p5.jpg", "p6.jpg")

	classifier := NewMockClassifier(model.ClassificationResults{
		paths[0]: {CategoryName: "A", CategoryNumber: 1, Probability: 0.95},
		paths[1]: {CategoryName: "A", CategoryNumber: 1, Probability: 0.90},
		paths[2]: {CategoryName: "B", CategoryNumber: 2, Probability: 0.85},
		paths[3]: {CategoryName: "B", CategoryNumber: 2, Probability: 0.80},
		paths[4]: {CategoryName: "C", CategoryNumber: 3, Probability: 0.75},
		paths[5]: {CategoryName: "C", CategoryNumber: 3, Probability: 0.70},
	})

	scores := map[string]float64{
		paths[0]: 0.1, paths[1]: 0.9,
		paths[2]: 0.8, paths[3]: 0.2,
		paths[4]: 0.3, paths[5]: 0.7,
	}

	eng := NewWithConfig(store, classifier, NewMockScorer(scores), NewMockScorer(scores), Config{
		BatchSize:       4,
		PreFilter:       2,
		KeepTopK:        1,
		AestheticWeight: 0.6,
	})

	outputDir := t.TempDir()
	selection, err := eng.Run(context.Background(), "/album", outputDir, testCategories(t, "A", "B", "C"))
	require.NoError(t, err)

	assert.Equal(t, model.Selection{
		"A": {paths[1]},
		"B": {paths[2]},
		"C": {paths[5]},
	}, selection)

	// Winners got copied into per-category folders.
	assert.True(t, store.HasFile(filepath.Join(outputDir, "A", "p2.jpg")))
	assert.True(t, store.HasFile(filepath.Join(outputDir, "B", "p3.jpg")))
	assert.True(t, store.HasFile(filepath.Join(outputDir, "C", "p6.jpg")))
}

func TestSelectionEngine_Run_Determinism(t *testing.T) {
	store := storage.NewMockStore()
	paths := seedAlbum(store, "/album", "p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg")

	results := model.ClassificationResults{
		paths[0]: {CategoryName: "A", CategoryNumber: 1, Probability: 0.9},
		paths[1]: {CategoryName: "A", CategoryNumber: 1, Probability: 0.9},
		paths[2]: {CategoryName: "B", CategoryNumber: 2, Probability: 0.8},
		paths[3]: {CategoryName: "B", CategoryNumber: 2, Probability: 0.8},
	}
	scores := map[string]float64{paths[0]: 0.5, paths[1]: 0.5, paths[2]: 0.5, paths[3]: 0.5}

	run := func() model.Selection {
		eng := NewWithConfig(store, NewMockClassifier(results), NewMockScorer(scores), NewMockScorer(scores), Config{
			BatchSize:       2,
			KeepTopK:        2,
			AestheticWeight: 0.5,
		})
		selection, err := eng.Run(context.Background(), "/album", t.TempDir(), testCategories(t, "A", "B"))
		require.NoError(t, err)
		return selection
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}

	// All ties, so both order within categories and the set of winners come
	// from the lexical listing order.
	assert.Equal(t, []string{paths[0], paths[1]}, first["A"])
}

func TestSelectionEngine_Run_BatchesRespectBatchSize(t *testing.T) {
	store := storage.NewMockStore()
	paths := seedAlbum(store, "/album", "p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg", "p5.jpg")

	results := make(model.ClassificationResults)
	for _, p := range paths {
		results[p] = model.ClassificationRecord{CategoryName: "A", CategoryNumber: 1, Probability: 0.9}
	}

	classifier := NewMockClassifier(results)
	var progress [][2]int

	eng := NewWithConfig(store, classifier, NewMockScorer(nil), NewMockScorer(nil), Config{
		BatchSize:       2,
		KeepTopK:        1,
		AestheticWeight: 0.5,
		OnProgress:      func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})

	_, err := eng.Run(context.Background(), "/album", t.TempDir(), testCategories(t, "A"))
	require.NoError(t, err)

	batches := classifier.Batches()
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)
}

func TestSelectionEngine_Run_FailedBatchExcludedNotFatal(t *testing.T) {
	store := storage.NewMockStore()
	paths := seedAlbum(store, "/album", "p1.jpg", "p2.jpg")

	// The canned table only knows p2; p1's batch is made to fail by a
	// classifier wrapper that errors on it.
	classifier := &flakyClassifier{
		inner: NewMockClassifier(model.ClassificationResults{
			paths[1]: {CategoryName: "A", CategoryNumber: 1, Probability: 0.9},
		}),
		failPhotos: map[string]bool{paths[0]: true},
	}

	scores := map[string]float64{paths[1]: 0.5}
	eng := NewWithConfig(store, classifier, NewMockScorer(scores), NewMockScorer(scores), Config{
		BatchSize:       1,
		KeepTopK:        1,
		AestheticWeight: 0.5,
	})

	selection, err := eng.Run(context.Background(), "/album", t.TempDir(), testCategories(t, "A"))
	require.NoError(t, err)

	assert.Equal(t, []string{paths[1]}, selection["A"])
}

func TestSelectionEngine_Run_AllBatchesFailedIsFatal(t *testing.T) {
	store := storage.NewMockStore()
	seedAlbum(store, "/album", "p1.jpg", "p2.jpg")

	classifier := NewMockClassifier(nil)
	classifier.FailWith(errors.New("model unavailable"))

	eng := NewWithConfig(store, classifier, NewMockScorer(nil), NewMockScorer(nil), Config{
		BatchSize:       2,
		KeepTopK:        1,
		AestheticWeight: 0.5,
	})

	_, err := eng.Run(context.Background(), "/album", t.TempDir(), testCategories(t, "A"))
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
}

func TestSelectionEngine_Run_ValidatesInputs(t *testing.T) {
	store := storage.NewMockStore()
	eng := New(store, NewMockClassifier(nil), NewMockScorer(nil), NewMockScorer(nil))

	t.Run("needs a user category besides None", func(t *testing.T) {
		_, err := eng.Run(context.Background(), "/album", t.TempDir(), testCategories(t))
		assert.ErrorIs(t, err, common.ErrNoCategories)
	})

	t.Run("empty album fails", func(t *testing.T) {
		_, err := eng.Run(context.Background(), "/album", t.TempDir(), testCategories(t, "A"))
		assert.ErrorIs(t, err, common.ErrNoImages)
	})
}

func TestSelectionEngine_Run_MissingSourceSkipped(t *testing.T) {
	store := storage.NewMockStore()
	paths := seedAlbum(store, "/album", "p1.jpg", "p2.jpg")

	results := model.ClassificationResults{
		paths[0]: {CategoryName: "A", CategoryNumber: 1, Probability: 0.9},
		paths[1]: {CategoryName: "B", CategoryNumber: 2, Probability: 0.9},
	}
	scores := map[string]float64{paths[0]: 0.5, paths[1]: 0.5}

	// p1 lists and classifies fine but vanishes by materialization time.
	vanishing := &removeBeforeCopyStore{MockStore: store, victim: paths[0]}
	eng := NewWithConfig(vanishing, NewMockClassifier(results), NewMockScorer(scores), NewMockScorer(scores), Config{
		BatchSize:       2,
		KeepTopK:        1,
		AestheticWeight: 0.5,
	})

	outputDir := t.TempDir()
	selection, err := eng.Run(context.Background(), "/album", outputDir, testCategories(t, "A", "B"))
	require.NoError(t, err)

	// The vanished winner keeps its selection slot but is not materialized.
	assert.Equal(t, []string{paths[0]}, selection["A"])
	assert.False(t, store.HasFile(filepath.Join(outputDir, "A", "p1.jpg")))
	assert.True(t, store.HasFile(filepath.Join(outputDir, "B", "p2.jpg")))
}

func TestSelectionEngine_Run_MaterializationIdempotent(t *testing.T) {
	store := storage.NewMockStore()
	paths := seedAlbum(store, "/album", "p1.jpg")

	results := model.ClassificationResults{
		paths[0]: {CategoryName: "A", CategoryNumber: 1, Probability: 0.9},
	}
	scores := map[string]float64{paths[0]: 0.5}

	eng := NewWithConfig(store, NewMockClassifier(results), NewMockScorer(scores), NewMockScorer(scores), Config{
		BatchSize:       1,
		KeepTopK:        1,
		AestheticWeight: 0.5,
	})

	outputDir := t.TempDir()
	categories := testCategories(t, "A")

	first, err := eng.Run(context.Background(), "/album", outputDir, categories)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), "/album", outputDir, categories)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, store.HasFile(filepath.Join(outputDir, "A", "p1.jpg")))
}

func TestSelectionEngine_Run_ContextCancellation(t *testing.T) {
	store := storage.NewMockStore()
	seedAlbum(store, "/album", "p1.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(store, NewMockClassifier(nil), NewMockScorer(nil), NewMockScorer(nil))
	_, err := eng.Run(ctx, "/album", t.TempDir(), testCategories(t, "A"))
	assert.ErrorIs(t, err, context.Canceled)
}

// flakyClassifier fails any batch containing one of its fail photos and
// delegates the rest.
type flakyClassifier struct {
	inner      *MockClassifier
	failPhotos map[string]bool
}

func (f *flakyClassifier) Classify(ctx context.Context, photos []model.Photo, categories []model.Category) (model.ClassificationResults, error) {
	for _, p := range photos {
		if f.failPhotos[p.Path] {
			return nil, errors.New("corrupt image in batch")
		}
	}
	return f.inner.Classify(ctx, photos, categories)
}

// removeBeforeCopyStore makes one source path vanish at copy time.
type removeBeforeCopyStore struct {
	*storage.MockStore
	victim string
}

func (s *removeBeforeCopyStore) Copy(ctx context.Context, src, dst string) error {
	if src == s.victim {
		return common.ErrNotFound
	}
	return s.MockStore.Copy(ctx, src, dst)
}
