package engine

import (
	"context"
	"sync"

	"github.com/Veraticus/photodump/internal/model"
)

// MockClassifier is a test implementation of the Classifier interface.
// It returns canned records keyed by photo path and records every batch
// for verification.
type MockClassifier struct {
	results model.ClassificationResults
	err     error
	batches [][]string
	mu      sync.Mutex
}

// NewMockClassifier creates a mock classifier over a fixed result table.
// Photos absent from the table are classified into the reserved "None"
// category with zero probability.
func NewMockClassifier(results model.ClassificationResults) *MockClassifier {
	return &MockClassifier{
		results: results,
		batches: make([][]string, 0),
	}
}

// FailWith makes every subsequent Classify call return err.
func (m *MockClassifier) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Classify looks up each photo in the canned result table.
func (m *MockClassifier) Classify(_ context.Context, photos []model.Photo, _ []model.Category) (model.ClassificationResults, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches = append(m.batches, model.PhotoPaths(photos))

	if m.err != nil {
		return nil, m.err
	}

	out := make(model.ClassificationResults, len(photos))
	for _, photo := range photos {
		record, ok := m.results[photo.Path]
		if !ok {
			record = model.ClassificationRecord{
				CategoryName:   model.NoneCategory,
				CategoryNumber: 0,
				Probability:    0,
			}
		}
		out[photo.Path] = record
	}
	return out, nil
}

// Batches returns a copy of the recorded batch contents in call order.
func (m *MockClassifier) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	batches := make([][]string, len(m.batches))
	copy(batches, m.batches)
	return batches
}

// CallCount returns the number of Classify calls made so far.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// MockScorer is a test implementation of the ranker Scorer port backed by
// a fixed score table keyed by photo path.
type MockScorer struct {
	scores map[string]float64
	failOn map[string]error
	calls  []string
	mu     sync.Mutex
}

// NewMockScorer creates a mock scorer over a fixed score table. Photos
// absent from the table score zero.
func NewMockScorer(scores map[string]float64) *MockScorer {
	return &MockScorer{
		scores: scores,
		failOn: make(map[string]error),
		calls:  make([]string, 0),
	}
}

// FailOn makes scoring the given photo return err.
func (m *MockScorer) FailOn(photo string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[photo] = err
}

// Score returns the canned score for the photo.
func (m *MockScorer) Score(_ context.Context, photo model.Photo, _ string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, photo.Path)

	if err, ok := m.failOn[photo.Path]; ok {
		return 0, err
	}
	return m.scores[photo.Path], nil
}

// Calls returns the photo paths scored so far, in call order.
func (m *MockScorer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}
