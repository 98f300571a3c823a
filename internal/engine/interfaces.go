package engine

import (
	"context"

	"github.com/Veraticus/photodump/internal/model"
)

// Classifier defines the contract for assigning photos to categories.
// Implementations receive one batch at a time; batch size is purely a
// throughput knob and must not change per-photo results.
type Classifier interface {
	Classify(ctx context.Context, photos []model.Photo, categories []model.Category) (model.ClassificationResults, error)
}
