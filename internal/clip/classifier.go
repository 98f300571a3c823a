package clip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/photodump/internal/model"
)

// nonePrompt is the generic prompt that stands in for the reserved "None"
// category. A photo more similar to this than to every specific category
// prompt has no confident match.
const nonePrompt = "a photo"

// Classifier performs zero-shot photo classification over a CLIP session.
type Classifier struct {
	session *Session
}

// NewClassifier creates a classifier over a loaded CLIP session.
func NewClassifier(session *Session) *Classifier {
	return &Classifier{session: session}
}

// Classify assigns each photo of the batch to its best-matching category
// with a softmax probability. The reserved category at ordinal 0 competes
// with the generic prompt, so it wins exactly when nothing specific does.
// A photo that cannot be scored is omitted from the results with a warning;
// the caller decides whether an empty batch is fatal.
func (c *Classifier) Classify(ctx context.Context, photos []model.Photo, categories []model.Category) (model.ClassificationResults, error) {
	prompts := make([]string, len(categories))
	for i, category := range categories {
		if category.Index == 0 {
			prompts[i] = nonePrompt
			continue
		}
		prompts[i] = fmt.Sprintf("a photo of %s", category.Name)
	}

	results := make(model.ClassificationResults, len(photos))
	for _, photo := range photos {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logits, err := c.session.ImageLogits(photo.Path, prompts)
		if err != nil {
			slog.Warn("Cannot classify photo", "photo", photo.Path, "error", err)
			continue
		}

		probs := softmax(logits)
		best := 0
		for i, p := range probs {
			if p > probs[best] {
				best = i
			}
		}

		results[photo.Path] = model.ClassificationRecord{
			CategoryName:   categories[best].Name,
			CategoryNumber: categories[best].Index,
			Probability:    float64(probs[best]),
		}
	}

	return results, nil
}
