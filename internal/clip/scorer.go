package clip

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Veraticus/photodump/internal/model"
)

// SimilarityScorer scores how well a photo matches a textual context using
// the raw CLIP image/text logit.
type SimilarityScorer struct {
	session *Session
}

// NewSimilarityScorer creates a similarity scorer over a loaded CLIP session.
func NewSimilarityScorer(session *Session) *SimilarityScorer {
	return &SimilarityScorer{session: session}
}

// Score returns the similarity logit between the photo and the prompt.
func (s *SimilarityScorer) Score(ctx context.Context, photo model.Photo, prompt string) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	logits, err := s.session.ImageLogits(photo.Path, []string{prompt})
	if err != nil {
		return 0, err
	}
	if len(logits) == 0 {
		return 0, fmt.Errorf("model returned no logits for %s", photo.Path)
	}
	return float64(logits[0]), nil
}

// AestheticScorer scores the intrinsic visual quality of a photo with a
// single-logit aesthetic predictor head. The textual context is accepted
// for port compatibility but the model is unconditional.
type AestheticScorer struct {
	session *ort.DynamicAdvancedSession
}

// NewAestheticScorer loads an aesthetic predictor ONNX export. InitRuntime
// must have succeeded first.
func NewAestheticScorer(modelPath string) (*AestheticScorer, error) {
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"logits"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create ONNX session: %w", err)
	}
	return &AestheticScorer{session: session}, nil
}

// Destroy releases resources held by the scorer.
func (a *AestheticScorer) Destroy() {
	if a.session != nil {
		a.session.Destroy()
		a.session = nil
	}
}

// Score returns the aesthetic logit for the photo.
func (a *AestheticScorer) Score(ctx context.Context, photo model.Photo, _ string) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	pixelValues, err := PreprocessImage(photo.Path)
	if err != nil {
		return 0, fmt.Errorf("cannot preprocess image: %w", err)
	}

	pixelTensor, err := ort.NewTensor(ort.NewShape(1, 3, imageSize, imageSize), pixelValues)
	if err != nil {
		return 0, fmt.Errorf("cannot create pixel_values tensor: %w", err)
	}
	defer pixelTensor.Destroy()

	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("cannot create output tensor: %w", err)
	}
	defer logits.Destroy()

	if err := a.session.Run([]ort.Value{pixelTensor}, []ort.Value{logits}); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	data := logits.GetData()
	if len(data) == 0 {
		return 0, fmt.Errorf("model returned no logits for %s", photo.Path)
	}
	return float64(data[0]), nil
}
