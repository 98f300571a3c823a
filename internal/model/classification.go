package model

import "fmt"

// ClassificationRecord holds the classifier verdict for a single photo.
// Records are produced once per run and never mutated afterwards.
type ClassificationRecord struct {
	CategoryName   string  `json:"categoryName"`
	CategoryNumber int     `json:"categoryNumber"`
	Probability    float64 `json:"probability"`
}

// Validate ensures the record respects the data contract.
func (r *ClassificationRecord) Validate() error {
	if r.CategoryName == "" {
		return fmt.Errorf("category name is required")
	}
	if r.CategoryNumber < 0 {
		return fmt.Errorf("category number must not be negative, got %d", r.CategoryNumber)
	}
	if r.Probability < 0.0 || r.Probability > 1.0 {
		return fmt.Errorf("probability must be between 0.0 and 1.0, got %.4f", r.Probability)
	}
	return nil
}

// ClassificationResults maps photo paths to their classification records.
// This is the persisted artifact schema for category_results.json.
type ClassificationResults map[string]ClassificationRecord
