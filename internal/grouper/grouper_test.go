package grouper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/photodump/internal/model"
)

func photos(paths ...string) []model.Photo {
	out := make([]model.Photo, len(paths))
	for i, p := range paths {
		out[i] = model.Photo{Path: p}
	}
	return out
}

func TestGroup(t *testing.T) {
	tests := []struct {
		results model.ClassificationResults
		want    model.CategoryGroup
		name    string
		photos  []model.Photo
	}{
		{
			name:   "orders by descending probability",
			photos: photos("p1.jpg", "p2.jpg", "p3.jpg"),
			results: model.ClassificationResults{
				"p1.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.60},
				"p2.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.95},
				"p3.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.80},
			},
			want: model.CategoryGroup{
				"Food": {"p2.jpg", "p3.jpg", "p1.jpg"},
			},
		},
		{
			name:   "equal probabilities keep input order",
			photos: photos("p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg"),
			results: model.ClassificationResults{
				"p1.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.5},
				"p2.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.5},
				"p3.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.9},
				"p4.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.5},
			},
			want: model.CategoryGroup{
				"Food": {"p3.jpg", "p1.jpg", "p2.jpg", "p4.jpg"},
			},
		},
		{
			name:   "splits by category and keeps None",
			photos: photos("p1.jpg", "p2.jpg", "p3.jpg"),
			results: model.ClassificationResults{
				"p1.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.9},
				"p2.jpg": {CategoryName: model.NoneCategory, CategoryNumber: 0, Probability: 0.7},
				"p3.jpg": {CategoryName: "Beach day", CategoryNumber: 2, Probability: 0.8},
			},
			want: model.CategoryGroup{
				"Food":             {"p1.jpg"},
				"Beach day":        {"p3.jpg"},
				model.NoneCategory: {"p2.jpg"},
			},
		},
		{
			name:   "photos without a record are skipped",
			photos: photos("p1.jpg", "missing.jpg"),
			results: model.ClassificationResults{
				"p1.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.9},
			},
			want: model.CategoryGroup{
				"Food": {"p1.jpg"},
			},
		},
		{
			name:    "empty input yields empty map",
			photos:  nil,
			results: model.ClassificationResults{},
			want:    model.CategoryGroup{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Group(tt.photos, tt.results)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroup_DoesNotMutateInputs(t *testing.T) {
	in := photos("p1.jpg", "p2.jpg")
	results := model.ClassificationResults{
		"p1.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.1},
		"p2.jpg": {CategoryName: "Food", CategoryNumber: 1, Probability: 0.9},
	}

	Group(in, results)

	assert.Equal(t, photos("p1.jpg", "p2.jpg"), in)
	assert.Len(t, results, 2)
}
