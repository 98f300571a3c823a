// Package grouper reshapes per-photo classification records into ordered
// per-category photo lists.
package grouper

import (
	"sort"

	"github.com/Veraticus/photodump/internal/model"
)

// Group builds, for each category present in results, the list of photo
// paths sorted by descending classification probability. Photos are visited
// in input order and the sort is stable, so equal probabilities preserve
// their relative input order. Photos without a record (for example because
// classification failed for them) are skipped. An empty input yields an
// empty map.
//
// Group is a pure reshape: it never filters categories, including the
// reserved "None" group. Excluding "None" from selection is the ranker's job.
func Group(photos []model.Photo, results model.ClassificationResults) model.CategoryGroup {
	type entry struct {
		photo       string
		probability float64
	}

	byCategory := make(map[string][]entry)
	for _, photo := range photos {
		record, ok := results[photo.Path]
		if !ok {
			continue
		}
		byCategory[record.CategoryName] = append(byCategory[record.CategoryName], entry{
			photo:       photo.Path,
			probability: record.Probability,
		})
	}

	groups := make(model.CategoryGroup, len(byCategory))
	for category, entries := range byCategory {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].probability > entries[j].probability
		})

		photos := make([]string, len(entries))
		for i, e := range entries {
			photos[i] = e.photo
		}
		groups[category] = photos
	}

	return groups
}
