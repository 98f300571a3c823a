package model

import "sort"

// CategoryGroup maps each category name to its photo paths ordered by
// descending classification probability. Equal probabilities preserve the
// relative input order, which keeps grouping reproducible.
type CategoryGroup map[string][]string

// Selection maps each category name to its final, bounded list of photo
// paths, ordered by descending composite score. A Selection is immutable
// once produced for a run.
type Selection map[string][]string

// Photos returns the total number of selected photos across all categories.
func (s Selection) Photos() int {
	total := 0
	for _, photos := range s {
		total += len(photos)
	}
	return total
}

// Categories returns the selection's category names in sorted order.
func (s Selection) Categories() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScoredCandidate pairs a photo with its composite quality score.
type ScoredCandidate struct {
	Photo string
	Score float64
}

// ScoredCandidates supports the stable ranking order used for selection.
type ScoredCandidates []ScoredCandidate

// SortByScore orders candidates by score descending. The sort is stable, so
// candidates with equal scores keep their confidence-rank order.
func (c ScoredCandidates) SortByScore() {
	sort.SliceStable(c, func(i, j int) bool {
		return c[i].Score > c[j].Score
	})
}

// TopK returns the first k candidates, or all of them when k is zero or
// exceeds the candidate count.
func (c ScoredCandidates) TopK(k int) ScoredCandidates {
	if k <= 0 || k > len(c) {
		k = len(c)
	}
	result := make(ScoredCandidates, k)
	copy(result, c[:k])
	return result
}

// ScoredList maps photo paths to composite scores for one category. This is
// the per-category audit artifact emitted alongside the trimmed Selection.
type ScoredList map[string]float64

// ScoredLists maps category names to their audit score lists; the persisted
// artifact schema for ranked_categories.json.
type ScoredLists map[string]ScoredList
