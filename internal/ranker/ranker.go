// Package ranker selects the best photos per category using a weighted
// combination of aesthetic and similarity scores.
package ranker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Veraticus/photodump/internal/model"
)

// Scorer maps a photo plus a textual context to a scalar quality score.
// Adapters around concrete models satisfy this interface; the ranker treats
// every scorer as a pure, possibly slow, oracle.
type Scorer interface {
	Score(ctx context.Context, photo model.Photo, prompt string) (float64, error)
}

// Params configures one ranking pass.
type Params struct {
	// PreFilter bounds how many confidence-ranked candidates per category
	// are scored at all. Zero scores the whole group.
	PreFilter int
	// KeepTopK bounds how many scored candidates per category survive into
	// the final Selection.
	KeepTopK int
	// AestheticWeight is the convex weight given to the aesthetic score;
	// the similarity score receives 1 - AestheticWeight.
	AestheticWeight float64
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.KeepTopK <= 0 {
		return fmt.Errorf("keep_top_k must be positive, got %d", p.KeepTopK)
	}
	if p.PreFilter < 0 {
		return fmt.Errorf("pre_filter must not be negative, got %d", p.PreFilter)
	}
	if p.AestheticWeight < 0.0 || p.AestheticWeight > 1.0 {
		return fmt.Errorf("aesthetic_weight must be between 0.0 and 1.0, got %.2f", p.AestheticWeight)
	}
	return nil
}

// Ranker scores confidence-ranked category groups and keeps the top K.
type Ranker struct {
	similarity Scorer
	aesthetic  Scorer
}

// New creates a ranker over the two scorer ports.
func New(similarity, aesthetic Scorer) *Ranker {
	return &Ranker{
		similarity: similarity,
		aesthetic:  aesthetic,
	}
}

// Rank produces the bounded Selection for every category except the reserved
// "None" group, plus the full scored candidate lists kept for auditability.
//
// Each group is truncated to the first PreFilter entries before any scoring
// happens. The group arrives ordered by classification confidence and is
// deliberately not re-sorted first: candidates beyond the confidence prefix
// are assumed unlikely to win, trading recall for fewer model calls. Both
// scorers receive the category name itself as the textual context.
//
// A scorer failure drops that candidate with a warning and ranking continues;
// a category left with no scoreable candidates yields an empty entry.
func (r *Ranker) Rank(ctx context.Context, groups model.CategoryGroup, params Params) (model.Selection, model.ScoredLists, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid ranking params: %w", err)
	}

	// Iterate categories in a fixed order so scorer calls, warnings and
	// artifacts are reproducible across runs.
	names := make([]string, 0, len(groups))
	for name := range groups {
		if name == model.NoneCategory {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	selection := make(model.Selection, len(names))
	scoredLists := make(model.ScoredLists, len(names))
	dropped := 0

	for _, category := range names {
		photos := groups[category]
		if params.PreFilter > 0 && params.PreFilter < len(photos) {
			photos = photos[:params.PreFilter]
		}

		candidates := make(model.ScoredCandidates, 0, len(photos))
		audit := make(model.ScoredList, len(photos))

		for _, path := range photos {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			default:
			}

			score, err := r.compositeScore(ctx, model.Photo{Path: path}, category, params.AestheticWeight)
			if err != nil {
				slog.Warn("Dropping unscoreable candidate",
					"photo", path,
					"category", category,
					"error", err)
				dropped++
				continue
			}

			candidates = append(candidates, model.ScoredCandidate{Photo: path, Score: score})
			audit[path] = score
		}

		candidates.SortByScore()

		top := candidates.TopK(params.KeepTopK)
		selected := make([]string, len(top))
		for i, c := range top {
			selected[i] = c.Photo
		}
		selection[category] = selected
		scoredLists[category] = audit
	}

	if dropped > 0 {
		slog.Warn("Ranking finished with unscoreable candidates", "dropped", dropped)
	}

	return selection, scoredLists, nil
}

// compositeScore combines both scorer outputs via the convex sum
// weight*aesthetic + (1-weight)*similarity.
func (r *Ranker) compositeScore(ctx context.Context, photo model.Photo, category string, weight float64) (float64, error) {
	similarity, err := r.similarity.Score(ctx, photo, category)
	if err != nil {
		return 0, fmt.Errorf("similarity score: %w", err)
	}

	aesthetic, err := r.aesthetic.Score(ctx, photo, category)
	if err != nil {
		return 0, fmt.Errorf("aesthetic score: %w", err)
	}

	return weight*aesthetic + (1-weight)*similarity, nil
}
