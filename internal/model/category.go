package model

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// NoneCategory is the reserved category at ordinal 0. Photos that match no
// user category confidently land here, and it is never eligible for selection.
const NoneCategory = "None"

// Category is a user-supplied photo category. The category set is closed for
// the duration of a run; index 0 is always the reserved "None" category.
type Category struct {
	Name  string
	Index int
}

// MakeCategories builds the closed category set for a run from user-supplied
// names, prepending the reserved "None" category at index 0. Blank names are
// dropped; a user-supplied "None" is rejected to keep the ordinal invariant.
func MakeCategories(names []string) ([]Category, error) {
	categories := []Category{{Name: NoneCategory, Index: 0}}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if name == NoneCategory {
			return nil, fmt.Errorf("category name %q is reserved", NoneCategory)
		}
		categories = append(categories, Category{Name: name, Index: len(categories)})
	}
	return categories, nil
}

// ParseCategories reads one category per line, tolerating the numbered
// "1. Beach day" list format, and returns the closed set with "None" at 0.
func ParseCategories(r io.Reader) ([]Category, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, rest, found := strings.Cut(line, ". "); found {
			line = rest
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	return MakeCategories(names)
}

// CategoryNames returns the category names in ordinal order.
func CategoryNames(categories []Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}
