// Package model defines the core domain models used throughout the application.
package model

import "path/filepath"

// Photo represents a single album image. The path is the stable identifier
// used across classification, ranking and materialization; the byte content
// is only ever touched through the storage layer or a model adapter.
type Photo struct {
	Path string `json:"path"`
}

// Base returns the file name component of the photo path.
func (p Photo) Base() string {
	return filepath.Base(p.Path)
}

// PhotoPaths extracts the path identifiers from a photo slice, preserving order.
func PhotoPaths(photos []Photo) []string {
	paths := make([]string, len(photos))
	for i, p := range photos {
		paths[i] = p.Path
	}
	return paths
}
