// Package storage implements the filesystem collaborator and the run
// history store behind the service interfaces.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/model"
)

// supportedExtensions contains the set of image file extensions we process.
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// IsImage reports whether the file name carries a supported image extension.
func IsImage(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// FSStore implements the service.Storage contract on the local filesystem.
type FSStore struct{}

// NewFSStore creates a filesystem store.
func NewFSStore() *FSStore {
	return &FSStore{}
}

// Copy duplicates src to dst, creating parent directories as needed. An
// existing dst is overwritten, which makes materialization idempotent.
func (s *FSStore) Copy(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", common.ErrNotFound, src)
		}
		return fmt.Errorf("cannot open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("cannot create destination directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("cannot create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("cannot copy %s to %s: %w", src, dst, err)
	}

	return out.Close()
}

// DeleteTree removes a path and everything beneath it. A missing path is
// not an error.
func (s *FSStore) DeleteTree(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return os.RemoveAll(path)
}

// ClearDir empties a directory without removing the directory itself. A
// missing directory is not an error.
func (s *FSStore) ClearDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot read directory: %w", err)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("cannot remove %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// ListImages returns the image files directly inside dir. os.ReadDir yields
// lexical order, which keeps the pipeline's input order, and with it every
// downstream tie-break, reproducible.
func (s *FSStore) ListImages(ctx context.Context, dir string) ([]model.Photo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read directory: %w", err)
	}

	var photos []model.Photo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if IsImage(entry.Name()) {
			photos = append(photos, model.Photo{Path: filepath.Join(dir, entry.Name())})
		}
	}

	return photos, nil
}

// Remove deletes a single file.
func (s *FSStore) Remove(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return fmt.Errorf("cannot remove %s: %w", path, err)
	}

	return nil
}
