// Package dedupe drops perceptually near-duplicate photos from an album
// before any model call is spent on them.
package dedupe

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Veraticus/photodump/internal/model"
)

// Filter returns the photos whose dHash is at least threshold Hamming
// distance away from every earlier kept photo. Input order is preserved and
// the first of a duplicate group always survives, so downstream tie-break
// order is unaffected. A photo that cannot be opened, decoded or hashed is
// kept (graceful degradation: the classifier will see it anyway).
func Filter(ctx context.Context, photos []model.Photo, threshold int) []model.Photo {
	if threshold <= 0 {
		return photos
	}

	kept := make([]model.Photo, 0, len(photos))
	hashes := make([]*goimagehash.ImageHash, 0, len(photos))
	dropped := 0

	for _, photo := range photos {
		select {
		case <-ctx.Done():
			// Pass the remainder through unfiltered rather than lose photos.
			return append(kept, photos[len(kept)+dropped:]...)
		default:
		}

		hash := hashPhoto(photo.Path)
		if hash == nil {
			kept = append(kept, photo)
			continue
		}

		if isDuplicate(hash, hashes, threshold) {
			slog.Info("Dropping near-duplicate photo", "photo", photo.Path)
			dropped++
			continue
		}

		kept = append(kept, photo)
		hashes = append(hashes, hash)
	}

	if dropped > 0 {
		slog.Info("Near-duplicate pre-pass finished",
			"kept", len(kept),
			"dropped", dropped)
	}

	return kept
}

func hashPhoto(path string) *goimagehash.ImageHash {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil
	}
	return hash
}

func isDuplicate(hash *goimagehash.ImageHash, seen []*goimagehash.ImageHash, threshold int) bool {
	for _, h := range seen {
		dist, err := hash.Distance(h)
		if err == nil && dist < threshold {
			return true
		}
	}
	return false
}
