// Package album inspects the photos of an album directory: sizes, pixel
// dimensions and EXIF capture times.
package album

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/bep/imagemeta"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/service"
)

// PhotoInfo describes one album photo for display purposes.
type PhotoInfo struct {
	TakenAt time.Time
	Name    string
	Path    string
	Bytes   int64
	Width   int
	Height  int
}

// Scan lists the album's photos with their size, dimensions and EXIF
// capture time. Metadata extraction is best-effort: a photo that cannot be
// decoded still appears with whatever fields could be read.
func Scan(ctx context.Context, files service.Storage, dir string) ([]PhotoInfo, error) {
	photos, err := files.ListImages(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list album: %w", err)
	}

	infos := make([]PhotoInfo, 0, len(photos))
	for _, photo := range photos {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		infos = append(infos, inspect(photo))
	}

	return infos, nil
}

func inspect(photo model.Photo) PhotoInfo {
	info := PhotoInfo{
		Name: photo.Base(),
		Path: photo.Path,
	}

	stat, err := os.Stat(photo.Path)
	if err != nil {
		return info
	}
	info.Bytes = stat.Size()

	f, err := os.Open(photo.Path)
	if err != nil {
		return info
	}
	defer f.Close()

	if config, _, err := image.DecodeConfig(f); err == nil {
		info.Width = config.Width
		info.Height = config.Height
	}

	if _, err := f.Seek(0, 0); err != nil {
		return info
	}
	info.TakenAt = captureTime(f)

	return info
}

// captureTime extracts the EXIF DateTimeOriginal from an image, falling
// back to the zero time when the photo carries no usable metadata.
func captureTime(f *os.File) time.Time {
	var taken time.Time

	_, _ = imagemeta.Decode(imagemeta.Options{
		R:       f,
		Sources: imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "DateTimeOriginal" || ti.Tag == "DateTime"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch v := ti.Value.(type) {
			case time.Time:
				if taken.IsZero() || ti.Tag == "DateTimeOriginal" {
					taken = v
				}
			case string:
				if t, err := time.Parse("2006:01:02 15:04:05", v); err == nil {
					if taken.IsZero() || ti.Tag == "DateTimeOriginal" {
						taken = t
					}
				}
			}
			return nil
		},
	})

	return taken
}
