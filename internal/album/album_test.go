package album

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/photodump/internal/storage"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 40, 30)
	writePNG(t, filepath.Join(dir, "a.png"), 20, 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	infos, err := Scan(context.Background(), storage.NewFSStore(), dir)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "a.png", infos[0].Name)
	assert.Equal(t, 20, infos[0].Width)
	assert.Equal(t, 10, infos[0].Height)
	assert.Positive(t, infos[0].Bytes)
	assert.True(t, infos[0].TakenAt.IsZero())

	assert.Equal(t, "b.png", infos[1].Name)
	assert.Equal(t, 40, infos[1].Width)
	assert.Equal(t, 30, infos[1].Height)
}

func TestScan_UndecodablePhotoStillListed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("junk"), 0o600))

	infos, err := Scan(context.Background(), storage.NewFSStore(), dir)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	assert.Equal(t, "broken.jpg", infos[0].Name)
	assert.Positive(t, infos[0].Bytes)
	assert.Zero(t, infos[0].Width)
}

func TestScan_EmptyAlbum(t *testing.T) {
	infos, err := Scan(context.Background(), storage.NewFSStore(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, infos)
}
