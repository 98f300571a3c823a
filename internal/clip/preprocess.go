package clip

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const imageSize = 224

// CLIP normalization constants.
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// PreprocessImage loads an image file and returns a float32 tensor in
// [1, 3, 224, 224] CHW format, normalized for CLIP.
func PreprocessImage(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("cannot decode image: %w", err)
	}

	return Tensorize(img), nil
}

// Tensorize center-crops the image to a square, scales it to 224x224 with
// bilinear interpolation, and emits the normalized CHW tensor.
func Tensorize(img image.Image) []float32 {
	crop := centerSquare(img.Bounds())

	scaled := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, crop, draw.Src, nil)

	tensor := make([]float32, 3*imageSize*imageSize)
	plane := imageSize * imageSize
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			r, g, b, _ := scaled.At(x, y).RGBA()
			idx := y*imageSize + x
			tensor[idx] = (float32(r>>8)/255 - clipMean[0]) / clipStd[0]
			tensor[plane+idx] = (float32(g>>8)/255 - clipMean[1]) / clipStd[1]
			tensor[2*plane+idx] = (float32(b>>8)/255 - clipMean[2]) / clipStd[2]
		}
	}
	return tensor
}

// centerSquare returns the largest centered square within bounds.
func centerSquare(bounds image.Rectangle) image.Rectangle {
	w := bounds.Dx()
	h := bounds.Dy()

	if w == h {
		return bounds
	}

	if w > h {
		offset := (w - h) / 2
		return image.Rect(bounds.Min.X+offset, bounds.Min.Y, bounds.Min.X+offset+h, bounds.Max.Y)
	}
	offset := (h - w) / 2
	return image.Rect(bounds.Min.X, bounds.Min.Y+offset, bounds.Max.X, bounds.Min.Y+offset+w)
}
