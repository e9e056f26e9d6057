// Package thumbnail derives small previews from captured screenshots.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	// Registered so screenshots from other encoders still decode.
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultMaxSize is the length of the longer thumbnail side.
const DefaultMaxSize = 300

// Dimensions scales (width, height) so the longer side equals maxSize while
// preserving the aspect ratio. The shorter side never drops below 1.
func Dimensions(width, height, maxSize int) (int, int) {
	if width <= 0 || height <= 0 || maxSize <= 0 {
		return 0, 0
	}
	var w, h int
	if width > height {
		w = maxSize
		h = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		h = maxSize
		w = int(float64(width) * float64(maxSize) / float64(height))
	}
	return max(w, 1), max(h, 1)
}

// Make decodes src, resamples it with Catmull-Rom and returns PNG bytes.
func Make(src []byte, maxSize int) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("thumbnail: empty image")
	}
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}
	bounds := img.Bounds()
	w, h := Dimensions(bounds.Dx(), bounds.Dy(), maxSize)
	if w == 0 {
		return nil, fmt.Errorf("thumbnail: invalid size %dx%d", bounds.Dx(), bounds.Dy())
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}
