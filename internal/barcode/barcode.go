// Package barcode decides whether a still image looks like it contains a 1-D
// barcode. It never decodes one.
package barcode

import (
	"context"
	"image"
)

// Options tunes the detector
type Options struct {
	// DarkThreshold is the luminance below which a pixel counts as dark
	DarkThreshold int
	// RowDensity is the fraction of a row that must be dark for it to count as a band
	RowDensity float64
	// MinSpan is the fraction of the image height the bands must cover
	MinSpan float64
}

// DefaultOptions returns the standard thresholds
func DefaultOptions() Options {
	return Options{
		DarkThreshold: 100,
		RowDensity:    0.2,
		MinSpan:       0.1,
	}
}

// Detect reports whether img has a run of dark-dense rows tall enough to be a barcode
func Detect(img image.Image) bool {
	return DefaultOptions().Detect(img)
}

// Detect reports whether img has a run of dark-dense rows tall enough to be a barcode
func (o Options) Detect(img image.Image) bool {
	if img == nil {
		return false
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return false
	}

	first, last := -1, -1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		dark := 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if luminance(img, x, y) < o.DarkThreshold {
				dark++
			}
		}
		if float64(dark) > float64(width)*o.RowDensity {
			if first < 0 {
				first = y
			}
			last = y
		}
	}
	if first < 0 {
		return false
	}
	return float64(last-first) > float64(height)*o.MinSpan
}

// luminance is the unweighted mean of the 8-bit channels
func luminance(img image.Image, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	return int((r>>8)+(g>>8)+(b>>8)) / 3
}

// Decoder turns an image into the value encoded by its barcode. No decoder
// ships with this module; a nil Decoder means detection is advisory only.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) (string, error)
}
