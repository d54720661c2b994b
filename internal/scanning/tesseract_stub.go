//go:build !tesseract

package scanning

import (
	"context"
	"errors"
)

// ErrTesseractNotEnabled is returned when the binary was built without -tags tesseract
var ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")

// Tesseract is unavailable in this build
type Tesseract struct{}

// NewTesseract always fails without the tesseract build tag
func NewTesseract(language string) (*Tesseract, error) {
	return nil, ErrTesseractNotEnabled
}

// RecognizeText always fails without the tesseract build tag
func (t *Tesseract) RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	return "", ErrTesseractNotEnabled
}

// Close is a no-op
func (t *Tesseract) Close() error {
	return nil
}
