//go:build tesseract

package scanning

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Recognizer with a local Tesseract install.
// Build with -tags tesseract; libtesseract and leptonica must be present.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract recognizer for language (e.g. "eng")
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract language: %w", err)
	}
	return &Tesseract{client: client}, nil
}

// RecognizeText runs OCR over the image
func (t *Tesseract) RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	data, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// gosseract clients are not safe for concurrent use
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("setting tesseract image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the Tesseract client
func (t *Tesseract) Close() error {
	return t.client.Close()
}
