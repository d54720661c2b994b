// Package scanning turns still images into recognized text using an OCR
// engine or a vision model.
package scanning

import "context"

// Recognizer extracts the printed text from an image
type Recognizer interface {
	// RecognizeText returns the unstructured text found in imageData
	RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close releases any resources held by the recognizer
	Close() error
}

// ocrPrompt is shared by the vision-model recognizers
const ocrPrompt = `Transcribe all text printed in this image exactly as it appears, line by line.

This is a photo of a book: usually a cover, a back cover with a barcode, or a copyright page.
Pay special attention to any ISBN, including the digits printed above or below a barcode.

Important:
- Output only the transcribed text
- Keep digits, hyphens and the letter X exactly as printed
- Do not summarize, translate or explain
- Do not use markdown code blocks`
