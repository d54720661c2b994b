package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// Ollama implements Recognizer using a local Ollama vision model.
// Recommended models for reading print: llava:1.6, qwen2-vl:7b, llama3.2-vision.
type Ollama struct {
	baseURL    string
	model      string
	client     *http.Client
	attempts   uint
	retryDelay time.Duration
}

// NewOllama creates a new Ollama recognizer
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models are slow on CPU
		},
		attempts:   3,
		retryDelay: time.Second,
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// RecognizeText asks the model to transcribe the image. Transport failures
// and 5xx responses are retried; other errors are returned immediately.
func (o *Ollama) RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	data, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an OCR engine. You read printed text from photos and repeat it verbatim.",
			},
			{
				Role:    "user",
				Content: ocrPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(data)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var chatResp ollamaChatResponse
	err = retry.Do(
		func() error {
			return o.chat(ctx, body, &chatResp)
		},
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(o.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying ollama request", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}

	return cleanTranscript(chatResp.Message.Content), nil
}

func (o *Ollama) chat(ctx context.Context, body []byte, out *ollamaChatResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(msg))
		if resp.StatusCode >= 500 {
			return err
		}
		return retry.Unrecoverable(err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Unrecoverable(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
