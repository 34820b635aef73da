package embedder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const (
	// DefaultClipBaseURL is the default CLIP inference server base URL.
	DefaultClipBaseURL = "http://localhost:8090"

	// DefaultClipModel is the default multimodal embedding model.
	DefaultClipModel = "clip-ViT-B-32"

	// DefaultClipDimension is the embedding dimension of clip-ViT-B-32.
	DefaultClipDimension = 512

	// DefaultBatchConcurrency is the default number of concurrent embedding requests.
	DefaultBatchConcurrency = 4
)

// ClipConfig holds configuration for the CLIP embedder.
type ClipConfig struct {
	// BaseURL is the inference server base URL (default: http://localhost:8090).
	BaseURL string

	// Model is the embedding model to use (default: clip-ViT-B-32).
	Model string

	// Dimension is the embedding dimension (default: 512 for clip-ViT-B-32).
	Dimension int

	// BatchConcurrency is the number of concurrent requests for batch embedding.
	BatchConcurrency int

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// ClipEmbedder implements the Embedder interface against a CLIP inference
// server that encodes text and images into one vector space.
type ClipEmbedder struct {
	baseURL          string
	model            string
	dimension        int
	batchConcurrency int
	client           *http.Client
}

// clipRequest represents the request body for the encode endpoints.
type clipRequest struct {
	Model       string `json:"model"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// clipResponse represents the inference server response.
type clipResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewClipEmbedder creates a new CLIP embedder with the given configuration.
func NewClipEmbedder(cfg ClipConfig) *ClipEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultClipBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultClipModel
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultClipDimension
	}

	batchConcurrency := cfg.BatchConcurrency
	if batchConcurrency <= 0 {
		batchConcurrency = DefaultBatchConcurrency
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &ClipEmbedder{
		baseURL:          baseURL,
		model:            model,
		dimension:        dimension,
		batchConcurrency: batchConcurrency,
		client:           client,
	}
}

// EmbedText generates an embedding vector for a text input.
func (e *ClipEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.encode(ctx, "/encode/text", clipRequest{Model: e.model, Text: text})
}

// EmbedImage generates an embedding vector for raw image bytes.
func (e *ClipEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	return e.encode(ctx, "/encode/image", clipRequest{
		Model:       e.model,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	})
}

func (e *ClipEmbedder) encode(ctx context.Context, path string, reqBody clipRequest) ([]float32, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("clip API error (status %d): %s", resp.StatusCode, string(body))
	}

	var clipResp clipResponse
	if err := json.NewDecoder(resp.Body).Decode(&clipResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(clipResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned from clip server")
	}

	// Convert float64 to float32
	embedding := make([]float32, len(clipResp.Embedding))
	for i, v := range clipResp.Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// EmbedTextBatch generates embedding vectors for multiple text inputs.
// It processes requests concurrently for efficiency.
func (e *ClipEmbedder) EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	errors := make([]error, len(texts))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.batchConcurrency)

	for i, text := range texts {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errors[idx] = ctx.Err()
				return
			}

			embedding, err := e.EmbedText(ctx, t)
			if err != nil {
				errors[idx] = fmt.Errorf("failed to embed text at index %d: %w", idx, err)
				return
			}
			results[idx] = embedding
		}(i, text)
	}

	wg.Wait()

	// Check for errors
	for i, err := range errors {
		if err != nil {
			return nil, fmt.Errorf("batch embedding failed at index %d: %w", i, err)
		}
	}

	return results, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *ClipEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used.
func (e *ClipEmbedder) ModelName() string {
	return e.model
}

// Ensure ClipEmbedder implements Embedder interface.
var _ Embedder = (*ClipEmbedder)(nil)
