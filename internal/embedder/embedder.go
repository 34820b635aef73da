// Package embedder provides interfaces and implementations for multimodal embedding.
package embedder

import (
	"context"
	"errors"
)

// ErrImageNotSupported is returned by providers that can only embed text.
var ErrImageNotSupported = errors.New("image embedding not supported by this provider")

// Embedder defines the interface for embedding services. Text and image
// embeddings share one vector space and dimension, so the search pipeline
// treats the two as interchangeable query vectors.
type Embedder interface {
	// EmbedText generates an embedding vector for a text input.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImage generates an embedding vector for raw image bytes.
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)

	// EmbedTextBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// ModelConfig holds configuration for a specific embedding model.
type ModelConfig struct {
	Dimension  int  // Embedding dimension
	Multimodal bool // Whether the model embeds images into the same space
}

// KnownModels maps embedding model names to their configurations.
var KnownModels = map[string]ModelConfig{
	"clip-ViT-B-32": {
		Dimension:  512,
		Multimodal: true,
	},
	"clip-ViT-L-14": {
		Dimension:  768,
		Multimodal: true,
	},
	"text-embedding-3-small": {
		Dimension:  1536,
		Multimodal: false,
	},
}

// GetModelConfig returns the configuration for a model, or defaults if unknown.
func GetModelConfig(modelName string) ModelConfig {
	if cfg, ok := KnownModels[modelName]; ok {
		return cfg
	}
	return ModelConfig{
		Dimension:  512,
		Multimodal: false,
	}
}
