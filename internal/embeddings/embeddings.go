// Package embeddings generates semantic vectors for chunk text.
package embeddings

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrEmptyInput indicates empty text input.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbeddingFailed indicates the model failed to produce vectors.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Provider generates fixed-dimension embeddings from text.
//
// The dimension is fixed for the lifetime of an index; the vector store
// collection must be created with the same dimension the provider reports.
type Provider interface {
	// EmbedDocuments generates one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// prefix queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Model is the embedding model name, e.g. BAAI/bge-small-en-v1.5.
	Model string

	// CacheDir is the directory for cached model files.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

// NewProvider creates the FastEmbed provider wrapped with metrics.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	p, err := NewFastEmbedProvider(cfg)
	if err != nil {
		return nil, err
	}
	return withMetrics(p, cfg.Model, logger), nil
}
