// Package config provides configuration loading for lexingest.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the ingestion pipeline.
type Config struct {
	Ingest      IngestConfig      `koanf:"ingest"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// IngestConfig controls the document ingestion pipeline.
type IngestConfig struct {
	// DataFolder is the directory scanned for PDF files.
	DataFolder string `koanf:"data_folder"`

	// Collection is the target vector store collection.
	Collection string `koanf:"collection"`

	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `koanf:"chunk_size"`

	// ChunkOverlap is the number of characters shared between
	// consecutive chunks.
	ChunkOverlap int `koanf:"chunk_overlap"`

	// BatchSize is the number of records per upsert batch.
	BatchSize int `koanf:"batch_size"`

	// WatchDebounce is how long watch mode waits after the last
	// filesystem event before reindexing a file.
	WatchDebounce Duration `koanf:"watch_debounce"`
}

// EmbeddingsConfig controls the embedding model.
type EmbeddingsConfig struct {
	// Model is the embedding model name.
	Model string `koanf:"model"`

	// CacheDir is the directory for cached ONNX model files.
	CacheDir string `koanf:"cache_dir"`

	// MaxLength is the maximum input sequence length.
	MaxLength int `koanf:"max_length"`
}

// VectorStoreConfig selects the storage backend.
type VectorStoreConfig struct {
	// Provider is "qdrant" or "chromem".
	Provider string `koanf:"provider"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// ChromemConfig holds embedded store settings.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// applyDefaults fills in defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Ingest.DataFolder == "" {
		cfg.Ingest.DataFolder = "data"
	}
	if cfg.Ingest.Collection == "" {
		cfg.Ingest.Collection = "legal_docs"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 2000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Ingest.WatchDebounce == 0 {
		cfg.Ingest.WatchDebounce = Duration(2 * time.Second)
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.MaxLength == 0 {
		cfg.Embeddings.MaxLength = 512
	}
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "~/.lexingest/chromem"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("ingest.chunk_overlap must be non-negative, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.DataFolder == "" {
		return fmt.Errorf("ingest.data_folder is required")
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("embeddings.model is required")
	}

	switch c.VectorStore.Provider {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("vectorstore.provider must be qdrant or chromem, got %q", c.VectorStore.Provider)
	}

	if c.VectorStore.Provider == "qdrant" {
		if c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant.host is required")
		}
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("qdrant.port must be 1-65535, got %d", c.Qdrant.Port)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}
