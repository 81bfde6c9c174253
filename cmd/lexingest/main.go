// Package main implements the lexingest CLI for indexing legal PDFs into a
// vector store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexhaven/lexingest/internal/chunker"
	"github.com/lexhaven/lexingest/internal/config"
	"github.com/lexhaven/lexingest/internal/embeddings"
	"github.com/lexhaven/lexingest/internal/ingest"
	"github.com/lexhaven/lexingest/internal/loader"
	"github.com/lexhaven/lexingest/internal/logging"
	"github.com/lexhaven/lexingest/internal/sanitize"
	"github.com/lexhaven/lexingest/internal/vectorstore"
)

var (
	// configPath is the --config flag value; empty means the default path.
	configPath string
	// version is set at build time via -ldflags.
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lexingest",
	Short: "Index legal PDFs into a vector store",
	Long: `lexingest chunks legal PDF documents, embeds the chunks, and upserts
them into a vector store (Qdrant or embedded chromem) for semantic search.

Reindexing is idempotent: a document's existing vectors are deleted before
its fresh chunks are written.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/lexingest/config.yaml)")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(mergeCmd)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// setup loads configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}

// buildService wires the full pipeline: embedder, store, collection,
// service. The returned cleanup closes the store and embedder.
func buildService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ingest.Service, func(), error) {
	embedder, err := embeddings.NewProvider(embeddings.Config{
		Model:     cfg.Embeddings.Model,
		CacheDir:  cfg.Embeddings.CacheDir,
		MaxLength: cfg.Embeddings.MaxLength,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	store, err := vectorstore.NewStore(vectorstore.Config{
		Provider: cfg.VectorStore.Provider,
		Qdrant: vectorstore.QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			UseTLS: cfg.Qdrant.UseTLS,
			APIKey: cfg.Qdrant.APIKey.Value(),
		},
		Chromem: vectorstore.ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		},
	}, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, fmt.Errorf("creating vector store: %w", err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
		if err := embedder.Close(); err != nil {
			logger.Warn("closing embedder", zap.Error(err))
		}
	}

	collection := sanitize.Identifier(cfg.Ingest.Collection)
	if collection != cfg.Ingest.Collection {
		logger.Warn("normalized collection name",
			zap.String("configured", cfg.Ingest.Collection),
			zap.String("normalized", collection),
		)
	}

	if err := store.EnsureCollection(ctx, collection, embedder.Dimension()); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("ensuring collection %s: %w", collection, err)
	}

	splitter := chunker.New(chunker.Config{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})

	svc := ingest.NewService(ingest.Config{
		Collection:    collection,
		BatchSize:     cfg.Ingest.BatchSize,
		WatchDebounce: cfg.Ingest.WatchDebounce.Duration(),
	}, loader.NewPDFLoader(), splitter, embedder, store, logger)

	return svc, cleanup, nil
}
