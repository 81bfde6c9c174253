package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("lexingest.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for the persistent database.
	// Supports ~ expansion. Default: "~/.lexingest/chromem"
	Path string

	// Compress enables gzip compression of persisted collections.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.lexingest/chromem"
	}
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore is an embedded Store backed by chromem-go. It needs no
// external server, which makes it the fallback when Qdrant is unreachable
// and the backend for tests.
//
// All vectors arrive precomputed, so the chromem embedding function is never
// exercised; a failing stub is installed to catch accidental use (chromem-go
// would otherwise default to its OpenAI embedder).
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// collections tracks which collections have been opened
	collections sync.Map
}

// NewChromemStore creates a persistent ChromemStore at the configured path.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// expandChromemPath expands ~ to the home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc returns a stub that fails loudly; vectors are precomputed.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem store holds precomputed embeddings only")
	}
}

func (s *ChromemStore) getCollection(name string) *chromem.Collection {
	return s.db.GetCollection(name, s.embeddingFunc())
}

// EnsureCollection creates the collection if it does not exist.
// The dimension is fixed by the vectors written to it; chromem does not
// require it up front.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string, dimension int) (err error) {
	start := time.Now()
	defer func() { recordOperation("chromem", "ensure_collection", start, err) }()

	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("dimension", dimension),
	)

	if err = ValidateCollectionName(name); err != nil {
		return err
	}

	// Must pass an embedding function, not nil: chromem-go installs its
	// OpenAI default when nil is passed for persisted collections.
	if _, err = s.db.GetOrCreateCollection(name, nil, s.embeddingFunc()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	s.collections.Store(name, true)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Upsert writes records with their precomputed embeddings.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	start := time.Now()
	defer func() { recordOperation("chromem", "upsert", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if err = ValidateCollectionName(collection); err != nil {
		return err
	}

	coll, err := s.db.GetOrCreateCollection(collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		content, _ := rec.Metadata["text"].(string)
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   content,
			Metadata:  metadataToString(rec.Metadata),
			Embedding: rec.Vector,
		}
	}

	// Concurrency of 1: embeddings are already computed, nothing to parallelize.
	if err = coll.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to collection %s: %w", collection, err)
	}

	PointsUpserted.WithLabelValues("chromem").Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted records to chromem",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)

	return nil
}

// DeleteByField removes every document whose metadata field equals value.
func (s *ChromemStore) DeleteByField(ctx context.Context, collection, field, value string) (err error) {
	start := time.Now()
	defer func() { recordOperation("chromem", "delete_by_field", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByField")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("field", field),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return err
	}
	if field == "" {
		return fmt.Errorf("%w: field required", ErrInvalidConfig)
	}

	coll := s.getCollection(collection)
	if coll == nil {
		// Nothing to delete.
		span.SetStatus(codes.Ok, "collection absent")
		return nil
	}

	if err = coll.Delete(ctx, map[string]string{field: value}, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting documents from collection %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count(ctx context.Context, collection string) (count uint64, err error) {
	start := time.Now()
	defer func() { recordOperation("chromem", "count", start, err) }()

	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if err = ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	coll := s.getCollection(collection)
	if coll == nil {
		return 0, ErrCollectionNotFound
	}

	count = uint64(coll.Count())
	span.SetAttributes(attribute.Int64("point_count", int64(count)))
	span.SetStatus(codes.Ok, "success")
	return count, nil
}

// Close releases resources. The chromem DB persists on write, so this is a
// no-op beyond satisfying the Store interface.
func (s *ChromemStore) Close() error {
	return nil
}

// metadataToString converts metadata to chromem's string-valued format.
// Slices join with commas; other values format via %v.
func metadataToString(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			out[k] = val
		case []string:
			out[k] = strings.Join(val, ",")
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
