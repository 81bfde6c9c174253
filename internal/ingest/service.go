// Package ingest orchestrates the PDF-to-vector-store pipeline.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexhaven/lexingest/internal/chunker"
	"github.com/lexhaven/lexingest/internal/loader"
	"github.com/lexhaven/lexingest/internal/sanitize"
	"github.com/lexhaven/lexingest/internal/taxonomy"
	"github.com/lexhaven/lexingest/internal/vectorstore"
)

// Splitter splits page texts into chunks.
type Splitter interface {
	SplitPages(pages []chunker.Page) []chunker.Chunk
}

// Embedder generates embeddings for chunk texts.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config controls the ingestion service.
type Config struct {
	// Collection is the target vector store collection.
	Collection string

	// BatchSize is the number of records per upsert batch.
	BatchSize int

	// WatchDebounce is how long watch mode waits after the last
	// filesystem event before reindexing a file.
	WatchDebounce time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "legal_docs"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = 2 * time.Second
	}
}

// DocumentResult reports the outcome of indexing one document.
type DocumentResult struct {
	// File is the document name (base name, e.g. "ipc.pdf").
	File string

	// Hash is the sha256 hex digest of the raw file bytes, stored with
	// every chunk for provenance.
	Hash string

	// Act is the classified statute label.
	Act string

	// Chunks is the number of chunks produced from the document.
	Chunks int

	// Upserted is the number of records written to the store.
	Upserted int

	// BatchFailures collects non-fatal errors (failed upsert batches,
	// failed pre-delete). Processing continued past each.
	BatchFailures []error

	// Err is set when the document could not be processed at all.
	Err error
}

// Failed reports whether the document produced no usable index state.
func (r DocumentResult) Failed() bool {
	return r.Err != nil
}

// FolderResult reports the outcome of indexing a folder.
type FolderResult struct {
	// Documents holds one result per PDF, in processing (sorted) order.
	Documents []DocumentResult

	// Skipped lists directory entries that were not PDFs.
	Skipped []string
}

// Service runs the ingestion pipeline. All collaborators are injected.
type Service struct {
	cfg      Config
	loader   loader.Loader
	splitter Splitter
	embedder Embedder
	store    vectorstore.Store
	logger   *zap.Logger
}

// NewService creates a Service from its collaborators.
func NewService(cfg Config, ld loader.Loader, sp Splitter, em Embedder, st vectorstore.Store, logger *zap.Logger) *Service {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		loader:   ld,
		splitter: sp,
		embedder: em,
		store:    st,
		logger:   logger,
	}
}

// IndexFile loads, chunks, embeds, and upserts one PDF.
//
// Chunk IDs are deterministic ("{filename}-chunk-{index}"), so reindexing a
// document overwrites its existing points. Upsert failures are recorded in
// BatchFailures and processing continues with the next batch; only loader
// and embedding failures abort the document.
func (s *Service) IndexFile(ctx context.Context, path string) DocumentResult {
	name := filepath.Base(path)
	result := DocumentResult{File: name}

	log := s.logger.With(zap.String("file", name))
	log.Info("loading document")

	raw, err := os.ReadFile(path)
	if err != nil {
		result.Err = fmt.Errorf("reading %s: %w", path, err)
		log.Error("failed to read document", zap.Error(result.Err))
		return result
	}
	sum := sha256.Sum256(raw)
	result.Hash = hex.EncodeToString(sum[:])

	pages, err := s.loader.Load(ctx, path)
	if err != nil {
		result.Err = fmt.Errorf("loading %s: %w", path, err)
		log.Error("failed to load document", zap.Error(result.Err))
		return result
	}

	result.Act = taxonomy.Classify(name)

	log.Info("chunking document", zap.Int("pages", len(pages)))
	chunkPages := make([]chunker.Page, len(pages))
	for i, p := range pages {
		chunkPages[i] = chunker.Page{Text: p.Text, Number: p.Number}
	}
	chunks := s.splitter.SplitPages(chunkPages)
	result.Chunks = len(chunks)

	log.Info("embedding and upserting chunks",
		zap.Int("chunks", len(chunks)),
		zap.String("source_act", result.Act),
	)

	batch := make([]vectorstore.Record, 0, s.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.Upsert(ctx, s.cfg.Collection, batch); err != nil {
			wrapped := fmt.Errorf("upserting batch of %d: %w", len(batch), err)
			result.BatchFailures = append(result.BatchFailures, wrapped)
			log.Error("batch upsert failed", zap.Error(wrapped))
		} else {
			result.Upserted += len(batch)
		}
		batch = batch[:0]
	}

	for i, chunk := range chunks {
		// Zero is the loader's "page unknown"; the sanitizer maps nil to -1.
		pageNumber := any(chunk.PageNumber)
		if chunk.PageNumber == 0 {
			pageNumber = nil
		}
		meta := sanitize.Metadata(map[string]any{
			sanitize.KeyText:       chunk.Text,
			sanitize.KeySourcePDF:  name,
			sanitize.KeySourceAct:  result.Act,
			sanitize.KeyPageNumber: pageNumber,
			sanitize.KeyFileHash:   result.Hash,
			sanitize.KeyChunkIndex: i,
		})

		// One chunk at a time keeps memory flat on statute-sized PDFs.
		vectors, err := s.embedder.EmbedDocuments(ctx, []string{chunk.Text})
		if err != nil {
			flush()
			result.Err = fmt.Errorf("embedding chunk %d of %s: %w", i, name, err)
			log.Error("embedding failed", zap.Int("chunk_index", i), zap.Error(err))
			return result
		}

		batch = append(batch, vectorstore.Record{
			ID:       fmt.Sprintf("%s-chunk-%d", name, i),
			Vector:   vectors[0],
			Metadata: meta,
		})
		if len(batch) >= s.cfg.BatchSize {
			flush()
		}
	}
	flush()

	log.Info("document indexed",
		zap.Int("chunks", result.Chunks),
		zap.Int("upserted", result.Upserted),
		zap.Int("batch_failures", len(result.BatchFailures)),
	)
	return result
}

// IndexFolder indexes every PDF in dir, sorted by name.
//
// Each document's existing vectors are deleted before it is reindexed, so
// repeated runs stay idempotent. One failing document never aborts the
// batch; its result carries the error.
func (s *Service) IndexFolder(ctx context.Context, dir string) (FolderResult, error) {
	var result FolderResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result, fmt.Errorf("reading folder %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := entry.Name()
		if entry.IsDir() || !isPDF(name) {
			result.Skipped = append(result.Skipped, name)
			s.logger.Debug("skipping non-PDF entry", zap.String("entry", name))
			continue
		}

		docResult := s.reindexDocument(ctx, filepath.Join(dir, name))
		result.Documents = append(result.Documents, docResult)
	}

	s.logger.Info("folder indexed",
		zap.String("folder", dir),
		zap.Int("documents", len(result.Documents)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// reindexDocument clears a document's existing vectors, then indexes it.
func (s *Service) reindexDocument(ctx context.Context, path string) DocumentResult {
	name := filepath.Base(path)

	delErr := s.store.DeleteByField(ctx, s.cfg.Collection, sanitize.KeySourcePDF, name)
	if delErr != nil {
		// Deterministic chunk IDs overwrite on upsert, so proceeding
		// leaves at worst stale trailing chunks until the next clean run.
		s.logger.Warn("failed to delete existing vectors, proceeding",
			zap.String("file", name),
			zap.Error(delErr),
		)
	}

	result := s.IndexFile(ctx, path)
	if delErr != nil {
		result.BatchFailures = append(result.BatchFailures, fmt.Errorf("deleting existing vectors: %w", delErr))
	}
	return result
}

// Count returns the number of vectors currently stored in the collection.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	return s.store.Count(ctx, s.cfg.Collection)
}

// Purge removes every vector belonging to the named document.
func (s *Service) Purge(ctx context.Context, documentName string) error {
	if err := s.store.DeleteByField(ctx, s.cfg.Collection, sanitize.KeySourcePDF, documentName); err != nil {
		return fmt.Errorf("purging %s: %w", documentName, err)
	}
	s.logger.Info("purged document vectors", zap.String("file", documentName))
	return nil
}

func isPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
