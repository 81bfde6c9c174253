// Package vectorstore provides vector storage backends for indexed chunks.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrCollectionNotFound indicates the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyRecords indicates an empty or nil record batch.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrConnectionFailed indicates the store could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates an unsafe collection name.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrUnknownProvider indicates an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown vector store provider")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against naming rules.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Record is one indexed chunk: a stable ID, its embedding, and sanitized
// metadata. Metadata values are restricted to string, int64, float64, bool,
// and []string; other shapes are dropped at the store boundary.
type Record struct {
	// ID is the stable chunk identifier, e.g. "ipc.pdf-chunk-0".
	// Upserting a record with an existing ID overwrites the stored point.
	ID string

	// Vector is the precomputed embedding for the chunk text.
	Vector []float32

	// Metadata is the sanitized chunk payload.
	Metadata map[string]any
}

// CollectionInfo holds metadata about a collection.
type CollectionInfo struct {
	Name       string
	PointCount uint64
	VectorSize int
}

// Store is the vector storage interface for ingestion.
//
// Vectors arrive precomputed; stores never embed. All operations accept a
// context and return explicit errors.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	// Idempotent: an existing collection with any dimension is left as-is.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert writes records, overwriting any stored point with the same ID.
	Upsert(ctx context.Context, collection string, records []Record) error

	// DeleteByField removes every point whose metadata field equals value.
	// Deleting from a missing collection or matching nothing is not an error.
	DeleteByField(ctx context.Context, collection, field, value string) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (uint64, error)

	// Close releases client resources.
	Close() error
}
