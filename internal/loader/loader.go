// Package loader extracts ordered page text from source documents.
//
// Text extraction is an external concern: the pipeline only needs an ordered
// sequence of page records. The default implementation reads PDFs through
// langchaingo's document loader.
package loader

import (
	"context"
	"errors"
)

// ErrLoadFailed wraps unreadable or corrupt input. The orchestrator treats
// these as document-scoped: skip, log, continue.
var ErrLoadFailed = errors.New("loader: failed to load document")

// Page is one ordered block of extracted text.
type Page struct {
	// Text is the extracted page text.
	Text string

	// Number is the 1-based page number, or 0 when the source format does
	// not carry one.
	Number int
}

// Loader produces the ordered pages of a document.
type Loader interface {
	// Load extracts pages from the file at path. Returns an error wrapping
	// ErrLoadFailed when the input cannot be read or parsed.
	Load(ctx context.Context, path string) ([]Page, error)
}
