package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// PDFLoader extracts page text from PDF files via langchaingo.
type PDFLoader struct{}

// NewPDFLoader creates a PDF page loader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Load reads the PDF at path and returns its pages in document order.
func (l *PDFLoader) Load(ctx context.Context, path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrLoadFailed, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrLoadFailed, path, err)
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrLoadFailed, path, err)
	}

	pages := make([]Page, len(docs))
	for i, doc := range docs {
		pages[i] = Page{
			Text:   doc.PageContent,
			Number: pageNumber(doc, i),
		}
	}
	return pages, nil
}

// pageNumber extracts the page number from loader metadata, falling back to
// the document's position when the loader does not report one.
func pageNumber(doc schema.Document, position int) int {
	switch v := doc.Metadata["page"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return position + 1
	}
}

var _ Loader = (*PDFLoader)(nil)
