package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexhaven/lexingest/internal/chunker"
	"github.com/lexhaven/lexingest/internal/loader"
	"github.com/lexhaven/lexingest/internal/vectorstore"
)

type fakeLoader struct {
	pages map[string][]loader.Page
	errs  map[string]error
}

func (f *fakeLoader) Load(ctx context.Context, path string) ([]loader.Page, error) {
	name := filepath.Base(path)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	pages, ok := f.pages[name]
	if !ok {
		return nil, fmt.Errorf("%w: no fixture for %s", loader.ErrLoadFailed, name)
	}
	return pages, nil
}

type fakeEmbedder struct {
	err        error
	failAfter  int
	calls      int
	batchSizes []int
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.err != nil && (f.failAfter == 0 || f.calls > f.failAfter) {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 0.5, 0.25}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

type fakeStore struct {
	mu        sync.Mutex
	ops       []string
	records   []vectorstore.Record
	upsertErr error
	deleteErr error
}

func (f *fakeStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, records []vectorstore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fmt.Sprintf("upsert:%d", len(records)))
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeStore) DeleteByField(ctx context.Context, collection, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fmt.Sprintf("delete:%s=%s", field, value))
	return f.deleteErr
}

func (f *fakeStore) Count(ctx context.Context, collection string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.records)), nil
}

func (f *fakeStore) Close() error { return nil }

// writePDFFixture places a file on disk so IndexFile can hash it. The
// loader is faked, so the bytes only matter for the hash.
func writePDFFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 "+name), 0o600))
	return path
}

func newTestService(ld loader.Loader, em Embedder, st vectorstore.Store, cfg Config) *Service {
	return NewService(cfg, ld, chunker.New(chunker.Config{}), em, st, zap.NewNop())
}

func TestIndexFileChunkIDsAndMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "ipc.pdf")

	ld := &fakeLoader{pages: map[string][]loader.Page{
		"ipc.pdf": {{Text: strings.Repeat("x", 5000), Number: 1}},
	}}
	store := &fakeStore{}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{})

	result := svc.IndexFile(context.Background(), path)

	require.NoError(t, result.Err)
	assert.Equal(t, "ipc.pdf", result.File)
	assert.Equal(t, "Indian Penal Code", result.Act)
	assert.Equal(t, 3, result.Chunks, "5000 chars at 2000/200 split into 3 chunks")
	assert.Equal(t, 3, result.Upserted)
	assert.NotEmpty(t, result.Hash)
	assert.Empty(t, result.BatchFailures)

	require.Len(t, store.records, 3)
	for i, rec := range store.records {
		assert.Equal(t, fmt.Sprintf("ipc.pdf-chunk-%d", i), rec.ID)
		assert.Equal(t, "ipc.pdf", rec.Metadata["source_pdf"])
		assert.Equal(t, "Indian Penal Code", rec.Metadata["source_act"])
		assert.Equal(t, int64(1), rec.Metadata["page_number"])
		assert.Equal(t, int64(i), rec.Metadata["chunk_index"])
		assert.Equal(t, result.Hash, rec.Metadata["file_hash"])
		assert.NotEmpty(t, rec.Metadata["text"])
		assert.Len(t, rec.Vector, 3)
	}
}

func TestIndexFileUnknownPageStoredAsSentinel(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "scanned.pdf")

	// Page 0 is the loader's "could not attribute a page".
	ld := &fakeLoader{pages: map[string][]loader.Page{
		"scanned.pdf": {{Text: "text without page attribution", Number: 0}},
	}}
	store := &fakeStore{}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{})

	result := svc.IndexFile(context.Background(), path)

	require.NoError(t, result.Err)
	require.Len(t, store.records, 1)
	assert.Equal(t, int64(-1), store.records[0].Metadata["page_number"])
}

func TestIndexFileDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "crpc.pdf")

	ld := &fakeLoader{pages: map[string][]loader.Page{
		"crpc.pdf": {{Text: strings.Repeat("a", 3000), Number: 1}},
	}}
	store := &fakeStore{}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{})

	first := svc.IndexFile(context.Background(), path)
	second := svc.IndexFile(context.Background(), path)

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.Equal(t, first.Hash, second.Hash)
	require.Equal(t, len(store.records), first.Chunks+second.Chunks)
	for i := 0; i < first.Chunks; i++ {
		assert.Equal(t, store.records[i].ID, store.records[first.Chunks+i].ID)
	}
}

func TestIndexFileBatchFlush(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "evidence.pdf")

	// 5 pages of short text produce 5 chunks; batch size 2 gives 2+2+1.
	pages := make([]loader.Page, 5)
	for i := range pages {
		pages[i] = loader.Page{Text: strings.Repeat("e", 100), Number: i + 1}
	}
	ld := &fakeLoader{pages: map[string][]loader.Page{"evidence.pdf": pages}}
	store := &fakeStore{}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{BatchSize: 2})

	result := svc.IndexFile(context.Background(), path)

	require.NoError(t, result.Err)
	assert.Equal(t, 5, result.Upserted)
	assert.Equal(t, []string{"upsert:2", "upsert:2", "upsert:1"}, store.ops)
}

func TestIndexFileEmbedsOneChunkAtATime(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "contract.pdf")

	ld := &fakeLoader{pages: map[string][]loader.Page{
		"contract.pdf": {{Text: strings.Repeat("c", 4500), Number: 1}},
	}}
	em := &fakeEmbedder{}
	svc := newTestService(ld, em, &fakeStore{}, Config{})

	result := svc.IndexFile(context.Background(), path)

	require.NoError(t, result.Err)
	for _, size := range em.batchSizes {
		assert.Equal(t, 1, size)
	}
	assert.Equal(t, result.Chunks, em.calls)
}

func TestIndexFileUpsertFailureRecordedAndContinues(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "pocso.pdf")

	pages := make([]loader.Page, 4)
	for i := range pages {
		pages[i] = loader.Page{Text: strings.Repeat("p", 100), Number: i + 1}
	}
	ld := &fakeLoader{pages: map[string][]loader.Page{"pocso.pdf": pages}}
	store := &fakeStore{upsertErr: errors.New("qdrant unavailable")}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{BatchSize: 2})

	result := svc.IndexFile(context.Background(), path)

	require.NoError(t, result.Err, "upsert failures are not fatal")
	assert.Equal(t, 0, result.Upserted)
	assert.Len(t, result.BatchFailures, 2, "both batches failed and were recorded")
	assert.Len(t, store.ops, 2, "processing continued past the first failure")
}

func TestIndexFileLoaderFailure(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "broken.pdf")

	ld := &fakeLoader{errs: map[string]error{
		"broken.pdf": fmt.Errorf("%w: corrupt xref", loader.ErrLoadFailed),
	}}
	svc := newTestService(ld, &fakeEmbedder{}, &fakeStore{}, Config{})

	result := svc.IndexFile(context.Background(), path)

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, loader.ErrLoadFailed)
	assert.Zero(t, result.Chunks)
}

func TestIndexFileEmbeddingFailureAborts(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "ndps.pdf")

	pages := make([]loader.Page, 3)
	for i := range pages {
		pages[i] = loader.Page{Text: strings.Repeat("n", 100), Number: i + 1}
	}
	ld := &fakeLoader{pages: map[string][]loader.Page{"ndps.pdf": pages}}
	em := &fakeEmbedder{err: errors.New("onnx runtime error"), failAfter: 1}
	store := &fakeStore{}
	svc := newTestService(ld, em, store, Config{BatchSize: 10})

	result := svc.IndexFile(context.Background(), path)

	assert.True(t, result.Failed())
	assert.Equal(t, 1, result.Upserted, "chunks embedded before the failure were flushed")
}

func TestIndexFolderDeleteBeforeInsert(t *testing.T) {
	dir := t.TempDir()
	writePDFFixture(t, dir, "crpc.pdf")
	writePDFFixture(t, dir, "ipc.pdf")

	ld := &fakeLoader{pages: map[string][]loader.Page{
		"crpc.pdf": {{Text: strings.Repeat("c", 100), Number: 1}},
		"ipc.pdf":  {{Text: strings.Repeat("i", 100), Number: 1}},
	}}
	store := &fakeStore{}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{})

	result, err := svc.IndexFolder(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, "crpc.pdf", result.Documents[0].File, "sorted order")
	assert.Equal(t, "ipc.pdf", result.Documents[1].File)
	assert.Equal(t, []string{
		"delete:source_pdf=crpc.pdf",
		"upsert:1",
		"delete:source_pdf=ipc.pdf",
		"upsert:1",
	}, store.ops)
}

func TestIndexFolderSkipsNonPDFs(t *testing.T) {
	dir := t.TempDir()
	writePDFFixture(t, dir, "ipc.pdf")
	writePDFFixture(t, dir, "IPC_upper.PDF")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "archive.pdf.d"), 0o700))

	ld := &fakeLoader{pages: map[string][]loader.Page{
		"ipc.pdf":       {{Text: strings.Repeat("i", 100), Number: 1}},
		"IPC_upper.PDF": {{Text: strings.Repeat("u", 100), Number: 1}},
	}}
	svc := newTestService(ld, &fakeEmbedder{}, &fakeStore{}, Config{})

	result, err := svc.IndexFolder(context.Background(), dir)

	require.NoError(t, err)
	assert.Len(t, result.Documents, 2, ".pdf matching is case-insensitive")
	assert.Contains(t, result.Skipped, "notes.txt")
	assert.Contains(t, result.Skipped, "archive.pdf.d")
}

func TestIndexFolderEmpty(t *testing.T) {
	svc := newTestService(&fakeLoader{}, &fakeEmbedder{}, &fakeStore{}, Config{})

	result, err := svc.IndexFolder(context.Background(), t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, result.Documents)
	assert.Empty(t, result.Skipped)
}

func TestIndexFolderMissing(t *testing.T) {
	svc := newTestService(&fakeLoader{}, &fakeEmbedder{}, &fakeStore{}, Config{})

	_, err := svc.IndexFolder(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestIndexFolderSurvivesFailingDocument(t *testing.T) {
	dir := t.TempDir()
	writePDFFixture(t, dir, "broken.pdf")
	writePDFFixture(t, dir, "ipc.pdf")

	ld := &fakeLoader{
		pages: map[string][]loader.Page{
			"ipc.pdf": {{Text: strings.Repeat("i", 100), Number: 1}},
		},
		errs: map[string]error{
			"broken.pdf": fmt.Errorf("%w: corrupt xref", loader.ErrLoadFailed),
		},
	}
	svc := newTestService(ld, &fakeEmbedder{}, &fakeStore{}, Config{})

	result, err := svc.IndexFolder(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	assert.True(t, result.Documents[0].Failed())
	assert.False(t, result.Documents[1].Failed())
	assert.Equal(t, 1, result.Documents[1].Upserted)
}

func TestIndexFolderDeleteFailureRecorded(t *testing.T) {
	dir := t.TempDir()
	writePDFFixture(t, dir, "ipc.pdf")

	ld := &fakeLoader{pages: map[string][]loader.Page{
		"ipc.pdf": {{Text: strings.Repeat("i", 100), Number: 1}},
	}}
	store := &fakeStore{deleteErr: errors.New("qdrant unavailable")}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{})

	result, err := svc.IndexFolder(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.False(t, result.Documents[0].Failed(), "indexing proceeds despite delete failure")
	assert.NotEmpty(t, result.Documents[0].BatchFailures)
}

func TestIndexFolderCanceledContext(t *testing.T) {
	dir := t.TempDir()
	writePDFFixture(t, dir, "ipc.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(&fakeLoader{}, &fakeEmbedder{}, &fakeStore{}, Config{})
	_, err := svc.IndexFolder(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPurge(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(&fakeLoader{}, &fakeEmbedder{}, store, Config{Collection: "statutes"})

	require.NoError(t, svc.Purge(context.Background(), "ipc.pdf"))
	assert.Equal(t, []string{"delete:source_pdf=ipc.pdf"}, store.ops)

	store.deleteErr = errors.New("down")
	assert.Error(t, svc.Purge(context.Background(), "ipc.pdf"))
}

func TestCount(t *testing.T) {
	dir := t.TempDir()
	path := writePDFFixture(t, dir, "ipc.pdf")

	ld := &fakeLoader{pages: map[string][]loader.Page{
		"ipc.pdf": {{Text: strings.Repeat("i", 100), Number: 1}},
	}}
	store := &fakeStore{}
	svc := newTestService(ld, &fakeEmbedder{}, store, Config{})

	require.NoError(t, svc.IndexFile(context.Background(), path).Err)

	count, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestMergeFolder(t *testing.T) {
	dir := t.TempDir()
	writePDFFixture(t, dir, "a.pdf")
	writePDFFixture(t, dir, "b.pdf")
	writePDFFixture(t, dir, "broken.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o600))

	ld := &fakeLoader{
		pages: map[string][]loader.Page{
			"a.pdf": {{Text: "first page", Number: 1}, {Text: "second page", Number: 2}},
			"b.pdf": {{Text: "other doc", Number: 1}},
		},
		errs: map[string]error{
			"broken.pdf": fmt.Errorf("%w: corrupt xref", loader.ErrLoadFailed),
		},
	}
	svc := newTestService(ld, &fakeEmbedder{}, &fakeStore{}, Config{})

	outPath := filepath.Join(t.TempDir(), "merged.txt")
	require.NoError(t, svc.MergeFolder(context.Background(), dir, outPath))

	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "first page\n\nsecond page\nother doc\n", string(content))
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "legal_docs", cfg.Collection)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.NotZero(t, cfg.WatchDebounce)
}
