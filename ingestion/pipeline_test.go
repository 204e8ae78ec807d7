package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

// testLoader returns fixed chunks for every path.
type testLoader struct {
	chunks int
	err    error
}

func (l *testLoader) Load(ctx context.Context, path string) ([]schema.Document, error) {
	if l.err != nil {
		return nil, l.err
	}
	docs := make([]schema.Document, l.chunks)
	for i := range docs {
		docs[i] = schema.Document{
			PageContent: fmt.Sprintf("%s chunk %d", filepath.Base(path), i),
			Metadata:    map[string]any{"source": path, "page": i},
		}
	}
	return docs, nil
}

// blockingWriter wraps a writer and holds each call until release is closed.
// entered, when set, is closed once the call starts waiting.
type blockingWriter struct {
	inner   DocumentWriter
	entered chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (w *blockingWriter) AddPayloads(ctx context.Context, payloads []any) (int, error) {
	if w.entered != nil {
		close(w.entered)
	}
	<-w.release
	defer close(w.done)
	return w.inner.AddPayloads(ctx, payloads)
}

type failingWriter struct{ err error }

func (w failingWriter) AddPayloads(ctx context.Context, payloads []any) (int, error) {
	return 0, w.err
}

type pipelineFixture struct {
	store    *badger.Store
	writer   *vectorstore.Writer
	pipeline *Pipeline
	dir      string
}

func newPipelineFixture(t *testing.T, loader Loader, wrap func(DocumentWriter) DocumentWriter, opts ...Option) *pipelineFixture {
	t.Helper()
	store, err := badger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	writer, err := vectorstore.NewWriter(store.Documents(), embedder)
	require.NoError(t, err)

	supervisor, err := NewSupervisor(2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { supervisor.Release(5 * time.Second) })

	var dw DocumentWriter = writer
	if wrap != nil {
		dw = wrap(writer)
	}
	pipeline, err := NewPipeline(loader, dw, store.Ingestions(), supervisor, opts...)
	require.NoError(t, err)

	return &pipelineFixture{store: store, writer: writer, pipeline: pipeline, dir: t.TempDir()}
}

func (f *pipelineFixture) writeFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return path
}

func (f *pipelineFixture) documentCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.Documents().CountDocuments(context.Background())
	require.NoError(t, err)
	return n
}

func (f *pipelineFixture) ingestions(t *testing.T) []*core.IngestionRecord {
	t.Helper()
	records, err := f.store.Ingestions().ListIngestions(context.Background(), 100)
	require.NoError(t, err)
	return records
}

func TestIngestFile(t *testing.T) {
	f := newPipelineFixture(t, &testLoader{chunks: 3}, nil)
	contents := []byte("%PDF-1.4 fake")
	path := f.writeFile(t, "report.pdf", contents)

	count, err := f.pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, f.documentCount(t))

	records := f.ingestions(t)
	require.Len(t, records, 1)
	assert.Equal(t, "report.pdf", records[0].Filename)
	assert.Equal(t, 3, records[0].Metadata.ChunkCount)
	assert.Equal(t, path, records[0].Metadata.SourcePath)
	assert.Equal(t, core.Checksum(contents), records[0].Metadata.Checksum)
}

func TestIngestFile_PersistFailureIsFatal(t *testing.T) {
	failure := fmt.Errorf("%w: embedding service down", core.ErrServiceUnavailable)
	f := newPipelineFixture(t, &testLoader{chunks: 2}, func(DocumentWriter) DocumentWriter {
		return failingWriter{err: failure}
	})
	path := f.writeFile(t, "a.pdf", []byte("x"))

	_, err := f.pipeline.IngestFile(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrServiceUnavailable)
	assert.Empty(t, f.ingestions(t), "no audit record on failure")
}

func TestIngestFile_PersistTimeoutCompletesInBackground(t *testing.T) {
	var blocking *blockingWriter
	f := newPipelineFixture(t, &testLoader{chunks: 4}, func(inner DocumentWriter) DocumentWriter {
		blocking = &blockingWriter{inner: inner, release: make(chan struct{}), done: make(chan struct{})}
		return blocking
	}, WithPersistTimeout(20*time.Millisecond))
	path := f.writeFile(t, "big.pdf", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	count, err := f.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "chunk count returned despite timeout")
	assert.Zero(t, f.documentCount(t), "persistence still pending")
	require.Len(t, f.ingestions(t), 1)

	// the request is over; the background write must not depend on it
	cancel()
	close(blocking.release)
	<-blocking.done
	assert.Equal(t, 4, f.documentCount(t))
}

func TestIngestFile_CallerCancelledDuringPersist(t *testing.T) {
	var blocking *blockingWriter
	f := newPipelineFixture(t, &testLoader{chunks: 3}, func(inner DocumentWriter) DocumentWriter {
		blocking = &blockingWriter{
			inner:   inner,
			entered: make(chan struct{}),
			release: make(chan struct{}),
			done:    make(chan struct{}),
		}
		return blocking
	}, WithPersistTimeout(time.Minute))
	path := f.writeFile(t, "cancelled.pdf", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		count int
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		count, err := f.pipeline.IngestFile(ctx, path)
		resCh <- result{count, err}
	}()

	<-blocking.entered
	cancel()

	var res result
	select {
	case res = <-resCh:
	case <-time.After(5 * time.Second):
		t.Fatal("IngestFile did not return after cancellation")
	}
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.count)
	records := f.ingestions(t)
	require.Len(t, records, 1, "detached write keeps its audit record")
	assert.Equal(t, "cancelled.pdf", records[0].Filename)

	close(blocking.release)
	<-blocking.done
	assert.Equal(t, 3, f.documentCount(t))
}

func TestIngestFile_LoaderError(t *testing.T) {
	failure := errors.New("corrupt pdf")
	f := newPipelineFixture(t, &testLoader{err: failure}, nil)
	path := f.writeFile(t, "bad.pdf", []byte("x"))

	_, err := f.pipeline.IngestFile(context.Background(), path)
	assert.ErrorIs(t, err, failure)
	assert.Empty(t, f.ingestions(t))
}

func TestIngestFile_MissingFile(t *testing.T) {
	f := newPipelineFixture(t, &testLoader{chunks: 1}, nil)
	_, err := f.pipeline.IngestFile(context.Background(), filepath.Join(f.dir, "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIngestFiles(t *testing.T) {
	f := newPipelineFixture(t, &testLoader{chunks: 2}, nil)
	paths := []string{
		f.writeFile(t, "one.pdf", []byte("1")),
		filepath.Join(f.dir, "missing.pdf"),
		f.writeFile(t, "two.pdf", []byte("2")),
	}

	var progress bytes.Buffer
	total, err := f.pipeline.IngestFiles(context.Background(), paths, &progress)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 4, total)
	assert.Equal(t, 4, f.documentCount(t))
	assert.Len(t, f.ingestions(t), 2)
	assert.Contains(t, progress.String(), "3/3 files")
}

func TestNewPipeline_Validation(t *testing.T) {
	f := newPipelineFixture(t, &testLoader{}, nil)
	supervisor := f.pipeline.supervisor

	_, err := NewPipeline(nil, f.writer, f.store.Ingestions(), supervisor)
	assert.ErrorIs(t, err, ErrLoaderRequired)
	_, err = NewPipeline(&testLoader{}, nil, f.store.Ingestions(), supervisor)
	assert.ErrorIs(t, err, ErrWriterRequired)
	_, err = NewPipeline(&testLoader{}, f.writer, nil, supervisor)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
	_, err = NewPipeline(&testLoader{}, f.writer, f.store.Ingestions(), nil)
	assert.ErrorIs(t, err, ErrSupervisorRequired)
	_, err = NewPipeline(&testLoader{}, f.writer, f.store.Ingestions(), supervisor, WithPersistTimeout(0))
	assert.Error(t, err)
}
