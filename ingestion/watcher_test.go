package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIngester struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingIngester) IngestFile(ctx context.Context, path string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return 1, nil
}

func (r *recordingIngester) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcher_IngestsNewPDFsOnce(t *testing.T) {
	dir := t.TempDir()
	ingester := &recordingIngester{}
	watcher := NewWatcher(dir, ingester, nil)
	watcher.settleDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	pdf := filepath.Join(dir, "new.pdf")
	f, err := os.Create(pdf)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.WriteString("chunk of bytes ")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(ingester.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{pdf}, ingester.seen(), "writes while copying collapse into one ingestion")

	cancel()
	assert.NoError(t, <-errCh)
}

// A single-worker supervisor must still persist files the watcher picks up.
func TestWatcher_PipelineOnSingleWorker(t *testing.T) {
	store, err := badger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	writer, err := vectorstore.NewWriter(store.Documents(), embedder)
	require.NoError(t, err)

	supervisor, err := NewSupervisor(1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { supervisor.Release(5 * time.Second) })

	pipeline, err := NewPipeline(&testLoader{chunks: 3}, writer, store.Ingestions(), supervisor)
	require.NoError(t, err)

	dir := t.TempDir()
	watcher := NewWatcher(dir, pipeline, nil)
	watcher.settleDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.pdf"), []byte("%PDF-1.4"), 0o644))

	require.Eventually(t, func() bool {
		records, err := store.Ingestions().ListIngestions(context.Background(), 10)
		return err == nil && len(records) == 1
	}, 5*time.Second, 20*time.Millisecond)
	n, err := store.Documents().CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	watcher := NewWatcher(filepath.Join(t.TempDir(), "absent"), &recordingIngester{}, nil)
	assert.Error(t, watcher.Run(context.Background()))
}
