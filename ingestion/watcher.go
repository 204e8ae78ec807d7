package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a file must stay unchanged before it is ingested.
const DefaultSettleDelay = 500 * time.Millisecond

// FileIngester ingests one file; Pipeline implements it.
type FileIngester interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

// Watcher ingests PDF files created in, or moved into, a directory.
// Files already present when Run starts are ignored. Each settled file is
// ingested on its own goroutine; the ingester bounds any shared work.
type Watcher struct {
	dir         string
	ingester    FileIngester
	settleDelay time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	stopped  bool
	pending  map[string]*time.Timer
	inflight sync.WaitGroup
}

func NewWatcher(dir string, ingester FileIngester, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:         dir,
		ingester:    ingester,
		settleDelay: DefaultSettleDelay,
		logger:      logger.With("component", "watcher", "dir", dir),
		pending:     make(map[string]*time.Timer),
	}
}

// Run watches until ctx is done, then waits for ingestions already started.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for PDF files")

	defer w.inflight.Wait()
	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !IsPDF(event.Name) {
				continue
			}
			// writes keep arriving while a file is copied in
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "err", err)
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.inflight.Add(1)
		w.mu.Unlock()

		go func() {
			defer w.inflight.Done()
			n, err := w.ingester.IngestFile(ctx, path)
			if err != nil {
				w.logger.Error("ingestion failed", "path", path, "err", err)
				return
			}
			w.logger.Info("ingested file", "path", path, "chunks", n)
		}()
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
