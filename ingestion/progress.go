package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how many files of a batch have been ingested.
type ProgressTracker struct {
	writer    io.Writer
	total     int
	files     int
	failed    int
	chunks    int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker for total files writing to writer.
// A nil writer discards output.
func NewProgressTracker(writer io.Writer, total int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer: writer,
		total:  total,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.files = 0
	p.failed = 0
	p.chunks = 0
}

// FileDone records one ingested file and its chunk count.
func (p *ProgressTracker) FileDone(chunks int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.files++
	p.chunks += chunks
	p.report()
}

// FileFailed records a file that could not be ingested.
func (p *ProgressTracker) FileFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.files++
	p.failed++
	p.report()
}

// Finish prints the final line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Chunks returns the number of chunks ingested so far.
func (p *ProgressTracker) Chunks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunks
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.files) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rIngested: %d/%d files (%.1f%%), %d chunks, %d failed - %s",
		p.files, p.total, percentage, p.chunks, p.failed, time.Since(p.startTime).Round(time.Millisecond))
}
