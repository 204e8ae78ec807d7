package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Loader reads a file and returns its chunks.
type Loader interface {
	Load(ctx context.Context, path string) ([]schema.Document, error)
}

// PDFLoader extracts page text from a PDF and splits it recursively.
type PDFLoader struct {
	splitter textsplitter.TextSplitter
}

var _ Loader = (*PDFLoader)(nil)

// NewPDFLoader creates a loader producing chunks of at most chunkSize
// characters overlapping by chunkOverlap.
func NewPDFLoader(chunkSize, chunkOverlap int) (*PDFLoader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &PDFLoader{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}, nil
}

func (l *PDFLoader) Load(ctx context.Context, path string) ([]schema.Document, error) {
	if !IsPDF(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).LoadAndSplit(ctx, l.splitter)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata["source"] = path
	}
	return docs, nil
}

// IsPDF reports whether path has a .pdf extension, ignoring case.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
