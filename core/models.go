package core

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// Metadata is the free-form JSON attribute map carried by chunks and documents.
type Metadata map[string]any

// Chunk is a bounded span of source text produced by splitting a document.
// It is consumed once by the vector store writer and never mutated.
type Chunk struct {
	Content  string
	Metadata Metadata
}

// DocumentRecord is a persisted chunk with its embedding.
// Records are never mutated after insert.
type DocumentRecord struct {
	ID        uuid.UUID
	Content   string
	Embedding []float32 // nil when the row was stored without a vector
	Metadata  Metadata
}

// IngestionMetadata describes what one ingestion call produced.
type IngestionMetadata struct {
	ChunkCount int    `json:"chunk_count"`
	SourcePath string `json:"source_path"`
	Checksum   string `json:"checksum,omitempty"` // BLAKE2b-256 of the source file
}

// IngestionRecord is the append-only audit entry written once per ingested file.
type IngestionRecord struct {
	ID         uuid.UUID
	Filename   string
	IngestedAt time.Time
	Metadata   IngestionMetadata
}

// ConversationTurn is one question/answer exchange. Turns sharing a
// ConversationID form a conversation ordered by CreatedAt.
type ConversationTurn struct {
	ConversationID uuid.UUID
	Question       string
	Answer         string
	CreatedAt      time.Time
}

// RetrievedDoc is a similarity search hit. It only lives for one query.
type RetrievedDoc struct {
	ID         uuid.UUID
	Content    string
	Metadata   Metadata
	Similarity float64 // 1 - cosine distance
}

// Summary strips the content, leaving what is reported back as a source.
func (d *RetrievedDoc) Summary() SourceSummary {
	return SourceSummary{
		ID:         d.ID,
		Similarity: d.Similarity,
		Metadata:   d.Metadata,
	}
}

// SourceSummary identifies a document that contributed to an answer.
type SourceSummary struct {
	ID         uuid.UUID
	Similarity float64
	Metadata   Metadata
}

// Answer is the result of a synchronous question.
type Answer struct {
	Text    string
	Sources []SourceSummary
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ChecksumReader is Checksum over everything read from r.
func ChecksumReader(r io.Reader) (string, error) {
	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
