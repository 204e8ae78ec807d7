package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
)

// DocumentRepository stores embedded chunks and answers similarity queries.
// Implementations must be safe for concurrent use.
type DocumentRepository interface {
	// AddDocuments inserts all records in one transaction: either every
	// record is persisted or none is.
	AddDocuments(ctx context.Context, records ...*core.DocumentRecord) error

	// FindSimilar returns up to k documents nearest to vector, ordered by
	// ascending cosine distance. Similarity is reported as 1 - distance.
	// Rows without an embedding are skipped.
	FindSimilar(ctx context.Context, vector []float32, k int) ([]*core.RetrievedDoc, error)

	// ListDocuments returns documents in insertion order, skipping offset rows.
	ListDocuments(ctx context.Context, offset, limit int) ([]*core.DocumentRecord, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)
}

// HistoryRepository stores conversation turns. There is no update or delete path.
type HistoryRepository interface {
	// AppendTurn inserts a single turn. CreatedAt is set when zero.
	AppendTurn(ctx context.Context, turn *core.ConversationTurn) error

	// GetTurns returns a conversation ordered by CreatedAt ascending.
	// Turns with equal timestamps keep insertion order.
	GetTurns(ctx context.Context, conversationID uuid.UUID) ([]*core.ConversationTurn, error)
}

// IngestionRepository stores the ingestion audit trail.
type IngestionRepository interface {
	// AddIngestion appends a record. ID and IngestedAt are set when zero.
	AddIngestion(ctx context.Context, record *core.IngestionRecord) error

	// ListIngestions returns up to limit records, newest first.
	ListIngestions(ctx context.Context, limit int) ([]*core.IngestionRecord, error)
}

// Store bundles the repositories of one backend and owns its connections.
type Store interface {
	Documents() DocumentRepository
	History() HistoryRepository
	Ingestions() IngestionRepository

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend. The repositories must not be used afterwards.
	Close() error
}
