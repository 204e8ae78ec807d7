package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

type DocumentRepository struct {
	pool *pgxpool.Pool
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

const insertDocumentSQL = `INSERT INTO documents (id, content, embedding, metadata) VALUES ($1, $2, $3, $4)`

// AddDocuments inserts every record inside one transaction.
func (r *DocumentRepository) AddDocuments(ctx context.Context, records ...*core.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		var embedding any
		if record.Embedding != nil {
			embedding = pgvector.NewVector(record.Embedding)
		}
		batch.Queue(insertDocumentSQL, record.ID, record.Content, embedding, metadataOrEmpty(record.Metadata))
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
		}
		return nil
	})
}

const findSimilarSQL = `
SELECT id, content, metadata, embedding <=> $1 AS distance
FROM documents
WHERE embedding IS NOT NULL
ORDER BY distance, seq
LIMIT $2`

func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, k int) ([]*core.RetrievedDoc, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}

	rows, err := r.pool.Query(ctx, findSimilarSQL, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.RetrievedDoc, error) {
		var (
			doc      core.RetrievedDoc
			distance float64
		)
		if err := row.Scan(&doc.ID, &doc.Content, &doc.Metadata, &distance); err != nil {
			return nil, err
		}
		doc.Similarity = 1 - distance
		return &doc, nil
	})
}

const listDocumentsSQL = `
SELECT id, content, embedding, metadata
FROM documents
ORDER BY seq
OFFSET $1 LIMIT $2`

func (r *DocumentRepository) ListDocuments(ctx context.Context, offset, limit int) ([]*core.DocumentRecord, error) {
	if offset < 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	rows, err := r.pool.Query(ctx, listDocumentsSQL, offset, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.DocumentRecord, error) {
		var (
			record    core.DocumentRecord
			embedding *pgvector.Vector
		)
		if err := row.Scan(&record.ID, &record.Content, &embedding, &record.Metadata); err != nil {
			return nil, err
		}
		if embedding != nil {
			record.Embedding = embedding.Slice()
		}
		return &record, nil
	})
}

func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count)
	return count, err
}

func metadataOrEmpty(m core.Metadata) core.Metadata {
	if m == nil {
		return core.Metadata{}
	}
	return m
}
