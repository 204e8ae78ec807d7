package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

type IngestionRepository struct {
	pool *pgxpool.Pool
}

var _ storage.IngestionRepository = (*IngestionRepository)(nil)

func (r *IngestionRepository) AddIngestion(ctx context.Context, record *core.IngestionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.IngestedAt.IsZero() {
		record.IngestedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pdf_ingestion (id, filename, ingested_at, metadata) VALUES ($1, $2, $3, $4)`,
		record.ID, record.Filename, record.IngestedAt.UTC(), record.Metadata,
	)
	return err
}

func (r *IngestionRepository) ListIngestions(ctx context.Context, limit int) ([]*core.IngestionRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, filename, ingested_at, metadata FROM pdf_ingestion ORDER BY ingested_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.IngestionRecord, error) {
		var record core.IngestionRecord
		if err := row.Scan(&record.ID, &record.Filename, &record.IngestedAt, &record.Metadata); err != nil {
			return nil, err
		}
		return &record, nil
	})
}
