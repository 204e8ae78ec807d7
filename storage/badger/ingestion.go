package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

type IngestionRepository struct {
	backend *Backend
}

var _ storage.IngestionRepository = (*IngestionRepository)(nil)

func (r *IngestionRepository) AddIngestion(ctx context.Context, record *core.IngestionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.IngestedAt.IsZero() {
		record.IngestedAt = time.Now().UTC()
	}
	value, err := storage.MarshalIngestion(record)
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeIngestionKey(record.IngestedAt, record.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListIngestions walks the time-ordered keys backwards.
func (r *IngestionRepository) ListIngestions(ctx context.Context, limit int) ([]*core.IngestionRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var records []*core.IngestionRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(ingestionPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// reverse iteration must start past the last key of the prefix
		seek := append([]byte(ingestionPrefix), 0xFF)
		for iter.Seek(seek); iter.Valid() && len(records) < limit; iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				record, err := storage.UnmarshalIngestion(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return records, err
}
