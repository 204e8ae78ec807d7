package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

type DocumentRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

func newDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	seq, err := backend.GetSequence(documentSeq)
	if err != nil {
		return nil, err
	}
	return &DocumentRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

func (r *DocumentRepository) close() error {
	return r.seq.Release()
}

// AddDocuments writes all records in a single transaction.
func (r *DocumentRepository) AddDocuments(ctx context.Context, records ...*core.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if record.ID == uuid.Nil {
				record.ID = uuid.New()
			}
			seq, err := r.seq.Next()
			if err != nil {
				return err
			}
			value, err := storage.MarshalDocument(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeDocumentKey(seq), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, k int) ([]*core.RetrievedDoc, error) {
	return r.backend.FindSimilar(ctx, vector, k)
}

// ListDocuments returns documents in insertion order.
func (r *DocumentRepository) ListDocuments(ctx context.Context, offset, limit int) ([]*core.DocumentRecord, error) {
	if offset < 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var records []*core.DocumentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		skipped := 0
		for iter.Rewind(); iter.Valid() && len(records) < limit; iter.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			err := iter.Item().Value(func(val []byte) error {
				record, err := storage.UnmarshalDocument(val)
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

func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
