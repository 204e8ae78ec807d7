package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

type HistoryRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

func newHistoryRepository(backend *Backend) (*HistoryRepository, error) {
	seq, err := backend.GetSequence(historySeq)
	if err != nil {
		return nil, err
	}
	return &HistoryRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

func (r *HistoryRepository) close() error {
	return r.seq.Release()
}

func (r *HistoryRepository) AppendTurn(ctx context.Context, turn *core.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	seq, err := r.seq.Next()
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeHistoryKey(turn.ConversationID, turn.CreatedAt, seq)
		if err := tx.Set(key, storage.MarshalTurn(turn)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetTurns iterates the conversation's key range, which is already in
// created_at order.
func (r *HistoryRepository) GetTurns(ctx context.Context, conversationID uuid.UUID) ([]*core.ConversationTurn, error) {
	var turns []*core.ConversationTurn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeConversationPrefix(conversationID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				turn, err := storage.UnmarshalTurn(val)
				if err != nil {
					return err
				}
				turns = append(turns, turn)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return turns, err
}
