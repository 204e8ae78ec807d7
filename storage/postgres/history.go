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

type HistoryRepository struct {
	pool *pgxpool.Pool
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

func (r *HistoryRepository) AppendTurn(ctx context.Context, turn *core.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_history (conversation_id, question, answer, created_at) VALUES ($1, $2, $3, $4)`,
		turn.ConversationID, turn.Question, turn.Answer, turn.CreatedAt.UTC(),
	)
	return err
}

// GetTurns orders by created_at, then by the serial id for equal timestamps.
func (r *HistoryRepository) GetTurns(ctx context.Context, conversationID uuid.UUID) ([]*core.ConversationTurn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT conversation_id, question, answer, created_at
		 FROM chat_history
		 WHERE conversation_id = $1
		 ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.ConversationTurn, error) {
		var turn core.ConversationTurn
		if err := row.Scan(&turn.ConversationID, &turn.Question, &turn.Answer, &turn.CreatedAt); err != nil {
			return nil, err
		}
		return &turn, nil
	})
}
