package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// TurnRepository persists chat turns, completing what the teacher left as a
// stub (message_repo.go had empty Create/ListBySessionID bodies).
type TurnRepository interface {
	Create(ctx context.Context, turn domain.Turn) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error)
}

type PgTurnRepository struct {
	pool *pgxpool.Pool
}

func NewPgTurnRepository(pool *pgxpool.Pool) *PgTurnRepository {
	return &PgTurnRepository{pool: pool}
}

func (r *PgTurnRepository) Create(ctx context.Context, turn domain.Turn) error {
	const query = `
		INSERT INTO turns (id, conversation_id, persona_id, user_id, role, content, attribution_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		turn.ID,
		turn.ConversationID,
		turn.PersonaID,
		turn.UserID,
		turn.Role,
		turn.Content,
		nullableString(turn.AttributionID),
		turn.CreatedAt,
	)
	return err
}

func (r *PgTurnRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, conversation_id, persona_id, user_id, role, content, COALESCE(attribution_id, ''), created_at
		FROM turns
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.PersonaID, &t.UserID, &t.Role, &t.Content, &t.AttributionID, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
