package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// ConversationRepository persists conversation snapshots (persona, user,
// channel, topic, last activity). The in-memory boundary manager (C7) does
// not load them back after a restart. Adapted from the
// teacher's session repository (same Create/GetByID shape).
type ConversationRepository interface {
	Upsert(ctx context.Context, session domain.ConversationSession) error
	GetByID(ctx context.Context, id string) (domain.ConversationSession, error)
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Upsert(ctx context.Context, session domain.ConversationSession) error {
	const query = `
		INSERT INTO conversation_sessions (id, persona_id, user_id, channel_id, topic, last_active_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			topic = EXCLUDED.topic,
			last_active_at = EXCLUDED.last_active_at
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID, session.PersonaID, session.UserID, session.ChannelID, session.Topic, session.LastActiveAt, session.CreatedAt,
	)
	return err
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.ConversationSession, error) {
	const query = `
		SELECT id, persona_id, user_id, channel_id, topic, last_active_at, created_at
		FROM conversation_sessions
		WHERE id = $1
	`
	var s domain.ConversationSession
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.PersonaID, &s.UserID, &s.ChannelID, &s.Topic, &s.LastActiveAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ConversationSession{}, err
	}
	return s, err
}
