package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// FactRepository implements §4.4's upsert_fact/query_facts ops: discrete
// facts extracted about a user within a persona's scope, upserted by
// category, adapted from the teacher's trait upsert-by-key pattern.
type FactRepository interface {
	Upsert(ctx context.Context, fact domain.Fact) error
	FindByPersonaUser(ctx context.Context, personaID, userID string, limit int) ([]domain.Fact, error)
}

type PgFactRepository struct {
	pool *pgxpool.Pool
}

func NewPgFactRepository(pool *pgxpool.Pool) *PgFactRepository {
	return &PgFactRepository{pool: pool}
}

func (r *PgFactRepository) Upsert(ctx context.Context, fact domain.Fact) error {
	const query = `
		INSERT INTO facts (id, persona_id, user_id, category, content, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (persona_id, user_id, category)
		DO UPDATE SET
			content = EXCLUDED.content,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		fact.ID,
		fact.PersonaID,
		fact.UserID,
		fact.Category,
		fact.Content,
		fact.Confidence,
		fact.CreatedAt,
		fact.UpdatedAt,
	)
	return err
}

func (r *PgFactRepository) FindByPersonaUser(ctx context.Context, personaID, userID string, limit int) ([]domain.Fact, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, persona_id, user_id, category, content, confidence, created_at, updated_at
		FROM facts
		WHERE persona_id = $1 AND user_id = $2
		ORDER BY updated_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, personaID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var f domain.Fact
		if err := rows.Scan(&f.ID, &f.PersonaID, &f.UserID, &f.Category, &f.Content, &f.Confidence, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return facts, nil
}
