package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/domain"
)

// RelationshipRepository persists the 5-scalar relationship state per
// (persona_id, user_id), adapted from the teacher's character repository
// (which already carried a 3-scalar relationship vector per character).
type RelationshipRepository interface {
	Get(ctx context.Context, personaID, userID string) (domain.RelationshipState, error)
	Upsert(ctx context.Context, state domain.RelationshipState) error
}

type PgRelationshipRepository struct {
	pool *pgxpool.Pool
}

func NewPgRelationshipRepository(pool *pgxpool.Pool) *PgRelationshipRepository {
	return &PgRelationshipRepository{pool: pool}
}

func (r *PgRelationshipRepository) Get(ctx context.Context, personaID, userID string) (domain.RelationshipState, error) {
	const query = `
		SELECT persona_id, user_id, trust, affection, attunement, interaction_quality, comfort, updated_at
		FROM relationship_state
		WHERE persona_id = $1 AND user_id = $2
	`
	var s domain.RelationshipState
	err := r.pool.QueryRow(ctx, query, personaID, userID).Scan(
		&s.PersonaID, &s.UserID, &s.Trust, &s.Affection, &s.Attunement, &s.InteractionQuality, &s.Comfort, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RelationshipState{}, err
	}
	return s, err
}

func (r *PgRelationshipRepository) Upsert(ctx context.Context, state domain.RelationshipState) error {
	const query = `
		INSERT INTO relationship_state (persona_id, user_id, trust, affection, attunement, interaction_quality, comfort, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (persona_id, user_id)
		DO UPDATE SET
			trust = EXCLUDED.trust,
			affection = EXCLUDED.affection,
			attunement = EXCLUDED.attunement,
			interaction_quality = EXCLUDED.interaction_quality,
			comfort = EXCLUDED.comfort,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		state.PersonaID, state.UserID, state.Trust, state.Affection, state.Attunement, state.InteractionQuality, state.Comfort, state.UpdatedAt,
	)
	return err
}
