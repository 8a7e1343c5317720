package domain

import "time"

// RelationshipState is the 5-scalar relationship vector kept per
// (persona_id, user_id) pair in the relational store (C4).
type RelationshipState struct {
	PersonaID          string    `json:"persona_id"`
	UserID             string    `json:"user_id"`
	Trust              float64   `json:"trust"`
	Affection          float64   `json:"affection"`
	Attunement         float64   `json:"attunement"`
	InteractionQuality float64   `json:"interaction_quality"`
	Comfort            float64   `json:"comfort"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RelationshipDelta carries bounded per-turn adjustments to be applied
// through Clamp01Add. Fields left at zero have no effect.
type RelationshipDelta struct {
	Trust              float64
	Affection          float64
	Attunement         float64
	InteractionQuality float64
	Comfort            float64
}

// Clamp01Add adds delta to value and clamps the result to [0, 1].
func Clamp01Add(value, delta float64) float64 {
	v := value + delta
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Apply folds a RelationshipDelta into the state, clamping every scalar.
func (s RelationshipState) Apply(d RelationshipDelta) RelationshipState {
	s.Trust = Clamp01Add(s.Trust, d.Trust)
	s.Affection = Clamp01Add(s.Affection, d.Affection)
	s.Attunement = Clamp01Add(s.Attunement, d.Attunement)
	s.InteractionQuality = Clamp01Add(s.InteractionQuality, d.InteractionQuality)
	s.Comfort = Clamp01Add(s.Comfort, d.Comfort)
	return s
}

// NeutralRelationshipState is the default for a first-ever interaction.
func NeutralRelationshipState(personaID, userID string) RelationshipState {
	return RelationshipState{
		PersonaID:          personaID,
		UserID:             userID,
		Trust:              0.5,
		Affection:          0.5,
		Attunement:         0.5,
		InteractionQuality: 0.5,
		Comfort:            0.5,
	}
}
