package domain

import "time"

// AttributionClaims is the payload signed by internal/attribution (C11) to
// give each turn a tamper-resistant, single-use role attribution.
type AttributionClaims struct {
	TurnID    string    `json:"turn_id"`
	PersonaID string    `json:"persona_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
