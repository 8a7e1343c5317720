package domain

import "time"

const (
	RoleUser   = "user"
	RolePersona = "persona"
	RoleSystem = "system"
)

// Turn is a single exchanged message, attributed to a role and to its
// speaker's C11 attribution ID (a pseudonym, not a signed token).
type Turn struct {
	ID            string    `json:"id"`
	ConversationID string   `json:"conversation_id"`
	PersonaID     string    `json:"persona_id"`
	UserID        string    `json:"user_id"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	AttributionID string    `json:"attribution_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
