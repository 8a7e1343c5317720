package domain

import "time"

// Fact is a discrete piece of information extracted about a user within a
// persona's scope, upserted by category (C4 facts table, §4.4's upsert_fact).
type Fact struct {
	ID         string    `json:"id"`
	PersonaID  string    `json:"persona_id"`
	UserID     string    `json:"user_id"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
