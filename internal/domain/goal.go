package domain

// Goal is the persona's current per-turn agenda, surfaced to the prompt
// composer (C10) as a hidden directive the persona pursues but never states.
type Goal struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"` // "active", "completed"
	Trigger     string `json:"trigger"`
}
