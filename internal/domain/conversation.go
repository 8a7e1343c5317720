package domain

import "time"

// ConversationSession is the boundary-manager's persisted snapshot of a
// conversation's topic/activity state (C7).
type ConversationSession struct {
	ID             string    `json:"id"`
	PersonaID      string    `json:"persona_id"`
	UserID         string    `json:"user_id"`
	ChannelID      string    `json:"channel_id,omitempty"`
	Topic          string    `json:"topic,omitempty"`
	LastActiveAt   time.Time `json:"last_active_at"`
	CreatedAt      time.Time `json:"created_at"`
}
