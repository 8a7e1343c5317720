package domain

import "time"

// Vector kinds for the six named embedding views a memory record carries.
// Each is produced by internal/embedding from the same underlying model
// with a kind-specific text framing (see SPEC_FULL.md Open Question 2).
const (
	VectorKindContent      = "content"
	VectorKindEmotion      = "emotion"
	VectorKindSemantic     = "semantic"
	VectorKindRelationship = "relationship"
	VectorKindContext      = "context"
	VectorKindPersonality  = "personality"
)

// AllVectorKinds lists every named vector a fully-populated record carries.
var AllVectorKinds = []string{
	VectorKindContent,
	VectorKindEmotion,
	VectorKindSemantic,
	VectorKindRelationship,
	VectorKindContext,
	VectorKindPersonality,
}

// MemoryRecord is a single enriched turn persisted to the vector store (C3).
type MemoryRecord struct {
	ID                 string             `json:"id"`
	PersonaID          string             `json:"persona_id"`
	UserID             string             `json:"user_id"`
	Content            string             `json:"content"`
	Vectors            map[string][]float32 `json:"-"`
	Importance         int                `json:"importance"`
	EmotionalIntensity int                `json:"emotional_intensity"`
	EmotionCategory    string             `json:"emotion_category"`
	SentimentLabel     string             `json:"sentiment_label"`
	HappenedAt         time.Time          `json:"happened_at"`
	CreatedAt          time.Time          `json:"created_at"`
}

// ScoredMemory pairs a retrieved record with its similarity score.
type ScoredMemory struct {
	Record MemoryRecord
	Score  float32
}
