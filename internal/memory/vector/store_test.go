package vector

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

func TestGenerateMemoryID_Deterministic(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := GenerateMemoryID("persona-1", "user-1", "hello", at)
	b := GenerateMemoryID("persona-1", "user-1", "hello", at)
	if a != b {
		t.Errorf("GenerateMemoryID() not deterministic: %q != %q", a, b)
	}
}

func TestGenerateMemoryID_DifferentContentDifferentID(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := GenerateMemoryID("persona-1", "user-1", "hello", at)
	b := GenerateMemoryID("persona-1", "user-1", "goodbye", at)
	if a == b {
		t.Error("GenerateMemoryID() produced the same id for different content")
	}
}

func TestGenerateMemoryID_DifferentUserDifferentID(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := GenerateMemoryID("persona-1", "user-1", "hello", at)
	b := GenerateMemoryID("persona-1", "user-2", "hello", at)
	if a == b {
		t.Error("GenerateMemoryID() produced the same id for different users")
	}
}

func TestPointID_DeterministicValidUUID(t *testing.T) {
	memoryID := "abc123"
	a := pointID(memoryID)
	b := pointID(memoryID)
	if a != b {
		t.Fatalf("pointID() not deterministic: %q != %q", a, b)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("pointID() = %q, not a valid UUID: %v", a, err)
	}
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
	}{
		{"localhost:6334", "localhost", 6334},
		{"qdrant.internal:1234", "qdrant.internal", 1234},
		{"localhost", "localhost", 6334},
		{"localhost:notaport", "localhost", 6334},
	}
	for _, tt := range tests {
		host, port := splitAddr(tt.addr)
		if host != tt.wantHost || port != tt.wantPort {
			t.Errorf("splitAddr(%q) = (%q, %d), want (%q, %d)", tt.addr, host, port, tt.wantHost, tt.wantPort)
		}
	}
}

func TestRecordFromPayload_Empty(t *testing.T) {
	rec := recordFromPayload(nil, qdrant.NewIDUUID("11111111-1111-1111-1111-111111111111"))
	if rec.ID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("recordFromPayload(nil) ID = %q, want point UUID fallback", rec.ID)
	}
}

func TestRecordFromPayload_Full(t *testing.T) {
	happenedAt := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	payload := qdrant.NewValueMap(map[string]any{
		"_original_id":    "mem-123",
		"persona_id":      "persona-1",
		"user_id":         "user-1",
		"content":         "hello there",
		"primary_emotion": "joy",
		"sentiment_label": "positive",
		"happened_at":     happenedAt.Format(time.RFC3339),
	})

	rec := recordFromPayload(payload, qdrant.NewIDUUID("22222222-2222-2222-2222-222222222222"))

	if rec.ID != "mem-123" {
		t.Errorf("recordFromPayload() ID = %q, want %q (original id overrides point uuid)", rec.ID, "mem-123")
	}
	if rec.PersonaID != "persona-1" || rec.UserID != "user-1" {
		t.Errorf("recordFromPayload() PersonaID/UserID = %q/%q, want persona-1/user-1", rec.PersonaID, rec.UserID)
	}
	if rec.Content != "hello there" {
		t.Errorf("recordFromPayload() Content = %q", rec.Content)
	}
	if rec.EmotionCategory != "joy" || rec.SentimentLabel != "positive" {
		t.Errorf("recordFromPayload() EmotionCategory/SentimentLabel = %q/%q", rec.EmotionCategory, rec.SentimentLabel)
	}
	if !rec.HappenedAt.Equal(happenedAt) {
		t.Errorf("recordFromPayload() HappenedAt = %v, want %v", rec.HappenedAt, happenedAt)
	}
}

func TestRecordFromPayload_MalformedTimestampIgnored(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		"happened_at": "not-a-timestamp",
	})
	rec := recordFromPayload(payload, nil)
	if !rec.HappenedAt.IsZero() {
		t.Errorf("recordFromPayload() HappenedAt = %v, want zero value on parse failure", rec.HappenedAt)
	}
}
