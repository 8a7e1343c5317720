package timeseries

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

// Store is the append-only time-series sink (C5). Every write is
// best-effort: callers never propagate a Store error to the user turn, they
// just log and move on (§4.5). Grounded on the teacher-adjacent
// clickhouseTokenMetrics client in intelligencedev-manifold's
// metrics_clickhouse.go (DSN parsing, Ping-on-connect, bounded query timeout).
type Store struct {
	conn    clickhouse.Conn
	timeout time.Duration
	logger  *zap.Logger
}

// NewStore returns nil, nil if addr is empty: C5 is disabled when not
// configured, per §3's configuration table.
func NewStore(ctx context.Context, addr, database, user, password string, logger *zap.Logger) (*Store, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return &Store{conn: conn, timeout: 5 * time.Second, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// ConfidenceEvolution records the five confidence scalars the Orchestrator
// derives for one turn.
type ConfidenceEvolution struct {
	PersonaID            string
	UserID               string
	UserFactConfidence   float64
	RelationshipConf     float64
	ContextConfidence    float64
	EmotionalConfidence  float64
	OverallConfidence    float64
	At                   time.Time
}

func (s *Store) WriteConfidenceEvolution(ctx context.Context, e ConfidenceEvolution) bool {
	return s.exec(ctx, `
		INSERT INTO confidence_evolution
		(persona_id, user_id, user_fact_confidence, relationship_confidence, context_confidence, emotional_confidence, overall_confidence, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PersonaID, e.UserID, e.UserFactConfidence, e.RelationshipConf, e.ContextConfidence, e.EmotionalConfidence, e.OverallConfidence, e.At,
	)
}

// RelationshipProgression records the five relationship scalars after a turn.
type RelationshipProgression struct {
	PersonaID          string
	UserID             string
	Trust              float64
	Affection          float64
	Attunement         float64
	InteractionQuality float64
	Comfort            float64
	At                 time.Time
}

func (s *Store) WriteRelationshipProgression(ctx context.Context, p RelationshipProgression) bool {
	return s.exec(ctx, `
		INSERT INTO relationship_progression
		(persona_id, user_id, trust, affection, attunement, interaction_quality, comfort, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PersonaID, p.UserID, p.Trust, p.Affection, p.Attunement, p.InteractionQuality, p.Comfort, p.At,
	)
}

// ConversationQuality records per-turn engagement/quality signals, with
// optional user feedback fields.
type ConversationQuality struct {
	PersonaID          string
	UserID             string
	Engagement         float64
	Satisfaction       float64
	NaturalFlow        float64
	EmotionalResonance float64
	TopicRelevance     float64
	UserReactionScore  *float64
	ReactionEmoji      string
	HasUserFeedback    bool
	At                 time.Time
}

func (s *Store) WriteConversationQuality(ctx context.Context, q ConversationQuality) bool {
	var reactionScore any
	if q.UserReactionScore != nil {
		reactionScore = *q.UserReactionScore
	}
	return s.exec(ctx, `
		INSERT INTO conversation_quality
		(persona_id, user_id, engagement, satisfaction, natural_flow, emotional_resonance, topic_relevance, user_reaction_score, reaction_emoji, has_user_feedback, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.PersonaID, q.UserID, q.Engagement, q.Satisfaction, q.NaturalFlow, q.EmotionalResonance, q.TopicRelevance, reactionScore, q.ReactionEmoji, q.HasUserFeedback, q.At,
	)
}

// EmotionSample records one emotion reading tagged as belonging to the bot
// or the user (the `bot` tag in §6's tag set).
type EmotionSample struct {
	PersonaID  string
	UserID     string
	IsBot      bool
	SessionID  string
	Emotion    string
	Intensity  float64
	Confidence float64
	At         time.Time
}

func (s *Store) WriteEmotionSample(ctx context.Context, e EmotionSample) bool {
	table := "user_emotion"
	if e.IsBot {
		table = "bot_emotion"
	}
	return s.exec(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(persona_id, user_id, session_id, emotion, intensity, confidence, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, table),
		e.PersonaID, e.UserID, e.SessionID, e.Emotion, e.Intensity, e.Confidence, e.At,
	)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) bool {
	if s == nil || s.conn == nil {
		return false
	}
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.conn.Exec(execCtx, query, args...); err != nil {
		s.logger.Warn("timeseries write failed", zap.Error(err), zap.String("query", query))
		return false
	}
	return true
}

// EmotionWindow fetches a chronological window of emotion samples for the
// flow/trajectory analyzer (C8).
type EmotionWindow struct {
	Emotion   string
	Intensity float64
	At        time.Time
}

func (s *Store) TrajectoryWindow(ctx context.Context, personaID, userID string, isBot bool, limit int) ([]EmotionWindow, error) {
	if s == nil || s.conn == nil {
		return nil, nil
	}
	table := "user_emotion"
	if isBot {
		table = "bot_emotion"
	}
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.conn.Query(execCtx, fmt.Sprintf(`
		SELECT emotion, intensity, recorded_at
		FROM %s
		WHERE persona_id = ? AND user_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, table), personaID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("trajectory window query: %w", err)
	}
	defer rows.Close()

	var out []EmotionWindow
	for rows.Next() {
		var w EmotionWindow
		if err := rows.Scan(&w.Emotion, &w.Intensity, &w.At); err != nil {
			return nil, fmt.Errorf("scan trajectory row: %w", err)
		}
		out = append(out, w)
	}
	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
