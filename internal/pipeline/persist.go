package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clone-llm/internal/analysis"
	"clone-llm/internal/domain"
	"clone-llm/internal/embedding"
	"clone-llm/internal/flow"
	"clone-llm/internal/memory/timeseries"
	"clone-llm/internal/memory/vector"
	"clone-llm/internal/repository"
)

// PersistInput carries everything one completed turn needs written across
// the three stores (§4.13).
type PersistInput struct {
	ConversationID string
	PersonaID      string
	UserID         string
	SessionID      string

	UserTurnID      string
	UserContent     string
	UserAttribution string
	HappenedAt      time.Time

	ReplyTurnID      string
	ReplyContent     string
	ReplyAttribution string

	Emotion      analysis.Result
	Flow         flow.Flow
	Trajectory   flow.Trajectory
	Relationship domain.RelationshipState

	// Fact is set when ExtractFact found a first-person disclosure in the
	// user's message this turn; nil when there was nothing to extract.
	Fact *domain.Fact
}

// Persistor writes one completed turn to the vector, relational, and
// time-series stores (C13). Grounded on the teacher's
// NarrativeService.InjectMemory (embed-then-upsert) and
// messageRepo.Create/traitRepo.Upsert idempotent-upsert idiom.
type Persistor struct {
	embeddings    *embedding.Provider
	vectors       *vector.Store
	turns         repository.TurnRepository
	relationships repository.RelationshipRepository
	facts         repository.FactRepository
	timeseries    *timeseries.Store
	logger        *zap.Logger
}

func NewPersistor(
	embeddings *embedding.Provider,
	vectors *vector.Store,
	turns repository.TurnRepository,
	relationships repository.RelationshipRepository,
	facts repository.FactRepository,
	ts *timeseries.Store,
	logger *zap.Logger,
) *Persistor {
	return &Persistor{
		embeddings:    embeddings,
		vectors:       vectors,
		turns:         turns,
		relationships: relationships,
		facts:         facts,
		timeseries:    ts,
		logger:        logger,
	}
}

// Persist runs the full persist procedure. The turn inserts and the
// relationship upsert return an error on failure; the vector upsert, the
// fact upsert and the time-series writes never do — their failures are
// logged and discarded (§4.5 for time-series).
func (p *Persistor) Persist(ctx context.Context, in PersistInput) error {
	memoryID := vector.GenerateMemoryID(in.PersonaID, in.UserID, in.UserContent, in.HappenedAt)

	vectors, contentOK := p.embedAll(ctx, in.UserContent)
	if contentOK {
		record := domain.MemoryRecord{
			ID:                 memoryID,
			PersonaID:          in.PersonaID,
			UserID:             in.UserID,
			Content:            in.UserContent,
			Vectors:            vectors,
			Importance:         importanceFromIntensity(in.Emotion.Intensity),
			EmotionalIntensity: int(in.Emotion.Intensity * 100),
			EmotionCategory:    in.Emotion.PrimaryEmotion,
			SentimentLabel:     sentimentFromEmotion(in.Emotion.PrimaryEmotion),
			HappenedAt:         in.HappenedAt,
			CreatedAt:          time.Now().UTC(),
		}
		if err := p.vectors.Upsert(ctx, record); err != nil {
			p.logger.Warn("persist: vector upsert failed", zap.Error(err), zap.String("memory_id", memoryID))
		}
	} else {
		p.logger.Warn("persist: content vector missing, skipping vector upsert", zap.String("memory_id", memoryID))
	}

	userTurn := domain.Turn{
		ID:             in.UserTurnID,
		ConversationID: in.ConversationID,
		PersonaID:      in.PersonaID,
		UserID:         in.UserID,
		Role:           domain.RoleUser,
		Content:        in.UserContent,
		AttributionID:  in.UserAttribution,
		CreatedAt:      in.HappenedAt,
	}
	if err := p.turns.Create(ctx, userTurn); err != nil {
		return fmt.Errorf("%w: insert user turn: %v", ErrPersistenceFailure, err)
	}

	replyTurn := domain.Turn{
		ID:             in.ReplyTurnID,
		ConversationID: in.ConversationID,
		PersonaID:      in.PersonaID,
		UserID:         in.UserID,
		Role:           domain.RolePersona,
		Content:        in.ReplyContent,
		AttributionID:  in.ReplyAttribution,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.turns.Create(ctx, replyTurn); err != nil {
		return fmt.Errorf("%w: insert reply turn: %v", ErrPersistenceFailure, err)
	}

	delta := ComputeRelationshipDelta(in.Emotion, in.Flow)
	updated := in.Relationship.Apply(delta)
	updated.PersonaID = in.PersonaID
	updated.UserID = in.UserID
	updated.UpdatedAt = time.Now().UTC()
	if err := p.relationships.Upsert(ctx, updated); err != nil {
		return fmt.Errorf("%w: upsert relationship state: %v", ErrPersistenceFailure, err)
	}

	if in.Fact != nil && p.facts != nil {
		if err := p.facts.Upsert(ctx, *in.Fact); err != nil {
			p.logger.Warn("persist: fact upsert failed", zap.Error(err), zap.String("category", in.Fact.Category))
		}
	}

	p.writeTimeSeries(ctx, in, updated)

	return nil
}

// embedAll computes the six named vectors, dropping any dimension that
// fails. The content vector is required: if it fails, the caller skips the
// vector-store upsert entirely rather than writing a partial record (§4.3).
func (p *Persistor) embedAll(ctx context.Context, text string) (map[string][]float32, bool) {
	out := make(map[string][]float32, len(domain.AllVectorKinds))
	for _, kind := range domain.AllVectorKinds {
		vec, err := p.embeddings.Embed(ctx, text, kind)
		if err != nil {
			p.logger.Warn("persist: embed dimension failed", zap.String("kind", kind), zap.Error(err))
			continue
		}
		out[kind] = vec
	}
	_, hasContent := out[domain.VectorKindContent]
	return out, hasContent
}

// ComputeRelationshipDelta implements the Open Question 1 resolution
// (SPEC_FULL.md §9): deterministic, bounded, confidence-gated steps derived
// from the fused emotion/flow signals rather than the generator LLM's own
// self-reported deltas, so the model can never inflate its own relational
// standing through its JSON output.
func ComputeRelationshipDelta(emotion analysis.Result, flw flow.Flow) domain.RelationshipDelta {
	var d domain.RelationshipDelta

	if emotion.Confidence > 0.6 && positiveEmotions[emotion.PrimaryEmotion] {
		d.Trust += 0.02
		d.Affection += 0.015
	}
	if emotion.Confidence > 0.7 {
		switch emotion.PrimaryEmotion {
		case "anger", "fear", "anxiety":
			d.InteractionQuality -= 0.03
			d.Comfort -= 0.02
		}
	}
	d.Attunement += flw.IntimacyDevelopment * 0.05

	return d
}

func (p *Persistor) writeTimeSeries(_ context.Context, in PersistInput, rel domain.RelationshipState) {
	if p.timeseries == nil {
		return
	}
	now := time.Now().UTC()
	// Detached from the request context: these writes are fire-and-forget
	// (§4.5) and must outlive a caller that returns as soon as the reply is
	// handed to the transport.
	ctx := context.Background()

	go p.timeseries.WriteConfidenceEvolution(ctx, timeseries.ConfidenceEvolution{
		PersonaID:           in.PersonaID,
		UserID:              in.UserID,
		UserFactConfidence:  emotionConfidenceOrZero(in.Emotion),
		RelationshipConf:    rel.Trust,
		ContextConfidence:   in.Flow.Confidence,
		EmotionalConfidence: in.Emotion.Confidence,
		OverallConfidence:   (in.Emotion.Confidence + in.Flow.Confidence) / 2,
		At:                  now,
	})

	go p.timeseries.WriteRelationshipProgression(ctx, timeseries.RelationshipProgression{
		PersonaID:          in.PersonaID,
		UserID:             in.UserID,
		Trust:              rel.Trust,
		Affection:          rel.Affection,
		Attunement:         rel.Attunement,
		InteractionQuality: rel.InteractionQuality,
		Comfort:            rel.Comfort,
		At:                 now,
	})

	go p.timeseries.WriteConversationQuality(ctx, timeseries.ConversationQuality{
		PersonaID:          in.PersonaID,
		UserID:             in.UserID,
		Engagement:         in.Flow.ContinuityScore,
		Satisfaction:       rel.InteractionQuality,
		NaturalFlow:        in.Flow.ContinuityScore,
		EmotionalResonance: in.Emotion.Intensity,
		TopicRelevance:     in.Flow.ContinuityScore,
		At:                 now,
	})

	go p.timeseries.WriteEmotionSample(ctx, timeseries.EmotionSample{
		PersonaID:  in.PersonaID,
		UserID:     in.UserID,
		IsBot:      false,
		SessionID:  in.SessionID,
		Emotion:    in.Emotion.PrimaryEmotion,
		Intensity:  in.Emotion.Intensity,
		Confidence: in.Emotion.Confidence,
		At:         in.HappenedAt,
	})

	go p.timeseries.WriteEmotionSample(ctx, timeseries.EmotionSample{
		PersonaID:  in.PersonaID,
		UserID:     in.UserID,
		IsBot:      true,
		SessionID:  in.SessionID,
		Emotion:    in.Emotion.PrimaryEmotion,
		Intensity:  in.Emotion.Intensity * 0.5,
		Confidence: in.Emotion.Confidence,
		At:         now,
	})
}

func emotionConfidenceOrZero(r analysis.Result) float64 {
	if r.PrimaryEmotion == "" {
		return 0
	}
	return r.Confidence
}

func importanceFromIntensity(intensity float64) int {
	v := int(intensity*9) + 1
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func sentimentFromEmotion(emotion string) string {
	v, ok := analysis.Valence[emotion]
	switch {
	case !ok:
		return "neutral"
	case v > 0.3:
		return "positive"
	case v < -0.3:
		return "negative"
	default:
		return "neutral"
	}
}
