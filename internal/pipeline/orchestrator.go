package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clone-llm/internal/analysis"
	"clone-llm/internal/attribution"
	"clone-llm/internal/cache"
	"clone-llm/internal/domain"
	"clone-llm/internal/embedding"
	"clone-llm/internal/flow"
	"clone-llm/internal/llm"
	"clone-llm/internal/memory/vector"
	"clone-llm/internal/persona"
	"clone-llm/internal/prompt"
	"clone-llm/internal/repository"
	"clone-llm/internal/session"
)

const maxInputRunes = 4000

// searchWeights is the retrieval weighting §4.12 step 4 fixes for the
// scatter branch's multi-dimensional vector query.
var searchWeights = map[string]float64{
	domain.VectorKindContent:      0.25,
	domain.VectorKindEmotion:      0.20,
	domain.VectorKindPersonality:  0.20,
	domain.VectorKindRelationship: 0.15,
	domain.VectorKindContext:      0.15,
	domain.VectorKindSemantic:     0.05,
}

const retrievalLimit = 15
const trajectoryWindow = 20

// Inbound is one platform message entering the pipeline before any
// enrichment.
type Inbound struct {
	ConversationID string
	PersonaID      string
	UserID         string
	DisplayName    string
	ChannelID      string
	MessageID      string
	Content        string
	HasAttachment  bool
}

// Orchestrator runs the full scatter-gather enrichment pipeline for one
// inbound message (C12). Grounded on the teacher's CloneService.Chat
// (profile -> traits -> context -> narrative -> emotion -> goal -> prompt ->
// LLM -> persist), re-architected into true concurrent scatter-gather with
// golang.org/x/sync/errgroup and a per-branch soft timeout instead of the
// teacher's strictly sequential calls.
type Orchestrator struct {
	personas      *persona.Loader
	emotion       *analysis.Analyzer
	embeddings    *embedding.Provider
	vectors       *vector.Store
	flowAnalyzer  *flow.Analyzer
	sessions      *session.Manager
	ring          cache.ConversationCache
	lock          cache.ConversationLock
	attribution   *attribution.Manager
	composer      *prompt.Composer
	llmClient     llm.LLMClient
	relationships repository.RelationshipRepository
	facts         repository.FactRepository
	persistor     *Persistor
	logger        *zap.Logger

	branchTimeout  time.Duration
	overallTimeout time.Duration
}

func NewOrchestrator(
	personas *persona.Loader,
	emotion *analysis.Analyzer,
	embeddings *embedding.Provider,
	vectors *vector.Store,
	flowAnalyzer *flow.Analyzer,
	sessions *session.Manager,
	ring cache.ConversationCache,
	lock cache.ConversationLock,
	attributionMgr *attribution.Manager,
	composer *prompt.Composer,
	llmClient llm.LLMClient,
	relationships repository.RelationshipRepository,
	facts repository.FactRepository,
	persistor *Persistor,
	logger *zap.Logger,
	branchTimeout, overallTimeout time.Duration,
) *Orchestrator {
	if branchTimeout <= 0 {
		branchTimeout = 2500 * time.Millisecond
	}
	if overallTimeout <= 0 {
		overallTimeout = 9 * time.Second
	}
	return &Orchestrator{
		personas:       personas,
		emotion:        emotion,
		embeddings:     embeddings,
		vectors:        vectors,
		flowAnalyzer:   flowAnalyzer,
		sessions:       sessions,
		ring:           ring,
		lock:           lock,
		attribution:    attributionMgr,
		composer:       composer,
		llmClient:      llmClient,
		relationships:  relationships,
		facts:          facts,
		persistor:      persistor,
		logger:         logger,
		branchTimeout:  branchTimeout,
		overallTimeout: overallTimeout,
	}
}

// gathered holds the fused output of the scatter step. A branch that timed
// out or failed leaves its field at the zero value rather than aborting the
// turn (§4.12 step 5).
type gathered struct {
	emotion      analysis.Result
	memories     []domain.ScoredMemory
	recent       []cache.Entry
	flowResult   flow.Flow
	trajectory   flow.Trajectory
}

// Handle runs one inbound message through the full pipeline and returns the
// persona's in-character reply.
func (o *Orchestrator) Handle(ctx context.Context, in Inbound) (string, error) {
	text, err := validateInput(in.Content)
	if err != nil {
		return "", err
	}
	in.Content = text

	p, ok := o.personas.Get(in.PersonaID)
	if !ok {
		return "", fmt.Errorf("%w: unknown persona %q", ErrInvalid, in.PersonaID)
	}

	ctx, cancel := context.WithTimeout(ctx, o.overallTimeout)
	defer cancel()

	release, err := o.lock.Acquire(ctx, in.ConversationID, o.overallTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: acquire conversation lock: %v", ErrOverloaded, err)
	}
	defer release()

	now := time.Now().UTC()

	// Step 3: boundary/topic bookkeeping and short-term cache append. Not
	// scattered: both are in-process and effectively instantaneous.
	convo := o.sessions.ProcessMessage(in.UserID, in.ChannelID, in.MessageID, in.Content, now)
	o.ring.Append(in.ChannelID, cache.Entry{
		Content:    in.Content,
		AuthorID:   in.UserID,
		AuthorName: in.DisplayName,
		Timestamp:  now,
		IsBot:      false,
		Source:     cache.SourcePlatform,
	})

	rm := o.attribution.ToRoleMessage(attribution.PlatformMessage{
		UserID:      in.UserID,
		DisplayName: in.DisplayName,
		Content:     in.Content,
		CreatedAt:   now,
	}, in.ConversationID, "")
	if validation := o.attribution.Validate(rm); !validation.Valid {
		return "", fmt.Errorf("%w: %v", ErrSpoofing, validation.Errors)
	} else if validation.SecurityLevel == attribution.SecuritySuspicious {
		o.logger.Warn("pipeline: suspicious content passed through", zap.String("user_id", in.UserID))
	}

	// Step 4/5: scatter-gather enrichment branches, each bounded by its own
	// soft timeout. Every closure swallows its own error into a logged
	// warning and leaves its output field at the zero value, so one slow or
	// failing branch never fails the group (§5's concurrency contract).
	g := gathered{}
	eg, _ := errgroup.WithContext(ctx)

	eg.Go(func() error {
		recentText := renderRecentText(o.ring.GetUserContext(in.ChannelID, in.UserID, retrievalLimit, in.MessageID))
		bctx, cancel := context.WithTimeout(ctx, o.branchTimeout)
		defer cancel()
		g.emotion = o.emotion.Analyze(bctx, in.UserID, in.Content, recentText)
		return nil
	})

	eg.Go(func() error {
		bctx, cancel := context.WithTimeout(ctx, o.branchTimeout)
		defer cancel()
		dims := o.embedQueryDims(bctx, in.Content)
		hits, err := o.vectors.SearchByDimensions(bctx, in.PersonaID, in.UserID, dims, searchWeights, retrievalLimit)
		if err != nil {
			o.logger.Warn("pipeline: vector retrieval branch failed", zap.Error(err))
			return nil
		}
		g.memories = hits
		return nil
	})

	eg.Go(func() error {
		entries := o.ring.GetUserContext(in.ChannelID, in.UserID, retrievalLimit, in.MessageID)
		if len(entries) == 0 {
			// C6 cache miss (cold start, eviction, or a new channel for a
			// known user): fall back to C3's scroll_recent so the
			// composer's history section isn't left with no record source
			// at all (§4.3).
			bctx, cancel := context.WithTimeout(ctx, o.branchTimeout)
			defer cancel()
			records, err := o.vectors.ScrollRecent(bctx, in.PersonaID, in.UserID, retrievalLimit, time.Time{})
			if err != nil {
				o.logger.Warn("pipeline: recent-history branch: cache miss and scroll_recent fallback failed", zap.Error(err))
			} else {
				entries = memoriesToEntries(records)
			}
		}
		g.recent = entries
		return nil
	})

	eg.Go(func() error {
		bctx, cancel := context.WithTimeout(ctx, o.branchTimeout)
		defer cancel()
		dims := o.embedQueryDims(bctx, in.Content)
		g.flowResult = o.flowAnalyzer.Flow(bctx, in.PersonaID, in.UserID, in.Content, dims)
		g.trajectory = o.flowAnalyzer.Trajectory(bctx, in.PersonaID, in.UserID, trajectoryWindow)
		return nil
	})

	_ = eg.Wait() // branches never return a non-nil error; this only honors ctx

	goal := DetermineGoal(p, o.currentRelationship(ctx, in.PersonaID, in.UserID), g.emotion, g.flowResult)
	p.CurrentGoal = &goal

	signals := prompt.Signals{Emotion: g.emotion, Flow: g.flowResult, Trajectory: g.trajectory}
	history := o.buildHistory(g.recent, in.ConversationID, in.PersonaID)
	relationship := o.currentRelationship(ctx, in.PersonaID, in.UserID)
	facts := o.knownFacts(ctx, in.PersonaID, in.UserID)

	messages := o.composer.Compose(p, prompt.Inbound{Text: in.Content, HasAttachment: in.HasAttachment}, signals, g.memories, facts, history, relationship, convo.ContextSummary)

	reply, err := o.generate(ctx, messages)
	if err != nil {
		o.logger.Warn("pipeline: generation failed, using in-character fallback", zap.Error(err))
		reply = inCharacterFallback(p)
	}
	reply = prompt.StripPersonaPrefix(p.Name, reply)

	o.ring.Append(in.ChannelID, cache.Entry{
		Content:   reply,
		AuthorID:  in.PersonaID,
		Timestamp: time.Now().UTC(),
		IsBot:     true,
		Source:    cache.SourcePlatform,
	})

	if ctx.Err() != nil {
		// Cancellation after this point skips persistence and leaves the
		// recent-message cache as already appended (§4.12 concurrency
		// contract: cancellation never touches C6 again, never writes C3/C4).
		return reply, nil
	}

	userAttribution := o.attribution.AttributionID(in.UserID, in.ConversationID, in.DisplayName, false)
	replyAttribution := o.attribution.AttributionID(in.PersonaID, in.ConversationID, p.Name, true)

	var extractedFact *domain.Fact
	if fact, ok := ExtractFact(in.PersonaID, in.UserID, in.Content, now); ok {
		extractedFact = &fact
	}

	err = o.persistor.Persist(ctx, PersistInput{
		ConversationID:   in.ConversationID,
		PersonaID:        in.PersonaID,
		UserID:           in.UserID,
		SessionID:        in.ChannelID,
		UserTurnID:       uuid.NewString(),
		UserContent:      in.Content,
		UserAttribution:  userAttribution,
		HappenedAt:       now,
		ReplyTurnID:      uuid.NewString(),
		ReplyContent:     reply,
		ReplyAttribution: replyAttribution,
		Emotion:          g.emotion,
		Flow:             g.flowResult,
		Trajectory:       g.trajectory,
		Relationship:     relationship,
		Fact:             extractedFact,
	})
	if err != nil {
		o.logger.Error("pipeline: persist failed", zap.Error(err))
	}

	return reply, nil
}

// knownFacts fetches C4's durable facts for the composer's "PREVIOUS
// INTERACTIONS AND FACTS" section. A lookup failure is non-fatal: the
// composer simply falls back to aged vector memories for that section.
func (o *Orchestrator) knownFacts(ctx context.Context, personaID, userID string) []domain.Fact {
	if o.facts == nil {
		return nil
	}
	facts, err := o.facts.FindByPersonaUser(ctx, personaID, userID, retrievalLimit)
	if err != nil {
		o.logger.Warn("pipeline: fact lookup failed", zap.Error(err))
		return nil
	}
	return facts
}

func (o *Orchestrator) currentRelationship(ctx context.Context, personaID, userID string) domain.RelationshipState {
	state, err := o.relationships.Get(ctx, personaID, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			o.logger.Warn("pipeline: relationship lookup failed", zap.Error(err))
		}
		return domain.NeutralRelationshipState(personaID, userID)
	}
	return state
}

// generate invokes the LLM with at most one retry, per §4.12 step 8.
func (o *Orchestrator) generate(ctx context.Context, messages []prompt.Message) (string, error) {
	chat := make([]llm.ChatMessage, len(messages))
	for i, m := range messages {
		chat[i] = llm.ChatMessage{Role: toLLMRole(m.Role), Content: m.Content}
	}

	raw, err := o.llmClient.GenerateChat(ctx, chat)
	if err != nil {
		raw, err = o.llmClient.GenerateChat(ctx, chat)
		if err != nil {
			return "", fmt.Errorf("%w: llm generate: %v", ErrUnavailable, err)
		}
	}

	resp, ok := prompt.ParseLLMResponseSafe(raw)
	if !ok || strings.TrimSpace(resp.PublicResponse) == "" {
		return "", fmt.Errorf("%w: empty public_response after parse", ErrInvalid)
	}
	return resp.PublicResponse, nil
}

// embedQueryDims computes every named query vector for text, tolerating
// per-kind failures by omitting that dimension from the weighted search
// rather than failing the whole branch.
func (o *Orchestrator) embedQueryDims(ctx context.Context, text string) map[string][]float32 {
	out := make(map[string][]float32, len(domain.AllVectorKinds))
	for _, kind := range domain.AllVectorKinds {
		vec, err := o.embeddings.Embed(ctx, text, kind)
		if err != nil {
			continue
		}
		out[kind] = vec
	}
	return out
}

func inCharacterFallback(p domain.Persona) string {
	return "Sorry, give me just a second, I got a little lost in thought."
}

// buildHistory runs each cached entry through C11's attribution pipeline
// instead of mapping cache.Entry straight to a role: ToRoleMessage attributes
// the speaker, Validate drops anything that spoofs the assistant role (and
// warns on suspicious content), and ToLLMFormat produces LLM-vocabulary
// roles with the "[DisplayName]: " prefix applied once the channel has more
// than one distinct human speaker (§4.10.3/§4.11.4).
func (o *Orchestrator) buildHistory(entries []cache.Entry, conversationID, botUserID string) []prompt.HistoryMessage {
	roleMessages := make([]attribution.RoleMessage, 0, len(entries))
	timestamps := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		// e.IsBot is a claim carried on the cached entry, not a verified
		// fact: a history source an attacker controls could set it without
		// the author actually being botUserID. Only the identity match is
		// authoritative: a claimed-bot entry that doesn't verify is a
		// spoofing attempt and is dropped outright rather than trusted.
		verifiedBot := e.AuthorID == botUserID
		if e.IsBot && !verifiedBot {
			o.logger.Warn("pipeline: dropped history entry claiming bot identity without matching author", zap.String("author_id", e.AuthorID))
			continue
		}

		rm := o.attribution.ToRoleMessage(attribution.PlatformMessage{
			UserID:      e.AuthorID,
			DisplayName: e.AuthorName,
			IsBot:       verifiedBot,
			Content:     e.Content,
			CreatedAt:   e.Timestamp,
		}, conversationID, botUserID)

		validation := o.attribution.Validate(rm)
		if !validation.Valid {
			o.logger.Warn("pipeline: dropped spoofed history entry", zap.String("author_id", e.AuthorID), zap.Strings("errors", validation.Errors))
			continue
		}
		if validation.SecurityLevel == attribution.SecuritySuspicious {
			o.logger.Warn("pipeline: suspicious history entry retained", zap.String("author_id", e.AuthorID))
		}
		roleMessages = append(roleMessages, rm)
		timestamps = append(timestamps, e.Timestamp)
	}

	llmMessages := attribution.ToLLMFormat(roleMessages, true)
	out := make([]prompt.HistoryMessage, len(llmMessages))
	for i, lm := range llmMessages {
		out[i] = prompt.HistoryMessage{Role: lm.Role, Content: lm.Content, CreatedAt: timestamps[i]}
	}
	return out
}

// toLLMRole maps a storage-side role to the chat-completions vocabulary. The
// orchestrator's own history path already emits attribution.LLMRole* values;
// this only guards the boundary against domain.RolePersona reaching a real
// provider through some other path.
func toLLMRole(role string) string {
	if role == domain.RolePersona {
		return attribution.LLMRoleAssistant
	}
	return role
}

// memoriesToEntries adapts C3 records recovered via scroll_recent into the
// cache.Entry shape the history/recent-text paths already know how to
// render, reversing ScrollRecent's newest-first order into the
// chronological (oldest-first) order the ring returns.
func memoriesToEntries(records []domain.MemoryRecord) []cache.Entry {
	out := make([]cache.Entry, len(records))
	for i, r := range records {
		out[len(records)-1-i] = cache.Entry{
			Content:   r.Content,
			AuthorID:  r.UserID,
			Timestamp: r.HappenedAt,
			IsBot:     false,
			Source:    cache.SourceVector,
		}
	}
	return out
}

func renderRecentText(entries []cache.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func validateInput(raw string) (string, error) {
	stripped := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalid)
	}
	if len([]rune(stripped)) > maxInputRunes {
		r := []rune(stripped)
		stripped = string(r[:maxInputRunes])
	}
	return stripped, nil
}
