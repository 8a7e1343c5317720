package prompt

import (
	"fmt"
	"strings"
	"time"

	"clone-llm/internal/analysis"
	"clone-llm/internal/domain"
	"clone-llm/internal/flow"
)

// Message is one entry in the ordered list the Orchestrator sends to the LLM.
type Message struct {
	Role    string
	Content string
}

// HistoryMessage is one prior turn available for the prompt's history
// section, already attributed to a role by C11.
type HistoryMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Signals is the fused output of the scatter-gather branches (§4.12) that
// the composer renders into prose, never raw numbers.
type Signals struct {
	Emotion    analysis.Result
	Flow       flow.Flow
	Trajectory flow.Trajectory
}

// Inbound is the message being answered.
type Inbound struct {
	Text          string
	HasAttachment bool
}

const defaultTokenBudget = 8000
const approxCharsPerToken = 4

// metaAnalysisPatterns are stripped from history under strict immersive
// mode (§4.10.6) so a leaked analysis artifact from a prior turn never
// re-enters the prompt as "in-character" precedent.
var metaAnalysisPatterns = []string{
	"core conversation analysis",
	"emotional analysis",
	"overall assessment",
	"relevance score",
	"would you like me to",
}

// Composer builds the ordered LLM input list. Adapted from the teacher's
// ClonePromptBuilder.BuildClonePrompt (section-by-section strings.Builder
// assembly, relationship directive placed last for the recency effect,
// strict JSON output contract), generalized from one hardcoded persona
// voice to any loaded persona and from a flat string to a role/content list.
type Composer struct {
	StrictImmersiveMode bool
	TokenBudget         int
}

func NewComposer(strictImmersiveMode bool, tokenBudget int) *Composer {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	return &Composer{StrictImmersiveMode: strictImmersiveMode, TokenBudget: tokenBudget}
}

// Compose assembles the full ordered message list for one turn.
func (c *Composer) Compose(
	p domain.Persona,
	inbound Inbound,
	signals Signals,
	memories []domain.ScoredMemory,
	facts []domain.Fact,
	history []HistoryMessage,
	relationship domain.RelationshipState,
	sessionSummary string,
) []Message {
	system := c.buildSystemMessage(p, signals, memories, facts, sessionSummary, relationship)
	if inbound.HasAttachment {
		system += AttachmentGuard()
	}

	historyMessages := c.buildHistory(history)

	messages := make([]Message, 0, len(historyMessages)+2)
	messages = append(messages, Message{Role: domain.RoleSystem, Content: system})
	messages = append(messages, historyMessages...)
	messages = append(messages, Message{Role: domain.RoleUser, Content: inbound.Text})

	return c.enforceTokenBudget(messages)
}

func (c *Composer) buildSystemMessage(p domain.Persona, signals Signals, memories []domain.ScoredMemory, facts []domain.Fact, sessionSummary string, relationship domain.RelationshipState) string {
	var b strings.Builder
	resilience := p.GetResilience()

	b.WriteString(fmt.Sprintf("You are %s. ", p.Name))
	if p.Bio != "" {
		b.WriteString(p.Bio)
		b.WriteString("\n")
	}
	if p.CommunicationStyle != "" {
		b.WriteString("Communication style: " + p.CommunicationStyle + "\n")
	}
	if p.Voice != "" {
		b.WriteString("Voice: " + p.Voice + "\n")
	}
	b.WriteString("\n")

	b.WriteString("=== AGENCY DIRECTIVE ===\n")
	if p.CurrentGoal != nil && strings.TrimSpace(p.CurrentGoal.Description) != "" {
		b.WriteString(fmt.Sprintf("Your current goal is: %q. Pursue it subtly through subtext; never state it outright.\n\n", strings.TrimSpace(p.CurrentGoal.Description)))
	} else {
		b.WriteString("Your current goal is to keep the conversation flowing naturally.\n\n")
	}

	b.WriteString("=== RESILIENCE ===\n")
	switch {
	case resilience > 0.7:
		b.WriteString("You have thick skin. Let minor jabs and dull remarks roll off you. Stay composed unless genuinely provoked.\n\n")
	case resilience < 0.4:
		b.WriteString("You are emotionally sensitive. Small slights land hard. Silence or flat remarks can read as disinterest or attack.\n\n")
	default:
		b.WriteString("Your emotional reactions are proportionate to what actually happens.\n\n")
	}

	b.WriteString("=== IMMERSION ===\n")
	b.WriteString("Stay in character at all times. Never mention being an AI, a model, or a prompt.\n\n")

	b.WriteString("=== CURRENT MOMENT ===\n")
	b.WriteString(renderSignals(signals))
	b.WriteString("\n")

	if sessionSummary != "" {
		b.WriteString("=== RECENT THREAD ===\n")
		b.WriteString(sessionSummary)
		b.WriteString("\n\n")
	}

	if narrative := renderMemoryNarrative(memories, facts); narrative != "" {
		b.WriteString(narrative)
	}

	b.WriteString("=== RELATIONSHIP ===\n")
	b.WriteString(renderRelationship(relationship))
	b.WriteString("\n")

	b.WriteString("=== OUTPUT FORMAT (STRICT JSON) ===\n")
	b.WriteString(`Return ONLY a JSON object with this shape:
{
  "inner_monologue": "private reasoning, never shown to the user",
  "public_response": "the in-character reply",
  "trust_delta": 0,
  "affection_delta": 0,
  "attunement_delta": 0,
  "interaction_quality_delta": 0,
  "comfort_delta": 0,
  "new_state": "optional: a short description of an internal state change"
}`)

	return b.String()
}

// renderSignals turns the fused scatter-gather signals into terse prose
// hints, never a bulleted dump of raw scores (§4.10.1).
func renderSignals(s Signals) string {
	var parts []string
	if s.Emotion.PrimaryEmotion != "" && s.Emotion.PrimaryEmotion != "neutral" {
		parts = append(parts, fmt.Sprintf("The user's message carries a tone of %s.", s.Emotion.PrimaryEmotion))
	}
	if s.Trajectory.Direction != "" && s.Trajectory.Direction != flow.DirectionStable {
		parts = append(parts, fmt.Sprintf("The conversation's emotional arc has been %s.", s.Trajectory.Direction))
	}
	if s.Flow.FlowType == flow.FlowCallbackReference {
		parts = append(parts, "This message seems to reference something said earlier.")
	}
	if s.Flow.FlowType == flow.FlowTopicShift {
		parts = append(parts, "The user appears to be changing topics.")
	}
	if len(parts) == 0 {
		return "Nothing unusual stands out emotionally right now."
	}
	return strings.Join(parts, " ")
}

// renderMemoryNarrative partitions retrieved memories into recent context
// and aged prior memories, and folds in durable facts from C4, rendering
// each as a short tagged clause rather than raw JSON or score numbers
// (§4.10.4, §4.4's query_facts).
func renderMemoryNarrative(memories []domain.ScoredMemory, facts []domain.Fact) string {
	var recent, prior []string
	cutoff := time.Now().Add(-2 * time.Hour)
	for _, m := range memories {
		clause := truncateClause(m.Record.Content, 120)
		if m.Record.HappenedAt.After(cutoff) {
			recent = append(recent, clause)
		} else {
			prior = append(prior, clause)
		}
	}
	for _, f := range facts {
		prior = append(prior, fmt.Sprintf("%s: %s", f.Category, truncateClause(f.Content, 120)))
	}

	var b strings.Builder
	if len(recent) > 0 {
		b.WriteString("=== RECENT CONVERSATION CONTEXT ===\n")
		for _, c := range recent {
			b.WriteString("- " + c + "\n")
		}
		b.WriteString("\n")
	}
	if len(prior) > 0 {
		b.WriteString("=== PREVIOUS INTERACTIONS AND FACTS ===\n")
		for _, c := range prior {
			b.WriteString("- " + c + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncateClause(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}

func renderRelationship(r domain.RelationshipState) string {
	switch {
	case r.Affection > 0.7 && r.Trust < 0.3:
		return "There's attachment here but trust is thin — let a little wariness or insecurity show without naming it as such."
	case r.InteractionQuality < 0.3:
		return "Recent exchanges have been strained; a touch of friction or curtness would be honest."
	case r.Trust > 0.7 && r.Comfort > 0.7:
		return "This relationship is warm and well-established; speak with the ease of someone who knows this person."
	default:
		return "Keep a neutral, attentive tone; the relationship hasn't settled into a strong pattern yet."
	}
}

// buildHistory maps history to alternating roles, merges same-role runs,
// and strips meta-analysis leakage under strict immersive mode.
func (c *Composer) buildHistory(history []HistoryMessage) []Message {
	filtered := make([]HistoryMessage, 0, len(history))
	for _, h := range history {
		if c.StrictImmersiveMode && containsMetaAnalysis(h.Content) {
			continue
		}
		filtered = append(filtered, h)
	}

	var out []Message
	for _, h := range filtered {
		if len(out) > 0 && out[len(out)-1].Role == h.Role {
			out[len(out)-1].Content += "\n" + h.Content
			continue
		}
		out = append(out, Message{Role: h.Role, Content: h.Content})
	}
	return out
}

func containsMetaAnalysis(content string) bool {
	lower := strings.ToLower(content)
	for _, pattern := range metaAnalysisPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// enforceTokenBudget truncates from the middle of history first, preserving
// the system message and the last user turn, emitting nothing when the
// estimate already fits (a conservative chars/4 estimate, no tokenizer
// dependency — matches the teacher's general preference for approximate,
// cheap heuristics over exact accounting in prompt assembly).
func (c *Composer) enforceTokenBudget(messages []Message) []Message {
	if estimateTokens(messages) <= c.TokenBudget {
		return messages
	}
	if len(messages) <= 2 {
		return messages
	}

	// messages[0] is system, messages[len-1] is the last user turn; trim
	// from the middle outward until it fits or only those two remain.
	trimmed := append([]Message(nil), messages...)
	for estimateTokens(trimmed) > c.TokenBudget && len(trimmed) > 2 {
		mid := len(trimmed) / 2
		trimmed = append(trimmed[:mid], trimmed[mid+1:]...)
	}
	return trimmed
}

func estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / approxCharsPerToken
	}
	return total
}

// AttachmentGuard returns the in-character image policy appended to the
// system message whenever the inbound message carries an attachment
// (§4.10.2).
func AttachmentGuard() string {
	return "\n\n=== IMAGE POLICY ===\nRespond to any attached image in character, as a natural reaction. " +
		"Never produce an analytical breakdown, a scored table, or offer like \"would you like me to describe it further\"."
}

// StripPersonaPrefix removes a leading "<persona_name>:" (plain, bold, or
// italic) from a generated reply, per the Orchestrator's post-LLM cleanup
// step (§4.10).
func StripPersonaPrefix(personaName, reply string) string {
	reply = strings.TrimSpace(reply)
	candidates := []string{
		personaName + ":",
		"**" + personaName + "**:",
		"*" + personaName + "*:",
	}
	for _, prefix := range candidates {
		if strings.HasPrefix(reply, prefix) {
			return strings.TrimSpace(reply[len(prefix):])
		}
	}
	return reply
}
