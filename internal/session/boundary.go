package session

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Session states (§4.7).
const (
	StateActive      = "active"
	StatePaused      = "paused"
	StateInterrupted = "interrupted"
	StateResumed     = "resumed"
)

// Topic resolution statuses (§3).
const (
	ResolutionResolved    = "resolved"
	ResolutionEnded       = "ended"
	ResolutionInterrupted = "interrupted"
	ResolutionResumed     = "resumed"
	ResolutionOngoing     = "ongoing"
)

// Transition categories from the cue table.
const (
	transitionExplicitChange = "EXPLICIT_CHANGE"
	transitionResumption     = "RESUMPTION"
	transitionCompletion     = "NATURAL_FLOW"
)

var explicitChangeCues = []string{"by the way", "new topic", "moving on", "anyway,"}
var resumptionCues = []string{"back to", "as i was saying", "going back to"}
var completionCues = []string{"thanks", "thank you", "makes sense", "that's all", "got it"}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "with": true, "that": true,
	"this": true, "it": true, "i": true, "you": true, "me": true, "my": true,
}

const defaultInactivityWindow = 30 * time.Minute
const defaultSummarizationThreshold = 8

// Topic is one thread of conversation within a session.
type Topic struct {
	ID               string
	Keywords         []string
	StartAt          time.Time
	EndAt            *time.Time
	MessageCount     int
	EmotionalTone     string
	ResolutionStatus string
}

// Session tracks one (user_id, channel_id) conversation's boundary state.
type Session struct {
	UserID         string
	ChannelID      string
	State          string
	CurrentTopic   *Topic
	ContextSummary string
	LastActivity   time.Time
	seenMessages   map[string]bool
	messagesSince  int
}

// SummaryFunc produces an intelligent context summary, typically backed by
// an LLM call. Callers without one get the deterministic topic-digest
// fallback.
type SummaryFunc func(s *Session) string

// Manager is the boundary/topic tracker (C7), grounded on narrative_rules.go's
// normalize/containsAny cue-detection helpers and conceptually on
// WhisperEngine's boundary_manager.py session lifecycle.
type Manager struct {
	mu               sync.Mutex
	sessions         map[string]*Session
	inactivityWindow time.Duration
	summaryThreshold int
	summarize        SummaryFunc
}

func NewManager(inactivityWindow time.Duration, summaryThreshold int, summarize SummaryFunc) *Manager {
	if inactivityWindow <= 0 {
		inactivityWindow = defaultInactivityWindow
	}
	if summaryThreshold <= 0 {
		summaryThreshold = defaultSummarizationThreshold
	}
	return &Manager{
		sessions:         make(map[string]*Session),
		inactivityWindow: inactivityWindow,
		summaryThreshold: summaryThreshold,
		summarize:        summarize,
	}
}

func key(userID, channelID string) string { return userID + "|" + channelID }

// ProcessMessage is idempotent by messageID: re-delivering the same message
// never double-counts it toward the summarization threshold or re-triggers
// a topic transition.
func (m *Manager) ProcessMessage(userID, channelID, messageID, text string, timestamp time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key(userID, channelID)]
	created := !ok
	if !ok {
		s = &Session{
			UserID:       userID,
			ChannelID:    channelID,
			State:        StateActive,
			LastActivity: timestamp,
			seenMessages: make(map[string]bool),
		}
		s.CurrentTopic = newTopic(text, timestamp)
		m.sessions[key(userID, channelID)] = s
	}

	if s.seenMessages[messageID] {
		return s
	}
	s.seenMessages[messageID] = true

	if timestamp.Sub(s.LastActivity) > m.inactivityWindow {
		s.State = StatePaused
	}

	category := classifyTransition(text)
	switch category {
	case transitionExplicitChange, transitionResumption:
		m.closeTopic(s, ResolutionEnded, timestamp)
		s.CurrentTopic = newTopic(text, timestamp)
		s.State = StateActive
	default:
		// newTopic already counted the message that opened the session.
		if !created {
			s.CurrentTopic.MessageCount++
		}
		s.State = StateActive
	}

	s.LastActivity = timestamp
	s.messagesSince++

	if s.messagesSince >= m.summaryThreshold {
		s.messagesSince = 0
		if m.summarize != nil {
			s.ContextSummary = m.summarize(s)
		} else {
			s.ContextSummary = digestSummary(s)
		}
	}

	return s
}

// HandleInterruption marks the current topic interrupted and the session
// itself interrupted, independent of message flow (e.g. another user
// cutting in).
func (m *Manager) HandleInterruption(userID, channelID, interrupterID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key(userID, channelID)]
	if !ok {
		return nil
	}
	if s.CurrentTopic != nil {
		s.CurrentTopic.ResolutionStatus = ResolutionInterrupted
	}
	s.State = StateInterrupted
	return s
}

// Resume produces a bridge string referencing the last topic's keywords and
// elapsed time, transitioning the session to "resumed".
func (m *Manager) Resume(userID, channelID, resumeText string) (string, *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key(userID, channelID)]
	if !ok || (s.State != StatePaused && s.State != StateInterrupted) {
		return "", s
	}

	var bridge string
	if s.CurrentTopic != nil && len(s.CurrentTopic.Keywords) > 0 {
		elapsed := humanizeElapsed(time.Since(s.LastActivity))
		bridge = "picking back up on " + strings.Join(s.CurrentTopic.Keywords, ", ") + " from " + elapsed + " ago"
	}
	s.State = StateResumed
	return bridge, s
}

// End finalizes the current topic, produces a summary, and drops the
// session from the active set.
func (m *Manager) End(userID, channelID, reason string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key(userID, channelID)]
	if !ok {
		return ""
	}
	m.closeTopic(s, ResolutionEnded, time.Now())
	summary := digestSummary(s)
	delete(m.sessions, key(userID, channelID))
	return summary
}

func (m *Manager) closeTopic(s *Session, status string, at time.Time) {
	if s.CurrentTopic == nil {
		return
	}
	t := at
	s.CurrentTopic.EndAt = &t
	s.CurrentTopic.ResolutionStatus = status
}

func newTopic(text string, at time.Time) *Topic {
	return &Topic{
		ID:               uuid.NewString(),
		Keywords:         extractKeywords(text, 10),
		StartAt:          at,
		MessageCount:     1,
		ResolutionStatus: ResolutionOngoing,
	}
}

func digestSummary(s *Session) string {
	if s.CurrentTopic == nil || len(s.CurrentTopic.Keywords) == 0 {
		return "no active topic"
	}
	return "discussing " + strings.Join(s.CurrentTopic.Keywords, ", ")
}

func humanizeElapsed(d time.Duration) string {
	if d < time.Minute {
		return "a moment"
	}
	if d < time.Hour {
		return pluralize(int(d.Minutes()), "minute")
	}
	if d < 24*time.Hour {
		return pluralize(int(d.Hours()), "hour")
	}
	return pluralize(int(d.Hours())/24, "day")
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// normalize lowercases and strips diacritics, same helper shape as
// narrative_rules.go's normalize.
func normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func containsAny(s string, list []string) bool {
	for _, x := range list {
		if strings.Contains(s, x) {
			return true
		}
	}
	return false
}

func classifyTransition(text string) string {
	msg := normalize(text)
	if containsAny(msg, explicitChangeCues) {
		return transitionExplicitChange
	}
	if containsAny(msg, resumptionCues) {
		return transitionResumption
	}
	if containsAny(msg, completionCues) {
		return transitionCompletion
	}
	return transitionCompletion
}

func extractKeywords(text string, cap int) []string {
	msg := normalize(text)
	fields := strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		if len(f) < 4 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) >= cap {
			break
		}
	}
	return out
}
