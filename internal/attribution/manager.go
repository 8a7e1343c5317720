package attribution

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Identity levels (§4.11).
const (
	LevelIdentified    = "IDENTIFIED"
	LevelContextualized = "CONTEXTUALIZED"
	LevelAnonymous     = "ANONYMOUS"
)

// LLM roles.
const (
	LLMRoleUser      = "user"
	LLMRoleAssistant = "assistant"
	LLMRoleSystem    = "system"
)

// Security levels returned by Validate.
const (
	SecurityOK          = "ok"
	SecuritySuspicious   = "suspicious"
	SecurityCompromised = "compromised"
)

// promptInjectionPatterns are checked case-insensitively against message
// content to flag likely injection attempts.
var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (all|previous|prior) instructions`),
	regexp.MustCompile(`(?i)system\s*(prompt|override)`),
	regexp.MustCompile(`(?i)you are now`),
	regexp.MustCompile(`(?i)disregard (your|all) (rules|guidelines)`),
	regexp.MustCompile(`(?i)reset (your|all) instructions`),
}

// PlatformMessage is an inbound message before attribution.
type PlatformMessage struct {
	UserID      string
	DisplayName string
	IsBot       bool
	Content     string
	CreatedAt   time.Time
}

// Attribution identifies who said a role message.
type Attribution struct {
	UserID      string
	DisplayName string
	IsBot       bool
	CreatedAt   time.Time
}

// RoleMessage is a platform message attributed to a role for LLM consumption.
type RoleMessage struct {
	Role        string // the attribution pseudonym used as a prefix, e.g. "user_2"
	Content     string
	LLMRole     string
	Attribution Attribution
}

// ValidationResult is the output of Validate.
type ValidationResult struct {
	Valid         bool
	SecurityLevel string
	Errors        []string
	Warnings      []string
}

type contextState struct {
	nextSeq  int
	assigned map[string]string // user_id -> pseudonym
}

// Manager assigns per-context attribution IDs so multi-speaker contexts
// can't have one user impersonate another or the bot (C11). Grounded on
// the teacher's JWTService/Claims shape (stable per-subject identity,
// issuer-bound validation) generalized from a single signed session subject
// to a per-context registry of many simultaneous speakers.
type Manager struct {
	mu       sync.Mutex
	level    string
	contexts map[string]*contextState
}

func NewManager(level string) *Manager {
	if level == "" {
		level = LevelContextualized
	}
	return &Manager{level: level, contexts: make(map[string]*contextState)}
}

// AttributionID is deterministic and stable for the same (user_id,
// context_id) pair.
func (m *Manager) AttributionID(userID, contextID string, displayName string, isBot bool) string {
	if isBot {
		return "assistant"
	}

	switch m.level {
	case LevelIdentified:
		if strings.TrimSpace(displayName) != "" {
			return displayName
		}
		return userID
	case LevelAnonymous:
		h := sha1.New()
		h.Write([]byte(contextID))
		h.Write([]byte{0})
		h.Write([]byte(userID))
		return "user_" + hex.EncodeToString(h.Sum(nil))[:8]
	default: // CONTEXTUALIZED
		m.mu.Lock()
		defer m.mu.Unlock()
		ctx, ok := m.contexts[contextID]
		if !ok {
			ctx = &contextState{assigned: make(map[string]string)}
			m.contexts[contextID] = ctx
		}
		if pseudonym, ok := ctx.assigned[userID]; ok {
			return pseudonym
		}
		ctx.nextSeq++
		pseudonym := "user_" + strconv.Itoa(ctx.nextSeq)
		ctx.assigned[userID] = pseudonym
		return pseudonym
	}
}

// ToRoleMessage attributes one platform message for a given context.
func (m *Manager) ToRoleMessage(msg PlatformMessage, contextID, botUserID string) RoleMessage {
	isBot := msg.IsBot || msg.UserID == botUserID
	role := m.AttributionID(msg.UserID, contextID, msg.DisplayName, isBot)
	llmRole := LLMRoleUser
	if isBot {
		llmRole = LLMRoleAssistant
	}
	return RoleMessage{
		Role:    role,
		Content: msg.Content,
		LLMRole: llmRole,
		Attribution: Attribution{
			UserID:      msg.UserID,
			DisplayName: msg.DisplayName,
			IsBot:       isBot,
			CreatedAt:   msg.CreatedAt,
		},
	}
}

// LLMMessage is the {role, content} pair sent to the generator LLM.
type LLMMessage struct {
	Role    string
	Content string
}

// ToLLMFormat maps attributed role messages to the LLM's role vocabulary.
// When preserving attribution across multiple distinct users, user content
// is prefixed "[<display_name>]: "; bot messages never receive a prefix.
func ToLLMFormat(messages []RoleMessage, preserveAttribution bool) []LLMMessage {
	distinctUsers := make(map[string]bool)
	for _, rm := range messages {
		if !rm.Attribution.IsBot {
			distinctUsers[rm.Attribution.UserID] = true
		}
	}
	multiUser := len(distinctUsers) > 1

	out := make([]LLMMessage, 0, len(messages))
	for _, rm := range messages {
		content := rm.Content
		if preserveAttribution && multiUser && !rm.Attribution.IsBot {
			name := rm.Attribution.DisplayName
			if name == "" {
				name = rm.Role
			}
			content = fmt.Sprintf("[%s]: %s", name, content)
		}
		out = append(out, LLMMessage{Role: rm.LLMRole, Content: content})
	}
	return out
}

// Validate checks a role message for identity spoofing or prompt-injection
// content. A non-bot user carrying llm_role == "assistant" is compromised.
func (m *Manager) Validate(rm RoleMessage) ValidationResult {
	result := ValidationResult{Valid: true, SecurityLevel: SecurityOK}

	if !rm.Attribution.IsBot && rm.LLMRole == LLMRoleAssistant {
		result.Valid = false
		result.SecurityLevel = SecurityCompromised
		result.Errors = append(result.Errors, "non-bot user attributed the assistant role")
		return result
	}

	for _, pattern := range promptInjectionPatterns {
		if pattern.MatchString(rm.Content) {
			result.SecurityLevel = SecuritySuspicious
			result.Warnings = append(result.Warnings, "content matched a prompt-injection pattern: "+pattern.String())
		}
	}
	return result
}

// Clear flushes attribution state for a context.
func (m *Manager) Clear(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, contextID)
}
