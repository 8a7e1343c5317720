package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"clone-llm/internal/domain"
)

// Fact categories recognized by ExtractFact.
const (
	FactCategoryName       = "name"
	FactCategoryOccupation = "occupation"
	FactCategoryLocation   = "location"
	FactCategoryPreference = "preference"
)

// factCue pairs a category with the patterns that introduce it and the
// capture group holding the fact's content, same cue-table idiom as
// session's explicit/resumption/completion cues and flow's callback/shift
// cues.
type factCue struct {
	category string
	pattern  *regexp.Regexp
}

var factCues = []factCue{
	{FactCategoryName, regexp.MustCompile(`(?i)\bmy name is ([a-z][\w' -]{0,40})`)},
	{FactCategoryName, regexp.MustCompile(`(?i)\bcall me ([a-z][\w' -]{0,40})`)},
	{FactCategoryOccupation, regexp.MustCompile(`(?i)\bi work as (?:an? )?([\w' -]{2,60})`)},
	{FactCategoryOccupation, regexp.MustCompile(`(?i)\bi'?m an? ([\w' -]{2,60}) by trade`)},
	{FactCategoryLocation, regexp.MustCompile(`(?i)\bi live in ([\w' -]{2,60})`)},
	{FactCategoryPreference, regexp.MustCompile(`(?i)\bi (?:really )?(?:love|hate|prefer) ([\w' -]{2,60})`)},
}

// ExtractFact applies a small set of first-person disclosure cues to one
// message and returns at most one fact (the first cue that matches), per
// C4's upsert_fact(persona_id, user_id, fact, category, confidence). This is
// a heuristic, not an LLM extraction step, matching the teacher's general
// preference for cheap deterministic cue detection over a model call where
// one isn't already in flight.
func ExtractFact(personaID, userID, content string, at time.Time) (domain.Fact, bool) {
	for _, cue := range factCues {
		m := cue.pattern.FindStringSubmatch(content)
		if len(m) < 2 {
			continue
		}
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}
		return domain.Fact{
			ID:         uuid.NewString(),
			PersonaID:  personaID,
			UserID:     userID,
			Category:   cue.category,
			Content:    text,
			Confidence: 0.7,
			CreatedAt:  at,
			UpdatedAt:  at,
		}, true
	}
	return domain.Fact{}, false
}
