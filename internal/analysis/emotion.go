package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"clone-llm/internal/domain"
	"clone-llm/internal/llm"
)

// closedEmotionSet is the fixed vocabulary §6 requires for every persisted
// primary_emotion. Anything else is coerced to "neutral" on ingress.
var closedEmotionSet = map[string]bool{
	"joy": true, "excitement": true, "gratitude": true, "love": true,
	"hope": true, "curiosity": true, "anticipation": true, "contentment": true,
	"contemplative": true, "reflective": true, "neutral": true,
	"sadness": true, "disappointment": true, "frustration": true,
	"anger": true, "fear": true, "anxiety": true, "worry": true,
}

// Valence maps each closed-set emotion to a signed intensity used by the
// flow/trajectory analyzer (C8) to compute direction and velocity.
var Valence = map[string]float64{
	"joy": 2.0, "excitement": 1.8, "gratitude": 1.5, "love": 2.0,
	"hope": 1.3, "contentment": 1.2, "curiosity": 0.8, "anticipation": 0.9,
	"neutral": 0, "contemplative": 0.2, "reflective": 0.1,
	"sadness": -1.5, "disappointment": -1.2, "frustration": -1.0,
	"anger": -2.0, "fear": -1.8, "anxiety": -1.6, "worry": -1.3,
}

func Normalize(emotion string) string {
	e := strings.ToLower(strings.TrimSpace(emotion))
	if closedEmotionSet[e] {
		return e
	}
	return "neutral"
}

// Result is what the Orchestrator (C12) consumes from one analyze() call.
type Result struct {
	PrimaryEmotion string
	Confidence     float64
	Intensity      float64
	AllEmotions    map[string]float64
}

// Emotion-neutral zero value returned on upstream failure, per §4.2: never
// raises to the Orchestrator.
var neutralResult = Result{PrimaryEmotion: "neutral", Confidence: 0, Intensity: 0}

// Analyzer classifies primary emotion, confidence, and intensity from text.
// Grounded on the teacher's AnalysisService.AnalyzeEmotion (resilience-scaled
// effective-intensity formula) and ReactionEngine's emotion categorization.
// The persona-resilience noise gate is the separate DampenByResilience
// function; Analyze does not apply it.
type Analyzer struct {
	llmClient llm.LLMClient
	logger    *zap.Logger
}

func NewAnalyzer(llmClient llm.LLMClient, logger *zap.Logger) *Analyzer {
	return &Analyzer{llmClient: llmClient, logger: logger}
}

type llmEmotionResponse struct {
	PrimaryEmotion string             `json:"primary_emotion"`
	Confidence     float64            `json:"confidence"`
	Intensity      float64            `json:"intensity"`
	AllEmotions    map[string]float64 `json:"all_emotions"`
}

// Analyze classifies the emotional content of text. On any upstream failure
// it returns the neutral zero-result and a non-fatal warning, never an error
// that would fail the calling scatter-gather branch.
func (a *Analyzer) Analyze(ctx context.Context, userID, text, recentContext string) Result {
	raw, err := a.llmClient.Generate(ctx, a.buildPrompt(text, recentContext))
	if err != nil {
		a.logger.Warn("emotion analyzer: llm generate failed", zap.Error(err), zap.String("user_id", userID))
		return neutralResult
	}

	cleaned := stripCodeFence(raw)
	var parsed llmEmotionResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		a.logger.Warn("emotion analyzer: parse failed", zap.Error(err), zap.String("user_id", userID))
		return neutralResult
	}

	primary := Normalize(parsed.PrimaryEmotion)
	confidence := clamp01(parsed.Confidence)
	intensity := clamp01(parsed.Intensity)

	all := make(map[string]float64, len(parsed.AllEmotions))
	for e, score := range parsed.AllEmotions {
		all[Normalize(e)] = clamp01(score)
	}
	if len(all) == 0 {
		all = map[string]float64{primary: intensity}
	}

	return Result{
		PrimaryEmotion: primary,
		Confidence:     confidence,
		Intensity:      intensity,
		AllEmotions:    all,
	}
}

// DampenByResilience applies the persona's resilience-scaled noise gate to a
// raw 0-100 intensity, returning the effective intensity and whether the
// input cleared the threshold. Direct generalization of the teacher's
// effective/noiseThreshold formula in analysis_service.go.
func DampenByResilience(rawIntensity int, persona domain.Persona) (effective int, triggered bool) {
	resilience := persona.GetResilience()
	eff := float64(rawIntensity) * (1.0 - resilience*0.5)
	threshold := 20.0 + resilience*30.0
	if eff < threshold {
		return 0, false
	}
	return int(eff), true
}

func (a *Analyzer) buildPrompt(text, recentContext string) string {
	var b strings.Builder
	b.WriteString("Classify the primary emotion in the user's message using only this closed set: ")
	b.WriteString("joy, excitement, gratitude, love, hope, curiosity, anticipation, contentment, ")
	b.WriteString("contemplative, reflective, neutral, sadness, disappointment, frustration, anger, fear, anxiety, worry.\n")
	if strings.TrimSpace(recentContext) != "" {
		b.WriteString("Recent context:\n")
		b.WriteString(recentContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Message:\n")
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\nRespond with ONLY this JSON shape:\n")
	b.WriteString(`{"primary_emotion":"joy","confidence":0.8,"intensity":0.6,"all_emotions":{"joy":0.8,"curiosity":0.2}}`)
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
