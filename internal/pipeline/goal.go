package pipeline

import (
	"clone-llm/internal/analysis"
	"clone-llm/internal/domain"
	"clone-llm/internal/flow"
)

var positiveEmotions = map[string]bool{
	"joy": true, "excitement": true, "gratitude": true, "love": true,
	"hope": true, "contentment": true,
}

// DetermineGoal picks the persona's per-turn hidden agenda from the fused
// signals, surfaced to the prompt composer (C10) as the agency directive.
// Adapted from the teacher's goal_service.go DetermineNextGoal, generalized
// from the 3-scalar trust/intimacy/respect vectors (0-100) to the 5-scalar
// RelationshipState (0-1) and from a flat AnalysisResult to the fused
// emotion/flow signals this pipeline already computes.
func DetermineGoal(p domain.Persona, rel domain.RelationshipState, emotion analysis.Result, flw flow.Flow) domain.Goal {
	if p.CurrentGoal == nil && p.Big5.Neuroticism > 60 && rel.Trust < 0.2 {
		return domain.Goal{
			Description: "Probe the user's real intentions behind this message.",
			Status:      "active",
			Trigger:     "trust_low_neuroticism_high",
		}
	}

	if rel.Affection > 0.7 && positiveEmotions[emotion.PrimaryEmotion] && emotion.Confidence > 0.6 {
		return domain.Goal{
			Description: "Deepen into a personal or emotional topic.",
			Status:      "active",
			Trigger:     "intimacy_high_positive",
		}
	}

	if emotion.PrimaryEmotion == "curiosity" && emotion.Confidence > 0.7 || flw.Prediction == flow.PredictionLikelyDeepening {
		return domain.Goal{
			Description: "Ask a specific question about something the user mentioned earlier.",
			Status:      "active",
			Trigger:     "curiosity_high",
		}
	}

	return domain.Goal{
		Description: "Keep the conversation flowing naturally.",
		Status:      "active",
		Trigger:     "default",
	}
}
