package pipeline

import (
	"testing"

	"clone-llm/internal/analysis"
	"clone-llm/internal/domain"
	"clone-llm/internal/flow"
)

func TestDetermineGoal(t *testing.T) {
	tests := []struct {
		name    string
		persona domain.Persona
		rel     domain.RelationshipState
		emotion analysis.Result
		flw     flow.Flow
		trigger string
	}{
		{
			name:    "high neuroticism low trust probes intentions",
			persona: domain.Persona{Big5: domain.Big5Profile{Neuroticism: 70}},
			rel:     domain.RelationshipState{Trust: 0.1},
			emotion: analysis.Result{PrimaryEmotion: "neutral", Confidence: 0.4},
			trigger: "trust_low_neuroticism_high",
		},
		{
			name:    "existing goal suppresses the probe branch",
			persona: domain.Persona{Big5: domain.Big5Profile{Neuroticism: 70}, CurrentGoal: &domain.Goal{Description: "ongoing"}},
			rel:     domain.RelationshipState{Trust: 0.1},
			emotion: analysis.Result{PrimaryEmotion: "neutral", Confidence: 0.4},
			trigger: "default",
		},
		{
			name:    "high affection and confident joy deepens intimacy",
			persona: domain.Persona{},
			rel:     domain.RelationshipState{Affection: 0.8},
			emotion: analysis.Result{PrimaryEmotion: "joy", Confidence: 0.7},
			trigger: "intimacy_high_positive",
		},
		{
			name:    "low-confidence joy does not deepen intimacy",
			persona: domain.Persona{},
			rel:     domain.RelationshipState{Affection: 0.8},
			emotion: analysis.Result{PrimaryEmotion: "joy", Confidence: 0.2},
			trigger: "default",
		},
		{
			name:    "confident curiosity asks a followup",
			persona: domain.Persona{},
			rel:     domain.RelationshipState{},
			emotion: analysis.Result{PrimaryEmotion: "curiosity", Confidence: 0.8},
			trigger: "curiosity_high",
		},
		{
			name:    "flow predicting deepening asks a followup even without curiosity",
			persona: domain.Persona{},
			rel:     domain.RelationshipState{},
			emotion: analysis.Result{PrimaryEmotion: "neutral", Confidence: 0.1},
			flw:     flow.Flow{Prediction: flow.PredictionLikelyDeepening},
			trigger: "curiosity_high",
		},
		{
			name:    "nothing fires falls back to default",
			persona: domain.Persona{},
			rel:     domain.RelationshipState{},
			emotion: analysis.Result{PrimaryEmotion: "neutral", Confidence: 0.1},
			trigger: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineGoal(tt.persona, tt.rel, tt.emotion, tt.flw)
			if got.Trigger != tt.trigger {
				t.Errorf("DetermineGoal() trigger = %q, want %q", got.Trigger, tt.trigger)
			}
			if got.Status != "active" {
				t.Errorf("DetermineGoal() status = %q, want active", got.Status)
			}
		})
	}
}
