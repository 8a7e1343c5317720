package flow

import (
	"context"
	"math"
	"strings"

	"clone-llm/internal/domain"
	"clone-llm/internal/memory/timeseries"
	"clone-llm/internal/memory/vector"
)

// Direction values for Trajectory.
const (
	DirectionImproving = "improving"
	DirectionDeclining = "declining"
	DirectionStable    = "stable"
)

// Momentum values for Trajectory.
const (
	MomentumPositive = "positive_momentum"
	MomentumNegative = "negative_momentum"
	MomentumStable   = "stable_momentum"
)

// Arc values for Trajectory.
const (
	ArcPeakAndDecline  = "peak_and_decline"
	ArcValleyAndRise   = "valley_and_rise"
	ArcAscending       = "ascending_arc"
	ArcDescending      = "descending_arc"
	ArcStable          = "stable_arc"
)

// FlowType values for Flow.
const (
	FlowTopicContinuation  = "topic_continuation"
	FlowTopicShift         = "topic_shift"
	FlowCallbackReference  = "callback_reference"
	FlowEmotionalProgression = "emotional_progression"
	FlowNeutral            = "neutral"
)

// Depth values for Flow.
const (
	DepthSurface   = "surface"
	DepthEngaging  = "engaging"
	DepthPersonal  = "personal"
	DepthIntimate  = "intimate"
	DepthProfound  = "profound"
)

// Prediction values for Flow.
const (
	PredictionLikelyDeepening   = "likely_deepening"
	PredictionLikelyTopicShift  = "likely_topic_shift"
	PredictionLikelyContinuation = "likely_continuation"
	PredictionStableFlow        = "stable_flow"
)

// valence mirrors analysis.Valence; duplicated here (not imported) to keep
// this package's only dependency on analysis limited to the emotion tag
// strings it already receives from the Orchestrator.
var valence = map[string]float64{
	"joy": 2.0, "excitement": 1.8, "gratitude": 1.5, "love": 2.0,
	"hope": 1.3, "contentment": 1.2, "curiosity": 0.8, "anticipation": 0.9,
	"neutral": 0, "contemplative": 0.2, "reflective": 0.1,
	"sadness": -1.5, "disappointment": -1.2, "frustration": -1.0,
	"anger": -2.0, "fear": -1.8, "anxiety": -1.6, "worry": -1.3,
}

// Trajectory is the output of Analyzer.Trajectory.
type Trajectory struct {
	Direction string
	Velocity  float64
	Momentum  string
	Arc       string
	Patterns  []string
	Stability float64
}

// Flow is the output of Analyzer.Flow.
type Flow struct {
	FlowType            string
	Confidence          float64
	Depth               string
	ContinuityScore     float64
	IntimacyDevelopment float64
	EmotionalMomentum    float64
	Prediction          string
	VectorEnhanced      bool
}

// Analyzer computes conversation trajectory and flow classification (C8),
// grounded conceptually on WhisperEngine's
// vector_conversation_flow_analyzer.py, re-expressed against this module's
// C3 vector store and C5 time-series store.
type Analyzer struct {
	vectorStore *vector.Store
	tsStore     *timeseries.Store
}

func NewAnalyzer(vectorStore *vector.Store, tsStore *timeseries.Store) *Analyzer {
	return &Analyzer{vectorStore: vectorStore, tsStore: tsStore}
}

// Trajectory computes direction/velocity/momentum/arc/stability over a
// chronological window of emotions fetched from C5.
func (a *Analyzer) Trajectory(ctx context.Context, personaID, userID string, window int) Trajectory {
	samples, err := a.tsStore.TrajectoryWindow(ctx, personaID, userID, false, window)
	if err != nil || len(samples) < 2 {
		return Trajectory{Direction: DirectionStable, Momentum: MomentumStable, Arc: ArcStable, Stability: 1}
	}

	// TrajectoryWindow queries ORDER BY recorded_at DESC but reverses its own
	// result before returning, so samples already arrive chronological
	// (earliest first) here; computeDirection/classifyArc both assume
	// values[0] is earliest.
	values := make([]float64, len(samples))
	for i, s := range samples {
		v, ok := valence[s.Emotion]
		if !ok {
			v = 0
		}
		values[i] = v * s.Intensity
	}

	direction, delta := computeDirection(values)
	velocity := meanAbsDiff(values)
	momentum := classifyMomentum(delta)
	arc := classifyArc(values)
	stability := clamp01(1 - stddev(values)/2.0)

	var patterns []string
	if velocity > 1.0 {
		patterns = append(patterns, "volatile")
	}
	if stability > 0.8 {
		patterns = append(patterns, "settled")
	}

	return Trajectory{
		Direction: direction,
		Velocity:  velocity,
		Momentum:  momentum,
		Arc:       arc,
		Patterns:  patterns,
		Stability: stability,
	}
}

func computeDirection(values []float64) (string, float64) {
	n := len(values)
	half := n / 2
	if half == 0 {
		return DirectionStable, 0
	}
	firstMean := mean(values[:half])
	lastMean := mean(values[n-half:])
	delta := lastMean - firstMean
	if delta > 0.5 {
		return DirectionImproving, delta
	}
	if delta < -0.5 {
		return DirectionDeclining, delta
	}
	return DirectionStable, delta
}

func classifyMomentum(delta float64) string {
	switch {
	case delta > 0.5:
		return MomentumPositive
	case delta < -0.5:
		return MomentumNegative
	default:
		return MomentumStable
	}
}

func classifyArc(values []float64) string {
	if len(values) < 3 {
		return ArcStable
	}
	peakIdx := 0
	for i, v := range values {
		if v > values[peakIdx] {
			peakIdx = i
		}
	}
	valleyIdx := 0
	for i, v := range values {
		if v < values[valleyIdx] {
			valleyIdx = i
		}
	}
	n := len(values)
	if peakIdx > 0 && peakIdx < n-1 && values[peakIdx] > values[0] && values[peakIdx] > values[n-1] {
		return ArcPeakAndDecline
	}
	if valleyIdx > 0 && valleyIdx < n-1 && values[valleyIdx] < values[0] && values[valleyIdx] < values[n-1] {
		return ArcValleyAndRise
	}
	if values[n-1] > values[0] {
		return ArcAscending
	}
	if values[n-1] < values[0] {
		return ArcDescending
	}
	return ArcStable
}

// Flow classifies the relationship of the current message to recent
// conversation, preferring a multi-dimensional C3 search and falling back to
// keyword cue detection when the vector store is unavailable or empty.
func (a *Analyzer) Flow(ctx context.Context, personaID, userID, currentText string, dims map[string][]float32) Flow {
	weights := map[string]float64{
		domain.VectorKindContext:      0.30,
		domain.VectorKindRelationship: 0.25,
		domain.VectorKindContent:      0.20,
		domain.VectorKindEmotion:      0.15,
		domain.VectorKindPersonality:  0.10,
	}

	if a.vectorStore != nil && len(dims) > 0 {
		hits, err := a.vectorStore.SearchByDimensions(ctx, personaID, userID, dims, weights, 10)
		if err == nil && len(hits) > 0 {
			return classifyFromHits(hits)
		}
	}

	return fallbackFlow(currentText)
}

func classifyFromHits(hits []domain.ScoredMemory) Flow {
	var totalIntimacy, totalContinuity float64
	for _, h := range hits {
		totalIntimacy += float64(h.Record.Importance) / 100.0
		totalContinuity += float64(h.Score)
	}
	n := float64(len(hits))
	avgIntimacy := clamp01(totalIntimacy / n)
	avgContinuity := clamp01(totalContinuity / n)

	flowType := FlowTopicContinuation
	if avgContinuity < 0.3 {
		flowType = FlowTopicShift
	}

	depth := DepthEngaging
	switch {
	case avgIntimacy > 0.8:
		depth = DepthProfound
	case avgIntimacy > 0.6:
		depth = DepthIntimate
	case avgIntimacy > 0.4:
		depth = DepthPersonal
	case avgIntimacy < 0.2:
		depth = DepthSurface
	}

	prediction := PredictionStableFlow
	if avgIntimacy > 0.6 {
		prediction = PredictionLikelyDeepening
	} else if avgContinuity < 0.3 {
		prediction = PredictionLikelyTopicShift
	}

	return Flow{
		FlowType:            flowType,
		Confidence:          clamp01(avgContinuity),
		Depth:               depth,
		ContinuityScore:     avgContinuity,
		IntimacyDevelopment: avgIntimacy,
		EmotionalMomentum:    avgIntimacy - 0.5,
		Prediction:          prediction,
		VectorEnhanced:      true,
	}
}

var callbackCues = []string{"remember when", "like you said", "as we discussed", "you mentioned"}
var shiftCues = []string{"by the way", "anyway", "new topic", "moving on"}
var depthCues = []string{"i feel", "honestly", "to be honest", "i trust you", "between us"}

func fallbackFlow(text string) Flow {
	msg := strings.ToLower(text)

	flowType := FlowNeutral
	switch {
	case containsAny(msg, callbackCues):
		flowType = FlowCallbackReference
	case containsAny(msg, shiftCues):
		flowType = FlowTopicShift
	case containsAny(msg, depthCues):
		flowType = FlowEmotionalProgression
	}

	depth := DepthSurface
	if containsAny(msg, depthCues) {
		depth = DepthPersonal
	}

	prediction := PredictionLikelyContinuation
	if flowType == FlowTopicShift {
		prediction = PredictionLikelyTopicShift
	}

	return Flow{
		FlowType:            flowType,
		Confidence:          0.4,
		Depth:               depth,
		ContinuityScore:     0.5,
		IntimacyDevelopment: 0,
		EmotionalMomentum:    0,
		Prediction:          prediction,
		VectorEnhanced:      false,
	}
}

func containsAny(s string, list []string) bool {
	for _, x := range list {
		if strings.Contains(s, x) {
			return true
		}
	}
	return false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanAbsDiff(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
	}
	return sum / float64(len(values)-1)
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq / float64(len(values)))
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
