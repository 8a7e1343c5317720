package flow

import (
	"math"
	"testing"
)

func TestComputeDirection_ChronologicallyImprovingValuesClassifyAsImproving(t *testing.T) {
	// Earliest-first samples (as TrajectoryWindow yields after its own
	// reversal): low valence early, high valence late.
	values := []float64{-2.0, -1.8, -1.5, 1.5, 1.8, 2.0}
	direction, delta := computeDirection(values)
	if direction != DirectionImproving {
		t.Errorf("computeDirection() = %q, want %q (delta=%v)", direction, DirectionImproving, delta)
	}
	if delta <= 0 {
		t.Errorf("computeDirection() delta = %v, want positive", delta)
	}
}

func TestComputeDirection_ChronologicallyDecliningValuesClassifyAsDeclining(t *testing.T) {
	values := []float64{2.0, 1.8, 1.5, -1.5, -1.8, -2.0}
	direction, delta := computeDirection(values)
	if direction != DirectionDeclining {
		t.Errorf("computeDirection() = %q, want %q (delta=%v)", direction, DirectionDeclining, delta)
	}
	if delta >= 0 {
		t.Errorf("computeDirection() delta = %v, want negative", delta)
	}
}

func TestComputeDirection_FlatValuesAreStable(t *testing.T) {
	values := []float64{0.2, 0.1, 0.2, 0.1, 0.2, 0.1}
	direction, _ := computeDirection(values)
	if direction != DirectionStable {
		t.Errorf("computeDirection() = %q, want %q", direction, DirectionStable)
	}
}

func TestComputeDirection_EmptyInputIsStable(t *testing.T) {
	direction, delta := computeDirection(nil)
	if direction != DirectionStable || delta != 0 {
		t.Errorf("computeDirection(nil) = (%q, %v), want (%q, 0)", direction, delta, DirectionStable)
	}
}

func TestClassifyMomentum(t *testing.T) {
	tests := []struct {
		delta float64
		want  string
	}{
		{0.8, MomentumPositive},
		{-0.8, MomentumNegative},
		{0.1, MomentumStable},
	}
	for _, tt := range tests {
		if got := classifyMomentum(tt.delta); got != tt.want {
			t.Errorf("classifyMomentum(%v) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}

func TestClassifyArc_PeakAndDecline(t *testing.T) {
	values := []float64{0, 2, 0}
	if got := classifyArc(values); got != ArcPeakAndDecline {
		t.Errorf("classifyArc() = %q, want %q", got, ArcPeakAndDecline)
	}
}

func TestClassifyArc_ValleyAndRise(t *testing.T) {
	values := []float64{0, -2, 0}
	if got := classifyArc(values); got != ArcValleyAndRise {
		t.Errorf("classifyArc() = %q, want %q", got, ArcValleyAndRise)
	}
}

func TestClassifyArc_Ascending(t *testing.T) {
	values := []float64{-1, 0, 1}
	if got := classifyArc(values); got != ArcAscending {
		t.Errorf("classifyArc() = %q, want %q", got, ArcAscending)
	}
}

func TestClassifyArc_Descending(t *testing.T) {
	values := []float64{1, 0, -1}
	if got := classifyArc(values); got != ArcDescending {
		t.Errorf("classifyArc() = %q, want %q", got, ArcDescending)
	}
}

func TestClassifyArc_ShortInputIsStable(t *testing.T) {
	if got := classifyArc([]float64{1, 2}); got != ArcStable {
		t.Errorf("classifyArc(len 2) = %q, want %q", got, ArcStable)
	}
}

func TestMean(t *testing.T) {
	if got := mean([]float64{1, 2, 3}); got != 2 {
		t.Errorf("mean() = %v, want 2", got)
	}
	if got := mean(nil); got != 0 {
		t.Errorf("mean(nil) = %v, want 0", got)
	}
}

func TestMeanAbsDiff(t *testing.T) {
	got := meanAbsDiff([]float64{1, 3, 1})
	if got != 2 {
		t.Errorf("meanAbsDiff() = %v, want 2", got)
	}
	if got := meanAbsDiff([]float64{1}); got != 0 {
		t.Errorf("meanAbsDiff(single value) = %v, want 0", got)
	}
}

func TestStddev(t *testing.T) {
	got := stddev([]float64{2, 2, 2})
	if got != 0 {
		t.Errorf("stddev(constant values) = %v, want 0", got)
	}
	got = stddev([]float64{1, 2, 3})
	want := math.Sqrt(2.0 / 3.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("stddev() = %v, want %v", got, want)
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.5, 0.5},
		{1.5, 1},
	}
	for _, tt := range tests {
		if got := clamp01(tt.in); got != tt.want {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFallbackFlow_CallbackCueDetected(t *testing.T) {
	f := fallbackFlow("remember when we talked about this?")
	if f.FlowType != FlowCallbackReference {
		t.Errorf("fallbackFlow() FlowType = %q, want %q", f.FlowType, FlowCallbackReference)
	}
	if f.VectorEnhanced {
		t.Error("fallbackFlow() should never report VectorEnhanced")
	}
}

func TestFallbackFlow_ShiftCueDetected(t *testing.T) {
	f := fallbackFlow("anyway, new topic for you")
	if f.FlowType != FlowTopicShift {
		t.Errorf("fallbackFlow() FlowType = %q, want %q", f.FlowType, FlowTopicShift)
	}
	if f.Prediction != PredictionLikelyTopicShift {
		t.Errorf("fallbackFlow() Prediction = %q, want %q", f.Prediction, PredictionLikelyTopicShift)
	}
}

func TestFallbackFlow_DepthCueDetected(t *testing.T) {
	f := fallbackFlow("honestly, I trust you with this")
	if f.FlowType != FlowEmotionalProgression {
		t.Errorf("fallbackFlow() FlowType = %q, want %q", f.FlowType, FlowEmotionalProgression)
	}
	if f.Depth != DepthPersonal {
		t.Errorf("fallbackFlow() Depth = %q, want %q", f.Depth, DepthPersonal)
	}
}

func TestFallbackFlow_NeutralWhenNoCueMatches(t *testing.T) {
	f := fallbackFlow("what time does the store open")
	if f.FlowType != FlowNeutral {
		t.Errorf("fallbackFlow() FlowType = %q, want %q", f.FlowType, FlowNeutral)
	}
	if f.Prediction != PredictionLikelyContinuation {
		t.Errorf("fallbackFlow() Prediction = %q, want %q", f.Prediction, PredictionLikelyContinuation)
	}
}

func TestContainsAny(t *testing.T) {
	if !containsAny("by the way, hello", shiftCues) {
		t.Error("containsAny() did not match an included cue")
	}
	if containsAny("nothing related here", shiftCues) {
		t.Error("containsAny() matched when no cue is present")
	}
}
