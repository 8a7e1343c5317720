package pipeline

import (
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrKind
	}{
		{"nil", nil, ""},
		{"direct unavailable", ErrUnavailable, KindUnavailable},
		{"wrapped invalid", fmt.Errorf("validate: %w", ErrInvalid), KindInvalid},
		{"wrapped persistence", fmt.Errorf("insert user turn: %w", ErrPersistenceFailure), KindPersistence},
		{"spoofing", ErrSpoofing, KindSpoofing},
		{"suspicious content", ErrSuspiciousContent, KindSuspiciousContent},
		{"budget exceeded", ErrBudgetExceeded, KindBudgetExceeded},
		{"timeout", ErrTimeout, KindTimeout},
		{"overloaded", ErrOverloaded, KindOverloaded},
		{"unknown", fmt.Errorf("some other failure"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
