package attribution

import (
	"testing"
	"time"
)

func TestSigner_SignVerifyRoundTrip(t *testing.T) {
	s := NewSigner("test-secret", time.Minute, NewMemoryJTIStore())
	token, err := s.Sign("turn-1", "persona-1", "user-1", "user_1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.TurnID != "turn-1" || claims.PersonaID != "persona-1" || claims.UserID != "user-1" || claims.Role != "user_1" {
		t.Errorf("Verify() claims = %+v, want matching Sign() inputs", claims)
	}
}

func TestSigner_ReplayRejected(t *testing.T) {
	s := NewSigner("test-secret", time.Minute, NewMemoryJTIStore())
	token, err := s.Sign("turn-1", "persona-1", "user-1", "user_1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := s.Verify(token); err != nil {
		t.Fatalf("first Verify() error = %v", err)
	}
	if _, err := s.Verify(token); err != ErrTokenReplayed {
		t.Errorf("second Verify() error = %v, want ErrTokenReplayed", err)
	}
}

func TestSigner_WrongSecretRejected(t *testing.T) {
	s1 := NewSigner("secret-a", time.Minute, NewMemoryJTIStore())
	s2 := NewSigner("secret-b", time.Minute, NewMemoryJTIStore())

	token, err := s1.Sign("turn-1", "persona-1", "user-1", "user_1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, err := s2.Verify(token); err != ErrTokenInvalid {
		t.Errorf("Verify() with wrong secret error = %v, want ErrTokenInvalid", err)
	}
}

func TestSigner_ExpiredTokenRejected(t *testing.T) {
	s := NewSigner("test-secret", 10*time.Millisecond, NewMemoryJTIStore())
	token, err := s.Sign("turn-1", "persona-1", "user-1", "user_1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := s.Verify(token); err != ErrTokenExpired {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestSigner_EmptySecretRejectsSignAndVerify(t *testing.T) {
	s := NewSigner("", time.Minute, NewMemoryJTIStore())
	if _, err := s.Sign("turn-1", "persona-1", "user-1", "user_1"); err != ErrTokenInvalid {
		t.Errorf("Sign() with empty secret error = %v, want ErrTokenInvalid", err)
	}
	if _, err := s.Verify("anything"); err != ErrTokenInvalid {
		t.Errorf("Verify() with empty secret error = %v, want ErrTokenInvalid", err)
	}
}

func TestClaims_ToAttributionClaims(t *testing.T) {
	s := NewSigner("test-secret", time.Minute, NewMemoryJTIStore())
	token, err := s.Sign("turn-1", "persona-1", "user-1", "user_1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	ac := claims.ToAttributionClaims()
	if ac.TurnID != "turn-1" || ac.PersonaID != "persona-1" || ac.UserID != "user-1" || ac.Role != "user_1" {
		t.Errorf("ToAttributionClaims() = %+v, want matching claims", ac)
	}
	if ac.IssuedAt.IsZero() || ac.ExpiresAt.IsZero() {
		t.Error("ToAttributionClaims() left IssuedAt/ExpiresAt zero")
	}
}
