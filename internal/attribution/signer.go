package attribution

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"clone-llm/internal/domain"
)

// Claims is the signed, tamper-resistant binding between a turn and the
// role it was attributed. Adapted from the teacher's JWTService.Claims
// (same jwt.RegisteredClaims embedding, same HS256 signing), repurposed
// from a long-lived user session token to a short-lived per-turn
// role-attribution token.
type Claims struct {
	TurnID    string `json:"turn_id"`
	PersonaID string `json:"persona_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("attribution token invalid")
	ErrTokenExpired = errors.New("attribution token expired")
	ErrTokenReplayed = errors.New("attribution token already spent")
)

// Signer issues and verifies per-turn attribution tokens, same HS256 +
// jti idiom as the teacher's JWTService, but single-use (verified tokens are
// marked spent in a JTIStore) rather than refreshable.
type Signer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	spent  JTIStore
}

func NewSigner(secret string, ttl time.Duration, spent JTIStore) *Signer {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Signer{secret: []byte(secret), ttl: ttl, issuer: "clone-llm-attribution", spent: spent}
}

// Sign produces a token binding one turn to the attributed role.
func (s *Signer) Sign(turnID, personaID, userID, role string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenInvalid
	}
	now := time.Now().UTC()
	claims := Claims{
		TurnID:    turnID,
		PersonaID: personaID,
		UserID:    userID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   turnID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token, rejecting tokens that have already
// been spent (single-use replay protection).
func (s *Signer) Verify(tokenString string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrTokenInvalid
	}

	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if claims.Issuer != s.issuer || claims.TurnID == "" || claims.ID == "" {
		return Claims{}, ErrTokenInvalid
	}

	if s.spent != nil {
		already, err := s.spent.Exists(claims.ID)
		if err != nil {
			return Claims{}, err
		}
		if already {
			return Claims{}, ErrTokenReplayed
		}
		if err := s.spent.MarkSpent(claims.ID, s.ttl); err != nil {
			return Claims{}, err
		}
	}

	return claims, nil
}

// ToAttributionClaims converts the signed token's claims to the persisted
// shape used elsewhere in the pipeline.
func (c Claims) ToAttributionClaims() domain.AttributionClaims {
	var issuedAt, expiresAt time.Time
	if c.IssuedAt != nil {
		issuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.Time
	}
	return domain.AttributionClaims{
		TurnID:    c.TurnID,
		PersonaID: c.PersonaID,
		UserID:    c.UserID,
		Role:      c.Role,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
}
