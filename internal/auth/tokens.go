package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the only supported JWT claims shape for this service.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
}

// Manager signs and verifies the session tokens handed out after OTP
// verification.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewManager creates a token manager. The secret is required.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("auth: JWT secret is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		issuer: "bolchaal",
		ttl:    ttl,
	}, nil
}

// Issue mints an HS256 session token for a verified user.
func (m *Manager) Issue(now time.Time, userID uuid.UUID, phoneNumber string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		UserID:      userID.String(),
		PhoneNumber: phoneNumber,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token.
func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second),
	)

	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: user_id missing", ErrInvalidToken)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return Claims{}, fmt.Errorf("%w: malformed user_id", ErrInvalidToken)
	}
	return claims, nil
}
