package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for a cookie value that does not verify.
var ErrInvalidToken = errors.New("invalid session token")

const issuer = "grantscout"

// Signer issues and verifies HS256 tokens whose subject is a session id.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer keyed by secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret must not be empty")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Sign returns a signed token for the session id.
func (s *Signer) Sign(id string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  id,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(s.now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Verify checks the token signature and returns the session id it carries.
func (s *Signer) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: malformed session id", ErrInvalidToken)
	}
	return claims.Subject, nil
}
