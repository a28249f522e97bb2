package sirius

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenLifetime = 10 * time.Minute

// TokenSource issues bearer tokens for the status update call.
type TokenSource interface {
	Token() (string, error)
}

// AuthOption customises the authenticator.
type AuthOption func(*Authenticator)

// WithAuthClock overrides the clock used for iat and exp.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// Authenticator signs short lived HS256 tokens carrying the API user email in
// the session-data claim.
type Authenticator struct {
	secret    []byte
	userEmail string
	now       func() time.Time
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(secret, userEmail string, opts ...AuthOption) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("sirius: jwt secret is required")
	}
	a := &Authenticator{
		secret:    []byte(secret),
		userEmail: userEmail,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Token returns a signed token valid for ten minutes.
func (a *Authenticator) Token() (string, error) {
	issued := a.now().Truncate(time.Second)
	claims := jwt.MapClaims{
		"session-data": a.userEmail,
		"iat":          issued.Unix(),
		"exp":          issued.Add(tokenLifetime).Unix(),
		"jti":          uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sirius: sign token: %w", err)
	}
	return signed, nil
}
