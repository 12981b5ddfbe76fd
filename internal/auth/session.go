// session.go implements signed session tokens for authenticated human owners.
// Sessions are pure bearer tokens; nothing is persisted server-side, so a
// compromised session token stays valid until natural expiry.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the validity window of an owner session.
const SessionTTL = 7 * 24 * time.Hour

// ErrInvalidSession is the single failure outcome of session verification.
// Bad signature, malformed structure, and expiry all collapse into it so
// callers cannot distinguish why verification failed.
var ErrInvalidSession = errors.New("auth: invalid session")

// SessionClaims carries the owner identity asserted by a session token.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies owner session tokens with a single
// process-wide signing secret.
type SessionService struct {
	secret []byte
}

// NewSessionService creates a session service. The secret must be non-empty;
// length validation happens at config load.
func NewSessionService(secret []byte) *SessionService {
	return &SessionService{secret: secret}
}

// Issue signs a session token for the given owner, valid for SessionTTL.
func (s *SessionService) Issue(userID, username, email string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:   userID,
		Username: username,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			Subject:   userID,
			Issuer:    "botvault",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and returns the owner claims. Every
// failure mode returns ErrInvalidSession.
func (s *SessionService) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.UserID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
