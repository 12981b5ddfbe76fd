// bottoken.go implements the cryptographic half of bot bearer tokens: signing
// and signature verification. The authorization pipeline around it (rate
// limiting, the stored-record check that makes revocation work, bot liveness)
// lives in the vault service, which is deliberate: the store is authoritative
// over the signature, so a signature-valid token is not yet a valid token.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidBotToken is the single failure outcome of bot token signature
// verification (bad signature, malformed structure, expired, missing claims).
var ErrInvalidBotToken = errors.New("auth: invalid bot token")

// BotClaims carries the identities asserted by a signed bot token. The jti
// (RegisteredClaims.ID) links the token to its stored revocation record.
type BotClaims struct {
	BotID  string `json:"bot_id"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// BotTokenService signs and verifies bot bearer tokens.
type BotTokenService struct {
	secret []byte
}

// NewBotTokenService creates a bot token service with the process signing
// secret.
func NewBotTokenService(secret []byte) *BotTokenService {
	return &BotTokenService{secret: secret}
}

// Issue signs a token for (botID, userID). A nil expiresAt issues a token
// with no expiration claim ("never expires"); the stored record still carries
// the far-future sentinel so expiry checks stay uniform. Returns the raw
// signed token and its jti. The raw token is returned to the caller exactly
// once and is unrecoverable thereafter; only its hash is persisted.
func (s *BotTokenService) Issue(botID, userID string, expiresAt *time.Time) (raw string, jti string, err error) {
	now := time.Now()
	jti = uuid.New().String()
	claims := &BotClaims{
		BotID:  botID,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       jti,
			IssuedAt: jwt.NewNumericDate(now),
			Subject:  botID,
			Issuer:   "botvault",
		},
	}
	if expiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*expiresAt)
	}
	raw, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return raw, jti, nil
}

// Verify checks the signature and structural validity of a raw bot token and
// returns its claims. It does NOT consult the token store; callers must
// treat a successful result as only the first step of authorization.
func (s *BotTokenService) Verify(raw string) (*BotClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &BotClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidBotToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidBotToken
	}
	claims, ok := token.Claims.(*BotClaims)
	if !ok || claims.BotID == "" || claims.UserID == "" {
		return nil, ErrInvalidBotToken
	}
	return claims, nil
}
