package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var botSecret = []byte("bot-token-test-secret-0123456789")

func TestBotTokenIssueVerify(t *testing.T) {
	svc := NewBotTokenService(botSecret)

	exp := time.Now().Add(30 * 24 * time.Hour)
	raw, jti, err := svc.Issue("bot-1", "user-1", &exp)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if jti == "" {
		t.Fatal("Issue() returned empty jti")
	}

	claims, err := svc.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.BotID != "bot-1" || claims.UserID != "user-1" {
		t.Errorf("claims = %+v, want bot-1/user-1", claims)
	}
	if claims.ID != jti {
		t.Errorf("claims jti = %q, want %q", claims.ID, jti)
	}
}

func TestBotTokenNeverExpires(t *testing.T) {
	svc := NewBotTokenService(botSecret)

	raw, _, err := svc.Issue("bot-1", "user-1", nil)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	claims, err := svc.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Errorf("claims.ExpiresAt = %v, want no expiration claim", claims.ExpiresAt)
	}
}

func TestBotTokenExpired(t *testing.T) {
	svc := NewBotTokenService(botSecret)

	exp := time.Now().Add(-time.Minute)
	raw, _, err := svc.Issue("bot-1", "user-1", &exp)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := svc.Verify(raw); !errors.Is(err, ErrInvalidBotToken) {
		t.Errorf("Verify() of expired token error = %v, want ErrInvalidBotToken", err)
	}
}

func TestBotTokenVerifyFailures(t *testing.T) {
	svc := NewBotTokenService(botSecret)

	t.Run("garbage", func(t *testing.T) {
		if _, err := svc.Verify("garbage"); !errors.Is(err, ErrInvalidBotToken) {
			t.Errorf("Verify() error = %v, want ErrInvalidBotToken", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewBotTokenService([]byte("some-other-signing-secret-123456"))
		raw, _, err := other.Issue("bot-1", "user-1", nil)
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}
		if _, err := svc.Verify(raw); !errors.Is(err, ErrInvalidBotToken) {
			t.Errorf("Verify() error = %v, want ErrInvalidBotToken", err)
		}
	})

	t.Run("missing bot id claim", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &BotClaims{
			UserID: "user-1",
		}).SignedString(botSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := svc.Verify(raw); !errors.Is(err, ErrInvalidBotToken) {
			t.Errorf("Verify() error = %v, want ErrInvalidBotToken", err)
		}
	})
}

func TestBotTokenHashStability(t *testing.T) {
	// The stored hash must be computed over the signed serialized token so the
	// revocation lookup matches what the bot presents on the wire.
	svc := NewBotTokenService(botSecret)
	raw, _, err := svc.Issue("bot-1", "user-1", nil)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if HashToken(raw) != HashToken(raw) {
		t.Error("token hash is not stable")
	}

	raw2, _, err := svc.Issue("bot-1", "user-1", nil)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if HashToken(raw) == HashToken(raw2) {
		t.Error("two issued tokens share a hash")
	}
}
