package auth

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	t.Run("correct password validates", func(t *testing.T) {
		hash, err := HashPassword("Sup3rSecret!")
		if err != nil {
			t.Fatalf("HashPassword() error: %v", err)
		}
		if !CheckPassword("Sup3rSecret!", hash) {
			t.Error("CheckPassword() returned false for correct password")
		}
	})

	t.Run("wrong password does not validate", func(t *testing.T) {
		hash, err := HashPassword("Sup3rSecret!")
		if err != nil {
			t.Fatalf("HashPassword() error: %v", err)
		}
		if CheckPassword("sup3rsecret!", hash) {
			t.Error("CheckPassword() returned true for wrong password")
		}
	})

	t.Run("hash is never the raw password", func(t *testing.T) {
		hash, err := HashPassword("Sup3rSecret!")
		if err != nil {
			t.Fatalf("HashPassword() error: %v", err)
		}
		if strings.Contains(hash, "Sup3rSecret") {
			t.Error("hash contains the raw password")
		}
	})

	t.Run("empty hash does not validate", func(t *testing.T) {
		if CheckPassword("anything", "") {
			t.Error("CheckPassword() returned true for empty hash")
		}
	})
}

func TestHashToken(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		if HashToken("bv_abc") != HashToken("bv_abc") {
			t.Error("HashToken() is not deterministic")
		}
	})

	t.Run("64 hex chars", func(t *testing.T) {
		h := HashToken("bv_abc")
		if len(h) != 64 {
			t.Errorf("HashToken() length = %d, want 64", len(h))
		}
	})

	t.Run("verify matches", func(t *testing.T) {
		h := HashToken("raw-value")
		if !VerifyTokenHash("raw-value", h) {
			t.Error("VerifyTokenHash() returned false for matching secret")
		}
		if VerifyTokenHash("other-value", h) {
			t.Error("VerifyTokenHash() returned true for wrong secret")
		}
	})
}

func TestGenerateBotSecret(t *testing.T) {
	raw, hash, err := GenerateBotSecret()
	if err != nil {
		t.Fatalf("GenerateBotSecret() error: %v", err)
	}
	if !strings.HasPrefix(raw, "bv_") {
		t.Errorf("secret = %q, want bv_ prefix", raw)
	}
	if hash != HashToken(raw) {
		t.Error("returned hash does not match HashToken(raw)")
	}

	raw2, _, err := GenerateBotSecret()
	if err != nil {
		t.Fatalf("GenerateBotSecret() error: %v", err)
	}
	if raw == raw2 {
		t.Error("two generated secrets are identical")
	}
}

func TestGenerateLinkToken(t *testing.T) {
	raw, hash, err := GenerateLinkToken()
	if err != nil {
		t.Fatalf("GenerateLinkToken() error: %v", err)
	}
	if len(raw) != 64 {
		t.Errorf("raw token length = %d, want 64 hex chars", len(raw))
	}
	if hash != HashToken(raw) {
		t.Error("returned hash does not match HashToken(raw)")
	}
}
