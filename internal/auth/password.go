// Package auth provides the authentication primitives for BotVault: password
// hashing, session JWTs for human owners, bot JWTs with revocation support,
// and generation/hashing of opaque secrets (bot registration secrets, magic
// links, recovery tokens).
//
// Two hash families are used deliberately:
//   - bcrypt for passwords, where slowness is the point;
//   - SHA-256 for bearer secrets that must be looked up by hash. These are
//     high-entropy random values, so a fast deterministic hash is safe and
//     allows an indexed equality query on the stored hash.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashing.
const BcryptCost = 12

// HashPassword hashes a raw password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// HashToken computes the SHA-256 hex digest of a bearer secret for storage
// and lookup. The raw secret is never persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyTokenHash compares a raw secret against a stored SHA-256 hex digest
// in constant time.
func VerifyTokenHash(raw, storedHash string) bool {
	computed := HashToken(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// GenerateBotSecret creates a bot registration secret and its storage hash.
// The raw secret is shown to the owner exactly once at bot creation.
func GenerateBotSecret() (raw string, hash string, err error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", "", fmt.Errorf("failed to generate bot secret: %w", err)
	}
	raw = "bv_" + hex.EncodeToString(random)
	return raw, HashToken(raw), nil
}

// GenerateLinkToken creates a single-use link token (magic link or password
// recovery) and its storage hash.
func GenerateLinkToken() (raw string, hash string, err error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", "", fmt.Errorf("failed to generate link token: %w", err)
	}
	raw = hex.EncodeToString(random)
	return raw, HashToken(raw), nil
}
