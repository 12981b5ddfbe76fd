// Package crypto implements the envelope encryption engine that protects
// credential payloads at rest. Every payload is sealed under a fresh one-time
// data-encryption key (DEK) with AES-256-GCM, and the DEK itself is sealed
// under a per-owner key-encryption key (KEK) derived on demand from a single
// process-wide master secret via HKDF-SHA256. The KEK is never stored.
//
// The two-layer design exists for key rotation: rotating the master secret
// (and hence every owner's KEK) requires only re-wrapping each 48-byte sealed
// DEK, never touching the payload ciphertext itself.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	kekInfo = "botvault-kek" // fixed HKDF context string, part of the on-disk format

	keySize = 32 // AES-256
	ivSize  = 12 // standard GCM nonce
	tagSize = 16 // GCM authentication tag
)

var (
	// ErrMasterSecretTooShort is returned when the master secret is shorter
	// than 16 bytes, which would weaken HKDF key derivation.
	ErrMasterSecretTooShort = errors.New("crypto: master secret must be at least 16 bytes")
	// ErrMalformed is returned when a stored envelope field has an impossible
	// length (truncated wrapped key, wrong IV size).
	ErrMalformed = errors.New("crypto: envelope is malformed or truncated")
	// ErrIntegrity is returned when GCM authentication fails at either layer.
	// This is a data-integrity failure, not a normal error path: the record
	// was tampered with, or decryption was attempted with the wrong owner's
	// KEK. No plaintext is ever returned alongside it.
	ErrIntegrity = errors.New("crypto: authentication failed, envelope tampered or wrong key")
)

// Envelope holds the four opaque pieces stored for one encrypted payload.
type Envelope struct {
	Ciphertext []byte // payload sealed under the DEK, without the tag
	WrappedKey []byte // dekIV || sealed DEK || dekTag
	IV         []byte // data-layer IV
	Tag        []byte // data-layer authentication tag
}

// EnvelopeCipher performs two-layer authenticated encryption of credential
// payloads. It is stateless beyond the master secret and safe for concurrent
// use.
type EnvelopeCipher struct {
	masterSecret []byte
}

// NewEnvelopeCipher creates an envelope cipher from the process-wide master
// secret. The secret is copied so later mutation of the caller's slice cannot
// affect derivation.
func NewEnvelopeCipher(masterSecret []byte) (*EnvelopeCipher, error) {
	if len(masterSecret) < 16 {
		return nil, ErrMasterSecretTooShort
	}
	secret := make([]byte, len(masterSecret))
	copy(secret, masterSecret)
	return &EnvelopeCipher{masterSecret: secret}, nil
}

// deriveKEK recomputes the owner's key-encryption key. Salt is the owner ID so
// two owners with the same master secret never share a KEK.
func (ec *EnvelopeCipher) deriveKEK(ownerID string) ([]byte, error) {
	kek := make([]byte, keySize)
	r := hkdf.New(sha256.New, ec.masterSecret, []byte(ownerID), []byte(kekInfo))
	if _, err := io.ReadFull(r, kek); err != nil {
		return nil, err
	}
	return kek, nil
}

// Encrypt seals plaintext for the given owner. Every call draws a fresh DEK
// and fresh IVs for both layers; payload updates never reuse an IV across
// versions.
func (ec *EnvelopeCipher) Encrypt(ownerID, plaintext string) (*Envelope, error) {
	dek := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, err
	}

	// Data layer: plaintext under the DEK.
	dataIV := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, dataIV); err != nil {
		return nil, err
	}
	dataAEAD, err := newAEAD(dek)
	if err != nil {
		return nil, err
	}
	sealed := dataAEAD.Seal(nil, dataIV, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	// Key layer: DEK under the owner's KEK, with its own fresh IV.
	kek, err := ec.deriveKEK(ownerID)
	if err != nil {
		return nil, err
	}
	dekIV := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, dekIV); err != nil {
		return nil, err
	}
	kekAEAD, err := newAEAD(kek)
	if err != nil {
		return nil, err
	}
	wrapped := make([]byte, 0, ivSize+keySize+tagSize)
	wrapped = append(wrapped, dekIV...)
	wrapped = kekAEAD.Seal(wrapped, dekIV, dek, nil)

	return &Envelope{
		Ciphertext: ciphertext,
		WrappedKey: wrapped,
		IV:         dataIV,
		Tag:        tag,
	}, nil
}

// Decrypt reverses both layers and returns the plaintext. A tag mismatch at
// either layer fails closed with ErrIntegrity; no partial plaintext is ever
// returned.
func (ec *EnvelopeCipher) Decrypt(ownerID string, env *Envelope) (string, error) {
	if len(env.IV) != ivSize || len(env.Tag) != tagSize {
		return "", ErrMalformed
	}
	if len(env.WrappedKey) < ivSize+tagSize+1 {
		return "", ErrMalformed
	}

	// Unwrap the DEK under the owner's KEK.
	kek, err := ec.deriveKEK(ownerID)
	if err != nil {
		return "", err
	}
	kekAEAD, err := newAEAD(kek)
	if err != nil {
		return "", err
	}
	dekIV := env.WrappedKey[:ivSize]
	sealedDEK := env.WrappedKey[ivSize:]
	dek, err := kekAEAD.Open(nil, dekIV, sealedDEK, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	if len(dek) != keySize {
		return "", ErrMalformed
	}

	// Open the data layer with the recovered DEK.
	dataAEAD, err := newAEAD(dek)
	if err != nil {
		return "", err
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+tagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plaintext, err := dataAEAD.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}

	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// GenerateMasterSecret creates a cryptographically secure random 32-byte
// master secret, for first-time setup tooling.
func GenerateMasterSecret() ([]byte, error) {
	secret := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, err
	}
	return secret, nil
}
