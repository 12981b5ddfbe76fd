// credential.go defines the Credential model and the closed credential type
// enum, plus the JSON shapes stored inside card and OAuth payloads.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CredentialType is a closed enum of credential kinds. The type only affects
// display and validation; the encrypted payload format is identical across
// variants.
type CredentialType string

const (
	TypeAPIKey CredentialType = "api_key"
	TypeSecret CredentialType = "secret"
	TypeToken  CredentialType = "token"
	TypeOAuth  CredentialType = "oauth"
	TypeCard   CredentialType = "card"
	TypeCustom CredentialType = "custom"
)

// CredentialTypes lists every valid credential type, in display order.
var CredentialTypes = []CredentialType{
	TypeAPIKey, TypeSecret, TypeToken, TypeOAuth, TypeCard, TypeCustom,
}

// Valid reports whether t is one of the known credential types.
func (t CredentialType) Valid() bool {
	switch t {
	case TypeAPIKey, TypeSecret, TypeToken, TypeOAuth, TypeCard, TypeCustom:
		return true
	}
	return false
}

// Credential represents one protected secret belonging to a user. The four
// payload columns are the output of the envelope cipher and are opaque to
// every layer except internal/crypto.
type Credential struct {
	ID            string
	UserID        string
	Type          CredentialType
	Label         string
	EncryptedData []byte // AES-256-GCM ciphertext (without tag)
	EncryptedDEK  []byte // dekIV || sealed DEK || dekTag
	IV            []byte // 12-byte data IV
	AuthTag       []byte // 16-byte data authentication tag
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CardData is the JSON document stored inside a card credential's payload.
type CardData struct {
	CardholderName string `json:"cardholder_name"`
	CardNumber     string `json:"card_number"`
	ExpiryMonth    string `json:"expiry_month"`
	ExpiryYear     string `json:"expiry_year"`
	CVV            string `json:"cvv"`
}

// Last4 returns the final four digits of the card number for masked display.
func (c *CardData) Last4() string {
	if len(c.CardNumber) < 4 {
		return c.CardNumber
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}

// OAuthData is the JSON document stored inside an oauth credential's payload.
// Provider tokens are treated as opaque secrets; only the expiry field is
// interpreted, to report connection status without a provider round-trip.
type OAuthData struct {
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Active reports whether the stored access token is still valid at now.
func (o *OAuthData) Active(now time.Time) bool {
	return o.Expiry.After(now)
}

// DecodeOAuthData parses the decrypted payload of an oauth credential.
func DecodeOAuthData(plaintext string) (*OAuthData, error) {
	var d OAuthData
	if err := json.Unmarshal([]byte(plaintext), &d); err != nil {
		return nil, fmt.Errorf("malformed oauth payload: %w", err)
	}
	return &d, nil
}

// DecodeCardData parses the decrypted payload of a card credential.
func DecodeCardData(plaintext string) (*CardData, error) {
	var d CardData
	if err := json.Unmarshal([]byte(plaintext), &d); err != nil {
		return nil, fmt.Errorf("malformed card payload: %w", err)
	}
	return &d, nil
}
