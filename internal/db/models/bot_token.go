// bot_token.go defines the BotToken model. A bot token is a capability, not
// an identity: multiple tokens may exist per bot, each independently revocable
// by deleting its row. Only a one-way hash of the signed token is stored.
package models

import "time"

// NeverExpires is the sentinel expiry stored for tokens issued with ttl
// "never". Using a far-future timestamp instead of NULL keeps the expiry
// comparison in verification a single branch-free predicate.
var NeverExpires = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// BotToken represents one issued bearer credential for a bot.
type BotToken struct {
	ID        string
	BotID     string
	TokenHash string // SHA-256 hex of the signed, serialized token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the stored expiry has elapsed at now.
func (t *BotToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// Never reports whether the token was issued without an expiry.
func (t *BotToken) Never() bool {
	return t.ExpiresAt.Equal(NeverExpires)
}
