// link_token.go defines short-lived single-use tokens for magic-link login and
// password recovery. Only the SHA-256 hash is stored; the used flag is set
// atomically on redemption.
package models

import "time"

// LinkTokenPurpose distinguishes the two short-lived token flows.
type LinkTokenPurpose string

const (
	PurposeMagicLink LinkTokenPurpose = "magic_link"
	PurposeRecovery  LinkTokenPurpose = "recovery"
)

// TTL per purpose: magic links are valid 15 minutes, recovery tokens 60.
const (
	MagicLinkTTL = 15 * time.Minute
	RecoveryTTL  = 60 * time.Minute
)

// LinkToken represents one pending magic-link or recovery token.
type LinkToken struct {
	ID        string
	UserID    string
	Purpose   LinkTokenPurpose
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
