// bot.go defines the Bot model for autonomous callers that access credentials
// through the /v1 bot API.
package models

import "time"

// Bot represents an autonomous caller registered by a user. The registration
// secret is shown once at creation and only its SHA-256 hash is stored.
// Inactive bots fail all token verification even with a structurally valid
// token.
type Bot struct {
	ID          string
	UserID      string
	Name        string
	Description *string
	SecretHash  string
	IsActive    bool
	CreatedAt   time.Time

	// PermissionCount is populated by list queries via subselect; it is not a
	// stored column.
	PermissionCount int
}
