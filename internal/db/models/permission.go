// permission.go defines the Permission grant edge between a bot and a
// credential. Absence of a row is an implicit deny; there is no explicit deny
// record.
package models

import "time"

// Permission grants one bot access to one credential at a given level. The
// (bot_id, credential_id) pair is unique: at most one grant per edge.
type Permission struct {
	ID           string
	BotID        string
	CredentialID string
	Level        string
	GrantedAt    time.Time
}

// DefaultPermissionLevel is used when a grant does not specify a level.
const DefaultPermissionLevel = "full"
