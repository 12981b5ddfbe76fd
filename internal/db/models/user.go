// Package models defines the database model types for BotVault.
// Each type corresponds to a database table. Models are pure data types;
// business logic belongs in the vault service layer, query logic belongs in
// the repositories layer.
package models

import "time"

// User represents a vault owner account. Users own credentials and bots;
// deleting a user cascades to everything they own (see
// UserRepository.DeleteCascade for the ordering).
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // bcrypt hash, never the raw password
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
