// audit_log.go defines the AuditLog model for recording security-relevant
// events, capturing actor, action, affected target, and arbitrary metadata.
// Entries are write-once: they are never updated, and deleted only by the
// owner-account cascade.
package models

import "time"

// Audit action vocabulary. Closed but extensible: every privileged operation
// appends exactly one entry drawn from this set.
const (
	ActionUserSignup        = "user.signup"
	ActionUserLogin         = "user.login"
	ActionUserMagicLink     = "user.magic_link"
	ActionUserPasswordReset = "user.password_reset"
	ActionProfileUpdate     = "user.profile.update"
	ActionPasswordChange    = "user.password.change"

	ActionCredentialCreate = "credential.create"
	ActionCredentialRead   = "credential.read"
	ActionCredentialUpdate = "credential.update"
	ActionCredentialDelete = "credential.delete"

	ActionCardCreate = "card.create"
	ActionCardDelete = "card.delete"

	ActionBotCreate            = "bot.create"
	ActionBotUpdate            = "bot.update"
	ActionBotDelete            = "bot.delete"
	ActionBotTokenCreate       = "bot.token.create"
	ActionBotTokenRevoke       = "bot.token.revoke"
	ActionBotPermissionsUpdate = "bot.permissions.update"
	ActionBotCredentialAccess  = "bot.credential.access"

	ActionOAuthConnect = "oauth.connect"
	ActionOAuthRefresh = "oauth.refresh"
)

// AuditLog represents one immutable audit trail entry. Exactly one of UserID
// and BotID identifies the initiating actor; bot-initiated entries carry both
// because a bot acts on behalf of its owner.
type AuditLog struct {
	ID         string
	UserID     *string
	BotID      *string
	Action     string
	TargetType *string // "credential", "bot", "user", "card", "connection"
	TargetID   *string
	Metadata   map[string]interface{}
	CreatedAt  time.Time

	// Joined fields for display (not stored in audit_log).
	Username *string
	BotName  *string
}
