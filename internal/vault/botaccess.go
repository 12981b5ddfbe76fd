// botaccess.go implements the bot-facing surface: token verification and
// credential access.
//
// Verification is a pipeline where the store is authoritative over the
// signature. A token that passes signature checking is still refused when its
// stored record has been deleted (revoked), when the stored expiry has
// passed, or when the bot itself is gone or deactivated. Rate limiting sits
// before the store lookup so a flood of structurally valid tokens cannot turn
// into a flood of database queries.
package vault

import (
	"context"
	"time"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/telemetry"
)

// BotIdentity is the authenticated result of bot token verification.
type BotIdentity struct {
	BotID   string
	OwnerID string
	BotName string
}

func botVerification(outcome string) {
	telemetry.BotVerificationsTotal.WithLabelValues(outcome).Inc()
}

// VerifyBotAccess runs the full verification pipeline on a raw bearer token.
// All failures except rate limiting collapse into ErrUnauthorized.
func (s *Service) VerifyBotAccess(ctx context.Context, rawToken string) (*BotIdentity, error) {
	if rawToken == "" {
		botVerification("missing")
		return nil, ErrUnauthorized
	}

	// Signature first: forged tokens are rejected without touching the
	// limiter or the store.
	claims, err := s.botAuth.Verify(rawToken)
	if err != nil {
		botVerification("bad_signature")
		return nil, ErrUnauthorized
	}

	tokenHash := auth.HashToken(rawToken)

	result, err := s.limiter.Allow(ctx, tokenHash)
	if err != nil {
		return nil, storeErr("rate limiter", err)
	}
	if !result.Allowed {
		botVerification("rate_limited")
		return nil, &RateLimitedError{RetryAfter: result.RetryAfter}
	}

	// The stored record is what makes revocation work: no row, no access.
	record, err := s.botTokens.GetByHash(ctx, tokenHash)
	if err != nil {
		return nil, storeErr("lookup bot token", err)
	}
	if record == nil {
		botVerification("revoked")
		return nil, ErrUnauthorized
	}

	// Stored expiry governs even if the signed exp claim disagrees.
	if record.Expired(time.Now()) {
		botVerification("expired")
		return nil, ErrUnauthorized
	}

	bot, err := s.bots.GetByID(ctx, record.BotID)
	if err != nil {
		return nil, storeErr("lookup bot", err)
	}
	if bot == nil || !bot.IsActive {
		botVerification("bot_unavailable")
		return nil, ErrUnauthorized
	}
	// The signed claims must agree with the stored record; a mismatch means
	// the token was issued for a different bot or owner.
	if claims.BotID != bot.ID || claims.UserID != bot.UserID {
		botVerification("claims_mismatch")
		return nil, ErrUnauthorized
	}

	botVerification("ok")
	return &BotIdentity{BotID: bot.ID, OwnerID: bot.UserID, BotName: bot.Name}, nil
}

// BotListCredentials returns the metadata of every credential the bot has
// been granted. No payload is decrypted.
func (s *Service) BotListCredentials(ctx context.Context, identity *BotIdentity) ([]CredentialMeta, error) {
	creds, err := s.credentials.ListByBotPermissions(ctx, identity.BotID, identity.OwnerID)
	if err != nil {
		return nil, storeErr("list granted credentials", err)
	}

	metas := make([]CredentialMeta, 0, len(creds))
	for _, cred := range creds {
		metas = append(metas, metaOf(cred))
	}
	return metas, nil
}

// BotGetCredential decrypts one credential for an authenticated bot. The
// credential must belong to the bot's owner (otherwise ErrNotFound) and be
// covered by a grant (otherwise ErrForbidden). Every successful read is
// audited with both actor IDs.
func (s *Service) BotGetCredential(ctx context.Context, identity *BotIdentity, credentialID string) (*CredentialSecret, error) {
	cred, err := s.credentials.GetByIDAndUser(ctx, credentialID, identity.OwnerID)
	if err != nil {
		return nil, storeErr("lookup credential", err)
	}
	if cred == nil {
		return nil, ErrNotFound
	}

	granted, err := s.permissions.Exists(ctx, identity.BotID, cred.ID)
	if err != nil {
		return nil, storeErr("check grant", err)
	}
	if !granted {
		return nil, ErrForbidden
	}

	secret, err := s.decryptPayload(cred)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Bot(identity.BotID, identity.OwnerID, models.ActionBotCredentialAccess,
		"credential", cred.ID, map[string]interface{}{"label": cred.Label}))

	return &CredentialSecret{CredentialMeta: metaOf(cred), Secret: secret}, nil
}
