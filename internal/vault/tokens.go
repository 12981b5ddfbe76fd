// tokens.go implements issuing and revoking bot bearer tokens. Tokens are
// signed JWTs, but the stored record is authoritative: deleting the record
// revokes the token no matter how valid its signature remains.
package vault

import (
	"context"
	"time"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/db/models"
)

// tokenTTLs is the closed set of lifetimes an owner can choose at issuance.
var tokenTTLs = map[string]time.Duration{
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// TokenTTLNever selects a token without an expiration claim. Its stored
// record carries the far-future sentinel so expiry checks stay uniform.
const TokenTTLNever = "never"

// TokenIssued pairs a stored token record with the raw signed token, which is
// returned to the owner exactly once.
type TokenIssued struct {
	Record *models.BotToken
	Token  string
}

// IssueBotToken signs and stores a new bearer token for one of the owner's
// bots. ttl must be "30d", "90d", "1y", or "never".
func (s *Service) IssueBotToken(ctx context.Context, userID, botID, ttl string) (*TokenIssued, error) {
	bot, err := s.GetBot(ctx, userID, botID)
	if err != nil {
		return nil, err
	}

	issued, err := s.mintToken(ctx, bot, ttl)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Owner(userID, models.ActionBotTokenCreate, "bot", bot.ID,
		map[string]interface{}{"token_id": issued.Record.ID, "ttl": ttl}))

	return issued, nil
}

// ExchangeBotSecret authenticates a bot by its registration secret and issues
// a bearer token, so a bot can bootstrap its first token without the owner
// issuing one by hand. Every failure collapses into ErrUnauthorized; the
// issuance lands in the owner's audit trail with the bot as actor.
func (s *Service) ExchangeBotSecret(ctx context.Context, botID, secret, ttl string) (*TokenIssued, error) {
	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		return nil, storeErr("lookup bot", err)
	}
	if bot == nil || !bot.IsActive {
		return nil, ErrUnauthorized
	}
	if !auth.VerifyTokenHash(secret, bot.SecretHash) {
		return nil, ErrUnauthorized
	}

	issued, err := s.mintToken(ctx, bot, ttl)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Bot(bot.ID, bot.UserID, models.ActionBotTokenCreate, "bot", bot.ID,
		map[string]interface{}{"token_id": issued.Record.ID, "ttl": ttl, "grant": "secret"}))

	return issued, nil
}

// mintToken signs and stores a token for bot with the chosen lifetime.
func (s *Service) mintToken(ctx context.Context, bot *models.Bot, ttl string) (*TokenIssued, error) {
	var (
		expiresAt time.Time
		claimExp  *time.Time
	)
	switch ttl {
	case TokenTTLNever:
		expiresAt = models.NeverExpires
	default:
		d, ok := tokenTTLs[ttl]
		if !ok {
			return nil, validationf("ttl must be one of 30d, 90d, 1y, never")
		}
		expiresAt = time.Now().Add(d)
		claimExp = &expiresAt
	}

	raw, _, err := s.botAuth.Issue(bot.ID, bot.UserID, claimExp)
	if err != nil {
		return nil, storeErr("sign bot token", err)
	}

	record := &models.BotToken{
		BotID:     bot.ID,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: expiresAt,
	}
	if err := s.botTokens.Create(ctx, record); err != nil {
		return nil, storeErr("store bot token", err)
	}

	return &TokenIssued{Record: record, Token: raw}, nil
}

// ListBotTokens returns a bot's outstanding token records. Raw tokens are
// unrecoverable; only hashes and expiry metadata are stored.
func (s *Service) ListBotTokens(ctx context.Context, userID, botID string) ([]*models.BotToken, error) {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	tokens, err := s.botTokens.ListByBot(ctx, botID)
	if err != nil {
		return nil, storeErr("list bot tokens", err)
	}
	return tokens, nil
}

// RevokeBotToken deletes one token record, immediately invalidating the
// corresponding bearer token.
func (s *Service) RevokeBotToken(ctx context.Context, userID, botID, tokenID string) error {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return err
	}

	deleted, err := s.botTokens.Delete(ctx, tokenID, botID)
	if err != nil {
		return storeErr("revoke bot token", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.record(ctx, audit.Owner(userID, models.ActionBotTokenRevoke, "bot", botID,
		map[string]interface{}{"token_id": tokenID}))
	return nil
}
