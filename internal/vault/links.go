// links.go implements the single-use link token flows: magic-link login and
// password recovery. Both are enumeration-safe: requesting a link for an
// unknown email succeeds from the caller's point of view and simply produces
// nothing.
package vault

import (
	"context"
	"time"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/validation"
)

// RequestMagicLink creates a single-use login token for the account with the
// given email, valid for models.MagicLinkTTL. The returned raw token is empty
// when no such account exists; handlers must respond identically either way.
func (s *Service) RequestMagicLink(ctx context.Context, email string) (string, error) {
	return s.requestLink(ctx, email, models.PurposeMagicLink, models.MagicLinkTTL)
}

// RequestPasswordRecovery creates a single-use recovery token, valid for
// models.RecoveryTTL. Same enumeration-safety contract as RequestMagicLink.
func (s *Service) RequestPasswordRecovery(ctx context.Context, email string) (string, error) {
	return s.requestLink(ctx, email, models.PurposeRecovery, models.RecoveryTTL)
}

func (s *Service) requestLink(ctx context.Context, email string, purpose models.LinkTokenPurpose, ttl time.Duration) (string, error) {
	if err := validation.Email(email); err != nil {
		return "", &ValidationError{Message: err.Error()}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", storeErr("lookup email", err)
	}
	if user == nil {
		// Unknown address: succeed without issuing anything.
		return "", nil
	}

	raw, hash, err := auth.GenerateLinkToken()
	if err != nil {
		return "", storeErr("generate link token", err)
	}

	token := &models.LinkToken{
		UserID:    user.ID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.linkTokens.Create(ctx, token); err != nil {
		return "", storeErr("store link token", err)
	}

	if purpose == models.PurposeMagicLink {
		s.record(ctx, audit.Owner(user.ID, models.ActionUserMagicLink, "user", user.ID, nil))
	}
	return raw, nil
}

// RedeemMagicLink consumes a magic-link token and returns a logged-in
// session. Unknown, spent, and expired tokens are indistinguishable.
func (s *Service) RedeemMagicLink(ctx context.Context, rawToken string) (*Session, error) {
	userID, err := s.linkTokens.Redeem(ctx, auth.HashToken(rawToken), models.PurposeMagicLink)
	if err != nil {
		return nil, storeErr("redeem magic link", err)
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("lookup user", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	s.record(ctx, audit.Owner(user.ID, models.ActionUserLogin, "user", user.ID,
		map[string]interface{}{"method": "magic_link"}))

	return s.issueSession(user)
}

// ResetPassword consumes a recovery token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validation.Password(newPassword); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	userID, err := s.linkTokens.Redeem(ctx, auth.HashToken(rawToken), models.PurposeRecovery)
	if err != nil {
		return storeErr("redeem recovery token", err)
	}
	if userID == "" {
		return ErrUnauthorized
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return storeErr("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeErr("update password", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionUserPasswordReset, "user", userID, nil))
	return nil
}
