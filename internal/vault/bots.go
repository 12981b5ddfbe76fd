// bots.go implements bot registration and permission management for owners.
package vault

import (
	"context"
	"strings"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/db/models"
)

const botNameMaxLength = 100

// BotCreated pairs a new bot with its registration secret, which is shown to
// the owner exactly once.
type BotCreated struct {
	Bot    *models.Bot
	Secret string
}

// CreateBot registers a new bot for the owner and returns its one-time
// registration secret.
func (s *Service) CreateBot(ctx context.Context, userID, name string, description *string) (*BotCreated, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("bot name is required")
	}
	if len(name) > botNameMaxLength {
		return nil, validationf("bot name must be at most %d characters", botNameMaxLength)
	}

	secret, hash, err := auth.GenerateBotSecret()
	if err != nil {
		return nil, storeErr("generate bot secret", err)
	}

	bot := &models.Bot{
		UserID:      userID,
		Name:        name,
		Description: description,
		SecretHash:  hash,
		IsActive:    true,
	}
	if err := s.bots.Create(ctx, bot); err != nil {
		return nil, storeErr("create bot", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionBotCreate, "bot", bot.ID,
		map[string]interface{}{"name": bot.Name}))

	return &BotCreated{Bot: bot, Secret: secret}, nil
}

// ListBots returns the owner's bots with their grant counts.
func (s *Service) ListBots(ctx context.Context, userID string) ([]*models.Bot, error) {
	bots, err := s.bots.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list bots", err)
	}
	return bots, nil
}

// GetBot loads one bot scoped to its owner.
func (s *Service) GetBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	bot, err := s.bots.GetByIDAndUser(ctx, botID, userID)
	if err != nil {
		return nil, storeErr("lookup bot", err)
	}
	if bot == nil {
		return nil, ErrNotFound
	}
	return bot, nil
}

// UpdateBot changes a bot's name, description, and active flag. Deactivating
// a bot makes all of its tokens fail verification without revoking them.
func (s *Service) UpdateBot(ctx context.Context, userID, botID, name string, description *string, isActive bool) (*models.Bot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("bot name is required")
	}
	if len(name) > botNameMaxLength {
		return nil, validationf("bot name must be at most %d characters", botNameMaxLength)
	}

	ok, err := s.bots.Update(ctx, botID, userID, name, description, isActive)
	if err != nil {
		return nil, storeErr("update bot", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	s.record(ctx, audit.Owner(userID, models.ActionBotUpdate, "bot", botID,
		map[string]interface{}{"name": name, "is_active": isActive}))

	return s.GetBot(ctx, userID, botID)
}

// DeleteBot removes a bot together with its tokens and grants. Every
// outstanding token is revoked by the deletion.
func (s *Service) DeleteBot(ctx context.Context, userID, botID string) error {
	deleted, err := s.bots.Delete(ctx, botID, userID)
	if err != nil {
		return storeErr("delete bot", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.record(ctx, audit.Owner(userID, models.ActionBotDelete, "bot", botID, nil))
	return nil
}

// ListBotPermissions returns a bot's current grants.
func (s *Service) ListBotPermissions(ctx context.Context, userID, botID string) ([]*models.Permission, error) {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	perms, err := s.permissions.ListByBot(ctx, botID)
	if err != nil {
		return nil, storeErr("list permissions", err)
	}
	return perms, nil
}

// UpdateBotPermissions replaces a bot's grant set with the given credential
// IDs. Every credential must belong to the same owner; the update is
// all-or-nothing.
func (s *Service) UpdateBotPermissions(ctx context.Context, userID, botID string, credentialIDs []string) error {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return err
	}

	seen := make(map[string]bool, len(credentialIDs))
	for _, credID := range credentialIDs {
		if seen[credID] {
			return validationf("credential %s listed more than once", credID)
		}
		seen[credID] = true

		cred, err := s.credentials.GetByIDAndUser(ctx, credID, userID)
		if err != nil {
			return storeErr("lookup credential", err)
		}
		if cred == nil {
			return validationf("credential %s does not exist", credID)
		}
	}

	if err := s.permissions.ReplaceForBot(ctx, botID, credentialIDs); err != nil {
		return storeErr("replace permissions", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionBotPermissionsUpdate, "bot", botID,
		map[string]interface{}{"credential_count": len(credentialIDs)}))
	return nil
}
