// connections.go implements OAuth provider connections. A connection is a
// credential of type "oauth" whose payload holds the provider's token set.
// Refresh uses the provider's client configuration and the stored refresh
// token; the rotated token set replaces the stored payload.
package vault

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/validation"
	"golang.org/x/oauth2"
)

// ConnectionStatus is the secret-free view of an OAuth connection.
type ConnectionStatus struct {
	ID        string
	Label     string
	Provider  string
	Active    bool
	Expiry    time.Time
	CreatedAt time.Time
}

// CreateConnection stores a provider token set obtained out of band (for
// example, from a completed authorization code exchange).
func (s *Service) CreateConnection(ctx context.Context, userID, label string, data models.OAuthData) (*ConnectionStatus, error) {
	if data.Provider == "" {
		return nil, validationf("provider is required")
	}
	if data.AccessToken == "" {
		return nil, validationf("access token is required")
	}

	if err := validation.Label(label); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, storeErr("encode connection", err)
	}

	env, err := s.encryptPayload(userID, string(payload))
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{
		UserID:        userID,
		Type:          models.TypeOAuth,
		Label:         strings.TrimSpace(label),
		EncryptedData: env.Ciphertext,
		EncryptedDEK:  env.WrappedKey,
		IV:            env.IV,
		AuthTag:       env.Tag,
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		return nil, storeErr("create connection", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionOAuthConnect, "connection", cred.ID,
		map[string]interface{}{"provider": data.Provider}))

	return &ConnectionStatus{
		ID:        cred.ID,
		Label:     cred.Label,
		Provider:  data.Provider,
		Active:    data.Active(time.Now()),
		Expiry:    data.Expiry,
		CreatedAt: cred.CreatedAt,
	}, nil
}

// ListConnections returns the status of every OAuth connection the owner
// holds. Payloads are decrypted to read provider and expiry but tokens are
// never returned.
func (s *Service) ListConnections(ctx context.Context, userID string) ([]ConnectionStatus, error) {
	creds, err := s.credentials.ListByUserAndType(ctx, userID, models.TypeOAuth)
	if err != nil {
		return nil, storeErr("list connections", err)
	}

	now := time.Now()
	statuses := make([]ConnectionStatus, 0, len(creds))
	for _, cred := range creds {
		plaintext, err := s.decryptPayload(cred)
		if err != nil {
			s.logger.Error("skipping undecryptable connection", "credential_id", cred.ID, "error", err)
			continue
		}
		data, err := models.DecodeOAuthData(plaintext)
		if err != nil {
			s.logger.Error("skipping malformed connection payload", "credential_id", cred.ID, "error", err)
			continue
		}
		statuses = append(statuses, ConnectionStatus{
			ID:        cred.ID,
			Label:     cred.Label,
			Provider:  data.Provider,
			Active:    data.Active(now),
			Expiry:    data.Expiry,
			CreatedAt: cred.CreatedAt,
		})
	}
	return statuses, nil
}

// RefreshConnection exchanges the stored refresh token for a fresh token set
// and re-encrypts the connection payload. The provider must be configured at
// startup.
func (s *Service) RefreshConnection(ctx context.Context, userID, id string) (*ConnectionStatus, error) {
	cred, err := s.credentials.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, storeErr("lookup connection", err)
	}
	if cred == nil || cred.Type != models.TypeOAuth {
		return nil, ErrNotFound
	}

	plaintext, err := s.decryptPayload(cred)
	if err != nil {
		return nil, err
	}
	data, err := models.DecodeOAuthData(plaintext)
	if err != nil {
		return nil, ErrIntegrity
	}

	provider, ok := s.oauthProviders[data.Provider]
	if !ok {
		return nil, validationf("provider %q is not configured for refresh", data.Provider)
	}
	if data.RefreshToken == "" {
		return nil, validationf("connection has no refresh token")
	}

	// Forcing expiry makes TokenSource hit the provider instead of returning
	// the cached access token.
	stale := &oauth2.Token{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		TokenType:    data.TokenType,
		Expiry:       time.Now().Add(-time.Minute),
	}
	fresh, err := provider.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, storeErr("refresh provider token", err)
	}

	data.AccessToken = fresh.AccessToken
	data.TokenType = fresh.TokenType
	data.Expiry = fresh.Expiry
	if fresh.RefreshToken != "" {
		data.RefreshToken = fresh.RefreshToken
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, storeErr("encode connection", err)
	}
	env, err := s.encryptPayload(userID, string(payload))
	if err != nil {
		return nil, err
	}
	ok, err = s.credentials.UpdatePayload(ctx, id, userID, env.Ciphertext, env.WrappedKey, env.IV, env.Tag)
	if err != nil {
		return nil, storeErr("store refreshed connection", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	s.record(ctx, audit.Owner(userID, models.ActionOAuthRefresh, "connection", id,
		map[string]interface{}{"provider": data.Provider}))

	return &ConnectionStatus{
		ID:        cred.ID,
		Label:     cred.Label,
		Provider:  data.Provider,
		Active:    data.Active(time.Now()),
		Expiry:    data.Expiry,
		CreatedAt: cred.CreatedAt,
	}, nil
}
