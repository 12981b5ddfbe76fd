// Package vault implements the BotVault service layer: account lifecycle,
// credential and card storage under envelope encryption, bot registration and
// bearer tokens, permission grants, the bot access pipeline, OAuth
// connections, and the audit query surface.
//
// The service owns all authorization decisions. Handlers authenticate the
// caller and translate between HTTP and these methods; repositories execute
// queries but never decide who may see what.
package vault

import (
	"context"
	"errors"
	"log/slog"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/crypto"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/db/repositories"
	"github.com/botvault/botvault/internal/ratelimit"
	"github.com/botvault/botvault/internal/telemetry"
	"golang.org/x/oauth2"
)

// Service coordinates repositories, the envelope cipher, token services, the
// rate limiter, and the audit recorder.
type Service struct {
	users       *repositories.UserRepository
	credentials *repositories.CredentialRepository
	bots        *repositories.BotRepository
	botTokens   *repositories.BotTokenRepository
	permissions *repositories.PermissionRepository
	linkTokens  *repositories.LinkTokenRepository
	auditRepo   *repositories.AuditRepository

	cipher   *crypto.EnvelopeCipher
	sessions *auth.SessionService
	botAuth  *auth.BotTokenService
	limiter  ratelimit.Limiter
	recorder *audit.Recorder

	// oauthProviders maps provider names to their client configuration, used
	// to refresh stored OAuth connections. Nil disables refresh.
	oauthProviders map[string]*oauth2.Config

	auditPageSize int
	logger        *slog.Logger
}

// Options carries the dependencies for New. All repository, cipher, and token
// service fields are required; Limiter, Recorder, OAuthProviders, and Logger
// are optional.
type Options struct {
	Users       *repositories.UserRepository
	Credentials *repositories.CredentialRepository
	Bots        *repositories.BotRepository
	BotTokens   *repositories.BotTokenRepository
	Permissions *repositories.PermissionRepository
	LinkTokens  *repositories.LinkTokenRepository
	AuditRepo   *repositories.AuditRepository

	Cipher   *crypto.EnvelopeCipher
	Sessions *auth.SessionService
	BotAuth  *auth.BotTokenService
	Limiter  ratelimit.Limiter
	Recorder *audit.Recorder

	OAuthProviders map[string]*oauth2.Config

	AuditPageSize int
	Logger        *slog.Logger
}

// New creates the vault service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	pageSize := opts.AuditPageSize
	if pageSize <= 0 {
		pageSize = repositories.AuditPageSize
	}
	return &Service{
		users:          opts.Users,
		credentials:    opts.Credentials,
		bots:           opts.Bots,
		botTokens:      opts.BotTokens,
		permissions:    opts.Permissions,
		linkTokens:     opts.LinkTokens,
		auditRepo:      opts.AuditRepo,
		cipher:         opts.Cipher,
		sessions:       opts.Sessions,
		botAuth:        opts.BotAuth,
		limiter:        limiter,
		recorder:       opts.Recorder,
		oauthProviders: opts.OAuthProviders,
		auditPageSize:  pageSize,
		logger:         logger,
	}
}

// Sessions exposes the session token service for the auth middleware.
func (s *Service) Sessions() *auth.SessionService {
	return s.sessions
}

// record appends an audit entry when a recorder is configured.
func (s *Service) record(ctx context.Context, entry *models.AuditLog) {
	if s.recorder != nil {
		s.recorder.Record(ctx, entry)
	}
}

// encryptPayload seals plaintext under the owner's envelope and counts the
// operation.
func (s *Service) encryptPayload(ownerID, plaintext string) (*crypto.Envelope, error) {
	env, err := s.cipher.Encrypt(ownerID, plaintext)
	if err != nil {
		telemetry.EnvelopeOperationsTotal.WithLabelValues("encrypt", "error").Inc()
		return nil, storeErr("encrypt payload", err)
	}
	telemetry.EnvelopeOperationsTotal.WithLabelValues("encrypt", "ok").Inc()
	return env, nil
}

// decryptPayload opens a stored credential payload. Any authentication or
// format failure becomes ErrIntegrity: the record cannot be trusted, and the
// caller gets no detail about which layer failed.
func (s *Service) decryptPayload(cred *models.Credential) (string, error) {
	env := &crypto.Envelope{
		Ciphertext: cred.EncryptedData,
		WrappedKey: cred.EncryptedDEK,
		IV:         cred.IV,
		Tag:        cred.AuthTag,
	}
	plaintext, err := s.cipher.Decrypt(cred.UserID, env)
	if err != nil {
		telemetry.EnvelopeOperationsTotal.WithLabelValues("decrypt", "error").Inc()
		if errors.Is(err, crypto.ErrIntegrity) || errors.Is(err, crypto.ErrMalformed) {
			s.logger.Error("credential payload failed integrity check",
				"credential_id", cred.ID, "error", err)
			return "", ErrIntegrity
		}
		return "", storeErr("decrypt payload", err)
	}
	telemetry.EnvelopeOperationsTotal.WithLabelValues("decrypt", "ok").Inc()
	return plaintext, nil
}
