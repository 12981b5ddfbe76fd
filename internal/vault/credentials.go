// credentials.go implements the owner-facing credential operations. Secrets
// appear in exactly two places: the plaintext handed in at create/update, and
// the plaintext returned by an explicit read. Lists never decrypt.
package vault

import (
	"context"
	"strings"
	"time"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/validation"
)

// maxSecretSize bounds the plaintext accepted for one credential.
const maxSecretSize = 64 * 1024

// CredentialMeta is the secret-free view of a credential.
type CredentialMeta struct {
	ID        string
	Type      models.CredentialType
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialSecret is a credential with its decrypted payload.
type CredentialSecret struct {
	CredentialMeta
	Secret string
}

func metaOf(cred *models.Credential) CredentialMeta {
	return CredentialMeta{
		ID:        cred.ID,
		Type:      cred.Type,
		Label:     cred.Label,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}
}

func validateCredentialInput(typ models.CredentialType, label string) error {
	if !typ.Valid() {
		return validationf("unknown credential type %q", typ)
	}
	if err := validation.Label(label); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// CreateCredential encrypts and stores a new secret for the owner.
func (s *Service) CreateCredential(ctx context.Context, userID string, typ models.CredentialType, label, secret string) (*CredentialMeta, error) {
	if err := validateCredentialInput(typ, label); err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, validationf("secret is required")
	}
	if len(secret) > maxSecretSize {
		return nil, validationf("secret exceeds the %d byte limit", maxSecretSize)
	}

	env, err := s.encryptPayload(userID, secret)
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{
		UserID:        userID,
		Type:          typ,
		Label:         strings.TrimSpace(label),
		EncryptedData: env.Ciphertext,
		EncryptedDEK:  env.WrappedKey,
		IV:            env.IV,
		AuthTag:       env.Tag,
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		return nil, storeErr("create credential", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionCredentialCreate, "credential", cred.ID,
		map[string]interface{}{"label": cred.Label, "type": string(typ)}))

	meta := metaOf(cred)
	return &meta, nil
}

// ListCredentials returns the owner's credentials without decrypting any
// payload. An empty type lists everything.
func (s *Service) ListCredentials(ctx context.Context, userID string, typ models.CredentialType) ([]CredentialMeta, error) {
	var (
		creds []*models.Credential
		err   error
	)
	if typ == "" {
		creds, err = s.credentials.ListByUser(ctx, userID)
	} else {
		if !typ.Valid() {
			return nil, validationf("unknown credential type %q", typ)
		}
		creds, err = s.credentials.ListByUserAndType(ctx, userID, typ)
	}
	if err != nil {
		return nil, storeErr("list credentials", err)
	}

	metas := make([]CredentialMeta, 0, len(creds))
	for _, cred := range creds {
		metas = append(metas, metaOf(cred))
	}
	return metas, nil
}

// GetCredential decrypts one credential for its owner and audits the read.
func (s *Service) GetCredential(ctx context.Context, userID, id string) (*CredentialSecret, error) {
	cred, err := s.credentials.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, storeErr("lookup credential", err)
	}
	if cred == nil {
		return nil, ErrNotFound
	}

	secret, err := s.decryptPayload(cred)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Owner(userID, models.ActionCredentialRead, "credential", cred.ID,
		map[string]interface{}{"label": cred.Label}))

	return &CredentialSecret{CredentialMeta: metaOf(cred), Secret: secret}, nil
}

// UpdateCredential changes a credential's metadata, and re-encrypts the
// payload when a new secret is supplied. A nil secret leaves the stored
// payload untouched.
func (s *Service) UpdateCredential(ctx context.Context, userID, id string, typ models.CredentialType, label string, secret *string) (*CredentialMeta, error) {
	if err := validateCredentialInput(typ, label); err != nil {
		return nil, err
	}
	if secret != nil {
		if *secret == "" {
			return nil, validationf("secret cannot be empty")
		}
		if len(*secret) > maxSecretSize {
			return nil, validationf("secret exceeds the %d byte limit", maxSecretSize)
		}
	}

	ok, err := s.credentials.UpdateMeta(ctx, id, userID, typ, strings.TrimSpace(label))
	if err != nil {
		return nil, storeErr("update credential", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	if secret != nil {
		env, err := s.encryptPayload(userID, *secret)
		if err != nil {
			return nil, err
		}
		ok, err := s.credentials.UpdatePayload(ctx, id, userID, env.Ciphertext, env.WrappedKey, env.IV, env.Tag)
		if err != nil {
			return nil, storeErr("update credential payload", err)
		}
		if !ok {
			return nil, ErrNotFound
		}
	}

	s.record(ctx, audit.Owner(userID, models.ActionCredentialUpdate, "credential", id,
		map[string]interface{}{"label": strings.TrimSpace(label), "rotated": secret != nil}))

	cred, err := s.credentials.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, storeErr("lookup credential", err)
	}
	if cred == nil {
		return nil, ErrNotFound
	}
	meta := metaOf(cred)
	return &meta, nil
}

// DeleteCredential removes a credential and every grant that references it.
func (s *Service) DeleteCredential(ctx context.Context, userID, id string) error {
	deleted, err := s.credentials.Delete(ctx, id, userID)
	if err != nil {
		return storeErr("delete credential", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.record(ctx, audit.Owner(userID, models.ActionCredentialDelete, "credential", id, nil))
	return nil
}
