// credential_repository.go implements CredentialRepository. Every read and
// mutation that serves an owner request filters by (id, user_id) so a guessed
// id belonging to another owner behaves exactly like a missing row.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/google/uuid"
)

// CredentialRepository handles credential database operations.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `id, user_id, type, label, encrypted_data, encrypted_dek, iv, auth_tag, created_at, updated_at`

// Create inserts a new credential, assigning its ID and timestamps.
func (r *CredentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	cred.ID = uuid.New().String()
	cred.CreatedAt = time.Now()
	cred.UpdatedAt = cred.CreatedAt

	query := `
		INSERT INTO credentials (id, user_id, type, label, encrypted_data, encrypted_dek, iv, auth_tag, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		cred.ID, cred.UserID, string(cred.Type), cred.Label,
		cred.EncryptedData, cred.EncryptedDEK, cred.IV, cred.AuthTag,
		cred.CreatedAt, cred.UpdatedAt)
	return err
}

// GetByIDAndUser retrieves one credential scoped to its owner.
func (r *CredentialRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1 AND user_id = $2`
	cred := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&cred.ID, &cred.UserID, &cred.Type, &cred.Label,
		&cred.EncryptedData, &cred.EncryptedDEK, &cred.IV, &cred.AuthTag,
		&cred.CreatedAt, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// ListByUser retrieves a user's credentials, newest first. Payload columns
// are included; callers that only need metadata simply ignore them.
func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// ListByUserAndType retrieves a user's credentials of one type, newest first.
func (r *CredentialRepository) ListByUserAndType(ctx context.Context, userID string, typ models.CredentialType) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = $1 AND type = $2 ORDER BY created_at DESC`
	return r.list(ctx, query, userID, string(typ))
}

// ListByBotPermissions retrieves the credentials a bot has been granted,
// newest first.
func (r *CredentialRepository) ListByBotPermissions(ctx context.Context, botID, userID string) ([]*models.Credential, error) {
	query := `
		SELECT c.id, c.user_id, c.type, c.label, c.encrypted_data, c.encrypted_dek, c.iv, c.auth_tag, c.created_at, c.updated_at
		FROM credentials c
		JOIN permissions p ON p.credential_id = c.id
		WHERE p.bot_id = $1 AND c.user_id = $2
		ORDER BY c.created_at DESC
	`
	return r.list(ctx, query, botID, userID)
}

func (r *CredentialRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creds := make([]*models.Credential, 0)
	for rows.Next() {
		cred := &models.Credential{}
		err := rows.Scan(
			&cred.ID, &cred.UserID, &cred.Type, &cred.Label,
			&cred.EncryptedData, &cred.EncryptedDEK, &cred.IV, &cred.AuthTag,
			&cred.CreatedAt, &cred.UpdatedAt)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// UpdateMeta updates label and type without touching the payload.
func (r *CredentialRepository) UpdateMeta(ctx context.Context, id, userID string, typ models.CredentialType, label string) (bool, error) {
	query := `UPDATE credentials SET type = $3, label = $4, updated_at = $5 WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID, string(typ), label, time.Now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdatePayload replaces all four payload columns. The caller must have
// re-encrypted with a fresh DEK and IVs.
func (r *CredentialRepository) UpdatePayload(ctx context.Context, id, userID string, encryptedData, encryptedDEK, iv, authTag []byte) (bool, error) {
	query := `
		UPDATE credentials
		SET encrypted_data = $3, encrypted_dek = $4, iv = $5, auth_tag = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID, encryptedData, encryptedDEK, iv, authTag, time.Now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes a credential and any permissions referencing it, in one
// transaction so no orphaned grant edges survive.
func (r *CredentialRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM permissions WHERE credential_id = $1`, id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM credentials WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Not the owner's row; the deferred rollback undoes the permission
		// deletes.
		return false, nil
	}
	return true, tx.Commit()
}
