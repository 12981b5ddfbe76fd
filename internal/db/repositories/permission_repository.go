package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/google/uuid"
)

// PermissionRepository handles bot-to-credential grant database operations.
type PermissionRepository struct {
	db *sql.DB
}

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Exists reports whether a bot holds a grant for a credential.
func (r *PermissionRepository) Exists(ctx context.Context, botID, credentialID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM permissions WHERE bot_id = $1 AND credential_id = $2)`,
		botID, credentialID).Scan(&exists)
	return exists, err
}

// ListByBot retrieves a bot's grants, newest first.
func (r *PermissionRepository) ListByBot(ctx context.Context, botID string) ([]*models.Permission, error) {
	query := `
		SELECT id, bot_id, credential_id, level, granted_at
		FROM permissions WHERE bot_id = $1 ORDER BY granted_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := make([]*models.Permission, 0)
	for rows.Next() {
		perm := &models.Permission{}
		err := rows.Scan(&perm.ID, &perm.BotID, &perm.CredentialID, &perm.Level, &perm.GrantedAt)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// ReplaceForBot swaps a bot's grant set for the given credential IDs in one
// transaction. The whole set is replaced rather than diffed, so the stored
// grants always mirror exactly what the owner last submitted.
func (r *PermissionRepository) ReplaceForBot(ctx context.Context, botID string, credentialIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE bot_id = $1`, botID); err != nil {
		return err
	}

	now := time.Now()
	for _, credID := range credentialIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO permissions (id, bot_id, credential_id, level, granted_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), botID, credID, models.DefaultPermissionLevel, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
