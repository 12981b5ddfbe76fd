package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/google/uuid"
)

// BotTokenRepository handles bot token database operations. Only the SHA-256
// hash of a token is ever stored; revocation is deletion of the row.
type BotTokenRepository struct {
	db *sql.DB
}

// NewBotTokenRepository creates a new BotTokenRepository.
func NewBotTokenRepository(db *sql.DB) *BotTokenRepository {
	return &BotTokenRepository{db: db}
}

// Create inserts a new token record, assigning its ID and creation time.
func (r *BotTokenRepository) Create(ctx context.Context, token *models.BotToken) error {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO bot_tokens (id, bot_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.BotID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	return err
}

// GetByHash looks up a token record by its hash. A nil result means the token
// was never issued or has been revoked; callers treat both the same.
func (r *BotTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.BotToken, error) {
	query := `
		SELECT id, bot_id, token_hash, expires_at, created_at
		FROM bot_tokens WHERE token_hash = $1
	`
	token := &models.BotToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.BotID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ListByBot retrieves a bot's token records, newest first.
func (r *BotTokenRepository) ListByBot(ctx context.Context, botID string) ([]*models.BotToken, error) {
	query := `
		SELECT id, bot_id, token_hash, expires_at, created_at
		FROM bot_tokens WHERE bot_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*models.BotToken, 0)
	for rows.Next() {
		token := &models.BotToken{}
		err := rows.Scan(&token.ID, &token.BotID, &token.TokenHash,
			&token.ExpiresAt, &token.CreatedAt)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// Delete revokes one token, scoped to its bot.
func (r *BotTokenRepository) Delete(ctx context.Context, id, botID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bot_tokens WHERE id = $1 AND bot_id = $2`, id, botID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteByBot revokes every token a bot holds.
func (r *BotTokenRepository) DeleteByBot(ctx context.Context, botID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bot_tokens WHERE bot_id = $1`, botID)
	return err
}
