package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/google/uuid"
)

// LinkTokenRepository handles magic-link and recovery token database
// operations.
type LinkTokenRepository struct {
	db *sql.DB
}

// NewLinkTokenRepository creates a new LinkTokenRepository.
func NewLinkTokenRepository(db *sql.DB) *LinkTokenRepository {
	return &LinkTokenRepository{db: db}
}

// Create inserts a new link token record, assigning its ID and creation time.
func (r *LinkTokenRepository) Create(ctx context.Context, token *models.LinkToken) error {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO link_tokens (id, user_id, purpose, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, string(token.Purpose), token.TokenHash,
		token.ExpiresAt, token.Used, token.CreatedAt)
	return err
}

// Redeem atomically consumes an unused, unexpired token and returns the
// user it belongs to. The single UPDATE guarantees a token redeems at most
// once even under concurrent attempts. Returns "" when the token is unknown,
// already used, expired, or issued for a different purpose.
func (r *LinkTokenRepository) Redeem(ctx context.Context, tokenHash string, purpose models.LinkTokenPurpose) (string, error) {
	query := `
		UPDATE link_tokens SET used = TRUE
		WHERE token_hash = $1 AND purpose = $2 AND used = FALSE AND expires_at > $3
		RETURNING user_id
	`
	var userID string
	err := r.db.QueryRowContext(ctx, query, tokenHash, string(purpose), time.Now()).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}
