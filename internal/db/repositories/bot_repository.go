package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/google/uuid"
)

// BotRepository handles bot database operations.
type BotRepository struct {
	db *sql.DB
}

// NewBotRepository creates a new BotRepository.
func NewBotRepository(db *sql.DB) *BotRepository {
	return &BotRepository{db: db}
}

// Create inserts a new bot, assigning its ID and creation time.
func (r *BotRepository) Create(ctx context.Context, bot *models.Bot) error {
	bot.ID = uuid.New().String()
	bot.CreatedAt = time.Now()

	query := `
		INSERT INTO bots (id, user_id, name, description, secret_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		bot.ID, bot.UserID, bot.Name, bot.Description, bot.SecretHash, bot.IsActive, bot.CreatedAt)
	return err
}

// GetByID retrieves a bot regardless of owner. Used by the bot token
// verification path, which checks ownership against the token claims itself.
func (r *BotRepository) GetByID(ctx context.Context, id string) (*models.Bot, error) {
	query := `
		SELECT id, user_id, name, description, secret_hash, is_active, created_at
		FROM bots WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDAndUser retrieves one bot scoped to its owner.
func (r *BotRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Bot, error) {
	query := `
		SELECT id, user_id, name, description, secret_hash, is_active, created_at
		FROM bots WHERE id = $1 AND user_id = $2
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *BotRepository) scanOne(row *sql.Row) (*models.Bot, error) {
	bot := &models.Bot{}
	err := row.Scan(&bot.ID, &bot.UserID, &bot.Name, &bot.Description,
		&bot.SecretHash, &bot.IsActive, &bot.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// ListByUser retrieves a user's bots with their grant counts, newest first.
func (r *BotRepository) ListByUser(ctx context.Context, userID string) ([]*models.Bot, error) {
	query := `
		SELECT b.id, b.user_id, b.name, b.description, b.secret_hash, b.is_active, b.created_at,
		       (SELECT COUNT(*) FROM permissions p WHERE p.bot_id = b.id) AS permission_count
		FROM bots b
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bots := make([]*models.Bot, 0)
	for rows.Next() {
		bot := &models.Bot{}
		err := rows.Scan(&bot.ID, &bot.UserID, &bot.Name, &bot.Description,
			&bot.SecretHash, &bot.IsActive, &bot.CreatedAt, &bot.PermissionCount)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}
	return bots, rows.Err()
}

// Update changes a bot's name, description and active flag.
func (r *BotRepository) Update(ctx context.Context, id, userID, name string, description *string, isActive bool) (bool, error) {
	query := `
		UPDATE bots SET name = $3, description = $4, is_active = $5
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID, name, description, isActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes a bot along with its tokens and permissions in one
// transaction. Deleting the tokens is what revokes them: the verification
// path refuses any bearer token without a stored row.
func (r *BotRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bot_tokens WHERE bot_id = $1`, id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE bot_id = $1`, id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM bots WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return true, tx.Commit()
}
