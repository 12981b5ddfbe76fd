package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditPageSize is the fixed number of entries per audit page.
const AuditPageSize = 50

// AuditFilters narrows an audit query. Zero values mean no filtering on that
// dimension. Actor matches a substring of the owner's username or the bot's
// name, case-insensitively.
type AuditFilters struct {
	Action string
	Actor  string
	From   time.Time
	To     time.Time
}

// AuditRepository handles append and query operations for the audit trail.
// Writes go through database/sql like the other repositories; the filtered
// list query uses sqlx for named scanning over the joined row shape.
type AuditRepository struct {
	db  *sql.DB
	dbx *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{
		db:  db,
		dbx: sqlx.NewDb(db, "postgres"),
	}
}

// Create appends one audit entry, assigning its ID and timestamp. Entries are
// immutable once written.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (id, user_id, bot_id, action, target_type, target_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.BotID, entry.Action,
		entry.TargetType, entry.TargetID, metadata, entry.CreatedAt)
	return err
}

type auditRow struct {
	ID         string    `db:"id"`
	UserID     *string   `db:"user_id"`
	BotID      *string   `db:"bot_id"`
	Action     string    `db:"action"`
	TargetType *string   `db:"target_type"`
	TargetID   *string   `db:"target_id"`
	CreatedAt  time.Time `db:"created_at"`
	Username   *string   `db:"username"`
	BotName    *string   `db:"bot_name"`

	// Entries recorded without metadata hold SQL NULL; a plain byte slice
	// scans that as nil where json.RawMessage would fail.
	Metadata []byte `db:"metadata"`
}

// List retrieves one page of a user's audit trail, newest first, along with
// the total number of entries matching the filters. Pages are numbered from 1;
// a non-positive pageSize falls back to AuditPageSize.
func (r *AuditRepository) List(ctx context.Context, userID string, filters AuditFilters, page, pageSize int) ([]*models.AuditLog, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = AuditPageSize
	}

	conditions := []string{"a.user_id = $1"}
	args := []interface{}{userID}
	paramIndex := 2

	if filters.Action != "" {
		conditions = append(conditions, fmt.Sprintf("a.action = $%d", paramIndex))
		args = append(args, filters.Action)
		paramIndex++
	}
	if filters.Actor != "" {
		conditions = append(conditions,
			fmt.Sprintf("(u.username ILIKE $%d OR b.name ILIKE $%d)", paramIndex, paramIndex))
		args = append(args, "%"+filters.Actor+"%")
		paramIndex++
	}
	if !filters.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", paramIndex))
		args = append(args, filters.From)
		paramIndex++
	}
	if !filters.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("a.created_at <= $%d", paramIndex))
		args = append(args, filters.To)
		paramIndex++
	}

	where := strings.Join(conditions, " AND ")
	joins := `
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.user_id
		LEFT JOIN bots b ON b.id = a.bot_id
	`

	var total int
	countQuery := `SELECT COUNT(*) ` + joins + ` WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT a.id, a.user_id, a.bot_id, a.action, a.target_type, a.target_id,
		       a.metadata, a.created_at, u.username AS username, b.name AS bot_name
		%s WHERE %s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d
	`, joins, where, paramIndex, paramIndex+1)
	args = append(args, pageSize, (page-1)*pageSize)

	var rows []auditRow
	if err := r.dbx.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, err
	}

	entries := make([]*models.AuditLog, 0, len(rows))
	for _, row := range rows {
		entry := &models.AuditLog{
			ID:         row.ID,
			UserID:     row.UserID,
			BotID:      row.BotID,
			Action:     row.Action,
			TargetType: row.TargetType,
			TargetID:   row.TargetID,
			CreatedAt:  row.CreatedAt,
			Username:   row.Username,
			BotName:    row.BotName,
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &entry.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}
