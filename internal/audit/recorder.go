// Package audit appends entries to the BotVault audit trail. The trail is
// database-backed and write-once; entries are removed only by the
// owner-account deletion cascade. An optional mirror copies entries to an
// external destination (file or webhook) for SIEM consumption, but the
// database remains authoritative.
//
// Recording is deliberately infallible from the caller's point of view: a
// mutation that succeeded is never rolled back because its audit append
// failed. Failures are logged and counted so operators can alarm on a trail
// that has stopped keeping up.
package audit

import (
	"context"
	"log/slog"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/db/repositories"
	"github.com/botvault/botvault/internal/telemetry"
)

// Recorder appends audit entries on behalf of the service layer.
type Recorder struct {
	repo   *repositories.AuditRepository
	mirror Mirror
	logger *slog.Logger
}

// NewRecorder creates a Recorder. mirror may be nil.
func NewRecorder(repo *repositories.AuditRepository, mirror Mirror, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, mirror: mirror, logger: logger}
}

// Record appends one entry. It never returns an error: persistence failures
// are logged and counted instead, because the mutation being audited has
// already committed.
func (r *Recorder) Record(ctx context.Context, entry *models.AuditLog) {
	if err := r.repo.Create(ctx, entry); err != nil {
		telemetry.AuditAppendFailuresTotal.Inc()
		r.logger.Error("audit append failed",
			"action", entry.Action,
			"user_id", strOrEmpty(entry.UserID),
			"bot_id", strOrEmpty(entry.BotID),
			"error", err)
		return
	}
	if r.mirror != nil {
		if err := r.mirror.Ship(ctx, entry); err != nil {
			r.logger.Warn("audit mirror ship failed",
				"action", entry.Action, "error", err)
		}
	}
}

// Owner builds an entry for an action initiated by the owner directly.
func Owner(userID, action string, targetType, targetID string, metadata map[string]interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		UserID:   &userID,
		Action:   action,
		Metadata: metadata,
	}
	if targetType != "" {
		entry.TargetType = &targetType
	}
	if targetID != "" {
		entry.TargetID = &targetID
	}
	return entry
}

// Bot builds an entry for an action initiated by a bot. Both IDs are set
// because a bot acts on behalf of its owner.
func Bot(botID, ownerID, action string, targetType, targetID string, metadata map[string]interface{}) *models.AuditLog {
	entry := Owner(ownerID, action, targetType, targetID, metadata)
	entry.BotID = &botID
	return entry
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
