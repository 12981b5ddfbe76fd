// auditlog.go exposes the owner-facing audit query surface.
package vault

import (
	"context"

	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/db/repositories"
)

// AuditPage is one page of an owner's audit trail.
type AuditPage struct {
	Entries    []*models.AuditLog
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// ListAuditLog returns one page of the owner's audit trail, newest first.
func (s *Service) ListAuditLog(ctx context.Context, userID string, filters repositories.AuditFilters, page int) (*AuditPage, error) {
	if page < 1 {
		page = 1
	}

	entries, total, err := s.auditRepo.List(ctx, userID, filters, page, s.auditPageSize)
	if err != nil {
		return nil, storeErr("list audit log", err)
	}

	totalPages := total / s.auditPageSize
	if total%s.auditPageSize != 0 {
		totalPages++
	}

	return &AuditPage{
		Entries:    entries,
		Total:      total,
		Page:       page,
		PageSize:   s.auditPageSize,
		TotalPages: totalPages,
	}, nil
}
