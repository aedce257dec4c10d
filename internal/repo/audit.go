package repo

import (
	"context"

	"github.com/crucial707/mydiary/internal/db"
	"github.com/crucial707/mydiary/internal/models"
)

// Audit actions and resource types.
const (
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionPasswordReset = "password_reset"

	ResourceDiary = "diary"
	ResourceUser  = "user"
)

// AuditRepo persists a per-user activity trail.
type AuditRepo struct {
	db db.DBTX
}

// NewAuditRepo returns a new AuditRepo.
func NewAuditRepo(conn db.DBTX) *AuditRepo {
	return &AuditRepo{db: conn}
}

// Log records an audit entry.
func (r *AuditRepo) Log(ctx context.Context, userID int64, action, resourceType string, resourceID int64, details string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action, resource_type, resource_id, details) VALUES ($1, $2, $3, $4, $5)`,
		userID, action, resourceType, resourceID, nullString(details),
	)
	return err
}

// ListByUser returns the user's own entries, newest first.
func (r *AuditRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, COALESCE(details,''), created_at FROM audit_log WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ActivityEntry{}
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
