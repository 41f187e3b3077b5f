package models

import "time"

// AuditLog is the generic audit mirror target. Student history entries are
// copied here when HISTORY_ADMIN_MIRROR is enabled; the reconciliation
// algorithm does not depend on it.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	Action     string    `db:"action" json:"action"`
	Message    string    `db:"message" json:"message"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
