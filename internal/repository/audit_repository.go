package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/umworks/aurora-sync/internal/models"
)

// AuditRepository appends to the generic audit log mirror.
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *AuditRepository) WithTx(tx DBTX) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Create appends one audit record.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO audit_logs (id, resource, resource_id, action, message, created_at)
        VALUES (:id, :resource, :resource_id, :action, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}
