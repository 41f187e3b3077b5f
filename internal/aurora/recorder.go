package aurora

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/models"
)

// HistoryStore appends student history entries.
type HistoryStore interface {
	Create(ctx context.Context, entry *models.History) error
}

// AuditStore appends generic audit records.
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Recorder writes the audit trail for every mutation. Entries for one
// student are appended in the order the reconciliation steps executed.
// Store failures propagate; they are never swallowed.
type Recorder struct {
	history HistoryStore
	// audit mirrors history entries into the generic audit log when
	// non-nil (HISTORY_ADMIN_MIRROR).
	audit  AuditStore
	logger *zap.Logger
}

// NewRecorder constructs a recorder. audit may be nil.
func NewRecorder(history HistoryStore, audit AuditStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{history: history, audit: audit, logger: logger}
}

// WithStores returns a copy of the recorder bound to the given stores,
// used to run inside a transaction.
func (r *Recorder) WithStores(history HistoryStore, audit AuditStore) *Recorder {
	return &Recorder{history: history, audit: audit, logger: r.logger}
}

// Record appends one history entry for the student.
func (r *Recorder) Record(ctx context.Context, studentID, tag, message string) error {
	entry := &models.History{StudentID: studentID, Annotation: tag, Message: message}
	if err := r.history.Create(ctx, entry); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	r.logger.Debug("history", zap.String("student_id", studentID), zap.String("tag", tag), zap.String("message", message))
	if r.audit != nil {
		mirror := &models.AuditLog{Resource: "student", ResourceID: studentID, Action: tag, Message: message}
		if err := r.audit.Create(ctx, mirror); err != nil {
			return fmt.Errorf("mirror history: %w", err)
		}
	}
	return nil
}

// RecordResource appends an audit-only entry for a non-student resource,
// used for person records that are not linked to a student yet.
func (r *Recorder) RecordResource(ctx context.Context, resource, resourceID, tag, message string) error {
	if r.audit == nil {
		r.logger.Debug("audit skipped", zap.String("resource", resource), zap.String("message", message))
		return nil
	}
	entry := &models.AuditLog{Resource: resource, ResourceID: resourceID, Action: tag, Message: message}
	if err := r.audit.Create(ctx, entry); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}
