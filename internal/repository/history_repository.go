package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/umworks/aurora-sync/internal/models"
)

// HistoryRepository appends immutable student history entries. There is
// deliberately no update or delete.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *HistoryRepository) WithTx(tx DBTX) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

// Create appends one history entry.
func (r *HistoryRepository) Create(ctx context.Context, entry *models.History) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO history (id, student_id, annotation, message, created_at)
        VALUES (:id, :student_id, :annotation, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListByStudent returns a student's history, newest first.
func (r *HistoryRepository) ListByStudent(ctx context.Context, studentID string) ([]models.History, error) {
	const query = `SELECT id, student_id, annotation, message, created_at
        FROM history WHERE student_id = $1 ORDER BY created_at DESC, id`
	var entries []models.History
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
