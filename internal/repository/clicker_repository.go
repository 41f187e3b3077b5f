package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/umworks/aurora-sync/internal/models"
)

// ClickerRepository handles clicker-to-student mappings.
type ClickerRepository struct {
	db DBTX
}

// NewClickerRepository constructs the repository.
func NewClickerRepository(db DBTX) *ClickerRepository {
	return &ClickerRepository{db: db}
}

// ListActiveByClickerID returns active mappings for a clicker remote.
func (r *ClickerRepository) ListActiveByClickerID(ctx context.Context, clickerID string) ([]models.ClickerRegistration, error) {
	const query = `SELECT id, student_id, clicker_id, active, created_at, updated_at
        FROM clickers WHERE active = TRUE AND lower(clicker_id) = lower($1)`
	var mappings []models.ClickerRegistration
	if err := r.db.SelectContext(ctx, &mappings, query, clickerID); err != nil {
		return nil, fmt.Errorf("list clicker mappings: %w", err)
	}
	return mappings, nil
}

// FindByStudentAndClicker returns the mapping for the pair, active or not.
func (r *ClickerRepository) FindByStudentAndClicker(ctx context.Context, studentID, clickerID string) (*models.ClickerRegistration, error) {
	const query = `SELECT id, student_id, clicker_id, active, created_at, updated_at
        FROM clickers WHERE student_id = $1 AND lower(clicker_id) = lower($2)`
	var mapping models.ClickerRegistration
	if err := r.db.GetContext(ctx, &mapping, query, studentID, clickerID); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// Create persists a new mapping.
func (r *ClickerRepository) Create(ctx context.Context, mapping *models.ClickerRegistration) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	mapping.CreatedAt = now
	mapping.UpdatedAt = now
	mapping.Active = true
	const query = `INSERT INTO clickers (id, student_id, clicker_id, active, created_at, updated_at)
        VALUES (:id, :student_id, :clicker_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mapping); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create clicker mapping: %w", err)
	}
	return nil
}

// SetActive flips the activity flag.
func (r *ClickerRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE clickers SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set clicker active: %w", err)
	}
	return nil
}
