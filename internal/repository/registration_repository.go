package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umworks/aurora-sync/internal/models"
)

// RegistrationRepository handles persistence of student registrations.
type RegistrationRepository struct {
	db DBTX
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *RegistrationRepository) WithTx(tx DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: tx}
}

const registrationColumns = `id, student_id, section_id, status, aurora_verified, active, created_at, updated_at`

// FindByStudentAndSection returns the unique registration for the pair,
// active or not.
func (r *RegistrationRepository) FindByStudentAndSection(ctx context.Context, studentID, sectionID string) (*models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations
        WHERE student_id = $1 AND section_id = $2`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, studentID, sectionID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Create persists a new registration.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	reg.Active = true
	const query = `INSERT INTO registrations (id, student_id, section_id, status, aurora_verified, active, created_at, updated_at)
        VALUES (:id, :student_id, :section_id, :status, :aurora_verified, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// Update persists status, verification and activity changes.
func (r *RegistrationRepository) Update(ctx context.Context, reg *models.Registration) error {
	reg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registrations SET status = :status, aurora_verified = :aurora_verified,
        active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	return nil
}

// ListActiveBySections returns active registrations, joined with student
// and section context, for the given section IDs. The de-registration
// sweep works over this set.
func (r *RegistrationRepository) ListActiveBySections(ctx context.Context, sectionIDs []string) ([]models.RegistrationDetail, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT reg.id, reg.student_id, reg.section_id, reg.status, reg.aurora_verified,
        reg.active, reg.created_at, reg.updated_at,
        s.student_number, p.surname, p.given_name, p.username, sec.slug AS section_slug
        FROM registrations reg
        JOIN students s ON s.id = reg.student_id
        JOIN people p ON p.id = s.person_id
        JOIN sections sec ON sec.id = reg.section_id
        WHERE reg.active = TRUE AND reg.section_id IN (?)`, sectionIDs)
	if err != nil {
		return nil, fmt.Errorf("build section query: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, fmt.Errorf("list registrations by section: %w", err)
	}
	return regs, nil
}

// ListByStudent returns a student's active registrations with section
// context.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	const query = `SELECT reg.id, reg.student_id, reg.section_id, reg.status, reg.aurora_verified,
        reg.active, reg.created_at, reg.updated_at,
        s.student_number, p.surname, p.given_name, p.username, sec.slug AS section_slug
        FROM registrations reg
        JOIN students s ON s.id = reg.student_id
        JOIN people p ON p.id = s.person_id
        JOIN sections sec ON sec.id = reg.section_id
        WHERE reg.active = TRUE AND reg.student_id = $1
        ORDER BY sec.slug`
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, studentID); err != nil {
		return nil, fmt.Errorf("list registrations by student: %w", err)
	}
	return regs, nil
}

// CountActiveBySections counts active registrations over the section set.
// The import safety belt compares this against the confirmed row count.
func (r *RegistrationRepository) CountActiveBySections(ctx context.Context, sectionIDs []string) (int, error) {
	if len(sectionIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM registrations WHERE active = TRUE AND section_id IN (?)`, sectionIDs)
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return total, nil
}
