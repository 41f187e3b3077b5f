package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umworks/aurora-sync/internal/models"
)

// SectionRepository handles persistence of course sections.
type SectionRepository struct {
	db DBTX
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db DBTX) *SectionRepository {
	return &SectionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *SectionRepository) WithTx(tx DBTX) *SectionRepository {
	return &SectionRepository{db: tx}
}

const sectionColumns = `id, course_id, term_id, section_name, crn, slug, active, created_at, updated_at`

const sectionDetailColumns = `s.id, s.course_id, s.term_id, s.section_name, s.crn, s.slug, s.active,
        s.created_at, s.updated_at, c.department_code, c.code AS course_code,
        t.year AS term_year, t.term_of_year, t.slug AS term_slug`

const sectionDetailFrom = ` FROM sections s
        JOIN courses c ON c.id = s.course_id
        JOIN terms t ON t.id = s.term_id`

// FindByKeys returns the section matching the classlist identity triple
// plus CRN. Inactive sections are included so they can be reactivated.
func (r *SectionRepository) FindByKeys(ctx context.Context, courseID, termID, sectionName, crn string) (*models.Section, error) {
	const query = `SELECT ` + sectionColumns + ` FROM sections
        WHERE course_id = $1 AND term_id = $2 AND section_name = $3 AND crn = $4`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, courseID, termID, sectionName, crn); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindDetailByID returns a section joined with course and term.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	const query = `SELECT ` + sectionDetailColumns + sectionDetailFrom + ` WHERE s.id = $1`
	var detail models.SectionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListActiveByCRNs returns active sections whose CRN is in the given set,
// joined with course and term. Used to build the report section superset.
func (r *SectionRepository) ListActiveByCRNs(ctx context.Context, crns []string) ([]models.SectionDetail, error) {
	if len(crns) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+sectionDetailColumns+sectionDetailFrom+`
        WHERE s.active = TRUE AND s.crn IN (?)`, crns)
	if err != nil {
		return nil, fmt.Errorf("build crn query: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, fmt.Errorf("list sections by crn: %w", err)
	}
	return sections, nil
}

// List returns sections joined with course and term, optionally only
// active ones.
func (r *SectionRepository) List(ctx context.Context, activeOnly bool) ([]models.SectionDetail, error) {
	query := `SELECT ` + sectionDetailColumns + sectionDetailFrom
	if activeOnly {
		query += ` WHERE s.active = TRUE`
	}
	query += ` ORDER BY t.year DESC, t.term_of_year DESC, s.slug`
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// Create persists a new section record.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, course_id, term_id, section_name, crn, slug, active, created_at, updated_at)
        VALUES (:id, :course_id, :term_id, :section_name, :crn, :slug, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// SetActive flips the activity flag.
func (r *SectionRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE sections SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set section active: %w", err)
	}
	return nil
}
