package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/umworks/aurora-sync/internal/models"
)

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db DBTX
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *StudentRepository) WithTx(tx DBTX) *StudentRepository {
	return &StudentRepository{db: tx}
}

const studentDetailColumns = `s.id, s.person_id, s.student_number, s.active, s.created_at, s.updated_at,
        p.username, p.surname, p.given_name, p.common_name`

// FindByNumber returns the student with the given number, active or not.
// The number is unique across all rows, so inactive matches are returned
// for reactivation rather than filtered away.
func (r *StudentRepository) FindByNumber(ctx context.Context, number int) (*models.StudentDetail, error) {
	const query = `SELECT ` + studentDetailColumns + `
        FROM students s JOIN people p ON p.id = s.person_id
        WHERE s.student_number = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, number); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUsername returns the student linked to the person with that login.
func (r *StudentRepository) FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error) {
	const query = `SELECT ` + studentDetailColumns + `
        FROM students s JOIN people p ON p.id = s.person_id
        WHERE p.username = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, username); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByID returns a student with person context by primary key.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT ` + studentDetailColumns + `
        FROM students s JOIN people p ON p.id = s.person_id
        WHERE s.id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByPersonID returns the student linked to a person, if any.
func (r *StudentRepository) FindByPersonID(ctx context.Context, personID string) (*models.Student, error) {
	const query = `SELECT id, person_id, student_number, active, created_at, updated_at
        FROM students WHERE person_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, personID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create persists a new student. A concurrent create of the same number
// returns ErrDuplicate for the caller to recover from.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	student.Active = true
	const query = `INSERT INTO students (id, person_id, student_number, active, created_at, updated_at)
        VALUES (:id, :person_id, :student_number, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists number, person link and active changes.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET person_id = :person_id, student_number = :student_number,
        active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Search finds active students by number, username or name fragments.
func (r *StudentRepository) Search(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s JOIN people p ON p.id = s.person_id`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	for _, fragment := range strings.Fields(strings.ReplaceAll(filter.Search, ",", " ")) {
		conditions = append(conditions, fmt.Sprintf("p.common_name ILIKE $%d", len(args)+1))
		args = append(args, "%"+fragment+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT `+studentDetailColumns+` %s ORDER BY p.surname, p.given_name LIMIT %d OFFSET %d`,
		base+clause, size, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}
