package repository

import (
	"context"

	"github.com/umworks/aurora-sync/internal/models"
)

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db DBTX
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *CourseRepository) WithTx(tx DBTX) *CourseRepository {
	return &CourseRepository{db: tx}
}

// FindBySlug returns the course with the given slug.
func (r *CourseRepository) FindBySlug(ctx context.Context, slug string) (*models.Course, error) {
	const query = `SELECT id, department_code, code, slug, active, created_at, updated_at
        FROM courses WHERE slug = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, slug); err != nil {
		return nil, err
	}
	return &course, nil
}
