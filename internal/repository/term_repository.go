package repository

import (
	"context"
	"time"

	"github.com/umworks/aurora-sync/internal/models"
)

// TermRepository handles persistence of academic terms.
type TermRepository struct {
	db DBTX
}

// NewTermRepository constructs the repository.
func NewTermRepository(db DBTX) *TermRepository {
	return &TermRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *TermRepository) WithTx(tx DBTX) *TermRepository {
	return &TermRepository{db: tx}
}

const termColumns = `id, year, term_of_year, start_date, end_date, slug, active, created_at`

// FindByDate returns the term whose date range contains d.
func (r *TermRepository) FindByDate(ctx context.Context, d time.Time) (*models.Term, error) {
	const query = `SELECT ` + termColumns + ` FROM terms
        WHERE start_date <= $1 AND end_date >= $1 AND active = TRUE
        ORDER BY start_date DESC LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, d); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindByYearTerm returns the term for a calendar year and term-of-year.
func (r *TermRepository) FindByYearTerm(ctx context.Context, year, termOfYear int) (*models.Term, error) {
	const query = `SELECT ` + termColumns + ` FROM terms
        WHERE year = $1 AND term_of_year = $2 LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, year, termOfYear); err != nil {
		return nil, err
	}
	return &term, nil
}
