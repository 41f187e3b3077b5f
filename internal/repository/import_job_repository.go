package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/umworks/aurora-sync/internal/models"
)

// ImportJobRepository persists extract upload jobs.
type ImportJobRepository struct {
	db DBTX
}

// NewImportJobRepository constructs the repository.
func NewImportJobRepository(db DBTX) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

// Create persists a new import job.
func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()
	if job.Status == "" {
		job.Status = models.ImportStatusQueued
	}
	const query = `INSERT INTO import_jobs (id, kind, filename, options, status, created_by, created_at)
        VALUES (:id, :kind, :filename, :options, :status, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// FindByID returns a job by primary key.
func (r *ImportJobRepository) FindByID(ctx context.Context, id string) (*models.ImportJob, error) {
	const query = `SELECT id, kind, filename, options, status, result, error_message, created_by, created_at, finished_at
        FROM import_jobs WHERE id = $1`
	var job models.ImportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkProcessing transitions a queued job.
func (r *ImportJobRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE import_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ImportStatusProcessing); err != nil {
		return fmt.Errorf("mark import processing: %w", err)
	}
	return nil
}

// MarkFinished records a successful result.
func (r *ImportJobRepository) MarkFinished(ctx context.Context, id string, result *models.ImportResult) error {
	const query = `UPDATE import_jobs SET status = $2, result = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ImportStatusFinished, result, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark import finished: %w", err)
	}
	return nil
}

// MarkFailed records a failure message.
func (r *ImportJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE import_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ImportStatusFailed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark import failed: %w", err)
	}
	return nil
}
