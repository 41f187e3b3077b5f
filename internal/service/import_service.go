package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/extract"
	"github.com/umworks/aurora-sync/internal/models"
	"github.com/umworks/aurora-sync/internal/repository"
	appErrors "github.com/umworks/aurora-sync/pkg/errors"
	"github.com/umworks/aurora-sync/pkg/jobs"
	"github.com/umworks/aurora-sync/pkg/storage"
)

const importCachePattern = "roster:*"

// txBeginner abstracts the transactional entry point of *sqlx.DB.
type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// importJobStore persists import job lifecycle state.
type importJobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	FindByID(ctx context.Context, id string) (*models.ImportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id string, result *models.ImportResult) error
	MarkFailed(ctx context.Context, id, message string) error
}

// sectionFinder resolves the optional target section of an import.
type sectionFinder interface {
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
}

// cacheInvalidator drops derived cache entries after a commit.
type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// reconcileRunner executes one reconciliation pass against the given
// store handle. It returns the run result plus the count of active
// registrations across the run's section set, which feeds the commit
// safety check.
type reconcileRunner interface {
	Run(ctx context.Context, db repository.DBTX, ext *extract.Extract, opts aurora.Options) (*aurora.Result, int, error)
}

// ImportRequest describes one extract upload.
type ImportRequest struct {
	Filename string `validate:"required"`
	Options  models.ImportOptions
	// DryRun validates without writing and skips the job record.
	DryRun    bool
	CreatedBy string
}

// ImportService orchestrates extract uploads: parse, validate, reconcile
// inside one serializable transaction, and record the job outcome. It can
// run the committing pass asynchronously through the jobs queue.
type ImportService struct {
	db       txBeginner
	runner   reconcileRunner
	sections sectionFinder
	imports  importJobStore
	store    *storage.LocalStorage
	cache    cacheInvalidator
	metrics  *MetricsService
	queue    *jobs.Queue

	validator *validator.Validate
	logger    *zap.Logger
}

// NewImportService constructs the service. queue, cache and metrics may be
// nil; the corresponding features are skipped.
func NewImportService(db txBeginner, runner reconcileRunner, sections sectionFinder, importJobs importJobStore, store *storage.LocalStorage, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		db:        db,
		runner:    runner,
		sections:  sections,
		imports:   importJobs,
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// AttachQueue wires the background queue once it exists; the queue's
// handler needs the service, so construction is two-phase.
func (s *ImportService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Import runs one upload synchronously and returns the finished job.
func (s *ImportService) Import(ctx context.Context, req ImportRequest, r io.Reader) (*models.ImportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import request")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "unreadable upload")
	}

	ext, err := s.parse(data)
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		result, err := s.reconcile(ctx, ext, req.Options, false)
		if err != nil {
			return nil, err
		}
		job := &models.ImportJob{
			ID:       uuid.NewString(),
			Kind:     importKind(ext.Kind),
			Filename: req.Filename,
			Options:  req.Options,
			Status:   models.ImportStatusFinished,
			Result:   importResult(result),
		}
		return job, nil
	}

	job := &models.ImportJob{
		ID:        uuid.NewString(),
		Kind:      importKind(ext.Kind),
		Filename:  req.Filename,
		Options:   req.Options,
		Status:    models.ImportStatusProcessing,
		CreatedBy: req.CreatedBy,
	}
	if err := s.imports.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record import job")
	}

	result, err := s.run(ctx, ext, req.Options)
	if err != nil {
		if mErr := s.imports.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			s.logger.Error("mark import failed", zap.String("job_id", job.ID), zap.Error(mErr))
		}
		job.Status = models.ImportStatusFailed
		return job, err
	}

	job.Status = models.ImportStatusFinished
	job.Result = importResult(result)
	if err := s.imports.MarkFinished(ctx, job.ID, job.Result); err != nil {
		s.logger.Error("mark import finished", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job, nil
}

// Enqueue stores the upload and queues the committing pass. The upload is
// validated (parse + dry run) before the job is accepted.
func (s *ImportService) Enqueue(ctx context.Context, req ImportRequest, r io.Reader) (*models.ImportJob, error) {
	if s.queue == nil {
		return nil, appErrors.New(appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "background imports are not enabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import request")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "unreadable upload")
	}
	ext, err := s.parse(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.reconcile(ctx, ext, req.Options, false); err != nil {
		return nil, err
	}

	job := &models.ImportJob{
		ID:        uuid.NewString(),
		Kind:      importKind(ext.Kind),
		Filename:  req.Filename,
		Options:   req.Options,
		Status:    models.ImportStatusQueued,
		CreatedBy: req.CreatedBy,
	}
	if _, err := s.store.SaveStream(job.ID, bytes.NewReader(data)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive upload")
	}
	if err := s.imports.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record import job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "extract-import", Payload: job.ID}); err != nil {
		if mErr := s.imports.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			s.logger.Error("mark import failed", zap.String("job_id", job.ID), zap.Error(mErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue import")
	}
	return job, nil
}

// ProcessQueued is the queue handler for background imports.
func (s *ImportService) ProcessQueued(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	record, err := s.imports.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load import job: %w", err)
	}
	if err := s.imports.MarkProcessing(ctx, id); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	file, err := s.store.Open(id)
	if err != nil {
		_ = s.imports.MarkFailed(ctx, id, err.Error())
		return err
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		_ = s.imports.MarkFailed(ctx, id, err.Error())
		return err
	}
	ext, err := s.parse(data)
	if err != nil {
		_ = s.imports.MarkFailed(ctx, id, err.Error())
		return nil // a bad file never succeeds; do not retry
	}

	result, err := s.run(ctx, ext, record.Options)
	if err != nil {
		_ = s.imports.MarkFailed(ctx, id, err.Error())
		if isFatalExtractError(err) {
			return nil
		}
		return err
	}
	if err := s.imports.MarkFinished(ctx, id, importResult(result)); err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	_ = s.store.Remove(id)
	return nil
}

// Job returns one import job record.
func (s *ImportService) Job(ctx context.Context, id string) (*models.ImportJob, error) {
	job, err := s.imports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch import job")
	}
	return job, nil
}

// run executes the committing pass: dry-run first on the plain handle,
// then the full reconcile inside one serializable transaction, with the
// empty-import check before commit.
func (s *ImportService) run(ctx context.Context, ext *extract.Extract, options models.ImportOptions) (*aurora.Result, error) {
	start := time.Now()
	if _, err := s.reconcile(ctx, ext, options, false); err != nil {
		s.observe(ext.Kind, "rejected", nil, start)
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}

	opts, err := s.buildOptions(ctx, options, true)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	result, active, err := s.runner.Run(ctx, tx, ext, opts)
	if err != nil {
		_ = tx.Rollback()
		s.observe(ext.Kind, "failed", nil, start)
		return nil, mapReconcileError(err)
	}
	if err := checkEmptyImport(active, result.SavedRows, options.Force); err != nil {
		_ = tx.Rollback()
		s.observe(ext.Kind, "refused", result, start)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.observe(ext.Kind, "failed", nil, start)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit import")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, importCachePattern); err != nil {
			s.logger.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	s.observe(ext.Kind, "committed", result, start)
	return result, nil
}

// reconcile runs one validating pass outside any transaction.
func (s *ImportService) reconcile(ctx context.Context, ext *extract.Extract, options models.ImportOptions, commit bool) (*aurora.Result, error) {
	opts, err := s.buildOptions(ctx, options, commit)
	if err != nil {
		return nil, err
	}
	result, _, err := s.runner.Run(ctx, nil, ext, opts)
	if err != nil {
		return nil, mapReconcileError(err)
	}
	return result, nil
}

func (s *ImportService) buildOptions(ctx context.Context, options models.ImportOptions, commit bool) (aurora.Options, error) {
	opts := aurora.Options{
		RequireValidLogin:     options.RequireValidLogin,
		ReturnInvalidLogins:   true,
		IgnoreUnknownSections: options.IgnoreUnknownSections,
		CreateSection:         options.CreateSection,
		Commit:                commit,
	}
	if options.SectionID != "" {
		section, err := s.sections.FindDetailByID(ctx, options.SectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return opts, appErrors.Clone(appErrors.ErrNotFound, "target section not found")
			}
			return opts, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch section")
		}
		opts.Section = section
	}
	return opts, nil
}

func (s *ImportService) parse(data []byte) (*extract.Extract, error) {
	ext, err := extract.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, err.Error())
	}
	return ext, nil
}

func (s *ImportService) observe(kind extract.Kind, outcome string, result *aurora.Result, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveImport(kind, outcome, result, time.Since(start))
}

// checkEmptyImport refuses a commit that would sweep away most of the
// current enrollment. A truncated or wrong-section file confirms far
// fewer students than are registered; deregistering them all is almost
// never what the operator wants.
func checkEmptyImport(activeRegistrations, savedRows int, force bool) error {
	if force || activeRegistrations == 0 {
		return nil
	}
	if savedRows*2 < activeRegistrations {
		msg := fmt.Sprintf("extract confirms only %d of %d active registrations; use force to override", savedRows, activeRegistrations)
		return appErrors.Clone(appErrors.ErrEmptyImport, msg)
	}
	return nil
}

func mapReconcileError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, extract.ErrInvalidFormat):
		return appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, err.Error())
	case errors.Is(err, aurora.ErrWrongSection):
		return appErrors.Wrap(err, appErrors.ErrWrongSection.Code, appErrors.ErrWrongSection.Status, err.Error())
	case errors.Is(err, aurora.ErrInvalidSection):
		return appErrors.Wrap(err, appErrors.ErrInvalidSection.Code, appErrors.ErrInvalidSection.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "import failed")
	}
}

func isFatalExtractError(err error) bool {
	return errors.Is(err, extract.ErrInvalidFormat) ||
		errors.Is(err, aurora.ErrInvalidSection) ||
		errors.Is(err, aurora.ErrWrongSection)
}

func importKind(kind extract.Kind) models.ImportKind {
	if kind == extract.KindReport {
		return models.ImportKindReport
	}
	return models.ImportKindClasslist
}

func importResult(result *aurora.Result) *models.ImportResult {
	out := &models.ImportResult{
		TotalRows:     result.TotalRows,
		SavedRows:     result.SavedRows,
		IgnoredRows:   result.IgnoredRows,
		Deregistered:  result.Deregistered,
		InvalidLogins: result.InvalidLogins,
	}
	if result.Section != nil {
		out.SectionSlug = result.Section.Slug
	}
	return out
}
