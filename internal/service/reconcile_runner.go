package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/extract"
	"github.com/umworks/aurora-sync/internal/repository"
)

// AuroraRunner is the production reconcileRunner: it assembles the
// reconciliation pipeline over the given store handle, so one run's
// writes all land in the caller's transaction.
type AuroraRunner struct {
	people        *repository.PersonRepository
	students      *repository.StudentRepository
	courses       *repository.CourseRepository
	terms         *repository.TermRepository
	sections      *repository.SectionRepository
	registrations *repository.RegistrationRepository
	history       *repository.HistoryRepository
	audit         *repository.AuditRepository

	username  aurora.UsernameFunc
	emailType aurora.EmailTypeFunc
	// mirror copies history entries into the audit log.
	mirror bool
	logger *zap.Logger
}

// NewAuroraRunner wires the base repositories. audit is used only when
// mirror is set.
func NewAuroraRunner(
	people *repository.PersonRepository,
	students *repository.StudentRepository,
	courses *repository.CourseRepository,
	terms *repository.TermRepository,
	sections *repository.SectionRepository,
	registrations *repository.RegistrationRepository,
	history *repository.HistoryRepository,
	audit *repository.AuditRepository,
	username aurora.UsernameFunc,
	emailType aurora.EmailTypeFunc,
	mirror bool,
	logger *zap.Logger,
) *AuroraRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuroraRunner{
		people:        people,
		students:      students,
		courses:       courses,
		terms:         terms,
		sections:      sections,
		registrations: registrations,
		history:       history,
		audit:         audit,
		username:      username,
		emailType:     emailType,
		mirror:        mirror,
		logger:        logger,
	}
}

// Run executes one reconciliation pass. A nil db runs on the base
// connection; otherwise every repository is rebound to db.
func (r *AuroraRunner) Run(ctx context.Context, db repository.DBTX, ext *extract.Extract, opts aurora.Options) (*aurora.Result, int, error) {
	people := r.people
	students := r.students
	courses := r.courses
	terms := r.terms
	sections := r.sections
	registrations := r.registrations
	history := r.history
	audit := r.audit
	if db != nil {
		people = people.WithTx(db)
		students = students.WithTx(db)
		courses = courses.WithTx(db)
		terms = terms.WithTx(db)
		sections = sections.WithTx(db)
		registrations = registrations.WithTx(db)
		history = history.WithTx(db)
		audit = audit.WithTx(db)
	}

	var auditStore aurora.AuditStore
	if r.mirror {
		auditStore = audit
	}
	recorder := aurora.NewRecorder(history, auditStore, r.logger)
	resolver := aurora.NewSectionResolver(courses, terms, sections, r.logger)
	matcher := aurora.NewMatcher(students, people, recorder, r.username, r.emailType, r.logger)
	reconciler := aurora.NewReconciler(resolver, matcher, registrations, recorder, r.logger)

	result, err := reconciler.UpdateRegistrations(ctx, ext, opts)
	if err != nil {
		return nil, 0, err
	}

	active := 0
	if opts.Commit && len(result.SectionIDs) > 0 {
		active, err = registrations.CountActiveBySections(ctx, result.SectionIDs)
		if err != nil {
			return nil, 0, err
		}
	}
	return result, active, nil
}
