package aurora

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/extract"
	"github.com/umworks/aurora-sync/internal/models"
)

// RegistrationStore persists registrations.
type RegistrationStore interface {
	FindByStudentAndSection(ctx context.Context, studentID, sectionID string) (*models.Registration, error)
	Create(ctx context.Context, reg *models.Registration) error
	Update(ctx context.Context, reg *models.Registration) error
	ListActiveBySections(ctx context.Context, sectionIDs []string) ([]models.RegistrationDetail, error)
}

// Options control one reconciliation run.
type Options struct {
	// Section, when set, must agree with the classlist's own section
	// metadata. Report runs ignore it.
	Section *models.SectionDetail
	// RequireValidLogin skips creating students without derivable logins
	// and withholds registration updates for students without one.
	RequireValidLogin bool
	// ReturnInvalidLogins collects a diagnostic line per student without
	// a valid login.
	ReturnInvalidLogins bool
	// IgnoreUnknownSections counts report rows whose section cannot be
	// resolved as ignored instead of failing the run.
	IgnoreUnknownSections bool
	// CreateSection creates or reactivates the classlist's section when
	// it is missing locally.
	CreateSection bool
	// ValidStatus filters classlist rows by their "Reg Status" value.
	// Each entry is "exact:value" or "startswith:value"; a bare value
	// means exact. Nil applies the default ["startswith:registered"];
	// an empty non-nil slice admits every row. Reports are pre-filtered
	// upstream, so the filter never applies to them.
	ValidStatus []string
	// Commit false runs the validation phase only and writes nothing.
	Commit bool
}

// Result summarises a reconciliation run.
type Result struct {
	TotalRows     int      `json:"total_rows"`
	SavedRows     int      `json:"saved_rows"`
	IgnoredRows   int      `json:"ignored_rows"`
	Deregistered  int      `json:"deregistered"`
	InvalidLogins []string `json:"invalid_logins,omitempty"`
	// Section is the section the run resolved to. Nil for report runs,
	// which may span many sections.
	Section *models.SectionDetail `json:"section,omitempty"`
	// SectionIDs is the full section set the run operated on, including
	// every section swept for de-registrations.
	SectionIDs []string `json:"-"`
}

// Reconciler drives a full extract import: resolve the section set, match
// every row to a student, upsert registrations, then sweep registrations
// the extract no longer confirms.
type Reconciler struct {
	resolver      *SectionResolver
	matcher       *Matcher
	registrations RegistrationStore
	recorder      *Recorder
	logger        *zap.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(resolver *SectionResolver, matcher *Matcher, registrations RegistrationStore, recorder *Recorder, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		resolver:      resolver,
		matcher:       matcher,
		registrations: registrations,
		recorder:      recorder,
		logger:        logger,
	}
}

// UpdateRegistrations reconciles local registrations against one parsed
// extract. All writes happen through the stores the reconciler was built
// with, so callers control transactionality.
func (r *Reconciler) UpdateRegistrations(ctx context.Context, ext *extract.Extract, opts Options) (*Result, error) {
	if r.matcher.username == nil {
		opts.RequireValidLogin = false
		opts.ReturnInvalidLogins = false
	}

	rows := ext.Rows
	if ext.Kind == extract.KindClasslist {
		validStatus := opts.ValidStatus
		if validStatus == nil {
			validStatus = []string{"startswith:registered"}
		}
		filtered, err := filterByStatus(rows, validStatus)
		if err != nil {
			return nil, err
		}
		rows = filtered
	}

	var (
		section  *models.SectionDetail
		sections []models.SectionDetail
		err      error
	)
	switch ext.Kind {
	case extract.KindClasslist:
		sections, err = r.resolver.ResolveClasslist(ctx, ext.Classlist, opts.CreateSection)
		if err != nil {
			return nil, err
		}
		if opts.Section != nil {
			found := false
			for i := range sections {
				if sections[i].ID == opts.Section.ID {
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: sections do not match", ErrWrongSection)
			}
			section = opts.Section
		} else if len(sections) == 1 {
			section = &sections[0]
		}
		if section == nil {
			return nil, fmt.Errorf("%w: could not determine section", ErrWrongSection)
		}
	case extract.KindReport:
		sections, err = r.resolver.ResolveReportSections(ctx, rows)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown extract kind %q", extract.ErrInvalidFormat, ext.Kind)
	}

	cache := make(map[string]*models.SectionDetail)

	if !opts.Commit {
		if ext.Kind == extract.KindReport && !opts.IgnoreUnknownSections {
			for _, row := range rows {
				match, err := r.resolver.ResolveReportRow(row, sections, cache)
				if err != nil {
					return nil, err
				}
				if match == nil {
					return nil, fmt.Errorf("%w: there is an unknown section in this report", ErrInvalidSection)
				}
			}
		}
		return &Result{Section: section}, nil
	}

	result := &Result{Section: section}
	for i := range sections {
		result.SectionIDs = append(result.SectionIDs, sections[i].ID)
	}
	confirmed := make(map[int]struct{})

	for _, row := range rows {
		result.TotalRows++

		rowSection := section
		if ext.Kind == extract.KindReport {
			rowSection, err = r.resolver.ResolveReportRow(row, sections, cache)
			if err != nil {
				return nil, err
			}
			if rowSection == nil {
				if opts.IgnoreUnknownSections {
					result.IgnoredRows++
					continue
				}
				return nil, fmt.Errorf("%w: there is an unknown section in this report", ErrInvalidSection)
			}
		}

		student, err := r.matcher.Match(ctx, row, rowSection, opts.RequireValidLogin)
		if err != nil {
			var invalid *InvalidUsernameError
			if errors.As(err, &invalid) {
				if opts.ReturnInvalidLogins {
					result.InvalidLogins = append(result.InvalidLogins, invalid.Error())
				}
				continue
			}
			return nil, err
		}

		if opts.ReturnInvalidLogins && !student.HasValidUsername() {
			result.InvalidLogins = append(result.InvalidLogins,
				fmt.Sprintf("%s [%d] does not have a valid username", student.DisplayName(), student.StudentNumber))
		}

		status, err := deriveStatus(ext.Kind, row)
		if err != nil {
			return nil, err
		}
		if err := r.updateOrCreateRegistration(ctx, rowSection, student, status, opts.RequireValidLogin); err != nil {
			return nil, err
		}
		confirmed[student.StudentNumber] = struct{}{}
		result.SavedRows++
	}

	dereg, err := r.sweep(ctx, sections, confirmed)
	if err != nil {
		return nil, err
	}
	result.Deregistered = dereg

	r.logger.Info("reconciled extract",
		zap.String("kind", string(ext.Kind)),
		zap.Int("total", result.TotalRows),
		zap.Int("saved", result.SavedRows),
		zap.Int("ignored", result.IgnoredRows),
		zap.Int("deregistered", result.Deregistered))
	return result, nil
}

// updateOrCreateRegistration upserts one registration. An existing status
// is never clobbered by a run, with one exception: withdrawal statuses
// always win. New registrations persist at creation; the login gate only
// withholds the follow-up update.
func (r *Reconciler) updateOrCreateRegistration(ctx context.Context, section *models.SectionDetail, student *models.StudentDetail, status models.Status, requireValidLogin bool) error {
	reg, err := r.registrations.FindByStudentAndSection(ctx, student.ID, section.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		reg = &models.Registration{
			StudentID: student.ID,
			SectionID: section.ID,
			Status:    status,
			Active:    true,
		}
		if err := r.registrations.Create(ctx, reg); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		msg := fmt.Sprintf("Created student registration for course %s (%s)", section.Label(), section.TermLabel())
		if err := r.recorder.Record(ctx, student.ID, annotationReconcile, msg); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("find registration: %w", err)
	}

	reg.AuroraVerified = true
	if strings.HasSuffix(string(status), "W") {
		reg.Status = status
		msg := fmt.Sprintf("Student has withdrawn from course %s (%s)", section.Label(), section.TermLabel())
		if err := r.recorder.Record(ctx, student.ID, annotationReconcile, msg); err != nil {
			return err
		}
	}

	if requireValidLogin && !student.HasValidUsername() {
		return nil
	}
	if err := r.registrations.Update(ctx, reg); err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	return nil
}

// sweep blocks every active registration in the run's section set that
// the extract did not confirm. Rows already blocked stay untouched so the
// history is not re-spammed on every import.
func (r *Reconciler) sweep(ctx context.Context, sections []models.SectionDetail, confirmed map[int]struct{}) (int, error) {
	byID := make(map[string]*models.SectionDetail, len(sections))
	ids := make([]string, 0, len(sections))
	for i := range sections {
		byID[sections[i].ID] = &sections[i]
		ids = append(ids, sections[i].ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	regs, err := r.registrations.ListActiveBySections(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("list registrations: %w", err)
	}

	count := 0
	for i := range regs {
		reg := &regs[i]
		if reg.Status == models.StatusBlocked {
			continue
		}
		if _, ok := confirmed[reg.StudentNumber]; ok {
			continue
		}
		label := reg.SectionSlug
		termLabel := ""
		if s, ok := byID[reg.SectionID]; ok {
			label = s.Label()
			termLabel = s.TermLabel()
		}
		msg := fmt.Sprintf("de-registered student: not (valid) on Aurora class list for %s (%s)", label, termLabel)
		if err := r.recorder.Record(ctx, reg.StudentID, annotationReconcile, msg); err != nil {
			return count, err
		}
		reg.Status = models.StatusBlocked
		if err := r.registrations.Update(ctx, &reg.Registration); err != nil {
			return count, fmt.Errorf("update registration: %w", err)
		}
		count++
	}
	return count, nil
}

// filterByStatus keeps the rows whose classlist registration status
// matches at least one pattern. Patterns compare case-insensitively.
func filterByStatus(rows []extract.Row, patterns []string) ([]extract.Row, error) {
	if len(patterns) == 0 {
		return rows, nil
	}
	type matcher struct {
		op, value string
	}
	matchers := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		op, value, ok := strings.Cut(strings.ToLower(p), ":")
		if !ok {
			op, value = "exact", strings.ToLower(p)
		}
		switch op {
		case "exact", "startswith":
		default:
			return nil, fmt.Errorf("unimplemented comparison operator %q", op)
		}
		matchers = append(matchers, matcher{op: op, value: value})
	}

	var kept []extract.Row
	for _, row := range rows {
		status := strings.ToLower(row.RegStatus)
		for _, m := range matchers {
			if (m.op == "exact" && status == m.value) ||
				(m.op == "startswith" && strings.HasPrefix(status, m.value)) {
				kept = append(kept, row)
				break
			}
		}
	}
	return kept, nil
}
