package aurora

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/extract"
	"github.com/umworks/aurora-sync/internal/models"
)

// CourseStore looks up courses.
type CourseStore interface {
	FindBySlug(ctx context.Context, slug string) (*models.Course, error)
}

// TermStore looks up academic terms.
type TermStore interface {
	FindByDate(ctx context.Context, d time.Time) (*models.Term, error)
}

// SectionStore persists sections.
type SectionStore interface {
	FindByKeys(ctx context.Context, courseID, termID, sectionName, crn string) (*models.Section, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	ListActiveByCRNs(ctx context.Context, crns []string) ([]models.SectionDetail, error)
	Create(ctx context.Context, section *models.Section) error
	SetActive(ctx context.Context, id string, active bool) error
}

// SectionResolver maps extract-level section identity onto local sections.
type SectionResolver struct {
	courses  CourseStore
	terms    TermStore
	sections SectionStore
	logger   *zap.Logger
}

// NewSectionResolver constructs a resolver.
func NewSectionResolver(courses CourseStore, terms TermStore, sections SectionStore, logger *zap.Logger) *SectionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionResolver{courses: courses, terms: terms, sections: sections, logger: logger}
}

// ResolveClasslist maps the classlist metadata block onto the matching
// section set. With create set, a missing section is created (or an
// inactive one reactivated); otherwise a missing or inactive section is
// ErrInvalidSection.
func (r *SectionResolver) ResolveClasslist(ctx context.Context, info *extract.ClasslistInfo, create bool) ([]models.SectionDetail, error) {
	courseSlug := slugify(info.Course)
	course, err := r.courses.FindBySlug(ctx, courseSlug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: could not find the course for this classlist; the course %s may need to be added locally", ErrInvalidSection, info.Course)
		}
		return nil, fmt.Errorf("resolve course: %w", err)
	}

	startDate, err := info.StartDate()
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable classlist duration %q", extract.ErrInvalidFormat, info.Duration)
	}
	term, err := r.terms.FindByDate(ctx, startDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no term contains the classlist start date %s", ErrInvalidSection, startDate.Format("2006-01-02"))
		}
		return nil, fmt.Errorf("resolve term: %w", err)
	}

	section, err := r.sections.FindByKeys(ctx, course.ID, term.ID, info.SectionName, info.CRN)
	switch {
	case err == nil:
		if !section.Active {
			if !create {
				return nil, fmt.Errorf("%w: the section does not exist", ErrInvalidSection)
			}
			if err := r.sections.SetActive(ctx, section.ID, true); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, sql.ErrNoRows):
		if !create {
			return nil, fmt.Errorf("%w: the section does not exist", ErrInvalidSection)
		}
		section = &models.Section{
			CourseID:    course.ID,
			TermID:      term.ID,
			SectionName: info.SectionName,
			CRN:         info.CRN,
			Slug:        slugify(course.Slug + " " + info.SectionName + " " + term.Slug),
			Active:      true,
		}
		if err := r.sections.Create(ctx, section); err != nil {
			return nil, err
		}
		r.logger.Info("created section", zap.String("slug", section.Slug), zap.String("crn", section.CRN))
	default:
		return nil, fmt.Errorf("resolve section: %w", err)
	}

	detail, err := r.sections.FindDetailByID(ctx, section.ID)
	if err != nil {
		return nil, fmt.Errorf("load section detail: %w", err)
	}
	return []models.SectionDetail{*detail}, nil
}

// ResolveReportSections loads the active section superset for a report's
// CRN set.
func (r *SectionResolver) ResolveReportSections(ctx context.Context, rows []extract.Row) ([]models.SectionDetail, error) {
	seen := make(map[string]struct{})
	var crns []string
	for _, row := range rows {
		if _, ok := seen[row.CRN]; ok {
			continue
		}
		seen[row.CRN] = struct{}{}
		crns = append(crns, row.CRN)
	}
	return r.sections.ListActiveByCRNs(ctx, crns)
}

// ResolveReportRow matches one report row against the section superset by
// CRN plus course identity and academic period. Zero or ambiguous matches
// yield nil, handled upstream as "unknown section". Results, including
// misses, are cached by CRN for the run.
func (r *SectionResolver) ResolveReportRow(row extract.Row, sections []models.SectionDetail, cache map[string]*models.SectionDetail) (*models.SectionDetail, error) {
	if section, ok := cache[row.CRN]; ok {
		return section, nil
	}

	year, termOfYear, err := decodeAcademicPeriod(row.AcademicPeriod)
	if err != nil {
		return nil, err
	}

	var match *models.SectionDetail
	count := 0
	for i := range sections {
		s := &sections[i]
		if !strings.EqualFold(s.DepartmentCode, row.Subject) ||
			!strings.EqualFold(s.CourseCode, row.CourseNumber) ||
			!strings.EqualFold(s.SectionName, row.SectionNumber) ||
			!strings.EqualFold(s.CRN, row.CRN) ||
			s.TermYear != year || s.TermOfYear != termOfYear {
			continue
		}
		match = s
		count++
	}
	if count != 1 {
		match = nil
	}
	cache[row.CRN] = match
	return match, nil
}

// decodeAcademicPeriod decodes a report academic period formatted as
// YYYYMDD where the month digit must be 1, 5 or 9, mapping to term of
// year 1, 2 or 3. Anything else is a fatal format error: the feed layout
// has changed and must not be guessed at.
func decodeAcademicPeriod(period string) (year, termOfYear int, err error) {
	if len(period) < 6 {
		return 0, 0, fmt.Errorf("%w: invalid academic period %q", extract.ErrInvalidFormat, period)
	}
	year, convErr := strconv.Atoi(period[:4])
	if convErr != nil {
		return 0, 0, fmt.Errorf("%w: invalid academic period %q", extract.ErrInvalidFormat, period)
	}
	if period[5] != '0' {
		return 0, 0, fmt.Errorf("%w: invalid academic period %q", extract.ErrInvalidFormat, period)
	}
	switch period[4] {
	case '1':
		termOfYear = models.TermWinter
	case '5':
		termOfYear = models.TermSummer
	case '9':
		termOfYear = models.TermFall
	default:
		return 0, 0, fmt.Errorf("%w: invalid academic period %q", extract.ErrInvalidFormat, period)
	}
	return year, termOfYear, nil
}
