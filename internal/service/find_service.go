package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/models"
	appErrors "github.com/umworks/aurora-sync/pkg/errors"
)

const websyncAnnotation = "clicker.websync"

type findStudentRepo interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByNumber(ctx context.Context, number int) (*models.StudentDetail, error)
	FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error)
	Search(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type clickerStore interface {
	ListActiveByClickerID(ctx context.Context, clickerID string) ([]models.ClickerRegistration, error)
	FindByStudentAndClicker(ctx context.Context, studentID, clickerID string) (*models.ClickerRegistration, error)
	Create(ctx context.Context, mapping *models.ClickerRegistration) error
	SetActive(ctx context.Context, id string, active bool) error
}

type registrationLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)
}

type historyLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.History, error)
}

// ClickerWebsync looks up remote web registrations for a clicker ID.
// Implementations carry their own HTTP timeout; a lookup failure is a
// soft miss, never a hard error for the caller.
type ClickerWebsync interface {
	Registrations(ctx context.Context, clickerID string) ([]WebsyncRecord, error)
}

// WebsyncRecord is one remote clicker registration row.
type WebsyncRecord struct {
	ClickerID     string
	StudentNumber int
}

// StudentProfile is the full detail view for one student.
type StudentProfile struct {
	Student       models.StudentDetail         `json:"student"`
	Registrations []models.RegistrationDetail  `json:"registrations"`
	History       []models.History             `json:"history"`
	Clickers      []models.ClickerRegistration `json:"clickers,omitempty"`
}

// FindService locates students by the identifiers people actually type:
// student numbers, logins, clicker IDs and name fragments.
type FindService struct {
	students      findStudentRepo
	clickers      clickerStore
	registrations registrationLister
	history       historyLister
	recorder      *aurora.Recorder
	websync       ClickerWebsync
	logger        *zap.Logger
}

// NewFindService constructs the service. websync may be nil.
func NewFindService(students findStudentRepo, clickers clickerStore, registrations registrationLister, history historyLister, recorder *aurora.Recorder, websync ClickerWebsync, logger *zap.Logger) *FindService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FindService{
		students:      students,
		clickers:      clickers,
		registrations: registrations,
		history:       history,
		recorder:      recorder,
		websync:       websync,
		logger:        logger,
	}
}

// Find resolves a search term to exactly one student. A 6-7 digit number
// is a student number; up to 8 hex characters is a clicker ID; up to 8
// other characters is a login; anything else is matched against names.
// useWebsync additionally consults the remote clicker registry when the
// clicker ID is unknown locally.
func (s *FindService) Find(ctx context.Context, term string, useWebsync bool) (*models.StudentDetail, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty search term")
	}

	if (len(term) == 6 || len(term) == 7) && isNumeric(term) {
		number, _ := strconv.Atoi(term)
		student, err := s.students.FindByNumber(ctx, number)
		if err == nil {
			return student, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, s.internal(err)
		}
		return nil, s.notFound()
	}

	if len(term) <= 8 {
		if isHex(term) {
			return s.byClicker(ctx, term, useWebsync)
		}
		student, err := s.students.FindByUsername(ctx, strings.ToLower(term))
		if err == nil {
			return student, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, s.internal(err)
		}
		// short terms fall through to the name search
	}

	return s.byName(ctx, term)
}

// List runs a paged name search for the index endpoint.
func (s *FindService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	students, total, err := s.students.Search(ctx, filter)
	if err != nil {
		return nil, 0, s.internal(err)
	}
	return students, total, nil
}

// Profile loads the full detail view for one student.
func (s *FindService) Profile(ctx context.Context, id string) (*StudentProfile, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.notFound()
		}
		return nil, s.internal(err)
	}
	registrations, err := s.registrations.ListByStudent(ctx, id)
	if err != nil {
		return nil, s.internal(err)
	}
	history, err := s.history.ListByStudent(ctx, id)
	if err != nil {
		return nil, s.internal(err)
	}
	return &StudentProfile{
		Student:       *student,
		Registrations: registrations,
		History:       history,
	}, nil
}

func (s *FindService) byName(ctx context.Context, term string) (*models.StudentDetail, error) {
	search := strings.TrimSpace(strings.ReplaceAll(term, ",", " "))
	students, _, err := s.students.Search(ctx, models.StudentFilter{Search: search, Page: 1, PageSize: 2})
	if err != nil {
		return nil, s.internal(err)
	}
	switch len(students) {
	case 0:
		return nil, s.notFound()
	case 1:
		return &students[0], nil
	default:
		return nil, s.notUnique()
	}
}

func (s *FindService) byClicker(ctx context.Context, clickerID string, useWebsync bool) (*models.StudentDetail, error) {
	clickerID = normalizeClickerID(clickerID)
	mappings, err := s.clickers.ListActiveByClickerID(ctx, clickerID)
	if err != nil {
		return nil, s.internal(err)
	}
	switch {
	case len(mappings) == 1:
		student, err := s.students.FindByID(ctx, mappings[0].StudentID)
		if err != nil {
			return nil, s.internal(err)
		}
		return student, nil
	case len(mappings) > 1:
		return nil, s.notUnique()
	}
	if useWebsync && s.websync != nil {
		if synced := s.syncClicker(ctx, clickerID); synced {
			return s.byClicker(ctx, clickerID, false)
		}
	}
	return nil, s.notFound()
}

// syncClicker pulls remote web registrations for an unknown clicker ID
// and records any that map onto a local student in good standing. Remote
// failures are logged and swallowed; the lookup simply misses.
func (s *FindService) syncClicker(ctx context.Context, clickerID string) bool {
	records, err := s.websync.Registrations(ctx, clickerID)
	if err != nil {
		s.logger.Warn("clicker websync failed", zap.String("clicker_id", clickerID), zap.Error(err))
		return false
	}

	saved := false
	for _, record := range records {
		student, err := s.students.FindByNumber(ctx, record.StudentNumber)
		if err != nil {
			continue
		}
		if !student.Active || !s.hasGoodStanding(ctx, student.ID) {
			continue
		}
		mapping, err := s.clickers.FindByStudentAndClicker(ctx, student.ID, clickerID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			mapping = &models.ClickerRegistration{StudentID: student.ID, ClickerID: clickerID, Active: true}
			if err := s.clickers.Create(ctx, mapping); err != nil {
				s.logger.Warn("save clicker mapping", zap.Error(err))
				continue
			}
			s.record(ctx, student.ID, "found new www.iclicker.com web registration for iclicker ID "+clickerID)
			saved = true
		case err != nil:
			continue
		case !mapping.Active:
			if err := s.clickers.SetActive(ctx, mapping.ID, true); err != nil {
				s.logger.Warn("reactivate clicker mapping", zap.Error(err))
				continue
			}
			s.record(ctx, student.ID, "reactivated www.iclicker.com web registration for iclicker ID "+clickerID)
			saved = true
		}
	}
	return saved
}

func (s *FindService) hasGoodStanding(ctx context.Context, studentID string) bool {
	registrations, err := s.registrations.ListByStudent(ctx, studentID)
	if err != nil {
		return false
	}
	for i := range registrations {
		if registrations[i].GoodStanding() {
			return true
		}
	}
	return false
}

func (s *FindService) record(ctx context.Context, studentID, message string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, studentID, websyncAnnotation, message); err != nil {
		s.logger.Warn("record clicker history", zap.Error(err))
	}
}

func (s *FindService) notFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "no student found")
}

func (s *FindService) notUnique() error {
	return appErrors.Clone(appErrors.ErrConflict, "search term matches more than one student")
}

func (s *FindService) internal(err error) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student lookup failed")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isHex(s string) bool {
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return len(s) > 0
}

// normalizeClickerID zero-pads to the canonical 8-character form.
func normalizeClickerID(id string) string {
	id = strings.ToUpper(id)
	for len(id) < 8 {
		id = "0" + id
	}
	return id
}
