package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/models"
	appErrors "github.com/umworks/aurora-sync/pkg/errors"
)

type mockFindStudents struct {
	students []models.StudentDetail
}

func (m *mockFindStudents) find(match func(*models.StudentDetail) bool) (*models.StudentDetail, error) {
	for i := range m.students {
		if match(&m.students[i]) {
			copied := m.students[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockFindStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	return m.find(func(s *models.StudentDetail) bool { return s.ID == id })
}

func (m *mockFindStudents) FindByNumber(ctx context.Context, number int) (*models.StudentDetail, error) {
	return m.find(func(s *models.StudentDetail) bool { return s.StudentNumber == number })
}

func (m *mockFindStudents) FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error) {
	return m.find(func(s *models.StudentDetail) bool {
		return s.Username != nil && strings.EqualFold(*s.Username, username)
	})
}

func (m *mockFindStudents) Search(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var out []models.StudentDetail
	terms := strings.Fields(strings.ToLower(filter.Search))
	for _, s := range m.students {
		name := strings.ToLower(s.Surname + " " + s.GivenName + " " + s.CommonName)
		matched := true
		for _, term := range terms {
			if !strings.Contains(name, term) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

type mockClickers struct {
	mappings []models.ClickerRegistration
	seq      int
}

func (m *mockClickers) ListActiveByClickerID(ctx context.Context, clickerID string) ([]models.ClickerRegistration, error) {
	var out []models.ClickerRegistration
	for _, c := range m.mappings {
		if c.ClickerID == clickerID && c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockClickers) FindByStudentAndClicker(ctx context.Context, studentID, clickerID string) (*models.ClickerRegistration, error) {
	for i := range m.mappings {
		if m.mappings[i].StudentID == studentID && m.mappings[i].ClickerID == clickerID {
			copied := m.mappings[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockClickers) Create(ctx context.Context, mapping *models.ClickerRegistration) error {
	m.seq++
	mapping.ID = "clicker-" + strconv.Itoa(m.seq)
	m.mappings = append(m.mappings, *mapping)
	return nil
}

func (m *mockClickers) SetActive(ctx context.Context, id string, active bool) error {
	for i := range m.mappings {
		if m.mappings[i].ID == id {
			m.mappings[i].Active = active
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockRegistrationLister struct {
	byStudent map[string][]models.RegistrationDetail
}

func (m *mockRegistrationLister) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	return m.byStudent[studentID], nil
}

type mockHistoryLister struct {
	byStudent map[string][]models.History
}

func (m *mockHistoryLister) ListByStudent(ctx context.Context, studentID string) ([]models.History, error) {
	return m.byStudent[studentID], nil
}

type recordingHistoryStore struct {
	entries []models.History
}

func (m *recordingHistoryStore) Create(ctx context.Context, entry *models.History) error {
	m.entries = append(m.entries, *entry)
	return nil
}

type stubWebsync struct {
	records map[string][]WebsyncRecord
	err     error
	calls   int
}

func (m *stubWebsync) Registrations(ctx context.Context, clickerID string) ([]WebsyncRecord, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.records[clickerID], nil
}

type findFixture struct {
	students      *mockFindStudents
	clickers      *mockClickers
	registrations *mockRegistrationLister
	history       *mockHistoryLister
	recorded      *recordingHistoryStore
	websync       *stubWebsync
	svc           *FindService
}

func newFindFixture() *findFixture {
	username := "jsmith"
	f := &findFixture{
		students: &mockFindStudents{students: []models.StudentDetail{
			{
				Student:   models.Student{ID: "student-1", StudentNumber: 6713309, Active: true},
				Username:  &username,
				Surname:   "Smith",
				GivenName: "Jane",
			},
			{
				Student:   models.Student{ID: "student-2", StudentNumber: 7700001, Active: true},
				Surname:   "Jones",
				GivenName: "Pat",
			},
		}},
		clickers: &mockClickers{},
		registrations: &mockRegistrationLister{byStudent: map[string][]models.RegistrationDetail{
			"student-1": {{Registration: models.Registration{Status: models.StatusAdded, Active: true}}},
		}},
		history:  &mockHistoryLister{byStudent: map[string][]models.History{}},
		recorded: &recordingHistoryStore{},
		websync:  &stubWebsync{records: map[string][]WebsyncRecord{}},
	}
	recorder := aurora.NewRecorder(f.recorded, nil, zap.NewNop())
	f.svc = NewFindService(f.students, f.clickers, f.registrations, f.history, recorder, f.websync, zap.NewNop())
	return f
}

func TestFindByStudentNumber(t *testing.T) {
	f := newFindFixture()
	student, err := f.svc.Find(context.Background(), "6713309", false)
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)

	_, err = f.svc.Find(context.Background(), "9999999", false)
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestFindByUsername(t *testing.T) {
	f := newFindFixture()
	student, err := f.svc.Find(context.Background(), "JSmith", false)
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)
}

func TestFindShortTermFallsThroughToNames(t *testing.T) {
	f := newFindFixture()
	// not a login anyone has, but a valid surname fragment
	student, err := f.svc.Find(context.Background(), "jones", false)
	require.NoError(t, err)
	assert.Equal(t, "student-2", student.ID)
}

func TestFindByName(t *testing.T) {
	f := newFindFixture()

	student, err := f.svc.Find(context.Background(), "Smith, Jane", false)
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)

	_, err = f.svc.Find(context.Background(), "Nobody Noname Atall", false)
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestFindAmbiguousName(t *testing.T) {
	f := newFindFixture()
	f.students.students = append(f.students.students, models.StudentDetail{
		Student:   models.Student{ID: "student-3", StudentNumber: 7700002, Active: true},
		Surname:   "Smithson",
		GivenName: "Janet",
	})
	_, err := f.svc.Find(context.Background(), "smith jan", false)
	assertCode(t, err, appErrors.ErrConflict.Code)
}

func TestFindEmptyTerm(t *testing.T) {
	f := newFindFixture()
	_, err := f.svc.Find(context.Background(), "   ", false)
	assertCode(t, err, appErrors.ErrValidation.Code)
}

func TestFindByClickerID(t *testing.T) {
	f := newFindFixture()
	f.clickers.mappings = append(f.clickers.mappings, models.ClickerRegistration{
		ID: "clicker-0", StudentID: "student-1", ClickerID: "00AB12CD", Active: true,
	})

	// lowercase, unpadded input normalizes to the stored form
	student, err := f.svc.Find(context.Background(), "ab12cd", false)
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)
}

func TestFindClickerNotUnique(t *testing.T) {
	f := newFindFixture()
	f.clickers.mappings = append(f.clickers.mappings,
		models.ClickerRegistration{ID: "c1", StudentID: "student-1", ClickerID: "00AB12CD", Active: true},
		models.ClickerRegistration{ID: "c2", StudentID: "student-2", ClickerID: "00AB12CD", Active: true},
	)
	_, err := f.svc.Find(context.Background(), "ab12cd", false)
	assertCode(t, err, appErrors.ErrConflict.Code)
}

func TestFindClickerWebsyncCreatesMapping(t *testing.T) {
	f := newFindFixture()
	f.websync.records["00AB12CD"] = []WebsyncRecord{{ClickerID: "00AB12CD", StudentNumber: 6713309}}

	student, err := f.svc.Find(context.Background(), "ab12cd", true)
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)

	require.Len(t, f.clickers.mappings, 1)
	assert.True(t, f.clickers.mappings[0].Active)
	require.Len(t, f.recorded.entries, 1)
	assert.Equal(t, "found new www.iclicker.com web registration for iclicker ID 00AB12CD", f.recorded.entries[0].Message)
	assert.Equal(t, "clicker.websync", f.recorded.entries[0].Annotation)
}

func TestFindClickerWebsyncReactivatesMapping(t *testing.T) {
	f := newFindFixture()
	f.clickers.mappings = append(f.clickers.mappings, models.ClickerRegistration{
		ID: "c1", StudentID: "student-1", ClickerID: "00AB12CD", Active: false,
	})
	f.websync.records["00AB12CD"] = []WebsyncRecord{{ClickerID: "00AB12CD", StudentNumber: 6713309}}

	student, err := f.svc.Find(context.Background(), "ab12cd", true)
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)
	assert.True(t, f.clickers.mappings[0].Active)
	require.Len(t, f.recorded.entries, 1)
	assert.Equal(t, "reactivated www.iclicker.com web registration for iclicker ID 00AB12CD", f.recorded.entries[0].Message)
}

func TestFindClickerWebsyncSkipsBadStanding(t *testing.T) {
	f := newFindFixture()
	// student-2 has no registrations in good standing
	f.websync.records["00AB12CD"] = []WebsyncRecord{{ClickerID: "00AB12CD", StudentNumber: 7700001}}

	_, err := f.svc.Find(context.Background(), "ab12cd", true)
	assertCode(t, err, appErrors.ErrNotFound.Code)
	assert.Empty(t, f.clickers.mappings)
}

func TestFindClickerWebsyncFailureIsSoft(t *testing.T) {
	f := newFindFixture()
	f.websync.err = errors.New("connection refused")

	_, err := f.svc.Find(context.Background(), "ab12cd", true)
	assertCode(t, err, appErrors.ErrNotFound.Code)
	assert.Equal(t, 1, f.websync.calls)
}

func TestFindClickerWithoutWebsyncFlag(t *testing.T) {
	f := newFindFixture()
	f.websync.records["00AB12CD"] = []WebsyncRecord{{ClickerID: "00AB12CD", StudentNumber: 6713309}}

	_, err := f.svc.Find(context.Background(), "ab12cd", false)
	assertCode(t, err, appErrors.ErrNotFound.Code)
	assert.Equal(t, 0, f.websync.calls)
}

func TestProfile(t *testing.T) {
	f := newFindFixture()
	f.history.byStudent["student-1"] = []models.History{{StudentID: "student-1", Message: "Reactivated student"}}

	profile, err := f.svc.Profile(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", profile.Student.ID)
	assert.Len(t, profile.Registrations, 1)
	assert.Len(t, profile.History, 1)

	_, err = f.svc.Profile(context.Background(), "missing")
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestNormalizeClickerID(t *testing.T) {
	assert.Equal(t, "00AB12CD", normalizeClickerID("ab12cd"))
	assert.Equal(t, "12345678", normalizeClickerID("12345678"))
	assert.Equal(t, "0000000F", normalizeClickerID("f"))
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr, fmt.Sprintf("expected coded error, got %v", err))
	assert.Equal(t, code, appErr.Code)
}
