package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/models"
	appErrors "github.com/umworks/aurora-sync/pkg/errors"
)

type mockRosterSections struct {
	sections map[string]*models.SectionDetail
}

func (m *mockRosterSections) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if s, ok := m.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterSections) List(ctx context.Context, activeOnly bool) ([]models.SectionDetail, error) {
	var out []models.SectionDetail
	for _, s := range m.sections {
		if activeOnly && !s.Active {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

type mockRosterRegistrations struct {
	registrations []models.RegistrationDetail
}

func (m *mockRosterRegistrations) ListActiveBySections(ctx context.Context, sectionIDs []string) ([]models.RegistrationDetail, error) {
	var out []models.RegistrationDetail
	for _, reg := range m.registrations {
		for _, id := range sectionIDs {
			if reg.SectionID == id && reg.Active {
				out = append(out, reg)
			}
		}
	}
	return out, nil
}

func newExportFixture() *ExportService {
	username := "jsmith"
	sections := &mockRosterSections{sections: map[string]*models.SectionDetail{
		"section-1": {
			Section: models.Section{
				ID:          "section-1",
				SectionName: "A01",
				CRN:         "12345",
				Slug:        "stat-1000-a01-2026-3",
				Active:      true,
			},
			DepartmentCode: "STAT",
			CourseCode:     "1000",
			TermYear:       2026,
			TermOfYear:     models.TermFall,
			TermSlug:       "2026/3",
		},
		"section-2": {
			Section: models.Section{ID: "section-2", SectionName: "A02", Slug: "stat-1000-a02-2026-3"},
		},
	}}
	registrations := &mockRosterRegistrations{registrations: []models.RegistrationDetail{
		{
			Registration:  models.Registration{SectionID: "section-1", Status: models.StatusAdded, Active: true},
			StudentNumber: 6713309,
			Surname:       "Smith",
			GivenName:     "Jane",
			Username:      &username,
		},
		{
			Registration:  models.Registration{SectionID: "section-1", Status: models.StatusVoluntaryW, Active: true},
			StudentNumber: 7700001,
			Surname:       "Jones",
			GivenName:     "Pat",
		},
	}}
	return NewExportService(sections, registrations, zap.NewNop())
}

func TestExportSections(t *testing.T) {
	svc := newExportFixture()

	all, err := svc.Sections(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.Sections(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "section-1", active[0].ID)
}

func TestExportRosterCSV(t *testing.T) {
	svc := newExportFixture()

	file, err := svc.Roster(context.Background(), "section-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster-stat-1000-a01-2026-3.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student Number,Surname,Given Name,Username,Status,Good Standing", strings.TrimSpace(lines[0]))
	// surname order, zero-padded numbers, status labels
	assert.Contains(t, lines[1], "7700001")
	assert.Contains(t, lines[1], "Jones")
	assert.Contains(t, lines[1], "no")
	assert.Contains(t, lines[2], "6713309")
	assert.Contains(t, lines[2], "jsmith")
	assert.Contains(t, lines[2], "yes")
}

func TestExportRosterDefaultsToCSV(t *testing.T) {
	svc := newExportFixture()
	file, err := svc.Roster(context.Background(), "section-1", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
}

func TestExportRosterPDF(t *testing.T) {
	svc := newExportFixture()
	file, err := svc.Roster(context.Background(), "section-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "roster-stat-1000-a01-2026-3.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestExportRosterUnknownSection(t *testing.T) {
	svc := newExportFixture()
	_, err := svc.Roster(context.Background(), "missing", ExportFormatCSV)
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestExportRosterUnknownFormat(t *testing.T) {
	svc := newExportFixture()
	_, err := svc.Roster(context.Background(), "section-1", "xlsx")
	assertCode(t, err, appErrors.ErrValidation.Code)
}
