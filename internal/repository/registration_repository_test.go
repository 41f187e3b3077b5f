package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/umworks/aurora-sync/internal/models"
)

func registrationDetailRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "student_id", "section_id", "status", "aurora_verified",
		"active", "created_at", "updated_at",
		"student_number", "surname", "given_name", "username", "section_slug",
	}).AddRow("reg-1", "student-1", "section-1", "AA", true, true, now, now,
		6713309, "Smith", "Jane", "jsmith", "stat-1000-a01-2026-3")
}

func TestRegistrationRepositoryFindByStudentAndSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "section_id", "status", "aurora_verified", "active", "created_at", "updated_at"}).
		AddRow("reg-1", "student-1", "section-1", "AA", true, true, now, now)
	mock.ExpectQuery("SELECT id, student_id, section_id").
		WithArgs("student-1", "section-1").
		WillReturnRows(rows)

	reg, err := repo.FindByStudentAndSection(context.Background(), "student-1", "section-1")
	require.NoError(t, err)
	require.Equal(t, "reg-1", reg.ID)
	require.Equal(t, models.StatusAdded, reg.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	reg := &models.Registration{StudentID: "student-1", SectionID: "section-1", Status: models.StatusAdded}
	require.NoError(t, repo.Create(context.Background(), reg))
	require.NotEmpty(t, reg.ID)
	require.True(t, reg.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListActiveBySections(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery("SELECT reg.id, reg.student_id, reg.section_id").
		WithArgs("section-1", "section-2").
		WillReturnRows(registrationDetailRows())

	regs, err := repo.ListActiveBySections(context.Background(), []string{"section-1", "section-2"})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, 6713309, regs[0].StudentNumber)
	require.Equal(t, "stat-1000-a01-2026-3", regs[0].SectionSlug)
	require.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.ListActiveBySections(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestRegistrationRepositoryCountActiveBySections(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations")).
		WithArgs("section-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.CountActiveBySections(context.Background(), []string{"section-1"})
	require.NoError(t, err)
	require.Equal(t, 42, total)
	require.NoError(t, mock.ExpectationsWereMet())

	zero, err := repo.CountActiveBySections(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, zero)
}
