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
	"github.com/umworks/aurora-sync/internal/repository"
)

// StudentStore persists student records.
type StudentStore interface {
	FindByNumber(ctx context.Context, number int) (*models.StudentDetail, error)
	FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error)
	FindByPersonID(ctx context.Context, personID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// PersonStore persists person and email records.
type PersonStore interface {
	FindByUsername(ctx context.Context, username string) (*models.Person, error)
	FindByEmail(ctx context.Context, address string) (*models.Person, error)
	FindByID(ctx context.Context, id string) (*models.Person, error)
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, person *models.Person) error
	AddEmail(ctx context.Context, email *models.EmailAddress) error
}

// Matcher resolves one extract row to a student record, creating or
// repairing student and person rows as needed. The extract is treated as
// authoritative: student numbers, names and usernames on file are
// corrected to match it.
type Matcher struct {
	students  StudentStore
	people    PersonStore
	recorder  *Recorder
	username  UsernameFunc
	emailType EmailTypeFunc
	logger    *zap.Logger
}

// NewMatcher constructs a matcher. username may be nil, in which case
// logins are never derived and login requirements are disabled.
func NewMatcher(students StudentStore, people PersonStore, recorder *Recorder, username UsernameFunc, emailType EmailTypeFunc, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		students:  students,
		people:    people,
		recorder:  recorder,
		username:  username,
		emailType: emailType,
		logger:    logger,
	}
}

// Match finds or creates the student for an extract row. section is used
// only to label history entries. With requireValidLogin set, a row whose
// email yields no username and that matches no existing student returns
// an InvalidUsernameError, which the caller treats as a skipped row.
func (m *Matcher) Match(ctx context.Context, row extract.Row, section *models.SectionDetail, requireValidLogin bool) (*models.StudentDetail, error) {
	if m.username == nil {
		requireValidLogin = false
	}

	number, err := row.StudentNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid student number in record %s", extract.ErrInvalidFormat, row.RecordNumber)
	}
	var username string
	haveUsername := false
	if m.username != nil {
		username, haveUsername = m.username(row.Email)
	}

	student, err := m.findOrCreate(ctx, row, section, number, username, haveUsername, requireValidLogin)
	if err != nil {
		return nil, err
	}

	// The extract wins over whatever is on file.
	if student.StudentNumber != number {
		if err := m.correctNumber(ctx, student, number); err != nil {
			return nil, err
		}
	}
	if !student.Active {
		if err := m.reactivate(ctx, student, section); err != nil {
			return nil, err
		}
	}
	if haveUsername && !student.HasValidUsername() && usernameString(student.Username) != username {
		if err := m.correctUsername(ctx, student, username); err != nil {
			return nil, err
		}
	}
	return student, nil
}

func (m *Matcher) findOrCreate(ctx context.Context, row extract.Row, section *models.SectionDetail, number int, username string, haveUsername, requireValidLogin bool) (*models.StudentDetail, error) {
	// The student number is the authoritative key. Inactive rows count:
	// the number stays unique for the life of the record.
	student, err := m.students.FindByNumber(ctx, number)
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find student by number: %w", err)
	}

	if haveUsername {
		// A username match with a different number on file means the
		// record was self-registered without a real student number.
		student, err = m.students.FindByUsername(ctx, username)
		if err == nil {
			return student, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find student by username: %w", err)
		}
	} else if requireValidLogin {
		return nil, &InvalidUsernameError{StudentNumber: number, Name: row.Name}
	}

	person, err := m.getOrCreatePerson(ctx, row.Name, username, haveUsername, row.Email, number)
	if err != nil {
		return nil, err
	}
	return m.createStudent(ctx, person, number, section)
}

// getOrCreatePerson locates the person for a new student row, by username
// when one was derived, otherwise by email, otherwise by creating a fresh
// record. An existing person already linked to a different student number
// is never reused: names collide, student numbers do not.
func (m *Matcher) getOrCreatePerson(ctx context.Context, rawName, username string, haveUsername bool, email string, number int) (*models.Person, error) {
	name := parseName(rawName)

	var person *models.Person
	created := false
	if haveUsername {
		found, err := m.people.FindByUsername(ctx, username)
		switch {
		case err == nil:
			person = found
		case errors.Is(err, sql.ErrNoRows):
			u := username
			person = &models.Person{
				Username:   &u,
				Surname:    name.Surname,
				GivenName:  name.GivenName,
				CommonName: name.CommonName(),
				Active:     true,
			}
			if err := m.people.Create(ctx, person); err != nil {
				return nil, fmt.Errorf("create person: %w", err)
			}
			created = true
		default:
			return nil, fmt.Errorf("find person by username: %w", err)
		}
	} else {
		if email != "" {
			found, err := m.people.FindByEmail(ctx, email)
			switch {
			case err == nil:
				person = found
			case errors.Is(err, sql.ErrNoRows):
			default:
				return nil, fmt.Errorf("find person by email: %w", err)
			}
		}
		if person == nil {
			person = &models.Person{
				Surname:    name.Surname,
				GivenName:  name.GivenName,
				CommonName: name.CommonName(),
				Active:     true,
			}
			if err := m.people.Create(ctx, person); err != nil {
				return nil, fmt.Errorf("create person: %w", err)
			}
			created = true
		}
	}

	if !created {
		existing, err := m.students.FindByPersonID(ctx, person.ID)
		switch {
		case err == nil && existing.StudentNumber != number:
			person = &models.Person{
				Surname:    name.Surname,
				GivenName:  name.GivenName,
				CommonName: name.CommonName(),
				Active:     true,
			}
			if err := m.people.Create(ctx, person); err != nil {
				return nil, fmt.Errorf("create person: %w", err)
			}
			created = true
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("find student by person: %w", err)
		}
	}

	if created {
		msg := fmt.Sprintf("Created for student #%d", number)
		if err := m.recorder.RecordResource(ctx, "person", person.ID, annotationMatcher, msg); err != nil {
			return nil, err
		}
	}

	if err := m.addEmail(ctx, person, email, created); err != nil {
		return nil, err
	}
	if err := m.updatePersonNames(ctx, person, name); err != nil {
		return nil, err
	}
	return person, nil
}

func (m *Matcher) addEmail(ctx context.Context, person *models.Person, email string, preferred bool) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil
	}
	typeSlug := models.EmailTypeHome
	if m.emailType != nil {
		typeSlug = m.emailType(email)
	}
	err := m.people.AddEmail(ctx, &models.EmailAddress{
		PersonID:  person.ID,
		Address:   email,
		TypeSlug:  typeSlug,
		Preferred: preferred,
		Active:    true,
	})
	if err != nil {
		return fmt.Errorf("add email: %w", err)
	}
	return nil
}

func (m *Matcher) updatePersonNames(ctx context.Context, person *models.Person, name parsedName) error {
	dirty := false
	if person.Surname != name.Surname {
		person.Surname = name.Surname
		dirty = true
	}
	if person.GivenName != name.GivenName {
		person.GivenName = name.GivenName
		dirty = true
	}
	if cn := name.CommonName(); person.CommonName != cn {
		person.CommonName = cn
		dirty = true
	}
	if !person.Active {
		person.Active = true
		dirty = true
	}
	if !dirty {
		return nil
	}
	if err := m.people.Update(ctx, person); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// createStudent inserts the student row. A duplicate key means a
// concurrent import created the same number between our lookup and the
// insert; the surviving row is adopted and repaired instead.
func (m *Matcher) createStudent(ctx context.Context, person *models.Person, number int, section *models.SectionDetail) (*models.StudentDetail, error) {
	student := &models.Student{PersonID: person.ID, StudentNumber: number, Active: true}
	err := m.students.Create(ctx, student)
	if err == nil {
		detail := &models.StudentDetail{
			Student:    *student,
			Username:   person.Username,
			Surname:    person.Surname,
			GivenName:  person.GivenName,
			CommonName: person.CommonName,
		}
		msg := fmt.Sprintf("Created new student record for course %s (%s)", section.Label(), section.TermLabel())
		if err := m.recorder.Record(ctx, student.ID, annotationMatcher, msg); err != nil {
			return nil, err
		}
		return detail, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("create student: %w", err)
	}

	existing, ferr := m.students.FindByNumber(ctx, number)
	if ferr != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	if rerr := m.recorder.Record(ctx, existing.ID, annotationMatcher, "Duplicate student would have been created."); rerr != nil {
		return nil, rerr
	}
	dirty := false
	if !existing.Active {
		existing.Active = true
		dirty = true
		if rerr := m.recorder.Record(ctx, existing.ID, annotationMatcher, "Reactivated student"); rerr != nil {
			return nil, rerr
		}
	}
	if existing.PersonID != person.ID {
		msg := fmt.Sprintf("WARNING: different person records detected [old: %s; new: %s] updating", existing.PersonID, person.ID)
		if rerr := m.recorder.Record(ctx, existing.ID, annotationMatcher, msg); rerr != nil {
			return nil, rerr
		}
		existing.PersonID = person.ID
		existing.Username = person.Username
		existing.Surname = person.Surname
		existing.GivenName = person.GivenName
		existing.CommonName = person.CommonName
		dirty = true
	}
	if !person.Active {
		if rerr := m.recorder.Record(ctx, existing.ID, annotationMatcher, "Reactivating person record"); rerr != nil {
			return nil, rerr
		}
		person.Active = true
		if uerr := m.people.Update(ctx, person); uerr != nil {
			return nil, fmt.Errorf("update person: %w", uerr)
		}
	}
	if dirty {
		if uerr := m.students.Update(ctx, &existing.Student); uerr != nil {
			return nil, fmt.Errorf("update student: %w", uerr)
		}
	}
	m.logger.Warn("duplicate student insert recovered", zap.Int("student_number", number))
	return existing, nil
}

func (m *Matcher) correctNumber(ctx context.Context, student *models.StudentDetail, number int) error {
	old := student.StudentNumber
	student.StudentNumber = number
	if err := m.students.Update(ctx, &student.Student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	msg := fmt.Sprintf("Correcting bad student number [was: %d], now: %d", old, number)
	return m.recorder.Record(ctx, student.ID, annotationMatcher, msg)
}

func (m *Matcher) reactivate(ctx context.Context, student *models.StudentDetail, section *models.SectionDetail) error {
	student.Active = true
	if err := m.students.Update(ctx, &student.Student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	msg := fmt.Sprintf("Reactivating student for course %s (%s)", section.Label(), section.TermLabel())
	return m.recorder.Record(ctx, student.ID, annotationMatcher, msg)
}

// correctUsername replaces a missing or placeholder login with the one
// the extract implies. When a person already owns that login, the student
// is repointed to that person; otherwise the current person is renamed.
func (m *Matcher) correctUsername(ctx context.Context, student *models.StudentDetail, username string) error {
	owner, err := m.people.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		person, perr := m.people.FindByID(ctx, student.PersonID)
		if perr != nil {
			return fmt.Errorf("find person: %w", perr)
		}
		old := usernameString(person.Username)
		u := username
		person.Username = &u
		if uerr := m.people.Update(ctx, person); uerr != nil {
			return fmt.Errorf("update person: %w", uerr)
		}
		student.Username = &u
		msg := fmt.Sprintf("Updating student to aurora valid username (%s --> %s)", old, username)
		return m.recorder.Record(ctx, student.ID, annotationMatcher, msg)
	case err != nil:
		return fmt.Errorf("find person by username: %w", err)
	}

	oldPersonID := student.PersonID
	student.PersonID = owner.ID
	student.Username = owner.Username
	student.Surname = owner.Surname
	student.GivenName = owner.GivenName
	student.CommonName = owner.CommonName
	if uerr := m.students.Update(ctx, &student.Student); uerr != nil {
		return fmt.Errorf("update student: %w", uerr)
	}
	msg := fmt.Sprintf("Updating student person record to existing person (%s --> %s)", oldPersonID, owner.ID)
	if rerr := m.recorder.Record(ctx, student.ID, annotationMatcher, msg); rerr != nil {
		return rerr
	}
	if !owner.Active {
		if rerr := m.recorder.Record(ctx, student.ID, annotationMatcher, "Reactivate person record"); rerr != nil {
			return rerr
		}
		owner.Active = true
		if uerr := m.people.Update(ctx, owner); uerr != nil {
			return fmt.Errorf("update person: %w", uerr)
		}
	}
	return nil
}

func usernameString(u *string) string {
	if u == nil {
		return ""
	}
	return *u
}
