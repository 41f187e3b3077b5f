package aurora

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/models"
	"github.com/umworks/aurora-sync/internal/repository"
)

type mockPersonStore struct {
	people map[string]models.Person
	emails []models.EmailAddress
	seq    int
}

func newMockPersonStore() *mockPersonStore {
	return &mockPersonStore{people: make(map[string]models.Person)}
}

func (m *mockPersonStore) add(p models.Person) *models.Person {
	if p.ID == "" {
		m.seq++
		p.ID = fmt.Sprintf("person-%d", m.seq)
	}
	m.people[p.ID] = p
	return &p
}

func (m *mockPersonStore) FindByUsername(ctx context.Context, username string) (*models.Person, error) {
	for _, p := range m.people {
		if p.Username != nil && *p.Username == username {
			p := p
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPersonStore) FindByEmail(ctx context.Context, address string) (*models.Person, error) {
	for _, e := range m.emails {
		if strings.EqualFold(e.Address, address) {
			return m.FindByID(ctx, e.PersonID)
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPersonStore) FindByID(ctx context.Context, id string) (*models.Person, error) {
	if p, ok := m.people[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPersonStore) Create(ctx context.Context, person *models.Person) error {
	m.seq++
	person.ID = fmt.Sprintf("person-%d", m.seq)
	m.people[person.ID] = *person
	return nil
}

func (m *mockPersonStore) Update(ctx context.Context, person *models.Person) error {
	if _, ok := m.people[person.ID]; !ok {
		return sql.ErrNoRows
	}
	m.people[person.ID] = *person
	return nil
}

func (m *mockPersonStore) AddEmail(ctx context.Context, email *models.EmailAddress) error {
	for _, e := range m.emails {
		if e.PersonID == email.PersonID && strings.EqualFold(e.Address, email.Address) {
			return nil
		}
	}
	m.emails = append(m.emails, *email)
	return nil
}

type mockStudentStore struct {
	students map[string]models.Student
	people   *mockPersonStore
	seq      int
	// raceNumber hides that student number from FindByNumber until a
	// Create collides with it, simulating a concurrent insert.
	raceNumber   int
	raceRevealed bool
}

func newMockStudentStore(people *mockPersonStore) *mockStudentStore {
	return &mockStudentStore{students: make(map[string]models.Student), people: people}
}

func (m *mockStudentStore) add(s models.Student) *models.Student {
	if s.ID == "" {
		m.seq++
		s.ID = fmt.Sprintf("student-%d", m.seq)
	}
	m.students[s.ID] = s
	return &s
}

func (m *mockStudentStore) detail(s models.Student) *models.StudentDetail {
	d := &models.StudentDetail{Student: s}
	if p, ok := m.people.people[s.PersonID]; ok {
		d.Username = p.Username
		d.Surname = p.Surname
		d.GivenName = p.GivenName
		d.CommonName = p.CommonName
	}
	return d
}

func (m *mockStudentStore) FindByNumber(ctx context.Context, number int) (*models.StudentDetail, error) {
	if number == m.raceNumber && !m.raceRevealed {
		return nil, sql.ErrNoRows
	}
	for _, s := range m.students {
		if s.StudentNumber == number {
			return m.detail(s), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error) {
	for _, s := range m.students {
		if p, ok := m.people.people[s.PersonID]; ok && p.Username != nil && *p.Username == username {
			return m.detail(s), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) FindByPersonID(ctx context.Context, personID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.PersonID == personID {
			s := s
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	for _, s := range m.students {
		if s.StudentNumber == student.StudentNumber {
			m.raceRevealed = true
			return repository.ErrDuplicate
		}
	}
	m.seq++
	student.ID = fmt.Sprintf("student-%d", m.seq)
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentStore) Update(ctx context.Context, student *models.Student) error {
	if _, ok := m.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	m.students[student.ID] = *student
	return nil
}

type mockCourseStore struct {
	courses map[string]models.Course
}

func (m *mockCourseStore) FindBySlug(ctx context.Context, slug string) (*models.Course, error) {
	if c, ok := m.courses[slug]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockTermStore struct {
	terms []models.Term
}

func (m *mockTermStore) FindByDate(ctx context.Context, d time.Time) (*models.Term, error) {
	for _, t := range m.terms {
		if t.Contains(d) {
			t := t
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockSectionStore struct {
	sections  map[string]models.SectionDetail
	seq       int
	created   []string
	activated []string
}

func newMockSectionStore() *mockSectionStore {
	return &mockSectionStore{sections: make(map[string]models.SectionDetail)}
}

func (m *mockSectionStore) add(s models.SectionDetail) *models.SectionDetail {
	if s.ID == "" {
		m.seq++
		s.ID = fmt.Sprintf("section-%d", m.seq)
	}
	m.sections[s.ID] = s
	return &s
}

func (m *mockSectionStore) FindByKeys(ctx context.Context, courseID, termID, sectionName, crn string) (*models.Section, error) {
	for _, s := range m.sections {
		if s.CourseID == courseID && s.TermID == termID && s.SectionName == sectionName && s.CRN == crn {
			sec := s.Section
			return &sec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSectionStore) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if s, ok := m.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSectionStore) ListActiveByCRNs(ctx context.Context, crns []string) ([]models.SectionDetail, error) {
	want := make(map[string]struct{}, len(crns))
	for _, crn := range crns {
		want[crn] = struct{}{}
	}
	var out []models.SectionDetail
	for _, s := range m.sections {
		if _, ok := want[s.CRN]; ok && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSectionStore) Create(ctx context.Context, section *models.Section) error {
	m.seq++
	section.ID = fmt.Sprintf("section-%d", m.seq)
	m.sections[section.ID] = models.SectionDetail{Section: *section}
	m.created = append(m.created, section.ID)
	return nil
}

func (m *mockSectionStore) SetActive(ctx context.Context, id string, active bool) error {
	s, ok := m.sections[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Active = active
	m.sections[id] = s
	m.activated = append(m.activated, id)
	return nil
}

type mockRegistrationStore struct {
	regs     map[string]models.Registration
	students *mockStudentStore
	sections *mockSectionStore
	seq      int
	updated  int
}

func newMockRegistrationStore(students *mockStudentStore, sections *mockSectionStore) *mockRegistrationStore {
	return &mockRegistrationStore{regs: make(map[string]models.Registration), students: students, sections: sections}
}

func (m *mockRegistrationStore) add(r models.Registration) *models.Registration {
	if r.ID == "" {
		m.seq++
		r.ID = fmt.Sprintf("reg-%d", m.seq)
	}
	m.regs[r.ID] = r
	return &r
}

func (m *mockRegistrationStore) FindByStudentAndSection(ctx context.Context, studentID, sectionID string) (*models.Registration, error) {
	for _, r := range m.regs {
		if r.StudentID == studentID && r.SectionID == sectionID {
			r := r
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationStore) Create(ctx context.Context, reg *models.Registration) error {
	m.seq++
	reg.ID = fmt.Sprintf("reg-%d", m.seq)
	m.regs[reg.ID] = *reg
	return nil
}

func (m *mockRegistrationStore) Update(ctx context.Context, reg *models.Registration) error {
	if _, ok := m.regs[reg.ID]; !ok {
		return sql.ErrNoRows
	}
	m.regs[reg.ID] = *reg
	m.updated++
	return nil
}

func (m *mockRegistrationStore) ListActiveBySections(ctx context.Context, sectionIDs []string) ([]models.RegistrationDetail, error) {
	want := make(map[string]struct{}, len(sectionIDs))
	for _, id := range sectionIDs {
		want[id] = struct{}{}
	}
	var out []models.RegistrationDetail
	for _, r := range m.regs {
		if _, ok := want[r.SectionID]; !ok || !r.Active {
			continue
		}
		d := models.RegistrationDetail{Registration: r}
		if s, ok := m.students.students[r.StudentID]; ok {
			d.StudentNumber = s.StudentNumber
		}
		if sec, ok := m.sections.sections[r.SectionID]; ok {
			d.SectionSlug = sec.Slug
		}
		out = append(out, d)
	}
	return out, nil
}

type mockHistoryStore struct {
	entries []models.History
}

func (m *mockHistoryStore) Create(ctx context.Context, entry *models.History) error {
	entry.ID = fmt.Sprintf("hist-%d", len(m.entries)+1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockHistoryStore) messagesFor(studentID string) []string {
	var out []string
	for _, e := range m.entries {
		if e.StudentID == studentID {
			out = append(out, e.Message)
		}
	}
	return out
}

func (m *mockHistoryStore) contains(studentID, fragment string) bool {
	for _, msg := range m.messagesFor(studentID) {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

type mockAuditStore struct {
	entries []models.AuditLog
}

func (m *mockAuditStore) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = fmt.Sprintf("audit-%d", len(m.entries)+1)
	m.entries = append(m.entries, *entry)
	return nil
}

// world bundles all mock stores plus a seeded course, term and section so
// individual tests only state what differs.
type world struct {
	people   *mockPersonStore
	students *mockStudentStore
	courses  *mockCourseStore
	terms    *mockTermStore
	sections *mockSectionStore
	regs     *mockRegistrationStore
	history  *mockHistoryStore
	audit    *mockAuditStore

	course  models.Course
	term    models.Term
	section *models.SectionDetail

	recorder   *Recorder
	resolver   *SectionResolver
	matcher    *Matcher
	reconciler *Reconciler
}

func newWorld() *world {
	w := &world{
		people:   newMockPersonStore(),
		courses:  &mockCourseStore{courses: make(map[string]models.Course)},
		terms:    &mockTermStore{},
		sections: newMockSectionStore(),
		history:  &mockHistoryStore{},
		audit:    &mockAuditStore{},
	}
	w.students = newMockStudentStore(w.people)
	w.regs = newMockRegistrationStore(w.students, w.sections)

	w.course = models.Course{ID: "course-1", DepartmentCode: "STAT", Code: "1000", Slug: "stat-1000", Active: true}
	w.courses.courses[w.course.Slug] = w.course
	w.term = models.Term{
		ID: "term-1", Year: 2026, TermOfYear: models.TermFall,
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
		Slug:      "2026/3", Active: true,
	}
	w.terms.terms = append(w.terms.terms, w.term)
	w.section = w.sections.add(models.SectionDetail{
		Section: models.Section{
			CourseID: w.course.ID, TermID: w.term.ID,
			SectionName: "A01", CRN: "12345",
			Slug: "stat-1000-a01-2026-3", Active: true,
		},
		DepartmentCode: w.course.DepartmentCode,
		CourseCode:     w.course.Code,
		TermYear:       w.term.Year,
		TermOfYear:     w.term.TermOfYear,
		TermSlug:       w.term.Slug,
	})

	logger := zap.NewNop()
	w.recorder = NewRecorder(w.history, w.audit, logger)
	w.resolver = NewSectionResolver(w.courses, w.terms, w.sections, logger)
	w.matcher = NewMatcher(w.students, w.people, w.recorder, DomainUsernames([]string{"cc.umanitoba.ca", "myumanitoba.ca"}), DomainEmailTypes([]string{"cc.umanitoba.ca", "myumanitoba.ca"}), logger)
	w.reconciler = NewReconciler(w.resolver, w.matcher, w.regs, w.recorder, logger)
	return w
}

// seedStudent creates a linked person and student, returning the student
// detail the stores will serve.
func (w *world) seedStudent(number int, username, surname, given string) *models.StudentDetail {
	var uptr *string
	if username != "" {
		u := username
		uptr = &u
	}
	p := w.people.add(models.Person{
		Username: uptr, Surname: surname, GivenName: given,
		CommonName: strings.TrimSpace(given + " " + surname), Active: true,
	})
	s := w.students.add(models.Student{PersonID: p.ID, StudentNumber: number, Active: true})
	return w.students.detail(*s)
}
