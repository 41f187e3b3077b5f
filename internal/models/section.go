package models

import "time"

// Course is a department offering, e.g. MATH 1500.
type Course struct {
	ID             string    `db:"id" json:"id"`
	DepartmentCode string    `db:"department_code" json:"department_code"`
	Code           string    `db:"code" json:"code"`
	Slug           string    `db:"slug" json:"slug"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Section is a specific offering of a course in a term. Both
// (course, term, section_name) and the CRN are near-unique keys; the CRN
// is authoritative when reconciling report extracts.
type Section struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	TermID      string    `db:"term_id" json:"term_id"`
	SectionName string    `db:"section_name" json:"section_name"`
	CRN         string    `db:"crn" json:"crn"`
	Slug        string    `db:"slug" json:"slug"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SectionDetail joins a section with its course and term for display.
type SectionDetail struct {
	Section
	DepartmentCode string `db:"department_code" json:"department_code"`
	CourseCode     string `db:"course_code" json:"course_code"`
	TermYear       int    `db:"term_year" json:"term_year"`
	TermOfYear     int    `db:"term_of_year" json:"term_of_year"`
	TermSlug       string `db:"term_slug" json:"term_slug"`
}

// Label renders "DEPT CODE - SECTION" the way classlists print it.
func (s *SectionDetail) Label() string {
	return s.DepartmentCode + " " + s.CourseCode + " - " + s.SectionName
}

// TermLabel renders the term as "year/term", e.g. "2026/3".
func (s *SectionDetail) TermLabel() string {
	return s.TermSlug
}
