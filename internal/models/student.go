package models

import (
	"fmt"
	"time"
)

// Student identifies a person as an enrolled learner. The student number
// is unique across active and inactive rows; students are deactivated,
// never deleted.
type Student struct {
	ID            string    `db:"id" json:"id"`
	PersonID      string    `db:"person_id" json:"person_id"`
	StudentNumber int       `db:"student_number" json:"student_number"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// NumberString returns the canonical 7-digit zero-padded student number.
func (s *Student) NumberString() string {
	return fmt.Sprintf("%07d", s.StudentNumber)
}

// StudentDetail carries a student joined with its person record.
type StudentDetail struct {
	Student
	Username   *string `db:"username" json:"username,omitempty"`
	Surname    string  `db:"surname" json:"surname"`
	GivenName  string  `db:"given_name" json:"given_name"`
	CommonName string  `db:"common_name" json:"common_name"`
}

// DisplayName renders "Surname, GivenName" as shown on classlists.
func (s *StudentDetail) DisplayName() string {
	return s.Surname + ", " + s.GivenName
}

// HasValidUsername reports whether the joined person has a real login.
func (s *StudentDetail) HasValidUsername() bool {
	return s.Username != nil && *s.Username != "" && (*s.Username)[0] != '!'
}

// StudentFilter encapsulates search parameters for listing students.
type StudentFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}
