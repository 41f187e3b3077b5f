package models

import "time"

// Terms of year as encoded in report academic periods: the month digit of
// a YYYYMDD academic period maps 1, 5, 9 to terms 1, 2, 3.
const (
	TermWinter = 1
	TermSummer = 2
	TermFall   = 3
)

// Term is one academic term, found by date containment when resolving
// classlist durations.
type Term struct {
	ID         string    `db:"id" json:"id"`
	Year       int       `db:"year" json:"year"`
	TermOfYear int       `db:"term_of_year" json:"term_of_year"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`
	Slug       string    `db:"slug" json:"slug"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Contains reports whether d falls inside the term's date range.
func (t *Term) Contains(d time.Time) bool {
	return !d.Before(t.StartDate) && !d.After(t.EndDate)
}
