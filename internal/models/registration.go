package models

import "time"

// Registration links one student to one section. At most one registration
// exists per (student, section) pair, ever; inactive rows are kept for the
// audit trail.
type Registration struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	SectionID      string    `db:"section_id" json:"section_id"`
	Status         Status    `db:"status" json:"status"`
	AuroraVerified bool      `db:"aurora_verified" json:"aurora_verified"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// GoodStanding reports whether this registration is valid and current.
func (r *Registration) GoodStanding() bool {
	return r.Active && r.Status.GoodStanding()
}

// AuroraActive reports whether the registration is active, confirmed on
// the most recent authoritative extract, and not withdrawn.
func (r *Registration) AuroraActive() bool {
	if !r.Active || !r.AuroraVerified {
		return false
	}
	return !r.Status.Withdrawn()
}

// RegistrationDetail joins a registration with student and section info.
type RegistrationDetail struct {
	Registration
	StudentNumber int     `db:"student_number" json:"student_number"`
	Surname       string  `db:"surname" json:"surname"`
	GivenName     string  `db:"given_name" json:"given_name"`
	Username      *string `db:"username" json:"username,omitempty"`
	SectionSlug   string  `db:"section_slug" json:"section_slug"`
}

// RegistrationFilter provides filters for listing registrations.
type RegistrationFilter struct {
	StudentID string
	SectionID string
	Status    Status
	Active    *bool
	Page      int
	PageSize  int
}
