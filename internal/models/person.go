package models

import "time"

// Email type slugs assigned by the configured address classifier.
const (
	EmailTypeWork = "work"
	EmailTypeHome = "home"
)

// Person is the contact-directory record a student links to. Username is
// nil when no login is known; a leading '!' marks a placeholder that may
// be corrected by a later extract.
type Person struct {
	ID         string    `db:"id" json:"id"`
	Username   *string   `db:"username" json:"username,omitempty"`
	Surname    string    `db:"surname" json:"surname"`
	GivenName  string    `db:"given_name" json:"given_name"`
	CommonName string    `db:"common_name" json:"common_name"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// HasValidUsername reports whether the person carries a real login, not a
// placeholder.
func (p *Person) HasValidUsername() bool {
	return p.Username != nil && *p.Username != "" && (*p.Username)[0] != '!'
}

// EmailAddress is one contact address attached to a person.
type EmailAddress struct {
	ID        string    `db:"id" json:"id"`
	PersonID  string    `db:"person_id" json:"person_id"`
	Address   string    `db:"address" json:"address"`
	TypeSlug  string    `db:"type_slug" json:"type_slug"`
	Preferred bool      `db:"preferred" json:"preferred"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
