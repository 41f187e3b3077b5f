// Package aurora implements reconciliation of local registration state
// against registrar extracts: section resolution, student matching, the
// registration upsert and the end-of-run de-registration sweep.
package aurora

import (
	"errors"
	"fmt"
	"strings"
)

// Annotation tags written on history entries by this package.
const (
	annotationMatcher   = "aurora.get_or_create_student"
	annotationReconcile = "aurora.update_registrations"
	annotationClicker   = "clicker.websync"
)

var (
	// ErrInvalidSection marks an unknown or ambiguous section. Fatal
	// unless the caller opted into ignoring unknown sections per-row.
	ErrInvalidSection = errors.New("invalid section")
	// ErrWrongSection marks a classlist that does not match the section
	// the caller supplied.
	ErrWrongSection = errors.New("wrong section")
)

// InvalidUsernameError is returned when valid logins are required and a
// new student row has no derivable username. Recoverable per-row: the row
// is skipped and reported, the run continues.
type InvalidUsernameError struct {
	StudentNumber int
	Name          string
}

func (e *InvalidUsernameError) Error() string {
	return fmt.Sprintf("Skipped creating student %s [%d] -- no username.", e.Name, e.StudentNumber)
}

// UsernameFunc derives a login from an email address. The second return
// is false when no username can be derived, which is distinct from an
// explicit empty value. A nil UsernameFunc means logins are never
// derivable and every "require valid login" check is disabled.
type UsernameFunc func(email string) (string, bool)

// EmailTypeFunc labels an email address with a contact type slug.
type EmailTypeFunc func(email string) string

// DomainUsernames builds a UsernameFunc that treats the local part of an
// address on one of the given domains as a real login.
func DomainUsernames(domains []string) UsernameFunc {
	if len(domains) == 0 {
		return nil
	}
	return func(email string) (string, bool) {
		local, domain, ok := strings.Cut(strings.ToLower(email), "@")
		if !ok || local == "" {
			return "", false
		}
		for _, d := range domains {
			if domain == strings.ToLower(d) {
				return local, true
			}
		}
		return "", false
	}
}

// DomainEmailTypes builds an EmailTypeFunc labelling addresses on the
// given domains as "work" and everything else as "home".
func DomainEmailTypes(domains []string) EmailTypeFunc {
	return func(email string) string {
		_, domain, ok := strings.Cut(strings.ToLower(email), "@")
		if ok {
			for _, d := range domains {
				if domain == strings.ToLower(d) {
					return "work"
				}
			}
		}
		return "home"
	}
}

// slugify normalises an identifier the way section slugs are built:
// lower case, runs of non-alphanumerics collapsed to single dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}
