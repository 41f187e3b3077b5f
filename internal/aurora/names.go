package aurora

import (
	"regexp"
	"strings"
)

var (
	namePattern     = regexp.MustCompile(`^(.*), (.*)$`)
	nicknamePattern = regexp.MustCompile(`^(.*), (.*) \((.*)\)$`)
)

// parsedName is the result of splitting a registrar-formatted name.
type parsedName struct {
	Surname   string
	GivenName string
	Nickname  string
}

// CommonName renders "Given Surname", trimmed for the single-token case.
func (n parsedName) CommonName() string {
	return strings.TrimSpace(n.GivenName + " " + n.Surname)
}

// parseName splits a classlist name. Patterns are tried in order:
// "Last, First (Nickname)", then "Last, First" (nickname is the first
// word of First), then a single token (surname only), then a last-resort
// space split with the final token as surname.
func parseName(name string) parsedName {
	name = strings.TrimSpace(name)
	if m := nicknamePattern.FindStringSubmatch(name); m != nil {
		return parsedName{Surname: m[1], GivenName: m[2], Nickname: m[3]}
	}
	if m := namePattern.FindStringSubmatch(name); m != nil {
		nick := m[2]
		if fields := strings.Fields(m[2]); len(fields) > 0 {
			nick = fields[0]
		}
		return parsedName{Surname: m[1], GivenName: m[2], Nickname: nick}
	}
	if !strings.Contains(name, " ") {
		return parsedName{Surname: name}
	}
	// no comma to work with; assume the final token is the surname
	parts := strings.Fields(name)
	return parsedName{
		Surname:   parts[len(parts)-1],
		GivenName: strings.Join(parts[:len(parts)-1], " "),
		Nickname:  parts[0],
	}
}
