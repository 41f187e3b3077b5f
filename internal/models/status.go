package models

// Status is a registration status code from the registrar feed vocabulary.
//
// Two letters indicate a normal status: a second letter of 'A' or 'C'
// indicates good standing, 'W' or '0' indicates withdrawal or
// deregistration. One letter indicates an error status or a status that
// requires attention.
type Status string

const (
	StatusAdded          Status = "AA" // added by instructor
	StatusAuditing       Status = "SA" // auditing student
	StatusAccountPending Status = "B"  // self-registration, account pending
	StatusSelfRegistered Status = "BA" // self-registered
	StatusAccountCreated Status = "CC" // self-registration, account created
	StatusBlocked        Status = "N"  // blocked: wrong student number or wrong section
	StatusHonestyBlocked Status = "O"  // account blocked, failed honesty declaration
	StatusNoPermission   Status = "P"  // account not created, permission not given
	StatusVoluntaryW     Status = "VW" // voluntary withdrawal
	StatusAuthorizedW    Status = "AW" // authorized withdrawal
	StatusCompulsoryW    Status = "CW" // compulsory withdrawal
	StatusDeregistered   Status = "00" // deregistered, end of term
)

var statusLabels = map[Status]string{
	StatusAdded:          "Added by Instructor",
	StatusAuditing:       "Auditing Student",
	StatusAccountPending: "Self-registration - account pending",
	StatusSelfRegistered: "Self-registered",
	StatusAccountCreated: "Self-registration - account created",
	StatusBlocked:        "Blocked - wrong student number or wrong section",
	StatusHonestyBlocked: "Account blocked - failed honesty declaration",
	StatusNoPermission:   "Account NOT created - permission NOT given",
	StatusVoluntaryW:     "Voluntary Withdrawal",
	StatusAuthorizedW:    "Authorized Withdrawal",
	StatusCompulsoryW:    "Compulsory Withdrawal",
	StatusDeregistered:   "Deregistered - end of term",
}

// Valid reports whether s belongs to the closed status vocabulary.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human-readable description for the code.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// GoodStanding reports whether the status denotes a valid, current
// registration: a two-character code whose second character is 'A' or 'C'.
func (s Status) GoodStanding() bool {
	return len(s) == 2 && (s[1] == 'A' || s[1] == 'C')
}

// Withdrawn reports whether the status denotes a withdrawal or
// deregistration: a two-character code ending in 'W' or '0'.
func (s Status) Withdrawn() bool {
	return len(s) == 2 && (s[1] == 'W' || s[1] == '0')
}
