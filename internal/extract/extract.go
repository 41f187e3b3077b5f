// Package extract parses registrar ("Aurora") CSV exports into typed rows.
// Two layouts exist: per-section classlists and cross-section reports. The
// kind is carried as an explicit tag so callers never probe strings to
// guess what they are holding.
package extract

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Kind tags the two extract flavors.
type Kind string

const (
	KindClasslist Kind = "classlist"
	KindReport    Kind = "report"
)

// ErrInvalidFormat is wrapped by every parse failure: unreadable bytes,
// empty input, or a header set that matches neither layout.
var ErrInvalidFormat = errors.New("invalid extract format")

// Row is one student line from either extract flavor, with field names
// normalised across the two layouts.
type Row struct {
	RecordNumber string
	// RawNumber is the student number exactly as printed, leading zeros
	// intact. Number is the zero-stripped form used for numeric work.
	RawNumber string
	Number    string
	Name      string
	Email     string
	Phone     string

	// GradeMode is the classlist "Grade Mode/AutoGrade" column.
	// RegStatus is the classlist "Reg Status" column.
	GradeMode string
	RegStatus string

	// Report-only columns.
	Subject        string
	CourseNumber   string
	SectionNumber  string
	CRN            string
	AcademicPeriod string
	ReportStatus   string
}

// StudentNumber parses the numeric student number.
func (r *Row) StudentNumber() (int, error) {
	return strconv.Atoi(r.Number)
}

// ClasslistInfo is the section metadata block at the top of a classlist.
type ClasslistInfo struct {
	Course      string
	SectionName string
	Duration    string
	CRN         string
}

// StartDate parses the leading date out of a duration formatted as
// "Mon DD, YYYY - Mon DD, YYYY".
func (i *ClasslistInfo) StartDate() (time.Time, error) {
	raw := strings.TrimSpace(strings.SplitN(i.Duration, "-", 2)[0])
	return time.Parse("Jan 2, 2006", raw)
}

// Extract is a fully parsed registrar export.
type Extract struct {
	Kind Kind
	Rows []Row
	// Classlist is set only when Kind is KindClasslist.
	Classlist *ClasslistInfo
}
