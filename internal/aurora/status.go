package aurora

import (
	"fmt"
	"strings"

	"github.com/umworks/aurora-sync/internal/extract"
	"github.com/umworks/aurora-sync/internal/models"
)

// deriveStatus maps an extract row onto a registration status code.
//
// Classlists carry a grade mode: blank means a normally graded
// registration, "audit" means audit-only, and the aw/cw/vw withdrawal
// modes map straight to their codes. Reports carry a registration status
// instead: RW and RE are registered, DW is a web drop. Any other value
// means the feed layout changed and the whole import must stop rather
// than record a guess.
func deriveStatus(kind extract.Kind, row extract.Row) (models.Status, error) {
	switch kind {
	case extract.KindClasslist:
		switch mode := strings.ToLower(strings.TrimSpace(row.GradeMode)); mode {
		case "":
			return models.StatusAdded, nil
		case "aw", "cw", "vw":
			return models.Status(strings.ToUpper(mode)), nil
		case "audit":
			return models.StatusAuditing, nil
		default:
			return "", fmt.Errorf("%w: unknown grade mode %q for record %s", extract.ErrInvalidFormat, row.GradeMode, row.RecordNumber)
		}
	case extract.KindReport:
		switch strings.ToUpper(strings.TrimSpace(row.ReportStatus)) {
		case "RW", "RE":
			return models.StatusAdded, nil
		case "DW":
			return models.StatusVoluntaryW, nil
		default:
			return "", fmt.Errorf("%w: unknown registration status %q for student %s", extract.ErrInvalidFormat, row.ReportStatus, row.Number)
		}
	default:
		return "", fmt.Errorf("%w: unknown extract kind %q", extract.ErrInvalidFormat, kind)
	}
}
