package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/models"
	appErrors "github.com/umworks/aurora-sync/pkg/errors"
	"github.com/umworks/aurora-sync/pkg/export"
)

// ExportFormat selects the roster output encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type rosterSectionRepo interface {
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	List(ctx context.Context, activeOnly bool) ([]models.SectionDetail, error)
}

type rosterRegistrationRepo interface {
	ListActiveBySections(ctx context.Context, sectionIDs []string) ([]models.RegistrationDetail, error)
}

// ExportFile is a rendered export ready to stream to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders section rosters.
type ExportService struct {
	sections      rosterSectionRepo
	registrations rosterRegistrationRepo
	logger        *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(sections rosterSectionRepo, registrations rosterRegistrationRepo, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{sections: sections, registrations: registrations, logger: logger}
}

// Sections lists sections for the index endpoint.
func (s *ExportService) Sections(ctx context.Context, activeOnly bool) ([]models.SectionDetail, error) {
	sections, err := s.sections.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// Roster renders the active registrations of one section, sorted by
// surname, with status labels and a good-standing flag per row.
func (s *ExportService) Roster(ctx context.Context, sectionID string, format ExportFormat) (*ExportFile, error) {
	section, err := s.sections.FindDetailByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch section")
	}

	registrations, err := s.registrations.ListActiveBySections(ctx, []string{section.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	sort.Slice(registrations, func(i, j int) bool {
		if registrations[i].Surname != registrations[j].Surname {
			return registrations[i].Surname < registrations[j].Surname
		}
		return registrations[i].GivenName < registrations[j].GivenName
	})

	data := export.Dataset{
		Headers: []string{"Student Number", "Surname", "Given Name", "Username", "Status", "Good Standing"},
	}
	for i := range registrations {
		reg := &registrations[i]
		username := ""
		if reg.Username != nil {
			username = *reg.Username
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student Number": fmt.Sprintf("%07d", reg.StudentNumber),
			"Surname":        reg.Surname,
			"Given Name":     reg.GivenName,
			"Username":       username,
			"Status":         reg.Status.Label(),
			"Good Standing":  boolYesNo(reg.GoodStanding()),
		})
	}

	switch format {
	case ExportFormatPDF:
		title := section.Label() + " (" + section.TermLabel() + ")"
		rendered, err := export.PDF(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{
			Filename:    "roster-" + section.Slug + ".pdf",
			ContentType: "application/pdf",
			Data:        rendered,
		}, nil
	case ExportFormatCSV, "":
		rendered, err := export.CSV(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{
			Filename:    "roster-" + section.Slug + ".csv",
			ContentType: "text/csv",
			Data:        rendered,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func boolYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
