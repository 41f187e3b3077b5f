package aurora

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umworks/aurora-sync/internal/extract"
	"github.com/umworks/aurora-sync/internal/models"
)

func TestDeriveStatusClasslist(t *testing.T) {
	cases := []struct {
		mode string
		want models.Status
	}{
		{"", models.StatusAdded},
		{"  ", models.StatusAdded},
		{"aw", models.StatusAuthorizedW},
		{"cw", models.StatusCompulsoryW},
		{"vw", models.StatusVoluntaryW},
		{"VW", models.StatusVoluntaryW},
		{"audit", models.StatusAuditing},
		{"Audit", models.StatusAuditing},
	}
	for _, tc := range cases {
		got, err := deriveStatus(extract.KindClasslist, extract.Row{GradeMode: tc.mode})
		require.NoError(t, err, "mode %q", tc.mode)
		assert.Equal(t, tc.want, got, "mode %q", tc.mode)
	}
}

func TestDeriveStatusClasslistUnknownModeFatal(t *testing.T) {
	_, err := deriveStatus(extract.KindClasslist, extract.Row{GradeMode: "zz", RecordNumber: "4"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrInvalidFormat))
	assert.Contains(t, err.Error(), "zz")
}

func TestDeriveStatusReport(t *testing.T) {
	cases := []struct {
		status string
		want   models.Status
	}{
		{"RW", models.StatusAdded},
		{"RE", models.StatusAdded},
		{"DW", models.StatusVoluntaryW},
	}
	for _, tc := range cases {
		got, err := deriveStatus(extract.KindReport, extract.Row{ReportStatus: tc.status})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestDeriveStatusReportUnknownStatusFatal(t *testing.T) {
	_, err := deriveStatus(extract.KindReport, extract.Row{ReportStatus: "XX", Number: "6713309"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrInvalidFormat))
}
