package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleClasslist = `Course,,CRN,Duration,,
STAT 1000 - A01,,12345,"Sep 09, 2026 - Dec 11, 2026",,
,,,,,
Record Number,ID,Student Name,Email,Reg Status,Grade Mode/AutoGrade
1,06713309,"Smith, Jane",jsmith@cc.umanitoba.ca,Registered Web,
2,06713310,"Doe, John",jdoe@cc.umanitoba.ca,Registered Web,VW
3,06713311,"Roe, Mary",mroe@cc.umanitoba.ca,Web Drop,
NOTE: this data is confidential,,,,,
`

const sampleReport = `ID,NAME,SUBJECT,COURSE_NUMBER,COURSE_SECTION_NUMBER,COURSE_REFERENCE_NUMBER,UM_EMAIL,ACADEMIC_PERIOD,REGISTRATION_STATUS
06713309,"Smith, Jane",STAT,1000,A01,12345,jsmith@cc.umanitoba.ca,2026900,RW
06713310,"Doe, John",STAT,1000,A02,54321,jdoe@cc.umanitoba.ca,2026900,DW
`

func TestParseClasslist(t *testing.T) {
	ex, err := Parse(strings.NewReader(sampleClasslist))
	require.NoError(t, err)
	assert.Equal(t, KindClasslist, ex.Kind)

	require.NotNil(t, ex.Classlist)
	assert.Equal(t, "STAT 1000", ex.Classlist.Course)
	assert.Equal(t, "A01", ex.Classlist.SectionName)
	assert.Equal(t, "12345", ex.Classlist.CRN)
	start, err := ex.Classlist.StartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC), start)

	require.Len(t, ex.Rows, 3)
	first := ex.Rows[0]
	assert.Equal(t, "1", first.RecordNumber)
	assert.Equal(t, "06713309", first.RawNumber)
	assert.Equal(t, "6713309", first.Number)
	assert.Equal(t, "Smith, Jane", first.Name)
	assert.Equal(t, "jsmith@cc.umanitoba.ca", first.Email)
	assert.Equal(t, "Registered Web", first.RegStatus)
	assert.Empty(t, first.GradeMode)

	n, err := first.StudentNumber()
	require.NoError(t, err)
	assert.Equal(t, 6713309, n)

	assert.Equal(t, "VW", ex.Rows[1].GradeMode)
	assert.Equal(t, "Web Drop", ex.Rows[2].RegStatus)
}

func TestParseClasslistStopsAtNote(t *testing.T) {
	input := strings.Replace(sampleClasslist,
		"NOTE: this data is confidential,,,,,\n",
		"NOTE: this data is confidential,,,,,\n4,06713312,\"Poe, Edgar\",epoe@cc.umanitoba.ca,Registered Web,\n", 1)
	ex, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, ex.Rows, 3)
}

func TestParseClasslistMissingMetadata(t *testing.T) {
	input := strings.Replace(sampleClasslist, "12345", "", 1)
	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "crn")
}

func TestParseClasslistMissingIDColumn(t *testing.T) {
	input := strings.Replace(sampleClasslist, "Record Number,ID,", "Record Number,Number,", 1)
	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "'ID' field not found")
}

func TestParseClasslistNoStudentHeader(t *testing.T) {
	input := `Course,,CRN,Duration,,
STAT 1000 - A01,,12345,"Sep 09, 2026 - Dec 11, 2026",,
`
	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "no student records")
}

func TestParseReport(t *testing.T) {
	ex, err := Parse(strings.NewReader(sampleReport))
	require.NoError(t, err)
	assert.Equal(t, KindReport, ex.Kind)
	assert.Nil(t, ex.Classlist)

	require.Len(t, ex.Rows, 2)
	first := ex.Rows[0]
	assert.Equal(t, "6713309", first.Number)
	assert.Equal(t, "06713309", first.RawNumber)
	assert.Equal(t, "Smith, Jane", first.Name)
	assert.Equal(t, "jsmith@cc.umanitoba.ca", first.Email)
	assert.Equal(t, "STAT", first.Subject)
	assert.Equal(t, "1000", first.CourseNumber)
	assert.Equal(t, "A01", first.SectionNumber)
	assert.Equal(t, "12345", first.CRN)
	assert.Equal(t, "2026900", first.AcademicPeriod)
	assert.Equal(t, "RW", first.ReportStatus)
	assert.Equal(t, "DW", ex.Rows[1].ReportStatus)
}

func TestParseReportSkipsNonNumericRows(t *testing.T) {
	input := sampleReport + "TOTAL,,,,,,,,\n"
	ex, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, ex.Rows, 2)
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "no data")
}

func TestParseBinaryInput(t *testing.T) {
	_, err := Parse(strings.NewReader("PK\x03\x04\x00\x00junk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "not a readable CSV")
}

func TestParseLatin1Fallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and invalid on its own in UTF-8
	input := strings.Replace(sampleClasslist, "Smith, Jane", "Tremblay, Ren\xe9e", 1)
	ex, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "Tremblay, Renée", ex.Rows[0].Name)
}

func TestParseBOMStripped(t *testing.T) {
	ex, err := Parse(strings.NewReader("\xEF\xBB\xBF" + sampleClasslist))
	require.NoError(t, err)
	assert.Equal(t, "STAT 1000", ex.Classlist.Course)
}

func TestParseSingleRowIsNotAnExtract(t *testing.T) {
	_, err := Parse(strings.NewReader("just,one,row\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRowStudentNumber(t *testing.T) {
	row := Row{Number: "6713309"}
	n, err := row.StudentNumber()
	require.NoError(t, err)
	assert.Equal(t, 6713309, n)

	bad := Row{Number: "abc"}
	_, err = bad.StudentNumber()
	assert.Error(t, err)
}
