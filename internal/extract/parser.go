package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

var reportHeaders = []string{
	"ID",
	"NAME",
	"SUBJECT",
	"COURSE_NUMBER",
	"COURSE_SECTION_NUMBER",
	"COURSE_REFERENCE_NUMBER",
	"UM_EMAIL",
}

// Parse reads a registrar export and returns the typed extract. It is a
// pure transform: the caller owns the reader and rewinds it when the same
// source must be parsed again (the upload form validates in one pass and
// commits in another).
func Parse(r io.Reader) (*Extract, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	if isReport(records[0]) {
		return parseReport(records)
	}
	return parseClasslist(records)
}

func readRecords(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: there is no data here", ErrInvalidFormat)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: problem reading the spreadsheet: %v", ErrInvalidFormat, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: this does not seem to be an aurora extract", ErrInvalidFormat)
	}
	return records, nil
}

// decodeText accepts UTF-8 directly and falls back to Latin-1 for legacy
// exports. Binary content (NUL bytes) is not readable text.
func decodeText(raw []byte) (string, error) {
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("%w: this is not a readable CSV file", ErrInvalidFormat)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

func isReport(header []string) bool {
	set := make(map[string]struct{}, len(header))
	for _, h := range header {
		set[strings.TrimSpace(h)] = struct{}{}
	}
	for _, required := range reportHeaders {
		if _, ok := set[required]; !ok {
			return false
		}
	}
	return true
}

func parseReport(records [][]string) (*Extract, error) {
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}

	ex := &Extract{Kind: KindReport}
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		// student records carry a numeric ID in the first column
		if _, err := strconv.Atoi(strings.TrimSpace(record[0])); err != nil {
			continue
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := Row{
			RawNumber:      field("ID"),
			Name:           field("NAME"),
			Email:          field("UM_EMAIL"),
			Subject:        field("SUBJECT"),
			CourseNumber:   field("COURSE_NUMBER"),
			SectionNumber:  field("COURSE_SECTION_NUMBER"),
			CRN:            field("COURSE_REFERENCE_NUMBER"),
			AcademicPeriod: field("ACADEMIC_PERIOD"),
			ReportStatus:   field("REGISTRATION_STATUS"),
		}
		row.Number = strings.TrimLeft(row.RawNumber, "0")
		row.RecordNumber = row.Number
		ex.Rows = append(ex.Rows, row)
	}
	return ex, nil
}

func parseClasslist(records [][]string) (*Extract, error) {
	info, err := classlistInfo(records)
	if err != nil {
		return nil, err
	}

	ex := &Extract{Kind: KindClasslist, Classlist: info}

	var headers []string
	index := map[string]int{}
	atStudents := false
	foundHeader := false
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		first := strings.TrimSpace(record[0])
		if strings.HasPrefix(first, "NOTE: ") {
			atStudents = false
		}
		if atStudents {
			// student records have a record number in the first column
			if _, err := strconv.Atoi(first); err == nil {
				ex.Rows = append(ex.Rows, classlistRow(headers, index, record))
			}
		}
		if first == "Record Number" {
			atStudents = true
			foundHeader = true
			headers = make([]string, len(record))
			for i, h := range record {
				headers[i] = strings.TrimSpace(h)
			}
			index = make(map[string]int, len(headers))
			for i, h := range headers {
				index[h] = i
			}
			if _, ok := index["ID"]; !ok {
				return nil, fmt.Errorf("%w: unknown header set: 'ID' field not found", ErrInvalidFormat)
			}
		}
	}
	if !foundHeader {
		return nil, fmt.Errorf("%w: no student records", ErrInvalidFormat)
	}
	return ex, nil
}

// classlistInfo reads the metadata block: row 0 holds labels, row 1 the
// values. The course label packs "COURSE - SECTION" into one cell.
func classlistInfo(records [][]string) (*ClasslistInfo, error) {
	labels, values := records[0], records[1]
	fields := map[string]string{}
	for i, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" || i >= len(values) {
			continue
		}
		fields[label] = strings.TrimSpace(values[i])
	}
	info := &ClasslistInfo{
		Course:   fields["course"],
		Duration: fields["duration"],
		CRN:      fields["crn"],
	}
	if course, section, ok := strings.Cut(info.Course, "-"); ok {
		info.Course = strings.TrimSpace(course)
		info.SectionName = strings.TrimSpace(section)
	}
	for name, value := range map[string]string{
		"course":   info.Course,
		"section":  info.SectionName,
		"duration": info.Duration,
		"crn":      info.CRN,
	} {
		if value == "" {
			return nil, fmt.Errorf("%w: this does not seem to be an aurora classlist (missing %s); has it been altered?", ErrInvalidFormat, name)
		}
	}
	return info, nil
}

func classlistRow(headers []string, index map[string]int, record []string) Row {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	row := Row{
		RecordNumber: field("Record Number"),
		RawNumber:    field("ID"),
		Name:         field("Student Name"),
		Email:        field("Email"),
		Phone:        field("Telephone"),
		GradeMode:    field("Grade Mode/AutoGrade"),
		RegStatus:    field("Reg Status"),
	}
	row.Number = strings.TrimLeft(row.RawNumber, "0")
	return row
}
