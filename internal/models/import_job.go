package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ImportKind distinguishes the two registrar extract flavors.
type ImportKind string

const (
	ImportKindClasslist ImportKind = "classlist"
	ImportKindReport    ImportKind = "report"
)

// ImportStatus captures background import lifecycle states.
type ImportStatus string

const (
	ImportStatusQueued     ImportStatus = "QUEUED"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusFinished   ImportStatus = "FINISHED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// ImportJob is the persisted record of one extract upload.
type ImportJob struct {
	ID           string        `db:"id" json:"id"`
	Kind         ImportKind    `db:"kind" json:"kind"`
	Filename     string        `db:"filename" json:"filename"`
	Options      ImportOptions `db:"options" json:"options"`
	Status       ImportStatus  `db:"status" json:"status"`
	Result       *ImportResult `db:"result" json:"result,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
}

// ImportOptions stores request-scoped reconciliation options as JSONB.
type ImportOptions struct {
	SectionID             string `json:"sectionId,omitempty"`
	RequireValidLogin     bool   `json:"requireValidLogin"`
	IgnoreUnknownSections bool   `json:"ignoreUnknownSections"`
	CreateSection         bool   `json:"createSection"`
	Force                 bool   `json:"force"`
}

// ImportResult stores reconciliation counts as JSONB.
type ImportResult struct {
	TotalRows     int      `json:"totalRows"`
	SavedRows     int      `json:"savedRows"`
	IgnoredRows   int      `json:"ignoredRows"`
	Deregistered  int      `json:"deregistered"`
	InvalidLogins []string `json:"invalidLogins,omitempty"`
	SectionSlug   string   `json:"sectionSlug,omitempty"`
}

// Value marshals options to JSON for persistence.
func (o ImportOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan unmarshals options from the database representation.
func (o *ImportOptions) Scan(src interface{}) error {
	return scanJSON(src, o)
}

// Value marshals the result to JSON for persistence.
func (r ImportResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan unmarshals the result from the database representation.
func (r *ImportResult) Scan(src interface{}) error {
	return scanJSON(src, r)
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
