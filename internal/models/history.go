package models

import "time"

// History is a single student history entry. Once created, entries are
// never altered or deleted.
type History struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Annotation string    `db:"annotation" json:"annotation"`
	Message    string    `db:"message" json:"message"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (h *History) String() string {
	ts := h.CreatedAt.Format(time.RFC3339)
	if h.Annotation != "" {
		return "[" + ts + " /" + h.Annotation + "] " + h.Message
	}
	return "[" + ts + "] " + h.Message
}
