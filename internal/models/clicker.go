package models

import "time"

// ClickerRegistration maps a classroom clicker remote to a student.
type ClickerRegistration struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClickerID string    `db:"clicker_id" json:"clicker_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
