package models

import "time"

// Teacher is an identity registry entry. UniqueID is the token encoded in the
// teacher's QR badge and never changes once issued.
type Teacher struct {
	ID         string    `db:"id" json:"id"`
	UniqueID   string    `db:"unique_id" json:"unique_id"`
	Name       string    `db:"name" json:"name"`
	Email      *string   `db:"email" json:"email,omitempty"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Department *string   `db:"department" json:"department,omitempty"`
	OwnerID    string    `db:"owner_id" json:"owner_id"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	OwnerID   string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
