package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID          string    `db:"id" json:"id"`
	IndexNumber string    `db:"index_number" json:"index_number"`
	IndexScope  string    `db:"index_scope" json:"-"`
	ClassID     *string   `db:"class_id" json:"class_id,omitempty"`
	ClassName   string    `db:"class_name" json:"class_name"`
	FullName    string    `db:"full_name" json:"full_name"`
	Gender      string    `db:"gender" json:"gender"`
	BirthDate   time.Time `db:"birth_date" json:"birth_date"`
	Address     string    `db:"address" json:"address"`
	Phone       string    `db:"phone" json:"phone"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	ClassName string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentIndexEntry is the minimal roster projection consumed by index-number allocation.
type StudentIndexEntry struct {
	IndexNumber string  `db:"index_number" json:"index_number"`
	ClassID     *string `db:"class_id" json:"class_id,omitempty"`
	ClassName   string  `db:"class_name" json:"class_name"`
	IndexScope  string  `db:"index_scope" json:"index_scope"`
}

