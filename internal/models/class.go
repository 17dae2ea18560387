package models

import "time"

// Class represents an academic class or section.
type Class struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Grade              string    `db:"grade" json:"grade"`
	Track              string    `db:"track" json:"track"`
	IndexNumberCounter int       `db:"index_number_counter" json:"index_number_counter"`
	IndexNumberPrefix  string    `db:"index_number_prefix" json:"index_number_prefix"`
	IndexNumberSuffix  string    `db:"index_number_suffix" json:"index_number_suffix"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with roster statistics.
type ClassDetail struct {
	Class
	StudentCount int `db:"student_count" json:"student_count"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Grade     string
	Track     string
	Search    string
	Names     []string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
