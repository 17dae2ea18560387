package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleGuest   UserRole = "GUEST"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleGuest:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID             string         `db:"id" json:"id"`
	Email          string         `db:"email" json:"email"`
	PasswordHash   string         `db:"password_hash" json:"-"`
	FullName       string         `db:"full_name" json:"full_name"`
	Role           UserRole       `db:"role" json:"role"`
	Active         bool           `db:"active" json:"active"`
	IsReadOnly     bool           `db:"is_read_only" json:"is_read_only"`
	AllowedClasses pq.StringArray `db:"allowed_classes" json:"allowed_classes"`
	LastLogin      *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
