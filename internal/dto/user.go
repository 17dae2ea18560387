package dto

import "github.com/noah-isme/sma-roster-api/internal/models"

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email          string          `json:"email" validate:"required,email"`
	FullName       string          `json:"full_name" validate:"required,max=150"`
	Role           models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER GUEST"`
	Active         bool            `json:"active"`
	Password       string          `json:"password" validate:"required,min=6"`
	IsReadOnly     bool            `json:"is_read_only"`
	AllowedClasses []string        `json:"allowed_classes" validate:"dive,required,max=64"`
}

// UpdateUserRequest payload for updating profile fields.
type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"required,max=150"`
	Active   *bool  `json:"active"`
}

// UpdateUserAccessRequest replaces the permission inputs of a user.
type UpdateUserAccessRequest struct {
	Role           models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER GUEST"`
	IsReadOnly     bool            `json:"is_read_only"`
	AllowedClasses []string        `json:"allowed_classes" validate:"dive,required,max=64"`
}

// AuditMeta carries request details recorded with audit entries.
type AuditMeta struct {
	IP        string
	UserAgent string
}
