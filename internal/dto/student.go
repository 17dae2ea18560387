package dto

import (
	"time"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

// CreateStudentRequest holds payload for creating students. IndexNumber is
// only honoured when auto-assign is off or the caller is an admin.
type CreateStudentRequest struct {
	FullName    string    `json:"full_name" validate:"required,max=150"`
	Gender      string    `json:"gender" validate:"required,oneof=M F"`
	BirthDate   time.Time `json:"birth_date" validate:"required"`
	Address     string    `json:"address" validate:"max=255"`
	Phone       string    `json:"phone" validate:"max=32"`
	ClassID     string    `json:"class_id"`
	ClassName   string    `json:"class_name"`
	IndexNumber string    `json:"index_number" validate:"max=64"`
}

// UpdateStudentRequest holds payload for updating students. Nil fields are left unchanged.
type UpdateStudentRequest struct {
	FullName    *string    `json:"full_name" validate:"omitempty,max=150"`
	Gender      *string    `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate   *time.Time `json:"birth_date"`
	Address     *string    `json:"address" validate:"omitempty,max=255"`
	Phone       *string    `json:"phone" validate:"omitempty,max=32"`
	ClassID     *string    `json:"class_id"`
	IndexNumber *string    `json:"index_number" validate:"omitempty,max=64"`
	Active      *bool      `json:"active"`
}

// NextIndexNumberResponse previews the index number the next student would get.
type NextIndexNumberResponse struct {
	IndexNumber string `json:"index_number"`
	Counter     int    `json:"counter"`
	Scope       string `json:"scope"`
	PerClass    bool   `json:"per_class"`
	AutoAssign  bool   `json:"auto_assign"`
}

// ImportRowError reports a spreadsheet row that could not be imported.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportStudentsResult summarises a roster import.
type ImportStudentsResult struct {
	Imported int              `json:"imported"`
	Failed   []ImportRowError `json:"failed"`
	Students []models.Student `json:"students"`
}

// ExportFile is a rendered roster export.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
