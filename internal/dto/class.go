package dto

// CreateClassRequest captures creation payload.
type CreateClassRequest struct {
	Name               string `json:"name" validate:"required,max=64"`
	Grade              string `json:"grade" validate:"required,max=16"`
	Track              string `json:"track" validate:"max=32"`
	IndexNumberCounter int    `json:"index_number_counter" validate:"omitempty,min=1,max=999999999"`
	IndexNumberPrefix  string `json:"index_number_prefix" validate:"max=32"`
	IndexNumberSuffix  string `json:"index_number_suffix" validate:"max=32"`
}

// UpdateClassRequest modifies class fields. A nil counter or affix keeps the current value.
type UpdateClassRequest struct {
	Name               string  `json:"name" validate:"required,max=64"`
	Grade              string  `json:"grade" validate:"required,max=16"`
	Track              string  `json:"track" validate:"max=32"`
	IndexNumberCounter *int    `json:"index_number_counter" validate:"omitempty,min=1,max=999999999"`
	IndexNumberPrefix  *string `json:"index_number_prefix" validate:"omitempty,max=32"`
	IndexNumberSuffix  *string `json:"index_number_suffix" validate:"omitempty,max=32"`
}
