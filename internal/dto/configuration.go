package dto

import "github.com/noah-isme/sma-roster-api/internal/models"

// ConfigurationItem represents a raw settings row exposed via API.
type ConfigurationItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SettingsResponse is the payload of GET /settings.
type SettingsResponse struct {
	Settings models.SchoolSettings `json:"settings"`
	Items    []ConfigurationItem   `json:"items"`
}

// UpdateIndexNumberSettingsRequest patches the numbering scheme. Omitted
// fields keep their stored value.
type UpdateIndexNumberSettingsRequest struct {
	PerClass          *bool   `json:"index_number_per_class"`
	GlobalPrefix      *string `json:"index_number_global_prefix" validate:"omitempty,max=32"`
	GlobalSuffix      *string `json:"index_number_global_suffix" validate:"omitempty,max=32"`
	GlobalCounter     *int    `json:"index_number_global_counter"`
	Padding           *int    `json:"index_number_padding"`
	AutoAssign        *bool   `json:"index_number_auto_assign"`
	SchoolDisplayName *string `json:"school_display_name" validate:"omitempty,max=120"`
}

// UpdateDataEntryLockRequest toggles the global data-entry lock.
type UpdateDataEntryLockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}
