package models

// Setting keys persisted in the configurations table.
const (
	SettingIndexNumberPerClass      = "index_number_per_class"
	SettingIndexNumberGlobalPrefix  = "index_number_global_prefix"
	SettingIndexNumberGlobalSuffix  = "index_number_global_suffix"
	SettingIndexNumberGlobalCounter = "index_number_global_counter"
	SettingIndexNumberPadding       = "index_number_padding"
	SettingIndexNumberAutoAssign    = "index_number_auto_assign"
	SettingDataEntryLocked          = "is_data_entry_locked"
	SettingSchoolDisplayName        = "school_display_name"
)

// SchoolSettings is the typed projection of the school-wide configuration rows.
type SchoolSettings struct {
	IndexNumberPerClass      bool   `json:"index_number_per_class"`
	IndexNumberGlobalPrefix  string `json:"index_number_global_prefix"`
	IndexNumberGlobalSuffix  string `json:"index_number_global_suffix"`
	IndexNumberGlobalCounter int    `json:"index_number_global_counter"`
	IndexNumberPadding       int    `json:"index_number_padding"`
	IndexNumberAutoAssign    bool   `json:"index_number_auto_assign"`
	IsDataEntryLocked        bool   `json:"is_data_entry_locked"`
	SchoolDisplayName        string `json:"school_display_name"`
}
