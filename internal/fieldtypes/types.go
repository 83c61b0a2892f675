// Package fieldtypes holds the static catalog of field types a form
// field can take on, their configurable settings, and the shared
// characteristic mapping used when a field changes type.
package fieldtypes

// SettingValueType describes how a setting's value is interpreted.
type SettingValueType int

const (
	// SettingStatic is a literal value stored as-is.
	SettingStatic SettingValueType = iota
	// SettingDynamic is resolved at render time from another source.
	SettingDynamic
	// SettingOptionListOrField references an option list or a form field.
	SettingOptionListOrField
)

// String returns the string representation of the setting value type.
func (s SettingValueType) String() string {
	switch s {
	case SettingStatic:
		return "static"
	case SettingDynamic:
		return "dynamic"
	case SettingOptionListOrField:
		return "option_list_or_form_field"
	default:
		return "unknown"
	}
}

// Setting is one configurable setting declared by a field type.
type Setting struct {
	ID        int
	Name      string
	ValueType SettingValueType
}

// FieldType is a catalog entry. Field types are read-mostly reference
// data seeded at installation; they are not owned by any form.
type FieldType struct {
	ID         int
	Identifier string

	// Capabilities consulted by the submission pipeline.
	IsFileField bool
	IsDateField bool

	// RawOptionListSettingID names the setting that stores the raw
	// multi-select option list for option-backed types; zero when the
	// type has no option list.
	RawOptionListSettingID int

	// Markup templates rendered by the out-of-scope UI layer.
	EditableMarkup string
	DisplayMarkup  string

	Settings []Setting
}

// HasSetting returns true if the field type declares the given setting.
func (ft *FieldType) HasSetting(settingID int) bool {
	for i := range ft.Settings {
		if ft.Settings[i].ID == settingID {
			return true
		}
	}
	return false
}
