package fieldtypes

// Stable identifiers for the built-in field types.
const (
	Textbox      = "textbox"
	Textarea     = "textarea"
	Password     = "password"
	Dropdown     = "dropdown"
	MultiSelect  = "multi_select"
	RadioButtons = "radio_buttons"
	Checkboxes   = "checkboxes"
	File         = "file"
	Date         = "date"
	Time         = "time"
	Phone        = "phone"
	CodeMarkup   = "code_markup"
)

// Type IDs used when fields are created before anyone has picked a
// type: newly discovered fields start as textboxes, and the
// bookkeeping fields reuse the textbox and date types.
const (
	DefaultTypeID    = 1
	SystemTypeID     = 1
	SystemDateTypeID = 9
)

// defaultSharedCharacteristics maps the option-list and sizing settings
// that survive a type change between related field types.
const defaultSharedCharacteristics = "options:dropdown=11,multi_select=16,radio_buttons=21,checkboxes=26|" +
	"size:textbox=2,password=6|" +
	"maxlength:textbox=3,password=7|" +
	"highlight:textbox=4,textarea=9"

// DefaultRegistry returns the registry seeded with the built-in catalog.
func DefaultRegistry() *Registry {
	shared, err := ParseCharacteristics(defaultSharedCharacteristics)
	if err != nil {
		// The built-in resource is fixed at compile time.
		panic(err)
	}
	return NewRegistry(defaultCatalog(), shared)
}

func defaultCatalog() []*FieldType {
	return []*FieldType{
		{
			ID: 1, Identifier: Textbox,
			EditableMarkup: `<input type="text" name="{$NAME}" value="{$VALUE}" />`,
			DisplayMarkup:  `{$VALUE}`,
			Settings: []Setting{
				{ID: 1, Name: "field_comments", ValueType: SettingStatic},
				{ID: 2, Name: "size", ValueType: SettingStatic},
				{ID: 3, Name: "maxlength", ValueType: SettingStatic},
				{ID: 4, Name: "highlight", ValueType: SettingStatic},
			},
		},
		{
			ID: 2, Identifier: Textarea,
			EditableMarkup: `<textarea name="{$NAME}">{$VALUE}</textarea>`,
			DisplayMarkup:  `{$VALUE}`,
			Settings: []Setting{
				{ID: 8, Name: "num_rows", ValueType: SettingStatic},
				{ID: 9, Name: "highlight", ValueType: SettingStatic},
			},
		},
		{
			ID: 3, Identifier: Password,
			EditableMarkup: `<input type="password" name="{$NAME}" />`,
			DisplayMarkup:  `{$VALUE}`,
			Settings: []Setting{
				{ID: 6, Name: "size", ValueType: SettingStatic},
				{ID: 7, Name: "maxlength", ValueType: SettingStatic},
			},
		},
		{
			ID: 4, Identifier: Dropdown,
			RawOptionListSettingID: 11,
			EditableMarkup:         `<select name="{$NAME}">{$OPTIONS}</select>`,
			DisplayMarkup:          `{$VALUE}`,
			Settings: []Setting{
				{ID: 11, Name: "contents", ValueType: SettingOptionListOrField},
				{ID: 12, Name: "default_value", ValueType: SettingStatic},
			},
		},
		{
			ID: 5, Identifier: MultiSelect,
			RawOptionListSettingID: 16,
			EditableMarkup:         `<select name="{$NAME}[]" multiple>{$OPTIONS}</select>`,
			DisplayMarkup:          `{$VALUE}`,
			Settings: []Setting{
				{ID: 16, Name: "contents", ValueType: SettingOptionListOrField},
				{ID: 17, Name: "num_rows", ValueType: SettingStatic},
			},
		},
		{
			ID: 6, Identifier: RadioButtons,
			RawOptionListSettingID: 21,
			EditableMarkup:         `<input type="radio" name="{$NAME}" value="{$VALUE}" />`,
			DisplayMarkup:          `{$VALUE}`,
			Settings: []Setting{
				{ID: 21, Name: "contents", ValueType: SettingOptionListOrField},
				{ID: 22, Name: "num_columns", ValueType: SettingStatic},
			},
		},
		{
			ID: 7, Identifier: Checkboxes,
			RawOptionListSettingID: 26,
			EditableMarkup:         `<input type="checkbox" name="{$NAME}[]" value="{$VALUE}" />`,
			DisplayMarkup:          `{$VALUE}`,
			Settings: []Setting{
				{ID: 26, Name: "contents", ValueType: SettingOptionListOrField},
				{ID: 27, Name: "num_columns", ValueType: SettingStatic},
			},
		},
		{
			ID: 8, Identifier: File,
			IsFileField:    true,
			EditableMarkup: `<input type="file" name="{$NAME}" />`,
			DisplayMarkup:  `{$FILENAME}`,
			Settings: []Setting{
				{ID: 31, Name: "folder_path", ValueType: SettingDynamic},
				{ID: 32, Name: "permitted_file_types", ValueType: SettingStatic},
				{ID: 33, Name: "max_file_size", ValueType: SettingStatic},
			},
		},
		{
			ID: 9, Identifier: Date,
			IsDateField:    true,
			EditableMarkup: `<input type="text" name="{$NAME}" class="datepicker" />`,
			DisplayMarkup:  `{$VALUE}`,
			Settings: []Setting{
				{ID: 36, Name: "display_format", ValueType: SettingStatic},
				{ID: 37, Name: "apply_timezone_offset", ValueType: SettingDynamic},
			},
		},
		{
			ID: 10, Identifier: Time,
			EditableMarkup: `<input type="text" name="{$NAME}" class="timepicker" />`,
			DisplayMarkup:  `{$VALUE}`,
			Settings: []Setting{
				{ID: 41, Name: "time_format", ValueType: SettingStatic},
			},
		},
		{
			ID: 11, Identifier: Phone,
			EditableMarkup: `<input type="tel" name="{$NAME}" value="{$VALUE}" />`,
			DisplayMarkup:  `{$VALUE}`,
			Settings: []Setting{
				{ID: 46, Name: "phone_number_format", ValueType: SettingStatic},
			},
		},
		{
			ID: 12, Identifier: CodeMarkup,
			EditableMarkup: `<textarea name="{$NAME}" class="code">{$VALUE}</textarea>`,
			DisplayMarkup:  `<pre>{$VALUE}</pre>`,
			Settings: []Setting{
				{ID: 51, Name: "code_language", ValueType: SettingStatic},
			},
		},
	}
}
