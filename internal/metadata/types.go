// Package metadata is the persistent store for form, field, and view
// definitions. Submission data itself lives in the per-form tables
// managed by the provision package; this package only describes them.
package metadata

import "time"

// FormType distinguishes forms built in the admin UI from forms hosted
// on an external site.
type FormType string

// Form types.
const (
	FormTypeInternal FormType = "internal"
	FormTypeExternal FormType = "external"
)

// AccessType controls which accounts may see a form or view.
type AccessType string

// Access types.
const (
	AccessPublic  AccessType = "public"
	AccessPrivate AccessType = "private"
	AccessAdmin   AccessType = "admin"
)

// SubmissionType distinguishes forms posted directly from forms whose
// submissions arrive through embedded API code.
type SubmissionType string

// Submission types.
const (
	SubmissionDirect SubmissionType = "direct"
	SubmissionCode   SubmissionType = "code"
)

// FieldSize is the storage size class of a field's physical column.
type FieldSize string

// Field size classes, smallest to largest.
const (
	SizeTiny      FieldSize = "tiny"
	SizeSmall     FieldSize = "small"
	SizeMedium    FieldSize = "medium"
	SizeLarge     FieldSize = "large"
	SizeVeryLarge FieldSize = "very_large"
)

// ValidSize reports whether s is a known size class.
func ValidSize(s FieldSize) bool {
	switch s {
	case SizeTiny, SizeSmall, SizeMedium, SizeLarge, SizeVeryLarge:
		return true
	}
	return false
}

// The five system fields present on every form. SystemColumns lists them
// in physical column order; submission_id always leads and the remaining
// four always trail the custom columns.
const (
	ColSubmissionID     = "submission_id"
	ColSubmissionDate   = "submission_date"
	ColLastModifiedDate = "last_modified_date"
	ColIPAddress        = "ip_address"
	ColIsFinalized      = "is_finalized"
)

// SystemColumns is the ordered set of system column names.
var SystemColumns = []string{
	ColSubmissionID,
	ColSubmissionDate,
	ColLastModifiedDate,
	ColIPAddress,
	ColIsFinalized,
}

// IsSystemColumn reports whether name is one of the five system columns.
func IsSystemColumn(name string) bool {
	for _, c := range SystemColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Form is the definition of one form. Its physical storage table exists
// iff Complete is true; it accepts and lists submissions iff both
// Initialized and Complete are true.
type Form struct {
	ID             int64
	Name           string
	Type           FormType
	URL            string
	AccessType     AccessType
	SubmissionType SubmissionType

	Initialized bool
	Complete    bool
	Active      bool

	MultiPage   bool
	PageURLs    []string // ordered; first page duplicates URL
	RedirectURL string
	StripTags   bool

	EditSubmissionPageLabel  string
	AddSubmissionButtonLabel string
	AutoDeleteFiles          bool

	DateCreated time.Time

	// ClientIDs are the accounts explicitly assigned to the form.
	ClientIDs []int64
	// OmitList holds accounts excluded from an otherwise-public form.
	// Only meaningful while AccessType is public.
	OmitList []int64
}

// Queryable reports whether the form may accept and list submissions.
func (f *Form) Queryable() bool {
	return f.Initialized && f.Complete
}

// FormField is one field of a form and describes one column of the
// form's physical table (file fields excepted: their data lives with the
// file storage collaborator).
type FormField struct {
	ID     int64
	FormID int64

	Title string // display name
	Name  string // form-facing field name, matches the inbound payload key

	TypeID int
	Size   FieldSize

	// ColName is the physical column name. Unique within a form; once
	// the table is finalized a rename must alter the physical column in
	// the same transaction.
	ColName string

	System            bool
	IncludeOnRedirect bool
	ListOrder         int
}

// FieldSetting is one (field, setting) value pair.
type FieldSetting struct {
	FieldID   int64
	SettingID int
	Value     string
}

// View is a named subset of a form's fields with grouping tabs and
// default filters. Every finalized form has at least one view.
type View struct {
	ID      int64
	FormID  int64
	Name    string
	Default bool
	Order   int

	AccessType AccessType

	SubmissionsPerPage int
	DefaultSortField   string
	DefaultSortOrder   string

	MayAdd    bool
	MayEdit   bool
	MayDelete bool

	Fields  []ViewField
	Tabs    []ViewTab
	Filters []ViewFilter
}

// ViewField places a form field on a view.
type ViewField struct {
	ViewID     int64
	FieldID    int64
	TabNumber  int
	Searchable bool
	Sortable   bool
	Column     bool
	Editable   bool
	ListOrder  int
}

// ViewTab groups view fields in the UI.
type ViewTab struct {
	ViewID int64
	Number int
	Label  string
}

// ViewFilter is a default search constraint applied to a view's
// submission listing.
type ViewFilter struct {
	ViewID     int64
	FieldID    int64
	FilterType string
	Operator   string
	Values     string
	SQL        string
}

// OptionList is a reusable set of options backing option-backed field
// types (dropdowns, multi-selects, radios, checkboxes).
type OptionList struct {
	ID      int64
	FormID  int64
	Name    string
	Options []Option
}

// Option is one entry of an option list.
type Option struct {
	Value string
	Text  string
	Order int
}
