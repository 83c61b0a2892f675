// Package forms coordinates the form-definition workflow: setting up a
// form record, initializing it from a test submission, finalizing it
// into a physical storage table, and keeping that table in step with
// later field edits.
package forms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/fieldtypes"
	"github.com/formworks-hq/formworks/internal/hooks"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/provision"
	"github.com/formworks-hq/formworks/internal/query"
	"github.com/formworks-hq/formworks/internal/transaction"
)

var (
	// ErrAlreadyFinalized is returned when finalizing a form twice.
	// The existing storage table is never recreated.
	ErrAlreadyFinalized = errors.New("forms: form is already finalized")

	// ErrNotInitialized is returned when finalizing a form that never
	// received its test submission.
	ErrNotInitialized = errors.New("forms: form has not been initialized")
)

// FileStore removes a form's stored uploads when the form goes away.
type FileStore interface {
	RemoveFormFiles(ctx context.Context, formID int64) error
}

// Orchestrator drives the form lifecycle. Structural edits on a form
// are serialized through a per-form lock so concurrent submissions
// never observe a half-altered table.
type Orchestrator struct {
	txm      *transaction.Manager
	dialect  database.Dialect
	store    *metadata.Store
	prov     *provision.Provisioner
	registry *fieldtypes.Registry
	dispatch *hooks.Dispatcher
	logger   *zap.Logger
	files    FileStore

	locks sync.Map // form ID -> *sync.Mutex
}

// New wires an orchestrator.
func New(txm *transaction.Manager, dialect database.Dialect, store *metadata.Store,
	prov *provision.Provisioner, registry *fieldtypes.Registry,
	dispatch *hooks.Dispatcher, logger *zap.Logger) *Orchestrator {

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		txm:      txm,
		dialect:  dialect,
		store:    store,
		prov:     prov,
		registry: registry,
		dispatch: dispatch,
		logger:   logger,
	}
}

// SetFileStore attaches an upload store consulted when forms with
// auto-delete enabled are removed.
func (o *Orchestrator) SetFileStore(fs FileStore) { o.files = fs }

func (o *Orchestrator) lock(formID int64) func() {
	mu, _ := o.locks.LoadOrStore(formID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Setup creates a new form record in its pre-initialization state and
// returns the form ID.
func (o *Orchestrator) Setup(ctx context.Context, form *metadata.Form) (int64, error) {
	if form.Type == "" {
		form.Type = metadata.FormTypeExternal
	}
	if form.AccessType == "" {
		form.AccessType = metadata.AccessAdmin
	}
	if form.SubmissionType == "" {
		form.SubmissionType = metadata.SubmissionCode
	}

	var id int64
	err := o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = o.store.WithTx(tx).CreateForm(ctx, form)
		return err
	})
	if err != nil {
		return 0, err
	}
	o.logger.Info("form created", zap.Int64("form_id", id), zap.String("name", form.Name))
	return id, nil
}

// Initialize records the field list learned from a form's test
// submission. fieldNames carries the custom fields in the order they
// appeared and fileFields the names of any uploaded file inputs;
// re-initializing replaces any earlier field set. The submission_id
// system field leads the list and the remaining system fields trail
// it, so custom fields occupy the orders between.
func (o *Orchestrator) Initialize(ctx context.Context, formID int64, fieldNames, fileFields []string) error {
	unlock := o.lock(formID)
	defer unlock()

	form, err := o.store.GetForm(ctx, formID)
	if err != nil {
		return err
	}
	if form.Complete {
		return ErrAlreadyFinalized
	}

	fileTypeID := fieldtypes.DefaultTypeID
	if ft, ok := o.registry.ByIdentifier(fieldtypes.File); ok {
		fileTypeID = ft.ID
	}

	return o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		s := o.store.WithTx(tx)
		if err := s.DeleteFormFields(ctx, formID); err != nil {
			return err
		}

		sys := systemFields()
		taken := map[string]bool{}
		for _, f := range sys {
			taken[f.ColName] = true
		}

		order := 1
		lead := sys[0]
		lead.FormID = formID
		lead.ListOrder = order
		if _, err := s.CreateField(ctx, &lead); err != nil {
			return err
		}
		order++

		addCustom := func(name string, typeID int) error {
			col := metadata.UniqueColumnName(name, taken)
			taken[col] = true
			field := &metadata.FormField{
				FormID:    formID,
				Name:      name,
				Title:     name,
				TypeID:    typeID,
				Size:      metadata.SizeMedium,
				ColName:   col,
				ListOrder: order,
			}
			if _, err := s.CreateField(ctx, field); err != nil {
				return err
			}
			order++
			return nil
		}

		for _, name := range fieldNames {
			if err := addCustom(name, fieldtypes.DefaultTypeID); err != nil {
				return err
			}
		}
		for _, name := range fileFields {
			if err := addCustom(name, fileTypeID); err != nil {
				return err
			}
		}

		for _, trail := range sys[1:] {
			trail.FormID = formID
			trail.ListOrder = order
			if _, err := s.CreateField(ctx, &trail); err != nil {
				return err
			}
			order++
		}

		return s.SetFormInitialized(ctx, formID, true)
	})
}

// systemFields returns the bookkeeping fields every form carries.
func systemFields() []metadata.FormField {
	return []metadata.FormField{
		{Name: metadata.ColSubmissionID, Title: "ID", TypeID: fieldtypes.SystemTypeID,
			ColName: metadata.ColSubmissionID, System: true, Size: metadata.SizeSmall},
		{Name: metadata.ColSubmissionDate, Title: "Date", TypeID: fieldtypes.SystemDateTypeID,
			ColName: metadata.ColSubmissionDate, System: true, Size: metadata.SizeSmall},
		{Name: metadata.ColLastModifiedDate, Title: "Last Modified", TypeID: fieldtypes.SystemDateTypeID,
			ColName: metadata.ColLastModifiedDate, System: true, Size: metadata.SizeSmall},
		{Name: metadata.ColIPAddress, Title: "IP Address", TypeID: fieldtypes.SystemTypeID,
			ColName: metadata.ColIPAddress, System: true, Size: metadata.SizeSmall},
	}
}

// Uninitialize flips the form back to awaiting its test submission.
// The recorded fields stay; the next Initialize replaces them.
func (o *Orchestrator) Uninitialize(ctx context.Context, formID int64) error {
	return o.store.SetFormInitialized(ctx, formID, false)
}

// FieldAssignment sets a field's type and size before finalization.
// Options, when present on an option-backed type, are materialized
// into a new option list bound to the field.
type FieldAssignment struct {
	FieldID int64
	TypeID  int
	Size    metadata.FieldSize
	Options []metadata.Option
}

// SetFieldTypesAndSizes applies type and size assignments in one
// transaction, creating option lists where the assigned type wants
// one.
func (o *Orchestrator) SetFieldTypesAndSizes(ctx context.Context, formID int64, assignments []FieldAssignment) error {
	unlock := o.lock(formID)
	defer unlock()

	return o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		s := o.store.WithTx(tx)
		for _, a := range assignments {
			ft, ok := o.registry.ByID(a.TypeID)
			if !ok {
				return fmt.Errorf("unknown field type %d", a.TypeID)
			}
			if !metadata.ValidSize(a.Size) {
				return fmt.Errorf("invalid field size %q", a.Size)
			}

			if err := s.UpdateFieldTypeAndSize(ctx, a.FieldID, a.TypeID, a.Size); err != nil {
				return err
			}

			if ft.RawOptionListSettingID != 0 && len(a.Options) > 0 {
				field, err := s.GetField(ctx, a.FieldID)
				if err != nil {
					return err
				}
				list := &metadata.OptionList{
					FormID:  formID,
					Name:    field.Title,
					Options: a.Options,
				}
				listID, err := s.CreateOptionList(ctx, list)
				if err != nil {
					return err
				}
				settings, err := s.FieldSettings(ctx, a.FieldID)
				if err != nil {
					return err
				}
				settings[ft.RawOptionListSettingID] = fmt.Sprintf("%d", listID)
				if err := s.ReplaceFieldSettings(ctx, a.FieldID, settings); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Finalize creates the form's physical table, marks the form complete
// and active, and creates its default view, all in one transaction.
// A second Finalize on the same form is rejected.
func (o *Orchestrator) Finalize(ctx context.Context, formID int64) error {
	unlock := o.lock(formID)
	defer unlock()

	form, err := o.store.GetForm(ctx, formID)
	if err != nil {
		return err
	}
	if form.Complete {
		return ErrAlreadyFinalized
	}
	if !form.Initialized {
		return ErrNotInitialized
	}

	fields, err := o.store.FormFields(ctx, formID)
	if err != nil {
		return err
	}

	err = o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		s := o.store.WithTx(tx)
		p := o.prov.WithTx(tx)

		var columns []provision.Column
		for _, f := range fields {
			if f.System || o.registry.IsFileField(f.TypeID) {
				continue
			}
			columns = append(columns, provision.Column{Name: f.ColName, Size: f.Size})
		}
		if err := p.CreateTable(ctx, formID, columns); err != nil {
			return err
		}
		if err := s.MarkFormComplete(ctx, formID); err != nil {
			return err
		}
		_, err := s.CreateDefaultView(ctx, formID, fields)
		return err
	})
	if err != nil {
		return err
	}
	o.logger.Info("form finalized", zap.Int64("form_id", formID))
	return nil
}

// Delete tears a form down: storage table, fields and settings, views,
// option lists, access lists, and the form row itself. The table drop
// is idempotent, so deleting a never-finalized form works too.
func (o *Orchestrator) Delete(ctx context.Context, formID int64) error {
	unlock := o.lock(formID)
	defer unlock()

	form, err := o.store.GetForm(ctx, formID)
	if err != nil {
		return err
	}

	err = o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		s := o.store.WithTx(tx)
		p := o.prov.WithTx(tx)

		if err := p.DropTable(ctx, formID); err != nil {
			return err
		}
		if err := s.DeleteFormViews(ctx, formID); err != nil {
			return err
		}
		if err := s.DeleteFormOptionLists(ctx, formID); err != nil {
			return err
		}
		if err := s.DeleteFormFields(ctx, formID); err != nil {
			return err
		}
		if err := s.SetFormClients(ctx, formID, nil); err != nil {
			return err
		}
		if err := s.SetFormOmitList(ctx, formID, nil); err != nil {
			return err
		}
		if err := s.SetMultiPageURLs(ctx, formID, nil); err != nil {
			return err
		}
		return s.DeleteFormRow(ctx, formID)
	})
	if err != nil {
		return err
	}

	// Uploads are purged after the cascade commits; a failure here
	// cannot resurrect the form, so it is logged and swallowed.
	if form.AutoDeleteFiles && o.files != nil {
		if err := o.files.RemoveFormFiles(ctx, formID); err != nil {
			o.logger.Warn("removing form files",
				zap.Int64("form_id", formID), zap.Error(err))
		}
	}
	return nil
}

// UpdateMainSettings rewrites the form's main settings row and its
// page URL list. Leaving the public access type also clears the omit
// list, which only means anything on public forms.
func (o *Orchestrator) UpdateMainSettings(ctx context.Context, form *metadata.Form) error {
	return o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		s := o.store.WithTx(tx)
		if err := s.UpdateFormMain(ctx, form); err != nil {
			return err
		}
		if form.AccessType != metadata.AccessPublic {
			if err := s.SetFormOmitList(ctx, form.ID, nil); err != nil {
				return err
			}
		}
		if !form.MultiPage {
			return s.SetMultiPageURLs(ctx, form.ID, nil)
		}
		return s.SetMultiPageURLs(ctx, form.ID, form.PageURLs)
	})
}

// SetAccess changes only the form's access type, with the same
// omit-list cleanup as a full main-settings update.
func (o *Orchestrator) SetAccess(ctx context.Context, formID int64, access metadata.AccessType) error {
	return o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		return o.store.WithTx(tx).UpdateFormAccess(ctx, formID, access)
	})
}

// SearchForms runs a form listing with the search hook stages around
// it. Handlers on the start stage may rewrite the criteria; handlers
// on the end stage see the matched forms.
func (o *Orchestrator) SearchForms(ctx context.Context, criteria *query.FormSearch) ([]*metadata.Form, error) {
	err := o.dispatch.Dispatch(ctx, hooks.StageFormSearchStart,
		&hooks.FormSearchStarting{Criteria: criteria})
	if err != nil {
		return nil, err
	}

	matched, err := o.store.SearchForms(ctx, criteria)
	if err != nil {
		return nil, err
	}

	err = o.dispatch.Dispatch(ctx, hooks.StageFormSearchEnd,
		&hooks.FormSearchEnded{Criteria: criteria, Forms: matched})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// SetClients replaces the form's client assignments.
func (o *Orchestrator) SetClients(ctx context.Context, formID int64, accountIDs []int64) error {
	return o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		return o.store.WithTx(tx).SetFormClients(ctx, formID, accountIDs)
	})
}

// SetOmitList replaces the accounts excluded from a public form.
func (o *Orchestrator) SetOmitList(ctx context.Context, formID int64, accountIDs []int64) error {
	return o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		return o.store.WithTx(tx).SetFormOmitList(ctx, formID, accountIDs)
	})
}
