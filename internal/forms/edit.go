package forms

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/formworks-hq/formworks/internal/hooks"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/provision"
)

// FieldChange describes the requested new state of one field.
type FieldChange struct {
	FieldID           int64
	Name              string
	Title             string
	TypeID            int
	Size              metadata.FieldSize
	IncludeOnRedirect bool
	ListOrder         int
}

// FieldResult reports the outcome of one field's change. A failed
// change aborts only that field; the rest of the batch proceeds.
type FieldResult struct {
	FieldID int64
	Err     error
}

// EditFields applies a batch of field changes and deletions to a
// finalized form. Each field's change runs in its own transaction
// covering both the column DDL and the metadata row, so a rejected
// rename leaves that field fully untouched. Deletions fire the
// field-deletion hook first and abort the whole batch if it fails.
func (o *Orchestrator) EditFields(ctx context.Context, formID int64, changes []FieldChange, deleteIDs []int64) ([]FieldResult, error) {
	unlock := o.lock(formID)
	defer unlock()

	form, err := o.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	results := make([]FieldResult, 0, len(changes)+len(deleteIDs))
	for _, change := range changes {
		err := o.applyFieldChange(ctx, form, change)
		if err != nil {
			o.logger.Warn("field change failed",
				zap.Int64("form_id", formID),
				zap.Int64("field_id", change.FieldID),
				zap.Error(err))
		}
		results = append(results, FieldResult{FieldID: change.FieldID, Err: err})
	}

	if len(deleteIDs) > 0 {
		if err := o.deleteFields(ctx, form, deleteIDs, &results); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (o *Orchestrator) applyFieldChange(ctx context.Context, form *metadata.Form, change FieldChange) error {
	return o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
		s := o.store.WithTx(tx)
		p := o.prov.WithTx(tx)

		field, err := s.GetField(ctx, change.FieldID)
		if err != nil {
			return err
		}
		if field.FormID != form.ID {
			return fmt.Errorf("field %d does not belong to form %d", change.FieldID, form.ID)
		}
		if field.System {
			// Only display attributes may change on system fields.
			field.Title = change.Title
			field.IncludeOnRedirect = change.IncludeOnRedirect
			if change.ListOrder > 0 {
				field.ListOrder = change.ListOrder
			}
			return s.UpdateField(ctx, field)
		}

		wasFile := o.registry.IsFileField(field.TypeID)
		isFile := o.registry.IsFileField(change.TypeID)
		hasColumn := form.Complete && !wasFile
		wantsColumn := form.Complete && !isFile

		newCol := field.ColName
		if change.Name != "" && change.Name != field.Name {
			existing, err := s.FieldColumnMap(ctx, form.ID)
			if err != nil {
				return err
			}
			taken := make(map[string]bool, len(existing))
			for name, col := range existing {
				if name != field.Name {
					taken[col] = true
				}
			}
			newCol = metadata.UniqueColumnName(change.Name, taken)
		}

		// Column DDL first; a rejected statement rolls the whole
		// field change back before any metadata is touched.
		switch {
		case hasColumn && !wantsColumn:
			if err := p.DropColumn(ctx, form.ID, field.ColName); err != nil {
				return err
			}
		case !hasColumn && wantsColumn:
			if err := p.AddColumn(ctx, form.ID, provisionColumn(newCol, change.Size)); err != nil {
				return err
			}
		case hasColumn:
			if newCol != field.ColName {
				if err := p.RenameColumn(ctx, form.ID, field.ColName, newCol); err != nil {
					return err
				}
			}
			if change.Size != "" && change.Size != field.Size {
				if _, err := p.ResizeColumn(ctx, form.ID, newCol, change.Size); err != nil {
					return err
				}
			}
		}

		if change.TypeID != 0 && change.TypeID != field.TypeID {
			if err := o.migrateSettings(ctx, s, field, change.TypeID); err != nil {
				return err
			}
			field.TypeID = change.TypeID
		}

		if change.Name != "" {
			field.Name = change.Name
		}
		if change.Title != "" {
			field.Title = change.Title
		}
		if change.Size != "" {
			field.Size = change.Size
		}
		if change.ListOrder > 0 {
			field.ListOrder = change.ListOrder
		}
		field.ColName = newCol
		field.IncludeOnRedirect = change.IncludeOnRedirect
		return s.UpdateField(ctx, field)
	})
}

// migrateSettings carries shared-characteristic settings over to the
// new type and drops the rest.
func (o *Orchestrator) migrateSettings(ctx context.Context, s *metadata.Store, field *metadata.FormField, newTypeID int) error {
	shared := o.registry.SharedSettingMap(field.TypeID, newTypeID)
	old, err := s.FieldSettings(ctx, field.ID)
	if err != nil {
		return err
	}

	migrated := make(map[int]string)
	for oldID, newID := range shared {
		if v, ok := old[oldID]; ok {
			migrated[newID] = v
		}
	}
	return s.ReplaceFieldSettings(ctx, field.ID, migrated)
}

func (o *Orchestrator) deleteFields(ctx context.Context, form *metadata.Form, deleteIDs []int64, results *[]FieldResult) error {
	fields := make([]*metadata.FormField, 0, len(deleteIDs))
	for _, id := range deleteIDs {
		f, err := o.store.GetField(ctx, id)
		if err != nil {
			*results = append(*results, FieldResult{FieldID: id, Err: err})
			continue
		}
		if f.System {
			*results = append(*results, FieldResult{FieldID: id,
				Err: fmt.Errorf("field %d is a system field", id)})
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil
	}

	if o.dispatch != nil {
		event := &hooks.FieldsDeleting{FormID: form.ID, Fields: fields}
		if err := o.dispatch.Dispatch(ctx, hooks.StageDeleteFields, event); err != nil {
			return err
		}
	}

	for _, f := range fields {
		field := f
		err := o.txm.WithTransaction(ctx, func(tx *sql.Tx) error {
			s := o.store.WithTx(tx)
			p := o.prov.WithTx(tx)

			if form.Complete && !o.registry.IsFileField(field.TypeID) {
				if err := p.DropColumn(ctx, form.ID, field.ColName); err != nil {
					return err
				}
			}
			if err := s.RemoveFieldFromViews(ctx, field.ID); err != nil {
				return err
			}
			return s.DeleteField(ctx, field.ID)
		})
		*results = append(*results, FieldResult{FieldID: field.ID, Err: err})
	}
	return nil
}

func provisionColumn(name string, size metadata.FieldSize) provision.Column {
	if size == "" {
		size = metadata.SizeMedium
	}
	return provision.Column{Name: name, Size: size}
}
