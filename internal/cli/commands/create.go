package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/formworks-hq/formworks/internal/cli/ui"
	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/forms"
	"github.com/formworks-hq/formworks/internal/metadata"
)

// wideFormFieldLimit is the field count beyond which new columns are
// capped at the small size class to keep the row within storage
// engine width limits.
const wideFormFieldLimit = 50

// NewCreateCommand creates the create command, which builds a complete
// internal form in one pass: record, fields, and storage table.
func NewCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create an internal form interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var name string
			if err := survey.AskOne(&survey.Input{
				Message: "Form name:",
			}, &name, survey.WithValidator(survey.Required)); err != nil {
				return err
			}

			var accessType string
			if err := survey.AskOne(&survey.Select{
				Message: "Access type:",
				Options: []string{"admin", "public", "private"},
				Default: "admin",
			}, &accessType); err != nil {
				return err
			}

			var clientIDs []int64
			if accessType == "private" {
				var clientList string
				if err := survey.AskOne(&survey.Input{
					Message: "Client account IDs (comma separated, blank for none):",
				}, &clientList); err != nil {
					return err
				}
				for _, c := range strings.Split(clientList, ",") {
					if c = strings.TrimSpace(c); c != "" {
						id, err := strconv.ParseInt(c, 10, 64)
						if err != nil {
							return fmt.Errorf("invalid client account ID %q", c)
						}
						clientIDs = append(clientIDs, id)
					}
				}
			}

			var fieldList string
			if err := survey.AskOne(&survey.Input{
				Message: "Field names (comma separated):",
				Help:    "e.g. first_name, last_name, email",
			}, &fieldList, survey.WithValidator(survey.Required)); err != nil {
				return err
			}

			var fieldNames []string
			for _, f := range strings.Split(fieldList, ",") {
				if f = strings.TrimSpace(f); f != "" {
					fieldNames = append(fieldNames, f)
				}
			}
			if len(fieldNames) == 0 {
				return fmt.Errorf("at least one field is required")
			}

			form := &metadata.Form{
				Name:           name,
				Type:           metadata.FormTypeInternal,
				AccessType:     metadata.AccessType(accessType),
				SubmissionType: metadata.SubmissionDirect,
				ClientIDs:      clientIDs,
			}
			formID, err := a.orch.Setup(ctx, form)
			if err != nil {
				return err
			}
			if err := a.orch.Initialize(ctx, formID, fieldNames, nil); err != nil {
				return err
			}

			// Wide forms get small columns so the row still fits.
			if len(fieldNames) > wideFormFieldLimit {
				spinner := ui.NewSpinner(os.Stdout, ui.SpinnerOptions{Message: "Loading fields"})
				spinner.Start()
				fields, err := a.store.FormFields(ctx, formID)
				if err != nil {
					spinner.Error("Loading fields failed")
					return err
				}
				var assignments []forms.FieldAssignment
				for _, f := range fields {
					if f.System {
						continue
					}
					assignments = append(assignments, forms.FieldAssignment{
						FieldID: f.ID,
						TypeID:  f.TypeID,
						Size:    metadata.SizeSmall,
					})
				}
				spinner.UpdateMessage("Capping column sizes")
				if err := a.orch.SetFieldTypesAndSizes(ctx, formID, assignments); err != nil {
					spinner.Error("Capping column sizes failed")
					return err
				}
				spinner.Success(fmt.Sprintf("Capped %d columns at the small size", len(assignments)))
			}

			err = ui.WithSpinner(os.Stdout, "Provisioning storage table", false, func() error {
				return a.orch.Finalize(ctx, formID)
			})
			if err != nil {
				return describeFinalizeError(err)
			}

			color.Green("✓ Form %q created (ID %d, %d fields)", name, formID, len(fieldNames))
			return nil
		},
	}
}

// describeFinalizeError turns a rejected DDL statement into the full
// schema-change message; other failures pass through unchanged.
func describeFinalizeError(err error) error {
	if database.IsSchemaError(err) {
		return errors.New(ui.SchemaChangeError(err.Error(),
			"The form record and fields were kept, but no storage table was created.", false))
	}
	return err
}
