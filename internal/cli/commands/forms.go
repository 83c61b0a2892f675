package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/formworks-hq/formworks/internal/cli/ui"
	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/query"
)

// NewFormsCommand creates the forms command. Without arguments it lists
// forms; with a form ID it shows that form's record and fields.
func NewFormsCommand() *cobra.Command {
	var status, keyword string

	cmd := &cobra.Command{
		Use:   "forms [formID]",
		Short: "List forms, or show one form's details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				formID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid form ID %q", args[0])
				}
				return renderFormDetail(ctx, a.store, os.Stdout, formID)
			}

			list, err := a.store.SearchForms(ctx, &query.FormSearch{
				Status:  status,
				Keyword: keyword,
			})
			if err != nil {
				return err
			}

			table := ui.NewTable(os.Stdout, []string{"ID", "NAME", "TYPE", "STATUS", "URL"}, nil)
			for _, f := range list {
				table.AddRow(strconv.FormatInt(f.ID, 10), f.Name, string(f.Type), formStatus(f), f.URL)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (online, offline, incomplete)")
	cmd.Flags().StringVar(&keyword, "keyword", "", "keyword match on name and URL")
	return cmd
}

func formStatus(f *metadata.Form) string {
	switch {
	case f.Complete && f.Active:
		return "online"
	case f.Complete:
		return "offline"
	}
	return "incomplete"
}

// renderFormDetail prints one form's record and its field list.
func renderFormDetail(ctx context.Context, store *metadata.Store, w io.Writer, formID int64) error {
	form, err := store.GetForm(ctx, formID)
	if errors.Is(err, database.ErrNotFound) {
		return errors.New(ui.FormNotFoundError(formID, false))
	}
	if err != nil {
		return err
	}
	fields, err := store.FormFields(ctx, formID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Form %d: %s (%s, %s)\n", form.ID, form.Name, form.Type, formStatus(form))
	if form.URL != "" {
		fmt.Fprintf(w, "URL: %s\n", form.URL)
	}
	fmt.Fprintln(w)

	table := ui.NewTable(w, []string{"FIELD", "COLUMN", "SIZE", "SYSTEM"}, nil)
	for _, f := range fields {
		system := "no"
		if f.System {
			system = "yes"
		}
		table.AddRow(f.Name, f.ColName, string(f.Size), system)
	}
	table.Render()
	return nil
}
