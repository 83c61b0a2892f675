package metadata

import (
	"context"

	"github.com/formworks-hq/formworks/internal/database"
)

// Bootstrap creates the metadata tables if they do not exist. The DDL
// sticks to types both supported dialects accept.
func Bootstrap(ctx context.Context, db database.DBTX, dialect database.Dialect) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			` + dialect.AutoIncrementPK("form_id") + `,
			form_type VARCHAR(20) NOT NULL DEFAULT 'external',
			access_type VARCHAR(20) NOT NULL DEFAULT 'admin',
			submission_type VARCHAR(20) NOT NULL DEFAULT 'code',
			date_created TIMESTAMP NOT NULL,
			is_active VARCHAR(3) NOT NULL DEFAULT 'no',
			is_complete VARCHAR(3) NOT NULL DEFAULT 'no',
			is_initialized VARCHAR(3) NOT NULL DEFAULT 'no',
			is_multi_page_form VARCHAR(3) NOT NULL DEFAULT 'no',
			form_name VARCHAR(255) NOT NULL DEFAULT '',
			form_url VARCHAR(255) NOT NULL DEFAULT '',
			redirect_url VARCHAR(255) NOT NULL DEFAULT '',
			submission_strip_tags VARCHAR(3) NOT NULL DEFAULT 'yes',
			edit_submission_page_label TEXT,
			add_submission_button_label VARCHAR(255) NOT NULL DEFAULT 'ADD',
			auto_delete_submission_files VARCHAR(3) NOT NULL DEFAULT 'yes'
		)`,
		`CREATE TABLE IF NOT EXISTS form_fields (
			` + dialect.AutoIncrementPK("field_id") + `,
			form_id INTEGER NOT NULL,
			field_name VARCHAR(255) NOT NULL DEFAULT '',
			field_title VARCHAR(255) NOT NULL DEFAULT '',
			field_type_id INTEGER NOT NULL,
			field_size VARCHAR(20) NOT NULL DEFAULT 'medium',
			col_name VARCHAR(255) NOT NULL DEFAULT '',
			is_system_field VARCHAR(3) NOT NULL DEFAULT 'no',
			include_on_redirect VARCHAR(3) NOT NULL DEFAULT 'no',
			list_order INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS field_settings (
			field_id INTEGER NOT NULL,
			setting_id INTEGER NOT NULL,
			setting_value TEXT,
			PRIMARY KEY (field_id, setting_id)
		)`,
		`CREATE TABLE IF NOT EXISTS client_forms (
			account_id INTEGER NOT NULL,
			form_id INTEGER NOT NULL,
			PRIMARY KEY (account_id, form_id)
		)`,
		`CREATE TABLE IF NOT EXISTS public_form_omit_list (
			form_id INTEGER NOT NULL,
			account_id INTEGER NOT NULL,
			PRIMARY KEY (form_id, account_id)
		)`,
		`CREATE TABLE IF NOT EXISTS multi_page_form_urls (
			form_id INTEGER NOT NULL,
			form_url VARCHAR(255) NOT NULL,
			page_num INTEGER NOT NULL,
			PRIMARY KEY (form_id, page_num)
		)`,
		`CREATE TABLE IF NOT EXISTS views (
			` + dialect.AutoIncrementPK("view_id") + `,
			form_id INTEGER NOT NULL,
			view_name VARCHAR(100) NOT NULL DEFAULT '',
			view_order INTEGER NOT NULL DEFAULT 1,
			is_default VARCHAR(3) NOT NULL DEFAULT 'no',
			access_type VARCHAR(20) NOT NULL DEFAULT 'public',
			num_submissions_per_page INTEGER NOT NULL DEFAULT 10,
			default_sort_field VARCHAR(255) NOT NULL DEFAULT 'submission_date',
			default_sort_field_order VARCHAR(4) NOT NULL DEFAULT 'desc',
			may_add_submissions VARCHAR(3) NOT NULL DEFAULT 'yes',
			may_edit_submissions VARCHAR(3) NOT NULL DEFAULT 'yes',
			may_delete_submissions VARCHAR(3) NOT NULL DEFAULT 'yes'
		)`,
		`CREATE TABLE IF NOT EXISTS view_tabs (
			view_id INTEGER NOT NULL,
			tab_number INTEGER NOT NULL,
			tab_label VARCHAR(50),
			PRIMARY KEY (view_id, tab_number)
		)`,
		`CREATE TABLE IF NOT EXISTS view_fields (
			view_id INTEGER NOT NULL,
			field_id INTEGER NOT NULL,
			tab_number INTEGER,
			is_searchable VARCHAR(3) NOT NULL DEFAULT 'yes',
			is_sortable VARCHAR(3) NOT NULL DEFAULT 'yes',
			is_column VARCHAR(3) NOT NULL DEFAULT 'no',
			is_editable VARCHAR(3) NOT NULL DEFAULT 'yes',
			list_order INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (view_id, field_id)
		)`,
		`CREATE TABLE IF NOT EXISTS view_filters (
			view_id INTEGER NOT NULL,
			field_id INTEGER NOT NULL,
			filter_type VARCHAR(20) NOT NULL DEFAULT 'standard',
			operator VARCHAR(20) NOT NULL DEFAULT 'equals',
			filter_values TEXT,
			filter_sql TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS option_lists (
			` + dialect.AutoIncrementPK("list_id") + `,
			form_id INTEGER NOT NULL DEFAULT 0,
			list_name VARCHAR(255) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS field_options (
			list_id INTEGER NOT NULL,
			option_order INTEGER NOT NULL,
			option_value VARCHAR(255) NOT NULL DEFAULT '',
			option_name VARCHAR(255) NOT NULL DEFAULT '',
			PRIMARY KEY (list_id, option_order)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return database.NewSchemaError(stmt, err)
		}
	}
	return nil
}
