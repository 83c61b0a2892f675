// Package submission ingests inbound form posts: it resolves the
// target form, maps payload values onto the form's storage columns,
// persists the row, and assembles the redirect response.
package submission

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formworks-hq/formworks/internal/database"
	"github.com/formworks-hq/formworks/internal/fieldtypes"
	"github.com/formworks-hq/formworks/internal/hooks"
	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/provision"
	"github.com/formworks-hq/formworks/internal/session"
)

// Config carries the pipeline's formatting knobs.
type Config struct {
	// MultiValueDelimiter joins array values for storage.
	MultiValueDelimiter string

	// QueryStringSeparator joins array values on the redirect query
	// string. Kept distinct from the storage delimiter.
	QueryStringSeparator string

	// DateFormat is the layout for date-typed fields on the redirect.
	DateFormat string

	// CaptchaParkTTL bounds how long a failed-CAPTCHA payload stays
	// parked in session state.
	CaptchaParkTTL time.Duration
}

// DefaultConfig returns the stock formatting configuration.
func DefaultConfig() Config {
	return Config{
		MultiValueDelimiter:  ", ",
		QueryStringSeparator: ",",
		DateFormat:           "2006-01-02 15:04:05",
		CaptchaParkTTL:       30 * time.Minute,
	}
}

// CaptchaVerifier checks a challenge/response pair with an external
// service.
type CaptchaVerifier interface {
	Verify(ctx context.Context, remoteIP, challenge, response string) (bool, error)
}

// Notifier delivers "on submission" notifications. Failures are logged
// and never undo a stored submission.
type Notifier interface {
	SubmissionReceived(ctx context.Context, form *metadata.Form, submissionID int64) error
}

// Result is the pipeline's terminal response.
type Result struct {
	// RedirectURL is where to send the submitter.
	RedirectURL string

	// SubmissionID is the stored row's key, 0 when storage was
	// skipped.
	SubmissionID int64

	// Stored reports whether a row was written.
	Stored bool

	// CaptchaRetry reports the payload was parked pending another
	// CAPTCHA attempt; SessionKey retrieves it.
	CaptchaRetry bool
	SessionKey   string
}

// Pipeline processes inbound submissions for all forms.
type Pipeline struct {
	db       database.DBTX
	dialect  database.Dialect
	store    *metadata.Store
	registry *fieldtypes.Registry
	dispatch *hooks.Dispatcher
	sessions session.Store
	captcha  CaptchaVerifier
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipeline wires a pipeline. sessions, captcha, and notifier may be
// nil; the corresponding steps are skipped.
func NewPipeline(db database.DBTX, dialect database.Dialect, store *metadata.Store,
	registry *fieldtypes.Registry, dispatch *hooks.Dispatcher,
	sessions session.Store, captcha CaptchaVerifier, notifier Notifier,
	cfg Config, logger *zap.Logger) *Pipeline {

	if cfg.MultiValueDelimiter == "" {
		cfg.MultiValueDelimiter = ", "
	}
	if cfg.QueryStringSeparator == "" {
		cfg.QueryStringSeparator = ","
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = "2006-01-02 15:04:05"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		db:       db,
		dialect:  dialect,
		store:    store,
		registry: registry,
		dispatch: dispatch,
		sessions: sessions,
		captcha:  captcha,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Process runs the full ingestion pipeline for one inbound payload.
func (p *Pipeline) Process(ctx context.Context, payload Payload, remoteIP string) (*Result, error) {
	formID := payload.FormID()
	if formID == 0 {
		return nil, ErrInvalidForm
	}

	form, err := p.store.GetForm(ctx, formID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidForm
		}
		return nil, err
	}
	if !form.Complete {
		return nil, ErrFormIncomplete
	}
	if !form.Active {
		if override := payload.First(KeyInactiveRedirectURL); override != "" {
			return &Result{RedirectURL: override}, nil
		}
		return nil, ErrFormDisabled
	}

	if p.dispatch != nil {
		event := &hooks.SubmissionStarted{Form: form, Values: payload, IPAddress: remoteIP}
		if err := p.dispatch.Dispatch(ctx, hooks.StageSubmissionStart, event); err != nil {
			return nil, err
		}
	}

	if payload.HasCaptcha() && p.captcha != nil {
		ok, err := p.captcha.Verify(ctx, remoteIP,
			payload.First(KeyCaptchaChallenge), payload.First(KeyCaptchaResponse))
		if err != nil {
			return nil, fmt.Errorf("verifying captcha: %w", err)
		}
		if !ok {
			return p.parkForRetry(ctx, form, payload, remoteIP)
		}
	}

	fields, err := p.store.FormFields(ctx, formID)
	if err != nil {
		return nil, err
	}

	columns, values, rawValues := p.extractValues(form, fields, payload)

	var submissionID int64
	stored := false
	if !payload.Has(KeyIgnoreSubmission) {
		submissionID, err = p.insertRow(ctx, formID, columns, values, remoteIP)
		if err != nil {
			return nil, err
		}
		stored = true
	}

	if p.dispatch != nil {
		event := &hooks.SubmissionEnded{Form: form, SubmissionID: submissionID}
		if err := p.dispatch.Dispatch(ctx, hooks.StageSubmissionEnd, event); err != nil {
			return nil, err
		}
	}

	redirectParams := p.redirectParams(form, fields, rawValues, submissionID, remoteIP)

	if p.dispatch != nil {
		event := &hooks.ManageFiles{
			Form:           form,
			SubmissionID:   submissionID,
			Finalized:      stored,
			RedirectParams: redirectParams,
		}
		if err := p.dispatch.Dispatch(ctx, hooks.StageManageFiles, event); err != nil {
			return nil, err
		}
	}

	if p.notifier != nil && stored {
		if err := p.notifier.SubmissionReceived(ctx, form, submissionID); err != nil {
			p.logger.Error("submission notification failed",
				zap.Int64("form_id", formID),
				zap.Int64("submission_id", submissionID),
				zap.Error(err))
		}
	}

	redirectURL := payload.First(KeyRedirectURL)
	if redirectURL == "" {
		redirectURL = form.RedirectURL
	}
	if redirectURL == "" {
		return nil, ErrNoRedirectConfigured
	}

	return &Result{
		RedirectURL:  appendQueryParams(redirectURL, redirectParams),
		SubmissionID: submissionID,
		Stored:       stored,
	}, nil
}

// Resume replays a payload parked by a failed CAPTCHA once the
// challenge has been re-answered. The parked entry is consumed either
// way.
func (p *Pipeline) Resume(ctx context.Context, sessionKey string) (*Result, error) {
	if p.sessions == nil {
		return nil, session.ErrNotFound
	}
	parked, err := p.sessions.Take(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	payload := Payload(parked.Values)
	delete(payload, KeyCaptchaChallenge)
	delete(payload, KeyCaptchaResponse)
	return p.Process(ctx, payload, parked.IPAddress)
}

// parkForRetry stashes the payload server-side and sends the submitter
// back to the originating form with an error flag.
func (p *Pipeline) parkForRetry(ctx context.Context, form *metadata.Form, payload Payload, remoteIP string) (*Result, error) {
	formURL := payload.First(KeyFormURL)
	if formURL == "" {
		formURL = form.URL
	}

	key := uuid.NewString()
	if p.sessions != nil {
		parked := &session.ParkedSubmission{
			FormID:    form.ID,
			Values:    payload,
			IPAddress: remoteIP,
			ParkedAt:  p.now().UTC(),
		}
		if err := p.sessions.Park(ctx, key, parked, p.cfg.CaptchaParkTTL); err != nil {
			return nil, err
		}
	}

	return &Result{
		RedirectURL:  appendQueryParams(formURL, map[string]string{"captcha_error": "1"}),
		CaptchaRetry: true,
		SessionKey:   key,
	}, nil
}

// extractValues maps payload entries onto storage columns. File fields
// arrive through the upload collaborator, not the value payload, so
// they are skipped here. rawValues keeps the unjoined per-field values
// for redirect assembly.
func (p *Pipeline) extractValues(form *metadata.Form, fields []*metadata.FormField, payload Payload) (columns []string, values []interface{}, rawValues map[int64][]string) {
	rawValues = make(map[int64][]string)
	for _, f := range fields {
		if f.System || p.registry.IsFileField(f.TypeID) {
			continue
		}
		vs, ok := payload[f.Name]
		if !ok || IsReservedKey(f.Name) {
			continue
		}
		if form.StripTags {
			cleaned := make([]string, len(vs))
			for i, v := range vs {
				cleaned[i] = stripTags(v)
			}
			vs = cleaned
		}
		rawValues[f.ID] = vs
		columns = append(columns, f.ColName)
		values = append(values, strings.Join(vs, p.cfg.MultiValueDelimiter))
	}
	return columns, values, rawValues
}

// insertRow writes the submission in one INSERT, system columns
// included.
func (p *Pipeline) insertRow(ctx context.Context, formID int64, columns []string, values []interface{}, remoteIP string) (int64, error) {
	now := p.now().UTC()

	cols := make([]string, 0, len(columns)+4)
	placeholders := make([]string, 0, len(columns)+4)
	args := make([]interface{}, 0, len(values)+4)
	for i, c := range columns {
		cols = append(cols, p.dialect.QuoteIdentifier(c))
		placeholders = append(placeholders, "?")
		args = append(args, values[i])
	}
	for _, sys := range []struct {
		col   string
		value interface{}
	}{
		{metadata.ColSubmissionDate, now},
		{metadata.ColLastModifiedDate, now},
		{metadata.ColIPAddress, remoteIP},
		{metadata.ColIsFinalized, "yes"},
	} {
		cols = append(cols, p.dialect.QuoteIdentifier(sys.col))
		placeholders = append(placeholders, "?")
		args = append(args, sys.value)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		p.dialect.QuoteIdentifier(provision.TableName(formID)),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "))

	if p.dialect.InsertReturning() {
		query += " RETURNING " + p.dialect.QuoteIdentifier(metadata.ColSubmissionID)
		var id int64
		if err := p.db.QueryRowContext(ctx, p.dialect.Rebind(query), args...).Scan(&id); err != nil {
			return 0, database.ConvertError(err)
		}
		return id, nil
	}

	res, err := p.db.ExecContext(ctx, p.dialect.Rebind(query), args...)
	if err != nil {
		return 0, database.ConvertError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, database.ConvertError(err)
	}
	return id, nil
}

// redirectParams collects values for fields flagged include-on-
// redirect. File fields never appear; their handlers add parameters
// through the manage_files stage instead.
func (p *Pipeline) redirectParams(form *metadata.Form, fields []*metadata.FormField, rawValues map[int64][]string, submissionID int64, remoteIP string) map[string]string {
	params := make(map[string]string)
	for _, f := range fields {
		if !f.IncludeOnRedirect || p.registry.IsFileField(f.TypeID) {
			continue
		}
		switch {
		case f.ColName == metadata.ColSubmissionID:
			params[f.Name] = strconv.FormatInt(submissionID, 10)
		case f.ColName == metadata.ColIPAddress:
			params[f.Name] = remoteIP
		case f.ColName == metadata.ColSubmissionDate || f.ColName == metadata.ColLastModifiedDate:
			params[f.Name] = p.now().UTC().Format(p.cfg.DateFormat)
		case p.registry.IsDateField(f.TypeID):
			if vs := rawValues[f.ID]; len(vs) > 0 {
				params[f.Name] = formatDateValue(vs[0], p.cfg.DateFormat)
			}
		default:
			if vs, ok := rawValues[f.ID]; ok {
				params[f.Name] = strings.Join(vs, p.cfg.QueryStringSeparator)
			}
		}
	}
	return params
}

// formatDateValue reformats a stored date value per the configured
// layout, passing unparseable values through untouched.
func formatDateValue(value, layout string) string {
	for _, in := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(in, value); err == nil {
			return t.Format(layout)
		}
	}
	return value
}

// appendQueryParams adds params to a URL, preserving any existing
// query string.
func appendQueryParams(rawURL string, params map[string]string) string {
	if len(params) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
