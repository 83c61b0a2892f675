// Package hooks is the event bus extension points fire through. Other
// packages register handlers for named stages; the engine dispatches
// typed events at well-defined points of the submission and field
// lifecycles.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/formworks-hq/formworks/internal/metadata"
	"github.com/formworks-hq/formworks/internal/query"
)

// Stage identifies a dispatch point.
type Stage string

const (
	// StageSubmissionStart fires before an inbound payload is mapped
	// to fields. Handlers may rewrite the payload.
	StageSubmissionStart Stage = "submission.start"

	// StageSubmissionEnd fires after a submission completes, before
	// the redirect is assembled.
	StageSubmissionEnd Stage = "submission.end"

	// StageManageFiles fires between start and end so file handlers
	// can move uploads and contribute redirect parameters.
	StageManageFiles Stage = "submission.manage_files"

	// StageDeleteFields fires before field rows and their storage
	// columns are removed.
	StageDeleteFields Stage = "fields.delete"

	// StageFormSearchStart fires before a form listing query runs.
	// Handlers may adjust the criteria.
	StageFormSearchStart Stage = "forms.search.start"

	// StageFormSearchEnd fires with the matched forms before they are
	// returned to the caller.
	StageFormSearchEnd Stage = "forms.search.end"
)

// SubmissionStarted is the payload for StageSubmissionStart. Values is
// the inbound key/value payload before field mapping; handlers may
// rewrite entries in place.
type SubmissionStarted struct {
	Form      *metadata.Form
	Values    map[string][]string
	IPAddress string
}

// SubmissionEnded is the payload for StageSubmissionEnd.
type SubmissionEnded struct {
	Form         *metadata.Form
	SubmissionID int64
}

// ManageFiles is the payload for StageManageFiles. Handlers append to
// RedirectParams to surface values on the redirect URL.
type ManageFiles struct {
	Form           *metadata.Form
	SubmissionID   int64
	Finalized      bool
	RedirectParams map[string]string
}

// FieldsDeleting is the payload for StageDeleteFields.
type FieldsDeleting struct {
	FormID int64
	Fields []*metadata.FormField
}

// FormSearchStarting is the payload for StageFormSearchStart.
// Handlers may rewrite the criteria in place.
type FormSearchStarting struct {
	Criteria *query.FormSearch
}

// FormSearchEnded is the payload for StageFormSearchEnd.
type FormSearchEnded struct {
	Criteria *query.FormSearch
	Forms    []*metadata.Form
}

// Handler processes one dispatched event. The event is one of the
// payload types above; handlers type-assert on the stage they
// registered for.
type Handler func(ctx context.Context, event interface{}) error

// Dispatcher routes events to registered handlers in registration
// order. Safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Stage][]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Stage][]Handler)}
}

// Register adds a handler for a stage.
func (d *Dispatcher) Register(stage Stage, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[stage] = append(d.handlers[stage], h)
}

// Dispatch delivers the event to every handler for the stage,
// stopping at the first error.
func (d *Dispatcher) Dispatch(ctx context.Context, stage Stage, event interface{}) error {
	d.mu.RLock()
	handlers := d.handlers[stage]
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("hook %s: %w", stage, err)
		}
	}
	return nil
}

// HandlerCount returns the number of handlers for a stage.
func (d *Dispatcher) HandlerCount(stage Stage) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[stage])
}
