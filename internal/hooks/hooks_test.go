package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOrder(t *testing.T) {
	d := NewDispatcher()

	var calls []string
	d.Register(StageSubmissionStart, func(ctx context.Context, event interface{}) error {
		calls = append(calls, "first")
		return nil
	})
	d.Register(StageSubmissionStart, func(ctx context.Context, event interface{}) error {
		calls = append(calls, "second")
		return nil
	})

	err := d.Dispatch(context.Background(), StageSubmissionStart, &SubmissionStarted{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 2, d.HandlerCount(StageSubmissionStart))
}

func TestDispatchStopsOnError(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")

	d.Register(StageSubmissionEnd, func(ctx context.Context, event interface{}) error {
		return boom
	})
	var reached bool
	d.Register(StageSubmissionEnd, func(ctx context.Context, event interface{}) error {
		reached = true
		return nil
	})

	err := d.Dispatch(context.Background(), StageSubmissionEnd, &SubmissionEnded{SubmissionID: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "submission.end")
	assert.False(t, reached)
}

func TestDispatchNoHandlers(t *testing.T) {
	d := NewDispatcher()
	assert.NoError(t, d.Dispatch(context.Background(), StageManageFiles, &ManageFiles{}))
	assert.Zero(t, d.HandlerCount(StageManageFiles))
}

func TestHandlersMayMutatePayload(t *testing.T) {
	d := NewDispatcher()
	d.Register(StageSubmissionStart, func(ctx context.Context, event interface{}) error {
		started, ok := event.(*SubmissionStarted)
		require.True(t, ok)
		started.Values["email"] = []string{"rewritten@example.com"}
		return nil
	})

	event := &SubmissionStarted{Values: map[string][]string{
		"email": {"original@example.com"},
	}}
	require.NoError(t, d.Dispatch(context.Background(), StageSubmissionStart, event))
	assert.Equal(t, []string{"rewritten@example.com"}, event.Values["email"])
}
