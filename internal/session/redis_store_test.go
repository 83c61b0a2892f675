package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestParkAndTake(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	parked := &ParkedSubmission{
		FormID: 12,
		Values: map[string][]string{
			"name":  {"Joe Smith"},
			"likes": {"go", "sql"},
		},
		IPAddress: "203.0.113.9",
		ParkedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Park(ctx, "abc123", parked, time.Minute))

	got, err := store.Take(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.FormID)
	assert.Equal(t, []string{"go", "sql"}, got.Values["likes"])
	assert.Equal(t, "203.0.113.9", got.IPAddress)
	assert.True(t, got.ParkedAt.Equal(parked.ParkedAt))
}

func TestTakeConsumesEntry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Park(ctx, "once", &ParkedSubmission{FormID: 1}, time.Minute))

	_, err := store.Take(ctx, "once")
	require.NoError(t, err)

	_, err = store.Take(ctx, "once")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTakeMissingKey(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Take(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParkExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Park(ctx, "ttl", &ParkedSubmission{FormID: 2}, time.Second))
	mr.FastForward(2 * time.Second)

	_, err := store.Take(ctx, "ttl")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDrop(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Park(ctx, "gone", &ParkedSubmission{FormID: 3}, time.Minute))
	require.NoError(t, store.Drop(ctx, "gone"))

	_, err := store.Take(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	// Dropping a missing key is not an error.
	assert.NoError(t, store.Drop(ctx, "gone"))
}
