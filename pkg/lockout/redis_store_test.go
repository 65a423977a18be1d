package lockout_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/loginkit/pkg/lockout"
)

func newRedisStore(t *testing.T) (*lockout.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return lockout.NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	_, ok, err := store.Get(ctx, "lockout:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := lockout.Record{Attempts: 3, LockedUntil: time.Now().Add(time.Minute).Truncate(time.Second)}
	require.NoError(t, store.Put(ctx, "lockout:abc", rec, time.Minute))

	got, ok, err := store.Get(ctx, "lockout:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Attempts, got.Attempts)
	assert.True(t, rec.LockedUntil.Equal(got.LockedUntil))

	require.NoError(t, store.Delete(ctx, "lockout:abc"))
	_, ok, err = store.Get(ctx, "lockout:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Put(ctx, "lockout:ttl", lockout.Record{Attempts: 1}, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "lockout:ttl")
	require.NoError(t, err)
	assert.False(t, ok, "record must expire with the lockout window")
}

func TestTrackerOnRedis(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	tracker, err := lockout.NewTracker(store, lockout.Config{Enabled: true, MaxAttempts: 5, Window: 15 * time.Minute})
	require.NoError(t, err)

	for range 5 {
		_, err := tracker.RecordFailure(ctx, "9.9.9.9")
		require.NoError(t, err)
	}

	status, err := tracker.CheckLock(ctx, "9.9.9.9")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Positive(t, status.RemainingMinutes())
}
