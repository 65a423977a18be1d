package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/loginkit/pkg/clientip"
	"github.com/dmitrymomot/loginkit/pkg/ratelimit"
)

func TestLimiterAllowsUpToLimit(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Limit:  3,
		Window: time.Minute,
	})
	require.NoError(t, err)

	for i := range 3 {
		res, err := l.Allow(t.Context(), "addr-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "hit %d", i+1)
	}

	res, err := l.Allow(t.Context(), "addr-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)

	// Other keys are unaffected.
	res, err = l.Allow(t.Context(), "addr-2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiterResetClearsWindow(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Limit:  1,
		Window: time.Minute,
	})
	require.NoError(t, err)

	_, err = l.Allow(t.Context(), "addr")
	require.NoError(t, err)
	res, err := l.Allow(t.Context(), "addr")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, l.Reset(t.Context(), "addr"))
	res, err = l.Allow(t.Context(), "addr")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStoreWindowExpires(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := ratelimit.NewLimiter(ratelimit.NewRedisStore(client), ratelimit.Config{
		Limit:  2,
		Window: time.Minute,
	})
	require.NoError(t, err)

	for range 2 {
		res, err := l.Allow(t.Context(), "addr")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := l.Allow(t.Context(), "addr")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	mr.FastForward(2 * time.Minute)

	res, err = l.Allow(t.Context(), "addr")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMiddlewareEnforcesPerAddress(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Limit:  2,
		Window: time.Minute,
	})
	require.NoError(t, err)

	handler := ratelimit.Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/views/login", nil)
		req = req.WithContext(clientip.SetIPToContext(req.Context(), addr))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("203.0.113.7"))
	assert.Equal(t, http.StatusOK, do("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, do("203.0.113.7"))
	assert.Equal(t, http.StatusOK, do("198.51.100.4"))
}

func TestNewLimiterRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{Limit: 0, Window: time.Minute})
	require.ErrorIs(t, err, ratelimit.ErrInvalidConfig)
}
