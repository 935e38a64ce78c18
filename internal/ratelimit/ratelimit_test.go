package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLimiter(rdb, limit, time.Minute, time.Minute), mr
}

func TestAllowIP_FixedWindow(t *testing.T) {
	l, mr := newLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.AllowIP(ctx, "login", "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := l.AllowIP(ctx, "login", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	// other purposes and IPs have their own windows
	ok, err = l.AllowIP(ctx, "register", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.AllowIP(ctx, "login", "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = l.AllowIP(ctx, "login", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveEmail_Cooldown(t *testing.T) {
	l, mr := newLimiter(t, 10)
	ctx := context.Background()

	ok, err := l.ReserveEmail(ctx, "reset", "A@Example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.ReserveEmail(ctx, "reset", "a@example.com ")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = l.ReserveEmail(ctx, "reset", "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMiddleware(t *testing.T) {
	l, _ := newLimiter(t, 1)
	h := l.Middleware("login")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestMiddleware_FailsOpen(t *testing.T) {
	l, mr := newLimiter(t, 1)
	mr.Close()

	h := l.Middleware("login")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"
	assert.Equal(t, "192.168.1.9", ClientIP(req))

	req.Header.Set("X-Real-IP", " 10.1.1.1 ")
	assert.Equal(t, "10.1.1.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
