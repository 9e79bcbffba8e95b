package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized, message: "access token required"},
		{name: "expired", header: common.BearerPrefix + token(t, 7, -time.Minute), status: http.StatusUnauthorized, message: "token expired"},
		{name: "forged", header: common.BearerPrefix + "not.a.jwt", status: http.StatusForbidden, message: "invalid token"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", status: http.StatusForbidden, message: "invalid token"},
		{name: "valid", header: common.BearerPrefix + token(t, 7, time.Hour), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set(common.AuthorizationHeaderName, tt.header)
			}
			rec, env := api.serve(t, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, env.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
			}
		})
	}
}

func TestOptionalAuth_AnonymousAndIdentified(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/v1/songs/5/plays", "", map[string]any{"platform": "web"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, api.songs.play.UserID)
	assert.Equal(t, "web", api.songs.play.Platform)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/songs/5/plays", token(t, 9, time.Hour), map[string]any{"download": true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, api.songs.play.UserID)
	assert.Equal(t, int64(9), *api.songs.play.UserID)
	assert.True(t, api.songs.play.Download)

	// A bad token on an optional route is ignored rather than rejected.
	rec, _ = api.do(t, http.MethodPost, "/api/v1/songs/5/plays", "garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, api.songs.play.UserID)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Nop())
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5678"))
	// Buckets are per client address, not per connection.
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1234"))
}

func TestRateLimiter_DisabledAndCleanup(t *testing.T) {
	rl := NewRateLimiter(0, 0, logging.Nop())
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, rl.Handler(next))

	rl = NewRateLimiter(5, 5, logging.Nop())
	rl.getLimiter("a")
	rl.limiters["a"].lastSeen = time.Now().Add(-time.Hour)
	rl.getLimiter("b")
	rl.Cleanup()

	assert.NotContains(t, rl.limiters, "a")
	assert.Contains(t, rl.limiters, "b")
}

func TestRequestMeta(t *testing.T) {
	var got services.RequestMeta
	h := requestMeta(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = services.RequestMetaFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4321"
	req.Header.Set("User-Agent", "indiec-test")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.10", got.IP)
	assert.Equal(t, "indiec-test", got.UserAgent)
}

func TestRequestIDEchoed(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalogs/genres", nil)
	req.Header.Set(common.RequestIDHeaderName, "req-123")
	rec, _ := api.serve(t, req)

	assert.Equal(t, "req-123", rec.Header().Get(common.RequestIDHeaderName))
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	api.srv.Health["relational"] = pingerStub{}
	api.srv.Health["documents"] = pingerStub{}

	rec, env := api.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	api.srv.Health["documents"] = pingerStub{err: errors.New("no route to host")}
	rec, env = api.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	stores := env.Data.(map[string]any)["stores"].(map[string]any)
	assert.Equal(t, "down", stores["documents"])
	assert.Equal(t, "up", stores["relational"])
}
