package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/auth"
	"github.com/dmitrijs2005/indiec/internal/server/services"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type ctxKey string

const identityKey ctxKey = "identity"

func withIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// identityFrom returns the authenticated caller, if any.
func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get(common.AuthorizationHeaderName)
	if h == "" {
		return "", common.ErrMissingToken
	}
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return "", common.ErrInvalidToken
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
	if tok == "" {
		return "", common.ErrMissingToken
	}
	return tok, nil
}

// requireAuth rejects requests without a valid bearer token: a missing or
// expired token is a 401, a malformed or forged one a 403.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := bearerToken(r)
		if err != nil {
			writeError(s.logger, w, r, err)
			return
		}
		id, err := auth.ParseToken(tok, s.jwtSecret)
		if err != nil {
			s.logger.Debug(r.Context(), "token rejected", "error", err, "path", r.URL.Path)
			writeError(s.logger, w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// optionalAuth attaches the caller identity when a valid token is present
// and otherwise lets the request through anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, err := bearerToken(r); err == nil {
			if id, err := auth.ParseToken(tok, s.jwtSecret); err == nil {
				r = r.WithContext(withIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestMeta records the client address and user agent for audit entries.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestMeta(r.Context(), services.RequestMeta{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestLogger logs one line per request once the handler returns.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn(r.Context(), "request", args...)
				return
			}
			logger.Info(r.Context(), "request", args...)
		})
	}
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idle     time.Duration
	logger   logging.Logger
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second with the given burst per
// client. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, logger logging.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		logger:   logger,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Handler is the rate limiting middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	if rl.rate <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !rl.getLimiter(key).Allow() {
			rl.logger.Warn(r.Context(), "rate limit exceeded", "key", key, "path", r.URL.Path, "method", r.Method)
			w.Header().Set("Retry-After", "1")
			writeFailure(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup forgets clients idle for longer than the idle window.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.idle)
	for k, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, k)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}
