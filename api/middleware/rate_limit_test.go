package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rafaelcosta/muralize-backend/pkg/config"
)

type fakeLimiter struct {
	count  int64
	limit  int64
	err    error
	scopes []string
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.scopes = append(f.scopes, scope)
	f.count++
	f.limit = limit
	return f.count <= limit, f.count, nil
}

func rateLimitConfig(requests int) config.RateLimitConfig {
	return config.RateLimitConfig{Requests: requests, Window: time.Minute}
}

func TestRateLimitBlocksWhenWindowExhausted(t *testing.T) {
	limiter := &fakeLimiter{}
	mw := RateLimit(rateLimitConfig(2), limiter, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i+1, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit got %d", resp.Code)
	}
}

func TestRateLimitScopesByUser(t *testing.T) {
	limiter := &fakeLimiter{}
	mw := RateLimit(rateLimitConfig(10), limiter, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-123"))
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	anon := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	anon.RemoteAddr = "203.0.113.7:1234"
	mw(handler).ServeHTTP(httptest.NewRecorder(), anon)

	if len(limiter.scopes) != 2 {
		t.Fatalf("expected 2 limiter calls got %d", len(limiter.scopes))
	}
	if limiter.scopes[0] != "user-123" {
		t.Fatalf("expected user scope got %s", limiter.scopes[0])
	}
	if limiter.scopes[1] != "ip:203.0.113.7" {
		t.Fatalf("expected ip scope got %s", limiter.scopes[1])
	}
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &fakeLimiter{err: context.DeadlineExceeded}
	mw := RateLimit(rateLimitConfig(1), limiter, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if !handlerCalled {
		t.Fatalf("expected handler to run when limiter is unavailable")
	}
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRateLimitDisabledWithoutConfig(t *testing.T) {
	limiter := &fakeLimiter{}
	mw := RateLimit(config.RateLimitConfig{}, limiter, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(limiter.scopes) != 0 {
		t.Fatalf("limiter should not run when disabled")
	}
}
