package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "seva/pkg/errors"
	"seva/pkg/logger"
	"seva/pkg/model"
)

type stubAuth map[string]string

func (s stubAuth) Verify(_ context.Context, token string) (model.Principal, error) {
	if id, ok := s[token]; ok {
		return model.Principal{UserID: id}, nil
	}
	return model.Principal{}, apperrors.Unauthorized("Invalid or expired token")
}

func headerToken(r *http.Request) string {
	return r.Header.Get("X-Token")
}

func TestAuth(t *testing.T) {
	var seen string
	handler := Auth(stubAuth{"t-alice": "alice"}, headerToken, logger.Discard())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())
			seen = p.UserID
		}))

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantUser   string
	}{
		{"valid", "t-alice", http.StatusOK, "alice"},
		{"invalid", "nope", http.StatusUnauthorized, ""},
		{"missing", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
			req.Header.Set("X-Token", tt.token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if seen != tt.wantUser {
				t.Errorf("expected principal %q, got %q", tt.wantUser, seen)
			}
		})
	}
}

func TestIdempotency_ScopedPerUser(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls atomic.Int32
	var keys []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		keys = append(keys, IdempotencyKeyFromContext(r.Context()))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte{byte('0' + n)})
	})
	handler := Idempotency(store, "")(inner)

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", strings.NewReader("{}"))
		req.Header.Set(IdempotencyHeader, "k-1")
		req = req.WithContext(WithPrincipal(req.Context(), model.Principal{UserID: user}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("alice")
	replay := send("alice")
	other := send("bob")

	if calls.Load() != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls.Load())
	}
	if replay.Code != http.StatusCreated || replay.Body.String() != first.Body.String() {
		t.Errorf("replay should match the first response, got %d %q", replay.Code, replay.Body.String())
	}
	if other.Body.String() == first.Body.String() {
		t.Error("another user's identical key must not replay alice's response")
	}
	if len(keys) != 2 || keys[0] != "k-1" {
		t.Errorf("handler should see the raw key in context, got %v", keys)
	}
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls atomic.Int32
	handler := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", strings.NewReader("{}"))
		req.Header.Set(IdempotencyHeader, "k-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls.Load() != 2 {
		t.Errorf("failed responses must not be replayed, handler ran %d times", calls.Load())
	}
}

func TestUserRateLimiter_Allow(t *testing.T) {
	rl := NewUserRateLimiter(2, time.Minute, logger.Discard())
	defer rl.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("alice") || !rl.Allow("alice") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("alice") {
		t.Error("third request inside the window should be limited")
	}
	if !rl.Allow("bob") {
		t.Error("limits are per user")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("alice") {
		t.Error("window should slide")
	}
}

func TestUserRateLimit_Middleware(t *testing.T) {
	rl := NewUserRateLimiter(1, time.Minute, logger.Discard())
	defer rl.Stop()
	handler := UserRateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), model.Principal{UserID: "alice"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("unexpected status codes %v", codes)
	}
}

func TestContentTypeValidation(t *testing.T) {
	handler := ContentTypeValidation(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name        string
		body        string
		contentType string
		want        int
	}{
		{"json body", "{}", "application/json; charset=utf-8", http.StatusOK},
		{"form body", "a=b", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"empty reserve post", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequestTimeout(t *testing.T) {
	handler := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}
