package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   Conflict("Listing is no longer available"),
			expected: "CONFLICT: Listing is no longer available",
		},
		{
			name:     "with underlying error",
			appErr:   Persistence("Failed to save message", errors.New("connection reset")),
			expected: "PERSISTENCE_ERROR: Failed to save message (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors_StatusAndCode(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFoundWithID("Listing", "abc"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad listing", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("token required"), CodeUnauthorized, http.StatusUnauthorized},
		{"conflict", Conflict("already reserved"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"persistence", Persistence("store down", nil), CodePersistence, http.StatusServiceUnavailable},
		{"too many requests", TooManyRequests("slow down"), CodeTooManyRequests, http.StatusTooManyRequests},
		{"unavailable", Unavailable("Event stream"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Listing", "65f1c2")

	if err.Message != "Listing not found" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Details["id"] != "65f1c2" || err.Details["resource"] != "Listing" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAsAppError_FollowsWrapChain(t *testing.T) {
	conflict := Conflict("already reserved")
	wrapped := fmt.Errorf("reserve listing: %w", conflict)

	if !IsAppError(wrapped) {
		t.Fatal("IsAppError should see through fmt.Errorf wrapping")
	}
	if got := AsAppError(wrapped); got != conflict {
		t.Errorf("AsAppError() returned %v, want the wrapped conflict", got)
	}
	if !HasCode(wrapped, CodeConflict) {
		t.Error("HasCode should match the wrapped conflict")
	}
	if HasCode(wrapped, CodeNotFound) {
		t.Error("HasCode should not match a different code")
	}
}

func TestAsAppError_WrapsPlainErrors(t *testing.T) {
	plain := errors.New("socket closed")
	result := AsAppError(plain)

	if result.Code != CodeInternal {
		t.Errorf("expected internal code, got %s", result.Code)
	}
	if !errors.Is(result, plain) {
		t.Error("wrapped AppError should unwrap to the original error")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	body := string(Validation("Listing validation failed", map[string]any{"field": "Title"}).ToJSON())

	for _, want := range []string{`"code":"VALIDATION_ERROR"`, `"message":"Listing validation failed"`, `"field":"Title"`} {
		if !strings.Contains(body, want) {
			t.Errorf("ToJSON() = %s, missing %s", body, want)
		}
	}
}
