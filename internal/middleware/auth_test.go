package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/R3E-Network/user_board/internal/app/auth"
	"github.com/R3E-Network/user_board/internal/logging"
)

func newTestTokens(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(auth.Config{Secret: []byte("middleware-secret"), AccessTTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Handler_MissingAuthHeader(t *testing.T) {
	middleware := NewAuthMiddleware(newTestTokens(t), logging.NewNop())
	handler := middleware.Handler(okHandler())

	req := httptest.NewRequest("PATCH", "/users/1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_Handler_InvalidAuthHeaderFormat(t *testing.T) {
	middleware := NewAuthMiddleware(newTestTokens(t), logging.NewNop())
	handler := middleware.Handler(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PATCH", "/users/1", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_Handler_ValidToken(t *testing.T) {
	tokens := newTestTokens(t)
	middleware := NewAuthMiddleware(tokens, logging.NewNop())

	var capturedUserID, capturedRole string
	var capturedClaims *auth.Claims
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		capturedRole = GetUserRole(r.Context())
		capturedClaims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, _, err := tokens.IssueAccess(auth.Subject{UserID: 123, Role: "backend"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("PATCH", "/users/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if capturedUserID != "123" {
		t.Errorf("User ID = %v, want 123", capturedUserID)
	}
	if capturedRole != "backend" {
		t.Errorf("Role = %v, want backend", capturedRole)
	}
	if capturedClaims == nil || capturedClaims.TokenType != auth.AccessToken {
		t.Errorf("claims not stored in context: %+v", capturedClaims)
	}
}

func TestAuthMiddleware_Handler_RefreshTokenRejected(t *testing.T) {
	tokens := newTestTokens(t)
	middleware := NewAuthMiddleware(tokens, logging.NewNop())
	handler := middleware.Handler(okHandler())

	pair, err := tokens.Issue(context.Background(), auth.Subject{UserID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("PATCH", "/users/1", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGetUserID_NoAuth(t *testing.T) {
	if got := GetUserID(context.Background()); got != "" {
		t.Errorf("GetUserID() = %v, want empty", got)
	}
	if GetClaims(context.Background()) != nil {
		t.Error("GetClaims() should be nil without auth")
	}
}
