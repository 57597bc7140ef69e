package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/R3E-Network/user_board/internal/app"
	"github.com/R3E-Network/user_board/internal/app/auth"
	"github.com/R3E-Network/user_board/internal/logging"
	"github.com/R3E-Network/user_board/internal/middleware"
)

func newTestHandler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	application, err := app.New(app.Stores{}, auth.Config{Secret: []byte("httpapi-secret")}, logging.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return NewHandler(application, opts)
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
}

func register(t *testing.T, h http.Handler, email, nickname string) int64 {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/users", "", map[string]any{
		"email":    email,
		"password": "secret123",
		"nickname": nickname,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var u struct {
		ID       int64  `json:"id"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	decode(t, rec, &u)
	if u.Role != "frontend" {
		t.Fatalf("expected default role frontend, got %q", u.Role)
	}
	if u.Password != "" {
		t.Fatal("password must not be serialized")
	}
	return u.ID
}

func login(t *testing.T, h http.Handler, email string) (string, string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/users/login", "", map[string]any{"email": email, "password": "secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		User         struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	decode(t, rec, &res)
	if res.AccessToken == "" || res.RefreshToken == "" || res.User.Email != email {
		t.Fatalf("unexpected login response: %s", rec.Body.String())
	}
	return res.AccessToken, res.RefreshToken
}

func TestHandlerLifecycle(t *testing.T) {
	h := newTestHandler(t, Options{})

	aliceID := register(t, h, "alice@example.com", "alice")
	register(t, h, "bob@example.com", "bob")
	register(t, h, "carol@example.com", "carol")

	rec := do(t, h, http.MethodGet, "/users?pageNum=1&perPage=2&sort=nickname:desc", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var page struct {
		Users []struct {
			Nickname string `json:"nickname"`
		} `json:"users"`
		TotalCount int `json:"totalCount"`
		PerPage    int `json:"perPage"`
	}
	decode(t, rec, &page)
	if page.TotalCount != 3 || page.PerPage != 2 || len(page.Users) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Users[0].Nickname != "carol" || page.Users[1].Nickname != "bob" {
		t.Fatalf("unexpected order: %+v", page.Users)
	}

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/users/%d", aliceID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = do(t, h, http.MethodPatch, fmt.Sprintf("/users/%d", aliceID), "", map[string]any{"nickname": "al"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("patch without token: expected 401, got %d", rec.Code)
	}

	access, refresh := login(t, h, "alice@example.com")

	rec = do(t, h, http.MethodPatch, fmt.Sprintf("/users/%d", aliceID), access, map[string]any{
		"nickname":      "al",
		"role":          "backend",
		"frontEndLevel": 7,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status %d body %s", rec.Code, rec.Body.String())
	}
	var patched struct {
		Nickname      string `json:"nickname"`
		Role          string `json:"role"`
		FrontEndLevel int    `json:"frontEndLevel"`
	}
	decode(t, rec, &patched)
	if patched.Nickname != "al" || patched.Role != "backend" || patched.FrontEndLevel != 7 {
		t.Fatalf("unexpected patched user: %+v", patched)
	}

	rec = do(t, h, http.MethodPost, "/users/login-check-by-accessToken", access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("access check: status %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/users/login-check-by-refreshToken", refresh, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh check: status %d", rec.Code)
	}
	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	decode(t, rec, &refreshed)
	if refreshed.AccessToken == "" {
		t.Fatal("expected new access token")
	}

	rec = do(t, h, http.MethodPost, "/users/logout", refresh, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/users/login-check-by-refreshToken", refresh, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", rec.Code)
	}
}

func TestSaveRowsAndDelete(t *testing.T) {
	h := newTestHandler(t, Options{})
	aliceID := register(t, h, "alice@example.com", "alice")
	bobID := register(t, h, "bob@example.com", "bob")
	access, _ := login(t, h, "alice@example.com")

	changeset := map[string]any{
		"created": []map[string]any{
			{"key": "tmp-1", "email": "dave@example.com", "nickname": "dave"},
			{"key": "tmp-2", "email": "not-an-email", "nickname": "eve"},
		},
		"updated": []map[string]any{
			{"id": aliceID, "patch": map[string]any{"phoneNumber": "010-1234-5678"}},
		},
		"deleted": []int64{bobID},
	}
	rec := do(t, h, http.MethodPost, "/users/rows", access, changeset)
	if rec.Code != http.StatusOK {
		t.Fatalf("save rows: status %d body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Results []struct {
			Key               string `json:"key"`
			ID                int64  `json:"id"`
			Op                string `json:"op"`
			TemporaryPassword string `json:"temporaryPassword"`
			Error             string `json:"error"`
		} `json:"results"`
		Deleted int64 `json:"deleted"`
	}
	decode(t, rec, &res)
	if len(res.Results) != 3 || res.Deleted != 1 {
		t.Fatalf("unexpected save result: %s", rec.Body.String())
	}
	if res.Results[0].Key != "tmp-1" || res.Results[0].ID == 0 || res.Results[0].TemporaryPassword == "" {
		t.Fatalf("expected created row with id and temporary password: %+v", res.Results[0])
	}
	if res.Results[1].Error == "" {
		t.Fatalf("expected invalid row to fail: %+v", res.Results[1])
	}
	if res.Results[2].Error != "" {
		t.Fatalf("expected update to succeed: %+v", res.Results[2])
	}

	rec = do(t, h, http.MethodDelete, "/users", access, map[string]any{"checkedIds": []int64{res.Results[0].ID, 9999}})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	var deleted struct {
		Deleted int64 `json:"deleted"`
	}
	decode(t, rec, &deleted)
	if deleted.Deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted.Deleted)
	}

	rec = do(t, h, http.MethodDelete, "/users", access, map[string]any{"checkedIds": []int64{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty delete: expected 400, got %d", rec.Code)
	}
}

func TestErrorEnvelope(t *testing.T) {
	h := newTestHandler(t, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown sort column", http.MethodGet, "/users?sort=password:asc", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad page number", http.MethodGet, "/users?pageNum=abc", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing user", http.MethodGet, "/users/404", nil, http.StatusNotFound, "NOT_FOUND"},
		{"invalid register", http.MethodPost, "/users", map[string]any{"email": "x"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", http.MethodPost, "/users/login", map[string]any{"user": "x"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrong password", http.MethodPost, "/users/login", map[string]any{"email": "a@b.co", "password": "nope"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown route", http.MethodGet, "/nope", nil, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, "", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			var env struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			decode(t, rec, &env)
			if env.Error.Code != tt.code || env.Error.Message == "" {
				t.Fatalf("unexpected envelope: %s", rec.Body.String())
			}
		})
	}
}

func TestDuplicateRegisterConflict(t *testing.T) {
	h := newTestHandler(t, Options{})
	register(t, h, "alice@example.com", "alice")
	rec := do(t, h, http.MethodPost, "/users", "", map[string]any{
		"email": "alice@example.com", "password": "secret123", "nickname": "alice",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestHandler(t, Options{})
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "user_board_") {
		t.Fatalf("metrics: status %d", rec.Code)
	}

	unhealthy := newTestHandler(t, Options{Health: func(context.Context) error { return errors.New("db down") }})
	rec = do(t, unhealthy, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: status %d", rec.Code)
	}
}

func TestRateLimitedUsersRoutes(t *testing.T) {
	h := newTestHandler(t, Options{RateLimiter: middleware.NewRateLimiter(1, 1, logging.NewNop())})
	if rec := do(t, h, http.MethodGet, "/users", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request: status %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/users", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz must not be rate limited: status %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})
	req := httptest.NewRequest(http.MethodOptions, "/users/1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("missing allow-origin header")
	}
}
