// Package client is a typed HTTP client for the user board API. It relays
// bearer tokens and refreshes the access token once when a call is rejected
// with 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/httputil"
)

const (
	maxErrorBody    = 64 << 10
	maxResponseBody = 8 << 20
)

// Config configures the client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the user board API.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	onRefresh    func(access string)
}

// Session is the result of a login.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	User         user.User `json:"user"`
}

// New creates a client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// SetTokens installs the token pair used for authenticated calls.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

// Tokens returns the current token pair.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

// OnRefresh registers a callback invoked with every refreshed access token.
func (c *Client) OnRefresh(fn func(access string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

// Register creates a member account.
func (c *Client) Register(ctx context.Context, in user.RegisterInput) (user.User, error) {
	var out user.User
	err := c.do(ctx, http.MethodPost, "/users", in, tokenNone, &out)
	return out, err
}

// ListUsers fetches one page.
func (c *Client) ListUsers(ctx context.Context, q user.Query) (user.Page, error) {
	values := url.Values{}
	if q.PageNum > 0 {
		values.Set("pageNum", strconv.Itoa(q.PageNum))
	}
	if q.PerPage > 0 {
		values.Set("perPage", strconv.Itoa(q.PerPage))
	}
	if len(q.Sort) > 0 {
		values.Set("sort", user.FormatSort(q.Sort))
	}
	path := "/users"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out user.Page
	err := c.do(ctx, http.MethodGet, path, nil, tokenNone, &out)
	return out, err
}

// GetUser fetches one member.
func (c *Client) GetUser(ctx context.Context, id int64) (user.User, error) {
	var out user.User
	err := c.do(ctx, http.MethodGet, "/users/"+strconv.FormatInt(id, 10), nil, tokenNone, &out)
	return out, err
}

// UpdateUser sends edited cells of one member.
func (c *Client) UpdateUser(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	var out user.User
	err := c.do(ctx, http.MethodPatch, "/users/"+strconv.FormatInt(id, 10), p, tokenAccess, &out)
	return out, err
}

// DeleteUsers deletes the checked members.
func (c *Client) DeleteUsers(ctx context.Context, ids []int64) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	body := map[string][]int64{"checkedIds": ids}
	err := c.do(ctx, http.MethodDelete, "/users", body, tokenAccess, &out)
	return out.Deleted, err
}

// SaveRows submits a grid changeset.
func (c *Client) SaveRows(ctx context.Context, cs user.Changeset) (user.SaveResult, error) {
	var out user.SaveResult
	err := c.do(ctx, http.MethodPost, "/users/rows", cs, tokenAccess, &out)
	return out, err
}

// Login authenticates and stores the issued tokens.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/users/login", body, tokenNone, &out); err != nil {
		return Session{}, err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return out, nil
}

// Me resolves the member behind the current access token.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	var out user.User
	err := c.do(ctx, http.MethodPost, "/users/login-check-by-accessToken", nil, tokenAccess, &out)
	return out, err
}

// Refresh exchanges the refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var out struct {
		AccessToken string    `json:"accessToken"`
		User        user.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/login-check-by-refreshToken", nil, tokenRefresh, &out); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	hook := c.onRefresh
	c.mu.Unlock()
	if hook != nil {
		hook(out.AccessToken)
	}
	return out.AccessToken, nil
}

// Logout revokes the refresh session and forgets the tokens.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/users/logout", nil, tokenRefresh, nil); err != nil {
		return err
	}
	c.SetTokens("", "")
	return nil
}

type tokenKind int

const (
	tokenNone tokenKind = iota
	tokenAccess
	tokenRefresh
)

func (c *Client) do(ctx context.Context, method, path string, body interface{}, kind tokenKind, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, payload, kind)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && kind == tokenAccess && c.canRefresh() {
		drain(resp)
		if _, err := c.Refresh(ctx); err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload, kind)
		if err != nil {
			return err
		}
	}

	return decodeResponse(resp, out)
}

func (c *Client) canRefresh() bool {
	_, refresh := c.Tokens()
	return refresh != ""
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, kind tokenKind) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	access, refresh := c.Tokens()
	switch kind {
	case tokenAccess:
		if access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	case tokenRefresh:
		if refresh == "" {
			return nil, fmt.Errorf("no refresh token; login first")
		}
		req.Header.Set("Authorization", "Bearer "+refresh)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// decodeResponse decodes a JSON response into the target, or converts an
// error response into *APIError.
func decodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _, err := httputil.ReadAllWithLimit(resp.Body, maxErrorBody)
		if err != nil {
			return fmt.Errorf("read error response body: %w", err)
		}
		return parseAPIError(resp.StatusCode, body)
	}

	if target == nil {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody)); err != nil {
			return fmt.Errorf("discard response body: %w", err)
		}
		return nil
	}

	body, err := httputil.ReadAllStrict(resp.Body, maxResponseBody)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
