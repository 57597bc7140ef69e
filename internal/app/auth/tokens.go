// Package auth issues and verifies the access and refresh tokens handed to
// board members, and tracks refresh sessions so they can be revoked.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrWrongTokenType = errors.New("auth: wrong token type")
	ErrSessionRevoked = errors.New("auth: session revoked")
)

// Claims represents JWT claims
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Subject identifies the member a token was issued to.
type Subject struct {
	UserID int64
	Email  string
	Role   string
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Config configures a Manager.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager signs HS256 tokens and records refresh sessions.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	sessions   SessionStore
	now        func() time.Time
}

// NewManager returns a Manager. Zero TTLs fall back to 15 minutes for access
// tokens and 7 days for refresh tokens.
func NewManager(cfg Config, sessions SessionStore) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	m := &Manager{
		secret:     cfg.Secret,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		sessions:   sessions,
		now:        time.Now,
	}
	if m.issuer == "" {
		m.issuer = "user-board"
	}
	if m.accessTTL <= 0 {
		m.accessTTL = 15 * time.Minute
	}
	if m.refreshTTL <= 0 {
		m.refreshTTL = 7 * 24 * time.Hour
	}
	return m, nil
}

// Issue creates a new access/refresh pair and opens a refresh session.
func (m *Manager) Issue(ctx context.Context, sub Subject) (TokenPair, error) {
	access, accessExp, err := m.sign(sub, AccessToken, uuid.NewString(), m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	sessionID := uuid.NewString()
	refresh, refreshExp, err := m.sign(sub, RefreshToken, sessionID, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := m.sessions.Save(ctx, Session{ID: sessionID, UserID: sub.UserID, ExpiresAt: refreshExp}); err != nil {
		return TokenPair{}, fmt.Errorf("save session: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccess creates a fresh access token for an already authenticated subject.
func (m *Manager) IssueAccess(sub Subject) (string, time.Time, error) {
	return m.sign(sub, AccessToken, uuid.NewString(), m.accessTTL)
}

func (m *Manager) sign(sub Subject, typ TokenType, id string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID:    strconv.FormatInt(sub.UserID, 10),
		Email:     sub.Email,
		Role:      sub.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(sub.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// Parse validates the signature, expiry and type of a token.
func (m *Manager) Parse(tokenString string, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ParseRefresh validates a refresh token and checks that its session is open.
func (m *Manager) ParseRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := m.Parse(tokenString, RefreshToken)
	if err != nil {
		return nil, err
	}
	if _, err := m.sessions.Get(ctx, claims.ID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	return claims, nil
}

// Revoke closes the session behind a refresh token.
func (m *Manager) Revoke(ctx context.Context, tokenString string) error {
	claims, err := m.Parse(tokenString, RefreshToken)
	if err != nil {
		return err
	}
	return m.sessions.Delete(ctx, claims.ID)
}

// UserIDInt returns the numeric member id carried by the claims.
func (c *Claims) UserIDInt() (int64, error) {
	id, err := strconv.ParseInt(c.UserID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad user id", ErrInvalidToken)
	}
	return id, nil
}
