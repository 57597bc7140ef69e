// Package users implements the member board operations: sign-up, paging,
// cell edits, deletion, batch grid saves and token based login.
package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/R3E-Network/user_board/internal/app/auth"
	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/app/metrics"
	"github.com/R3E-Network/user_board/internal/app/storage"
	svcerrors "github.com/R3E-Network/user_board/internal/errors"
	"github.com/R3E-Network/user_board/internal/logging"
)

// Service exposes the member board operations.
type Service struct {
	store  storage.UserStore
	tokens *auth.Manager
	log    *logging.Logger
}

// New creates a users service.
func New(store storage.UserStore, tokens *auth.Manager, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{store: store, tokens: tokens, log: log}
}

// LoginResult is returned by Login.
type LoginResult struct {
	auth.TokenPair
	User user.User `json:"user"`
}

// RefreshResult is returned by CheckRefreshToken.
type RefreshResult struct {
	User        user.User `json:"user"`
	AccessToken string    `json:"accessToken"`
}

// Register creates a member account.
func (s *Service) Register(ctx context.Context, in user.RegisterInput) (user.User, error) {
	if err := in.Validate(); err != nil {
		return user.User{}, validationError(err)
	}
	u := in.ToUser()
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return user.User{}, svcerrors.Internal("hash password", err)
	}
	u.Password = hash

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return user.User{}, storeError(err, "user", u.Email)
	}
	s.log.WithContext(ctx).WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// List returns one page of members.
func (s *Service) List(ctx context.Context, q user.Query) (user.Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return user.Page{}, svcerrors.Validation(err.Error())
	}
	page, err := s.store.ListUsers(ctx, q)
	if err != nil {
		return user.Page{}, svcerrors.Internal("list users", err)
	}
	return page, nil
}

// Get returns one member.
func (s *Service) Get(ctx context.Context, id int64) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, storeError(err, "user", id)
	}
	return u, nil
}

// Update applies edited cells to a member.
func (s *Service) Update(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	if err := p.Validate(); err != nil {
		return user.User{}, validationError(err)
	}
	current, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, storeError(err, "user", id)
	}
	if p.Empty() {
		return current, nil
	}
	p.Apply(&current)
	updated, err := s.store.UpdateUser(ctx, current)
	if err != nil {
		return user.User{}, storeError(err, "user", id)
	}
	return updated, nil
}

// Delete removes the checked members and reports how many were removed.
func (s *Service) Delete(ctx context.Context, ids []int64) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, svcerrors.Validation("checkedIds must not be empty")
	}
	n, err := s.store.DeleteUsers(ctx, ids)
	if err != nil {
		return 0, svcerrors.Internal("delete users", err)
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"requested": len(ids),
		"deleted":   n,
	}).Info("users deleted")
	return n, nil
}

// SaveRows applies a grid changeset. Every created and updated row gets its
// own result; a failing row does not stop the others.
func (s *Service) SaveRows(ctx context.Context, cs user.Changeset) (user.SaveResult, error) {
	if cs.Empty() {
		return user.SaveResult{Results: []user.RowResult{}}, nil
	}
	res := user.SaveResult{Results: make([]user.RowResult, 0, len(cs.Created)+len(cs.Updated))}

	for _, row := range cs.Created {
		rr := user.RowResult{Key: row.Key, Op: user.OpCreate}
		in := row.RegisterInput
		if in.Password == "" {
			tmp, err := temporaryPassword()
			if err != nil {
				return user.SaveResult{}, svcerrors.Internal("generate password", err)
			}
			in.Password = tmp
			rr.TemporaryPassword = tmp
		}
		created, err := s.Register(ctx, in)
		if err != nil {
			rr.TemporaryPassword = ""
			rr.Error = errorMessage(err)
		} else {
			rr.ID = created.ID
			rr.User = &created
		}
		res.Results = append(res.Results, rr)
	}

	for _, row := range cs.Updated {
		rr := user.RowResult{Key: strconv.FormatInt(row.ID, 10), ID: row.ID, Op: user.OpUpdate}
		updated, err := s.Update(ctx, row.ID, row.Patch)
		if err != nil {
			rr.Error = errorMessage(err)
		} else {
			rr.User = &updated
		}
		res.Results = append(res.Results, rr)
	}

	if ids := uniqueIDs(cs.Deleted); len(ids) > 0 {
		n, err := s.store.DeleteUsers(ctx, ids)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("ids", len(ids)).Error("grid delete failed")
			res.DeleteError = "delete users failed"
		} else {
			res.Deleted = n
		}
	}

	failed := 0
	for _, rr := range res.Results {
		if !rr.OK() {
			failed++
		}
	}
	metrics.RecordGridSave(len(res.Results)-failed, failed, int(res.Deleted))
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"created": len(cs.Created),
		"updated": len(cs.Updated),
		"deleted": res.Deleted,
		"failed":  failed,
	}).Info("grid changeset applied")
	return res, nil
}

// Login checks credentials and issues a token pair. Unknown emails and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, svcerrors.Validation("email and password are required")
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.RecordLogin(false)
			return LoginResult{}, svcerrors.Unauthorized("invalid email or password")
		}
		return LoginResult{}, svcerrors.Internal("load user", err)
	}
	if err := auth.CheckPassword(u.Password, password); err != nil {
		metrics.RecordLogin(false)
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"user_id": u.ID})
		return LoginResult{}, svcerrors.Unauthorized("invalid email or password")
	}

	pair, err := s.tokens.Issue(ctx, subjectOf(u))
	if err != nil {
		return LoginResult{}, svcerrors.Internal("issue tokens", err)
	}
	metrics.RecordLogin(true)
	s.log.WithContext(ctx).WithField("user_id", u.ID).Info("user logged in")
	return LoginResult{TokenPair: pair, User: u}, nil
}

// CheckAccessToken resolves the member behind an access token.
func (s *Service) CheckAccessToken(ctx context.Context, token string) (user.User, error) {
	claims, err := s.tokens.Parse(token, auth.AccessToken)
	if err != nil {
		return user.User{}, tokenError(err)
	}
	return s.userFromClaims(ctx, claims)
}

// CheckRefreshToken resolves the member behind a refresh token and issues a
// new access token.
func (s *Service) CheckRefreshToken(ctx context.Context, token string) (RefreshResult, error) {
	claims, err := s.tokens.ParseRefresh(ctx, token)
	if err != nil {
		return RefreshResult{}, tokenError(err)
	}
	u, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return RefreshResult{}, err
	}
	access, _, err := s.tokens.IssueAccess(subjectOf(u))
	if err != nil {
		return RefreshResult{}, svcerrors.Internal("issue access token", err)
	}
	return RefreshResult{User: u, AccessToken: access}, nil
}

// Logout revokes the session behind a refresh token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return tokenError(err)
	}
	return nil
}

// tokenError maps rejected tokens to 401. Session store failures are server
// faults and must not look like a logout to the client.
func tokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrSessionRevoked),
		errors.Is(err, auth.ErrSessionNotFound):
		return svcerrors.InvalidToken(err)
	default:
		return svcerrors.Internal("check session", err)
	}
}

func (s *Service) userFromClaims(ctx context.Context, claims *auth.Claims) (user.User, error) {
	id, err := claims.UserIDInt()
	if err != nil {
		return user.User{}, svcerrors.InvalidToken(err)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerrors.Unauthorized("user no longer exists")
		}
		return user.User{}, svcerrors.Internal("load user", err)
	}
	return u, nil
}

func subjectOf(u user.User) auth.Subject {
	return auth.Subject{UserID: u.ID, Email: u.Email, Role: string(u.Role)}
}

func validationError(err error) error {
	var verr *user.ValidationError
	if errors.As(err, &verr) {
		se := svcerrors.Validation(verr.Error())
		fields := make(map[string]interface{}, len(verr.Fields))
		for k, v := range verr.Fields {
			fields[k] = v
		}
		return se.WithDetails("fields", fields)
	}
	return svcerrors.Validation(err.Error())
}

func storeError(err error, resource string, id interface{}) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return svcerrors.NotFound(resource, id)
	case errors.Is(err, storage.ErrDuplicate):
		return svcerrors.Conflict("email and nickname must be unique", err)
	default:
		return svcerrors.Internal(fmt.Sprintf("%s storage failure", resource), err)
	}
}

func errorMessage(err error) string {
	if se := svcerrors.GetServiceError(err); se != nil {
		return se.Message
	}
	return err.Error()
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func temporaryPassword() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
