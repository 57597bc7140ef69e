package users

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/user_board/internal/app/auth"
	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/user_board/internal/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens, err := auth.NewManager(auth.Config{Secret: []byte("test-secret"), AccessTTL: time.Minute}, nil)
	require.NoError(t, err)
	return New(memory.New(), tokens, nil)
}

func register(t *testing.T, svc *Service, email, nickname string) user.User {
	t.Helper()
	u, err := svc.Register(context.Background(), user.RegisterInput{Email: email, Nickname: nickname, Password: "secret123"})
	require.NoError(t, err)
	return u
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func TestRegisterHashesPasswordAndRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)
	u := register(t, svc, "kim@example.com", "kim")
	assert.NotEqual(t, "secret123", u.Password)
	assert.NoError(t, auth.CheckPassword(u.Password, "secret123"))

	_, err := svc.Register(context.Background(), user.RegisterInput{Email: "kim@example.com", Nickname: "kim2", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, svcerrors.HTTPStatus(err))
}

func TestRegisterValidationCarriesFields(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Register(context.Background(), user.RegisterInput{Email: "bad", Password: "secret123", Nickname: "n"})
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeValidation, se.Code)
	fields, ok := se.Details["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "email")
}

func TestListRejectsUnknownSortColumn(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.List(context.Background(), user.Query{Sort: []user.SortColumn{{ColumnKey: "password"}}})
	assert.True(t, svcerrors.Is(err, svcerrors.CodeValidation))
}

func TestUpdateAppliesPatch(t *testing.T) {
	svc := newTestService(t)
	u := register(t, svc, "kim@example.com", "kim")

	updated, err := svc.Update(context.Background(), u.ID, user.Patch{
		PhoneNumber:  strPtr("010-1234-5678"),
		BackEndLevel: intPtr(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "010-1234-5678", updated.PhoneNumber)
	assert.Equal(t, 7, updated.BackEndLevel)
	assert.Equal(t, u.Password, updated.Password)

	_, err = svc.Update(context.Background(), 999, user.Patch{Nickname: strPtr("x")})
	assert.True(t, svcerrors.Is(err, svcerrors.CodeNotFound))

	_, err = svc.Update(context.Background(), u.ID, user.Patch{PhoneNumber: strPtr("123")})
	assert.True(t, svcerrors.Is(err, svcerrors.CodeValidation))
}

func TestDeleteRequiresIDs(t *testing.T) {
	svc := newTestService(t)
	a := register(t, svc, "a@example.com", "a")
	b := register(t, svc, "b@example.com", "b")

	_, err := svc.Delete(context.Background(), nil)
	assert.True(t, svcerrors.Is(err, svcerrors.CodeValidation))

	n, err := svc.Delete(context.Background(), []int64{a.ID, a.ID, b.ID, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSaveRowsReportsPerRowOutcome(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	existing := register(t, svc, "a@example.com", "a")
	doomed := register(t, svc, "b@example.com", "b")

	res, err := svc.SaveRows(ctx, user.Changeset{
		Created: []user.NewRow{
			{Key: "tmp-1", RegisterInput: user.RegisterInput{Email: "new@example.com", Nickname: "new"}},
			{Key: "tmp-2", RegisterInput: user.RegisterInput{Email: "", Nickname: "blank"}},
		},
		Updated: []user.RowPatch{
			{ID: existing.ID, Patch: user.Patch{Nickname: strPtr("renamed")}},
			{ID: 404, Patch: user.Patch{Nickname: strPtr("ghost")}},
		},
		Deleted: []int64{doomed.ID},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 4)
	assert.Equal(t, int64(1), res.Deleted)

	created := res.Results[0]
	assert.True(t, created.OK())
	assert.Equal(t, "tmp-1", created.Key)
	assert.NotZero(t, created.ID)
	assert.NotEmpty(t, created.TemporaryPassword)

	assert.False(t, res.Results[1].OK())
	assert.Empty(t, res.Results[1].TemporaryPassword)

	require.True(t, res.Results[2].OK())
	assert.Equal(t, "renamed", res.Results[2].User.Nickname)
	assert.False(t, res.Results[3].OK())

	login, err := svc.Login(ctx, "new@example.com", created.TemporaryPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, login.User.ID)
}

func TestLoginAndTokenChecks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "kim@example.com", "kim")

	_, err := svc.Login(ctx, "kim@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, svcerrors.HTTPStatus(err))
	_, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.Equal(t, http.StatusUnauthorized, svcerrors.HTTPStatus(err))

	res, err := svc.Login(ctx, "KIM@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)

	got, err := svc.CheckAccessToken(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = svc.CheckAccessToken(ctx, res.RefreshToken)
	assert.True(t, svcerrors.Is(err, svcerrors.CodeInvalidToken))

	refreshed, err := svc.CheckRefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	_, err = svc.CheckAccessToken(ctx, refreshed.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, res.RefreshToken))
	_, err = svc.CheckRefreshToken(ctx, res.RefreshToken)
	assert.True(t, svcerrors.Is(err, svcerrors.CodeInvalidToken))
}

func TestCheckAccessTokenForDeletedUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "kim@example.com", "kim")
	res, err := svc.Login(ctx, u.Email, "secret123")
	require.NoError(t, err)

	_, err = svc.Delete(ctx, []int64{u.ID})
	require.NoError(t, err)

	_, err = svc.CheckAccessToken(ctx, res.AccessToken)
	assert.True(t, svcerrors.Is(err, svcerrors.CodeUnauthorized))
}

type failingDeleteStore struct {
	*memory.Store
}

func (failingDeleteStore) DeleteUsers(context.Context, []int64) (int64, error) {
	return 0, errors.New("db down")
}

func TestSaveRowsReportsDeleteFailureWithRowResults(t *testing.T) {
	tokens, err := auth.NewManager(auth.Config{Secret: []byte("test-secret")}, nil)
	require.NoError(t, err)
	store := failingDeleteStore{Store: memory.New()}
	svc := New(store, tokens, nil)
	ctx := context.Background()

	res, err := svc.SaveRows(ctx, user.Changeset{
		Created: []user.NewRow{{Key: "tmp-1", RegisterInput: user.RegisterInput{Email: "lee@example.com", Nickname: "lee"}}},
		Deleted: []int64{99},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].OK())
	assert.NotZero(t, res.Results[0].ID)
	assert.NotEmpty(t, res.Results[0].TemporaryPassword)
	assert.NotEmpty(t, res.DeleteError)
	assert.Zero(t, res.Deleted)

	saved, err := store.GetUserByEmail(ctx, "lee@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.Results[0].ID, saved.ID)
}

type brokenSessions struct {
	*auth.MemorySessionStore
}

func (brokenSessions) Get(context.Context, string) (auth.Session, error) {
	return auth.Session{}, errors.New("redis: connection refused")
}

func TestSessionStoreFailureIsInternal(t *testing.T) {
	tokens, err := auth.NewManager(auth.Config{Secret: []byte("test-secret")}, brokenSessions{auth.NewMemorySessionStore()})
	require.NoError(t, err)
	svc := New(memory.New(), tokens, nil)
	ctx := context.Background()
	register(t, svc, "kim@example.com", "kim")

	res, err := svc.Login(ctx, "kim@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.CheckRefreshToken(ctx, res.RefreshToken)
	assert.Equal(t, http.StatusInternalServerError, svcerrors.HTTPStatus(err))

	_, err = svc.CheckRefreshToken(ctx, "not-a-token")
	assert.True(t, svcerrors.Is(err, svcerrors.CodeInvalidToken))

	_, err = svc.CheckRefreshToken(ctx, res.AccessToken)
	assert.True(t, svcerrors.Is(err, svcerrors.CodeInvalidToken))
}
