package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/app/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, users ...user.User) []user.User {
	t.Helper()
	out := make([]user.User, 0, len(users))
	for _, u := range users {
		created, err := s.CreateUser(context.Background(), u)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func TestCreateAssignsIDsAndRejectsDuplicateEmail(t *testing.T) {
	s := New()
	created := seed(t, s,
		user.User{Email: "a@example.com", Nickname: "a"},
		user.User{Email: "b@example.com", Nickname: "b"},
	)
	assert.Equal(t, int64(1), created[0].ID)
	assert.Equal(t, int64(2), created[1].ID)
	assert.False(t, created[0].CreatedAt.IsZero())

	_, err := s.CreateUser(context.Background(), user.User{Email: "A@example.com", Nickname: "other"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestUpdateKeepsPasswordAndEmailIndex(t *testing.T) {
	ctx := context.Background()
	s := New()
	created := seed(t, s,
		user.User{Email: "a@example.com", Nickname: "a", Password: "hash"},
		user.User{Email: "b@example.com", Nickname: "b"},
	)

	u := created[0]
	u.Password = ""
	u.Email = "renamed@example.com"
	updated, err := s.UpdateUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "hash", updated.Password)

	_, err = s.GetUserByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	got, err := s.GetUserByEmail(ctx, "renamed@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	u.Email = "b@example.com"
	_, err = s.UpdateUser(ctx, u)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	_, err = s.UpdateUser(ctx, user.User{ID: 99, Email: "x@example.com"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListUsersPagesAndSorts(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 25; i++ {
		seed(t, s, user.User{
			Email:        fmt.Sprintf("user%02d@example.com", i),
			Nickname:     fmt.Sprintf("n%02d", i),
			BackEndLevel: i % 3,
		})
	}

	page, err := s.ListUsers(ctx, user.Query{PageNum: 3, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, 10, page.PerPage)
	require.Len(t, page.Users, 5)
	assert.Equal(t, int64(21), page.Users[0].ID)

	page, err = s.ListUsers(ctx, user.Query{PageNum: 1, PerPage: 5, Sort: []user.SortColumn{
		{ColumnKey: user.ColumnBackEndLevel, Direction: user.Desc},
		{ColumnKey: user.ColumnEmail, Direction: user.Desc},
	}})
	require.NoError(t, err)
	require.Len(t, page.Users, 5)
	for _, u := range page.Users {
		assert.Equal(t, 2, u.BackEndLevel)
	}
	assert.Equal(t, "user23@example.com", page.Users[0].Email)
	assert.Equal(t, "user20@example.com", page.Users[1].Email)

	page, err = s.ListUsers(ctx, user.Query{PageNum: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Users)
	assert.NotNil(t, page.Users)

	_, err = s.ListUsers(ctx, user.Query{Sort: []user.SortColumn{{ColumnKey: "password"}}})
	assert.Error(t, err)
}

func TestDeleteUsersCountsRemovedRows(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s,
		user.User{Email: "a@example.com"},
		user.User{Email: "b@example.com"},
		user.User{Email: "c@example.com"},
	)

	n, err := s.DeleteUsers(ctx, []int64{1, 3, 42})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteUsers(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetUser(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.CreateUser(ctx, user.User{Email: "a@example.com"})
	assert.NoError(t, err)
}
