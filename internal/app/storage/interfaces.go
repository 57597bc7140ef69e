package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// UserStore persists member records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	// ListUsers returns one page ordered by q.Sort with id as the final tiebreaker.
	ListUsers(ctx context.Context, q user.Query) (user.Page, error)
	// DeleteUsers removes the given ids and reports how many rows went away.
	DeleteUsers(ctx context.Context, ids []int64) (int64, error)
}
