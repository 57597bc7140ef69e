package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]user.User
	byEmail map[string]int64
}

var _ storage.UserStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:  1,
		users:   make(map[int64]user.User),
		byEmail: make(map[string]int64),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[emailKey(u.Email)]; exists {
		return user.User{}, storage.ErrDuplicate
	}

	u.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.byEmail[emailKey(u.Email)] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	if owner, taken := s.byEmail[emailKey(u.Email)]; taken && owner != u.ID {
		return user.User{}, storage.ErrDuplicate
	}

	if u.Password == "" {
		u.Password = original.Password
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	delete(s.byEmail, emailKey(original.Email))
	s.users[u.ID] = u
	s.byEmail[emailKey(u.Email)] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context, q user.Query) (user.Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return user.Page{}, err
	}

	s.mu.RLock()
	all := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	s.mu.RUnlock()

	// Sort columns were validated by Normalize, so CompareColumn cannot fail.
	sort.SliceStable(all, func(i, j int) bool {
		for _, sc := range q.Sort {
			c, _ := user.CompareColumn(all[i], all[j], sc.ColumnKey)
			if c == 0 {
				continue
			}
			if sc.Direction == user.Desc {
				return c > 0
			}
			return c < 0
		}
		return all[i].ID < all[j].ID
	})

	page := user.Page{TotalCount: len(all), PerPage: q.PerPage, PageNum: q.PageNum, Users: []user.User{}}
	start := q.Offset()
	if start >= len(all) {
		return page, nil
	}
	end := start + q.PerPage
	if end > len(all) {
		end = len(all)
	}
	page.Users = append(page.Users, all[start:end]...)
	return page, nil
}

func (s *Store) DeleteUsers(_ context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, id := range ids {
		u, ok := s.users[id]
		if !ok {
			continue
		}
		delete(s.users, id)
		delete(s.byEmail, emailKey(u.Email))
		removed++
	}
	return removed, nil
}
