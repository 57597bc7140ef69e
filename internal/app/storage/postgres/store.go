package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/app/storage"
)

// uniqueViolation is the SQLSTATE raised for unique constraint conflicts.
const uniqueViolation = "23505"

const userColumns = `id, email, password, nickname, role, gender, phone_number,
	front_end_level, back_end_level, created_at, updated_at`

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (email, password, nickname, role, gender, phone_number,
			front_end_level, back_end_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, u.Email, u.Password, u.Nickname, u.Role, u.Gender, nullable(u.PhoneNumber),
		u.FrontEndLevel, u.BackEndLevel, u.CreatedAt, u.UpdatedAt)
	if err := row.Scan(&u.ID); err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	if u.Password == "" {
		u.Password = existing.Password
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, password = $3, nickname = $4, role = $5, gender = $6,
			phone_number = $7, front_end_level = $8, back_end_level = $9, updated_at = $10
		WHERE id = $1
	`, u.ID, u.Email, u.Password, u.Nickname, u.Role, u.Gender, nullable(u.PhoneNumber),
		u.FrontEndLevel, u.BackEndLevel, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var r userRow
	err := s.db.GetContext(ctx, &r, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return r.toUser(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var r userRow
	err := s.db.GetContext(ctx, &r, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	if err != nil {
		return user.User{}, mapError(err)
	}
	return r.toUser(), nil
}

func (s *Store) ListUsers(ctx context.Context, q user.Query) (user.Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return user.Page{}, err
	}
	orderBy, err := orderClause(q.Sort)
	if err != nil {
		return user.Page{}, err
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return user.Page{}, err
	}

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY `+orderBy+` LIMIT $1 OFFSET $2`,
		q.PerPage, q.Offset()); err != nil {
		return user.Page{}, err
	}

	page := user.Page{Users: make([]user.User, 0, len(rows)), TotalCount: total, PerPage: q.PerPage, PageNum: q.PageNum}
	for _, r := range rows {
		page.Users = append(page.Users, r.toUser())
	}
	return page, nil
}

func (s *Store) DeleteUsers(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// userRow mirrors the users table; phone_number is nullable.
type userRow struct {
	ID            int64          `db:"id"`
	Email         string         `db:"email"`
	Password      string         `db:"password"`
	Nickname      string         `db:"nickname"`
	Role          string         `db:"role"`
	Gender        string         `db:"gender"`
	PhoneNumber   sql.NullString `db:"phone_number"`
	FrontEndLevel int            `db:"front_end_level"`
	BackEndLevel  int            `db:"back_end_level"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:            r.ID,
		Email:         r.Email,
		Password:      r.Password,
		Nickname:      r.Nickname,
		Role:          user.Role(r.Role),
		Gender:        user.Gender(r.Gender),
		PhoneNumber:   r.PhoneNumber.String,
		FrontEndLevel: r.FrontEndLevel,
		BackEndLevel:  r.BackEndLevel,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func orderClause(cols []user.SortColumn) (string, error) {
	parts := make([]string, 0, len(cols)+1)
	for _, sc := range cols {
		col, ok := user.StorageColumn(sc.ColumnKey)
		if !ok {
			return "", fmt.Errorf("unsupported sortColumn: %q", sc.ColumnKey)
		}
		dir := "ASC"
		if sc.Direction == user.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
		// id is unique, so nothing after it can change the order.
		if col == "id" {
			return strings.Join(parts, ", "), nil
		}
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", "), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, pqErr.Constraint)
	}
	return err
}
