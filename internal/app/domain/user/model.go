package user

import (
	"fmt"
	"strings"
	"time"
)

// Role is the development role a member works in.
type Role string

const (
	RoleFrontend  Role = "frontend"
	RoleBackend   Role = "backend"
	RoleFullstack Role = "fullstack"
	RoleDesigner  Role = "designer"
	RoleAdmin     Role = "admin"
)

// Roles lists every accepted role.
var Roles = []Role{RoleFrontend, RoleBackend, RoleFullstack, RoleDesigner, RoleAdmin}

// Gender of a member.
type Gender string

const (
	GenderMan   Gender = "man"
	GenderWoman Gender = "woman"
)

// Genders lists every accepted gender.
var Genders = []Gender{GenderMan, GenderWoman}

const (
	DefaultLevel = 1
	MinLevel     = 0
	MaxLevel     = 10
)

// User is a member record shown on the board.
type User struct {
	ID            int64     `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	Password      string    `json:"-" db:"password"`
	Nickname      string    `json:"nickname" db:"nickname"`
	Role          Role      `json:"role" db:"role"`
	Gender        Gender    `json:"gender" db:"gender"`
	PhoneNumber   string    `json:"phoneNumber" db:"phone_number"`
	FrontEndLevel int       `json:"frontEndLevel" db:"front_end_level"`
	BackEndLevel  int       `json:"backEndLevel" db:"back_end_level"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// ApplyDefaults fills the role, gender and level columns that were left empty.
func (u *User) ApplyDefaults() {
	if u.Role == "" {
		u.Role = RoleFrontend
	}
	if u.Gender == "" {
		u.Gender = GenderMan
	}
	u.Email = strings.TrimSpace(u.Email)
	u.Nickname = strings.TrimSpace(u.Nickname)
	u.PhoneNumber = strings.TrimSpace(u.PhoneNumber)
}

// Page is one page of the user list.
type Page struct {
	Users      []User `json:"users"`
	TotalCount int    `json:"totalCount"`
	PerPage    int    `json:"perPage"`
	PageNum    int    `json:"pageNum"`
}

// Direction of a sort column.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// SortColumn orders the list by one column.
type SortColumn struct {
	ColumnKey string    `json:"columnKey"`
	Direction Direction `json:"direction"`
}

// Query selects one page of the user list.
type Query struct {
	PageNum int
	PerPage int
	Sort    []SortColumn
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Normalize clamps paging values and validates sort columns.
func (q Query) Normalize() (Query, error) {
	if q.PageNum < 1 {
		q.PageNum = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	seen := make(map[string]bool, len(q.Sort))
	sorts := make([]SortColumn, 0, len(q.Sort))
	for _, sc := range q.Sort {
		if !IsSortable(sc.ColumnKey) {
			return q, fmt.Errorf("unsupported sortColumn: %q", sc.ColumnKey)
		}
		if seen[sc.ColumnKey] {
			continue
		}
		seen[sc.ColumnKey] = true
		switch Direction(strings.ToUpper(string(sc.Direction))) {
		case Asc, "":
			sc.Direction = Asc
		case Desc:
			sc.Direction = Desc
		default:
			return q, fmt.Errorf("unsupported sort direction: %q", sc.Direction)
		}
		sorts = append(sorts, sc)
	}
	q.Sort = sorts
	return q, nil
}

// Offset returns the row offset of the page.
func (q Query) Offset() int {
	if q.PageNum < 1 {
		return 0
	}
	return (q.PageNum - 1) * q.PerPage
}

// Column keys as they appear on the wire.
const (
	ColumnID            = "id"
	ColumnEmail         = "email"
	ColumnNickname      = "nickname"
	ColumnRole          = "role"
	ColumnGender        = "gender"
	ColumnPhoneNumber   = "phoneNumber"
	ColumnFrontEndLevel = "frontEndLevel"
	ColumnBackEndLevel  = "backEndLevel"
)

// sortableColumns maps wire column keys to storage column names.
var sortableColumns = map[string]string{
	ColumnID:            "id",
	ColumnEmail:         "email",
	ColumnNickname:      "nickname",
	ColumnRole:          "role",
	ColumnGender:        "gender",
	ColumnPhoneNumber:   "phone_number",
	ColumnFrontEndLevel: "front_end_level",
	ColumnBackEndLevel:  "back_end_level",
}

// IsSortable reports whether the list can be ordered by key.
func IsSortable(key string) bool {
	_, ok := sortableColumns[key]
	return ok
}

// StorageColumn returns the storage column name for a wire column key.
func StorageColumn(key string) (string, bool) {
	col, ok := sortableColumns[key]
	return col, ok
}

// ParseSort parses "email:asc,nickname:desc" into sort columns.
func ParseSort(raw string) ([]SortColumn, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []SortColumn
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, dir, _ := strings.Cut(part, ":")
		sc := SortColumn{ColumnKey: strings.TrimSpace(key), Direction: Direction(strings.ToUpper(strings.TrimSpace(dir)))}
		if !IsSortable(sc.ColumnKey) {
			return nil, fmt.Errorf("unsupported sortColumn: %q", sc.ColumnKey)
		}
		if sc.Direction == "" {
			sc.Direction = Asc
		}
		if sc.Direction != Asc && sc.Direction != Desc {
			return nil, fmt.Errorf("unsupported sort direction: %q", dir)
		}
		out = append(out, sc)
	}
	return out, nil
}

// FormatSort is the inverse of ParseSort.
func FormatSort(cols []SortColumn) string {
	parts := make([]string, 0, len(cols))
	for _, sc := range cols {
		parts = append(parts, sc.ColumnKey+":"+strings.ToLower(string(sc.Direction)))
	}
	return strings.Join(parts, ",")
}

// CompareColumn orders a and b by a single column using byte-wise string
// comparison. It returns an error for columns that cannot be sorted.
func CompareColumn(a, b User, key string) (int, error) {
	switch key {
	case ColumnID:
		return cmpInt(a.ID, b.ID), nil
	case ColumnEmail:
		return strings.Compare(a.Email, b.Email), nil
	case ColumnNickname:
		return strings.Compare(a.Nickname, b.Nickname), nil
	case ColumnRole:
		return strings.Compare(string(a.Role), string(b.Role)), nil
	case ColumnGender:
		return strings.Compare(string(a.Gender), string(b.Gender)), nil
	case ColumnPhoneNumber:
		return strings.Compare(a.PhoneNumber, b.PhoneNumber), nil
	case ColumnFrontEndLevel:
		return cmpInt(int64(a.FrontEndLevel), int64(b.FrontEndLevel)), nil
	case ColumnBackEndLevel:
		return cmpInt(int64(a.BackEndLevel), int64(b.BackEndLevel)), nil
	default:
		return 0, fmt.Errorf("unsupported sortColumn: %q", key)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
