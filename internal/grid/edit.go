package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
)

// editableColumns lists the columns EditCell accepts, in display order.
var editableColumns = []string{
	user.ColumnEmail,
	user.ColumnNickname,
	user.ColumnRole,
	user.ColumnGender,
	user.ColumnPhoneNumber,
	user.ColumnFrontEndLevel,
	user.ColumnBackEndLevel,
}

// IsEditable reports whether a column can be edited in place.
func IsEditable(column string) bool {
	for _, c := range editableColumns {
		if c == column {
			return true
		}
	}
	return false
}

// EditCell sets one cell of a row. Level columns take a number; input that
// does not parse as a number sets the level to 0.
func (g *Grid) EditCell(key, column, value string) error {
	if !IsEditable(column) {
		return fmt.Errorf("%w: %q", ErrColumnNotEditable, column)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.index[key]
	if !ok {
		return ErrRowNotFound
	}
	if !r.isNew && r.original == nil {
		orig := r.user
		r.original = &orig
	}
	if r.dirty == nil {
		r.dirty = make(map[string]bool)
	}

	setColumn(&r.user, column, value)
	r.version++
	r.err = ""

	if r.isNew {
		r.dirty[column] = true
		return nil
	}
	if columnEqual(r.user, *r.original, column) {
		delete(r.dirty, column)
	} else {
		r.dirty[column] = true
	}
	if len(r.dirty) == 0 {
		r.original = nil
	}
	return nil
}

// Revert drops the unsaved edits of a row. A new row is reset to blank.
func (g *Grid) Revert(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.index[key]
	if !ok {
		return ErrRowNotFound
	}
	if r.isNew {
		r.user = user.User{FrontEndLevel: 1, BackEndLevel: 1}
	} else if r.original != nil {
		r.user = *r.original
	}
	r.original = nil
	r.dirty = make(map[string]bool)
	r.version++
	r.err = ""
	return nil
}

// Dirty returns the number of rows with unsaved changes plus pending deletes.
func (g *Grid) Dirty() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.deleted)
	for _, r := range g.rows {
		if r.isNew || len(r.dirty) > 0 {
			n++
		}
	}
	return n
}

// Cell returns the display value of a column.
func (r Row) Cell(column string) string {
	return columnValue(r.User, column)
}

func parseLevel(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

func setColumn(u *user.User, column, value string) {
	switch column {
	case user.ColumnEmail:
		u.Email = value
	case user.ColumnNickname:
		u.Nickname = value
	case user.ColumnRole:
		u.Role = user.Role(value)
	case user.ColumnGender:
		u.Gender = user.Gender(value)
	case user.ColumnPhoneNumber:
		u.PhoneNumber = value
	case user.ColumnFrontEndLevel:
		u.FrontEndLevel = parseLevel(value)
	case user.ColumnBackEndLevel:
		u.BackEndLevel = parseLevel(value)
	}
}

func columnValue(u user.User, column string) string {
	switch column {
	case user.ColumnID:
		if u.ID == 0 {
			return ""
		}
		return strconv.FormatInt(u.ID, 10)
	case user.ColumnEmail:
		return u.Email
	case user.ColumnNickname:
		return u.Nickname
	case user.ColumnRole:
		return string(u.Role)
	case user.ColumnGender:
		return string(u.Gender)
	case user.ColumnPhoneNumber:
		return u.PhoneNumber
	case user.ColumnFrontEndLevel:
		return strconv.Itoa(u.FrontEndLevel)
	case user.ColumnBackEndLevel:
		return strconv.Itoa(u.BackEndLevel)
	}
	return ""
}

func columnEqual(a, b user.User, column string) bool {
	return columnValue(a, column) == columnValue(b, column)
}

// copyColumn copies one column value from src into dst.
func copyColumn(dst *user.User, src user.User, column string) {
	setColumn(dst, column, columnValue(src, column))
}
