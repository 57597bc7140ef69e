package grid

import (
	"fmt"
	"sort"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
)

// SetSortColumns replaces the sort columns. The first column has the highest
// priority.
func (g *Grid) SetSortColumns(cols []user.SortColumn) error {
	next := make([]user.SortColumn, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, sc := range cols {
		if !user.IsSortable(sc.ColumnKey) {
			return fmt.Errorf("%w: %q", ErrUnsupportedSortKey, sc.ColumnKey)
		}
		if seen[sc.ColumnKey] {
			continue
		}
		seen[sc.ColumnKey] = true
		switch sc.Direction {
		case user.Asc, user.Desc:
		case "":
			sc.Direction = user.Asc
		default:
			return fmt.Errorf("grid: unsupported sort direction %q", sc.Direction)
		}
		next = append(next, sc)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sort = next
	return nil
}

// SortColumns returns the current sort columns.
func (g *Grid) SortColumns() []user.SortColumn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]user.SortColumn(nil), g.sort...)
}

// ToggleSort behaves like clicking a column header. An unsorted column
// becomes ASC, ASC becomes DESC and DESC removes the column. Without multi
// the clicked column replaces all others; with multi the other columns keep
// their place and priority.
func (g *Grid) ToggleSort(column string, multi bool) error {
	if !user.IsSortable(column) {
		return fmt.Errorf("%w: %q", ErrUnsupportedSortKey, column)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	idx := -1
	for i, sc := range g.sort {
		if sc.ColumnKey == column {
			idx = i
			break
		}
	}

	if idx == -1 {
		next := user.SortColumn{ColumnKey: column, Direction: user.Asc}
		if multi {
			g.sort = append(g.sort, next)
		} else {
			g.sort = []user.SortColumn{next}
		}
		return nil
	}

	var next *user.SortColumn
	if g.sort[idx].Direction == user.Asc {
		next = &user.SortColumn{ColumnKey: column, Direction: user.Desc}
	}

	if !multi {
		if next == nil {
			g.sort = nil
		} else {
			g.sort = []user.SortColumn{*next}
		}
		return nil
	}

	cols := append([]user.SortColumn(nil), g.sort...)
	if next != nil {
		cols[idx] = *next
	} else {
		cols = append(cols[:idx], cols[idx+1:]...)
	}
	g.sort = cols
	return nil
}

// SortPriority returns the 1-based priority and direction of a sorted
// column, or 0 when the column is not sorted.
func (g *Grid) SortPriority(column string) (int, user.Direction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, sc := range g.sort {
		if sc.ColumnKey == column {
			return i + 1, sc.Direction
		}
	}
	return 0, ""
}

// Rows returns the rows in display order: stably sorted by each sort column
// in priority order, or in load order when no sort is set.
func (g *Grid) Rows() []Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	view := g.sortedLocked()
	out := make([]Row, 0, len(view))
	for _, r := range view {
		out = append(out, r.snapshot())
	}
	return out
}

func (g *Grid) sortedLocked() []*row {
	view := append([]*row(nil), g.rows...)
	if len(g.sort) == 0 {
		return view
	}
	sort.SliceStable(view, func(i, j int) bool {
		for _, sc := range g.sort {
			c := g.compare(view[i].user, view[j].user, sc.ColumnKey)
			if c == 0 {
				continue
			}
			if sc.Direction == user.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return view
}

// compare orders string columns with locale-aware collation and numeric
// columns numerically. Sort keys are validated on entry.
func (g *Grid) compare(a, b user.User, column string) int {
	switch column {
	case user.ColumnEmail:
		return g.collator.CompareString(a.Email, b.Email)
	case user.ColumnNickname:
		return g.collator.CompareString(a.Nickname, b.Nickname)
	case user.ColumnRole:
		return g.collator.CompareString(string(a.Role), string(b.Role))
	case user.ColumnGender:
		return g.collator.CompareString(string(a.Gender), string(b.Gender))
	case user.ColumnPhoneNumber:
		return g.collator.CompareString(a.PhoneNumber, b.PhoneNumber)
	default:
		c, _ := user.CompareColumn(a, b, column)
		return c
	}
}
