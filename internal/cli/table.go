package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/grid"
)

// Columns lists the grid columns in display order.
var Columns = []string{
	user.ColumnID,
	user.ColumnEmail,
	user.ColumnNickname,
	user.ColumnRole,
	user.ColumnGender,
	user.ColumnPhoneNumber,
	user.ColumnFrontEndLevel,
	user.ColumnBackEndLevel,
}

// View is the part of a grid the table needs.
type View interface {
	Rows() []grid.Row
	IsSelected(key string) bool
	SortPriority(column string) (int, user.Direction)
	Page() grid.PageInfo
}

// Header returns the column header with its sort arrow and priority, for
// example "email ▲1".
func Header(column string, priority int, dir user.Direction) string {
	if priority == 0 {
		return column
	}
	arrow := "▲"
	if dir == user.Desc {
		arrow = "▼"
	}
	return column + " " + arrow + strconv.Itoa(priority)
}

// rowState returns the status marker of a row: "+" for new rows, "*" for
// edited rows and "!" for rows whose last save failed.
func rowState(r grid.Row) string {
	switch {
	case r.Error != "":
		return "!"
	case r.New:
		return "+"
	case len(r.Dirty) > 0:
		return "*"
	default:
		return ""
	}
}

var _ View = (*grid.Grid)(nil)

// RenderGrid writes the grid as a table followed by a paging footer.
func (p *Printer) RenderGrid(v View) error {
	w := p.w
	rows := v.Rows()

	headers := make([]string, 0, len(Columns)+3)
	headers = append(headers, "", "key")
	for _, col := range Columns {
		prio, dir := v.SortPriority(col)
		headers = append(headers, Header(col, prio, dir))
	}
	headers = append(headers, "state")

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, 0, len(headers))
		mark := " "
		if v.IsSelected(r.Key) {
			mark = "x"
		}
		line = append(line, mark, r.Key)
		for _, col := range Columns {
			line = append(line, r.Cell(col))
		}
		line = append(line, rowState(r))
		data = append(data, line)
	}

	base := p.renderer.NewStyle().Padding(0, 1)
	header := base.Bold(p.colorize)
	dirty := base.Foreground(colorYellow)
	failed := base.Foreground(colorRed)
	stateCol := len(headers) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.renderer.NewStyle()).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if !p.colorize || row < 0 || row >= len(rows) {
				return base
			}
			r := rows[row]
			switch {
			case r.Error != "":
				return failed
			case col == stateCol && r.IsDirty():
				return dirty
			case col >= 2 && col < stateCol && isDirtyColumn(r, Columns[col-2]):
				return dirty
			}
			return base
		})

	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}

	info := v.Page()
	if _, err := fmt.Fprintf(w, "page %d/%d, %d users\n", info.PageNum, info.PageCount, info.TotalCount); err != nil {
		return err
	}
	for _, r := range rows {
		if r.Error != "" {
			if _, err := fmt.Fprintf(w, "! %s: %s\n", r.Key, r.Error); err != nil {
				return err
			}
		}
		if r.TemporaryPassword != "" {
			if _, err := fmt.Fprintf(w, "  %s temporary password: %s\n", r.Key, r.TemporaryPassword); err != nil {
				return err
			}
		}
	}
	return nil
}

func isDirtyColumn(r grid.Row, column string) bool {
	for _, c := range r.Dirty {
		if c == column {
			return true
		}
	}
	return false
}
