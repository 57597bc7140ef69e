// Package grid holds the client-side state of the user board data grid:
// the loaded page, row selection, optimistic cell edits, locally added and
// deleted rows, and multi-column sorting of the displayed rows.
//
// A Grid is safe for concurrent use.
package grid

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
)

var (
	ErrRowNotFound        = errors.New("grid: row not found")
	ErrColumnNotEditable  = errors.New("grid: column is not editable")
	ErrUnsupportedSortKey = errors.New("grid: unsupported sortColumn")
)

// Remote is the server side of the grid.
type Remote interface {
	ListUsers(ctx context.Context, q user.Query) (user.Page, error)
	SaveRows(ctx context.Context, cs user.Changeset) (user.SaveResult, error)
}

// Row is a snapshot of one grid row.
type Row struct {
	Key  string
	User user.User
	// New is set for rows added locally and not yet saved.
	New bool
	// Dirty lists edited columns not yet saved.
	Dirty []string
	// Error holds the message of the last failed save of this row.
	Error string
	// TemporaryPassword is set once a new row without a password is saved.
	TemporaryPassword string
}

// IsDirty reports whether the row has unsaved changes.
func (r Row) IsDirty() bool { return r.New || len(r.Dirty) > 0 }

type row struct {
	key      string
	user     user.User
	original *user.User
	isNew    bool
	dirty    map[string]bool
	version  int
	err      string
	tempPass string
}

func (r *row) snapshot() Row {
	out := Row{
		Key:               r.key,
		User:              r.user,
		New:               r.isNew,
		Error:             r.err,
		TemporaryPassword: r.tempPass,
	}
	for _, col := range editableColumns {
		if r.dirty[col] {
			out.Dirty = append(out.Dirty, col)
		}
	}
	return out
}

// Option configures a Grid.
type Option func(*Grid)

// WithLanguage sets the collation language for string columns.
func WithLanguage(tag language.Tag) Option {
	return func(g *Grid) { g.collator = collate.New(tag) }
}

// WithPerPage sets the page size requested by Fetch.
func WithPerPage(n int) Option {
	return func(g *Grid) {
		if n > 0 {
			g.perPage = n
		}
	}
}

// WithKeyGenerator replaces the temporary key generator for new rows.
func WithKeyGenerator(fn func() string) Option {
	return func(g *Grid) { g.newKey = fn }
}

// Grid is the grid state.
type Grid struct {
	mu sync.Mutex

	rows     []*row
	index    map[string]*row
	selected map[string]bool
	// lastClicked is the key of the row last toggled, the anchor for shift
	// range selection.
	lastClicked string
	sort        []user.SortColumn
	deleted     []int64

	pageNum    int
	perPage    int
	totalCount int

	collator *collate.Collator
	newKey   func() string
}

// New creates an empty grid.
func New(opts ...Option) *Grid {
	g := &Grid{
		index:    make(map[string]*row),
		selected: make(map[string]bool),
		pageNum:  1,
		perPage:  user.DefaultPerPage,
		collator: collate.New(language.English),
		newKey:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// KeyFor returns the row key of a persisted user.
func KeyFor(id int64) string {
	return strconv.FormatInt(id, 10)
}

// PageInfo describes the loaded page.
type PageInfo struct {
	PageNum    int
	PerPage    int
	TotalCount int
	PageCount  int
}

// Page returns paging information of the loaded page.
func (g *Grid) Page() PageInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	info := PageInfo{PageNum: g.pageNum, PerPage: g.perPage, TotalCount: g.totalCount}
	if g.perPage > 0 {
		info.PageCount = (g.totalCount + g.perPage - 1) / g.perPage
	}
	return info
}

// Load replaces the persisted rows with a server page. Unsaved edits of rows
// still on the page are reapplied over the fresh values, unsaved new rows are
// kept, and rows pending deletion stay hidden. Selection and edits of rows no
// longer present are dropped.
func (g *Grid) Load(page user.Page) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pendingDelete := make(map[int64]bool, len(g.deleted))
	for _, id := range g.deleted {
		pendingDelete[id] = true
	}

	rows := make([]*row, 0, len(page.Users)+len(g.rows))
	index := make(map[string]*row, len(page.Users)+len(g.rows))
	for _, u := range page.Users {
		if pendingDelete[u.ID] {
			continue
		}
		key := KeyFor(u.ID)
		r := &row{key: key, user: u}
		if prev, ok := g.index[key]; ok && len(prev.dirty) > 0 {
			orig := u
			r.original = &orig
			r.dirty = prev.dirty
			r.version = prev.version
			for col := range prev.dirty {
				copyColumn(&r.user, prev.user, col)
			}
		}
		rows = append(rows, r)
		index[key] = r
	}
	for _, r := range g.rows {
		if r.isNew {
			rows = append(rows, r)
			index[r.key] = r
		}
	}

	g.rows = rows
	g.index = index
	for key := range g.selected {
		if _, ok := index[key]; !ok {
			delete(g.selected, key)
		}
	}
	if _, ok := index[g.lastClicked]; !ok {
		g.lastClicked = ""
	}
	if page.PageNum > 0 {
		g.pageNum = page.PageNum
	}
	if page.PerPage > 0 {
		g.perPage = page.PerPage
	}
	g.totalCount = page.TotalCount
}

// Fetch loads page pageNum from the remote. A pageNum below 1 reloads the
// current page.
func (g *Grid) Fetch(ctx context.Context, remote Remote, pageNum int) error {
	g.mu.Lock()
	if pageNum < 1 {
		pageNum = g.pageNum
	}
	q := user.Query{PageNum: pageNum, PerPage: g.perPage}
	g.mu.Unlock()

	page, err := remote.ListUsers(ctx, q)
	if err != nil {
		return err
	}
	if page.PageNum == 0 {
		page.PageNum = pageNum
	}
	g.Load(page)
	return nil
}

// Row returns one row by key.
func (g *Grid) Row(key string) (Row, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.index[key]
	if !ok {
		return Row{}, false
	}
	return r.snapshot(), true
}

// Len returns the number of rows on the grid.
func (g *Grid) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows)
}

// AddRow appends a blank row with a temporary key and returns the key.
func (g *Grid) AddRow() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := g.newKey()
	r := &row{
		key:   key,
		isNew: true,
		user:  user.User{FrontEndLevel: 1, BackEndLevel: 1},
		dirty: make(map[string]bool),
	}
	g.rows = append(g.rows, r)
	g.index[key] = r
	return key
}

// DeleteSelected removes the selected rows. Persisted rows are queued for
// deletion on the next Sync. It returns the number of rows removed.
func (g *Grid) DeleteSelected() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.selected) == 0 {
		return 0
	}
	kept := g.rows[:0]
	removed := 0
	for _, r := range g.rows {
		if !g.selected[r.key] {
			kept = append(kept, r)
			continue
		}
		removed++
		delete(g.index, r.key)
		if !r.isNew {
			g.deleted = append(g.deleted, r.user.ID)
		}
	}
	for i := len(kept); i < len(g.rows); i++ {
		g.rows[i] = nil
	}
	g.rows = kept
	g.selected = make(map[string]bool)
	g.lastClicked = ""
	return removed
}

// PendingDeletes returns ids queued for deletion.
func (g *Grid) PendingDeletes() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.deleted...)
}
