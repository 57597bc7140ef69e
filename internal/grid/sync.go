package grid

import (
	"context"

	"github.com/R3E-Network/user_board/internal/app/domain/user"
)

// Changes returns the pending changeset: new rows, edited cells of persisted
// rows, and ids queued for deletion.
func (g *Grid) Changes() user.Changeset {
	g.mu.Lock()
	defer g.mu.Unlock()
	cs, _ := g.changesLocked()
	return cs
}

// sentRow records the state of a row when its changes were taken.
type sentRow struct {
	version int
	user    user.User
}

func (g *Grid) changesLocked() (user.Changeset, map[string]sentRow) {
	var cs user.Changeset
	sent := make(map[string]sentRow)
	for _, r := range g.rows {
		switch {
		case r.isNew:
			cs.Created = append(cs.Created, newRow(r))
			sent[r.key] = sentRow{version: r.version, user: r.user}
		case len(r.dirty) > 0:
			cs.Updated = append(cs.Updated, user.RowPatch{ID: r.user.ID, Patch: patchFor(r)})
			sent[r.key] = sentRow{version: r.version, user: r.user}
		}
	}
	cs.Deleted = append([]int64(nil), g.deleted...)
	return cs, sent
}

func newRow(r *row) user.NewRow {
	u := r.user
	front, back := u.FrontEndLevel, u.BackEndLevel
	return user.NewRow{
		Key: r.key,
		RegisterInput: user.RegisterInput{
			Email:         u.Email,
			Nickname:      u.Nickname,
			Role:          u.Role,
			Gender:        u.Gender,
			PhoneNumber:   u.PhoneNumber,
			FrontEndLevel: &front,
			BackEndLevel:  &back,
		},
	}
}

func patchFor(r *row) user.Patch {
	u := r.user
	var p user.Patch
	for col := range r.dirty {
		switch col {
		case user.ColumnEmail:
			v := u.Email
			p.Email = &v
		case user.ColumnNickname:
			v := u.Nickname
			p.Nickname = &v
		case user.ColumnRole:
			v := u.Role
			p.Role = &v
		case user.ColumnGender:
			v := u.Gender
			p.Gender = &v
		case user.ColumnPhoneNumber:
			v := u.PhoneNumber
			p.PhoneNumber = &v
		case user.ColumnFrontEndLevel:
			v := u.FrontEndLevel
			p.FrontEndLevel = &v
		case user.ColumnBackEndLevel:
			v := u.BackEndLevel
			p.BackEndLevel = &v
		}
	}
	return p
}

// SyncReport summarises a Sync.
type SyncReport struct {
	Created int
	Updated int
	Deleted int64
	Failed  int
	// DeleteError is set when the server could not delete the pending rows.
	// Their ids stay queued for the next Sync.
	DeleteError string
	// Keys maps the temporary key of each created row to its new row key.
	Keys map[string]string
}

// Sync pushes the pending changeset to the remote and applies the per-row
// results. Saved rows take the server values and new rows get their id as
// key. Failed rows stay dirty with the error recorded. Rows edited again
// while the save was in flight keep their newer edits.
func (g *Grid) Sync(ctx context.Context, remote Remote) (SyncReport, error) {
	g.mu.Lock()
	cs, sent := g.changesLocked()
	g.mu.Unlock()

	report := SyncReport{Keys: make(map[string]string)}
	if cs.Empty() {
		return report, nil
	}

	res, err := remote.SaveRows(ctx, cs)
	if err != nil {
		return report, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, rr := range res.Results {
		key := rr.Key
		if rr.Op == user.OpUpdate && key == "" {
			key = KeyFor(rr.ID)
		}
		r, ok := g.index[key]
		if !ok {
			continue
		}
		if !rr.OK() {
			r.err = rr.Error
			report.Failed++
			continue
		}

		r.err = ""
		snap, tracked := sent[key]
		if !tracked {
			continue
		}
		switch rr.Op {
		case user.OpCreate:
			report.Created++
			g.promoteLocked(r, rr)
			report.Keys[key] = r.key
		case user.OpUpdate:
			report.Updated++
		}
		saved := r.user
		if rr.User != nil {
			saved = *rr.User
		}
		acceptSaved(r, saved, snap)
	}

	if res.DeleteError != "" {
		report.DeleteError = res.DeleteError
	} else {
		g.clearDeletedLocked(cs.Deleted)
	}
	report.Deleted = res.Deleted
	g.totalCount += report.Created - int(res.Deleted)
	if g.totalCount < 0 {
		g.totalCount = 0
	}
	return report, nil
}

// promoteLocked turns a saved new row into a persisted row keyed by its id.
func (g *Grid) promoteLocked(r *row, rr user.RowResult) {
	id := rr.ID
	if rr.User != nil {
		id = rr.User.ID
	}
	oldKey := r.key
	r.key = KeyFor(id)
	r.user.ID = id
	r.isNew = false
	r.tempPass = rr.TemporaryPassword
	delete(g.index, oldKey)
	g.index[r.key] = r
	if g.selected[oldKey] {
		delete(g.selected, oldKey)
		g.selected[r.key] = true
	}
	if g.lastClicked == oldKey {
		g.lastClicked = r.key
	}
}

// acceptSaved replaces the row with the server values. Cells edited again
// after the changes were taken stay dirty on top of the saved row.
func acceptSaved(r *row, saved user.User, snap sentRow) {
	if snap.version == r.version {
		r.user = saved
		r.dirty = make(map[string]bool)
		r.original = nil
		return
	}
	edited := r.user
	r.user = saved
	dirty := make(map[string]bool)
	for _, col := range editableColumns {
		if !columnEqual(edited, snap.user, col) {
			copyColumn(&r.user, edited, col)
			dirty[col] = true
		}
	}
	r.dirty = dirty
	r.original = nil
	if len(dirty) > 0 {
		orig := saved
		r.original = &orig
	}
}

func (g *Grid) clearDeletedLocked(sent []int64) {
	if len(sent) == 0 {
		return
	}
	done := make(map[int64]bool, len(sent))
	for _, id := range sent {
		done[id] = true
	}
	kept := g.deleted[:0]
	for _, id := range g.deleted {
		if !done[id] {
			kept = append(kept, id)
		}
	}
	g.deleted = kept
}
