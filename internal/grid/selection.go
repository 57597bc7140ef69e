package grid

// Select checks or unchecks one row. With shift set and checked, every row
// between the previously clicked row and this one, in display order, is
// selected as well.
func (g *Grid) Select(key string, checked, shift bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[key]; !ok {
		return ErrRowNotFound
	}

	if !checked {
		delete(g.selected, key)
		g.lastClicked = key
		return nil
	}

	g.selected[key] = true
	if shift && g.lastClicked != "" && g.lastClicked != key {
		view := g.sortedLocked()
		from, to := -1, -1
		for i, r := range view {
			switch r.key {
			case g.lastClicked:
				from = i
			case key:
				to = i
			}
		}
		if from >= 0 && to >= 0 {
			if from > to {
				from, to = to, from
			}
			for _, r := range view[from : to+1] {
				g.selected[r.key] = true
			}
		}
	}
	g.lastClicked = key
	return nil
}

// SelectAll checks or unchecks every row.
func (g *Grid) SelectAll(checked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = make(map[string]bool, len(g.rows))
	if checked {
		for _, r := range g.rows {
			g.selected[r.key] = true
		}
	}
	g.lastClicked = ""
}

// IsSelected reports whether the row is selected.
func (g *Grid) IsSelected(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selected[key]
}

// Selected returns the selected keys in display order.
func (g *Grid) Selected() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.selected))
	for _, r := range g.sortedLocked() {
		if g.selected[r.key] {
			out = append(out, r.key)
		}
	}
	return out
}
