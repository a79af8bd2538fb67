package table

import (
	"cmp"
	"slices"
)

// LastAction records whether the latest plain click added or removed a row.
// It decides what a following shift-click does to its range.
type LastAction int

const (
	NoAction LastAction = iota
	Added
	Removed
)

// ActionState describes whether the table's proceed action is available.
type ActionState int

const (
	ActionReady ActionState = iota
	ActionNoneSelected
	ActionTooMany
)

// Tooltip returns the hint shown on a disabled proceed action.
func (a ActionState) Tooltip() string {
	switch a {
	case ActionNoneSelected:
		return "No items selected"
	case ActionTooMany:
		return "Too many items selected"
	default:
		return ""
	}
}

// Selection is a set of selected row ids with an anchor for shift-click
// ranges and an advisory capacity. Exceeding the capacity never drops
// selected rows; it only disables the proceed action.
type Selection[R Row] struct {
	ids    map[string]uint64 // id -> insertion sequence
	seq    uint64
	anchor string
	last   LastAction
	limit  int
}

// NewSelection creates an empty selection with the given capacity.
func NewSelection[R Row](limit int) *Selection[R] {
	return &Selection[R]{ids: make(map[string]uint64), limit: limit}
}

func (s *Selection[R]) add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.seq++
	s.ids[id] = s.seq
	return true
}

func (s *Selection[R]) remove(id string) bool {
	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	return true
}

// Toggle handles a click on row. A plain click flips row's membership and
// makes it the anchor. A shift-click applies the last plain action to every
// visible row between the anchor and row, inclusive; it does nothing when
// there is no anchor, when row is the anchor, or when either end is not in
// visible. Toggle returns the ids whose membership changed.
func (s *Selection[R]) Toggle(visible []R, row R, shift bool) []string {
	id := row.RowID()

	if shift {
		if s.anchor == "" || s.anchor == id || s.last == NoAction {
			return nil
		}
		from := slices.IndexFunc(visible, func(r R) bool { return r.RowID() == s.anchor })
		to := slices.IndexFunc(visible, func(r R) bool { return r.RowID() == id })
		if from < 0 || to < 0 {
			return nil
		}
		if from > to {
			from, to = to, from
		}

		var changed []string
		for _, r := range visible[from : to+1] {
			rid := r.RowID()
			switch s.last {
			case Added:
				if s.add(rid) {
					changed = append(changed, rid)
				}
			case Removed:
				if s.remove(rid) {
					changed = append(changed, rid)
				}
			}
		}
		s.anchor = id
		return changed
	}

	if s.remove(id) {
		s.last = Removed
	} else {
		s.add(id)
		s.last = Added
	}
	s.anchor = id
	return []string{id}
}

// SelectFirst adds the first n visible rows, keeping existing selections,
// and clears the anchor.
func (s *Selection[R]) SelectFirst(visible []R, n int) []string {
	var changed []string
	for i := 0; i < n && i < len(visible); i++ {
		id := visible[i].RowID()
		if s.add(id) {
			changed = append(changed, id)
		}
	}
	s.anchor = ""
	return changed
}

// DeselectAll empties the selection and clears the anchor.
func (s *Selection[R]) DeselectAll() []string {
	changed := s.IDs()
	clear(s.ids)
	s.anchor = ""
	return changed
}

// Remove drops id from the selection, clearing the anchor if it was id.
func (s *Selection[R]) Remove(id string) bool {
	if s.anchor == id {
		s.anchor = ""
	}
	return s.remove(id)
}

// Has reports whether id is selected.
func (s *Selection[R]) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the selected ids in the order they were selected.
func (s *Selection[R]) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(s.ids[a], s.ids[b])
	})
	return ids
}

// Snapshot returns a copy of the selected id set.
func (s *Selection[R]) Snapshot() map[string]struct{} {
	out := make(map[string]struct{}, len(s.ids))
	for id := range s.ids {
		out[id] = struct{}{}
	}
	return out
}

// Len returns the number of selected rows.
func (s *Selection[R]) Len() int { return len(s.ids) }

// Limit returns the capacity.
func (s *Selection[R]) Limit() int { return s.limit }

// SetLimit replaces the capacity. Selected rows are kept.
func (s *Selection[R]) SetLimit(n int) { s.limit = n }

// Anchor returns the anchor row id and the last plain action.
func (s *Selection[R]) Anchor() (string, LastAction) { return s.anchor, s.last }

// IsEmpty reports whether nothing is selected.
func (s *Selection[R]) IsEmpty() bool { return len(s.ids) == 0 }

// IsOverLimit reports whether more rows are selected than the capacity.
func (s *Selection[R]) IsOverLimit() bool { return len(s.ids) > s.limit }

// State returns the proceed action state.
func (s *Selection[R]) State() ActionState {
	switch {
	case s.IsEmpty():
		return ActionNoneSelected
	case s.IsOverLimit():
		return ActionTooMany
	default:
		return ActionReady
	}
}
