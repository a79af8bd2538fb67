package table

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction is the sort direction of a table. Unsorted is the state before
// the first sort and after a lead column change.
type Direction int

const (
	Unsorted Direction = iota
	Ascending
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "none"
	}
}

// SortSpec is an ordered list of columns compared in turn, plus a direction.
type SortSpec struct {
	Columns   []string
	Direction Direction
}

// Sorter holds the click-driven sort state of one table.
//
// Header clicks cycle ascending, descending, then back to the default sort
// when one is configured (otherwise ascending again). Undefined values sort
// last regardless of direction.
type Sorter struct {
	columns     []string
	direction   Direction
	defaultSort *SortSpec
	indicator   string
	collator    *collate.Collator
}

// NewSorter creates a Sorter. defaultSort may be nil.
func NewSorter(defaultSort *SortSpec) *Sorter {
	return &Sorter{
		defaultSort: defaultSort,
		collator:    collate.New(language.Und),
	}
}

// Request updates the sort state. columns may be nil to re-sort with the
// current columns; headerClick advances the direction cycle. It returns
// false when no columns have been chosen yet, in which case rows keep their
// current order.
func (s *Sorter) Request(columns []string, headerClick bool) bool {
	if len(columns) > 0 {
		if s.direction != Unsorted && (len(s.columns) == 0 || s.columns[0] != columns[0]) {
			s.direction = Unsorted
		}
		s.columns = columns
	}

	reset := false
	if headerClick {
		switch s.direction {
		case Descending:
			if s.defaultSort != nil {
				s.columns = s.defaultSort.Columns
				s.direction = s.defaultSort.Direction
				reset = true
			} else {
				s.direction = Ascending
			}
		case Ascending:
			s.direction = Descending
		}
	}

	if len(s.columns) == 0 {
		return false
	}

	if s.direction == Unsorted {
		s.direction = Ascending
	}

	if headerClick {
		s.indicator = ""
		if !reset && len(columns) > 0 {
			s.indicator = columns[0]
		}
	}

	return true
}

// Reset forces the given sort state and clears the header indicator.
func (s *Sorter) Reset(spec SortSpec) {
	s.columns = spec.Columns
	s.direction = spec.Direction
	s.indicator = ""
}

// Columns returns the active sort columns.
func (s *Sorter) Columns() []string { return s.columns }

// Direction returns the active direction.
func (s *Sorter) Direction() Direction { return s.direction }

// Indicator returns the header column currently showing a direction arrow,
// or "" when none does.
func (s *Sorter) Indicator() (string, Direction) {
	if s.indicator == "" {
		return "", Unsorted
	}
	return s.indicator, s.direction
}

// Compare orders two rows by the active columns.
func (s *Sorter) Compare(a, b Row) int {
	asc := s.direction != Descending
	for _, col := range s.columns {
		va, vb := a.Value(col), b.Value(col)
		if va == vb {
			continue
		}
		if va.IsUndefined() {
			return 1
		}
		if vb.IsUndefined() {
			return -1
		}
		c := compareDefined(va, vb, s.collator.CompareString)
		if c == 0 {
			continue
		}
		if !asc {
			c = -c
		}
		return c
	}
	return 0
}

// SortRows stably sorts rows in place with s.
func SortRows[R Row](s *Sorter, rows []R) {
	if len(s.columns) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b R) int {
		return s.Compare(a, b)
	})
}
