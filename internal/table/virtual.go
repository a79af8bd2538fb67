package table

import (
	"slices"

	"github.com/cs2interlink/cs2-int/internal/constants"
)

// ListConfig sizes a VirtualList.
type ListConfig struct {
	// ViewportHeight is the viewport height in layout units. The number of
	// visible rows is derived from it once, at construction.
	ViewportHeight int
	// ViewportRows overrides the derived visible row count when > 0.
	ViewportRows int
	RowHeight    int
	BufferRows   int
	// HeaderHeight is added to the rendered rows when measuring content height.
	HeaderHeight  int
	SpacerPadding int
}

// VirtualList keeps a window of materialized view handles over an ordered
// sequence of n rows. Scrolling slides the window incrementally; a changed
// sequence requires Rebuild.
type VirtualList[V any] struct {
	rowHeight     int
	bufferRows    int
	viewportRows  int
	headerHeight  int
	spacerPadding int

	rendered []V
	start    int
	valid    bool // false until the first update after a rebuild
	spacer   int
}

// NewVirtualList creates an empty list. It panics on a non-positive row height.
func NewVirtualList[V any](cfg ListConfig) *VirtualList[V] {
	if cfg.RowHeight <= 0 {
		panic("table: row height must be positive")
	}
	if cfg.BufferRows < 0 {
		cfg.BufferRows = 0
	}
	rows := cfg.ViewportRows
	if rows <= 0 {
		rows = int(float64(cfg.ViewportHeight) * constants.ViewportFraction / float64(cfg.RowHeight))
	}
	rows = max(1, rows)
	return &VirtualList[V]{
		rowHeight:     cfg.RowHeight,
		bufferRows:    cfg.BufferRows,
		viewportRows:  rows,
		headerHeight:  cfg.HeaderHeight,
		spacerPadding: cfg.SpacerPadding,
	}
}

// Window returns the number of rows materialized at once.
func (v *VirtualList[V]) Window() int {
	return v.viewportRows + 2*v.bufferRows
}

// ViewportRows returns the number of rows that fit the viewport.
func (v *VirtualList[V]) ViewportRows() int {
	return v.viewportRows
}

// StartIndex returns the first materialized row for scrollTop over n rows.
func (v *VirtualList[V]) StartIndex(scrollTop, n int) int {
	start := scrollTop/v.rowHeight - v.bufferRows
	return max(0, min(n-v.Window(), start))
}

// Rebuild discards every rendered row, positions the window for scrollTop
// and recomputes the spacer. It is required whenever the row sequence
// changes.
func (v *VirtualList[V]) Rebuild(scrollTop, n int, materialize func(i int) V) {
	clear(v.rendered)
	v.rendered = v.rendered[:0]
	v.valid = false
	v.Update(scrollTop, n, materialize)

	measured := v.headerHeight + len(v.rendered)*v.rowHeight
	v.spacer = max(0, n*v.rowHeight-measured+v.spacerPadding)
}

// Update slides the window to scrollTop. It returns false without touching
// the rendered rows when the start index is unchanged.
func (v *VirtualList[V]) Update(scrollTop, n int, materialize func(i int) V) bool {
	start := v.StartIndex(scrollTop, n)
	if v.valid && start == v.start {
		return false
	}

	window := v.Window()
	delta := -window
	if v.valid {
		delta = max(-window, min(window, start-v.start))
	}

	if delta > 0 {
		// scrolled down: drop from the head, append at the tail
		v.rendered = v.rendered[min(delta, len(v.rendered)):]
		for i := 0; i < delta; i++ {
			idx := start + window - delta + i
			if idx < 0 || idx >= n {
				continue
			}
			v.rendered = append(v.rendered, materialize(idx))
		}
	} else {
		// scrolled up: drop from the tail, prepend at the head
		v.rendered = v.rendered[:len(v.rendered)-min(-delta, len(v.rendered))]
		head := make([]V, 0, -delta)
		for i := 0; i < -delta; i++ {
			idx := start - delta - i - 1
			if idx < 0 || idx >= n {
				continue
			}
			head = append(head, materialize(idx))
		}
		slices.Reverse(head)
		v.rendered = append(head, v.rendered...)
	}

	v.start = start
	v.valid = true
	return true
}

// Rendered returns the materialized rows, top to bottom.
func (v *VirtualList[V]) Rendered() []V {
	out := make([]V, len(v.rendered))
	copy(out, v.rendered)
	return out
}

// Start returns the index of the first materialized row.
func (v *VirtualList[V]) Start() int { return v.start }

// Offset returns the translation applied to the rendered rows.
func (v *VirtualList[V]) Offset() int { return v.start * v.rowHeight }

// SpacerHeight returns the height reserved after the rendered rows so the
// scroll range covers every row.
func (v *VirtualList[V]) SpacerHeight() int { return v.spacer }

// MaxScrollTop returns the largest useful scroll offset for n rows.
func (v *VirtualList[V]) MaxScrollTop(n int) int {
	return max(0, (n-v.viewportRows)*v.rowHeight)
}
