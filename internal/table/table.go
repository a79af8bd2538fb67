package table

import (
	"cmp"
	"slices"
	"sync"

	"github.com/cs2interlink/cs2-int/internal/constants"
)

// Row is one table entry. RowID must be stable and unique within a dataset.
type Row interface {
	RowID() string
	Value(column string) Value
}

// Variant supplies the behavior that differs between concrete tables.
//
// Variant methods are called with the table lock held and must not call
// back into the Table.
type Variant[R Row, V any] interface {
	// MaterializeRow builds the view handle for row. It is called at most
	// once per row id for the lifetime of the table.
	MaterializeRow(row R) V
	// MatchesFilter reports whether row passes the variant's current filter.
	MatchesFilter(row R) bool
	// RenderFooter receives the footer state after every change to the
	// visible rows or the selection.
	RenderFooter(f Footer)
}

// Options configures a Table.
type Options struct {
	ViewportHeight int
	// ViewportRows overrides the row count derived from ViewportHeight.
	ViewportRows int
	RowHeight    int
	BufferRows   int
	HeaderHeight int

	// DefaultSort is the target of the third header click. May be nil.
	DefaultSort *SortSpec
	// InitialSort is applied before the first Show. May be nil.
	InitialSort *SortSpec

	SelectionLimit int
}

// DefaultOptions returns options with the standard row geometry.
func DefaultOptions(viewportHeight int) Options {
	return Options{
		ViewportHeight: viewportHeight,
		RowHeight:      constants.RowHeight,
		BufferRows:     constants.BufferRows,
	}
}

// Footer is the summary a variant renders below the rows.
type Footer struct {
	Total    int
	Visible  int
	Selected int
	Limit    int
	Action   ActionState
}

// View is the materialized window of a table.
type View[R Row, V any] struct {
	Rows   []R
	Views  []V
	Start  int
	Offset int
	Spacer int
	// Empty is set when no row is visible and a placeholder should span
	// the table instead.
	Empty bool
}

// Table is a virtualized, sortable, filterable and selectable list of rows.
// It is safe for concurrent use.
type Table[R Row, V any] struct {
	mu sync.Mutex

	variant Variant[R, V]

	all     []R
	visible []R
	order   map[string]int
	views   map[string]V

	sorter    *Sorter
	selection *Selection[R]
	list      *VirtualList[V]
	scrollTop int
}

// New creates a table over rows. Rows with a duplicate id are dropped,
// keeping the first. New panics on a nil variant or a non-positive row
// height. Call Show to populate the visible rows.
func New[R Row, V any](rows []R, variant Variant[R, V], opts Options) *Table[R, V] {
	if variant == nil {
		panic("table: nil variant")
	}
	if opts.RowHeight <= 0 {
		panic("table: row height must be positive")
	}

	t := &Table[R, V]{
		variant: variant,
		all:     make([]R, 0, len(rows)),
		order:   make(map[string]int, len(rows)),
		views:   make(map[string]V),
		sorter:  NewSorter(opts.DefaultSort),
		list: NewVirtualList[V](ListConfig{
			ViewportHeight: opts.ViewportHeight,
			ViewportRows:   opts.ViewportRows,
			RowHeight:      opts.RowHeight,
			BufferRows:     opts.BufferRows,
			HeaderHeight:   opts.HeaderHeight,
			SpacerPadding:  constants.SpacerPadding,
		}),
		selection: NewSelection[R](opts.SelectionLimit),
	}
	for _, r := range rows {
		id := r.RowID()
		if _, dup := t.order[id]; dup {
			continue
		}
		t.order[id] = len(t.all)
		t.all = append(t.all, r)
	}
	if opts.InitialSort != nil {
		t.sorter.Reset(*opts.InitialSort)
	}
	return t
}

// Show derives the visible rows from the current filter and sort and
// renders the first window.
func (t *Table[R, V]) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refilter()
}

// Filter runs update, which may change the variant's filter state, then
// re-derives the visible rows: filter, scroll to top, sort, rebuild.
// update may be nil.
func (t *Table[R, V]) Filter(update func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if update != nil {
		update()
	}
	t.refilter()
}

func (t *Table[R, V]) refilter() {
	t.visible = t.visible[:0]
	for _, r := range t.all {
		if t.variant.MatchesFilter(r) {
			t.visible = append(t.visible, r)
		}
	}
	t.scrollTop = 0
	t.sortVisible()
	t.rebuild()
}

// Sort applies a sort request; see Sorter.Request. columns may be nil to
// advance the current columns' direction.
func (t *Table[R, V]) Sort(columns []string, headerClick bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.sorter.Request(columns, headerClick) {
		return
	}
	t.sortVisible()
	t.rebuild()
}

// ResetSort forces spec, clears the header indicator and re-sorts.
func (t *Table[R, V]) ResetSort(spec SortSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sorter.Reset(spec)
	t.sortVisible()
	t.rebuild()
}

func (t *Table[R, V]) sortVisible() {
	if len(t.sorter.Columns()) == 0 {
		return
	}
	// ties keep dataset order, not the order of the previous sort
	slices.SortStableFunc(t.visible, func(a, b R) int {
		if c := t.sorter.Compare(a, b); c != 0 {
			return c
		}
		return cmp.Compare(t.order[a.RowID()], t.order[b.RowID()])
	})
}

func (t *Table[R, V]) materialize(i int) V {
	row := t.visible[i]
	id := row.RowID()
	if v, ok := t.views[id]; ok {
		return v
	}
	v := t.variant.MaterializeRow(row)
	t.views[id] = v
	return v
}

func (t *Table[R, V]) rebuild() {
	t.scrollTop = min(t.scrollTop, t.list.MaxScrollTop(len(t.visible)))
	t.list.Rebuild(t.scrollTop, len(t.visible), t.materialize)
	t.renderFooter()
}

func (t *Table[R, V]) renderFooter() {
	t.variant.RenderFooter(t.footer())
}

func (t *Table[R, V]) footer() Footer {
	return Footer{
		Total:    len(t.all),
		Visible:  len(t.visible),
		Selected: t.selection.Len(),
		Limit:    t.selection.Limit(),
		Action:   t.selection.State(),
	}
}

// Scroll moves the viewport to scrollTop. It reports whether the
// materialized window changed.
func (t *Table[R, V]) Scroll(scrollTop int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrollTop = max(0, min(scrollTop, t.list.MaxScrollTop(len(t.visible))))
	return t.list.Update(t.scrollTop, len(t.visible), t.materialize)
}

// ScrollTop returns the current scroll offset.
func (t *Table[R, V]) ScrollTop() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollTop
}

// RowHeight returns the height of one row in layout units.
func (t *Table[R, V]) RowHeight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.list.rowHeight
}

// ViewportRows returns the number of rows that fit the viewport.
func (t *Table[R, V]) ViewportRows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.list.ViewportRows()
}

// Toggle handles a click on the visible row id; see Selection.Toggle.
func (t *Table[R, V]) Toggle(id string, shift bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := slices.IndexFunc(t.visible, func(r R) bool { return r.RowID() == id })
	if i < 0 {
		return nil
	}
	changed := t.selection.Toggle(t.visible, t.visible[i], shift)
	if len(changed) > 0 {
		t.renderFooter()
	}
	return changed
}

// SelectFirst selects the first n visible rows.
func (t *Table[R, V]) SelectFirst(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.selection.SelectFirst(t.visible, n)
	t.renderFooter()
	return changed
}

// DeselectAll clears the selection.
func (t *Table[R, V]) DeselectAll() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.selection.DeselectAll()
	t.renderFooter()
	return changed
}

// SetSelectionLimit replaces the selection capacity.
func (t *Table[R, V]) SetSelectionLimit(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection.SetLimit(n)
	t.renderFooter()
}

// AdjustSelectionLimit adds delta to the selection capacity.
func (t *Table[R, V]) AdjustSelectionLimit(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection.SetLimit(t.selection.Limit() + delta)
	t.renderFooter()
}

// SelectionLimit returns the selection capacity.
func (t *Table[R, V]) SelectionLimit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection.Limit()
}

// Remove deletes id from the dataset, the visible rows and the selection,
// and drops its view handle. It reports whether the row existed.
func (t *Table[R, V]) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.order[id]; !ok {
		return false
	}
	match := func(r R) bool { return r.RowID() == id }
	t.all = slices.DeleteFunc(t.all, match)
	t.visible = slices.DeleteFunc(t.visible, match)
	t.selection.Remove(id)
	delete(t.order, id)
	delete(t.views, id)
	t.rebuild()
	return true
}

// Lookup returns the row with id from the dataset.
func (t *Table[R, V]) Lookup(id string) (R, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.order[id]; !ok {
		var zero R
		return zero, false
	}
	i := slices.IndexFunc(t.all, func(r R) bool { return r.RowID() == id })
	return t.all[i], true
}

// Selected returns the selected ids in selection order.
func (t *Table[R, V]) Selected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection.IDs()
}

// SelectedSet returns a snapshot of the selected ids.
func (t *Table[R, V]) SelectedSet() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection.Snapshot()
}

// IsSelected reports whether id is selected.
func (t *Table[R, V]) IsSelected(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection.Has(id)
}

// Anchor returns the shift-click anchor and the last plain action.
func (t *Table[R, V]) Anchor() (string, LastAction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selection.Anchor()
}

// Visible returns a copy of the visible rows in display order.
func (t *Table[R, V]) Visible() []R {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.visible)
}

// VisibleAt returns the i-th visible row.
func (t *Table[R, V]) VisibleAt(i int) (R, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.visible) {
		var zero R
		return zero, false
	}
	return t.visible[i], true
}

// VisibleLen returns the number of visible rows.
func (t *Table[R, V]) VisibleLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visible)
}

// All returns a copy of the dataset in insertion order.
func (t *Table[R, V]) All() []R {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.all)
}

// Len returns the dataset size.
func (t *Table[R, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.all)
}

// View returns the materialized window.
func (t *Table[R, V]) View() View[R, V] {
	t.mu.Lock()
	defer t.mu.Unlock()
	views := t.list.Rendered()
	start := t.list.Start()
	end := min(start+len(views), len(t.visible))
	return View[R, V]{
		Rows:   slices.Clone(t.visible[start:end]),
		Views:  views,
		Start:  start,
		Offset: t.list.Offset(),
		Spacer: t.list.SpacerHeight(),
		Empty:  len(t.visible) == 0,
	}
}

// Footer returns the current footer state.
func (t *Table[R, V]) Footer() Footer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.footer()
}

// SortState returns the active sort spec and the header indicator.
func (t *Table[R, V]) SortState() (SortSpec, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	col, _ := t.sorter.Indicator()
	return SortSpec{
		Columns:   slices.Clone(t.sorter.Columns()),
		Direction: t.sorter.Direction(),
	}, col
}
