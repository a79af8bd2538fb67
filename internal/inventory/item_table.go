package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cs2interlink/cs2-int/internal/batch"
	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/events"
	"github.com/cs2interlink/cs2-int/internal/logging"
	"github.com/cs2interlink/cs2-int/internal/table"
	"github.com/cs2interlink/cs2-int/internal/worker"
)

// Mode selects the direction of an item table.
type Mode int

const (
	ModeStore Mode = iota
	ModeRetrieve
)

// Operation names the transfer in errors and events.
func (m Mode) Operation() string {
	if m == ModeRetrieve {
		return "retrieve"
	}
	return "store"
}

// Verb is the progress message prefix.
func (m Mode) Verb() string {
	if m == ModeRetrieve {
		return "Retrieving"
	}
	return "Storing"
}

// ErrNoUnit is returned when a store table is created without a target unit.
var ErrNoUnit = errors.New("no storage unit selected")

// Transferer moves single items. *Loader implements it.
type Transferer interface {
	StoreItem(ctx context.Context, item, unit *Item) error
	RetrieveItem(ctx context.Context, item *Item) error
}

// ItemTableOptions configures an ItemTable.
type ItemTableOptions struct {
	Mode Mode
	// Unit is the storage unit to store into or retrieve from. In retrieve
	// mode a nil Unit lists the contents of every unit.
	Unit *Item

	ViewportRows int

	Concurrency int
	Delay       time.Duration
	SettleDelay time.Duration
	MaxAttempts int

	Bus      *events.EventBus
	Logger   *logging.Logger
	Reporter logging.ErrorReporter
	// Progress receives "<Verb> Items (p/t)" during ProcessSelected.
	Progress func(message string, fraction float64)
	// OnFooter is called with the table lock held after every footer change.
	OnFooter func(table.Footer)
}

// ItemTable lists the items a store or retrieve operation can move.
type ItemTable struct {
	*table.Table[*Item, string]

	inv     *Inventory
	xfer    Transferer
	opts    ItemTableOptions
	multi   bool
	columns []table.Column
	facets  *table.FacetCache[*Item, Facets]

	// guarded by the table lock
	filter *ItemFilter
	saved  map[string]struct{}
	tokens []string

	current      atomic.Pointer[ItemFilter]
	orchestrator atomic.Pointer[batch.Orchestrator[*Item]]
	changed      atomic.Bool
}

// NewItemTable builds the table for opts.Mode over inv and shows it.
func NewItemTable(inv *Inventory, xfer Transferer, opts ItemTableOptions) (*ItemTable, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Reporter == nil {
		opts.Reporter = opts.Logger
	}

	var rows []*Item
	var limit int
	switch opts.Mode {
	case ModeStore:
		if opts.Unit == nil {
			return nil, ErrNoUnit
		}
		rows = inv.Moveable()
		limit = constants.StorageUnitItemLimit - len(inv.StoredIn(opts.Unit.ID()))
	case ModeRetrieve:
		if opts.Unit != nil {
			rows = inv.StoredIn(opts.Unit.ID())
		} else {
			rows = inv.StoredItems
		}
		limit = constants.InventoryItemLimit - inv.UnprotectedCount()
	default:
		return nil, fmt.Errorf("unknown table mode %d", opts.Mode)
	}

	t := &ItemTable{
		inv:    inv,
		xfer:   xfer,
		opts:   opts,
		multi:  opts.Mode == ModeRetrieve && opts.Unit == nil,
		facets: table.NewFacetCache(ComputeFacets),
	}
	t.columns = []table.Column{
		{Title: "Name", Width: 48, Sort: []string{"name", "wear"}},
		{Title: "Quality", Width: 16, Sort: []string{"rarity", "quality", "collection", "name", "wear"}},
		{Title: "Collection", Width: 28, Sort: []string{"collection", "rarity", "quality", "name", "wear"}},
		{Title: "Float", Width: 18, Sort: []string{"wear"}},
		{Title: "Seed", Width: 6, Sort: []string{"seed"}},
	}
	if t.multi {
		t.columns = append(t.columns, table.Column{Title: "Storage Unit", Width: 20, Sort: []string{"casket_name", "id"}})
	}

	defaultSort := &table.SortSpec{Columns: []string{"casket_id", "id"}, Direction: table.Descending}
	t.Table = table.New[*Item, string](rows, t, table.Options{
		ViewportRows:   max(1, opts.ViewportRows),
		RowHeight:      1,
		BufferRows:     constants.BufferRows,
		DefaultSort:    defaultSort,
		InitialSort:    defaultSort,
		SelectionLimit: limit,
	})
	t.Show()
	return t, nil
}

// MaterializeRow renders one fixed-width line.
func (t *ItemTable) MaterializeRow(it *Item) string {
	cells := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		var s string
		switch c.Title {
		case "Name":
			s = it.Name
			if it.WearName != "" {
				s += " (" + it.WearName + ")"
			}
		case "Quality":
			s = it.RarityName
			if it.QualityName != "" && it.QualityName != "Normal" && it.QualityName != "Unique" {
				s = strings.TrimSpace(it.QualityName + " " + s)
			}
		case "Collection":
			s = it.Collection
		case "Float":
			if it.Wear != nil {
				s = strconv.FormatFloat(*it.Wear, 'f', 14, 64)
			}
		case "Seed":
			if it.Seed != nil {
				s = strconv.Itoa(*it.Seed)
			}
		case "Storage Unit":
			s = it.CasketLabel()
		}
		cells = append(cells, fit(s, c.Width))
	}
	return strings.Join(cells, " ")
}

// fit pads or truncates s to width runes.
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		if width <= 1 {
			return string(r[:width])
		}
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-len(r))
}

// MatchesFilter applies the structured filter and the search tokens.
func (t *ItemTable) MatchesFilter(it *Item) bool {
	return t.filter.Matches(it, t.saved) && table.MatchTokens(it.NameNormalized, t.tokens)
}

// RenderFooter forwards the footer to OnFooter.
func (t *ItemTable) RenderFooter(f table.Footer) {
	if t.opts.OnFooter != nil {
		t.opts.OnFooter(f)
	}
}

// Columns returns the header columns.
func (t *ItemTable) Columns() []table.Column { return t.columns }

// Title describes the operation and the unit.
func (t *ItemTable) Title() string {
	var b strings.Builder
	switch {
	case t.opts.Mode == ModeStore:
		fmt.Fprintf(&b, "Select items to move into %q", t.opts.Unit.UnitName())
	case t.multi:
		b.WriteString("Select items to retrieve from All Storage Units")
	default:
		fmt.Fprintf(&b, "Select items to retrieve from %q", t.opts.Unit.UnitName())
	}
	if t.inv.LoadedFromCache {
		b.WriteString(" (Cached)")
	}
	return b.String()
}

// Search filters the rows by name. Every whitespace separated token of
// query must occur in the normalized name.
func (t *ItemTable) Search(query string) {
	tokens := table.SearchTokens(query)
	t.Filter(func() { t.tokens = tokens })
}

// ApplyFilter replaces the structured filter. The current selection is
// snapshotted for f.Selected.
func (t *ItemTable) ApplyFilter(f *ItemFilter) {
	saved := t.SelectedSet()
	f = f.Normalized()
	t.Filter(func() {
		t.filter = f
		t.saved = saved
	})
	t.current.Store(f)
}

// CurrentFilter returns the structured filter in effect, or nil.
func (t *ItemTable) CurrentFilter() *ItemFilter {
	return t.current.Load()
}

// Facets returns the filter choices for the full dataset, computed once.
func (t *ItemTable) Facets() Facets {
	return t.facets.Get(t.All())
}

// ApplyFilterText parses expr against the facets and applies it. The
// filter in effect is kept when expr is invalid.
func (t *ItemTable) ApplyFilterText(expr string) error {
	f, err := ParseFilter(expr, t.Facets())
	if err != nil {
		return err
	}
	t.ApplyFilter(f)
	return nil
}

// FilterPrompt returns the filter in effect as text and a summary of the
// available choices. The first call computes the facets.
func (t *ItemTable) FilterPrompt() (current, hint string) {
	facets := t.Facets()
	return t.CurrentFilter().Format(facets), facets.Hint()
}

// FooterLine summarizes the footer as text.
func (t *ItemTable) FooterLine() string {
	f := t.Footer()
	line := fmt.Sprintf("%d items shown, %d of %d selected", f.Visible, f.Selected, f.Limit)
	if t.CurrentFilter() != nil {
		line += " · filtered"
	}
	if tip := f.Action.Tooltip(); tip != "" {
		line += " · " + tip
	}
	return line
}

// WatchStatus keeps the retrieve capacity in step with the inventory size
// reported on bus until ctx ends. It does nothing in store mode.
func (t *ItemTable) WatchStatus(ctx context.Context, bus *events.EventBus) {
	if t.opts.Mode != ModeRetrieve || bus == nil {
		return
	}
	ch := bus.Subscribe(events.EventStatus)
	go func() {
		defer bus.Unsubscribe(events.EventStatus, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				st, ok := ev.(*events.StatusEvent)
				if !ok || !st.InventoryLoaded {
					continue
				}
				t.SetSelectionLimit(constants.InventoryItemLimit - st.UnprotectedInventorySize)
			}
		}
	}()
}

// Complete removes a transferred row and lowers the capacity by one.
func (t *ItemTable) Complete(id string) {
	if t.Remove(id) {
		t.AdjustSelectionLimit(-1)
		t.changed.Store(true)
	}
}

// InventoryChanged reports whether any item was moved.
func (t *ItemTable) InventoryChanged() bool {
	return t.changed.Load()
}

// ProcessSelected moves every selected item and blocks until the batch
// ends. It fails without transferring anything when the proceed action
// is disabled.
func (t *ItemTable) ProcessSelected(ctx context.Context) (batch.Result, error) {
	f := t.Footer()
	if f.Action != table.ActionReady {
		return batch.Result{}, errors.New(f.Action.Tooltip())
	}

	concurrency := t.opts.Concurrency
	if concurrency <= 0 {
		concurrency = constants.TransferConcurrency
	}
	delay := t.opts.Delay
	if delay <= 0 {
		delay = constants.TransferDispatchDelay
	}

	var transfer batch.TransferFunc[*Item]
	if t.opts.Mode == ModeRetrieve {
		transfer = t.xfer.RetrieveItem
	} else {
		unit := t.opts.Unit
		transfer = func(ctx context.Context, it *Item) error {
			return t.xfer.StoreItem(ctx, it, unit)
		}
	}

	o := batch.New[*Item](t, transfer, batch.Options[*Item]{
		Operation:   t.opts.Mode.Operation(),
		Verb:        t.opts.Mode.Verb(),
		MaxAttempts: t.opts.MaxAttempts,
		Concurrency: worker.Fixed(concurrency),
		Delay:       delay,
		SettleDelay: t.opts.SettleDelay,
		NameOf:      func(it *Item) string { return `"` + it.FullName + `"` },
		Progress:    t.opts.Progress,
		Reporter:    t.opts.Reporter,
		Logger:      t.opts.Logger,
		Bus:         t.opts.Bus,
	})
	t.orchestrator.Store(o)
	return o.Run(ctx, t.Selected())
}

// Cancel stops a running ProcessSelected and waits for in-flight
// transfers. It is a no-op when nothing is running.
func (t *ItemTable) Cancel(ctx context.Context) error {
	o := t.orchestrator.Load()
	if o == nil {
		return nil
	}
	return o.Cancel(ctx)
}
