package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cs2interlink/cs2-int/internal/table"
)

// Tab partitions the store rows.
type Tab int

const (
	TabGeneral Tab = iota
	TabTools
	TabTournamentCapsules
	TabTournamentSouvenirs
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabGeneral, TabTools, TabTournamentCapsules, TabTournamentSouvenirs}

func (t Tab) String() string {
	switch t {
	case TabGeneral:
		return "General"
	case TabTools:
		return "Tools"
	case TabTournamentCapsules:
		return "Tournament Capsules"
	case TabTournamentSouvenirs:
		return "Tournament Souvenirs"
	default:
		return fmt.Sprintf("Tab(%d)", int(t))
	}
}

// ParseTab accepts a tab name such as "tools" or "tournament-souvenirs".
func ParseTab(s string) (Tab, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	for _, t := range Tabs {
		if strings.ReplaceAll(strings.ToLower(t.String()), " ", "") == key {
			return t, nil
		}
	}
	switch key {
	case "capsules":
		return TabTournamentCapsules, nil
	case "souvenirs":
		return TabTournamentSouvenirs, nil
	}
	return TabGeneral, fmt.Errorf("unknown store tab %q", s)
}

// Includes reports whether it is listed on tab t.
func (t Tab) Includes(it *Item) bool {
	switch t {
	case TabGeneral:
		return it.LayoutWeight != nil
	case TabTools:
		return it.LayoutFormat == "single"
	case TabTournamentCapsules:
		return it.TournamentID != 0 && !it.RequiresSupplementalData
	case TabTournamentSouvenirs:
		return it.TournamentID != 0 && it.RequiresSupplementalData
	}
	return false
}

var defaultOrder = table.SortSpec{Columns: []string{"default_sort_order"}, Direction: table.Ascending}

// ErrNoSelection is returned by Purchase with nothing selected.
var ErrNoSelection = errors.New("no item selected")

// TableOptions configures a StoreTable.
type TableOptions struct {
	ViewportRows int
	// OnFooter is called with the table lock held after every footer change.
	OnFooter func(table.Footer)
}

// Table lists the store rows of one tab with a single selection.
type Table struct {
	*table.Table[*Item, string]

	money *Formatter
	opts  TableOptions

	// guarded by the table lock
	tab    Tab
	tokens []string
	teams  []string

	current atomic.Int32
	changed atomic.Bool
}

// NewTable builds the store table on the General tab and shows it.
func NewTable(items []*Item, money *Formatter, opts TableOptions) *Table {
	t := &Table{money: money, opts: opts}
	order := defaultOrder
	t.Table = table.New[*Item, string](items, t, table.Options{
		ViewportRows:   max(1, opts.ViewportRows),
		RowHeight:      1,
		DefaultSort:    &order,
		InitialSort:    &order,
		SelectionLimit: 1,
	})
	t.Show()
	return t
}

// Tab returns the active tab.
func (t *Table) Tab() Tab { return Tab(t.current.Load()) }

// SetTab switches tabs, resetting the sort, both searches and the
// selection.
func (t *Table) SetTab(tab Tab) {
	if t.Tab() == tab {
		return
	}
	t.current.Store(int32(tab))
	t.DeselectAll()
	t.ResetSort(defaultOrder)
	t.Filter(func() {
		t.tab = tab
		t.tokens = nil
		t.teams = nil
	})
}

// Columns returns the header columns of the active tab.
func (t *Table) Columns() []table.Column {
	if t.Tab() == TabTournamentSouvenirs {
		return []table.Column{
			{Title: "Name", Width: 52, Sort: []string{"name", "supplemental_data"}},
			{Title: "Stage", Width: 22, Sort: []string{"supplemental_data"}},
			{Title: "Teams", Width: 36, Sort: []string{"team_1", "team_2", "supplemental_data"}},
			{Title: "Owned", Width: 5},
		}
	}
	return []table.Column{
		{Title: "Name", Width: 44, Sort: []string{"name", "supplemental_data"}},
		{Title: "Type", Width: 24, Sort: []string{"type", "name"}},
		{Title: "Price", Width: 26, Sort: []string{"price", "name"}},
		{Title: "Owned", Width: 5},
	}
}

// Title is the header shown above the table.
func (t *Table) Title() string {
	return "Select an item to purchase · " + t.Tab().String()
}

// MaterializeRow renders one line. A row is only ever listed under
// souvenir or non-souvenir columns, so the layout follows the row.
func (t *Table) MaterializeRow(it *Item) string {
	owned := ""
	if it.Owned >= 0 {
		owned = strconv.Itoa(it.Owned)
	}
	var cells []string
	if it.RequiresSupplementalData {
		teams := fmt.Sprintf("%s %d:%d %s", it.Team1, it.Team1Score, it.Team2Score, it.Team2)
		cells = []string{fit(it.Name, 52), fit(it.SectionName, 22), fit(teams, 36), fit(owned, 5)}
	} else {
		cells = []string{fit(it.Name, 44), fit(it.Type, 24), fit(t.PriceLabel(it), 26), fit(owned, 5)}
	}
	return strings.Join(cells, " ")
}

// PriceLabel renders the price, with the discount and original price when
// on sale.
func (t *Table) PriceLabel(it *Item) string {
	price := t.money.FormatCurrency(it.Price)
	if it.Discount == nil {
		return price
	}
	return fmt.Sprintf("-%d%% %s %s", *it.Discount, t.money.FormatCurrency(it.OriginalPrice), price)
}

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

// MatchesFilter applies the tab and both searches.
func (t *Table) MatchesFilter(it *Item) bool {
	if !t.tab.Includes(it) {
		return false
	}
	if !table.MatchTokens(it.NameNormalized, t.tokens) {
		return false
	}
	if t.tab == TabTournamentSouvenirs && !table.MatchTokens(it.TeamsNormalized, t.teams) {
		return false
	}
	return true
}

// RenderFooter forwards the footer to OnFooter.
func (t *Table) RenderFooter(f table.Footer) {
	if t.opts.OnFooter != nil {
		t.opts.OnFooter(f)
	}
}

// Search filters by item name.
func (t *Table) Search(query string) {
	tokens := table.SearchTokens(query)
	t.Filter(func() { t.tokens = tokens })
}

// SearchTeams filters souvenir packages by team names. It has no effect
// on other tabs.
func (t *Table) SearchTeams(query string) {
	tokens := table.SearchTokens(query)
	t.Filter(func() { t.teams = tokens })
}

// Select makes id the selection, or clears it when id is already selected.
func (t *Table) Select(id string) {
	if t.IsSelected(id) {
		t.DeselectAll()
		return
	}
	t.DeselectAll()
	t.Toggle(id, false)
}

// SelectedItem returns the selected row.
func (t *Table) SelectedItem() (*Item, bool) {
	ids := t.Selected()
	if len(ids) == 0 {
		return nil, false
	}
	return t.Lookup(ids[0])
}

// FooterLine summarizes the selection as text.
func (t *Table) FooterLine() string {
	f := t.Footer()
	line := fmt.Sprintf("%d items shown", f.Visible)
	if it, ok := t.SelectedItem(); ok {
		return line + " · " + it.Name + " " + t.money.FormatCurrency(it.Price)
	}
	if tip := f.Action.Tooltip(); tip != "" {
		line += " · " + tip
	}
	return line
}

// Purchase starts buying quantity of the selected item and returns the
// checkout URL.
func (t *Table) Purchase(ctx context.Context, p *Purchaser, quantity int) (string, error) {
	it, ok := t.SelectedItem()
	if !ok {
		return "", ErrNoSelection
	}
	url, err := p.InitializePurchase(ctx, it, quantity)
	if err != nil {
		return "", err
	}
	t.changed.Store(true)
	return url, nil
}

// InventoryChanged reports whether a purchase was started.
func (t *Table) InventoryChanged() bool {
	return t.changed.Load()
}
