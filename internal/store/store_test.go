package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/cs2interlink/cs2-int/internal/table"
)

const testSheet = `{
  "price_sheet": {
    "currencies": {"USD": 1, "EUR": 3},
    "entries": {
      "10": {"item_link": "pass", "prices": {"USD": 1000, "EUR": 900}, "sale_prices": {"USD": 750}},
      "2": {"item_link": "tag", "prices": {"USD": 199, "EUR": 185}},
      "31": {"item_link": "capsule", "prices": {"USD": 99, "EUR": 95}},
      "40": {"item_link": "souvenir", "prices": {"USD": 299, "EUR": 280}},
      "41": {"item_link": "missing", "prices": {"USD": 1}}
    },
    "store_banner_layout": {
      "4001": {"w": 5},
      "1200": {"custom_format": "single"}
    }
  },
  "price_sheet_items": {
    "pass": {"def_index": 4001, "item_name": "Operation Pass", "type_name": "Pass"},
    "tag": {"def_index": 1200, "item_name": "Name Tag", "tool_name": "Name Tag", "type_name": "Tool"},
    "capsule": {"def_index": 4500, "item_name": "Paris 2023 Legends Sticker Capsule", "type_name": "Sticker Capsule", "tournament_id": 21},
    "souvenir": {"def_index": 4600, "item_name": "Paris 2023 Souvenir Package", "type_name": "Souvenir Package", "name_id": "paris2023_souvenir", "tournament_id": 21, "requires_supplemental_data": true}
  }
}`

const testTournament = `{
  "tournamentinfo": {"sections": [{"sectionid": 1, "name": "Challengers Stage", "groups": [{"stage_ids": [1, 2]}]}]},
  "matches": [
    {"matchid": 3000000000000000001, "roundstats_legacy": {"map_id": 23, "reservation": {"tournament_event": {"event_stage_id": 1}, "tournament_teams": [{"team_id": 9565, "team_name": "Vitality"}, {"team_id": 6667, "team_name": "FaZe"}]}, "team_scores": [16, 12]}},
    {"matchid": "3000000000000000002", "roundstats_legacy": {"map_id": 5, "reservation": {"tournament_event": {"event_stage_id": 2}, "tournament_teams": [{"team_id": 4608, "team_name": "NAVI"}, {"team_id": 5995, "team_name": "G2"}]}, "team_scores": [9, 16]}},
    {"matchid": 3000000000000000003, "roundstats_legacy": {"map_id": 5, "reservation": {"tournament_event": {"event_stage_id": 99}, "tournament_teams": [{"team_id": 1, "team_name": "A"}, {"team_id": 2, "team_name": "B"}]}}}
  ]
}`

const (
	souvenirVitality = "4600:3000000000000000001"
	souvenirNAVI     = "4600:3000000000000000002"
)

func buildTestItems(t *testing.T, currency string) []*Item {
	t.Helper()
	sheet, err := DecodePriceSheet(strings.NewReader(testSheet))
	if err != nil {
		t.Fatal(err)
	}
	tournament, err := DecodeTournament(strings.NewReader(testTournament))
	if err != nil {
		t.Fatal(err)
	}
	items, err := Build(sheet, tournament, currency)
	if err != nil {
		t.Fatal(err)
	}
	return items
}

func rowIDs(items []*Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.RowID()
	}
	return ids
}

func TestBuildDefaultOrder(t *testing.T) {
	items := buildTestItems(t, "USD")

	want := []string{"4001", "1200", "4500", souvenirNAVI, souvenirVitality}
	if got := rowIDs(items); !slices.Equal(got, want) {
		t.Fatalf("Expected default order %v, got %v", want, got)
	}
	for i, it := range items {
		if it.DefaultSortOrder != i {
			t.Errorf("Expected %s at default position %d, got %d", it.RowID(), i, it.DefaultSortOrder)
		}
	}

	pass := items[0]
	if pass.Price != 750 || pass.OriginalPrice != 1000 || pass.Discount == nil || *pass.Discount != 25 {
		t.Errorf("Unexpected sale pricing %+v", pass)
	}

	mirage := items[4]
	if mirage.Name != "Paris 2023 Mirage Souvenir Package" {
		t.Errorf("Unexpected souvenir name %q", mirage.Name)
	}
	if mirage.SectionName != "Challengers Stage" || mirage.Team1 != "Vitality" || mirage.Team2Score != 12 {
		t.Errorf("Unexpected match data %+v", mirage)
	}
	if mirage.TeamsNormalized != "vitality faze" {
		t.Errorf("Unexpected normalized teams %q", mirage.TeamsNormalized)
	}
}

func TestBuildUnsupportedCurrency(t *testing.T) {
	sheet, err := DecodePriceSheet(strings.NewReader(testSheet))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Build(sheet, nil, "GBP")
	if err == nil || !strings.Contains(err.Error(), "currency not supported") {
		t.Errorf("Expected unsupported currency error, got %v", err)
	}

	items, err := Build(sheet, nil, "EUR")
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		if it.RequiresSupplementalData {
			t.Errorf("Expected no souvenirs without tournament data, got %s", it.RowID())
		}
		if it.ID == 4001 && it.Discount != nil {
			t.Error("Expected no sale in a currency without a sale price")
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		code, country string
		cents         int64
		want          string
	}{
		{"USD", "US", 1234, "$12.34"},
		{"USD", "DE", 1234, "$12.34 USD"},
		{"EUR", "DE", 500, "5,--€"},
		{"EUR", "DE", 512, "5,12€"},
		{"RUB", "RU", 10000, "100 руб."},
		{"JPY", "JP", 12300, "¥ 123"},
		{"BRL", "BR", 1999, "R$ 19,99"},
	}
	for _, tt := range tests {
		t.Run(tt.code+"_"+tt.country, func(t *testing.T) {
			f, err := NewFormatter(tt.code, tt.country)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.FormatCurrency(tt.cents); got != tt.want {
				t.Errorf("FormatCurrency(%d) = %q, want %q", tt.cents, got, tt.want)
			}
		})
	}

	if _, err := NewFormatter("XYZ", "US"); err == nil {
		t.Error("Expected error for unknown currency")
	}
}

func TestMatchOwned(t *testing.T) {
	items := buildTestItems(t, "USD")
	MatchOwned(items, []OwnedItem{
		{DefIndex: 1200, FullName: "Name Tag"},
		{DefIndex: 1200, FullName: "Name Tag"},
		{DefIndex: 1, FullName: "Paris 2023 Legends Sticker Capsule"},
	})
	owned := map[string]int{}
	for _, it := range items {
		owned[it.RowID()] = it.Owned
	}
	if owned["1200"] != 2 {
		t.Errorf("Expected 2 name tags owned, got %d", owned["1200"])
	}
	if owned["4500"] != 1 {
		t.Errorf("Expected capsule matched by market name, got %d", owned["4500"])
	}
	if owned["4001"] != 0 {
		t.Errorf("Expected pass not owned, got %d", owned["4001"])
	}
}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	money, err := NewFormatter("USD", "US")
	if err != nil {
		t.Fatal(err)
	}
	return NewTable(buildTestItems(t, "USD"), money, TableOptions{ViewportRows: 10})
}

func visible(t *Table) []string { return rowIDs(t.Visible()) }

func TestTableTabs(t *testing.T) {
	tbl := newTestTable(t)

	tests := []struct {
		tab  Tab
		want []string
	}{
		{TabGeneral, []string{"4001"}},
		{TabTools, []string{"1200"}},
		{TabTournamentCapsules, []string{"4500"}},
		{TabTournamentSouvenirs, []string{souvenirNAVI, souvenirVitality}},
	}
	for _, tt := range tests {
		tbl.SetTab(tt.tab)
		if got := visible(tbl); !slices.Equal(got, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.tab, tt.want, got)
		}
	}

	if cols := tbl.Columns(); cols[1].Title != "Stage" {
		t.Errorf("Expected souvenir columns, got %+v", cols)
	}
	tbl.SetTab(TabGeneral)
	if cols := tbl.Columns(); cols[2].Title != "Price" {
		t.Errorf("Expected price column, got %+v", cols)
	}
}

func TestParseTab(t *testing.T) {
	for in, want := range map[string]Tab{
		"general":              TabGeneral,
		"Tools":                TabTools,
		"tournament-capsules":  TabTournamentCapsules,
		"souvenirs":            TabTournamentSouvenirs,
		"Tournament Souvenirs": TabTournamentSouvenirs,
	} {
		got, err := ParseTab(in)
		if err != nil || got != want {
			t.Errorf("ParseTab(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTab("weapons"); err == nil {
		t.Error("Expected error for unknown tab")
	}
}

func TestTableSearchResetsOnTabChange(t *testing.T) {
	tbl := newTestTable(t)
	tbl.SetTab(TabTournamentSouvenirs)

	tbl.SearchTeams("navi")
	if got := visible(tbl); !slices.Equal(got, []string{souvenirNAVI}) {
		t.Errorf("Expected team search match, got %v", got)
	}
	tbl.SearchTeams("")
	tbl.Search("mirage")
	if got := visible(tbl); !slices.Equal(got, []string{souvenirVitality}) {
		t.Errorf("Expected name search match, got %v", got)
	}

	tbl.Sort([]string{"team_1", "team_2", "supplemental_data"}, true)
	tbl.Sort(nil, true)
	spec, _ := tbl.SortState()
	if spec.Direction != table.Descending {
		t.Fatalf("Expected descending after second click, got %v", spec.Direction)
	}
	tbl.Select(souvenirVitality)

	tbl.SetTab(TabGeneral)
	tbl.SetTab(TabTournamentSouvenirs)
	if got := visible(tbl); !slices.Equal(got, []string{souvenirNAVI, souvenirVitality}) {
		t.Errorf("Expected searches cleared and default order, got %v", got)
	}
	spec, _ = tbl.SortState()
	if !slices.Equal(spec.Columns, []string{"default_sort_order"}) || spec.Direction != table.Ascending {
		t.Errorf("Expected default sort restored, got %+v", spec)
	}
	if len(tbl.Selected()) != 0 {
		t.Errorf("Expected selection cleared, got %v", tbl.Selected())
	}
}

func TestTableSingleSelection(t *testing.T) {
	tbl := newTestTable(t)
	tbl.SetTab(TabTools)

	if f := tbl.Footer(); f.Action != table.ActionNoneSelected {
		t.Errorf("Expected nothing selected, got %v", f.Action)
	}
	tbl.Select("1200")
	tbl.SetTab(TabGeneral)
	tbl.Select("4001")
	if got := tbl.Selected(); !slices.Equal(got, []string{"4001"}) {
		t.Fatalf("Expected single selection, got %v", got)
	}
	if line := tbl.FooterLine(); !strings.Contains(line, "Operation Pass $7.50") {
		t.Errorf("Unexpected footer %q", line)
	}
	if f := tbl.Footer(); f.Action != table.ActionReady {
		t.Errorf("Expected action ready, got %v", f.Action)
	}

	tbl.Select("4001")
	if len(tbl.Selected()) != 0 {
		t.Errorf("Expected selecting again to clear, got %v", tbl.Selected())
	}

	it, _ := tbl.Lookup("4001")
	if got := tbl.PriceLabel(it); got != "-25% $10.00 $7.50" {
		t.Errorf("Unexpected price label %q", got)
	}
}

type fakeSender struct {
	mu     sync.Mutex
	body   string
	err    error
	params map[string]string
	path   string
}

func (f *fakeSender) Send(ctx context.Context, operation, path, method, target string, data map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = path
	f.params = data
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.body), nil
}

func TestPurchase(t *testing.T) {
	tbl := newTestTable(t)
	sender := &fakeSender{body: `{"PurchaseUrl":"https://checkout.example/123"}`}
	p := NewPurchaser(sender, "main", nil)

	if _, err := tbl.Purchase(context.Background(), p, 1); !errors.Is(err, ErrNoSelection) {
		t.Errorf("Expected ErrNoSelection, got %v", err)
	}

	tbl.SetTab(TabTournamentSouvenirs)
	tbl.Select(souvenirNAVI)
	if _, err := tbl.Purchase(context.Background(), p, 21); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Expected ErrInvalidQuantity, got %v", err)
	}

	url, err := tbl.Purchase(context.Background(), p, 3)
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if url != "https://checkout.example/123" {
		t.Errorf("Unexpected URL %q", url)
	}
	want := map[string]string{
		"itemID":           "4600",
		"quantity":         "3",
		"cost":             "897",
		"supplementalData": "3000000000000000002",
	}
	if sender.path != "InitializePurchase" || len(sender.params) != len(want) {
		t.Fatalf("Unexpected request %s %v", sender.path, sender.params)
	}
	for k, v := range want {
		if sender.params[k] != v {
			t.Errorf("Expected %s=%s, got %s", k, v, sender.params[k])
		}
	}
	if !tbl.InventoryChanged() {
		t.Error("Expected inventory changed after purchase")
	}
}

func TestPurchaseFailures(t *testing.T) {
	items := buildTestItems(t, "USD")

	p := NewPurchaser(&fakeSender{body: `{"Success":true}`}, "main", nil)
	if _, err := p.InitializePurchase(context.Background(), items[1], 1); !errors.Is(err, ErrNoPurchaseURL) {
		t.Errorf("Expected ErrNoPurchaseURL, got %v", err)
	}

	boom := errors.New("boom")
	p = NewPurchaser(&fakeSender{err: boom}, "main", nil)
	if _, err := p.InitializePurchase(context.Background(), items[1], 1); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped send error, got %v", err)
	}

	sender := &fakeSender{body: `{"PurchaseUrl":"x"}`}
	p = NewPurchaser(sender, "main", nil)
	if _, err := p.InitializePurchase(context.Background(), items[1], 2); err != nil {
		t.Fatal(err)
	}
	if _, ok := sender.params["supplementalData"]; ok {
		t.Error("Expected no supplementalData for a plain item")
	}
}
