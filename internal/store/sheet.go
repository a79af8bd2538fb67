// Package store turns the in-game store price sheet into table rows and
// starts purchases through the service.
package store

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cs2interlink/cs2-int/internal/table"
)

// PriceSheet is the store data document.
type PriceSheet struct {
	Sheet struct {
		Entries           map[string]Entry  `json:"entries"`
		Currencies        map[string]any    `json:"currencies"`
		StoreBannerLayout map[string]Layout `json:"store_banner_layout"`
	} `json:"price_sheet"`
	Items map[string]SheetItem `json:"price_sheet_items"`
}

// Entry prices one sheet item, in cents per currency code.
type Entry struct {
	ItemLink   string           `json:"item_link"`
	Prices     map[string]int64 `json:"prices"`
	SalePrices map[string]int64 `json:"sale_prices,omitempty"`
}

// Layout places an item on the store front page.
type Layout struct {
	CustomFormat string   `json:"custom_format,omitempty"`
	Weight       *float64 `json:"w,omitempty"`
}

// SheetItem describes what an entry sells.
type SheetItem struct {
	DefIndex                 int    `json:"def_index"`
	ItemName                 string `json:"item_name"`
	ToolName                 string `json:"tool_name,omitempty"`
	TypeName                 string `json:"type_name,omitempty"`
	NameID                   string `json:"name_id,omitempty"`
	TournamentID             int    `json:"tournament_id,omitempty"`
	RequiresSupplementalData bool   `json:"requires_supplemental_data,omitempty"`
	LootList                 []struct {
		FullName string `json:"full_name"`
		TypeName string `json:"type_name"`
	} `json:"loot_list,omitempty"`
}

// Tournament is the match layout souvenir packages are sold for.
type Tournament struct {
	Info struct {
		Sections []Section `json:"sections"`
	} `json:"tournamentinfo"`
	Matches []Match `json:"matches"`
}

// Section is a tournament stage such as "Quarterfinals".
type Section struct {
	ID     int    `json:"sectionid"`
	Name   string `json:"name"`
	Groups []struct {
		StageIDs []int `json:"stage_ids"`
	} `json:"groups"`
}

// Match is one played tournament match.
type Match struct {
	ID        MatchID `json:"matchid"`
	MatchTime int64   `json:"matchtime"`
	Stats     struct {
		MapID       int `json:"map_id"`
		Reservation struct {
			Event struct {
				StageID int `json:"event_stage_id"`
			} `json:"tournament_event"`
			Teams []struct {
				ID   int    `json:"team_id"`
				Name string `json:"team_name"`
			} `json:"tournament_teams"`
		} `json:"reservation"`
		TeamScores  []int `json:"team_scores"`
		MatchResult int   `json:"match_result"`
	} `json:"roundstats_legacy"`
}

// MatchID is a 64-bit match id sent either as a JSON number or a string.
type MatchID string

func (id *MatchID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*id = MatchID(s)
	return nil
}

// TournamentMaps names the map ids souvenir packages are dropped on.
var TournamentMaps = map[int]string{
	2:   "Dust II",
	3:   "Train",
	5:   "Inferno",
	6:   "Nuke",
	7:   "Vertigo",
	23:  "Mirage",
	32:  "Overpass",
	91:  "Anubis",
	101: "Ancient",
}

// Item is one purchasable row.
type Item struct {
	ID               int    `json:"id"`
	SupplementalData string `json:"supplemental_data,omitempty"`
	Name             string `json:"name"`
	NameNormalized   string `json:"-"`
	HashName         string `json:"hash_name,omitempty"`
	Type             string `json:"type"`
	Price            int64  `json:"price"`
	OriginalPrice    int64  `json:"original_price"`
	// Discount is the sale percentage, or nil when not on sale.
	Discount                 *int     `json:"discount,omitempty"`
	LayoutFormat             string   `json:"layout_format,omitempty"`
	LayoutWeight             *float64 `json:"layout_weight,omitempty"`
	TournamentID             int      `json:"tournament_id,omitempty"`
	RequiresSupplementalData bool     `json:"requires_supplemental_data,omitempty"`

	StageID         int    `json:"stage_id,omitempty"`
	SectionID       int    `json:"section_id,omitempty"`
	SectionName     string `json:"section_name,omitempty"`
	Team1           string `json:"team_1,omitempty"`
	Team1ID         int    `json:"team_1_id,omitempty"`
	Team1Score      int    `json:"team_1_score,omitempty"`
	Team2           string `json:"team_2,omitempty"`
	Team2ID         int    `json:"team_2_id,omitempty"`
	Team2Score      int    `json:"team_2_score,omitempty"`
	TeamsNormalized string `json:"-"`

	DefaultSortOrder int `json:"default_sort_order"`
	// Owned counts matching items in the inventory and storage units, or
	// is -1 before an inventory was matched.
	Owned int `json:"owned"`
}

// RowID implements table.Row. Souvenir packages share a def index and
// differ by match.
func (it *Item) RowID() string {
	if it.SupplementalData != "" {
		return strconv.Itoa(it.ID) + ":" + it.SupplementalData
	}
	return strconv.Itoa(it.ID)
}

// Value implements table.Row.
func (it *Item) Value(column string) table.Value {
	switch column {
	case "id":
		return table.Int(int64(it.ID))
	case "name":
		return table.Str(it.Name)
	case "name_normalized":
		return table.Str(it.NameNormalized)
	case "type":
		return table.OptStr(it.Type)
	case "price":
		return table.Int(it.Price)
	case "original_price":
		return table.Int(it.OriginalPrice)
	case "discount":
		return table.OptNum(it.Discount)
	case "layout_weight":
		return table.OptNum(it.LayoutWeight)
	case "supplemental_data":
		return table.OptStr(it.SupplementalData)
	case "team_1":
		return table.OptStr(it.Team1)
	case "team_2":
		return table.OptStr(it.Team2)
	case "section_name":
		return table.OptStr(it.SectionName)
	case "default_sort_order":
		return table.Int(int64(it.DefaultSortOrder))
	default:
		return table.Undefined
	}
}

// DecodePriceSheet reads a price sheet document.
func DecodePriceSheet(r io.Reader) (*PriceSheet, error) {
	var ps PriceSheet
	if err := json.NewDecoder(r).Decode(&ps); err != nil {
		return nil, fmt.Errorf("invalid price sheet: %w", err)
	}
	return &ps, nil
}

// DecodeTournament reads a tournament layout document.
func DecodeTournament(r io.Reader) (*Tournament, error) {
	var t Tournament
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("invalid tournament data: %w", err)
	}
	return &t, nil
}

// Build creates the rows of sheet priced in currency, in default order.
// tournament may be nil, in which case no souvenir packages are listed.
func Build(sheet *PriceSheet, tournament *Tournament, currency string) ([]*Item, error) {
	if _, ok := sheet.Sheet.Currencies[currency]; !ok {
		return nil, fmt.Errorf("currency not supported by the Counter-Strike 2 store: %s", currency)
	}

	// the last three sections are the first with highlight packages
	highlightStart := math.MaxInt
	highlightsReleased := false
	if tournament != nil && len(tournament.Info.Sections) >= 3 {
		highlightStart = tournament.Info.Sections[len(tournament.Info.Sections)-3].ID
	}
	for _, si := range sheet.Items {
		if si.TournamentID != 0 && strings.Contains(si.NameID, "_champions") {
			highlightsReleased = true
			break
		}
	}

	var items []*Item
	for _, key := range entryKeys(sheet.Sheet.Entries) {
		entry := sheet.Sheet.Entries[key]
		si, ok := sheet.Items[entry.ItemLink]
		if !ok {
			continue
		}
		base := Item{
			ID:                       si.DefIndex,
			Type:                     si.TypeName,
			TournamentID:             si.TournamentID,
			RequiresSupplementalData: si.RequiresSupplementalData,
			Owned:                    -1,
		}
		if len(si.LootList) > 0 && si.LootList[0].TypeName != "" {
			base.Type = si.LootList[0].TypeName
		}
		base.OriginalPrice = entry.Prices[currency]
		base.Price = base.OriginalPrice
		if sale, ok := entry.SalePrices[currency]; ok && sale != 0 {
			base.Price = sale
			if base.OriginalPrice > 0 {
				d := int(math.Round((1 - float64(sale)/float64(base.OriginalPrice)) * 100))
				base.Discount = &d
			}
		}
		if layout, ok := sheet.Sheet.StoreBannerLayout[strconv.Itoa(si.DefIndex)]; ok {
			base.LayoutFormat = layout.CustomFormat
			base.LayoutWeight = layout.Weight
		}

		if !si.RequiresSupplementalData {
			it := base
			it.Name = si.ItemName
			if si.ToolName != "" {
				it.Name = si.ToolName
			}
			it.NameNormalized = table.NormalizeSearch(si.ItemName)
			it.HashName = hashName(si, "", false)
			items = append(items, &it)
			continue
		}
		if tournament == nil {
			continue
		}

		for _, m := range tournament.Matches {
			stage := m.Stats.Reservation.Event.StageID
			section, ok := sectionFor(tournament, stage)
			if !ok || len(m.Stats.Reservation.Teams) < 2 {
				continue
			}
			highlight := section.ID >= highlightStart
			if highlight && !highlightsReleased {
				continue
			}
			mapName := TournamentMaps[m.Stats.MapID]

			it := base
			it.SupplementalData = string(m.ID)
			it.Name = hashName(si, mapName, highlight)
			if it.Name == "" {
				it.Name = si.ItemName
			}
			it.HashName = it.Name
			it.NameNormalized = table.NormalizeSearch(it.Name)
			it.StageID = stage
			it.SectionID = section.ID
			it.SectionName = section.Name
			t1, t2 := m.Stats.Reservation.Teams[0], m.Stats.Reservation.Teams[1]
			it.Team1, it.Team1ID = t1.Name, t1.ID
			it.Team2, it.Team2ID = t2.Name, t2.ID
			if len(m.Stats.TeamScores) >= 2 {
				it.Team1Score, it.Team2Score = m.Stats.TeamScores[0], m.Stats.TeamScores[1]
			}
			it.TeamsNormalized = table.NormalizeSearch(t1.Name + " " + t2.Name)
			items = append(items, &it)
		}
	}

	SortDefault(items)
	return items, nil
}

// entryKeys orders the entry keys numerically where possible.
func entryKeys(entries map[string]Entry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		if errA == nil && errB == nil {
			return cmp.Compare(na, nb)
		}
		return strings.Compare(a, b)
	})
	return keys
}

func sectionFor(t *Tournament, stage int) (Section, bool) {
	for _, s := range t.Info.Sections {
		for _, g := range s.Groups {
			if slices.Contains(g.StageIDs, stage) {
				return s, true
			}
		}
	}
	return Section{}, false
}

// hashName returns the market name of an item, or "" when it has none.
func hashName(si SheetItem, mapName string, highlight bool) string {
	if len(si.LootList) > 0 && si.LootList[0].FullName != "" {
		return si.LootList[0].FullName
	}
	if si.TournamentID != 0 && !si.RequiresSupplementalData {
		return si.ItemName
	}
	if si.RequiresSupplementalData && mapName != "" {
		name := strings.Replace(si.ItemName, "Souvenir Package", mapName+" Souvenir Package", 1)
		if highlight {
			name = strings.Replace(name, "Souvenir Package", "Souvenir Highlight Package", 1)
		}
		return name
	}
	return ""
}

// SortDefault orders items the way the store front does and numbers them:
// sales first, then layout weight descending, newer matches first, then
// older items first.
func SortDefault(items []*Item) {
	slices.SortStableFunc(items, func(a, b *Item) int {
		if (a.Discount != nil) != (b.Discount != nil) {
			if a.Discount != nil {
				return -1
			}
			return 1
		}
		switch {
		case a.LayoutWeight == nil && b.LayoutWeight != nil:
			return 1
		case a.LayoutWeight != nil && b.LayoutWeight == nil:
			return -1
		case a.LayoutWeight != nil && *a.LayoutWeight != *b.LayoutWeight:
			return cmp.Compare(*b.LayoutWeight, *a.LayoutWeight)
		}
		if a.SupplementalData != "" && b.SupplementalData != "" {
			if c := compareNumeric(b.SupplementalData, a.SupplementalData); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for i, it := range items {
		it.DefaultSortOrder = i
	}
}

// compareNumeric compares decimal strings of any length.
func compareNumeric(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// OwnedItem is the part of an inventory item used to count owned copies.
type OwnedItem struct {
	DefIndex   int
	FullName   string
	Attributes map[string]any
}

// MatchOwned sets Owned on every row from the given inventory and stored
// items.
func MatchOwned(items []*Item, owned []OwnedItem) {
	for _, it := range items {
		n := 0
		for _, o := range owned {
			if it.owns(o) {
				n++
			}
		}
		it.Owned = n
	}
}

func (it *Item) owns(o OwnedItem) bool {
	if o.DefIndex == it.ID {
		return true
	}
	if !it.RequiresSupplementalData {
		// coupons are matched by market name
		return it.HashName != "" && o.FullName == it.HashName
	}
	return o.FullName == it.HashName &&
		attrInt(o.Attributes, "tournament event stage id") == it.StageID &&
		attrInt(o.Attributes, "tournament event team0 id") == it.Team1ID &&
		attrInt(o.Attributes, "tournament event team1 id") == it.Team2ID
}

func attrInt(attrs map[string]any, name string) int {
	switch v := attrs[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
