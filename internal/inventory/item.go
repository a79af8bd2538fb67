// Package inventory loads a bot's CS2 inventory and storage unit contents
// and presents them as rows of an item table.
package inventory

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/table"
)

// AssetID is a Steam asset id. The service sends it either as a JSON
// number or, when large, as a string.
type AssetID uint64

func (id *AssetID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid asset id %s: %w", b, err)
	}
	*id = AssetID(n)
	return nil
}

func (id AssetID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ItemInfo is the game coordinator's description of an item.
type ItemInfo struct {
	ID        AssetID  `json:"id"`
	DefIndex  int      `json:"def_index"`
	Rarity    int      `json:"rarity"`
	Quality   int      `json:"quality"`
	PaintWear *float64 `json:"paintwear,omitempty"`
}

// Cosmetic is a sticker, patch or charm applied to an item.
type Cosmetic struct {
	FullName string `json:"full_name"`
}

// Item is one inventory or storage unit entry. The exported JSON fields are
// what the service returns and what the cache stores; the remaining fields
// are derived by normalize.
type Item struct {
	ItemInfo    ItemInfo            `json:"iteminfo"`
	Attributes  map[string]any      `json:"attributes"`
	FullName    string              `json:"full_name"`
	WearName    string              `json:"wear_name,omitempty"`
	SetName     string              `json:"set_name,omitempty"`
	CrateName   string              `json:"crate_name,omitempty"`
	TypeName    string              `json:"type_name,omitempty"`
	WeaponName  string              `json:"weapon_name,omitempty"`
	QualityName string              `json:"quality_name,omitempty"`
	RarityName  string              `json:"rarity_name,omitempty"`
	StatTrak    bool                `json:"stattrak,omitempty"`
	Commodity   bool                `json:"commodity,omitempty"`
	Moveable    bool                `json:"moveable"`
	Stickers    map[string]Cosmetic `json:"stickers,omitempty"`
	Keychains   map[string]Cosmetic `json:"keychains,omitempty"`
	Wear        *float64            `json:"wear,omitempty"`
	WearMin     *float64            `json:"wear_min,omitempty"`
	WearMax     *float64            `json:"wear_max,omitempty"`
	CasketID    AssetID             `json:"casket_id,omitempty"`

	Name           string `json:"-"`
	NameNormalized string `json:"-"`
	CollectionName string `json:"-"`
	Collection     string `json:"-"`
	Rarity         *int   `json:"-"`
	Seed           *int   `json:"-"`
	Quality        int    `json:"-"`
	CasketName     string `json:"-"`
	Cosmetics      int    `json:"-"`
}

// ID returns the asset id.
func (it *Item) ID() AssetID { return it.ItemInfo.ID }

// RowID implements table.Row.
func (it *Item) RowID() string { return it.ItemInfo.ID.String() }

// IsStorageUnit reports whether the item is a storage unit.
func (it *Item) IsStorageUnit() bool {
	return it.ItemInfo.DefIndex == constants.StorageUnitDefIndex
}

// IsTradeProtected reports whether the item is held in trade protection
// and so does not count against the inventory limit.
func (it *Item) IsTradeProtected() bool {
	_, ok := it.Attributes["trade protected escrow date"]
	return ok
}

// Value implements table.Row.
func (it *Item) Value(column string) table.Value {
	switch column {
	case "id":
		return table.Num(float64(it.ItemInfo.ID))
	case "casket_id":
		if it.CasketID == 0 {
			return table.Undefined
		}
		return table.Num(float64(it.CasketID))
	case "casket_name":
		if it.CasketID == 0 {
			return table.Undefined
		}
		if it.CasketName != "" {
			return table.Str(it.CasketName)
		}
		return table.Num(float64(it.CasketID))
	case "name":
		return table.OptStr(it.Name)
	case "name_normalized":
		return table.OptStr(it.NameNormalized)
	case "wear":
		return table.OptNum(it.Wear)
	case "rarity":
		return table.OptNum(it.Rarity)
	case "quality":
		return table.Int(int64(it.Quality))
	case "collection":
		return table.OptStr(it.Collection)
	case "seed":
		return table.OptNum(it.Seed)
	case "cosmetics":
		return table.Int(int64(it.Cosmetics))
	default:
		return table.Undefined
	}
}

// attrFloat returns a numeric attribute.
func (it *Item) attrFloat(name string) (float64, bool) {
	switch v := it.Attributes[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// attrString returns an attribute rendered as text.
func (it *Item) attrString(name string) (string, bool) {
	switch v := it.Attributes[name].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

// Wear is an exterior band of the float range.
type Wear struct {
	Min, Max float64
	Name     string
	NameLong string
}

// Wears lists the exterior bands in float order.
var Wears = []Wear{
	{0.00, 0.07, "FN", "Factory New"},
	{0.07, 0.15, "MW", "Minimum Wear"},
	{0.15, 0.38, "FT", "Field-Tested"},
	{0.38, 0.45, "WW", "Well-Worn"},
	{0.45, 1.00, "BS", "Battle-Scarred"},
}

// WearFor returns the first band containing v.
func WearFor(v float64) (Wear, bool) {
	for _, w := range Wears {
		if v >= w.Min && v <= w.Max {
			return w, true
		}
	}
	return Wear{}, false
}

// WearByName returns the band with the short name, e.g. "FT".
func WearByName(name string) (Wear, bool) {
	for _, w := range Wears {
		if strings.EqualFold(w.Name, name) {
			return w, true
		}
	}
	return Wear{}, false
}

// normalize derives the sortable and searchable fields of it. caskets maps
// storage unit ids to their units.
func (it *Item) normalize(caskets map[AssetID]*Item) {
	it.Name = it.FullName
	if it.WearName != "" && strings.HasSuffix(it.FullName, " ("+it.WearName+")") {
		it.Name = strings.TrimSuffix(it.FullName, " ("+it.WearName+")")
	}
	it.NameNormalized = table.NormalizeSearch(it.Name)

	it.CollectionName = it.SetName
	if it.CollectionName == "" && it.CrateName != "" {
		name := it.CrateName
		if strings.HasSuffix(name, " Autograph Capsule") {
			name = strings.TrimSuffix(name, " Autograph Capsule") + " Autographs"
		}
		it.CollectionName = strings.TrimSuffix(name, " Capsule")
	}
	c := strings.TrimPrefix(it.CollectionName, "The ")
	c = strings.TrimSuffix(c, " Collection")
	c = strings.TrimPrefix(c, "Operation ")
	it.Collection = strings.TrimSuffix(c, " Autographs")

	// crates and similar items have a rarity that sorts badly; leave it unset
	it.Rarity = nil
	if it.Collection != "" || it.ItemInfo.Rarity > 1 {
		r := it.ItemInfo.Rarity
		it.Rarity = &r
	}

	it.Seed = nil
	if s, ok := it.attrFloat("set item texture seed"); ok {
		seed := int(math.Floor(s))
		it.Seed = &seed
	} else if s, ok := it.attrFloat("keychain slot 0 seed"); ok {
		seed := int(s)
		it.Seed = &seed
	}

	stattrak := 0
	if it.StatTrak {
		stattrak = 1
	}
	switch it.ItemInfo.Quality {
	case 3: // ★
		it.Quality = 4 + stattrak
	case 12: // souvenir
		it.Quality = 1
	case 13: // highlight
		it.Quality = 3
	default:
		it.Quality = stattrak * 2
	}

	it.CasketName = ""
	if it.CasketID != 0 {
		if casket, ok := caskets[it.CasketID]; ok {
			it.CasketName, _ = casket.attrString("custom name attr")
		}
	}

	it.Cosmetics = 0
	if len(it.Keychains) > 0 {
		it.Cosmetics++
	}
	if len(it.Stickers) > 0 {
		for slot := range constants.StickerMaxCount {
			if id, ok := it.attrFloat(fmt.Sprintf("sticker slot %d id", slot)); ok && id != 0 {
				it.Cosmetics++
			}
		}
	}
}

// CasketLabel returns the storage unit's display name, or its id.
func (it *Item) CasketLabel() string {
	if it.CasketName != "" {
		return it.CasketName
	}
	if it.CasketID != 0 {
		return it.CasketID.String()
	}
	return ""
}

// UnitName returns a storage unit's custom name, or its id.
func (it *Item) UnitName() string {
	if name, ok := it.attrString("custom name attr"); ok && name != "" {
		return name
	}
	return it.RowID()
}

// UnitCount returns a storage unit's "items count" attribute.
func (it *Item) UnitCount() int {
	n, _ := it.attrFloat("items count")
	return int(n)
}
