package inventory

import (
	"math"
	"slices"

	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/table"
)

// Group keys shared by the type and rarity constraints.
const (
	GroupWeapons = "weapons"
	GroupAgents  = "agents"
	GroupOther   = "other"
)

// KeyValue constrains a grouped category, e.g. {weapons, "AK-47"}.
type KeyValue[T comparable] struct {
	Key   string
	Value T
}

// ItemFilter is a conjunction of optional constraints. A nil field is
// unconstrained.
type ItemFilter struct {
	Type       *KeyValue[string]
	Quality    *int
	Rarity     *KeyValue[int]
	Wear       string // exterior short name; applies when Float is unset
	Float      *table.Range
	Seed       *table.Range
	Cosmetics  *table.Range
	Collection *string
	// Selected keeps only the rows selected when the filter was applied.
	Selected bool
}

// Normalized returns nil when f constrains nothing.
func (f *ItemFilter) Normalized() *ItemFilter {
	if f == nil {
		return nil
	}
	empty := func(r *table.Range) bool { return r == nil || r.IsZero() }
	if f.Type == nil && f.Quality == nil && f.Rarity == nil && f.Wear == "" &&
		empty(f.Float) && empty(f.Seed) && empty(f.Cosmetics) &&
		f.Collection == nil && !f.Selected {
		return nil
	}
	return f
}

// isWeaponLike reports whether the item has a float and is not gloves, the
// grouping the filters use for "weapons".
func (it *Item) isWeaponLike() bool {
	return it.Wear != nil && it.TypeName != "Gloves"
}

// Matches reports whether it passes f. saved holds the ids selected when
// f was applied and is consulted only for Selected.
func (f *ItemFilter) Matches(it *Item, saved map[string]struct{}) bool {
	if f == nil {
		return true
	}
	if f.Selected {
		if _, ok := saved[it.RowID()]; !ok {
			return false
		}
	}

	floatRange := f.Float
	if (floatRange == nil || floatRange.IsZero()) && f.Wear != "" {
		if w, ok := WearByName(f.Wear); ok {
			floatRange = &table.Range{Min: table.Bound(w.Min), Max: table.Bound(w.Max)}
		}
	}
	if floatRange != nil && !floatRange.IsZero() && !floatRange.Contains(it.Value("wear")) {
		return false
	}
	if f.Seed != nil && !f.Seed.IsZero() && !f.Seed.Contains(it.Value("seed")) {
		return false
	}
	if f.Cosmetics != nil && !f.Cosmetics.IsZero() && !f.Cosmetics.Contains(it.Value("cosmetics")) {
		return false
	}

	if f.Quality != nil && it.Quality != *f.Quality {
		return false
	}

	if f.Rarity != nil {
		switch f.Rarity.Key {
		case GroupWeapons:
			if !it.isWeaponLike() {
				return false
			}
		case GroupAgents:
			if it.TypeName != "Agent" {
				return false
			}
		case GroupOther:
			if it.isWeaponLike() || it.TypeName == "Agent" {
				return false
			}
		}
		if it.ItemInfo.Rarity != f.Rarity.Value {
			return false
		}
	}

	if f.Type != nil {
		switch f.Type.Key {
		case GroupWeapons:
			if it.WeaponName != f.Type.Value {
				return false
			}
		case GroupOther:
			if it.TypeName != f.Type.Value {
				return false
			}
		}
	}

	if f.Collection != nil && it.CollectionName != *f.Collection {
		return false
	}
	return true
}

// MinMax is an observed numeric range. Both are zero when nothing was seen.
type MinMax struct {
	Min, Max float64
	seen     bool
}

func (m *MinMax) observe(v float64) {
	if !m.seen {
		m.Min, m.Max, m.seen = v, v, true
		return
	}
	m.Min = math.Min(m.Min, v)
	m.Max = math.Max(m.Max, v)
}

// Seen reports whether any value was observed.
func (m MinMax) Seen() bool { return m.seen }

// Facets are the filter choices available for a dataset.
type Facets struct {
	Types struct {
		Weapons []string
		Other   []string
	}
	// Qualities maps quality names to the normalized quality.
	Qualities map[string]int
	// Rarities maps rarity names to the raw rarity, per group.
	Rarities map[string]map[string]int
	Float    MinMax
	// Wears lists the exteriors present, in float order.
	Wears     []string
	Seed      MinMax
	Cosmetics MinMax
	// Collections lists collection names per group: weapons, stickers,
	// charms, agents, patches, graffiti, other.
	Collections map[string][]string
	// EmptyExists is set when some item has no collection.
	EmptyExists bool
}

// CollectionGroups lists the collection buckets in display order.
var CollectionGroups = []string{"weapons", "agents", "stickers", "patches", "charms", "graffiti", "other"}

// ComputeFacets scans items once.
func ComputeFacets(items []*Item) Facets {
	f := Facets{
		Qualities: map[string]int{},
		Rarities: map[string]map[string]int{
			GroupWeapons: {},
			GroupAgents:  {},
			GroupOther:   {},
		},
		Collections: map[string][]string{},
	}
	weaponTypes := map[string]bool{}
	otherTypes := map[string]bool{}
	wears := map[string]bool{}
	collections := map[string]map[string]bool{}

	for _, it := range items {
		if it.TypeName != "" {
			otherTypes[it.TypeName] = true
		}
		if it.WeaponName != "" {
			weaponTypes[it.WeaponName] = true
		}
		if it.QualityName != "" {
			f.Qualities[it.QualityName] = it.Quality
		}
		if it.RarityName != "" {
			group := GroupOther
			switch {
			case it.isWeaponLike():
				group = GroupWeapons
			case it.TypeName == "Agent":
				group = GroupAgents
			}
			f.Rarities[group][it.RarityName] = it.ItemInfo.Rarity
		}
		if it.Wear != nil {
			f.Float.observe(*it.Wear)
			if w, ok := WearFor(*it.Wear); ok {
				wears[w.Name] = true
			}
		}
		if it.Seed != nil {
			f.Seed.observe(float64(*it.Seed))
		}
		f.Cosmetics.observe(float64(it.Cosmetics))

		if it.CollectionName == "" {
			f.EmptyExists = true
			continue
		}
		group := "other"
		switch {
		case it.Wear != nil:
			group = "weapons"
		case it.TypeName == "Sticker":
			group = "stickers"
		case it.TypeName == "Charm":
			group = "charms"
		case it.TypeName == "Agent":
			group = "agents"
		case it.TypeName == "Patch":
			group = "patches"
		case it.TypeName == "Graffiti":
			group = "graffiti"
		}
		if collections[group] == nil {
			collections[group] = map[string]bool{}
		}
		collections[group][it.CollectionName] = true
	}

	if f.Float.seen {
		f.Float.Min = math.Floor(f.Float.Min*100) / 100
		f.Float.Max = math.Ceil(f.Float.Max*100) / 100
	}
	f.Types.Weapons = sortedKeys(weaponTypes)
	f.Types.Other = sortedKeys(otherTypes)
	for _, w := range Wears {
		if wears[w.Name] {
			f.Wears = append(f.Wears, w.Name)
		}
	}
	for group, set := range collections {
		f.Collections[group] = sortedKeys(set)
	}
	return f
}

// FloatBounds and friends are the widest ranges the filter accepts.
var (
	FloatBounds     = table.Range{Min: table.Bound(constants.FloatMin), Max: table.Bound(constants.FloatMax)}
	SeedBounds      = table.Range{Min: table.Bound(constants.SeedMin), Max: table.Bound(constants.SeedMax)}
	CosmeticsBounds = table.Range{Min: table.Bound(0), Max: table.Bound(constants.StickerMaxCount + constants.KeychainMaxCount)}
)

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
