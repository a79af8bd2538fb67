package inventory

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cs2interlink/cs2-int/internal/table"
)

// ErrInvalidFilter wraps every ParseFilter error.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter keys in the order Format writes them.
const (
	FilterType       = "type"
	FilterQuality    = "quality"
	FilterRarity     = "rarity"
	FilterWear       = "wear"
	FilterFloat      = "float"
	FilterSeed       = "seed"
	FilterCosmetics  = "cosmetics"
	FilterCollection = "collection"
	FilterSelected   = "selected"
)

// NoCollection is the collection value matching items without one.
const NoCollection = "none"

// ParseFilter reads comma separated key=value terms such as
// "type=AK-47, wear=FT, seed=0-100, selected". Names are matched case
// insensitively against facets. Ranges are "a-b", "a-", "-b" or a single
// value. An empty expression yields nil.
func ParseFilter(expr string, facets Facets) (*ItemFilter, error) {
	f := &ItemFilter{}
	for term := range strings.SplitSeq(expr, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		k, v, _ := strings.Cut(term, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if v == "" && k != FilterSelected {
			return nil, fmt.Errorf("%w: %s needs a value", ErrInvalidFilter, k)
		}

		var err error
		switch k {
		case FilterType:
			f.Type, err = parseType(v, facets)
		case FilterQuality:
			name, ok := lookupFold(slices.Collect(maps.Keys(facets.Qualities)), v)
			if !ok {
				err = unknown(k, v)
				break
			}
			q := facets.Qualities[name]
			f.Quality = &q
		case FilterRarity:
			f.Rarity, err = parseRarity(v, facets)
		case FilterWear:
			w, ok := wearByAnyName(v)
			if !ok {
				err = unknown(k, v)
				break
			}
			f.Wear = w.Name
		case FilterFloat:
			f.Float, err = parseRange(k, v, FloatBounds)
		case FilterSeed:
			f.Seed, err = parseRange(k, v, SeedBounds)
		case FilterCosmetics:
			f.Cosmetics, err = parseRange(k, v, CosmeticsBounds)
		case FilterCollection:
			f.Collection, err = parseCollection(v, facets)
		case FilterSelected:
			f.Selected = v == "" || strings.EqualFold(v, "true") || v == "1"
		default:
			err = fmt.Errorf("%w: unknown key %q", ErrInvalidFilter, k)
		}
		if err != nil {
			return nil, err
		}
	}
	return f.Normalized(), nil
}

func unknown(key, value string) error {
	return fmt.Errorf("%w: no %s %q in this list", ErrInvalidFilter, key, value)
}

func lookupFold(names []string, v string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, v) {
			return n, true
		}
	}
	return "", false
}

func wearByAnyName(v string) (Wear, bool) {
	if w, ok := WearByName(v); ok {
		return w, true
	}
	for _, w := range Wears {
		if strings.EqualFold(w.NameLong, v) {
			return w, true
		}
	}
	return Wear{}, false
}

// parseType prefers the weapon name when a value is both.
func parseType(v string, facets Facets) (*KeyValue[string], error) {
	if n, ok := lookupFold(facets.Types.Weapons, v); ok {
		return &KeyValue[string]{Key: GroupWeapons, Value: n}, nil
	}
	if n, ok := lookupFold(facets.Types.Other, v); ok {
		return &KeyValue[string]{Key: GroupOther, Value: n}, nil
	}
	return nil, unknown(FilterType, v)
}

// parseRarity accepts "Covert" or a grouped "agents/Superior". Ungrouped
// names are looked up in weapons, agents, then other.
func parseRarity(v string, facets Facets) (*KeyValue[int], error) {
	groups := []string{GroupWeapons, GroupAgents, GroupOther}
	if g, name, ok := strings.Cut(v, "/"); ok {
		g = strings.ToLower(strings.TrimSpace(g))
		if !slices.Contains(groups, g) {
			return nil, unknown(FilterRarity, v)
		}
		groups, v = []string{g}, strings.TrimSpace(name)
	}
	for _, g := range groups {
		rarities := facets.Rarities[g]
		if n, ok := lookupFold(slices.Collect(maps.Keys(rarities)), v); ok {
			return &KeyValue[int]{Key: g, Value: rarities[n]}, nil
		}
	}
	return nil, unknown(FilterRarity, v)
}

func parseCollection(v string, facets Facets) (*string, error) {
	if strings.EqualFold(v, NoCollection) && facets.EmptyExists {
		empty := ""
		return &empty, nil
	}
	for _, g := range CollectionGroups {
		if n, ok := lookupFold(facets.Collections[g], v); ok {
			return &n, nil
		}
	}
	return nil, unknown(FilterCollection, v)
}

func parseRange(key, v string, bounds table.Range) (*table.Range, error) {
	lo, hi, isRange := strings.Cut(v, "-")
	if !isRange {
		hi = lo
	}
	r := &table.Range{}
	for _, side := range []struct {
		text string
		dst  **float64
	}{{lo, &r.Min}, {hi, &r.Max}} {
		text := strings.TrimSpace(side.text)
		if text == "" {
			continue
		}
		n, err := strconv.ParseFloat(text, 64)
		if err != nil || n < *bounds.Min || n > *bounds.Max {
			return nil, fmt.Errorf("%w: %s %q outside %s", ErrInvalidFilter, key, text, formatRange(&bounds))
		}
		*side.dst = table.Bound(n)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return nil, fmt.Errorf("%w: %s %q has min above max", ErrInvalidFilter, key, v)
	}
	if r.IsZero() {
		return nil, nil
	}
	return r, nil
}

func formatRange(r *table.Range) string {
	f := func(p *float64) string {
		if p == nil {
			return ""
		}
		return strconv.FormatFloat(*p, 'f', -1, 64)
	}
	if r.Min != nil && r.Max != nil && *r.Min == *r.Max {
		return f(r.Min)
	}
	return f(r.Min) + "-" + f(r.Max)
}

// Format writes f in the syntax ParseFilter reads. facets supply the names
// of quality and rarity values.
func (f *ItemFilter) Format(facets Facets) string {
	if f == nil {
		return ""
	}
	var terms []string
	add := func(k, v string) { terms = append(terms, k+"="+v) }

	if f.Type != nil {
		add(FilterType, f.Type.Value)
	}
	if f.Quality != nil {
		for name, q := range facets.Qualities {
			if q == *f.Quality {
				add(FilterQuality, name)
				break
			}
		}
	}
	if f.Rarity != nil {
		for name, r := range facets.Rarities[f.Rarity.Key] {
			if r == f.Rarity.Value {
				add(FilterRarity, f.Rarity.Key+"/"+name)
				break
			}
		}
	}
	if f.Wear != "" {
		add(FilterWear, f.Wear)
	}
	for _, r := range []struct {
		key string
		rng *table.Range
	}{{FilterFloat, f.Float}, {FilterSeed, f.Seed}, {FilterCosmetics, f.Cosmetics}} {
		if r.rng != nil && !r.rng.IsZero() {
			add(r.key, formatRange(r.rng))
		}
	}
	if f.Collection != nil {
		c := *f.Collection
		if c == "" {
			c = NoCollection
		}
		add(FilterCollection, c)
	}
	if f.Selected {
		terms = append(terms, FilterSelected)
	}
	return strings.Join(terms, ", ")
}

// Hint summarizes the choices a filter can use.
func (fc Facets) Hint() string {
	var parts []string
	if len(fc.Wears) > 0 {
		parts = append(parts, "wear "+strings.Join(fc.Wears, "/"))
	}
	if fc.Float.Seen() {
		parts = append(parts, fmt.Sprintf("float %g-%g", fc.Float.Min, fc.Float.Max))
	}
	if fc.Seed.Seen() {
		parts = append(parts, fmt.Sprintf("seed %g-%g", fc.Seed.Min, fc.Seed.Max))
	}
	if n := len(fc.Types.Weapons) + len(fc.Types.Other); n > 0 {
		parts = append(parts, fmt.Sprintf("%d types", n))
	}
	if len(fc.Qualities) > 0 {
		parts = append(parts, "quality "+strings.Join(slices.Sorted(maps.Keys(fc.Qualities)), "/"))
	}
	n := 0
	for _, c := range fc.Collections {
		n += len(c)
	}
	if n > 0 {
		parts = append(parts, fmt.Sprintf("%d collections", n))
	}
	return strings.Join(parts, " · ")
}
