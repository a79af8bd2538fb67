package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cs2interlink/cs2-int/internal/inventory"
)

// filterFlags are the structured filter options of the items commands.
type filterFlags struct {
	expr       string
	wear       string
	float      string
	seed       string
	cosmetics  string
	quality    string
	rarity     string
	itemType   string
	collection string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.expr, "filter", "", `Filter expression, e.g. "type=AK-47, wear=FT, seed=0-100"`)
	fs.StringVar(&f.wear, "wear", "", "Exterior: FN, MW, FT, WW, BS or the full name")
	fs.StringVar(&f.float, "float", "", "Float range, e.g. 0.15-0.2 or 0.9-")
	fs.StringVar(&f.seed, "seed", "", "Pattern seed range, e.g. 661 or 0-100")
	fs.StringVar(&f.cosmetics, "cosmetics", "", "Number of stickers and charms, e.g. 1-")
	fs.StringVar(&f.quality, "quality", "", "Quality name, e.g. StatTrak™")
	fs.StringVar(&f.rarity, "rarity", "", `Rarity name, optionally grouped as "agents/Superior"`)
	fs.StringVar(&f.itemType, "type", "", "Weapon or item type, e.g. AK-47 or Sticker")
	fs.StringVar(&f.collection, "collection", "", `Collection name, or "none"`)
}

// expression joins --filter and the single-term flags into one expression.
func (f *filterFlags) expression() string {
	terms := []string{}
	if s := strings.TrimSpace(f.expr); s != "" {
		terms = append(terms, s)
	}
	for _, t := range []struct{ key, value string }{
		{inventory.FilterType, f.itemType},
		{inventory.FilterQuality, f.quality},
		{inventory.FilterRarity, f.rarity},
		{inventory.FilterWear, f.wear},
		{inventory.FilterFloat, f.float},
		{inventory.FilterSeed, f.seed},
		{inventory.FilterCosmetics, f.cosmetics},
		{inventory.FilterCollection, f.collection},
	} {
		if t.value != "" {
			terms = append(terms, t.key+"="+t.value)
		}
	}
	return strings.Join(terms, ", ")
}

// parse resolves the expression against the choices present in rows.
func (f *filterFlags) parse(rows []*inventory.Item) (*inventory.ItemFilter, error) {
	expr := f.expression()
	if expr == "" {
		return nil, nil
	}
	return inventory.ParseFilter(expr, inventory.ComputeFacets(rows))
}
