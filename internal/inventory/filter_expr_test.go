package inventory

import (
	"errors"
	"testing"
)

func testFacets() Facets {
	f := Facets{
		Qualities: map[string]int{"Normal": 0, "StatTrak™": 2, "★": 4},
		Rarities: map[string]map[string]int{
			GroupWeapons: {"Covert": 6, "Classified": 5},
			GroupAgents:  {"Superior": 5},
			GroupOther:   {"Remarkable": 4},
		},
		Collections: map[string][]string{
			"weapons":  {"The Mirage Collection"},
			"stickers": {"Paris 2023 Legends"},
		},
		EmptyExists: true,
	}
	f.Types.Weapons = []string{"AK-47", "AWP"}
	f.Types.Other = []string{"Agent", "Sticker"}
	return f
}

func TestParseFilter(t *testing.T) {
	facets := testFacets()

	f, err := ParseFilter("type=awp, quality=stattrak™, rarity=covert, wear=MW, seed=10-20, cosmetics=1-, selected", facets)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type == nil || f.Type.Key != GroupWeapons || f.Type.Value != "AWP" {
		t.Errorf("Unexpected type %+v", f.Type)
	}
	if f.Quality == nil || *f.Quality != 2 {
		t.Errorf("Unexpected quality %v", f.Quality)
	}
	if f.Rarity == nil || f.Rarity.Key != GroupWeapons || f.Rarity.Value != 6 {
		t.Errorf("Unexpected rarity %+v", f.Rarity)
	}
	if f.Wear != "MW" || !f.Selected {
		t.Errorf("Unexpected wear/selected %q %v", f.Wear, f.Selected)
	}
	if *f.Seed.Min != 10 || *f.Seed.Max != 20 || *f.Cosmetics.Min != 1 || f.Cosmetics.Max != nil {
		t.Errorf("Unexpected ranges %+v %+v", f.Seed, f.Cosmetics)
	}

	f, err = ParseFilter("type=Agent, rarity=agents/superior, collection=none, float=0.25", facets)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type.Key != GroupOther || f.Rarity.Key != GroupAgents || f.Rarity.Value != 5 {
		t.Errorf("Unexpected grouped values %+v %+v", f.Type, f.Rarity)
	}
	if f.Collection == nil || *f.Collection != "" {
		t.Errorf("Expected empty collection, got %v", f.Collection)
	}
	if *f.Float.Min != 0.25 || *f.Float.Max != 0.25 {
		t.Errorf("Expected exact float, got %+v", f.Float)
	}

	if f, err := ParseFilter(" , ", facets); err != nil || f != nil {
		t.Errorf("Expected nil filter for blank input, got %+v %v", f, err)
	}
}

func TestParseFilterErrors(t *testing.T) {
	facets := testFacets()
	for _, expr := range []string{
		"type=M4A4",
		"quality=souvenir",
		"rarity=contraband",
		"rarity=gloves/covert",
		"wear=XX",
		"float=0.5-0.2",
		"float=2",
		"seed=-5-10",
		"seed=abc",
		"collection=The Dust Collection",
		"colour=red",
		"type=",
	} {
		if _, err := ParseFilter(expr, facets); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("ParseFilter(%q) = %v, want ErrInvalidFilter", expr, err)
		}
	}
}

func TestFilterFormatRoundTrip(t *testing.T) {
	facets := testFacets()
	for _, expr := range []string{
		"type=AK-47",
		"quality=★, rarity=weapons/Classified",
		"rarity=other/Remarkable, wear=FT, float=0.15-0.2",
		"seed=0-, cosmetics=-3",
		"collection=Paris 2023 Legends, selected",
		"collection=none",
	} {
		f, err := ParseFilter(expr, facets)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", expr, err)
		}
		if got := f.Format(facets); got != expr {
			t.Errorf("Format() = %q, want %q", got, expr)
		}
	}
	var none *ItemFilter
	if none.Format(facets) != "" {
		t.Error("Expected empty text for no filter")
	}
}
