package cache

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
)

type crate struct {
	ID    string   `json:"id"`
	Count int      `json:"items_count"`
	Items []uint64 `json:"items"`
}

func openTemp(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestSetGetValue(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()

	want := crate{ID: "123", Count: 2, Items: []uint64{76561198000000001, 2}}
	if err := c.SetValue(ctx, "crate_123", want); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	var got crate
	ok, err := c.GetValue(ctx, "crate_123", &got)
	if err != nil || !ok {
		t.Fatalf("Expected value, got ok=%v err=%v", ok, err)
	}
	if got.ID != want.ID || got.Count != want.Count || !slices.Equal(got.Items, want.Items) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	ok, err = c.GetValue(ctx, "missing", &got)
	if ok || err != nil {
		t.Errorf("Expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestGetDefault(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()

	if got := Get(ctx, c, "absent", 7); got != 7 {
		t.Errorf("Expected default 7, got %d", got)
	}
	if err := c.SetValue(ctx, "n", 9); err != nil {
		t.Fatal(err)
	}
	if got := Get(ctx, c, "n", 7); got != 9 {
		t.Errorf("Expected 9, got %d", got)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	c, path := openTemp(t)
	ctx := context.Background()
	if err := c.SetValue(ctx, "inventory_1", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	c.Close()

	reopened, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got := Get[[]string](ctx, reopened, "inventory_1", nil)
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Expected persisted value, got %v", got)
	}
}

func TestInvalidKeyClearsCache(t *testing.T) {
	c, path := openTemp(t)
	ctx := context.Background()
	if err := c.SetValue(ctx, "inventory_1", "data"); err != nil {
		t.Fatal(err)
	}

	// replace the master key so the sentinel no longer opens
	if _, err := c.db.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = ?`, make([]byte, 32), masterKeyName); err != nil {
		t.Fatal(err)
	}
	c.Close()

	reopened, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	keys, err := reopened.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected cache cleared, got keys %v", keys)
	}
	var n int
	if ok, err := reopened.GetValue(ctx, sentinelKey, &n); !ok || err != nil || n != 42 {
		t.Errorf("Expected fresh sentinel, got %d ok=%v err=%v", n, ok, err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		if err := c.SetValue(ctx, k, k); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	keys, _ := c.Keys(ctx)
	if !slices.Equal(keys, []string{"a", "c"}) {
		t.Errorf("Expected [a c], got %v", keys)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	keys, _ = c.Keys(ctx)
	if len(keys) != 0 {
		t.Errorf("Expected empty cache, got %v", keys)
	}
	if err := c.SetValue(ctx, "after", 1); err != nil {
		t.Errorf("Expected cache usable after clear, got %v", err)
	}
}
