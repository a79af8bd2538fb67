package inventory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/cs2interlink/cs2-int/internal/asf"
	"github.com/cs2interlink/cs2-int/internal/cache"
	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/logging"
)

var (
	// ErrInterfaceNotConnected means the game interface is not running and
	// nothing usable is cached.
	ErrInterfaceNotConnected = errors.New("interface is not connected")
	// ErrFailedToLoad means the inventory or a storage unit could not be read.
	ErrFailedToLoad = errors.New("inventory failed to load")
)

// Service is the subset of the ASF client the loader uses.
type Service interface {
	Send(ctx context.Context, operation, path, method, target string, data map[string]string) (json.RawMessage, error)
	BotPluginStatus(ctx context.Context, bot string) (*asf.PluginStatus, error)
	RestartInterface(ctx context.Context, bot string, autoStopMinutes int) error
}

// Account identifies whose inventory is loaded.
type Account struct {
	Bot             string
	SteamID         string
	AutoStopMinutes int
}

// Inventory is a loaded inventory plus the contents of its storage units.
type Inventory struct {
	Items       []*Item
	StoredItems []*Item
	// LoadedFromCache is set when the service was unreachable and the
	// cached lists were used instead.
	LoadedFromCache bool
}

// StorageUnits returns the storage units in the inventory.
func (inv *Inventory) StorageUnits() []*Item {
	var units []*Item
	for _, it := range inv.Items {
		if it.IsStorageUnit() {
			units = append(units, it)
		}
	}
	return units
}

// Moveable returns the inventory items that can go into a storage unit.
func (inv *Inventory) Moveable() []*Item {
	var out []*Item
	for _, it := range inv.Items {
		if it.Moveable {
			out = append(out, it)
		}
	}
	return out
}

// StoredIn returns the stored items of one unit.
func (inv *Inventory) StoredIn(unit AssetID) []*Item {
	var out []*Item
	for _, it := range inv.StoredItems {
		if it.CasketID == unit {
			out = append(out, it)
		}
	}
	return out
}

// UnprotectedCount returns the number of inventory items that count
// against the inventory limit.
func (inv *Inventory) UnprotectedCount() int {
	n := 0
	for _, it := range inv.Items {
		if !it.IsTradeProtected() {
			n++
		}
	}
	return n
}

func (inv *Inventory) normalize() {
	caskets := make(map[AssetID]*Item)
	for _, it := range inv.Items {
		if it.IsStorageUnit() {
			caskets[it.ID()] = it
		}
	}
	for _, it := range inv.Items {
		it.normalize(caskets)
	}
	for _, it := range inv.StoredItems {
		it.normalize(caskets)
	}
}

// crateEntry is the cached content of one storage unit, together with the
// unit attributes it was read under.
type crateEntry struct {
	Attributes map[string]any `json:"attributes"`
	Items      []*Item        `json:"items"`
}

// Loader reads inventories through the service and keeps the cache in
// step with completed transfers.
type Loader struct {
	svc      Service
	cache    cache.Store
	account  Account
	log      *logging.Logger
	reporter logging.ErrorReporter

	// Sleep waits between storage unit reads. Defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// CrateDelay is waited after each storage unit read from the service.
	CrateDelay time.Duration

	mu sync.Mutex // serializes cache read-modify-write after transfers
}

// NewLoader creates a loader. reporter may be nil to report through log.
func NewLoader(svc Service, store cache.Store, account Account, log *logging.Logger, reporter logging.ErrorReporter) *Loader {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if reporter == nil {
		reporter = log
	}
	return &Loader{
		svc:        svc,
		cache:      store,
		account:    account,
		log:        log,
		reporter:   reporter,
		Sleep:      sleepCtx,
		CrateDelay: constants.CrateOpenDelay,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Loader) inventoryKey() string {
	id := l.account.SteamID
	if id == "" {
		id = l.account.Bot
	}
	return "inventory_" + id
}

func crateKey(id AssetID) string {
	return "crate_" + id.String()
}

// LoadInventory fetches the item list when the interface is ready and
// caches it. When the service cannot deliver it, the cached list is used.
func (l *Loader) LoadInventory(ctx context.Context) (*Inventory, error) {
	var items []*Item

	status, err := l.svc.BotPluginStatus(ctx, l.account.Bot)
	if err == nil && status.Ready() {
		var raw json.RawMessage
		raw, err = l.svc.Send(ctx, "CS2Interface", "Inventory", nethttp.MethodGet, l.account.Bot, nil)
		if err == nil {
			var fetched []*Item
			if err = json.Unmarshal(raw, &fetched); err == nil {
				items = fetched
				if cerr := l.cache.SetValue(ctx, l.inventoryKey(), items); cerr != nil {
					l.log.Warn().Err(cerr).Msg("Failed to cache inventory")
				}
			}
		}
	}
	if err != nil {
		l.reporter.ShowError(logging.LevelLow, err)
	}

	inv := &Inventory{Items: items}
	if items == nil {
		ok, cerr := l.cache.GetValue(ctx, l.inventoryKey(), &inv.Items)
		if cerr != nil || !ok {
			return nil, ErrInterfaceNotConnected
		}
		inv.LoadedFromCache = true
		l.log.Info().Int("items", len(inv.Items)).Msg("Inventory loaded from cache")
	}
	inv.normalize()
	return inv, nil
}

// LoadCrateContents opens every storage unit of inv and normalizes all
// items. progress receives "Loading Storage Unit Contents (n/N)".
func (l *Loader) LoadCrateContents(ctx context.Context, inv *Inventory, progress func(message string, fraction float64)) error {
	if progress == nil {
		progress = func(string, float64) {}
	}
	units := inv.StorageUnits()
	report := func(n int) {
		fraction := 1.0
		if len(units) > 0 {
			fraction = float64(n) / float64(len(units))
		}
		progress(fmt.Sprintf("Loading Storage Unit Contents (%d/%d)", n, len(units)), fraction)
	}

	report(0)
	inv.StoredItems = inv.StoredItems[:0]
	for i, unit := range units {
		stored, err := l.openCrate(ctx, inv, unit)
		if err != nil {
			return err
		}
		inv.StoredItems = append(inv.StoredItems, stored...)
		report(i + 1)
	}
	inv.normalize()
	return nil
}

func (l *Loader) openCrate(ctx context.Context, inv *Inventory, unit *Item) ([]*Item, error) {
	key := crateKey(unit.ID())

	var cached crateEntry
	ok, err := l.cache.GetValue(ctx, key, &cached)
	if err != nil {
		l.log.Debug().Err(err).Str("key", key).Msg("Ignoring unreadable cache entry")
		ok = false
	}
	if ok && (inv.LoadedFromCache || crateFresh(cached.Attributes, unit)) {
		return cached.Items, nil
	}
	if inv.LoadedFromCache {
		return nil, fmt.Errorf("failed to load storage unit %s from cache: %w", unit.RowID(), ErrInterfaceNotConnected)
	}

	path := "GetCrateContents/" + unit.RowID()
	for range constants.CrateOpenAttempts {
		raw, err := l.svc.Send(ctx, "CS2Interface", path, nethttp.MethodGet, l.account.Bot, nil)
		if err == nil {
			var stored []*Item
			if err := json.Unmarshal(raw, &stored); err != nil || stored == nil {
				l.reporter.ShowError(logging.LevelLow, fmt.Errorf("storage unit %s returned no contents", unit.RowID()))
				break
			}
			for _, it := range stored {
				if it.CasketID == 0 {
					it.CasketID = unit.ID()
				}
			}
			if err := l.cache.SetValue(ctx, key, crateEntry{Attributes: unit.Attributes, Items: stored}); err != nil {
				l.log.Warn().Err(err).Str("key", key).Msg("Failed to cache storage unit")
			}
			// the service rate limits storage unit reads
			if err := l.Sleep(ctx, l.CrateDelay); err != nil {
				return nil, err
			}
			return stored, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.reporter.ShowError(logging.LevelLow, err)

		if asf.IsTimeout(err) {
			l.reporter.ShowError(logging.LevelLow, errors.New("timed out while opening storage unit, reconnecting to interface"))
			if rerr := l.svc.RestartInterface(ctx, l.account.Bot, l.account.AutoStopMinutes); rerr != nil {
				l.reporter.ShowError(logging.LevelLow, rerr)
				break
			}
		}
	}
	return nil, fmt.Errorf("failed to open storage unit %s: %w", unit.RowID(), ErrFailedToLoad)
}

// crateFresh reports whether cached contents still match the unit: its
// modification date is not newer and its item count is unchanged.
func crateFresh(cached map[string]any, unit *Item) bool {
	c := &Item{Attributes: cached}
	cachedDate, ok1 := c.attrFloat("modification date")
	currentDate, ok2 := unit.attrFloat("modification date")
	cachedCount, ok3 := c.attrFloat("items count")
	currentCount, ok4 := unit.attrFloat("items count")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return cachedDate >= currentDate && cachedCount == currentCount
}

// StoreItem moves item into unit and updates the cached lists.
func (l *Loader) StoreItem(ctx context.Context, item, unit *Item) error {
	path := fmt.Sprintf("StoreItem/%s/%s", unit.RowID(), item.RowID())
	if _, err := l.svc.Send(ctx, "CS2Interface", path, nethttp.MethodGet, l.account.Bot, nil); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateCache(ctx, unit.ID(), func(crate *crateEntry, inventory []*Item) []*Item {
		moved := *item
		moved.CasketID = unit.ID()
		crate.Items = append(crate.Items, &moved)
		sortByIDDesc(crate.Items)
		adjustCount(crate.Attributes, 1)
		return slices.DeleteFunc(inventory, func(it *Item) bool { return it.ID() == item.ID() })
	})
	return nil
}

// RetrieveItem moves a stored item back into the inventory and updates the
// cached lists.
func (l *Loader) RetrieveItem(ctx context.Context, item *Item) error {
	path := fmt.Sprintf("RetrieveItem/%s/%s", item.CasketID, item.RowID())
	if _, err := l.svc.Send(ctx, "CS2Interface", path, nethttp.MethodGet, l.account.Bot, nil); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateCache(ctx, item.CasketID, func(crate *crateEntry, inventory []*Item) []*Item {
		crate.Items = slices.DeleteFunc(crate.Items, func(it *Item) bool { return it.ID() == item.ID() })
		adjustCount(crate.Attributes, -1)
		moved := *item
		moved.CasketID = 0
		inventory = append(inventory, &moved)
		sortByIDDesc(inventory)
		return inventory
	})
	return nil
}

// updateCache applies change to the cached unit and inventory. Nothing is
// written unless both are cached.
func (l *Loader) updateCache(ctx context.Context, unit AssetID, change func(*crateEntry, []*Item) []*Item) {
	var crate crateEntry
	var inventory []*Item
	okCrate, err1 := l.cache.GetValue(ctx, crateKey(unit), &crate)
	okInv, err2 := l.cache.GetValue(ctx, l.inventoryKey(), &inventory)
	if err := errors.Join(err1, err2); err != nil || !okCrate || !okInv {
		return
	}

	if crate.Attributes == nil {
		crate.Attributes = map[string]any{}
	}
	inventory = change(&crate, inventory)
	crate.Attributes["modification date"] = float64(time.Now().Unix())

	if err := l.cache.SetValue(ctx, crateKey(unit), crate); err != nil {
		l.log.Warn().Err(err).Msg("Failed to update cached storage unit")
	}
	if err := l.cache.SetValue(ctx, l.inventoryKey(), inventory); err != nil {
		l.log.Warn().Err(err).Msg("Failed to update cached inventory")
	}
}

func adjustCount(attrs map[string]any, delta int) {
	c := &Item{Attributes: attrs}
	n, _ := c.attrFloat("items count")
	attrs["items count"] = n + float64(delta)
}

func sortByIDDesc(items []*Item) {
	slices.SortFunc(items, func(a, b *Item) int {
		return cmp.Compare(b.ID(), a.ID())
	})
}
