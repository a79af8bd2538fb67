package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/cs2interlink/cs2-int/internal/asf"
	"github.com/cs2interlink/cs2-int/internal/cache"
	"github.com/cs2interlink/cs2-int/internal/config"
	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/events"
	"github.com/cs2interlink/cs2-int/internal/inventory"
	"github.com/cs2interlink/cs2-int/internal/logging"
	"github.com/cs2interlink/cs2-int/internal/progress"
)

// session holds everything a command needs to talk to one bot.
type session struct {
	cfg    *config.Config
	client *asf.Client
	bot    asf.BotStatus
	cache  *cache.Cache
	loader *inventory.Loader
	bus    *events.EventBus
	log    *logging.Logger
}

func newSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := GetLogger()

	client, err := asf.NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	bot, err := client.ResolveBot(ctx, cfg.ASF.Bot, cfg.ASF.SteamID)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(ctx, cfg.Cache.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	log.SetEventBus(bus)

	account := inventory.Account{
		Bot:             bot.ASF.BotName,
		SteamID:         bot.ASF.SteamID,
		AutoStopMinutes: cfg.Interface.AutoStopMinutes,
	}
	return &session{
		cfg:    cfg,
		client: client,
		bot:    *bot,
		cache:  c,
		loader: inventory.NewLoader(client, c, account, log, nil),
		bus:    bus,
		log:    log,
	}, nil
}

func (s *session) Close() {
	s.log.SetEventBus(nil)
	s.bus.Close()
	if err := s.cache.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close cache")
	}
}

// loadInventory loads the inventory, and the contents of every storage unit
// when withUnits is set, behind a loading display on stderr.
func (s *session) loadInventory(ctx context.Context, withUnits bool) (*inventory.Inventory, error) {
	ui := progress.NewLoadingUI(os.Stderr, "Loading Inventory")

	inv, err := s.loader.LoadInventory(ctx)
	if err == nil && withUnits {
		err = s.loader.LoadCrateContents(ctx, inv, progress.Tee(ui.Update, progress.Bus(s.bus, "load")))
	}
	ui.Done(err)
	if err != nil {
		return nil, err
	}
	if inv.LoadedFromCache {
		s.log.Warn().Msg("Interface not connected, showing cached inventory")
	}
	return inv, nil
}

// pollStatus publishes a StatusEvent for the session's bot at every
// interval until ctx ends.
func (s *session) pollStatus(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := s.client.BotPluginStatus(ctx, s.bot.ASF.BotName)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			s.log.Debug().Err(err).Msg("Status poll failed")
		case status != nil:
			s.bus.Publish(&events.StatusEvent{
				BaseEvent:                events.BaseEvent{EventType: events.EventStatus, Time: time.Now()},
				Bot:                      s.bot.ASF.BotName,
				Connected:                status.Connected,
				InventoryLoaded:          status.InventoryLoaded,
				UnprotectedInventorySize: status.UnprotectedInventorySize,
				InventorySize:            status.InventorySize,
			})
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// findUnit returns the storage unit with the given id or custom name.
func findUnit(inv *inventory.Inventory, ref string) (*inventory.Item, error) {
	var byName []*inventory.Item
	for _, u := range inv.StorageUnits() {
		if u.RowID() == ref {
			return u, nil
		}
		if u.UnitName() == ref {
			byName = append(byName, u)
		}
	}
	switch len(byName) {
	case 0:
		return nil, fmt.Errorf("storage unit %q not found", ref)
	case 1:
		return byName[0], nil
	default:
		return nil, fmt.Errorf("storage unit name %q is ambiguous, use its id", ref)
	}
}

// viewportRows sizes table viewports to the terminal, leaving room for
// the header and footer lines.
func viewportRows() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 20
	}
	return max(3, height-9)
}

var errNotTerminal = errors.New("interactive mode needs a terminal; use --select-first with --yes")
