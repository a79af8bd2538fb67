package asf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Bot is ASF's view of one configured account.
type Bot struct {
	BotName                string `json:"BotName"`
	SteamID                string `json:"SteamID"`
	IsConnectedAndLoggedOn bool   `json:"IsConnectedAndLoggedOn"`
	KeepRunning            bool   `json:"KeepRunning"`
}

// PluginStatus is the CS2Interface state for one bot.
type PluginStatus struct {
	Connected                bool   `json:"Connected"`
	InventoryLoaded          bool   `json:"InventoryLoaded"`
	InventorySize            int    `json:"InventorySize"`
	UnprotectedInventorySize int    `json:"UnprotectedInventorySize"`
	AutoStopAt               string `json:"AutoStopAt"`
	Version                  string `json:"Version"`
}

// Ready reports whether the interface can serve inventory calls.
func (s *PluginStatus) Ready() bool {
	return s != nil && s.Connected && s.InventoryLoaded
}

// BotStatus merges a bot with its plugin status. Plugin is nil when the
// status was not requested or the plugin does not know the bot.
type BotStatus struct {
	ASF    Bot
	Plugin *PluginStatus
}

// GetBots returns every bot keyed by name.
func (c *Client) GetBots(ctx context.Context, includePlugin bool) (map[string]BotStatus, error) {
	var bots map[string]Bot
	if err := c.Get(ctx, "Bot", "", "ASF", nil, &bots); err != nil {
		return nil, err
	}

	var plugin map[string]PluginStatus
	if includePlugin {
		var err error
		if plugin, err = c.GetPluginStatus(ctx); err != nil {
			return nil, err
		}
	}

	merged := make(map[string]BotStatus, len(bots))
	for name, b := range bots {
		s := BotStatus{ASF: b}
		if p, ok := plugin[name]; ok {
			s.Plugin = &p
		}
		merged[name] = s
	}
	return merged, nil
}

// GetBot returns the bot logged in as steamID.
func (c *Client) GetBot(ctx context.Context, steamID string) (*BotStatus, error) {
	bots, err := c.GetBots(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, b := range bots {
		if b.ASF.SteamID == steamID {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("steam id %s: %w", steamID, ErrBotNotFound)
}

// ResolveBot picks the bot to act as: by name, then by steam id, then the
// only configured bot.
func (c *Client) ResolveBot(ctx context.Context, name, steamID string) (*BotStatus, error) {
	bots, err := c.GetBots(ctx, true)
	if err != nil {
		return nil, err
	}
	if name != "" {
		if b, ok := bots[name]; ok {
			return &b, nil
		}
		return nil, fmt.Errorf("bot %q: %w", name, ErrBotNotFound)
	}
	if steamID != "" {
		for _, b := range bots {
			if b.ASF.SteamID == steamID {
				return &b, nil
			}
		}
		return nil, fmt.Errorf("steam id %s: %w", steamID, ErrBotNotFound)
	}
	if len(bots) == 1 {
		for _, b := range bots {
			return &b, nil
		}
	}
	names := make([]string, 0, len(bots))
	for n := range bots {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("%w: set [asf] bot to one of %v", ErrBotNotFound, names)
}

// GetPluginStatus returns the interface status of every bot. Requesting it
// also refreshes the interface's auto-stop timer.
func (c *Client) GetPluginStatus(ctx context.Context) (map[string]PluginStatus, error) {
	var status map[string]PluginStatus
	err := c.Get(ctx, "CS2Interface", "Status", "ASF", map[string]string{"refreshAutoStop": "true"}, &status)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// BotPluginStatus returns the interface status for one bot, or nil when the
// plugin does not report it.
func (c *Client) BotPluginStatus(ctx context.Context, bot string) (*PluginStatus, error) {
	all, err := c.GetPluginStatus(ctx)
	if err != nil {
		return nil, err
	}
	if s, ok := all[bot]; ok {
		return &s, nil
	}
	return nil, nil
}

type botResult struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
}

// interfaceCommand sends Start or Stop and checks the per-bot result.
func (c *Client) interfaceCommand(ctx context.Context, command, bot string, data map[string]string) error {
	var results map[string]botResult
	err := c.Get(ctx, "CS2Interface", command, bot, data, &results)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Response != nil && len(e.Response.Result) > 0 {
			var inner map[string]botResult
			if jsonErr := json.Unmarshal(e.Response.Result, &inner); jsonErr == nil && inner[bot].Message != "" {
				return fmt.Errorf("interface failed to %s: %s: %w", strings.ToLower(command), inner[bot].Message, err)
			}
		}
		return err
	}
	r, ok := results[bot]
	if !ok || !r.Success {
		if r.Message != "" {
			return fmt.Errorf("interface failed to %s: %s", strings.ToLower(command), r.Message)
		}
		return fmt.Errorf("interface failed to %s", strings.ToLower(command))
	}
	return nil
}

// StartInterface starts the game interface for bot and waits until its
// inventory has loaded. autoStopMinutes of 0 keeps it running.
func (c *Client) StartInterface(ctx context.Context, bot string, autoStopMinutes int) error {
	err := c.interfaceCommand(ctx, "Start", bot, map[string]string{"autoStop": strconv.Itoa(autoStopMinutes)})
	if err != nil {
		return err
	}

	status, err := c.BotPluginStatus(ctx, bot)
	for err == nil && status != nil && status.Connected && !status.InventoryLoaded {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
		status, err = c.BotPluginStatus(ctx, bot)
	}
	if err != nil {
		return err
	}
	if !status.Ready() {
		return errors.New("interface failed to start: interface stopped while waiting for the inventory to load")
	}
	c.log.Info().Str("bot", bot).Msg("Interface started")
	return nil
}

// StopInterface stops the game interface for bot.
func (c *Client) StopInterface(ctx context.Context, bot string) error {
	if err := c.interfaceCommand(ctx, "Stop", bot, nil); err != nil {
		return err
	}
	c.log.Info().Str("bot", bot).Msg("Interface stopped")
	return nil
}

// RestartInterface stops then starts the interface.
func (c *Client) RestartInterface(ctx context.Context, bot string, autoStopMinutes int) error {
	if err := c.StopInterface(ctx, bot); err != nil {
		return err
	}
	return c.StartInterface(ctx, bot, autoStopMinutes)
}
