package cli

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cs2interlink/cs2-int/internal/asf"
)

type botRecord struct {
	Bot             string `json:"bot" yaml:"bot"`
	SteamID         string `json:"steam_id" yaml:"steam_id"`
	LoggedOn        bool   `json:"logged_on" yaml:"logged_on"`
	Connected       bool   `json:"connected" yaml:"connected"`
	InventoryLoaded bool   `json:"inventory_loaded" yaml:"inventory_loaded"`
	InventorySize   int    `json:"inventory_size" yaml:"inventory_size"`
	Unprotected     int    `json:"unprotected_inventory_size" yaml:"unprotected_inventory_size"`
	AutoStopAt      string `json:"auto_stop_at,omitempty" yaml:"auto_stop_at,omitempty"`
	Version         string `json:"version,omitempty" yaml:"version,omitempty"`
}

func newBotRecord(b asf.BotStatus) botRecord {
	r := botRecord{
		Bot:      b.ASF.BotName,
		SteamID:  b.ASF.SteamID,
		LoggedOn: b.ASF.IsConnectedAndLoggedOn,
	}
	if p := b.Plugin; p != nil {
		r.Connected = p.Connected
		r.InventoryLoaded = p.InventoryLoaded
		r.InventorySize = p.InventorySize
		r.Unprotected = p.UnprotectedInventorySize
		r.AutoStopAt = p.AutoStopAt
		r.Version = p.Version
	}
	return r
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (r botRecord) cells() []string {
	return []string{
		r.Bot, r.SteamID, yesNo(r.LoggedOn), yesNo(r.Connected), yesNo(r.InventoryLoaded),
		strconv.Itoa(r.Unprotected) + "/" + strconv.Itoa(r.InventorySize), r.AutoStopAt,
	}
}

// newStatusCmd creates the 'status' command.
func newStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ASF bots and their interface state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			bots, err := client.GetBots(GetContext(), true)
			if err != nil {
				return err
			}

			records := make([]botRecord, 0, len(bots))
			for _, b := range bots {
				records = append(records, newBotRecord(b))
			}
			sort.Slice(records, func(i, j int) bool { return records[i].Bot < records[j].Bot })

			headers := []string{"Bot", "Steam ID", "Logged On", "Interface", "Inventory", "Unprotected/Total", "Auto Stop"}
			return writeRecords(cmd.OutOrStdout(), output, headers, records, botRecord.cells)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json, yaml")
	return cmd
}

// newInterfaceCmd creates the 'interface' command group.
func newInterfaceCmd() *cobra.Command {
	ifaceCmd := &cobra.Command{
		Use:   "interface",
		Short: "Start or stop the CS2 interface of the configured bot",
	}

	var autoStop int
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the interface",
		Long: `Start the CS2 interface for the configured bot. It stops by itself
after --auto-stop minutes without requests (0 keeps it running).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(func(client *asf.Client, bot string, minutes int) error {
				if cmd.Flags().Changed("auto-stop") {
					minutes = autoStop
				}
				if err := client.StartInterface(GetContext(), bot, minutes); err != nil {
					return err
				}
				GetLogger().Info().Str("bot", bot).Msg("Interface started")
				return nil
			})
		},
	}
	startCmd.Flags().IntVar(&autoStop, "auto-stop", 0, "Auto-stop minutes (default from config)")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(func(client *asf.Client, bot string, _ int) error {
				if err := client.StopInterface(GetContext(), bot); err != nil {
					return err
				}
				GetLogger().Info().Str("bot", bot).Msg("Interface stopped")
				return nil
			})
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(func(client *asf.Client, bot string, minutes int) error {
				if err := client.RestartInterface(GetContext(), bot, minutes); err != nil {
					return err
				}
				GetLogger().Info().Str("bot", bot).Msg("Interface restarted")
				return nil
			})
		},
	}

	ifaceCmd.AddCommand(startCmd, stopCmd, restartCmd)
	return ifaceCmd
}

func newClient() (*asf.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return asf.NewClient(cfg, GetLogger())
}

// withBot resolves the configured bot and calls fn with its name and the
// configured auto-stop minutes.
func withBot(fn func(client *asf.Client, bot string, autoStopMinutes int) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := asf.NewClient(cfg, GetLogger())
	if err != nil {
		return err
	}
	bot, err := client.ResolveBot(GetContext(), cfg.ASF.Bot, cfg.ASF.SteamID)
	if err != nil {
		return err
	}
	return fn(client, bot.ASF.BotName, cfg.Interface.AutoStopMinutes)
}
