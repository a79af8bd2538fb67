package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cs2interlink/cs2-int/internal/asf"
	"github.com/cs2interlink/cs2-int/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cs2-int configuration",
		Long: `Configuration management commands for cs2-int.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  set   - Change one setting
  test  - Test the ASF connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for cs2-int.

The configuration is saved to ~/.config/cs2-int/config unless --config
is given. Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := promptConfig(newPrompter(os.Stdin, os.Stdout), os.Stdout)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Println()
			fmt.Println("Test the connection with: cs2-int config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// promptConfig asks for the settings config init writes, starting from
// the defaults.
func promptConfig(p *prompter, out io.Writer) (*config.Config, error) {
	cfg := config.New()

	fmt.Fprintln(out, "cs2-int Configuration Setup")
	fmt.Fprintln(out, "===========================")
	fmt.Fprintln(out)

	var err error
	if cfg.ASF.Server, err = p.line("ASF server", cfg.ASF.Server); err != nil {
		return nil, err
	}
	if cfg.ASF.Port, err = p.number("ASF IPC port", cfg.ASF.Port); err != nil {
		return nil, err
	}
	if cfg.ASF.Password, err = p.password("ASF IPC password (empty for none)"); err != nil {
		return nil, err
	}
	if cfg.ASF.Bot, err = p.line("Bot name (empty to pick the only bot)", ""); err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Transfer Settings (press Enter for defaults)")
	fmt.Fprintln(out, "--------------------------------------------")
	if cfg.Transfer.Concurrency, err = p.number("Concurrent transfers", cfg.Transfer.Concurrency); err != nil {
		return nil, err
	}
	if cfg.Transfer.DelayMS, err = p.number("Delay between transfers (ms)", cfg.Transfer.DelayMS); err != nil {
		return nil, err
	}
	if cfg.Interface.AutoStopMinutes, err = p.number("Interface auto-stop (minutes, 0 never)", cfg.Interface.AutoStopMinutes); err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Store Settings")
	fmt.Fprintln(out, "--------------")
	if cfg.Store.Currency, err = p.line("Wallet currency", cfg.Store.Currency); err != nil {
		return nil, err
	}
	if cfg.Store.Country, err = p.line("Wallet country", cfg.Store.Country); err != nil {
		return nil, err
	}
	if cfg.Store.PriceSheet, err = p.line("Price sheet file or URL", ""); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

Settings come from the configuration file, overridden by the
CS2INT_ASF_SERVER and CS2INT_ASF_PASSWORD environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			showConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "ASF:")
	fmt.Fprintf(w, "  Server:   %s\n", cfg.BaseURL())
	if cfg.ASF.Password != "" {
		fmt.Fprintf(w, "  Password: <set (%d chars)>\n", len(cfg.ASF.Password))
	} else {
		fmt.Fprintln(w, "  Password: <not set>")
	}
	if cfg.ASF.Bot != "" {
		fmt.Fprintf(w, "  Bot:      %s\n", cfg.ASF.Bot)
	}
	if cfg.ASF.SteamID != "" {
		fmt.Fprintf(w, "  Steam ID: %s\n", cfg.ASF.SteamID)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Transfer:")
	fmt.Fprintf(w, "  Concurrency:  %d\n", cfg.Transfer.Concurrency)
	fmt.Fprintf(w, "  Delay:        %s\n", cfg.TransferDelay())
	fmt.Fprintf(w, "  Max Attempts: %d\n", cfg.Transfer.MaxAttempts)
	fmt.Fprintf(w, "  Settle:       %s\n", cfg.SettleDelay())
	fmt.Fprintf(w, "  Auto-stop:    %d min\n", cfg.Interface.AutoStopMinutes)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Store:")
	fmt.Fprintf(w, "  Currency:    %s (%s)\n", cfg.Store.Currency, cfg.Store.Country)
	if cfg.Store.PriceSheet != "" {
		fmt.Fprintf(w, "  Price Sheet: %s\n", cfg.Store.PriceSheet)
	}
	if cfg.Store.Tournament != "" {
		fmt.Fprintf(w, "  Tournament:  %s\n", cfg.Store.Tournament)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Proxy:")
	fmt.Fprintf(w, "  Mode: %s\n", cfg.Proxy.Mode)
	if cfg.Proxy.Host != "" {
		fmt.Fprintf(w, "  Host: %s:%d\n", cfg.Proxy.Host, cfg.Proxy.Port)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Cache:  %s\n", cfg.Cache.Path)
	if cfg.Logging.File != "" {
		fmt.Fprintf(w, "Log:    %s (%s)\n", cfg.Logging.File, cfg.Logging.Level)
	}
	fmt.Fprintf(w, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "  (file does not exist - using defaults)")
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <section.key> <value>",
		Short: "Change one setting",
		Long: `Change one setting and save the configuration.

Examples:
  cs2-int config set asf.bot main
  cs2-int config set transfer.concurrency 4
  cs2-int config set store.currency EUR`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			return setConfigValue(path, args[0], args[1])
		},
	}
}

// setConfigValue loads path, applies key=value, validates and saves.
func setConfigValue(path, key, value string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return config.Save(cfg, path)
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the ASF connection",
		Long: `Connect to ASF with the current configuration and resolve the bot.

Use this to verify the IPC password and network connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Contacting ASF at %s ...\n", cfg.BaseURL())

			client, err := asf.NewClient(cfg, logger)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(GetContext(), 15*time.Second)
			defer cancel()

			bot, err := client.ResolveBot(ctx, cfg.ASF.Bot, cfg.ASF.SteamID)
			if err != nil {
				logger.Error().Err(err).Str("server", cfg.BaseURL()).Msg("ASF unreachable or bot unknown")
				return fmt.Errorf("connection test: %w", err)
			}

			fmt.Fprintf(out, "OK  bot %s (%s)\n", bot.ASF.BotName, bot.ASF.SteamID)
			if bot.Plugin == nil {
				fmt.Fprintln(out, "    game interface stopped; run 'cs2-int interface start'")
				return nil
			}
			fmt.Fprintf(out, "    game interface connected=%s inventory=%s\n", yesNo(bot.Plugin.Connected), yesNo(bot.Plugin.InventoryLoaded))
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "(not created yet; run 'cs2-int config init')")
			}
			return nil
		},
	}
}
