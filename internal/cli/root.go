// Package cli provides the command-line interface for cs2-int.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cs2interlink/cs2-int/internal/config"
	"github.com/cs2interlink/cs2-int/internal/http"
	"github.com/cs2interlink/cs2-int/internal/logging"
	"github.com/cs2interlink/cs2-int/internal/version"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	debug   bool
	logFile string

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cs2-int",
		Short: "Move CS2 items between the inventory and storage units",
		Long: `cs2-int ` + version.Version + ` - Built: ` + version.BuildTime + `
Manage a CS2 inventory through ArchiSteamFarm and its CS2 interface plugin.

Store items into storage units, retrieve them in bulk, and browse the
in-game store from a terminal table.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if logFile != "" {
				logger.EnableFile(logFile)
			}
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling operations...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newItemsCmd())
	rootCmd.AddCommand(newStoreCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newInterfaceCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCacheCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context. It is cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration (%s): %w", path, err)
	}
	if http.NeedsProxyPassword(cfg) && term.IsTerminal(int(os.Stdin.Fd())) {
		pw, err := newPrompter(os.Stdin, os.Stderr).password(fmt.Sprintf("Proxy password for %s", cfg.Proxy.User))
		if err != nil {
			return nil, err
		}
		cfg.Proxy.Password = pw
	}
	if cfg.Logging.Level != "" && !verbose && !debug {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.Logging.Level))
	}
	if cfg.Logging.File != "" && logFile == "" {
		GetLogger().EnableFile(cfg.Logging.File)
	}
	return cfg, nil
}
