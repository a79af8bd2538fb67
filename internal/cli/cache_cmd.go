package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cs2interlink/cs2-int/internal/cache"
)

// newCacheCmd creates the 'cache' command group.
func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the inventory cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the cache database path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Path)
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached inventory and storage unit listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := GetContext()
			c, err := cache.Open(ctx, cfg.Cache.Path, GetLogger())
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			defer c.Close()

			keys, err := c.Keys(ctx)
			if err != nil {
				return err
			}
			if err := c.Clear(ctx); err != nil {
				return err
			}
			GetLogger().Info().Int("entries", len(keys)).Msg("Cache cleared")
			return nil
		},
	})

	return cacheCmd
}
