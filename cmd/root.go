package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/threadline-rugs/roomview/internal/config"
	"github.com/threadline-rugs/roomview/internal/logging"
)

// cfg is loaded once before any subcommand runs
var cfg *config.Config

func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "roomview",
		Short: "Preview catalog rugs in a photo of your own room",
		Long: `Roomview places a rug from the catalog into a photo of a room.

An AI pipeline detects the floor, works out the room's perspective and
composites the rug with matching shadows. A manual placement canvas can
export the rug at any pose without calling the AI at all.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			level := logging.ParseLevel(cfg.LogLevel)
			if verbose {
				level = logging.ParseLevel("debug")
			}
			logging.Install(os.Stderr, level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("ROOMVIEW_CONFIG"), "Path to a TOML config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVisualizeCmd())
	cmd.AddCommand(newPlaceCmd())
	cmd.AddCommand(newCatalogCmd())

	return cmd
}

// configuration returns the loaded config, falling back to defaults when a
// command runs without the root pre-run (as in tests).
func configuration() *config.Config {
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			panic(fmt.Sprintf("default configuration is invalid: %v", err))
		}
		cfg = loaded
	}
	return cfg
}
