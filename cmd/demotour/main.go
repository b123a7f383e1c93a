package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

var (
	configPath string
	verbose    bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "demotour",
		Short: "Play scripted product tours against a live web app",
		Long: `demotour opens your web application in Chromium and plays a scripted tour
through it: navigating, highlighting, scrolling, clicking and typing.

Example:
  demotour play rfp_overview --url http://localhost:3000
  demotour play --url "http://localhost:3000/?demo=true&mode=guided"
  demotour serve`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./demotour.yaml or $DEMOTOUR_CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("demotour version %s\n", version))

	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScenariosCmd())
	rootCmd.AddCommand(newCtlCmd())
	return rootCmd
}
