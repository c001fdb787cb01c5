package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/materna-health/wearlink/wearable"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wearlink",
	Short: "BLE wearable vitals monitor",
	Long: `Command-line client for the wearlink vitals pipeline:

- Scan for nearby BLE wearables and show the matching target
- Connect to the target wearable and stream live vital signs
- Send opaque command payloads to the device's command channel

The target wearable is selected by exact advertised name or by a name
marker (default "MaternalGuardian").`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		// Print user-friendly error message
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(monitorCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}

// loadConfig resolves the effective configuration from --config, falling back
// to defaults when the flag is unset.
func loadConfig(cmd *cobra.Command) (*wearable.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return wearable.DefaultConfig(), nil
	}
	return wearable.LoadConfig(path)
}
