package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/materna-health/wearlink/internal/platform"
	"github.com/materna-health/wearlink/wearable"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE wearables",
	Long: `Scan for Bluetooth Low Energy devices and display their names, addresses
and signal strength. Devices matching the configured target name or marker
are highlighted.`,
	RunE: runScanCmd,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanVerbose  bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (defaults to the configured scan timeout)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVar(&scanVerbose, "verbose", false, "Enable debug logging")
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	radio, err := platform.NewGobleRadio(logger)
	if err != nil {
		return err
	}

	duration := scanDuration
	if duration <= 0 {
		duration = cfg.ScanTimeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var mu sync.Mutex
	seen := orderedmap.New[string, wearable.DiscoveredDevice]()

	fmt.Fprintf(os.Stderr, "Scanning for %s...\n", duration)
	err = radio.Scan(ctx, false, func(adv platform.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		d, ok := seen.Get(adv.ID())
		if !ok {
			d = wearable.DiscoveredDevice{ID: adv.ID(), Name: adv.LocalName()}
		} else if d.Name == "" {
			d.Name = adv.LocalName()
		}
		d.RSSI = adv.RSSI()
		d.LastSeen = time.Now()
		seen.Set(adv.ID(), d)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	mu.Lock()
	devices := make([]wearable.DiscoveredDevice, 0, seen.Len())
	for pair := seen.Oldest(); pair != nil; pair = pair.Next() {
		devices = append(devices, pair.Value)
	}
	mu.Unlock()

	switch scanFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	default:
		printDeviceTable(devices, cfg)
		return nil
	}
}

func printDeviceTable(devices []wearable.DiscoveredDevice, cfg *wearable.Config) {
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return
	}

	target := color.New(color.FgGreen, color.Bold)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tTARGET")
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unknown)"
		}
		mark := ""
		if cfg.MatchesTarget(d.Name) {
			name = target.Sprint(name)
			mark = target.Sprint("*")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", name, d.ID, d.RSSI, mark)
	}
	w.Flush()
}
