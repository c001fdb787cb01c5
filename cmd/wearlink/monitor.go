package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/materna-health/wearlink/internal/platform"
	"github.com/materna-health/wearlink/vitals"
	"github.com/materna-health/wearlink/wearable"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Connect to the target wearable and stream live vitals",
	Long: `Scan for the configured target wearable, connect, and stream decoded
vital signs until interrupted.

The aggregate carries the last known value of every channel, so a brief
disconnect never blanks the display. Press Ctrl+C to stop.`,
	RunE: runMonitorCmd,
}

var (
	monitorCommandHex string
	monitorVerbose    bool
)

func init() {
	monitorCmd.Flags().StringVar(&monitorCommandHex, "send", "", "Hex payload to write to the command channel once connected")
	monitorCmd.Flags().BoolVar(&monitorVerbose, "verbose", false, "Enable debug logging")
}

func runMonitorCmd(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var command []byte
	if monitorCommandHex != "" {
		command, err = hex.DecodeString(strings.ReplaceAll(monitorCommandHex, " ", ""))
		if err != nil {
			return fmt.Errorf("invalid --send payload: %w", err)
		}
	}

	cmd.SilenceUsage = true

	radio, err := platform.NewGobleRadio(logger)
	if err != nil {
		return err
	}

	monitor, err := wearable.NewMonitor(cfg, radio, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runDone := make(chan error, 1)
	go func() {
		runDone <- monitor.Run(ctx)
	}()

	states, stopStates := monitor.ConnectionStates()
	defer stopStates()
	vitalsCh, stopVitals := monitor.Vitals()
	defer stopVitals()
	status, stopStatus := monitor.StatusMessages()
	defer stopStatus()

	if err := monitor.StartScan(0); err != nil {
		stop()
		<-runDone
		return err
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	live := false // a vitals line is currently on screen

	breakLine := func() {
		if live {
			fmt.Println()
			live = false
		}
	}

	for {
		select {
		case <-ctx.Done():
			breakLine()
			<-runDone
			return nil

		case st := <-states:
			breakLine()
			printState(st)
			if st == wearable.StateConnected && len(command) > 0 {
				if err := monitor.SendCommand(command); err != nil {
					fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
				} else {
					fmt.Printf("Sent command payload (%d bytes)\n", len(command))
				}
			}

		case msg := <-status:
			breakLine()
			printStatus(msg)

		case v := <-vitalsCh:
			line := formatVitals(v)
			if isTTY {
				fmt.Printf("\r\033[K%s", line)
				live = true
			} else {
				fmt.Println(line)
			}
		}
	}
}

func printState(st wearable.ConnectionState) {
	c := color.New(color.FgCyan)
	switch st {
	case wearable.StateConnected:
		c = color.New(color.FgGreen, color.Bold)
	case wearable.StateError:
		c = color.New(color.FgRed, color.Bold)
	case wearable.StateDisconnected:
		c = color.New(color.FgYellow)
	}
	fmt.Printf("[%s]\n", c.Sprint(st))
}

func printStatus(msg wearable.StatusMessage) {
	switch msg.Severity {
	case wearable.SeverityError:
		color.Red("! %s", msg.Text)
	case wearable.SeverityWarning:
		color.Yellow("! %s", msg.Text)
	default:
		fmt.Printf("- %s\n", msg.Text)
	}
}

func formatVitals(v vitals.VitalSigns) string {
	var parts []string

	if v.HeartRate != nil {
		parts = append(parts, color.RedString("HR %d bpm", *v.HeartRate))
	} else {
		parts = append(parts, "HR --")
	}
	if v.SpO2 != nil {
		parts = append(parts, color.CyanString("SpO2 %d%%", *v.SpO2))
	} else {
		parts = append(parts, "SpO2 --")
	}
	if v.TemperatureC != nil {
		parts = append(parts, color.YellowString("%.2f°C", *v.TemperatureC))
	} else {
		parts = append(parts, "temp --")
	}
	if v.BatteryPct != nil {
		parts = append(parts, fmt.Sprintf("batt %d%%", *v.BatteryPct))
	}
	if v.SystolicBP != nil && v.DiastolicBP != nil {
		parts = append(parts, color.MagentaString("BP %d/%d", *v.SystolicBP, *v.DiastolicBP))
	}
	if v.GlucoseMgdL != nil {
		parts = append(parts, color.GreenString("glucose %.1f mg/dL", *v.GlucoseMgdL))
	}

	return strings.Join(parts, "  |  ")
}
