package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/canlink/ecubridge/internal/client"
	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/obd"
)

type readFlags struct {
	configPath string
	host       string
	port       int
	waitMs     int
	logLevel   string
	logFile    string
}

func newReadCmd() *cobra.Command {
	flags := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read <parameter>...",
		Short: "Read sensor values once",
		Long: `Request one or more current-data parameters from the ECU and print the
decoded values. Parameters are named or given as hex PID bytes.

Tracked parameters: rpm, speed, coolant, throttle, load, intake.`,
		Example: `  # Read engine speed
  ecubridge read rpm

  # Read several parameters by name and PID byte
  ecubridge read rpm coolant 0x0D`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runRead(flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (optional)")
	cmd.Flags().StringVar(&flags.host, "host", "", "ECU host (default \"127.0.0.1\")")
	cmd.Flags().IntVar(&flags.port, "port", 0, "ECU port (default 55555)")
	cmd.Flags().IntVar(&flags.waitMs, "wait-ms", 500, "How long to wait for responses")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level override: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Also write log output to this file")

	return cmd
}

// resolveParameter accepts a tracked short name ("rpm") or a hex PID byte
// ("0x0C", "0C").
func resolveParameter(arg string) (obd.PIDInfo, error) {
	if info, ok := obd.LookupPIDName(strings.ToLower(arg)); ok {
		return info, nil
	}

	raw := strings.TrimPrefix(strings.ToLower(arg), "0x")
	if value, err := strconv.ParseUint(raw, 16, 8); err == nil {
		if info, ok := obd.LookupPID(uint8(value)); ok {
			return info, nil
		}
		return obd.PIDInfo{}, fmt.Errorf("PID 0x%02X is not a tracked parameter", value)
	}

	names := make([]string, 0)
	for _, info := range obd.TrackedPIDs() {
		names = append(names, info.Name)
	}
	return obd.PIDInfo{}, fmt.Errorf("unknown parameter %q (tracked: %s)", arg, strings.Join(names, ", "))
}

func runRead(flags *readFlags, args []string) error {
	params := make([]obd.PIDInfo, 0, len(args))
	for _, arg := range args {
		info, err := resolveParameter(arg)
		if err != nil {
			return err
		}
		params = append(params, info)
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.host != "" {
		cfg.Client.Host = flags.host
	}
	if flags.port != 0 {
		cfg.Client.Port = flags.port
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if flags.logLevel == "" && cfg.Logging.Level == "" {
		flags.logLevel = "silent"
	}
	logger, err := buildLogger(cfg, flags.logLevel, flags.logFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	addr := net.JoinHostPort(cfg.Client.Host, strconv.Itoa(cfg.Client.Port))
	timeout := time.Duration(cfg.Client.ConnectTimeoutMs) * time.Millisecond

	ecu, err := client.Dial(addr, timeout, logger)
	if err != nil {
		return err
	}
	defer ecu.Close()

	for _, info := range params {
		if err := ecu.Request(info.PID); err != nil {
			return err
		}
	}

	// Give the responses time to arrive; the wait is bounded, not exact.
	deadline := time.After(time.Duration(flags.waitMs) * time.Millisecond)
wait:
	for !allValid(ecu.Snapshot(), params) {
		select {
		case <-deadline:
			break wait
		case _, ok := <-ecu.Notifications():
			if !ok {
				break wait
			}
		}
	}

	state := ecu.Snapshot()
	for _, info := range params {
		reading, ok := state.ByName(info.Name)
		if !ok || !reading.Valid {
			fmt.Fprintf(os.Stdout, "%-9s ---\n", info.Name)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-9s %.1f %s\n", info.Name, reading.Value, info.Unit)
	}
	return nil
}

func allValid(state client.LiveTelemetry, params []obd.PIDInfo) bool {
	for _, info := range params {
		reading, ok := state.ByName(info.Name)
		if !ok || !reading.Valid {
			return false
		}
	}
	return true
}
