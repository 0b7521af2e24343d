package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/canlink/ecubridge/internal/analyzer"
	"github.com/canlink/ecubridge/internal/client"
	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/dtc"
	"github.com/canlink/ecubridge/internal/logging"
)

type dtcFlags struct {
	configPath string
	host       string
	port       int
	logLevel   string
	logFile    string
}

func newDTCCmd() *cobra.Command {
	flags := &dtcFlags{}

	cmd := &cobra.Command{
		Use:   "dtc",
		Short: "Fault code commands",
		Long: `Read, clear, and explain diagnostic trouble codes.

  list     - read the ECU's stored fault codes
  clear    - send a clear-faults request (asks for confirmation)
  history  - show the fault occurrence journal
  explain  - look a code up in the analyzer service
  latest   - ask the analyzer which code it saw last`,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file path (optional)")
	cmd.PersistentFlags().StringVar(&flags.host, "host", "", "ECU host (default \"127.0.0.1\")")
	cmd.PersistentFlags().IntVar(&flags.port, "port", 0, "ECU port (default 55555)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override: silent|error|info|verbose|debug")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Also write log output to this file")

	cmd.AddCommand(newDTCListCmd(flags))
	cmd.AddCommand(newDTCClearCmd(flags))
	cmd.AddCommand(newDTCHistoryCmd(flags))
	cmd.AddCommand(newDTCExplainCmd(flags))
	cmd.AddCommand(newDTCLatestCmd(flags))

	return cmd
}

// dialECU loads config, applies the shared flags, and opens a session.
// The caller owns the returned client and logger.
func dialECU(flags *dtcFlags) (*client.Client, *logging.Logger, *config.Config, error) {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if flags.host != "" {
		cfg.Client.Host = flags.host
	}
	if flags.port != 0 {
		cfg.Client.Port = flags.port
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, err
	}

	if flags.logLevel == "" && cfg.Logging.Level == "" {
		flags.logLevel = "silent"
	}
	logger, err := buildLogger(cfg, flags.logLevel, flags.logFile)
	if err != nil {
		return nil, nil, nil, err
	}

	addr := net.JoinHostPort(cfg.Client.Host, strconv.Itoa(cfg.Client.Port))
	timeout := time.Duration(cfg.Client.ConnectTimeoutMs) * time.Millisecond

	ecu, err := client.Dial(addr, timeout, logger)
	if err != nil {
		logger.Close()
		return nil, nil, nil, err
	}
	return ecu, logger, cfg, nil
}

// fetchDTCs requests the stored codes and waits for the response. Fault
// responses never tick the notification channel, so the wait polls the
// snapshot's DTC timestamp instead.
func fetchDTCs(ecu *client.Client, waitMs int) ([]string, error) {
	before := ecu.Snapshot().DTCsUpdatedAt
	if err := ecu.RequestDTCs(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(time.Duration(waitMs) * time.Millisecond)
	state := ecu.Snapshot()
	for !state.DTCsUpdatedAt.After(before) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		state = ecu.Snapshot()
	}

	codes := make([]string, 0, len(state.DTCs))
	for _, code := range state.DTCs {
		codes = append(codes, code.String())
	}
	return codes, ecu.Err()
}

func newDTCListCmd(flags *dtcFlags) *cobra.Command {
	var waitMs int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Read stored fault codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ecu, logger, _, err := dialECU(flags)
			if err != nil {
				return err
			}
			defer logger.Close()
			defer ecu.Close()

			codes, err := fetchDTCs(ecu, waitMs)
			if err != nil {
				return err
			}
			if len(codes) == 0 {
				fmt.Fprintln(os.Stdout, "No stored fault codes")
				return nil
			}
			for _, code := range codes {
				fmt.Fprintf(os.Stdout, "%s  %s\n", code, dtc.Descriptions[code])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&waitMs, "wait-ms", 500, "How long to wait for the response")
	return cmd
}

func newDTCClearCmd(flags *dtcFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear stored fault codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed := false
				form := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title("Clear all stored fault codes?").
						Description("The ECU forgets every stored code. Active faults may return.").
						Value(&confirmed),
				))
				if err := form.Run(); err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(os.Stdout, "Aborted")
					return nil
				}
			}

			ecu, logger, _, err := dialECU(flags)
			if err != nil {
				return err
			}
			defer logger.Close()
			defer ecu.Close()

			if err := ecu.ClearDTCs(); err != nil {
				return err
			}
			// The 0x44 confirmation carries no state; a bounded pause
			// just lets a write failure surface before we report.
			time.Sleep(300 * time.Millisecond)
			if err := ecu.Err(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "Clear request sent")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}

func newDTCHistoryCmd(flags *dtcFlags) *cobra.Command {
	var journalPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the fault occurrence journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if journalPath != "" {
				cfg.Journal.Path = journalPath
			}
			if cfg.Journal.Path == "" {
				return fmt.Errorf("no journal configured; run the simulator with --journal or set journal.path")
			}

			journal, err := dtc.OpenJournal(cfg.Journal.Path)
			if err != nil {
				return fmt.Errorf("open fault journal: %w", err)
			}
			defer journal.Close()

			entries, err := journal.History()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stdout, "Journal is empty")
				return nil
			}
			fmt.Fprintf(os.Stdout, "%-8s %-6s %s\n", "CODE", "COUNT", "FIRST SEEN")
			for _, entry := range entries {
				fmt.Fprintf(os.Stdout, "%-8s %-6d %s\n",
					entry.Code, entry.Count, entry.FirstSeen.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&journalPath, "journal", "", "Journal database path")
	return cmd
}

func newDTCLatestCmd(flags *dtcFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the analyzer's most recent fault code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
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

			svc := analyzer.New(cfg.Analyzer.BaseURL,
				time.Duration(cfg.Analyzer.TimeoutMs)*time.Millisecond, logger)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			code, err := svc.LatestDTC(ctx)
			if err != nil {
				return err
			}
			if code == "" {
				fmt.Fprintln(os.Stdout, "Analyzer has not seen any fault codes")
				return nil
			}
			fmt.Fprintf(os.Stdout, "%s  %s\n", code, dtc.Descriptions[code])
			return nil
		},
	}
}

func newDTCExplainCmd(flags *dtcFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <code>",
		Short: "Explain a fault code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(args[0])

			cfg, err := loadConfig(flags.configPath)
			if err != nil {
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

			svc := analyzer.New(cfg.Analyzer.BaseURL,
				time.Duration(cfg.Analyzer.TimeoutMs)*time.Millisecond, logger)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			analysis, fromService := svc.Analyze(ctx, code)
			if !fromService {
				fmt.Fprintln(os.Stdout, "(analyzer unreachable, using offline catalog)")
			}
			fmt.Fprintf(os.Stdout, "%s: %s\n", code, analysis.Title)
			if analysis.Severity != "" {
				fmt.Fprintf(os.Stdout, "Severity: %s\n", analysis.Severity)
			}
			if analysis.Description != "" {
				fmt.Fprintf(os.Stdout, "\n%s\n", analysis.Description)
			}
			if len(analysis.Causes) > 0 {
				fmt.Fprintln(os.Stdout, "\nLikely causes:")
				for _, cause := range analysis.Causes {
					fmt.Fprintf(os.Stdout, "  - %s\n", cause)
				}
			}
			if len(analysis.Fixes) > 0 {
				fmt.Fprintln(os.Stdout, "\nSuggested fixes:")
				for _, fix := range analysis.Fixes {
					fmt.Fprintf(os.Stdout, "  - %s\n", fix)
				}
			}
			return nil
		},
	}
	return cmd
}
