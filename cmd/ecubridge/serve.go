package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canlink/ecubridge/internal/capture"
	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/dtc"
	"github.com/canlink/ecubridge/internal/logging"
	"github.com/canlink/ecubridge/internal/server"
)

type serveFlags struct {
	configPath    string
	listenIP      string
	port          int
	dtcIntervalMs int
	seed          int64
	pcapFile      string
	journalPath   string
	logLevel      string
	logFile       string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ECU simulator",
		Long: `Start a simulated ECU that accepts diagnostic sessions over TCP.

The simulator answers service 0x01 (current data) requests for the standard
sensor PIDs, service 0x03 (read stored fault codes) and service 0x04 (clear
fault codes). A background lifecycle randomly injects and clears fault codes
so connected dashboards always have something to show.

Press Ctrl+C to stop the simulator gracefully.`,
		Example: `  # Start with defaults (127.0.0.1:55555)
  ecubridge serve

  # Listen on all interfaces, capture traffic
  ecubridge serve --listen-ip 0.0.0.0 --pcap session.pcap

  # Deterministic sensor values and fault schedule
  ecubridge serve --seed 42

  # Persist fault occurrences across restarts
  ecubridge serve --journal faults.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runServe(flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (optional)")
	cmd.Flags().StringVar(&flags.listenIP, "listen-ip", "", "Listen IP address (default \"127.0.0.1\")")
	cmd.Flags().IntVar(&flags.port, "port", 0, "Listen port (default 55555)")
	cmd.Flags().IntVar(&flags.dtcIntervalMs, "dtc-interval-ms", 0, "Fault lifecycle tick interval; -1 disables (default 7000)")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "RNG seed for sensors and fault schedule (0 = time-seeded)")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Capture frames to a PCAP file")
	cmd.Flags().StringVar(&flags.journalPath, "journal", "", "Fault occurrence journal database path")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level override: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Also write log output to this file")

	return cmd
}

func runServe(flags *serveFlags) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}

	if flags.listenIP != "" {
		cfg.Server.ListenIP = flags.listenIP
	}
	if flags.port != 0 {
		cfg.Server.TCPPort = flags.port
	}
	if flags.dtcIntervalMs < 0 {
		cfg.Server.DTCIntervalMs = 0
	} else if flags.dtcIntervalMs > 0 {
		cfg.Server.DTCIntervalMs = flags.dtcIntervalMs
	}
	if flags.seed != 0 {
		cfg.Server.RNGSeed = flags.seed
	}
	if flags.pcapFile != "" {
		cfg.Server.PcapFile = flags.pcapFile
	}
	if flags.journalPath != "" {
		cfg.Journal.Path = flags.journalPath
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := buildLogger(cfg, flags.logLevel, flags.logFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := []server.Option{}

	var journal *dtc.Journal
	if cfg.Journal.Path != "" {
		journal, err = dtc.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open fault journal: %w", err)
		}
		defer journal.Close()
		opts = append(opts, server.WithJournal(journal))
	}

	var recorder *capture.Writer
	if cfg.Server.PcapFile != "" {
		recorder, err = capture.NewWriter(cfg.Server.PcapFile)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		opts = append(opts, server.WithRecorder(recorder))
	}

	srv := server.NewServer(cfg.Server, logger, opts...)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}

	fmt.Fprintf(os.Stdout, "ECU simulator listening on %s\n", srv.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Fprintf(os.Stdout, "\nShutting down simulator...\n")

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stop simulator: %w", err)
	}

	if recorder != nil {
		count := recorder.FrameCount()
		if err := recorder.Close(); err != nil {
			return fmt.Errorf("close capture file: %w", err)
		}
		absPath, _ := filepath.Abs(cfg.Server.PcapFile)
		fmt.Fprintf(os.Stdout, "Frames captured: %d\n", count)
		fmt.Fprintf(os.Stdout, "PCAP written to: %s\n", absPath)
	}

	return nil
}

// loadConfig reads the named file, or the built-in defaults when no file
// was requested.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildLogger applies the CLI log overrides on top of the config section.
func buildLogger(cfg *config.Config, levelFlag, fileFlag string) (*logging.Logger, error) {
	levelName := cfg.Logging.Level
	if levelFlag != "" {
		levelName = levelFlag
	}
	if levelName == "" {
		levelName = "info"
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	logFile := cfg.Logging.File
	if fileFlag != "" {
		logFile = fileFlag
	}
	return logging.NewLogger(level, logFile)
}
