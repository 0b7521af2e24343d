package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/canlink/ecubridge/internal/analyzer"
	"github.com/canlink/ecubridge/internal/bridge"
	"github.com/canlink/ecubridge/internal/client"
	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/logging"
	"github.com/canlink/ecubridge/internal/obd"
	"github.com/canlink/ecubridge/internal/tui"
)

type monitorFlags struct {
	configPath     string
	host           string
	port           int
	pollIntervalMs int
	wsListen       string
	mqttBroker     string
	logLevel       string
	logFile        string
}

func newMonitorCmd() *cobra.Command {
	flags := &monitorFlags{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live telemetry dashboard",
		Long: `Connect to a running ECU and show a live dashboard of sensor readings
and stored fault codes.

The dashboard polls the ECU on a fixed interval. Selected fault codes can be
explained via the configured analyzer service, copied to the clipboard, or
cleared from the ECU.

With --ws-listen the same telemetry is fanned out as JSON to WebSocket
clients on /ws. With --mqtt-broker snapshots are published periodically and
each newly stored fault code is published as its own event.`,
		Example: `  # Dashboard against a local simulator
  ecubridge monitor

  # Feed a browser dashboard as well
  ecubridge monitor --ws-listen 127.0.0.1:8088

  # Publish telemetry to an MQTT broker
  ecubridge monitor --mqtt-broker tcp://localhost:1883`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runMonitor(flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (optional)")
	cmd.Flags().StringVar(&flags.host, "host", "", "ECU host (default \"127.0.0.1\")")
	cmd.Flags().IntVar(&flags.port, "port", 0, "ECU port (default 55555)")
	cmd.Flags().IntVar(&flags.pollIntervalMs, "poll-interval-ms", 0, "Dashboard poll interval (default 500)")
	cmd.Flags().StringVar(&flags.wsListen, "ws-listen", "", "Serve telemetry to WebSocket clients on this address")
	cmd.Flags().StringVar(&flags.mqttBroker, "mqtt-broker", "", "Publish telemetry to this MQTT broker (e.g. tcp://localhost:1883)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level override: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Also write log output to this file")

	return cmd
}

func runMonitor(flags *monitorFlags) error {
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
	if flags.pollIntervalMs > 0 {
		cfg.Client.PollIntervalMs = flags.pollIntervalMs
	}
	if flags.wsListen != "" {
		cfg.Bridge.WSListen = flags.wsListen
	}
	if flags.mqttBroker != "" {
		cfg.Bridge.MQTTBroker = flags.mqttBroker
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// The TUI owns the terminal; interactive runs keep stdout silent
	// unless a log file is in play.
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

	explainer := analyzer.New(cfg.Analyzer.BaseURL,
		time.Duration(cfg.Analyzer.TimeoutMs)*time.Millisecond, logger)

	stopFanout, err := startFanout(cfg.Bridge, logger, ecu)
	if err != nil {
		return err
	}
	if stopFanout != nil {
		defer stopFanout()
	}

	interval := time.Duration(cfg.Client.PollIntervalMs) * time.Millisecond
	return tui.Run(ecu, explainer, interval)
}

// startFanout wires the optional WebSocket and MQTT bridges to the client.
// It returns a stop function when anything was started, nil otherwise.
func startFanout(cfg config.BridgeSection, logger *logging.Logger, ecu *client.Client) (func(), error) {
	var ws *bridge.WSServer
	var pub *bridge.Publisher

	if cfg.WSListen != "" {
		ws = bridge.NewWSServer(logger)
		if err := ws.Start(cfg.WSListen); err != nil {
			return nil, fmt.Errorf("start WebSocket fan-out: %w", err)
		}
	}

	if cfg.MQTTBroker != "" {
		pub = bridge.NewPublisher(cfg, logger, func() bridge.Snapshot {
			return bridge.NewSnapshot(ecu.Snapshot())
		})
		if err := pub.Connect(); err != nil {
			if ws != nil {
				ws.Stop()
			}
			return nil, fmt.Errorf("connect MQTT broker: %w", err)
		}
		pub.StartPublishing()
	}

	if ws == nil && pub == nil {
		return nil, nil
	}

	done := make(chan struct{})
	go fanoutLoop(ecu, ws, pub, done)

	return func() {
		close(done)
		if ws != nil {
			ws.Stop()
		}
		if pub != nil {
			pub.Stop()
		}
	}, nil
}

// fanoutLoop pushes a snapshot to the WebSocket clients on every state
// change and publishes newly stored fault codes to MQTT.
func fanoutLoop(ecu *client.Client, ws *bridge.WSServer, pub *bridge.Publisher, done <-chan struct{}) {
	seen := make(map[obd.DTC]struct{})
	for {
		select {
		case <-done:
			return
		case _, ok := <-ecu.Notifications():
			if !ok {
				return
			}
			state := ecu.Snapshot()
			if ws != nil {
				ws.Broadcast(bridge.NewSnapshot(state))
			}
			if pub != nil {
				current := make(map[obd.DTC]struct{}, len(state.DTCs))
				for _, code := range state.DTCs {
					current[code] = struct{}{}
					if _, known := seen[code]; !known {
						pub.PublishDTC(code)
					}
				}
				seen = current
			}
		}
	}
}
