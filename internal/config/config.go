package config

// Configuration loading and validation for ecubridge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerSection configures the ECU simulator endpoint.
type ServerSection struct {
	ListenIP      string `yaml:"listen_ip"`
	TCPPort       int    `yaml:"tcp_port"`
	RNGSeed       int64  `yaml:"rng_seed"`        // 0 = time-seeded
	DTCIntervalMs int    `yaml:"dtc_interval_ms"` // background fault lifecycle tick
	PcapFile      string `yaml:"pcap_file,omitempty"`
}

// ClientSection configures the telemetry client.
type ClientSection struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
	PollIntervalMs   int    `yaml:"poll_interval_ms"` // dashboard poll cadence
}

// AnalyzerSection points at the external fault explanation service.
type AnalyzerSection struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// BridgeSection configures the optional WebSocket and MQTT fan-out.
type BridgeSection struct {
	WSListen          string `yaml:"ws_listen,omitempty"`   // e.g. 127.0.0.1:8088
	MQTTBroker        string `yaml:"mqtt_broker,omitempty"` // e.g. tcp://localhost:1883
	MQTTClientID      string `yaml:"mqtt_client_id,omitempty"`
	MQTTTopic         string `yaml:"mqtt_topic,omitempty"`
	MQTTDTCTopic      string `yaml:"mqtt_dtc_topic,omitempty"`
	PublishIntervalMs int    `yaml:"publish_interval_ms,omitempty"`
}

// JournalSection configures the fault occurrence journal.
type JournalSection struct {
	Path string `yaml:"path,omitempty"` // empty disables journaling
}

// LoggingSection mirrors the --log-level/--log-file flags.
type LoggingSection struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerSection   `yaml:"server"`
	Client   ClientSection   `yaml:"client"`
	Analyzer AnalyzerSection `yaml:"analyzer"`
	Bridge   BridgeSection   `yaml:"bridge"`
	Journal  JournalSection  `yaml:"journal"`
	Logging  LoggingSection  `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads a configuration from a YAML file, applies defaults for any
// omitted field, and validates the result. A missing file is an error; use
// Default when no file is wanted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\n\n"+
				"To fix this:\n"+
				"  1. Write the defaults: ecubridge config print-default > ecubridge.yaml\n"+
				"  2. Edit ecubridge.yaml\n"+
				"  3. Or point at another file with --config <path>", path)
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenIP == "" {
		cfg.Server.ListenIP = "127.0.0.1"
	}
	if cfg.Server.TCPPort == 0 {
		cfg.Server.TCPPort = 55555
	}
	if cfg.Server.DTCIntervalMs == 0 {
		cfg.Server.DTCIntervalMs = 7000
	}
	if cfg.Client.Host == "" {
		cfg.Client.Host = "127.0.0.1"
	}
	if cfg.Client.Port == 0 {
		cfg.Client.Port = 55555
	}
	if cfg.Client.ConnectTimeoutMs == 0 {
		cfg.Client.ConnectTimeoutMs = 5000
	}
	if cfg.Client.PollIntervalMs == 0 {
		cfg.Client.PollIntervalMs = 500
	}
	if cfg.Analyzer.BaseURL == "" {
		cfg.Analyzer.BaseURL = "http://127.0.0.1:8000"
	}
	if cfg.Analyzer.TimeoutMs == 0 {
		cfg.Analyzer.TimeoutMs = 3000
	}
	if cfg.Bridge.MQTTClientID == "" {
		cfg.Bridge.MQTTClientID = "ecubridge"
	}
	if cfg.Bridge.MQTTTopic == "" {
		cfg.Bridge.MQTTTopic = "vehicle/telemetry"
	}
	if cfg.Bridge.MQTTDTCTopic == "" {
		cfg.Bridge.MQTTDTCTopic = "vehicle/dtc"
	}
	if cfg.Bridge.PublishIntervalMs == 0 {
		cfg.Bridge.PublishIntervalMs = 10000
	}
}

// Validate checks a configuration for inconsistencies.
func Validate(cfg *Config) error {
	if cfg.Server.TCPPort < 1 || cfg.Server.TCPPort > 65535 {
		return fmt.Errorf("server.tcp_port must be between 1 and 65535")
	}
	if cfg.Client.Port < 1 || cfg.Client.Port > 65535 {
		return fmt.Errorf("client.port must be between 1 and 65535")
	}
	if cfg.Server.DTCIntervalMs < 0 {
		return fmt.Errorf("server.dtc_interval_ms must be >= 0")
	}
	if cfg.Client.ConnectTimeoutMs < 0 {
		return fmt.Errorf("client.connect_timeout_ms must be >= 0")
	}
	if cfg.Client.PollIntervalMs < 0 {
		return fmt.Errorf("client.poll_interval_ms must be >= 0")
	}
	if cfg.Bridge.PublishIntervalMs < 0 {
		return fmt.Errorf("bridge.publish_interval_ms must be >= 0")
	}
	if cfg.Analyzer.BaseURL != "" &&
		!strings.HasPrefix(cfg.Analyzer.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.Analyzer.BaseURL, "https://") {
		return fmt.Errorf("analyzer.base_url must start with http:// or https://")
	}
	if cfg.Logging.Level != "" {
		switch strings.ToLower(cfg.Logging.Level) {
		case "silent", "error", "info", "verbose", "debug":
		default:
			return fmt.Errorf("logging.level must be silent, error, info, verbose, or debug")
		}
	}
	return nil
}

// PrintDefault renders the default configuration as YAML.
func PrintDefault() (string, error) {
	out, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}
	return string(out), nil
}
