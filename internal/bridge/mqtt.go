package bridge

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/dtc"
	"github.com/canlink/ecubridge/internal/logging"
	"github.com/canlink/ecubridge/internal/obd"
)

// Publisher periodically publishes telemetry snapshots to an MQTT broker
// and emits a per-code event whenever a new fault appears. Publishing is
// best-effort: a broker outage degrades to log lines, never to a stalled
// monitor loop.
type Publisher struct {
	cfg    config.BridgeSection
	logger *logging.Logger
	client mqtt.Client
	source func() Snapshot

	stopChan chan struct{}
}

// NewPublisher builds a publisher; source is called on every tick for the
// current snapshot.
func NewPublisher(cfg config.BridgeSection, logger *logging.Logger, source func() Snapshot) *Publisher {
	return &Publisher{
		cfg:      cfg,
		logger:   logger,
		source:   source,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes the broker session.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.MQTTBroker)
	opts.SetClientID(p.cfg.MQTTClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.logger.Info("Connected to MQTT broker %s", p.cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Error("MQTT connection lost: %v", err)
	})

	p.client = mqtt.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// StartPublishing begins the periodic snapshot publishing loop.
func (p *Publisher) StartPublishing() {
	interval := time.Duration(p.cfg.PublishIntervalMs) * time.Millisecond
	p.logger.Info("Publishing telemetry to %s every %v", p.cfg.MQTTTopic, interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.publishSnapshot()
			}
		}
	}()
}

func (p *Publisher) publishSnapshot() {
	data, err := json.Marshal(p.source())
	if err != nil {
		p.logger.Error("Failed to serialize telemetry: %v", err)
		return
	}

	token := p.client.Publish(p.cfg.MQTTTopic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		p.logger.Error("Failed to publish telemetry: %v", token.Error())
		return
	}
	p.logger.Debug("Published telemetry snapshot (%d bytes)", len(data))
}

// PublishDTC publishes a single fault code to the DTC topic.
func (p *Publisher) PublishDTC(code obd.DTC) {
	if p.client == nil || !p.client.IsConnected() {
		p.logger.Verbose("MQTT not connected, dropping DTC event %s", code)
		return
	}

	data, err := json.Marshal(DTCEvent{
		Code:        code.String(),
		Description: dtc.Descriptions[code.String()],
		Stamp:       time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	token := p.client.Publish(p.cfg.MQTTDTCTopic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		p.logger.Error("Failed to publish DTC %s: %v", code, token.Error())
		return
	}
	p.logger.Verbose("Published DTC %s to %s", code, p.cfg.MQTTDTCTopic)
}

// Stop ends the publishing loop and disconnects from the broker.
func (p *Publisher) Stop() {
	close(p.stopChan)
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
