package bridge

import (
	"time"

	"github.com/canlink/ecubridge/internal/client"
)

// ReadingJSON is one sensor value as published to WebSocket and MQTT
// consumers. Invalid readings (never received) are published with
// valid=false so dashboards can grey them out instead of showing zero.
type ReadingJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Valid bool    `json:"valid"`
}

// Snapshot is the JSON document fanned out to every consumer.
type Snapshot struct {
	RPM      ReadingJSON `json:"rpm"`
	Speed    ReadingJSON `json:"speed"`
	Coolant  ReadingJSON `json:"coolant"`
	Throttle ReadingJSON `json:"throttle"`
	Load     ReadingJSON `json:"load"`
	Intake   ReadingJSON `json:"intake"`

	DTCs  []string `json:"dtcs"`
	Stamp int64    `json:"stamp"` // Unix ms
}

// DTCEvent is published when a fault code first appears in the live state.
type DTCEvent struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Stamp       int64  `json:"stamp"` // Unix ms
}

// NewSnapshot converts the client's live state into the wire document.
func NewSnapshot(t client.LiveTelemetry) Snapshot {
	codes := make([]string, 0, len(t.DTCs))
	for _, d := range t.DTCs {
		codes = append(codes, d.String())
	}
	return Snapshot{
		RPM:      ReadingJSON{t.RPM.Value, "rpm", t.RPM.Valid},
		Speed:    ReadingJSON{t.Speed.Value, "km/h", t.Speed.Valid},
		Coolant:  ReadingJSON{t.Coolant.Value, "°C", t.Coolant.Valid},
		Throttle: ReadingJSON{t.Throttle.Value, "%", t.Throttle.Valid},
		Load:     ReadingJSON{t.Load.Value, "%", t.Load.Valid},
		Intake:   ReadingJSON{t.Intake.Value, "°C", t.Intake.Valid},
		DTCs:     codes,
		Stamp:    time.Now().UnixMilli(),
	}
}
