package client

import (
	"time"

	"github.com/canlink/ecubridge/internal/obd"
)

// Reading is one decoded sensor value. Valid is false until the first
// response for that PID arrives, so "no data yet" is explicit rather than
// a zero that looks like a measurement.
type Reading struct {
	Value     float64
	Valid     bool
	UpdatedAt time.Time
}

// LiveTelemetry is the client's last-known view of the vehicle. Generation
// increments on every accepted current-data response; it only signals that
// something changed and never carries the change itself.
type LiveTelemetry struct {
	RPM      Reading
	Speed    Reading
	Coolant  Reading
	Throttle Reading
	Load     Reading
	Intake   Reading

	// DTCs is the last-known stored fault list; DTCsUpdatedAt stamps the
	// most recent 0x43 response so callers can tell a fresh empty list
	// from one that never arrived. Fault responses do not bump Generation.
	DTCs          []obd.DTC
	DTCsUpdatedAt time.Time

	Generation uint64
}

// reading maps a PID byte to its slot; nil for untracked PIDs.
func (t *LiveTelemetry) reading(pid uint8) *Reading {
	switch pid {
	case obd.PIDEngineRPM:
		return &t.RPM
	case obd.PIDVehicleSpeed:
		return &t.Speed
	case obd.PIDCoolantTemp:
		return &t.Coolant
	case obd.PIDThrottle:
		return &t.Throttle
	case obd.PIDEngineLoad:
		return &t.Load
	case obd.PIDIntakeTemp:
		return &t.Intake
	default:
		return nil
	}
}

// ByName returns the reading for a tracked PID short name.
func (t *LiveTelemetry) ByName(name string) (Reading, bool) {
	info, ok := obd.LookupPIDName(name)
	if !ok {
		return Reading{}, false
	}
	r := t.reading(info.PID)
	if r == nil {
		return Reading{}, false
	}
	return *r, true
}

// clone deep-copies the telemetry record.
func (t *LiveTelemetry) clone() LiveTelemetry {
	out := *t
	out.DTCs = append([]obd.DTC(nil), t.DTCs...)
	return out
}
