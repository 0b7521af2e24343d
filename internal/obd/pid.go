package obd

// Parameter IDs for service 0x01 current data.
const (
	PIDSupported    uint8 = 0x00
	PIDEngineLoad   uint8 = 0x04
	PIDCoolantTemp  uint8 = 0x05
	PIDIntakeMAP    uint8 = 0x0B
	PIDEngineRPM    uint8 = 0x0C
	PIDVehicleSpeed uint8 = 0x0D
	PIDIntakeTemp   uint8 = 0x0F
	PIDMAFRate      uint8 = 0x10
	PIDThrottle     uint8 = 0x11
	PIDBaroPressure uint8 = 0x33
)

// PIDInfo describes a current-data parameter: its payload width in value
// bytes and the formula turning raw bytes into a physical quantity.
type PIDInfo struct {
	PID    uint8
	Name   string
	Unit   string
	Bytes  int
	Decode func(a, b byte) float64
}

// pidTable covers the parameters the client tracks. The simulator answers
// a few more (MAP, MAF, barometric pressure, the 0x00 capability bitmap)
// for probe tools, but those are not part of the live telemetry set.
var pidTable = []PIDInfo{
	{PIDEngineRPM, "rpm", "rpm", 2, func(a, b byte) float64 { return (float64(a)*256 + float64(b)) / 4.0 }},
	{PIDVehicleSpeed, "speed", "km/h", 1, func(a, _ byte) float64 { return float64(a) }},
	{PIDCoolantTemp, "coolant", "°C", 1, func(a, _ byte) float64 { return float64(a) - 40 }},
	{PIDThrottle, "throttle", "%", 1, func(a, _ byte) float64 { return float64(a) * 100 / 255 }},
	{PIDEngineLoad, "load", "%", 1, func(a, _ byte) float64 { return float64(a) * 100 / 255 }},
	{PIDIntakeTemp, "intake", "°C", 1, func(a, _ byte) float64 { return float64(a) - 40 }},
}

// TrackedPIDs returns the parameters polled by RequestAll, in a stable order.
func TrackedPIDs() []PIDInfo {
	out := make([]PIDInfo, len(pidTable))
	copy(out, pidTable)
	return out
}

// LookupPID finds a tracked parameter by PID byte.
func LookupPID(pid uint8) (PIDInfo, bool) {
	for _, info := range pidTable {
		if info.PID == pid {
			return info, true
		}
	}
	return PIDInfo{}, false
}

// LookupPIDName finds a tracked parameter by its short name (e.g. "rpm").
func LookupPIDName(name string) (PIDInfo, bool) {
	for _, info := range pidTable {
		if info.Name == name {
			return info, true
		}
	}
	return PIDInfo{}, false
}
