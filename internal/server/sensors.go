package server

import (
	"math/rand"
	"sync"

	"github.com/canlink/ecubridge/internal/obd"
)

// sensorBank produces the raw value bytes for every supported PID. Values
// wander randomly inside plausible ranges for an idling-to-cruising engine;
// the inverse of the client-side formulas, expressed in raw bytes. One lock
// guards the rng because every connection goroutine draws from it.
type sensorBank struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSensorBank(rng *rand.Rand) *sensorBank {
	return &sensorBank{rng: rng}
}

// intn is rand.Intn under the bank lock.
func (b *sensorBank) intn(lo, hi int) byte {
	return byte(lo + b.rng.Intn(hi-lo+1))
}

// valueBytes returns the value bytes for one PID, or false for a PID the
// ECU does not support.
func (b *sensorBank) valueBytes(pid uint8) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch pid {
	case obd.PIDSupported:
		// Capability bitmap for PIDs 0x01..0x20.
		return []byte{0xBF, 0xDF, 0xB9, 0x91}, true
	case obd.PIDEngineLoad:
		return []byte{b.intn(50, 150)}, true
	case obd.PIDCoolantTemp:
		// 88..95 °C plus the +40 offset.
		return []byte{b.intn(88+40, 95+40)}, true
	case obd.PIDIntakeMAP:
		return []byte{b.intn(10, 40)}, true
	case obd.PIDEngineRPM:
		// ((A*256)+B)/4 lands between ~1150 and ~4540 rpm.
		return []byte{b.intn(18, 70), b.intn(0, 255)}, true
	case obd.PIDVehicleSpeed:
		return []byte{b.intn(40, 60)}, true
	case obd.PIDIntakeTemp:
		return []byte{b.intn(60, 64)}, true
	case obd.PIDMAFRate:
		return []byte{0x00, 0xFA}, true
	case obd.PIDThrottle:
		return []byte{b.intn(20, 60)}, true
	case obd.PIDBaroPressure:
		return []byte{b.intn(95, 103)}, true
	default:
		return nil, false
	}
}
