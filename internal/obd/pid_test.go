package obd

import (
	"math"
	"testing"
)

func TestPIDFormulas(t *testing.T) {
	tests := []struct {
		name string
		pid  uint8
		a, b byte
		want float64
	}{
		{"rpm", PIDEngineRPM, 0x1A, 0x2B, 1685.75},
		{"rpm idle", PIDEngineRPM, 0x0B, 0xB8, 750},
		{"speed", PIDVehicleSpeed, 90, 0, 90},
		{"speed zero", PIDVehicleSpeed, 0, 0, 0},
		{"coolant", PIDCoolantTemp, 0x5A, 0, 50},
		{"coolant below zero", PIDCoolantTemp, 10, 0, -30},
		{"throttle midpoint", PIDThrottle, 128, 0, 128.0 * 100 / 255},
		{"throttle full", PIDThrottle, 255, 0, 100},
		{"load", PIDEngineLoad, 51, 0, 20},
		{"intake", PIDIntakeTemp, 100, 0, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := LookupPID(tt.pid)
			if !ok {
				t.Fatalf("LookupPID(0x%02X) not found", tt.pid)
			}
			got := info.Decode(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Decode(0x%02X, 0x%02X) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestThrottlePrecision(t *testing.T) {
	info, _ := LookupPID(PIDThrottle)
	got := info.Decode(128, 0)
	if math.Abs(got-50.196078431372548) > 1e-12 {
		t.Errorf("throttle at A=128 = %.15f, want ≈50.196078431372548", got)
	}
}

func TestTrackedPIDs(t *testing.T) {
	pids := TrackedPIDs()
	if len(pids) != 6 {
		t.Fatalf("tracked %d PIDs, want 6", len(pids))
	}
	seen := make(map[uint8]bool)
	for _, info := range pids {
		if seen[info.PID] {
			t.Errorf("duplicate PID 0x%02X", info.PID)
		}
		seen[info.PID] = true
		if info.Bytes < 1 || info.Bytes > 2 {
			t.Errorf("PID 0x%02X value width = %d", info.PID, info.Bytes)
		}
	}
}

func TestLookupPIDName(t *testing.T) {
	info, ok := LookupPIDName("rpm")
	if !ok || info.PID != PIDEngineRPM {
		t.Errorf("LookupPIDName(rpm) = %+v, %v", info, ok)
	}
	if _, ok := LookupPIDName("boost"); ok {
		t.Error("LookupPIDName(boost) unexpectedly found")
	}
}
