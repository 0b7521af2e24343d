package server

import (
	"testing"

	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/logging"
	"github.com/canlink/ecubridge/internal/obd"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	cfg := config.ServerSection{
		ListenIP:      "127.0.0.1",
		TCPPort:       0, // ephemeral in tests
		RNGSeed:       1,
		DTCIntervalMs: 0, // lifecycle driven manually
	}
	return NewServer(cfg, logger)
}

func TestDispatchCurrentData(t *testing.T) {
	s := newTestServer(t)

	for _, info := range obd.TrackedPIDs() {
		payload, ok := s.dispatch(obd.ServiceRequest{Service: obd.ServiceCurrentData, PID: info.PID})
		if !ok {
			t.Fatalf("PID 0x%02X not handled", info.PID)
		}
		if payload[0] != byte(2+info.Bytes) {
			t.Errorf("PID 0x%02X length byte = %d, want %d", info.PID, payload[0], 2+info.Bytes)
		}
		if payload[1] != obd.ResponseCurrentData {
			t.Errorf("PID 0x%02X service byte = 0x%02X", info.PID, payload[1])
		}
		if payload[2] != info.PID {
			t.Errorf("PID echo = 0x%02X, want 0x%02X", payload[2], info.PID)
		}
		if len(payload) != 3+info.Bytes {
			t.Errorf("PID 0x%02X payload length = %d", info.PID, len(payload))
		}
	}
}

func TestDispatchUnsupportedPIDDropped(t *testing.T) {
	s := newTestServer(t)
	if _, ok := s.dispatch(obd.ServiceRequest{Service: obd.ServiceCurrentData, PID: 0x42}); ok {
		t.Error("unsupported PID produced a response")
	}
}

func TestDispatchReadDTCs(t *testing.T) {
	s := newTestServer(t)

	t.Run("empty registry", func(t *testing.T) {
		payload, ok := s.dispatch(obd.ServiceRequest{Service: obd.ServiceReadDTCs})
		if !ok {
			t.Fatal("read DTCs not handled")
		}
		want := []byte{0x01, 0x43, 0, 0, 0, 0, 0, 0}
		for i := range want {
			if payload[i] != want[i] {
				t.Fatalf("payload = % X, want % X", payload, want)
			}
		}
	})

	t.Run("bounded at three pairs with sentinel padding", func(t *testing.T) {
		for _, code := range []obd.DTC{
			{High: 0x01, Low: 0x33},
			{High: 0x01, Low: 0x71},
			{High: 0x03, Low: 0x00},
			{High: 0x04, Low: 0x20},
			{High: 0x05, Low: 0x62},
		} {
			s.registry.Add(code)
		}

		payload, _ := s.dispatch(obd.ServiceRequest{Service: obd.ServiceReadDTCs})
		if payload[0] != 0x07 {
			t.Errorf("length byte = 0x%02X, want 0x07", payload[0])
		}
		codes := obd.ParseDTCResponse(payload)
		if len(codes) != maxDTCPairs {
			t.Errorf("encoded %d pairs, want %d", len(codes), maxDTCPairs)
		}
		if len(payload) != 8 {
			t.Errorf("payload length = %d, want 8", len(payload))
		}
	})

	t.Run("one pair pads with zero sentinel", func(t *testing.T) {
		s.registry.ClearAll()
		s.registry.Add(obd.DTC{High: 0x04, Low: 0x40})

		payload, _ := s.dispatch(obd.ServiceRequest{Service: obd.ServiceReadDTCs})
		if payload[0] != 0x03 {
			t.Errorf("length byte = 0x%02X, want 0x03", payload[0])
		}
		for i := 4; i < 8; i++ {
			if payload[i] != 0 {
				t.Errorf("payload[%d] = 0x%02X, want sentinel zero", i, payload[i])
			}
		}
	})
}

func TestDispatchClearDTCs(t *testing.T) {
	s := newTestServer(t)
	s.registry.Add(obd.DTC{High: 0x03, Low: 0x01})

	payload, ok := s.dispatch(obd.ServiceRequest{Service: obd.ServiceClearDTCs})
	if !ok {
		t.Fatal("clear DTCs not handled")
	}
	if payload[1] != obd.ResponseClearDTCs {
		t.Errorf("service byte = 0x%02X, want 0x44", payload[1])
	}
	if s.registry.Len() != 0 {
		t.Errorf("registry holds %d codes after clear", s.registry.Len())
	}
}

func TestSensorValuesInRange(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 200; i++ {
		values, _ := s.sensors.valueBytes(obd.PIDCoolantTemp)
		coolant := int(values[0]) - 40
		if coolant < 88 || coolant > 95 {
			t.Fatalf("coolant = %d °C, want 88..95", coolant)
		}

		values, _ = s.sensors.valueBytes(obd.PIDVehicleSpeed)
		if values[0] < 40 || values[0] > 60 {
			t.Fatalf("speed = %d km/h, want 40..60", values[0])
		}

		values, _ = s.sensors.valueBytes(obd.PIDEngineRPM)
		if len(values) != 2 {
			t.Fatalf("rpm has %d value bytes, want 2", len(values))
		}
	}
}
