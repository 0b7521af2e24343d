package server

import (
	"github.com/canlink/ecubridge/internal/obd"
)

// maxDTCPairs is how many code pairs fit in one response frame after the
// length and service bytes.
const maxDTCPairs = 3

// dispatch maps a validated service request to a response payload. A false
// return means the request is dropped without any response frame.
func (s *Server) dispatch(req obd.ServiceRequest) ([]byte, bool) {
	switch req.Service {
	case obd.ServiceCurrentData:
		return s.handleCurrentData(req.PID)
	case obd.ServiceReadDTCs:
		return s.handleReadDTCs(), true
	case obd.ServiceClearDTCs:
		return s.handleClearDTCs(), true
	default:
		return nil, false
	}
}

// handleCurrentData answers a service 0x01 request:
// [len, 0x41, pid, value bytes...], len = 2 + value bytes.
func (s *Server) handleCurrentData(pid uint8) ([]byte, bool) {
	values, ok := s.sensors.valueBytes(pid)
	if !ok {
		return nil, false
	}

	payload := make([]byte, 0, 3+len(values))
	payload = append(payload, byte(2+len(values)), obd.ResponseCurrentData, pid)
	payload = append(payload, values...)
	return payload, true
}

// handleReadDTCs answers a service 0x03 request: [len, 0x43, pairs...],
// at most maxDTCPairs pairs, the rest of the frame (0,0) padded.
func (s *Server) handleReadDTCs() []byte {
	codes := s.registry.Snapshot()
	if len(codes) > maxDTCPairs {
		codes = codes[:maxDTCPairs]
	}

	payload := make([]byte, 8)
	payload[0] = byte(1 + 2*len(codes))
	payload[1] = obd.ResponseReadDTCs
	for i, code := range codes {
		payload[2+2*i] = code.High
		payload[3+2*i] = code.Low
	}
	return payload
}

// handleClearDTCs answers a service 0x04 request. Clearing always succeeds.
func (s *Server) handleClearDTCs() []byte {
	s.registry.ClearAll()
	s.logger.Info("DTCs cleared by client request")
	return []byte{0x01, obd.ResponseClearDTCs, 0, 0, 0, 0, 0, 0}
}
