package obd

// Request builders and request parsing shared by client and simulator.

// ServiceRequest is a decoded diagnostic request: the service id plus its
// service-specific payload (a PID byte for current data, nothing for the
// DTC services).
type ServiceRequest struct {
	Service uint8
	PID     uint8
}

// NewCurrentDataRequest builds the service 0x01 payload for one PID:
// [length, service, pid, 0...].
func NewCurrentDataRequest(pid uint8) []byte {
	return []byte{0x02, ServiceCurrentData, pid, 0, 0, 0, 0, 0}
}

// NewReadDTCRequest builds the service 0x03 payload.
func NewReadDTCRequest() []byte {
	return []byte{0x01, ServiceReadDTCs, 0, 0, 0, 0, 0, 0}
}

// NewClearDTCRequest builds the service 0x04 payload.
func NewClearDTCRequest() []byte {
	return []byte{0x01, ServiceClearDTCs, 0, 0, 0, 0, 0, 0}
}

// ParseServiceRequest validates a request frame and extracts the service
// and PID. It rejects anything not addressed to RequestID, payloads whose
// declared length byte disagrees with the DLC-bounded payload, and lengths
// that cannot hold the service byte. Rejected requests are dropped by the
// dispatcher without a response, mirroring a real ECU staying silent on
// requests it does not support.
func ParseServiceRequest(f Frame) (ServiceRequest, bool) {
	if f.ID != RequestID {
		return ServiceRequest{}, false
	}

	payload := f.Payload()
	if len(payload) < 2 {
		return ServiceRequest{}, false
	}

	declared := int(payload[0])
	if declared < 1 || declared > len(payload)-1 {
		return ServiceRequest{}, false
	}

	req := ServiceRequest{Service: payload[1]}
	switch req.Service {
	case ServiceCurrentData:
		if declared < 2 || len(payload) < 3 {
			return ServiceRequest{}, false
		}
		req.PID = payload[2]
	case ServiceReadDTCs, ServiceClearDTCs:
		// No service-specific payload.
	default:
		return ServiceRequest{}, false
	}
	return req, true
}
