package obd

import "fmt"

// DTC is a diagnostic trouble code as carried on the wire: two raw bytes
// holding the category+number pair. The zero value is the (0,0) sentinel
// used to pad unused pairs in a 0x43 response.
type DTC struct {
	High byte
	Low  byte
}

// IsZero reports whether the code is the padding sentinel.
func (c DTC) IsZero() bool {
	return c.High == 0 && c.Low == 0
}

// String renders the powertrain form, e.g. P0133.
func (c DTC) String() string {
	return fmt.Sprintf("P%02X%02X", c.High, c.Low)
}

// ParseDTCResponse extracts trouble codes from a 0x43 response payload.
// Pairs are read after the length and service bytes until the payload is
// exhausted or the (0,0) sentinel is hit.
func ParseDTCResponse(payload []byte) []DTC {
	if len(payload) < 2 || payload[1] != ResponseReadDTCs {
		return nil
	}

	var codes []DTC
	for i := 2; i+1 < len(payload); i += 2 {
		c := DTC{High: payload[i], Low: payload[i+1]}
		if c.IsZero() {
			break
		}
		codes = append(codes, c)
	}
	return codes
}
