package obd

// Wire frame codec for the CAN-over-TCP diagnostic bridge

import (
	"encoding/binary"
	"fmt"
)

// FrameSize is the fixed serialized size of a Frame on the wire:
// 4 bytes arbitration id (little endian), 1 byte DLC, 8 data bytes.
const FrameSize = 13

// OBD-II addressing. Requests are broadcast to the functional address;
// the simulated ECU answers from its physical address.
const (
	RequestID  uint32 = 0x7DF
	ResponseID uint32 = 0x7E8
)

// Diagnostic service codes.
const (
	ServiceCurrentData uint8 = 0x01
	ServiceReadDTCs    uint8 = 0x03
	ServiceClearDTCs   uint8 = 0x04
)

// Response service bytes (request service + 0x40).
const (
	ResponseCurrentData uint8 = 0x41
	ResponseReadDTCs    uint8 = 0x43
	ResponseClearDTCs   uint8 = 0x44
)

// ErrMalformedFrame is returned by DecodeFrame for buffers that are not
// exactly FrameSize bytes.
var ErrMalformedFrame = fmt.Errorf("malformed frame: need exactly %d bytes", FrameSize)

// Frame is a single CAN-style message as carried over the TCP bridge.
// Data is always 8 bytes; bytes past DLC are zero padding.
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

// Payload returns the DLC-bounded portion of the data bytes.
func (f Frame) Payload() []byte {
	n := f.DLC
	if n > 8 {
		n = 8
	}
	return f.Data[:n]
}

func (f Frame) String() string {
	return fmt.Sprintf("id=0x%03X dlc=%d data=% X", f.ID, f.DLC, f.Payload())
}

// EncodeFrame serializes an arbitration id and payload into the fixed
// 13-byte wire format. Payloads longer than 8 bytes are truncated silently;
// the wire format cannot carry more and callers never see an error from here.
func EncodeFrame(id uint32, data []byte) [FrameSize]byte {
	if len(data) > 8 {
		data = data[:8]
	}

	var out [FrameSize]byte
	binary.LittleEndian.PutUint32(out[0:4], id)
	out[4] = uint8(len(data))
	copy(out[5:], data)
	return out
}

// DecodeFrame parses one wire frame. The buffer must be exactly FrameSize
// bytes; the stream decoder guarantees this for every slice it hands over.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) != FrameSize {
		return Frame{}, fmt.Errorf("%w, got %d", ErrMalformedFrame, len(buf))
	}

	f := Frame{
		ID:  binary.LittleEndian.Uint32(buf[0:4]),
		DLC: buf[4],
	}
	copy(f.Data[:], buf[5:])
	if f.DLC > 8 {
		f.DLC = 8
	}
	return f, nil
}
