package obd

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   uint32
		data []byte
	}{
		{"empty payload", RequestID, nil},
		{"single byte", ResponseID, []byte{0x41}},
		{"current data request", RequestID, []byte{0x02, 0x01, 0x0C, 0, 0, 0, 0, 0}},
		{"rpm response", ResponseID, []byte{0x04, 0x41, 0x0C, 0x1A, 0x2B}},
		{"full eight bytes", 0x123, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"max arbitration id", 0xFFFFFFFF, []byte{0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := EncodeFrame(tt.id, tt.data)
			if len(wire) != FrameSize {
				t.Fatalf("encoded length = %d, want %d", len(wire), FrameSize)
			}

			f, err := DecodeFrame(wire[:])
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if f.ID != tt.id {
				t.Errorf("ID = 0x%X, want 0x%X", f.ID, tt.id)
			}
			if int(f.DLC) != len(tt.data) {
				t.Errorf("DLC = %d, want %d", f.DLC, len(tt.data))
			}
			if !bytes.Equal(f.Payload(), tt.data) && len(tt.data) > 0 {
				t.Errorf("payload = % X, want % X", f.Payload(), tt.data)
			}
			for i := len(tt.data); i < 8; i++ {
				if f.Data[i] != 0 {
					t.Errorf("data[%d] = 0x%02X, want zero padding", i, f.Data[i])
				}
			}
		})
	}
}

func TestEncodeFrameWireLayout(t *testing.T) {
	wire := EncodeFrame(0x7E8, []byte{0x04, 0x41, 0x0C, 0x1A, 0x2B})
	want := []byte{0xE8, 0x07, 0x00, 0x00, 0x05, 0x04, 0x41, 0x0C, 0x1A, 0x2B, 0x00, 0x00, 0x00}
	if !bytes.Equal(wire[:], want) {
		t.Errorf("wire = % X, want % X", wire, want)
	}
}

func TestEncodeFrameTruncatesOversizedPayload(t *testing.T) {
	wire := EncodeFrame(0x7DF, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	f, err := DecodeFrame(wire[:])
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if f.DLC != 8 {
		t.Errorf("DLC = %d, want 8", f.DLC)
	}
	if !bytes.Equal(f.Payload(), []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("payload = % X, want first 8 bytes", f.Payload())
	}
}

func TestDecodeFrameRejectsBadLength(t *testing.T) {
	for _, n := range []int{0, 1, 12, 14, 26} {
		if _, err := DecodeFrame(make([]byte, n)); err == nil {
			t.Errorf("DecodeFrame accepted %d bytes", n)
		}
	}
}

func TestDecodeFrameClampsDLC(t *testing.T) {
	var buf [FrameSize]byte
	buf[4] = 0x0F // DLC beyond the 8-byte data field
	f, err := DecodeFrame(buf[:])
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if f.DLC != 8 {
		t.Errorf("DLC = %d, want clamp to 8", f.DLC)
	}
}

func TestStringClampsOversizedDLC(t *testing.T) {
	// Hand-constructed frames bypass DecodeFrame's clamp; String must not
	// slice past the 8-byte data field.
	for _, dlc := range []uint8{9, 12, 15, 255} {
		f := Frame{ID: RequestID, DLC: dlc, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
		s := f.String()
		if !strings.Contains(s, "01 02 03 04 05 06 07 08") {
			t.Errorf("String() with dlc=%d = %q, want all 8 data bytes", dlc, s)
		}
	}
}
