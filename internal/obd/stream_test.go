package obd

import (
	"bytes"
	"math/rand"
	"testing"
)

func testFrames(n int) ([]Frame, []byte) {
	frames := make([]Frame, 0, n)
	var wire []byte
	for i := 0; i < n; i++ {
		data := []byte{byte(i), 0x41, byte(i * 3), byte(255 - i)}
		enc := EncodeFrame(ResponseID, data[:1+i%4])
		f, _ := DecodeFrame(enc[:])
		frames = append(frames, f)
		wire = append(wire, enc[:]...)
	}
	return frames, wire
}

func TestStreamDecoderWholeFrames(t *testing.T) {
	want, wire := testFrames(5)
	d := NewStreamDecoder()

	got := d.Feed(wire)
	if len(got) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d, want 0", d.Pending())
	}
}

func TestStreamDecoderSingleByteChunks(t *testing.T) {
	want, wire := testFrames(4)
	d := NewStreamDecoder()

	var got []Frame
	for _, b := range wire {
		got = append(got, d.Feed([]byte{b})...)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStreamDecoderArbitrarySplits(t *testing.T) {
	want, wire := testFrames(32)
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		d := NewStreamDecoder()
		var got []Frame
		rest := wire
		for len(rest) > 0 {
			n := 1 + rng.Intn(3*FrameSize)
			if n > len(rest) {
				n = len(rest)
			}
			got = append(got, d.Feed(rest[:n])...)
			rest = rest[n:]
		}
		if len(got) != len(want) {
			t.Fatalf("trial %d: decoded %d frames, want %d", trial, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("trial %d: frame %d = %v, want %v", trial, i, got[i], want[i])
			}
		}
		if d.Pending() != 0 {
			t.Fatalf("trial %d: pending = %d, want 0", trial, d.Pending())
		}
	}
}

func TestStreamDecoderRetainsPartialFrame(t *testing.T) {
	_, wire := testFrames(2)
	d := NewStreamDecoder()

	got := d.Feed(wire[:FrameSize+5])
	if len(got) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(got))
	}
	if d.Pending() != 5 {
		t.Errorf("pending = %d, want 5", d.Pending())
	}

	got = d.Feed(wire[FrameSize+5:])
	if len(got) != 1 {
		t.Fatalf("decoded %d frames from remainder, want 1", len(got))
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d, want 0", d.Pending())
	}
}

func TestStreamDecoderEmptyChunk(t *testing.T) {
	d := NewStreamDecoder()
	if got := d.Feed(nil); got != nil {
		t.Errorf("Feed(nil) = %v, want nil", got)
	}
}

func TestStreamDecoderByteIdentical(t *testing.T) {
	_, wire := testFrames(6)
	d := NewStreamDecoder()

	var reencoded []byte
	for _, f := range d.Feed(wire) {
		enc := EncodeFrame(f.ID, f.Payload())
		reencoded = append(reencoded, enc[:]...)
	}
	if !bytes.Equal(reencoded, wire) {
		t.Errorf("re-encoded stream differs from input:\n got % X\nwant % X", reencoded, wire)
	}
}
