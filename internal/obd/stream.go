package obd

// StreamDecoder reassembles fixed-size frames from a TCP byte stream.
// TCP gives no alignment guarantees: one read may carry a fraction of a
// frame or several frames back to back. Each connection owns its own
// decoder; sharing one across connections would corrupt frame boundaries.
//
// The buffer is append-only with an advancing read cursor. Consumed bytes
// are never re-scanned, and the buffer is compacted only once the cursor
// reaches the logical end, so cost stays O(1) amortized per decoded frame.
type StreamDecoder struct {
	buf []byte
	off int
}

// NewStreamDecoder returns a decoder with a small preallocated buffer.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{buf: make([]byte, 0, 16*FrameSize)}
}

// Feed appends a chunk of raw bytes and returns every complete frame now
// available, in wire order. A partial frame stays buffered for the next
// chunk. Chunks of any size are fine, including empty and single-byte.
func (d *StreamDecoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for len(d.buf)-d.off >= FrameSize {
		f, err := DecodeFrame(d.buf[d.off : d.off+FrameSize])
		if err != nil {
			// Unreachable: the slice is exactly FrameSize bytes.
			d.off += FrameSize
			continue
		}
		frames = append(frames, f)
		d.off += FrameSize
	}

	if d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
	return frames
}

// Pending reports how many bytes of an incomplete frame are buffered.
// Anything pending when a connection closes is discarded with it.
func (d *StreamDecoder) Pending() int {
	return len(d.buf) - d.off
}
