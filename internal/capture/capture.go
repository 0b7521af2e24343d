package capture

// Frame capture to pcap. Frames are written as LINKTYPE_CAN_SOCKETCAN
// records so the file opens directly in Wireshark with CAN dissection.
// No live capture handle is involved: the bridge already sees every frame,
// so it records them itself.

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/canlink/ecubridge/internal/obd"
)

// linkTypeSocketCAN is LINKTYPE_CAN_SOCKETCAN (227); gopacket has no named
// constant for it.
const linkTypeSocketCAN = layers.LinkType(227)

// socketCANRecordSize is the classic CAN socketcan record: 4-byte id
// (big endian in pcap), length, 3 padding bytes, 8 data bytes.
const socketCANRecordSize = 16

// Writer records frames to a pcap file. Safe for concurrent use; the
// server's connection goroutines all feed it.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	pcap   *pcapgo.Writer
	frames int
	closed bool
}

// NewWriter creates the output file and writes the pcap header.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file: %w", err)
	}

	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(socketCANRecordSize, linkTypeSocketCAN); err != nil {
		file.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}

	return &Writer{file: file, pcap: w}, nil
}

// RecordInbound records a frame received from a client.
func (w *Writer) RecordInbound(f obd.Frame) {
	w.record(f)
}

// RecordOutbound records a frame sent to a client.
func (w *Writer) RecordOutbound(f obd.Frame) {
	w.record(f)
}

func (w *Writer) record(f obd.Frame) {
	data := make([]byte, socketCANRecordSize)
	binary.BigEndian.PutUint32(data[0:4], f.ID)
	data[4] = f.DLC
	copy(data[8:], f.Data[:])

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: socketCANRecordSize,
		Length:        socketCANRecordSize,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if err := w.pcap.WritePacket(ci, data); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write packet: %v\n", err)
		return
	}
	w.frames++
}

// FrameCount returns the number of frames written so far.
func (w *Writer) FrameCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close flushes and closes the output file (idempotent).
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
