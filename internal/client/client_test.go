package client

import (
	stderrors "errors"
	"net"
	"testing"
	"time"

	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/errors"
	"github.com/canlink/ecubridge/internal/logging"
	"github.com/canlink/ecubridge/internal/obd"
	"github.com/canlink/ecubridge/internal/server"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	return logger
}

func startSimulator(t *testing.T) string {
	t.Helper()
	cfg := config.ServerSection{ListenIP: "127.0.0.1", TCPPort: 0, RNGSeed: 1}
	s := server.NewServer(cfg, testLogger(t))
	if err := s.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s.Addr().String()
}

func dialTest(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(addr, 2*time.Second, testLogger(t))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDialRefusedIsConnectionError(t *testing.T) {
	// Grab a port that nothing listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	_, err = Dial(addr, 500*time.Millisecond, testLogger(t))
	if err == nil {
		t.Fatal("Dial succeeded against a closed port")
	}
	var connErr *errors.ConnectionError
	if !stderrors.As(err, &connErr) {
		t.Errorf("error is not a *ConnectionError: %v", err)
	}
}

func TestRequestAllUpdatesEveryReading(t *testing.T) {
	addr := startSimulator(t)
	c := dialTest(t, addr)

	if err := c.RequestAll(); err != nil {
		t.Fatalf("RequestAll failed: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		snap := c.Snapshot()
		if snap.RPM.Valid && snap.Speed.Valid && snap.Coolant.Valid &&
			snap.Throttle.Valid && snap.Load.Valid && snap.Intake.Valid {
			if snap.Generation < 6 {
				t.Errorf("generation = %d, want >= 6", snap.Generation)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("readings incomplete: %+v", snap)
		case <-c.Notifications():
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestNoDataYetIsNotAnError(t *testing.T) {
	addr := startSimulator(t)
	c := dialTest(t, addr)

	snap := c.Snapshot()
	if snap.RPM.Valid {
		t.Error("RPM valid before any response")
	}
	if c.Err() != nil {
		t.Errorf("Err = %v before any traffic", c.Err())
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	addr := startSimulator(t)
	c := dialTest(t, addr)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.RequestAll(); !stderrors.Is(err, ErrClosed) {
		t.Errorf("send after close = %v, want ErrClosed", err)
	}
}

func TestCloseEndsNotificationStream(t *testing.T) {
	addr := startSimulator(t)
	c := dialTest(t, addr)

	done := make(chan struct{})
	go func() {
		for range c.Notifications() {
		}
		close(done)
	}()

	c.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification channel not closed by Close")
	}
}

// fakeECU gives tests byte-level control over the response stream.
type fakeECU struct {
	ln    net.Listener
	conns chan net.Conn
}

func newFakeECU(t *testing.T) *fakeECU {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeECU{ln: ln, conns: make(chan net.Conn, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		f.conns <- conn
	}()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeECU) addr() string { return f.ln.Addr().String() }

func (f *fakeECU) conn(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func collectTicks(c *Client, d time.Duration) int {
	ticks := 0
	timeout := time.After(d)
	for {
		select {
		case _, ok := <-c.Notifications():
			if !ok {
				return ticks
			}
			ticks++
		case <-timeout:
			return ticks
		}
	}
}

func TestNotificationPerDecodedResponse(t *testing.T) {
	fake := newFakeECU(t)
	c := dialTest(t, fake.addr())
	conn := fake.conn(t)
	defer conn.Close()

	// One valid RPM response: exactly one tick.
	rpm := obd.EncodeFrame(obd.ResponseID, []byte{0x04, 0x41, 0x0C, 0x1A, 0x2B})
	conn.Write(rpm[:])
	if got := collectTicks(c, 300*time.Millisecond); got != 1 {
		t.Errorf("valid response produced %d ticks, want 1", got)
	}

	snap := c.Snapshot()
	if !snap.RPM.Valid || snap.RPM.Value != 1685.75 {
		t.Errorf("RPM = %+v, want 1685.75", snap.RPM)
	}

	// Unsupported PID, foreign arbitration id, inconsistent length byte:
	// zero ticks for all of them.
	unsupported := obd.EncodeFrame(obd.ResponseID, []byte{0x03, 0x41, 0x42, 0x01})
	foreign := obd.EncodeFrame(0x7E9, []byte{0x04, 0x41, 0x0C, 0x1A, 0x2B})
	badLen := obd.EncodeFrame(obd.ResponseID, []byte{0x07, 0x41, 0x0D, 0x30})
	for _, w := range [][13]byte{unsupported, foreign, badLen} {
		conn.Write(w[:])
	}
	if got := collectTicks(c, 300*time.Millisecond); got != 0 {
		t.Errorf("dropped frames produced %d ticks, want 0", got)
	}
	if snap := c.Snapshot(); snap.Generation != 1 {
		t.Errorf("generation = %d, want 1", snap.Generation)
	}
}

func TestSplitResponseAcrossWrites(t *testing.T) {
	fake := newFakeECU(t)
	c := dialTest(t, fake.addr())
	conn := fake.conn(t)
	defer conn.Close()

	wire := obd.EncodeFrame(obd.ResponseID, []byte{0x03, 0x41, 0x0D, 90})
	conn.Write(wire[:4])
	time.Sleep(30 * time.Millisecond)
	conn.Write(wire[4:])

	select {
	case <-c.Notifications():
	case <-time.After(2 * time.Second):
		t.Fatal("no notification for split frame")
	}
	if snap := c.Snapshot(); !snap.Speed.Valid || snap.Speed.Value != 90 {
		t.Errorf("speed = %+v, want 90", snap.Speed)
	}
}

func TestDTCResponseUpdatesStateWithoutTick(t *testing.T) {
	fake := newFakeECU(t)
	c := dialTest(t, fake.addr())
	conn := fake.conn(t)
	defer conn.Close()

	wire := obd.EncodeFrame(obd.ResponseID, []byte{0x05, 0x43, 0x01, 0x33, 0x04, 0x20, 0, 0})
	conn.Write(wire[:])

	if got := collectTicks(c, 300*time.Millisecond); got != 0 {
		t.Errorf("DTC response produced %d ticks, want 0", got)
	}
	snap := c.Snapshot()
	if len(snap.DTCs) != 2 || snap.DTCs[0].String() != "P0133" || snap.DTCs[1].String() != "P0420" {
		t.Errorf("DTCs = %v, want [P0133 P0420]", snap.DTCs)
	}
}

func TestPeerDropMarksTransportError(t *testing.T) {
	fake := newFakeECU(t)
	c := dialTest(t, fake.addr())
	conn := fake.conn(t)

	conn.Close()

	deadline := time.After(2 * time.Second)
	for c.Err() == nil {
		select {
		case <-deadline:
			t.Fatal("Err never set after peer drop")
		case <-time.After(20 * time.Millisecond):
		}
	}

	var tErr *errors.TransportError
	if !stderrors.As(c.Err(), &tErr) {
		t.Errorf("Err = %v, want *TransportError", c.Err())
	}
	if err := c.RequestAll(); err == nil {
		t.Error("send on dead session succeeded")
	}
}
