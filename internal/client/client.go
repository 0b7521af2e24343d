package client

// Telemetry client for the ECU simulator: sends poll requests, decodes the
// response stream, and keeps the last-known value per PID.

import (
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/canlink/ecubridge/internal/errors"
	"github.com/canlink/ecubridge/internal/logging"
	"github.com/canlink/ecubridge/internal/obd"
)

// ErrClosed is returned by send operations after Close.
var ErrClosed = stderrors.New("client is closed")

// Client owns one connection to the simulator. A single background
// goroutine performs all socket reads and feeds the stream decoder; send
// calls may come from any goroutine and never wait for a response.
// Responses are matched to PIDs by the echoed PID byte, not send order.
type Client struct {
	conn   net.Conn
	logger *logging.Logger

	mu      sync.Mutex
	state   LiveTelemetry
	lastErr error
	closed  bool

	notify chan struct{}
	wg     sync.WaitGroup
}

// Dial connects to the simulator. Refusal or timeout surfaces as a
// *errors.ConnectionError wrapped with caller guidance; retrying is the
// caller's business.
func Dial(addr string, timeout time.Duration, logger *logging.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.WrapConnectError(err, addr)
	}

	c := &Client{
		conn:   conn,
		logger: logger,
		notify: make(chan struct{}, 1),
	}

	c.wg.Add(1)
	go c.receiveLoop()

	return c, nil
}

// Notifications returns the change channel. It carries no payload: a tick
// means "state changed, take a Snapshot". Ticks are best-effort; a consumer
// that is not listening when one fires simply misses it. The channel is
// closed when the receive loop ends, so subscribers observe a clean
// end-of-stream instead of hanging.
func (c *Client) Notifications() <-chan struct{} {
	return c.notify
}

// Snapshot returns a copy of the last-known telemetry.
func (c *Client) Snapshot() LiveTelemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Err reports the transport error that killed the session, if any. A nil
// return with zero-valued readings means "connected, no data yet" — the
// two states stay distinguishable for status indicators.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// RequestAll emits one current-data request per tracked PID, back to back,
// without waiting for any response.
func (c *Client) RequestAll() error {
	for _, info := range obd.TrackedPIDs() {
		if err := c.send(obd.NewCurrentDataRequest(info.PID)); err != nil {
			return err
		}
	}
	return nil
}

// Request emits a current-data request for a single PID.
func (c *Client) Request(pid uint8) error {
	return c.send(obd.NewCurrentDataRequest(pid))
}

// RequestDTCs emits a read-DTC request. The decoded codes land in the next
// Snapshot once the response arrives.
func (c *Client) RequestDTCs() error {
	return c.send(obd.NewReadDTCRequest())
}

// ClearDTCs emits a clear-DTC request.
func (c *Client) ClearDTCs() error {
	return c.send(obd.NewClearDTCRequest())
}

func (c *Client) send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.lastErr != nil {
		err := c.lastErr
		c.mu.Unlock()
		return fmt.Errorf("session down: %w", err)
	}
	c.mu.Unlock()

	wire := obd.EncodeFrame(obd.RequestID, payload)
	if _, err := c.conn.Write(wire[:]); err != nil {
		tErr := &errors.TransportError{Op: "write", Err: err}
		c.mu.Lock()
		if c.lastErr == nil {
			c.lastErr = tErr
		}
		c.mu.Unlock()
		return tErr
	}
	c.logger.LogFrame(">>", obd.RequestID, payload)
	return nil
}

// Close shuts the connection down, stops the receive loop within one
// blocking read, and leaves the notification channel closed. Subsequent
// sends fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	c.wg.Wait()
	return err
}

// receiveLoop is the client's only reader. It owns the stream decoder and
// closes the notification channel on exit, whatever the exit reason.
func (c *Client) receiveLoop() {
	defer c.wg.Done()
	defer close(c.notify)

	decoder := obd.NewStreamDecoder()
	buf := make([]byte, 4096)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			for _, frame := range decoder.Feed(buf[:n]) {
				c.handleFrame(frame)
			}
		}
		if err != nil {
			c.mu.Lock()
			if !c.closed && c.lastErr == nil {
				c.lastErr = &errors.TransportError{Op: "read", Err: err}
			}
			c.mu.Unlock()
			return
		}
	}
}

// handleFrame applies one decoded frame to the live state. Only 0x41
// current-data responses tick the notification channel; everything the
// client does not understand is dropped without a tick.
func (c *Client) handleFrame(f obd.Frame) {
	if f.ID != obd.ResponseID {
		return
	}
	payload := f.Payload()
	if len(payload) < 2 {
		return
	}
	c.logger.LogFrame("<<", f.ID, payload)

	switch payload[1] {
	case obd.ResponseCurrentData:
		c.applyCurrentData(payload)
	case obd.ResponseReadDTCs:
		codes := obd.ParseDTCResponse(payload)
		c.mu.Lock()
		c.state.DTCs = codes
		c.state.DTCsUpdatedAt = time.Now()
		c.mu.Unlock()
	}
}

func (c *Client) applyCurrentData(payload []byte) {
	if len(payload) < 3 {
		return
	}
	info, ok := obd.LookupPID(payload[2])
	if !ok {
		return
	}
	// The declared length byte must agree with the value width; frames
	// where it does not are malformed and dropped, not guessed at.
	if int(payload[0]) != 2+info.Bytes || len(payload) < 3+info.Bytes {
		c.logger.Debug("Dropping malformed 0x41 frame: % X", payload)
		return
	}

	var a, b byte
	a = payload[3]
	if info.Bytes > 1 {
		b = payload[4]
	}
	value := info.Decode(a, b)

	c.mu.Lock()
	r := c.state.reading(info.PID)
	r.Value = value
	r.Valid = true
	r.UpdatedAt = time.Now()
	c.state.Generation++
	c.mu.Unlock()

	// Best-effort tick: capacity one, never blocks, missed ticks are fine.
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
