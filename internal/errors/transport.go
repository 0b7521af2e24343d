package errors

// Typed transport errors. A ConnectionError means the session never came up
// (refusal, timeout at dial) and is recoverable by retrying at the caller's
// cadence. A TransportError means an established session died mid-stream;
// the owning loop terminates and its reassembly buffer is discarded. The
// two stay distinct so a UI can tell "never connected" from "lost link",
// and both differ from "connected but no data yet".

import "fmt"

// ConnectionError reports a failed dial.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransportError reports a socket failure on an established session.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
