package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapConnectError wraps a failed dial with user-friendly context.
func WrapConnectError(err error, addr string) error {
	if err == nil {
		return nil
	}

	return &UserFriendlyError{
		Message: fmt.Sprintf("Failed to connect to ECU simulator at %s", addr),
		Reason:  extractNetworkReason(err),
		Hint:    "The simulator may not be running, or the address may be wrong",
		Try:     "ecubridge serve",
		Err:     &ConnectionError{Addr: addr, Err: err},
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return &UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Compare against the built-in defaults",
		Try:     "ecubridge config print-default",
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - simulator may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - nothing is listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or host unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - the simulator closed the connection unexpectedly"
	}

	return "Network communication failed"
}
