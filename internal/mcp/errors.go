package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DuplicateServerError is returned when registering a server name that
// already exists in the registry.
type DuplicateServerError struct {
	Server string
}

func (e *DuplicateServerError) Error() string {
	return fmt.Sprintf("mcp server %q already registered", e.Server)
}

// UnknownServerError is returned for server names not present in the registry.
type UnknownServerError struct {
	Server string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("mcp server %q not configured", e.Server)
}

// DisabledServerError is returned for servers registered with enabled=false.
type DisabledServerError struct {
	Server string
}

func (e *DisabledServerError) Error() string {
	return fmt.Sprintf("mcp server %q is disabled", e.Server)
}

// ServerUnavailableError is returned when connection establishment fails,
// or when reconnect-and-retry exhausts the schedule.
type ServerUnavailableError struct {
	Server string
	Err    error
}

func (e *ServerUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mcp server %q unavailable: %v", e.Server, e.Err)
	}
	return fmt.Sprintf("mcp server %q unavailable", e.Server)
}

func (e *ServerUnavailableError) Unwrap() error { return e.Err }

// ToolTimeoutError is returned when a tool call exceeds the per-server
// timeout and no retries remain.
type ToolTimeoutError struct {
	Server  string
	Tool    string
	Timeout time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %q timed out on mcp server %q after %s", e.Tool, e.Server, e.Timeout)
}

// isTimeoutError reports whether err represents a per-attempt timeout.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionError reports whether err represents a connection-level
// failure that a reconnect might resolve. The transport surfaces errors
// as plain strings, so classification is substring-based.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	errStr := err.Error()
	return containsAny(errStr, []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"closed pipe",
		"no such host",
		"not connected",
		"transport is closed",
		"unexpected EOF",
		"EOF",
	})
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if substr != "" && strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
