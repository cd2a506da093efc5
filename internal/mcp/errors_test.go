package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTimeoutError(t *testing.T) {
	assert.True(t, isTimeoutError(context.DeadlineExceeded))
	assert.True(t, isTimeoutError(fmt.Errorf("call failed: %w", context.DeadlineExceeded)))
	assert.True(t, isTimeoutError(&net.DNSError{IsTimeout: true}))

	assert.False(t, isTimeoutError(nil))
	assert.False(t, isTimeoutError(errors.New("connection refused")))
	assert.False(t, isTimeoutError(context.Canceled))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, isConnectionError(errors.New("dial tcp 10.0.0.1:443: connection refused")))
	assert.True(t, isConnectionError(errors.New("write: broken pipe")))
	assert.True(t, isConnectionError(errors.New("lookup jira.internal: no such host")))
	assert.True(t, isConnectionError(errors.New("unexpected EOF")))
	assert.True(t, isConnectionError(errors.New(`mcp server "jira": not connected`)))

	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errors.New("jql syntax error")))
	assert.False(t, isConnectionError(context.DeadlineExceeded))
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&UnknownServerError{Server: "jira"}).Error(), "not configured")
	assert.Contains(t, (&DisabledServerError{Server: "jira"}).Error(), "disabled")
	assert.Contains(t, (&DuplicateServerError{Server: "jira"}).Error(), "already registered")

	timeoutErr := &ToolTimeoutError{Server: "jira", Tool: "create_issue", Timeout: 30 * time.Second}
	assert.Contains(t, timeoutErr.Error(), "create_issue")
	assert.Contains(t, timeoutErr.Error(), "30s")

	cause := errors.New("dial tcp: connection refused")
	unavailErr := &ServerUnavailableError{Server: "jira", Err: cause}
	assert.ErrorIs(t, unavailErr, cause)
}
