package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransient(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route")}
	wrapped := &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}

	for _, err := range []error{
		dial,
		wrapped,
		fmt.Errorf("send: %w", syscall.ECONNRESET),
		io.ErrUnexpectedEOF,
	} {
		assert.True(t, Transient(err), "%v", err)
	}
	for _, err := range []error{
		nil,
		context.Canceled,
		errors.New("telegram: chat not found (400)"),
		&net.OpError{Op: "read", Err: errors.New("closed")},
	} {
		assert.False(t, Transient(err), "%v", err)
	}
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"":         nil,
		"canceled": context.Canceled,
		"timeout":  fmt.Errorf("x: %w", context.DeadlineExceeded),
		"dns":      &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
		"dial":     &net.OpError{Op: "dial", Err: errors.New("refused")},
		"conn":     syscall.ECONNRESET,
		"other":    errors.New("bad request"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Kind(err), "%v", err)
	}
	assert.Equal(t, "timeout", Kind(&url.Error{Op: "Get", URL: "u", Err: timeoutErr{}}))
}
