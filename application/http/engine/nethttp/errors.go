package nethttp

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"

	"syncnet/application/http/engine"
)

// toNetworkError maps transport failures to engine error codes. Errors
// returned from callbacks pass through unchanged.
func toNetworkError(err error) error {
	var cbErr *engine.CallbackError
	if errors.As(err, &cbErr) {
		return cbErr
	}

	return &engine.NetworkError{Code: codeOf(err), Cause: err}
}

func codeOf(err error) engine.ErrorCode {
	var (
		dnsErr    *net.DNSError
		opErr     *net.OpError
		streamErr http2.StreamError
		goAwayErr http2.GoAwayError
		connErr   http2.ConnectionError
	)

	switch {
	case errors.As(err, &dnsErr):
		return engine.ErrorHostnameNotResolved
	case errors.Is(err, syscall.ECONNREFUSED):
		return engine.ErrorConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return engine.ErrorConnectionReset
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return engine.ErrorAddressUnreachable
	case errors.Is(err, syscall.ENETDOWN):
		return engine.ErrorInternetDisconnected
	case errors.As(err, &streamErr), errors.As(err, &goAwayErr), errors.As(err, &connErr):
		return engine.ErrorProtocolFailed
	case isTimeout(err):
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return engine.ErrorConnectionTimedOut
		}
		return engine.ErrorTimedOut
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return engine.ErrorConnectionClosed
	}

	return engine.ErrorOther
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
