package engine

import (
	"fmt"
)

// ErrorCode is the engine independent category of a [NetworkError].
type ErrorCode int

const (
	ErrorOther ErrorCode = iota
	ErrorHostnameNotResolved
	ErrorInternetDisconnected
	ErrorNetworkChanged
	ErrorTimedOut
	ErrorConnectionClosed
	ErrorConnectionTimedOut
	ErrorConnectionRefused
	ErrorConnectionReset
	ErrorAddressUnreachable
	ErrorProtocolFailed
)

var errorCodeNames = [...]string{
	ErrorOther:                "other",
	ErrorHostnameNotResolved:  "hostname not resolved",
	ErrorInternetDisconnected: "internet disconnected",
	ErrorNetworkChanged:       "network changed",
	ErrorTimedOut:             "timed out",
	ErrorConnectionClosed:     "connection closed",
	ErrorConnectionTimedOut:   "connection timed out",
	ErrorConnectionRefused:    "connection refused",
	ErrorConnectionReset:      "connection reset",
	ErrorAddressUnreachable:   "address unreachable",
	ErrorProtocolFailed:       "protocol failed",
}

func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(errorCodeNames) {
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
	return errorCodeNames[c]
}

// NetworkError is a transfer failure reported by the engine.
type NetworkError struct {
	Code  ErrorCode
	Cause error
}

func (e *NetworkError) Error() string {
	if e.Cause == nil {
		return "network error: " + e.Code.String()
	}
	return "network error: " + e.Code.String() + ": " + e.Cause.Error()
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// CallbackError reports that a [Callback] method returned an error.
type CallbackError struct {
	Cause error
}

func (e *CallbackError) Error() string { return "callback failed: " + e.Cause.Error() }

func (e *CallbackError) Unwrap() error { return e.Cause }
