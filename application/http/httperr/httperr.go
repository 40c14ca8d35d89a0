// Package httperr classifies client failures so callers can branch on the
// kind of failure instead of on message text.
package httperr

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

type Kind uint8

const (
	Unknown Kind = iota
	// Setup: the engine call object could not be built.
	Setup
	// SessionStart: admission could not be granted.
	SessionStart
	// Timeout: connect, read or engine-level timeout.
	Timeout
	NameResolution
	// Connection: refused, reset, closed, unreachable or network changed.
	Connection
	// Protocol: transport protocol specific failure (h2, quic).
	Protocol
	NoNetwork
	IO
	Canceled
	Redirect
	// Closed: operating on a closed response body.
	Closed
	IllegalState
)

var kindNames = [...]string{
	Unknown:        "unknown",
	Setup:          "setup",
	SessionStart:   "session start",
	Timeout:        "timeout",
	NameResolution: "name resolution",
	Connection:     "connection",
	Protocol:       "protocol",
	NoNetwork:      "no network",
	IO:             "io",
	Canceled:       "canceled",
	Redirect:       "redirect",
	Closed:         "closed",
	IllegalState:   "illegal state",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches kind sentinels: errors.Is(err, ErrTimeout) holds for every
// error of kind Timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel() {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) sentinel() bool { return e.Message == "" && e.Cause == nil }

var (
	ErrSetup          = &Error{Kind: Setup}
	ErrSessionStart   = &Error{Kind: SessionStart}
	ErrTimeout        = &Error{Kind: Timeout}
	ErrNameResolution = &Error{Kind: NameResolution}
	ErrConnection     = &Error{Kind: Connection}
	ErrProtocol       = &Error{Kind: Protocol}
	ErrNoNetwork      = &Error{Kind: NoNetwork}
	ErrIO             = &Error{Kind: IO}
	ErrCanceled       = &Error{Kind: Canceled}
	ErrRedirect       = &Error{Kind: Redirect}
	ErrClosed         = &Error{Kind: Closed}
	ErrIllegalState   = &Error{Kind: IllegalState}
)

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the outermost classified error in the chain.
// Bare context errors count as Canceled and Timeout.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}

	return Unknown
}

// Classify makes sure err carries a kind, falling back to fallback.
func Classify(err error, fallback Kind) error {
	if err == nil {
		return nil
	}

	switch kind := KindOf(err); {
	case kind == Unknown:
		return &Error{Kind: fallback, Cause: err}
	default:
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		// Context error: attach the kind but keep the chain.
		return &Error{Kind: kind, Cause: err}
	}
}
