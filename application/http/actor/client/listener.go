package client

import (
	"fmt"
	"log/slog"
	"time"

	"syncnet/application/http/semantic"
)

// Stage names a step of [Client.Execute].
type Stage int

const (
	StageLaunched Stage = iota
	StageSessionSetup
	StageSessionSetupFailed
	StageSessionStarted
	StageSessionStartFailed
	StageConnectionStarted
	StageConnectionStartFailed
	StageResponseInfoReceived
	StageResponseInfoFailed
	StageSessionClosed
)

var stageNames = [...]string{
	StageLaunched:              "launched",
	StageSessionSetup:          "session-setup",
	StageSessionSetupFailed:    "session-setup-failed",
	StageSessionStarted:        "session-started",
	StageSessionStartFailed:    "session-started-failed",
	StageConnectionStarted:     "connection-start",
	StageConnectionStartFailed: "connection-start-failed",
	StageResponseInfoReceived:  "response-info-received",
	StageResponseInfoFailed:    "response-info-received-failed",
	StageSessionClosed:         "session-closed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

type Event struct {
	Stage   Stage
	Request *semantic.Request
	// Err is set on failure stages, and on StageSessionClosed when the
	// request did not succeed.
	Err error
	// Elapsed is the connect time on StageConnectionStarted.
	Elapsed time.Duration
}

// Listener observes request stages. It runs synchronously and must not
// block.
type Listener func(Event)

// Listeners fans an event out to every listener. A panicking listener is
// logged and skipped.
type Listeners []Listener

func (ls Listeners) emit(logger *slog.Logger, e Event) {
	for _, l := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Warn("listener panicked",
						slog.String("stage", e.Stage.String()),
						slog.Any("panic", r),
					)
				}
			}()
			l(e)
		}()
	}
}
