package client

import "fmt"

// state only moves forward; any state may jump to a terminal one.
type state int

const (
	stateQueued state = iota
	stateConnecting
	stateWriting
	stateReading
	stateSuccess
	stateCanceled
	stateError
)

var stateNames = [...]string{
	stateQueued:     "QUEUED",
	stateConnecting: "CONNECTING",
	stateWriting:    "WRITING",
	stateReading:    "READING",
	stateSuccess:    "SUCCESS",
	stateCanceled:   "CANCELED",
	stateError:      "ERROR",
}

func (s state) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s state) terminal() bool { return s >= stateSuccess }
