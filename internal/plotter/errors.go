package plotter

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevice is returned by Connect when no port matches the device heuristics.
	ErrNoDevice = errors.New("no matching device found")

	// ErrLinkUnavailable is returned when a write is attempted without an open link.
	ErrLinkUnavailable = errors.New("serial link not open")

	// ErrBusy is returned when a send is requested while another is in progress.
	ErrBusy = errors.New("transmission already in progress")

	// ErrEmptyTrajectory is returned when there is nothing to send.
	ErrEmptyTrajectory = errors.New("no points captured")

	// ErrMalformedRecord is returned when a trajectory file line cannot be parsed.
	ErrMalformedRecord = errors.New("malformed trajectory record")
)

// ConnectError reports a port that was found but could not be opened.
type ConnectError struct {
	Port string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to open %s: %v", e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// LinkError reports an I/O failure on an open link in the middle of a session.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("serial %s failed: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// UnacknowledgedError reports a point the device never acknowledged within
// the allowed number of attempts.
type UnacknowledgedError struct {
	Index        int
	Point        TransformedPoint
	Attempts     int
	LastResponse string
}

func (e *UnacknowledgedError) Error() string {
	last := e.LastResponse
	if last == "" {
		last = "<none>"
	}
	return fmt.Sprintf("point %d (%s) not acknowledged after %d attempts, last response %q",
		e.Index, e.Point, e.Attempts, last)
}
