package session

import "errors"

var (
	// ErrInvalidSelection rejects a start request with an unsupported
	// language or voice gender before any resource is allocated.
	ErrInvalidSelection = errors.New("invalid language or voice gender")

	// ErrSessionClosed is returned when audio is submitted to a session
	// whose teardown has been requested or completed.
	ErrSessionClosed = errors.New("session closed")
)

// dutyFault is one duty's terminal failure. Faults are translated into
// outward error events at a single boundary in the session supervisor.
type dutyFault struct {
	duty string
	err  error
}
