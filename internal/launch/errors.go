package launch

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTargetSet means there was nothing to offer in the launch prompt.
	ErrEmptyTargetSet = errors.New("no emulators available to launch")
	// ErrLaunchTimeout means a launched emulator never connected.
	ErrLaunchTimeout = errors.New("emulator did not connect")
)

// CreationError carries the daemon's reason for refusing to create an
// emulator. Message is shown to the user as is.
type CreationError struct {
	Message string
}

func (e *CreationError) Error() string {
	return e.Message
}

// DaemonError wraps a failed daemon call.
type DaemonError struct {
	Op  string
	Err error
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DaemonError) Unwrap() error {
	return e.Err
}
