package recorder

import (
	"errors"
	"fmt"
)

// ErrOverwriteDeclined is returned when the destination file exists and the
// overwrite confirmation collaborator declined.
var ErrOverwriteDeclined = errors.New("destination exists and overwrite was declined")

// DeviceError reports that no device link is available for logging. The user
// must reconnect manually; there is no auto-retry.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// PersistenceError reports a failed directory, file, or row operation. It is
// fatal to the current logging session and always forces a stop.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
