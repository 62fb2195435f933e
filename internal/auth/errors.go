package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when login or password verification
	// fails. It deliberately does not say which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountExists is returned when adding a user whose username is taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrOwnAccount is returned when an admin attempts to remove or
	// deactivate the account owning the current session.
	ErrOwnAccount = errors.New("operation not permitted on own account")
)

// PermissionError reports that the current role is below the threshold for
// an action. It carries the denied action for the caller to render.
type PermissionError struct {
	Action Action
	Role   Role
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: action %q requires more than role %q", e.Action, e.Role)
}
