package screening

import (
	"errors"
	"fmt"

	"github.com/pneumo/pneumo/internal/platform/auth"
)

// ErrCaseNotFound is returned when no case exists with the requested ID.
var ErrCaseNotFound = errors.New("case not found")

// ValidationError reports a malformed or missing required input field. The
// caller can re-prompt; nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports a role/action mismatch. Terminal for the
// request; the caller must not retry.
type AuthorizationError struct {
	Role   auth.Role
	Action auth.Action
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not perform %s", e.Role, e.Action)
}

// InvalidStateError reports a transition attempted from a state that does not
// permit it, e.g. reviewing a case that is not in the clinician queue. The
// case record is left unmodified.
type InvalidStateError struct {
	CaseID int64
	State  State
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("case %d in state %s: %s", e.CaseID, e.State, e.Reason)
}

// StorageError wraps a persistence failure. No partial state is committed, so
// the operation is retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCaseNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
