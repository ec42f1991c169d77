package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBudgetInvariant    = errors.New("budget invariant violated: utilized <= allocated <= total")
)

// Workflow error taxonomy. Callers distinguish them with errors.Is; the
// retryable members are ErrStaleState and ErrTransientStore.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("not permitted to act at this stage")
	ErrStaleState          = errors.New("workflow state changed since it was read")
	ErrTerminalState       = errors.New("workflow already reached a terminal status")
	ErrDegradedConsistency = errors.New("workflow record missing, project status updated directly")
	ErrTransientStore      = errors.New("store temporarily unavailable")
)

// IsRetryable reports whether the caller may safely resubmit the whole
// operation after refetching state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleState) || errors.Is(err, ErrTransientStore)
}
