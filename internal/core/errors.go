package core

import "errors"

// Error taxonomy. Action-scoped errors are reported only to the initiating
// connection as a typed error event; ErrNotFound cases in signaling are
// dropped silently.
var (
	ErrAuth           = errors.New("authentication failed")
	ErrValidation     = errors.New("validation failed")
	ErrPermission     = errors.New("permission denied")
	ErrCall           = errors.New("call error")
	ErrNotFound       = errors.New("not found")
	ErrTransientStore = errors.New("store unavailable")
)

// ErrorCode maps an error to its wire code for per-request error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth-error"
	case errors.Is(err, ErrValidation):
		return "validation-error"
	case errors.Is(err, ErrPermission):
		return "permission-error"
	case errors.Is(err, ErrCall):
		return "call-error"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrTransientStore):
		return "store-error"
	default:
		return "internal-error"
	}
}
