package domain

import "errors"

var (
	// ErrValidation marks malformed or missing event fields. The connection stays open.
	ErrValidation = errors.New("validation error")
	// ErrPersistence marks a message store failure. Nothing is delivered live.
	ErrPersistence = errors.New("persistence error")
	// ErrRegistry marks an invalid identity key.
	ErrRegistry = errors.New("registry error")
)

// ErrorCode maps an error to the code sent to the originating connection.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRegistry):
		return ErrorCodeRegistry
	case errors.Is(err, ErrValidation):
		return ErrorCodeValidation
	case errors.Is(err, ErrPersistence):
		return ErrorCodePersistence
	default:
		return ErrorCodeInternal
	}
}
