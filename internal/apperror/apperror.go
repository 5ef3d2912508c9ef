// Package apperror holds the error taxonomy shared by the Garmin adapter, the sync orchestrator and the
// workout generation pipeline. Handlers map an *Error to its Status and user-safe Message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuth          Kind = "auth_error"
	KindRateLimit     Kind = "rate_limit"
	KindNetwork       Kind = "network_error"
	KindCapability    Kind = "capability_error"
	KindConfiguration Kind = "configuration_error"
	KindValidation    Kind = "validation_error"
	KindUnknown       Kind = "unknown"
)

func (k Kind) String() string {
	return string(k)
}

type Error struct {
	Kind    Kind
	Status  int    // HTTP-style status used when the error reaches a handler
	Message string // safe to show to the user
	Source  string // which collaborator failed, e.g. "garmin" or "openai"
	Err     error  // underlying cause, never shown to the user
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, status int, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: message,
		Err:     cause,
	}
}

func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

func Validation(message string) *Error {
	return New(KindValidation, http.StatusBadRequest, message, nil)
}

func Configuration(message string, cause error) *Error {
	return New(KindConfiguration, http.StatusInternalServerError, message, cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindUnknown
}

// StatusAndMessage returns what a handler should reply with. Errors outside the taxonomy become a
// generic 500 so raw causes never leak.
func StatusAndMessage(err error) (int, string) {
	if appErr, ok := As(err); ok {
		status := appErr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, appErr.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
