package garmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2beens/runcoach/internal/apperror"
)

const errorSource = "garmin"

// CapabilityError means no alias/argument-shape combination of an operation succeeded.
// Cause is the last real call failure, or nil when nothing was callable at all.
type CapabilityError struct {
	Operation string
	Cause     error
}

func (e *CapabilityError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("operation unsupported: %s", e.Operation)
	}
	return fmt.Sprintf("operation %s failed: %s", e.Operation, e.Cause)
}

func (e *CapabilityError) Unwrap() error {
	return e.Cause
}

// Unsupported reports whether the client exposes no callable for the operation.
func (e *CapabilityError) Unsupported() bool {
	return e.Cause == nil
}

// IsUnsupported reports whether err is a CapabilityError without a call failure behind it.
func IsUnsupported(err error) bool {
	var capErr *CapabilityError
	return errors.As(err, &capErr) && capErr.Unsupported()
}

// Classify maps any adapter failure to the error taxonomy. Messages never echo provider text.
func Classify(err error) *apperror.Error {
	if err == nil {
		return nil
	}
	if appErr, ok := apperror.As(err); ok {
		return appErr
	}

	var capErr *CapabilityError
	if errors.As(err, &capErr) && capErr.Unsupported() {
		return apperror.New(
			apperror.KindCapability,
			http.StatusNotImplemented,
			fmt.Sprintf("operation unsupported by the Garmin client: %s", capErr.Operation),
			err,
		).WithSource(errorSource)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.New(apperror.KindNetwork, http.StatusGatewayTimeout, "Garmin request timed out, try again later", err).
			WithSource(errorSource)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "invalid", "authentication", "credential", "401"):
		return apperror.New(apperror.KindAuth, http.StatusUnauthorized,
			"Garmin authentication failed, check your email and password", err).WithSource(errorSource)
	case containsAny(msg, "429", "too many"):
		return apperror.New(apperror.KindRateLimit, http.StatusTooManyRequests,
			"Garmin rate limit reached, try again later", err).WithSource(errorSource)
	case containsAny(msg, "connect", "network"):
		return apperror.New(apperror.KindNetwork, http.StatusServiceUnavailable,
			"could not reach Garmin, try again later", err).WithSource(errorSource)
	default:
		return apperror.New(apperror.KindUnknown, http.StatusBadGateway,
			"unexpected error from Garmin", err).WithSource(errorSource)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
