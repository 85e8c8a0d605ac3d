package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteError represents an error returned by a hosting platform API
type RemoteError struct {
	Op      string // Operation that failed
	Message string // Error message
	Status  int    // HTTP status code (if applicable)
	Err     error  // Underlying error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is matches RemoteErrors by HTTP status, so errors.Is can test a wrapped
// client failure against the sentinel values below.
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*RemoteError)
	if !ok {
		return false
	}
	return t.Status != 0 && t.Status == e.Status
}

// NewRemoteError creates a new RemoteError
func NewRemoteError(op, message string, err error) *RemoteError {
	return &RemoteError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewRemoteHTTPError creates a new RemoteError with HTTP status
func NewRemoteHTTPError(op string, status int, message string, err error) *RemoteError {
	return &RemoteError{
		Op:      op,
		Status:  status,
		Message: message,
		Err:     err,
	}
}

// Sentinel remote failures, matched by status via RemoteError.Is.
var (
	ErrBadCredentials = &RemoteError{
		Message: "bad credentials",
		Status:  http.StatusUnauthorized,
	}

	ErrRateLimitExceeded = &RemoteError{
		Message: "API rate limit exceeded",
		Status:  http.StatusTooManyRequests,
	}
)

// IsRemoteError checks if any error in the chain is a RemoteError
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsNotFound checks if the error indicates a resource was not found
func IsNotFound(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status == http.StatusNotFound
	}
	return false
}

// IsConflict checks if the error indicates the resource already exists
func IsConflict(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status == http.StatusConflict
	}
	return false
}

// IsPermanent checks if the error is a non-retryable API failure. Not-found
// responses are excluded: they mean the resource has not appeared yet.
func IsPermanent(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status != 0 && re.Status != http.StatusNotFound
	}
	return false
}
