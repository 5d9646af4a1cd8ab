package remote

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a remote store failure. Recoverable codes mean the
// local change stands and the remote attempt is queued for retry;
// non-recoverable codes mean the optimistic local change must be rolled back
// and the error surfaced.
type ErrorCode string

const (
	// Recoverable
	CodeUnavailable    ErrorCode = "unavailable"     // network unreachable or service down
	CodeThrottled      ErrorCode = "throttled"       // rate limited, retry later
	CodeAccountPending ErrorCode = "account_pending" // account not yet provisioned/usable

	// Non-recoverable
	CodeAuthFailed   ErrorCode = "auth_failed"    // permanent auth failure
	CodeZoneNotFound ErrorCode = "zone_not_found" // zone or account deleted remotely
	CodeNotFound     ErrorCode = "not_found"      // record does not exist
	CodeBadRequest   ErrorCode = "bad_request"    // malformed request
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store error: %s", e.Code)
	}
	return fmt.Sprintf("remote store error: %s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsRecoverable reports whether a failed remote call should be retried via
// the pending queues. Unknown errors (plain network failures and the like)
// are treated as recoverable: retrying is cheaper than losing a mutation.
func IsRecoverable(err error) bool {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		switch remoteErr.Code {
		case CodeUnavailable, CodeThrottled, CodeAccountPending:
			return true
		default:
			return false
		}
	}
	return true
}

// IsNotFound reports whether the error is a missing-record failure. Callers
// deleting records treat not-found as success: the record is already gone.
func IsNotFound(err error) bool {
	var remoteErr *Error
	return errors.As(err, &remoteErr) && remoteErr.Code == CodeNotFound
}
