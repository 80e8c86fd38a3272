package availability

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidPolicy = errors.New("invalid availability policy")
)

// InvalidInputError is returned when a caller violates a precondition
// (unknown or inactive booking link, zero date).
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// PolicyError reports a stored policy that breaks its invariants.
type PolicyError struct {
	BookingLinkID string
	Reason        string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("availability policy for link %s: %s", e.BookingLinkID, e.Reason)
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrInvalidPolicy
}

// AuthorizationError means the host's calendar credential is missing, expired,
// revoked or lacks the calendar scope.
type AuthorizationError struct {
	HostID string
	Err    error
}

func (e *AuthorizationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("calendar authorization failed for host %s", e.HostID)
	}
	return fmt.Sprintf("calendar authorization failed for host %s: %v", e.HostID, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// ProviderError is a transient upstream failure, including timeouts.
type ProviderError struct {
	HostID string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider error for host %s: %v", e.HostID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
