package lease

import (
	"github.com/pkg/errors"
)

// lease errors
var (
	ErrLeaseNotReceived    = errors.New("lease was not received yet")
	ErrLeaseExpired        = errors.New("lease expired")
	ErrLeaseNoMoreRequests = errors.New("no more lease")
)

// MissingLeaseError is returned when a request is not allowed by current lease.
// The request is never sent.
type MissingLeaseError struct {
	cause error
}

func (e *MissingLeaseError) Error() string {
	return "missing lease: " + e.cause.Error()
}

// Unwrap returns one of ErrLeaseNotReceived, ErrLeaseExpired and ErrLeaseNoMoreRequests.
func (e *MissingLeaseError) Unwrap() error {
	return e.cause
}

// IsMissingLease returns true if err is a MissingLeaseError.
func IsMissingLease(err error) bool {
	var target *MissingLeaseError
	return errors.As(err, &target)
}
