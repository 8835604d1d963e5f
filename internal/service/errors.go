package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoParts is returned when a split payment has no parts.
	ErrNoParts = errors.New("split payment requires at least one part")

	// ErrTooManyParts is returned when a split payment exceeds the part limit.
	ErrTooManyParts = errors.New("too many split parts")

	// ErrInvalidPercentage is returned when a part percentage is outside (0, 100].
	ErrInvalidPercentage = errors.New("invalid part percentage")

	// ErrInvalidPaymentMethod is returned when a part uses an unsupported payment method.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrPercentageSum is returned when part percentages do not add up to 100.
	ErrPercentageSum = errors.New("part percentages must sum to 100")

	// ErrInvalidSessionID is returned when the terminal session id is empty.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidReference is returned when the reference chain start is invalid.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrInvalidSplitID is returned when the split payment id is empty.
	ErrInvalidSplitID = errors.New("invalid split payment id")

	// ErrSessionBusy is returned when another split payment is running on the same terminal session.
	ErrSessionBusy = errors.New("terminal session busy with another split payment")

	// ErrSplitInProgress is returned when deleting a split payment that is still processing.
	ErrSplitInProgress = errors.New("split payment still in progress")

	// ErrArchiveDisabled is returned when reconciliation is requested without a configured archive.
	ErrArchiveDisabled = errors.New("split payment archive not configured")
)

// ValidationError describes why a split payment request was rejected before
// any terminal transaction started.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Detail: fmt.Sprintf(format, args...)}
}
