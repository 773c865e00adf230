// internal/util/errors.go
package util

import "errors"

// ErrorKind groups application errors by how a caller is expected to react.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindState         ErrorKind = "state"
	KindExternal      ErrorKind = "external"
	KindArithmetic    ErrorKind = "arithmetic"
	KindInternal      ErrorKind = "internal"
)

// Error is a sentinel application error carrying its kind.
// Sentinels are compared by identity, so errors.Is works through %w wrapping.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Common application-specific errors.
var (
	// Validation
	ErrNoFundsSent        = newError(KindValidation, "no funds sent")
	ErrLockTooShort       = newError(KindValidation, "lock time too short")
	ErrLockTooLong        = newError(KindValidation, "lock time too long")
	ErrTargetBelowInitial = newError(KindValidation, "target must be >= initial amount")
	ErrInvalidInput       = newError(KindValidation, "invalid input provided")

	// Authorization
	ErrNotVaultOwner = newError(KindAuthorization, "not vault owner")
	ErrNotAdmin      = newError(KindAuthorization, "caller is not the administrator")
	ErrUnauthorized  = newError(KindAuthorization, "authentication required")

	// State
	ErrNotFound         = newError(KindState, "resource not found")
	ErrAlreadyWithdrawn = newError(KindState, "already withdrawn")
	ErrVaultInactive    = newError(KindState, "vault is not active")

	// External
	ErrTransferFailed    = newError(KindExternal, "transfer failed")
	ErrInsufficientFunds = newError(KindExternal, "insufficient funds")
	ErrTransferRejected  = newError(KindExternal, "transfer rejected")

	// Arithmetic
	ErrArithmetic     = newError(KindArithmetic, "arithmetic overflow or underflow")
	ErrDivisionByZero = newError(KindArithmetic, "division by zero")
)

// IsError reports whether err matches target anywhere in its chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// KindOf returns the kind of the first application error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
