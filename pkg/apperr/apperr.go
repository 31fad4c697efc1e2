// Package apperr classifies domain failures so callers and the HTTP layer
// can react without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// KindValidation is malformed or out-of-range input. Not retryable.
	KindValidation Kind = iota + 1
	// KindNotFound is a referenced entity that does not exist for the
	// caller's tenant.
	KindNotFound
	// KindConflict is an optimistic-lock mismatch or an illegal state
	// transition. The caller should re-fetch and retry.
	KindConflict
	// KindRateLimited tells the caller to retry later with backoff.
	KindRateLimited
	// KindProcessing is a background sweep step that failed for one item.
	KindProcessing
	// KindPayment is a gateway-side payment failure, recorded on the
	// payment record rather than surfaced to unrelated callers.
	KindPayment
	// KindTenant is a missing or mismatched tenant scope. Fails closed.
	KindTenant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindProcessing:
		return "processing"
	case KindPayment:
		return "payment"
	case KindTenant:
		return "tenant"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Sentinels declared with the constructors
// below compare with errors.Is; wrapped causes unwrap as usual.
type Error struct {
	kind Kind
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.code, e.err)
	}
	return e.code
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the stable machine-readable code.
func (e *Error) Code() string { return e.code }

// Is matches another *Error with the same code, so wrapped copies of a
// sentinel still compare equal under errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.code == other.code
}

func newErr(kind Kind, code string) *Error {
	return &Error{kind: kind, code: code}
}

// Validation declares a validation sentinel.
func Validation(code string) *Error { return newErr(KindValidation, code) }

// NotFound declares a not-found sentinel.
func NotFound(code string) *Error { return newErr(KindNotFound, code) }

// Conflict declares a conflict sentinel.
func Conflict(code string) *Error { return newErr(KindConflict, code) }

// RateLimited declares a rate-limit sentinel.
func RateLimited(code string) *Error { return newErr(KindRateLimited, code) }

// Processing declares a background-processing sentinel.
func Processing(code string) *Error { return newErr(KindProcessing, code) }

// Payment declares a payment-failure sentinel.
func Payment(code string) *Error { return newErr(KindPayment, code) }

// Tenant declares a tenant-scope sentinel.
func Tenant(code string) *Error { return newErr(KindTenant, code) }

// Wrap attaches a cause to a sentinel without changing its identity.
func Wrap(sentinel *Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &Error{kind: sentinel.kind, code: sentinel.code, err: cause}
}

// KindOf returns the Kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind
	}
	return 0
}

func IsValidation(err error) bool  { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool    { return KindOf(err) == KindConflict }
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
func IsTenant(err error) bool      { return KindOf(err) == KindTenant }
