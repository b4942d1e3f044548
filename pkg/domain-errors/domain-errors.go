package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeInternal           Code = "internal_error"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeRateLimited        Code = "rate_limited"

	// Credential and token issuance.
	CodeEmptyInput         Code = "empty_input"
	CodeInvalidPrincipal   Code = "invalid_principal"
	CodeInvalidCredentials Code = "invalid_credentials"

	// Security decisions. Callers only ever see these as a single denial;
	// the specific code is for logs and audit.
	CodeTenantRequired    Code = "tenant_required"
	CodeTenantMismatch    Code = "tenant_mismatch"
	CodeNotAMember        Code = "not_a_member"
	CodeNoMembership      Code = "no_membership"
	CodeUnknownTenant     Code = "unknown_tenant"
	CodeNoTenantContext   Code = "no_tenant_context"
	CodeTokenRejected     Code = "token_rejected"
	CodeResetTokenInvalid Code = "reset_token_invalid"
)

var securityDenials = map[Code]struct{}{
	CodeTenantRequired:    {},
	CodeTenantMismatch:    {},
	CodeNotAMember:        {},
	CodeNoMembership:      {},
	CodeUnknownTenant:     {},
	CodeNoTenantContext:   {},
	CodeTokenRejected:     {},
	CodeResetTokenInvalid: {},
}

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the outermost domain code in the chain, or CodeInternal
// when the error carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsSecurityDenial reports whether err is one of the tenant, token or reset
// rejections that must reach the caller as an undifferentiated denial.
func IsSecurityDenial(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	_, ok := securityDenials[e.Code]
	return ok
}
