package validation

import (
	"fmt"

	dErrors "shopcore/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024
)

// String length limits for values read from headers and cookies, which
// bypass struct validation.
const (
	// MaxTenantHintLength bounds the X-Tenant-Id header.
	MaxTenantHintLength = 64

	// MaxEmailLength is the maximum length of an email address.
	MaxEmailLength = 255

	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72

	// MaxTokenLength bounds access and refresh tokens presented in cookies
	// or the Authorization header.
	MaxTokenLength = 2048
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
