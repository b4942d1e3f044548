// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"regexp"
	"strings"

	dErrors "shopcore/pkg/domain-errors"
)

// Tenants and principals are identified by opaque, stable strings
// ("shop-a", "U1"). Distinct types keep a PrincipalID from being passed where
// a TenantID is expected.
type (
	TenantID    string
	PrincipalID string
)

const maxIDLength = 64

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Parse functions - use at trust boundaries (handlers, headers, token claims).

func ParseTenantID(s string) (TenantID, error) {
	v, err := parseOpaque(s, "tenant ID")
	return TenantID(v), err
}

func ParsePrincipalID(s string) (PrincipalID, error) {
	v, err := parseOpaque(s, "principal ID")
	return PrincipalID(v), err
}

func (id TenantID) String() string    { return string(id) }
func (id PrincipalID) String() string { return string(id) }

func (id TenantID) IsNil() bool    { return id == "" }
func (id PrincipalID) IsNil() bool { return id == "" }

func parseOpaque(s, label string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if len(s) > maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" is too long")
	}
	if !idPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return s, nil
}
