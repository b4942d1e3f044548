package models

import (
	str "shopcore/pkg/string"
	"shopcore/pkg/validation"
)

// LoginRequest authenticates a principal inside the tenant named by the
// X-Tenant-Id header.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// PasswordResetRequest starts a reset for the principal identified by email.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// PasswordResetConfirm redeems a reset token. PrincipalID and Token come
// from the link delivered out of band.
type PasswordResetConfirm struct {
	PrincipalID string `json:"principal_id" validate:"required,max=64"`
	Token       string `json:"token" validate:"required,max=128"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func (r *LoginRequest) Normalize() {
	r.Email = str.NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}

func (r *PasswordResetRequest) Normalize() {
	r.Email = str.NormalizeEmail(r.Email)
}

func (r *PasswordResetRequest) Validate() error {
	return validation.Validate(r)
}

func (r *PasswordResetConfirm) Normalize() {
	str.TrimStrings(&r.PrincipalID, &r.Token)
}

func (r *PasswordResetConfirm) Validate() error {
	return validation.Validate(r)
}

// RefreshRequest carries the refresh token for clients that do not use
// cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=2048"`
}

func (r *RefreshRequest) Normalize() {
	str.TrimStrings(&r.RefreshToken)
}

func (r *RefreshRequest) Validate() error {
	return validation.Validate(r)
}
