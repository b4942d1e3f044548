package service

import (
	"errors"

	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/sentinel"
)

func errInvalidCredentials() error {
	return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
}

func errTokenRejected() error {
	return dErrors.New(dErrors.CodeTokenRejected, "token rejected")
}

func errResetTokenInvalid() error {
	return dErrors.New(dErrors.CodeResetTokenInvalid, "reset token invalid")
}

// storeError maps store failures onto domain errors. notFound decides what a
// missing record means for the flow at hand.
func storeError(err error, notFound func() error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return notFound()
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
