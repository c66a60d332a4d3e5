package otp

import (
	"fmt"

	"github.com/altrivo/auth-service/internal/domain"
)

// RestrictionKind identifies which issuance control blocked a request.
type RestrictionKind string

const (
	RestrictionLockedOut      RestrictionKind = "locked_out"
	RestrictionSpamBlocked    RestrictionKind = "spam_blocked"
	RestrictionCooldownActive RestrictionKind = "cooldown_active"
)

// RestrictionError is returned when the restriction gate or the request
// throttle refuses to issue a new code.
type RestrictionError struct {
	Kind RestrictionKind
}

func (e *RestrictionError) Error() string {
	switch e.Kind {
	case RestrictionLockedOut:
		return "account locked due to multiple failed attempts, try again after 30 minutes"
	case RestrictionSpamBlocked:
		return "too many OTP requests, please wait 1 hour before requesting again"
	case RestrictionCooldownActive:
		return "please wait 1 minute before requesting a new OTP"
	}
	return "OTP request restricted"
}

func (e *RestrictionError) Unwrap() error {
	if e.Kind == RestrictionLockedOut {
		return domain.ErrForbidden
	}
	return domain.ErrTooManyRequests
}

// VerifyKind identifies why a code submission was rejected.
type VerifyKind string

const (
	VerifyExpired   VerifyKind = "expired"
	VerifyIncorrect VerifyKind = "incorrect"
	VerifyLockedOut VerifyKind = "locked_out"
)

// VerifyError is returned when a submitted code is not accepted.
// Remaining is only meaningful for the Incorrect kind.
type VerifyError struct {
	Kind      VerifyKind
	Remaining int
}

func (e *VerifyError) Error() string {
	switch e.Kind {
	case VerifyExpired:
		return "invalid or expired OTP"
	case VerifyIncorrect:
		return fmt.Sprintf("incorrect OTP, you have %d attempt(s) left", e.Remaining)
	case VerifyLockedOut:
		return "too many failed attempts, your account is locked for 30 minutes"
	}
	return "OTP verification failed"
}

func (e *VerifyError) Unwrap() error {
	if e.Kind == VerifyLockedOut {
		return domain.ErrForbidden
	}
	return domain.ErrUnauthorized
}

// DeliveryError is returned when the code could not be sent. The challenge is
// never persisted in that case.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("could not deliver OTP: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
