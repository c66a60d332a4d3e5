package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
	"time"
)

// Challenge lifecycle windows. TTLs are absolute from the time a key is set;
// only the cooldown is re-armed, on every successful issuance.
const (
	codeTTL       = 5 * time.Minute
	cooldownTTL   = 1 * time.Minute
	requestWindow = 1 * time.Hour
	spamLockTTL   = 1 * time.Hour
	attemptsTTL   = 5 * time.Minute
	lockTTL       = 30 * time.Minute

	// Both thresholds are "two allowed, the third escalates".
	maxRequests       = 2
	maxFailedAttempts = 2
)

const mailSubject = "Verify Your Email"

// Store is the expiring key-value store all OTP state lives in. Keys are
// scoped per email, so there is no cross-user contention; Incr must be atomic
// and arm the TTL only when it creates the key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

// Mailer delivers a templated email. Delivery is never retried here; a failed
// send surfaces as a DeliveryError and leaves no state behind.
type Mailer interface {
	Send(to, subject, templateKey string, data map[string]any) error
}

// Service issues and verifies short-lived single-use email codes with layered
// anti-abuse controls: a per-email cooldown, an hourly request throttle that
// escalates to a spam lock, and a failed-attempt lockout.
type Service interface {
	// Request runs the full send path: restriction gate, request throttle,
	// then issuance.
	Request(ctx context.Context, name, email, templateKey string) error
	// CheckRestrictions evaluates lockout, spam lock and cooldown, in that
	// order, with no side effects.
	CheckRestrictions(ctx context.Context, email string) error
	// TrackRequest counts an issuance attempt in the trailing one-hour window
	// and raises the spam lock once the threshold is exceeded.
	TrackRequest(ctx context.Context, email string) error
	// Issue generates a code, delivers it, and persists it only after the
	// delivery succeeded.
	Issue(ctx context.Context, name, email, templateKey string) error
	// Verify consumes the active code exactly once, or records a failed
	// attempt and escalates to a lockout on the third mismatch.
	Verify(ctx context.Context, email, code string) error
}

type service struct {
	store  Store
	mailer Mailer
}

func NewService(store Store, mailer Mailer) Service {
	return &service{store: store, mailer: mailer}
}

func codeKey(email string) string     { return "otp:" + email }
func cooldownKey(email string) string { return "otp_cooldown:" + email }
func requestKey(email string) string  { return "otp_request_count:" + email }
func spamLockKey(email string) string { return "otp_spam_lock:" + email }
func attemptsKey(email string) string { return "otp_attempts:" + email }
func lockKey(email string) string     { return "otp_lock:" + email }

func (s *service) Request(ctx context.Context, name, email, templateKey string) error {
	if err := s.CheckRestrictions(ctx, email); err != nil {
		return err
	}
	if err := s.TrackRequest(ctx, email); err != nil {
		return err
	}
	return s.Issue(ctx, name, email, templateKey)
}

func (s *service) CheckRestrictions(ctx context.Context, email string) error {
	if _, ok, err := s.store.Get(ctx, lockKey(email)); err != nil {
		return err
	} else if ok {
		return &RestrictionError{Kind: RestrictionLockedOut}
	}
	if _, ok, err := s.store.Get(ctx, spamLockKey(email)); err != nil {
		return err
	} else if ok {
		return &RestrictionError{Kind: RestrictionSpamBlocked}
	}
	if _, ok, err := s.store.Get(ctx, cooldownKey(email)); err != nil {
		return err
	} else if ok {
		return &RestrictionError{Kind: RestrictionCooldownActive}
	}
	return nil
}

func (s *service) TrackRequest(ctx context.Context, email string) error {
	// Atomic post-increment so two concurrent requests cannot both observe
	// the same pre-increment count. The window is armed when the counter is
	// created and runs out on its own; escalation happens on the third
	// request inside it.
	n, err := s.store.Incr(ctx, requestKey(email), requestWindow)
	if err != nil {
		return err
	}
	if n > maxRequests {
		if err := s.store.Set(ctx, spamLockKey(email), "locked", spamLockTTL); err != nil {
			return err
		}
		if err := s.store.Set(ctx, requestKey(email), "0", requestWindow); err != nil {
			return err
		}
		return &RestrictionError{Kind: RestrictionSpamBlocked}
	}
	return nil
}

func (s *service) Issue(ctx context.Context, name, email, templateKey string) error {
	code, err := generateCode()
	if err != nil {
		return err
	}
	err = s.mailer.Send(email, mailSubject, templateKey, map[string]any{
		"Name":          name,
		"OTPCode":       code,
		"ExpiryMinutes": int(codeTTL / time.Minute),
	})
	if err != nil {
		// Nothing persisted: a challenge the user never received must not
		// exist.
		return &DeliveryError{Err: err}
	}
	if err := s.store.Set(ctx, codeKey(email), code, codeTTL); err != nil {
		return err
	}
	if err := s.store.Set(ctx, cooldownKey(email), "true", cooldownTTL); err != nil {
		return err
	}
	// Re-issuing replaces the challenge, so stale failed-attempt counts must
	// not carry over to the fresh code.
	return s.store.Del(ctx, attemptsKey(email))
}

func (s *service) Verify(ctx context.Context, email, code string) error {
	stored, ok, err := s.store.Get(ctx, codeKey(email))
	if err != nil {
		return err
	}
	if !ok {
		return &VerifyError{Kind: VerifyExpired}
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		n, err := s.store.Incr(ctx, attemptsKey(email), attemptsTTL)
		if err != nil {
			return err
		}
		if n > maxFailedAttempts {
			if err := s.store.Set(ctx, lockKey(email), "locked", lockTTL); err != nil {
				return err
			}
			if err := s.store.Del(ctx, codeKey(email), attemptsKey(email)); err != nil {
				return err
			}
			return &VerifyError{Kind: VerifyLockedOut}
		}
		return &VerifyError{Kind: VerifyIncorrect, Remaining: maxFailedAttempts - int(n) + 1}
	}
	// Single round trip so the caller observes both keys gone or neither.
	return s.store.Del(ctx, codeKey(email), attemptsKey(email))
}

// generateCode draws uniformly from 1000..9998. The upper bound is exclusive,
// matching the issuing behavior clients already depend on.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(8999))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}
