package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"edulens-auth/config"
	"edulens-auth/logger"
	otpmodel "edulens-auth/models/otp"
)

var (
	// ErrRateLimited means the phone hit its hourly issuance quota.
	ErrRateLimited = errors.New("too many OTP requests")
	// ErrTooManyAttempts means the phone hit its hourly attempt ceiling.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	// ErrDeliveryFailed covers SMS dispatch and unexpected store failures
	// during send; the caller sees a generic "failed to send".
	ErrDeliveryFailed = errors.New("failed to send OTP")
)

// Store is the persistence surface the OTP engine needs. Not-found lookups
// return (nil, nil) rather than an error.
type Store interface {
	Create(rec *otpmodel.OtpCode) error
	FindLatestValid(phone, code string, now time.Time) (*otpmodel.OtpCode, error)
	MarkUsed(id uint) error
	CountCreatedSince(phone string, since time.Time) (int64, error)
	DeleteCreatedBefore(phone string, cutoff time.Time) error
}

// Sender dispatches a message to a phone number.
type Sender interface {
	Send(phone, message string) error
}

// Service generates, delivers, validates and expires one-time codes.
type Service struct {
	store Store
	sms   Sender
	cfg   config.Config
}

// NewService creates an OTP service over the given store and SMS channel.
func NewService(store Store, sms Sender, cfg config.Config) *Service {
	return &Service{store: store, sms: sms, cfg: cfg}
}

// NormalizePhone reduces a phone number to canonical +<digits> form: strip
// everything that is not a digit, prefix the default country code when the
// remainder is a bare 10-digit national number, then add the leading plus.
// Idempotent: normalizing an already-normalized number is a no-op.
func (s *Service) NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	cc := s.cfg.DefaultCountryCode
	if len(digits) == 10 && !strings.HasPrefix(digits, cc) {
		digits = cc + digits
	}

	return "+" + digits
}

// SendOTP issues a fresh 6-digit code for the phone and dispatches it.
// The code row is persisted before dispatch is attempted, so a delivery
// failure still leaves a usable code for the development path.
func (s *Service) SendOTP(phone string) (*otpmodel.OtpCode, error) {
	clean := s.NormalizePhone(phone)

	// Quota is counted from the store, not in memory, so it survives
	// process restarts. Best-effort under concurrent sends.
	recent, err := s.store.CountCreatedSince(clean, time.Now().Add(-time.Hour))
	if err != nil {
		logger.Error("Failed to count recent OTPs for "+clean, err)
		return nil, ErrDeliveryFailed
	}
	if recent >= int64(s.cfg.OTPHourlyQuota) {
		return nil, ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		logger.Error("Failed to generate OTP", err)
		return nil, ErrDeliveryFailed
	}

	rec := &otpmodel.OtpCode{
		Phone:     clean,
		Code:      code,
		ExpiresAt: time.Now().Add(s.cfg.OTPExpiry),
	}
	if err := s.store.Create(rec); err != nil {
		logger.Error("Failed to create OTP record", err)
		return nil, ErrDeliveryFailed
	}

	if s.cfg.IsProduction() {
		msg := fmt.Sprintf("Your EduLens verification code is: %s. Valid for 5 minutes. Do not share this code.", code)
		if err := s.sms.Send(clean, msg); err != nil {
			logger.Error("Failed to send OTP SMS to "+clean, err)
			return nil, ErrDeliveryFailed
		}
	} else {
		// Development escape hatch: surface the code in the log
		// instead of sending real SMS.
		logger.Info(fmt.Sprintf("OTP for %s: %s", clean, code))
	}

	logger.Info("OTP sent to " + clean)
	return rec, nil
}

// VerifyOTP consumes the newest valid code for the phone. A mismatch is a
// plain false, not an error; only the attempt ceiling surfaces as
// ErrTooManyAttempts.
func (s *Service) VerifyOTP(phone, code string) (bool, error) {
	clean := s.NormalizePhone(phone)

	rec, err := s.store.FindLatestValid(clean, code, time.Now())
	if err != nil {
		logger.Error("Failed to look up OTP for "+clean, err)
		return false, nil
	}

	if rec == nil {
		attempts, err := s.store.CountCreatedSince(clean, time.Now().Add(-time.Hour))
		if err != nil {
			logger.Error("Failed to count OTP attempts for "+clean, err)
			return false, nil
		}
		if attempts >= int64(s.cfg.OTPAttemptCeiling) {
			return false, ErrTooManyAttempts
		}
		return false, nil
	}

	if err := s.store.MarkUsed(rec.ID); err != nil {
		logger.Error("Failed to mark OTP as used", err)
		return false, nil
	}

	// Garbage-collect codes past the retention window for this phone.
	if err := s.store.DeleteCreatedBefore(clean, time.Now().Add(-s.cfg.OTPRetention)); err != nil {
		logger.Error("Failed to clean up old OTPs for "+clean, err)
	}

	logger.Info("OTP verified successfully for " + clean)
	return true, nil
}

// generateCode draws a uniform 6-digit code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
