package auth

import (
	"errors"
	"time"

	pqotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"edulens-auth/config"
	"edulens-auth/logger"
	"edulens-auth/models/staff"
	"edulens-auth/models/user"
	"edulens-auth/services/token"
	"edulens-auth/utils"
)

var (
	// ErrInvalidCredentials covers unknown email, inactive account and
	// password mismatch alike; the caller cannot tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession means the 2FA session token failed verification.
	ErrInvalidSession = errors.New("invalid session")
	// ErrInvalidUser means the 2FA flow reached an account with no TOTP
	// secret enrolled, which cannot happen when the flow was entered
	// correctly.
	ErrInvalidUser = errors.New("invalid user")
	// ErrInvalidTOTP means the time-based code did not match within the
	// allowed skew.
	ErrInvalidTOTP = errors.New("invalid TOTP code")
	// ErrTwoFactorFailed folds every unexpected 2FA error into one
	// generic failure.
	ErrTwoFactorFailed = errors.New("2FA verification failed")
)

// Burned when the account does not exist so unknown-email and bad-password
// paths take comparable time. Hash of an unused throwaway string.
const timingDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserStore persists parent accounts.
type UserStore interface {
	UpsertByPhone(phone string) (*user.User, error)
	FindByID(id string) (*user.User, error)
}

// StaffStore persists staff accounts. Not-found lookups return (nil, nil).
type StaffStore interface {
	FindActiveByEmail(email string) (*staff.StaffUser, error)
	FindByID(id string) (*staff.StaffUser, error)
	UpdateLastLogin(id string, at time.Time) error
}

// LoginResult is the outcome of a staff authentication step. Either
// SessionToken is set (second factor pending) or Tokens and Staff are.
type LoginResult struct {
	RequiresTwoFactor bool
	SessionToken      string
	Tokens            *token.Pair
	Staff             *staff.StaffUser
}

// Service owns the parent upsert and the staff password + TOTP step-up
// state machine.
type Service struct {
	users  UserStore
	staff  StaffStore
	tokens *token.Service
	cfg    config.Config
}

// NewService wires the auth service. tokens must be the staff-side token
// service; parent tokens are issued by the controller layer.
func NewService(users UserStore, staffStore StaffStore, tokens *token.Service, cfg config.Config) *Service {
	return &Service{users: users, staff: staffStore, tokens: tokens, cfg: cfg}
}

// CreateOrUpdateUser upserts a parent account by normalized phone after a
// successful OTP verification, refreshing its verification flag.
func (s *Service) CreateOrUpdateUser(phone string) (*user.User, error) {
	return s.users.UpsertByPhone(phone)
}

// GetUser loads a parent account by id.
func (s *Service) GetUser(id string) (*user.User, error) {
	return s.users.FindByID(id)
}

// GetStaff loads a staff account by id.
func (s *Service) GetStaff(id string) (*staff.StaffUser, error) {
	return s.staff.FindByID(id)
}

// AuthenticateStaff checks the first factor. Accounts without an enrolled
// TOTP secret go straight to a full token pair; enrolled accounts receive a
// short-lived session token and must complete VerifyTwoFactor.
func (s *Service) AuthenticateStaff(email, password string) (*LoginResult, error) {
	u, err := s.staff.FindActiveByEmail(email)
	if err != nil {
		logger.Error("Failed to look up staff user", err)
		return nil, ErrInvalidCredentials
	}
	if u == nil {
		bcrypt.CompareHashAndPassword([]byte(timingDummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}

	// bcrypt comparison is constant-time with respect to the password.
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.staff.UpdateLastLogin(u.ID, time.Now()); err != nil {
		return nil, err
	}

	if u.HasTOTP() {
		sessionToken, err := s.tokens.IssueTwoFactorToken(u.ID)
		if err != nil {
			return nil, err
		}
		return &LoginResult{RequiresTwoFactor: true, SessionToken: sessionToken}, nil
	}

	pair, err := s.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	logger.Success("Staff user logged in: " + u.Email)
	return &LoginResult{Tokens: pair, Staff: u}, nil
}

// VerifyTwoFactor checks the second factor and, on success, issues the
// full staff token pair exactly as the no-2FA path does.
func (s *Service) VerifyTwoFactor(sessionToken, code string) (*LoginResult, error) {
	staffID, err := s.tokens.VerifyTwoFactorToken(sessionToken)
	if err != nil {
		return nil, ErrInvalidSession
	}

	u, err := s.staff.FindByID(staffID)
	if err != nil {
		logger.Error("Failed to load staff user for 2FA", err)
		return nil, ErrTwoFactorFailed
	}
	if u == nil || !u.HasTOTP() {
		return nil, ErrInvalidUser
	}

	secret, err := s.totpSecret(u)
	if err != nil {
		logger.Error("Failed to read TOTP secret", err)
		return nil, ErrTwoFactorFailed
	}

	// ±2 step tolerance absorbs client clock drift.
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      2,
		Digits:    pqotp.DigitsSix,
		Algorithm: pqotp.AlgorithmSHA1,
	})
	if err != nil {
		logger.Error("TOTP validation failed", err)
		return nil, ErrTwoFactorFailed
	}
	if !ok {
		return nil, ErrInvalidTOTP
	}

	pair, err := s.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		return nil, ErrTwoFactorFailed
	}
	logger.Success("Staff user completed 2FA: " + u.Email)
	return &LoginResult{Tokens: pair, Staff: u}, nil
}

// totpSecret returns the enrolled secret, decrypting it when secrets are
// stored encrypted.
func (s *Service) totpSecret(u *staff.StaffUser) (string, error) {
	if s.cfg.EncryptionKey == "" {
		return *u.TOTPSecret, nil
	}
	return utils.DecryptData(*u.TOTPSecret, s.cfg.EncryptionKey)
}
