package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"edulens-auth/config"
)

var (
	// ErrInvalidRefreshToken is returned for every refresh failure mode
	// (bad signature, expired, revoked, unknown) so callers cannot tell
	// why a refresh was rejected.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidAccessToken is returned when an access token fails
	// signature or expiry checks.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrInvalidStepToken is returned when a 2FA session token is
	// malformed, expired, or not a step token at all.
	ErrInvalidStepToken = errors.New("invalid session token")
)

const stepTwoFactor = "2fa"

// Claims is the payload carried by every token this service signs.
type Claims struct {
	UserID  string `json:"userId"`
	Role    string `json:"role"`
	IsStaff bool   `json:"isStaff,omitempty"`
	Step    string `json:"step,omitempty"`
	jwt.RegisteredClaims
}

// SessionRecord is the persisted view of a refresh token.
type SessionRecord struct {
	UserID       string
	RefreshToken string
	ExpiresAt    time.Time
}

// SessionStore persists refresh-token sessions. Find returns (nil, nil)
// when no row matches. Rotate must atomically delete the old row and insert
// the replacement, failing when the old row is already gone.
type SessionStore interface {
	Create(userID, refreshToken string, expiresAt time.Time) error
	Find(refreshToken string) (*SessionRecord, error)
	Rotate(oldToken, userID, newToken string, expiresAt time.Time) error
	Delete(refreshToken string) error
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service issues, verifies, rotates and revokes tokens for one subject
// class. The parent and staff instances share secrets but use disjoint
// session stores, and staff tokens carry the isStaff claim.
type Service struct {
	sessions SessionStore
	cfg      config.Config
	staff    bool
}

// NewService creates the parent-side token service.
func NewService(sessions SessionStore, cfg config.Config) *Service {
	return &Service{sessions: sessions, cfg: cfg}
}

// NewStaffService creates the staff-side token service.
func NewStaffService(sessions SessionStore, cfg config.Config) *Service {
	return &Service{sessions: sessions, cfg: cfg, staff: true}
}

// IssuePair signs a fresh access/refresh pair and persists the session row
// binding the refresh token to its subject.
func (s *Service) IssuePair(userID, role string) (*Pair, error) {
	pair, expiresAt, err := s.signPair(userID, role)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(userID, pair.RefreshToken, expiresAt); err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh validates a refresh token against both its signature and the
// session store, then rotates it: the old session row is replaced by a new
// one in a single transaction and a fresh pair is returned along with the
// subject id. All failures collapse into ErrInvalidRefreshToken.
func (s *Service) Refresh(refreshToken string) (*Pair, string, error) {
	claims, err := s.parse(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return nil, "", ErrInvalidRefreshToken
	}

	// Signature alone is not enough: a forged-but-unexpired token that
	// was already revoked must die here.
	rec, err := s.sessions.Find(refreshToken)
	if err != nil || rec == nil || rec.ExpiresAt.Before(time.Now()) {
		return nil, "", ErrInvalidRefreshToken
	}

	pair, expiresAt, err := s.signPair(claims.UserID, claims.Role)
	if err != nil {
		return nil, "", ErrInvalidRefreshToken
	}
	if err := s.sessions.Rotate(refreshToken, rec.UserID, pair.RefreshToken, expiresAt); err != nil {
		return nil, "", ErrInvalidRefreshToken
	}

	return pair, rec.UserID, nil
}

// Revoke deletes any session rows for the token. Idempotent; unknown
// tokens are not an error.
func (s *Service) Revoke(refreshToken string) error {
	return s.sessions.Delete(refreshToken)
}

// VerifyAccess checks an access token's signature and expiry. Access
// tokens are never persisted, so no store lookup happens here.
func (s *Service) VerifyAccess(tokenStr string) (*Claims, error) {
	claims, err := s.parse(tokenStr, s.cfg.JWTSecret)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}
	// Step tokens are signed with the same secret; they must never pass
	// as access tokens.
	if claims.Step != "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// IssueTwoFactorToken signs the short-lived intermediate token marking
// "first factor passed, second factor pending" for a staff account.
func (s *Service) IssueTwoFactorToken(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Step:   stepTwoFactor,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.StepTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// VerifyTwoFactorToken validates a 2FA session token and returns the staff
// id it was issued for.
func (s *Service) VerifyTwoFactorToken(tokenStr string) (string, error) {
	claims, err := s.parse(tokenStr, s.cfg.JWTSecret)
	if err != nil {
		return "", ErrInvalidStepToken
	}
	if claims.Step != stepTwoFactor {
		return "", ErrInvalidStepToken
	}
	return claims.UserID, nil
}

func (s *Service) signPair(userID, role string) (*Pair, time.Time, error) {
	now := time.Now()
	refreshExpiry := now.Add(s.cfg.RefreshTokenTTL)

	access, err := s.sign(userID, role, s.cfg.JWTSecret, now.Add(s.cfg.AccessTokenTTL))
	if err != nil {
		return nil, time.Time{}, err
	}
	refresh, err := s.sign(userID, role, s.cfg.JWTRefreshSecret, refreshExpiry)
	if err != nil {
		return nil, time.Time{}, err
	}

	return &Pair{AccessToken: access, RefreshToken: refresh}, refreshExpiry, nil
}

func (s *Service) sign(userID, role, secret string, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID:  userID,
		Role:    role,
		IsStaff: s.staff,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Service) parse(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}
