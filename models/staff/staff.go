package staff

import (
	"time"
)

// Role values assigned to staff accounts.
const (
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
)

// StaffUser is an admin-dashboard account. Created out-of-band by the
// seeding tool, never through the public auth surface. PasswordHash is a
// bcrypt hash; TOTPSecret is a base32 secret, AES-GCM encrypted at rest
// when an encryption key is configured.
type StaffUser struct {
	ID           string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string     `gorm:"type:varchar(255);not null;unique" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	TOTPSecret   *string    `gorm:"column:totp_secret;type:varchar(512)" json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	Role         string     `gorm:"type:varchar(20);not null;default:ADMIN" json:"role"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasTOTP reports whether a TOTP secret is enrolled.
func (s *StaffUser) HasTOTP() bool {
	return s.TOTPSecret != nil && *s.TOTPSecret != ""
}
