package session

import (
	"time"
)

// Session binds a parent refresh token to its owner. A row is created on
// every token issuance (multi-device), replaced on rotation, and deleted on
// logout. Presence of an unexpired row is what makes a refresh token live.
type Session struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	RefreshToken string    `gorm:"type:text;not null;uniqueIndex:idx_sessions_refresh_token,length:512" json:"-"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// StaffSession is the staff-side twin of Session, kept in a disjoint table
// so parent and staff credentials can never cross-validate.
type StaffSession struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffUserID  string    `gorm:"type:varchar(36);not null;index" json:"staff_user_id"`
	RefreshToken string    `gorm:"type:text;not null;uniqueIndex:idx_staff_sessions_refresh_token,length:512" json:"-"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
