package user

import (
	"time"
)

// Role values assigned to parent-side accounts.
const (
	RoleParent = "PARENT"
)

// User is a parent account created on first successful OTP verification.
// Rows are upserted by phone and never hard-deleted by the auth core.
type User struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Phone      string    `gorm:"type:varchar(20);not null;unique" json:"phone"`
	IsVerified bool      `gorm:"default:false" json:"is_verified"`
	Role       string    `gorm:"type:varchar(20);not null;default:PARENT" json:"role"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
