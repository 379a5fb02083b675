package otp

import (
	"time"
)

// OtpCode is a one-time code issued for phone verification. Multiple
// outstanding codes per phone are allowed; verification always picks the
// newest valid one. Rows older than the retention window are purged on the
// next successful verify for that phone.
type OtpCode struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone     string    `gorm:"type:varchar(20);not null;index:idx_otp_codes_phone_created" json:"phone"`
	Code      string    `gorm:"type:varchar(6);not null" json:"code"`
	IsUsed    bool      `gorm:"default:false" json:"is_used"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_otp_codes_phone_created" json:"created_at"`
}

// IsExpired checks the code against wall-clock time.
func (o *OtpCode) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsValid reports whether the code can still be consumed.
func (o *OtpCode) IsValid() bool {
	return !o.IsUsed && !o.IsExpired()
}
