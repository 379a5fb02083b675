package types

// SendOTPRequest asks for a one-time code to be delivered to a phone.
type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=10,max=20"`
}

// VerifyOTPRequest exchanges a delivered code for a token pair.
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=10,max=20"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest revokes a refresh token. The token is optional; logout is
// idempotent and succeeds either way.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// StaffLoginRequest is the first factor of the staff login flow.
type StaffLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// VerifyTwoFactorRequest is the second factor of the staff login flow.
type VerifyTwoFactorRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
	TOTPCode     string `json:"totpCode" validate:"required,len=6,numeric"`
}

// TokenPairResponse carries issued credentials plus the owning record.
type TokenPairResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         interface{} `json:"user,omitempty"`
}

// StaffLoginResponse is returned by the staff login endpoint. When
// RequiresTwoFactor is true only SessionToken is populated; otherwise the
// full token pair is present.
type StaffLoginResponse struct {
	RequiresTwoFactor bool        `json:"requiresTwoFactor"`
	SessionToken      string      `json:"sessionToken,omitempty"`
	AccessToken       string      `json:"accessToken,omitempty"`
	RefreshToken      string      `json:"refreshToken,omitempty"`
	User              interface{} `json:"user,omitempty"`
}
