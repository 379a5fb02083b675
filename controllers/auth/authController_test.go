package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"edulens-auth/config"
	authcontroller "edulens-auth/controllers/auth"
	"edulens-auth/middleware"
	"edulens-auth/models/staff"
	"edulens-auth/repository/memstore"
	authsvc "edulens-auth/services/auth"
	otpsvc "edulens-auth/services/otp"
	"edulens-auth/services/token"
)

const (
	testPassword   = "correct-password-123"
	testTOTPSecret = "JBSWY3DPEHPK3PXP"
)

type nopSender struct{}

func (nopSender) Send(phone, message string) error { return nil }

type fixture struct {
	app        *fiber.App
	otpStore   *memstore.OTPStore
	staffStore *memstore.StaffStore
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:             "test",
		DefaultCountryCode: "91",
		JWTSecret:          "test-access-secret",
		JWTRefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		StepTokenTTL:       5 * time.Minute,
		OTPExpiry:          5 * time.Minute,
		OTPHourlyQuota:     5,
		OTPAttemptCeiling:  10,
		OTPRetention:       time.Hour,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig()

	otpStore := memstore.NewOTPStore()
	userStore := memstore.NewUserStore()
	staffStore := memstore.NewStaffStore()

	otpService := otpsvc.NewService(otpStore, nopSender{}, cfg)
	userTokens := token.NewService(memstore.NewSessionStore(), cfg)
	staffTokens := token.NewStaffService(memstore.NewSessionStore(), cfg)
	authService := authsvc.NewService(userStore, staffStore, staffTokens, cfg)

	ctrl := authcontroller.NewController(otpService, userTokens, staffTokens, authService, nil)

	app := fiber.New()
	auth := app.Group("/api/auth")
	auth.Post("/send-otp", ctrl.SendOTP)
	auth.Post("/verify-otp", ctrl.VerifyOTP)
	auth.Post("/refresh", ctrl.RefreshToken)
	auth.Post("/logout", ctrl.Logout)
	auth.Get("/me", middleware.RequireAuth(userTokens), ctrl.Me)
	auth.Post("/staff/login", ctrl.StaffLogin)
	auth.Post("/staff/verify-2fa", ctrl.VerifyTwoFactor)

	return &fixture{app: app, otpStore: otpStore, staffStore: staffStore}
}

func (f *fixture) seedStaff(t *testing.T, email string, withTOTP bool) *staff.StaffUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u := &staff.StaffUser{
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		Role:         staff.RoleAdmin,
	}
	if withTOTP {
		secret := testTOTPSecret
		u.TOTPSecret = &secret
	}
	return f.staffStore.Add(u)
}

func (f *fixture) post(t *testing.T, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func data(t *testing.T, parsed map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := parsed["data"].(map[string]interface{})
	require.True(t, ok, "expected data object, got %v", parsed)
	return d
}

// verifyPhone walks the full OTP flow and returns the issued token pair.
func (f *fixture) verifyPhone(t *testing.T, phone string) map[string]interface{} {
	t.Helper()
	status, _ := f.post(t, "/api/auth/send-otp", fiber.Map{"phoneNumber": phone})
	require.Equal(t, http.StatusOK, status)

	code := f.otpStore.LatestCode("+919876543210")
	require.NotEmpty(t, code)

	status, parsed := f.post(t, "/api/auth/verify-otp", fiber.Map{"phoneNumber": phone, "otp": code})
	require.Equal(t, http.StatusOK, status)
	return data(t, parsed)
}

func TestSendOTPValidation(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, "/api/auth/send-otp", fiber.Map{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.post(t, "/api/auth/send-otp", fiber.Map{"phoneNumber": "123"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSendOTPQuotaReturns429(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		status, _ := f.post(t, "/api/auth/send-otp", fiber.Map{"phoneNumber": "9876543210"})
		require.Equal(t, http.StatusOK, status)
	}

	status, _ := f.post(t, "/api/auth/send-otp", fiber.Map{"phoneNumber": "9876543210"})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestVerifyOTPIssuesTokensAndUser(t *testing.T) {
	f := newFixture(t)

	d := f.verifyPhone(t, "9876543210")
	assert.NotEmpty(t, d["accessToken"])
	assert.NotEmpty(t, d["refreshToken"])

	u, ok := d["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "+919876543210", u["phone"])
	assert.Equal(t, true, u["is_verified"])
}

func TestVerifyOTPRejectsReplay(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, "/api/auth/send-otp", fiber.Map{"phoneNumber": "9876543210"})
	require.Equal(t, http.StatusOK, status)
	code := f.otpStore.LatestCode("+919876543210")

	status, _ = f.post(t, "/api/auth/verify-otp", fiber.Map{"phoneNumber": "9876543210", "otp": code})
	require.Equal(t, http.StatusOK, status)

	status, _ = f.post(t, "/api/auth/verify-otp", fiber.Map{"phoneNumber": "9876543210", "otp": code})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, "/api/auth/send-otp", fiber.Map{"phoneNumber": "9876543210"})
	require.Equal(t, http.StatusOK, status)

	status, _ = f.post(t, "/api/auth/verify-otp", fiber.Map{"phoneNumber": "9876543210", "otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestVerifyOTPValidation(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, "/api/auth/verify-otp", fiber.Map{"phoneNumber": "9876543210", "otp": "12345"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.post(t, "/api/auth/verify-otp", fiber.Map{"phoneNumber": "9876543210", "otp": "abcdef"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)

	d := f.verifyPhone(t, "9876543210")
	refresh := d["refreshToken"].(string)

	status, parsed := f.post(t, "/api/auth/refresh", fiber.Map{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, status)
	rotated := data(t, parsed)
	assert.NotEqual(t, refresh, rotated["refreshToken"])

	// The rotated pair comes back with its owning account.
	u, ok := rotated["user"].(map[string]interface{})
	require.True(t, ok, "refresh response must include the account record")
	assert.Equal(t, "+919876543210", u["phone"])

	// The old token died with the rotation.
	status, _ = f.post(t, "/api/auth/refresh", fiber.Map{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, "/api/auth/refresh", fiber.Map{"refreshToken": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	f := newFixture(t)

	d := f.verifyPhone(t, "9876543210")
	refresh := d["refreshToken"].(string)

	status, _ := f.post(t, "/api/auth/logout", fiber.Map{"refreshToken": refresh})
	assert.Equal(t, http.StatusOK, status)

	// Revoked tokens can no longer refresh.
	status, _ = f.post(t, "/api/auth/refresh", fiber.Map{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Logout without a token and logout of an unknown token both succeed.
	status, _ = f.post(t, "/api/auth/logout", fiber.Map{})
	assert.Equal(t, http.StatusOK, status)
	status, _ = f.post(t, "/api/auth/logout", fiber.Map{"refreshToken": "unknown"})
	assert.Equal(t, http.StatusOK, status)
}

func TestStaffLoginWithoutTOTP(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "admin@example.com", false)

	status, parsed := f.post(t, "/api/auth/staff/login", fiber.Map{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, status)

	d := data(t, parsed)
	assert.Equal(t, false, d["requiresTwoFactor"])
	assert.NotEmpty(t, d["accessToken"])
	assert.NotEmpty(t, d["refreshToken"])
}

func TestStaffLoginWrongCredentials(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "admin@example.com", false)

	status, _ := f.post(t, "/api/auth/staff/login", fiber.Map{
		"email":    "admin@example.com",
		"password": "not-the-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.post(t, "/api/auth/staff/login", fiber.Map{
		"email":    "ghost@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStaffLoginValidation(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, "/api/auth/staff/login", fiber.Map{"email": "not-an-email", "password": testPassword})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.post(t, "/api/auth/staff/login", fiber.Map{"email": "admin@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStaffTwoFactorFlow(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "admin@example.com", true)

	status, parsed := f.post(t, "/api/auth/staff/login", fiber.Map{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, status)

	d := data(t, parsed)
	require.Equal(t, true, d["requiresTwoFactor"])
	sessionToken := d["sessionToken"].(string)
	require.NotEmpty(t, sessionToken)
	assert.Nil(t, d["accessToken"])

	code, err := totp.GenerateCode(testTOTPSecret, time.Now())
	require.NoError(t, err)

	status, parsed = f.post(t, "/api/auth/staff/verify-2fa", fiber.Map{
		"sessionToken": sessionToken,
		"totpCode":     code,
	})
	require.Equal(t, http.StatusOK, status)

	final := data(t, parsed)
	assert.NotEmpty(t, final["accessToken"])
	assert.NotEmpty(t, final["refreshToken"])
}

func TestStaffTwoFactorWrongCode(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "admin@example.com", true)

	status, parsed := f.post(t, "/api/auth/staff/login", fiber.Map{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, status)
	sessionToken := data(t, parsed)["sessionToken"].(string)

	current, err := totp.GenerateCode(testTOTPSecret, time.Now())
	require.NoError(t, err)
	wrong := "000000"
	if wrong == current {
		wrong = "000001"
	}

	status, _ = f.post(t, "/api/auth/staff/verify-2fa", fiber.Map{
		"sessionToken": sessionToken,
		"totpCode":     wrong,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStaffTwoFactorTamperedSession(t *testing.T) {
	f := newFixture(t)

	status, _ := f.post(t, "/api/auth/staff/verify-2fa", fiber.Map{
		"sessionToken": "tampered.session.token",
		"totpCode":     "123456",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMeEndpoint(t *testing.T) {
	f := newFixture(t)

	d := f.verifyPhone(t, "9876543210")
	access := d["accessToken"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	u := data(t, parsed)
	assert.Equal(t, "+919876543210", u["phone"])

	// No token, no account.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	resp, err = f.app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
