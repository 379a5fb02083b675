package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the auth services need. Loaded once in main
// and injected, so tests can build their own instead of reading the process
// environment.
type Config struct {
	AppEnv             string
	DefaultCountryCode string

	JWTSecret        string
	JWTRefreshSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	StepTokenTTL    time.Duration

	OTPExpiry         time.Duration
	OTPHourlyQuota    int
	OTPAttemptCeiling int
	OTPRetention      time.Duration

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	EncryptionKey string

	LogRetentionDays int
}

// Load builds a Config from environment variables with production-safe
// defaults for everything except the JWT secrets, which have no default.
func Load() Config {
	return Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),

		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		StepTokenTTL:    getDuration("STEP_TOKEN_TTL", 5*time.Minute),

		OTPExpiry:         getDuration("OTP_EXPIRY", 5*time.Minute),
		OTPHourlyQuota:    getInt("OTP_HOURLY_QUOTA", 5),
		OTPAttemptCeiling: getInt("OTP_ATTEMPT_CEILING", 10),
		OTPRetention:      getDuration("OTP_RETENTION", time.Hour),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),

		LogRetentionDays: getInt("LOG_RETENTION_DAYS", 30),
	}
}

// IsProduction reports whether real SMS dispatch and secure cookies apply.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
