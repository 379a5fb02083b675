package database

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"edulens-auth/logger"
	logmodel "edulens-auth/models/log"
	otpmodel "edulens-auth/models/otp"
	"edulens-auth/models/session"
	"edulens-auth/models/staff"
	"edulens-auth/models/user"
)

var DB *gorm.DB

// InitDB connects to Postgres and migrates the auth schema.
func InitDB() (*gorm.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "")
	dbName := getEnv("DB_NAME", "edulens_auth")
	sslMode := getEnv("DB_SSLMODE", "disable")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, dbUser, password, dbName, port, sslMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&user.User{},
		&staff.StaffUser{},
		&otpmodel.OtpCode{},
		&session.Session{},
		&session.StaffSession{},
		&logmodel.AuthLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	DB = db
	logger.Success("Database connected and migrated")
	return db, nil
}

// GetDB returns the shared connection.
func GetDB() *gorm.DB {
	return DB
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
