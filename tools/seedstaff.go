package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"edulens-auth/database"
	"edulens-auth/models/staff"
	"edulens-auth/utils"
)

// Seeds a staff account. With -totp, also enrolls a TOTP secret and prints
// the otpauth URI for the authenticator app.
//
// Usage:
//
//	go run tools/seedstaff.go -email admin@example.com -password secret123 [-role ADMIN] [-totp]
func main() {
	email := flag.String("email", "", "staff email")
	password := flag.String("password", "", "staff password (min 8 chars)")
	role := flag.String("role", staff.RoleAdmin, "staff role")
	enrollTOTP := flag.Bool("totp", false, "enroll a TOTP secret")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		fmt.Println("Usage: go run tools/seedstaff.go -email <email> -password <password> [-role ADMIN] [-totp]")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ No .env file loaded:", err)
	}

	db, err := database.InitDB()
	if err != nil {
		fmt.Printf("❌ Database connection failed: %v\n", err)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("❌ Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	u := staff.StaffUser{
		ID:           uuid.NewString(),
		Email:        *email,
		PasswordHash: string(hash),
		IsActive:     true,
		Role:         *role,
	}

	if *enrollTOTP {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "EduLens",
			AccountName: *email,
		})
		if err != nil {
			fmt.Printf("❌ Failed to generate TOTP secret: %v\n", err)
			os.Exit(1)
		}

		secret := key.Secret()
		if encryptionKey := os.Getenv("ENCRYPTION_KEY"); encryptionKey != "" {
			secret, err = utils.EncryptData(secret, encryptionKey)
			if err != nil {
				fmt.Printf("❌ Failed to encrypt TOTP secret: %v\n", err)
				os.Exit(1)
			}
		}
		u.TOTPSecret = &secret

		fmt.Println("🔐 TOTP enrolled. Add this to your authenticator app:")
		fmt.Println("   " + key.URL())
	}

	if err := db.Create(&u).Error; err != nil {
		fmt.Printf("❌ Failed to create staff user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Staff user created: %s (%s)\n", u.Email, u.Role)
}
