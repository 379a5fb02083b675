package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"edulens-auth/config"
	authcontroller "edulens-auth/controllers/auth"
	healthcontroller "edulens-auth/controllers/health"
	"edulens-auth/httpServices/sms"
	"edulens-auth/logger"
	"edulens-auth/middleware"
	"edulens-auth/repository/gormstore"
	authsvc "edulens-auth/services/auth"
	otpsvc "edulens-auth/services/otp"
	"edulens-auth/services/token"
)

// SetupRoutes wires stores, services, controllers and middleware onto the
// Fiber app.
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb redis.UniversalClient, cfg config.Config) {
	otpStore := gormstore.NewOTPStore(db)
	userStore := gormstore.NewUserStore(db)
	staffStore := gormstore.NewStaffStore(db)
	userSessions := gormstore.NewSessionStore(db)
	staffSessions := gormstore.NewStaffSessionStore(db)

	smsClient := sms.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)

	otpService := otpsvc.NewService(otpStore, smsClient, cfg)
	userTokens := token.NewService(userSessions, cfg)
	staffTokens := token.NewStaffService(staffSessions, cfg)
	authService := authsvc.NewService(userStore, staffStore, staffTokens, cfg)

	audit := logger.NewAsyncLogger(db, cfg.LogRetentionDays)
	go audit.ProcessLog()
	go audit.RunRetentionSweep()

	authCtrl := authcontroller.NewController(otpService, userTokens, staffTokens, authService, audit)
	healthCtrl := healthcontroller.NewController(db, rdb)

	limiter := middleware.NewRateLimiter(rdb)
	app.Use(limiter.Handle())

	app.Get("/health", healthCtrl.Check)

	auth := app.Group("/api/auth")
	auth.Post("/send-otp", authCtrl.SendOTP)
	auth.Post("/verify-otp", authCtrl.VerifyOTP)
	auth.Post("/refresh", authCtrl.RefreshToken)
	auth.Post("/logout", authCtrl.Logout)
	auth.Get("/me", middleware.RequireAuth(userTokens), authCtrl.Me)
	auth.Post("/staff/login", authCtrl.StaffLogin)
	auth.Post("/staff/verify-2fa", authCtrl.VerifyTwoFactor)
}
