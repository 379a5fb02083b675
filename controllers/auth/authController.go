package auth

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"edulens-auth/logger"
	authsvc "edulens-auth/services/auth"
	otpsvc "edulens-auth/services/otp"
	"edulens-auth/services/token"
	"edulens-auth/types"
	"edulens-auth/utils"
)

// Controller owns the HTTP surface of the auth flows.
type Controller struct {
	otp         *otpsvc.Service
	userTokens  *token.Service
	staffTokens *token.Service
	auth        *authsvc.Service
	audit       *logger.AsyncLogger
	validate    *validator.Validate
}

// NewController wires the auth controller. audit may be nil in tests.
func NewController(otp *otpsvc.Service, userTokens, staffTokens *token.Service, auth *authsvc.Service, audit *logger.AsyncLogger) *Controller {
	return &Controller{
		otp:         otp,
		userTokens:  userTokens,
		staffTokens: staffTokens,
		auth:        auth,
		audit:       audit,
		validate:    validator.New(),
	}
}

// SendOTP handles POST /api/auth/send-otp.
func (ctrl *Controller) SendOTP(c *fiber.Ctx) error {
	defer ctrl.logRequest(c)

	var req types.SendOTPRequest
	if err := ctrl.parseAndValidate(c, &req); err != nil {
		return err
	}

	if _, err := ctrl.otp.SendOTP(req.PhoneNumber); err != nil {
		if errors.Is(err, otpsvc.ErrRateLimited) {
			return c.Status(fiber.StatusTooManyRequests).JSON(types.ErrorResponse{
				Message: "Too many OTP requests. Please try again later.",
				Status:  fiber.StatusTooManyRequests,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Failed to send OTP",
			Status:  fiber.StatusInternalServerError,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "OTP sent successfully",
		Status:  fiber.StatusOK,
	})
}

// VerifyOTP handles POST /api/auth/verify-otp. A valid code upserts the
// parent account and returns a token pair.
func (ctrl *Controller) VerifyOTP(c *fiber.Ctx) error {
	defer ctrl.logRequest(c)

	var req types.VerifyOTPRequest
	if err := ctrl.parseAndValidate(c, &req); err != nil {
		return err
	}

	ok, err := ctrl.otp.VerifyOTP(req.PhoneNumber, req.OTP)
	if err != nil {
		if errors.Is(err, otpsvc.ErrTooManyAttempts) {
			return c.Status(fiber.StatusTooManyRequests).JSON(types.ErrorResponse{
				Message: "Too many failed attempts. Please try again later.",
				Status:  fiber.StatusTooManyRequests,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Failed to verify OTP",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "Invalid or expired OTP",
			Status:  fiber.StatusBadRequest,
		})
	}

	phone := ctrl.otp.NormalizePhone(req.PhoneNumber)
	u, err := ctrl.auth.CreateOrUpdateUser(phone)
	if err != nil {
		logger.Error("Failed to upsert user after OTP verification", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Failed to verify OTP",
			Status:  fiber.StatusInternalServerError,
		})
	}

	pair, err := ctrl.userTokens.IssuePair(u.ID, u.Role)
	if err != nil {
		logger.Error("Failed to issue tokens after OTP verification", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Failed to verify OTP",
			Status:  fiber.StatusInternalServerError,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "OTP verified successfully",
		Status:  fiber.StatusOK,
		Data: types.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			User:         u,
		},
	})
}

// RefreshToken handles POST /api/auth/refresh. Parent and staff refresh
// tokens arrive at the same endpoint; session-store membership decides
// which side the token belongs to, and every failure is the same 401.
func (ctrl *Controller) RefreshToken(c *fiber.Ctx) error {
	defer ctrl.logRequest(c)

	var req types.RefreshRequest
	if err := ctrl.parseAndValidate(c, &req); err != nil {
		return err
	}

	var (
		record    interface{}
		lookupErr error
	)
	pair, userID, err := ctrl.userTokens.Refresh(req.RefreshToken)
	if err == nil {
		record, lookupErr = ctrl.auth.GetUser(userID)
	} else {
		pair, userID, err = ctrl.staffTokens.Refresh(req.RefreshToken)
		if err == nil {
			record, lookupErr = ctrl.auth.GetStaff(userID)
		}
	}
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ErrorResponse{
			Message: "Invalid refresh token",
			Status:  fiber.StatusUnauthorized,
		})
	}
	if lookupErr != nil {
		// Rotation already happened; the pair is valid even when the
		// account read fails, so degrade to tokens-only.
		logger.Error("Failed to load account after refresh for "+userID, lookupErr)
		record = nil
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "Token refreshed successfully",
		Status:  fiber.StatusOK,
		Data: types.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			User:         record,
		},
	})
}

// Logout handles POST /api/auth/logout. Revocation is idempotent and the
// endpoint always reports success, token or no token.
func (ctrl *Controller) Logout(c *fiber.Ctx) error {
	defer ctrl.logRequest(c)

	var req types.LogoutRequest
	_ = c.BodyParser(&req)

	if req.RefreshToken != "" {
		if err := ctrl.userTokens.Revoke(req.RefreshToken); err != nil {
			logger.Error("Failed to revoke user session", err)
		}
		if err := ctrl.staffTokens.Revoke(req.RefreshToken); err != nil {
			logger.Error("Failed to revoke staff session", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "Logged out successfully",
		Status:  fiber.StatusOK,
	})
}

// StaffLogin handles POST /api/auth/staff/login.
func (ctrl *Controller) StaffLogin(c *fiber.Ctx) error {
	defer ctrl.logRequest(c)

	var req types.StaffLoginRequest
	if err := ctrl.parseAndValidate(c, &req); err != nil {
		return err
	}

	result, err := ctrl.auth.AuthenticateStaff(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, authsvc.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ErrorResponse{
				Message: "Invalid credentials",
				Status:  fiber.StatusUnauthorized,
			})
		}
		logger.Error("Staff login failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Login failed",
			Status:  fiber.StatusInternalServerError,
		})
	}

	resp := types.StaffLoginResponse{RequiresTwoFactor: result.RequiresTwoFactor}
	if result.RequiresTwoFactor {
		resp.SessionToken = result.SessionToken
	} else {
		resp.AccessToken = result.Tokens.AccessToken
		resp.RefreshToken = result.Tokens.RefreshToken
		resp.User = result.Staff
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "Login successful",
		Status:  fiber.StatusOK,
		Data:    resp,
	})
}

// VerifyTwoFactor handles POST /api/auth/staff/verify-2fa.
func (ctrl *Controller) VerifyTwoFactor(c *fiber.Ctx) error {
	defer ctrl.logRequest(c)

	var req types.VerifyTwoFactorRequest
	if err := ctrl.parseAndValidate(c, &req); err != nil {
		return err
	}

	result, err := ctrl.auth.VerifyTwoFactor(req.SessionToken, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrInvalidSession),
			errors.Is(err, authsvc.ErrInvalidUser),
			errors.Is(err, authsvc.ErrInvalidTOTP):
			return c.Status(fiber.StatusUnauthorized).JSON(types.ErrorResponse{
				Message: "Invalid verification code",
				Status:  fiber.StatusUnauthorized,
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
				Message: "2FA verification failed",
				Status:  fiber.StatusInternalServerError,
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "2FA verification successful",
		Status:  fiber.StatusOK,
		Data: types.StaffLoginResponse{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			User:         result.Staff,
		},
	})
}

// Me handles GET /api/auth/me behind the bearer guard.
func (ctrl *Controller) Me(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(*token.Claims)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ErrorResponse{
			Message: "Authorization token required",
			Status:  fiber.StatusUnauthorized,
		})
	}

	var (
		record interface{}
		err    error
	)
	if claims.IsStaff {
		record, err = ctrl.auth.GetStaff(claims.UserID)
	} else {
		record, err = ctrl.auth.GetUser(claims.UserID)
	}
	if err != nil {
		logger.Error("Failed to load account for /me", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Failed to load account",
			Status:  fiber.StatusInternalServerError,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "Account loaded",
		Status:  fiber.StatusOK,
		Data:    record,
	})
}

func (ctrl *Controller) parseAndValidate(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "Invalid request body",
			Status:  fiber.StatusBadRequest,
		})
	}
	if err := ctrl.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "Validation failed",
			Status:  fiber.StatusBadRequest,
			Errors:  validationErrors(err),
		})
	}
	return nil
}

func (ctrl *Controller) logRequest(c *fiber.Ctx) {
	if ctrl.audit == nil {
		return
	}
	ctrl.audit.Log(utils.SanitizedLogEntry(c))
}

func validationErrors(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fe.Field()+" failed on "+fe.Tag())
	}
	return out
}
