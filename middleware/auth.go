package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"edulens-auth/services/token"
	"edulens-auth/types"
)

// RequireAuth verifies the bearer access token and stores its claims in
// request locals. Access tokens are stateless; no store lookup happens.
func RequireAuth(tokens *token.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := bearerClaims(c, tokens)
		if err != nil {
			return unauthorized(c)
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequireStaff additionally demands the isStaff claim.
func RequireStaff(tokens *token.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := bearerClaims(c, tokens)
		if err != nil || !claims.IsStaff {
			return unauthorized(c)
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}

// Claims returns the verified claims stored by RequireAuth/RequireStaff.
func Claims(c *fiber.Ctx) *token.Claims {
	claims, _ := c.Locals("claims").(*token.Claims)
	return claims
}

func bearerClaims(c *fiber.Ctx, tokens *token.Service) (*token.Claims, error) {
	authHeader := c.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, token.ErrInvalidAccessToken
	}
	return tokens.VerifyAccess(parts[1])
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(types.ErrorResponse{
		Message: "Authorization token required",
		Status:  fiber.StatusUnauthorized,
	})
}
