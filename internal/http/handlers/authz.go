package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"sweetshop/internal/domain"
	applog "sweetshop/internal/log"
	"sweetshop/internal/services"
)

// RequireAuth verifies the bearer token and stores the caller identity in
// Locals under applog.IdentityKey. Missing or bad tokens get a 401.
func RequireAuth(auth services.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok, ok := bearer(c.Get(fiber.HeaderAuthorization))
		if !ok {
			c.Status(fiber.StatusUnauthorized)
			applog.Security(c, "auth.token.missing", nil)
			return message(c, fiber.StatusUnauthorized, "authentication required")
		}
		id, err := auth.Verify(tok)
		if err != nil {
			c.Status(fiber.StatusUnauthorized)
			applog.Security(c, "auth.token.invalid", nil)
			return message(c, fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(applog.IdentityKey, &id)
		return c.Next()
	}
}

// Allow runs the role policy for op against the identity RequireAuth stored.
func Allow(op services.Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := identity(c)
		if id == nil {
			return message(c, fiber.StatusUnauthorized, "authentication required")
		}
		if err := services.Authorize(op, id.Role); err != nil {
			c.Status(statusFor(err))
			applog.Security(c, "access.denied", map[string]any{"op": string(op)})
			return fail(c, "access.denied", err)
		}
		return c.Next()
	}
}

func identity(c *fiber.Ctx) *domain.Identity {
	id, _ := c.Locals(applog.IdentityKey).(*domain.Identity)
	return id
}

func bearer(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
