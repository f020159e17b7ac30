package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sweetshop/internal/domain"
	"sweetshop/internal/log"
	"sweetshop/internal/services"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in credentials
	if err := decodeJSON(c, &in); err != nil {
		return fail(c, "auth.register.fail", err)
	}
	tok, u, err := h.Auth.Register(c.UserContext(), in.Name, in.Email, in.Password)
	if err != nil {
		c.Status(statusFor(err))
		log.Security(c, "auth.register.fail", map[string]any{"email": in.Email, "reason": err.Error()})
		return fail(c, "auth.register.fail", err)
	}
	c.Status(fiber.StatusCreated)
	log.Info(c, "auth.register.success", map[string]any{"user_id": u.ID})
	return c.JSON(session{Token: tok, User: u})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in credentials
	if err := decodeJSON(c, &in); err != nil {
		return fail(c, "auth.login.fail", err)
	}
	tok, u, err := h.Auth.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		c.Status(statusFor(err))
		log.Security(c, "auth.login.fail", map[string]any{"email": in.Email})
		return fail(c, "auth.login.fail", err)
	}
	log.Info(c, "auth.login.success", map[string]any{"user_id": u.ID})
	return c.JSON(session{Token: tok, User: u})
}
