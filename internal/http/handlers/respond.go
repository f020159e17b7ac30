package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "sweetshop/internal/log"
	"sweetshop/internal/services"
)

const genericFailure = "Something went wrong. Please try again."

// errMalformedBody marks request bodies that are not valid JSON for the
// target shape.
var errMalformedBody = errors.New("malformed request body")

var statusOf = []struct {
	err    error
	status int
}{
	{services.ErrInvalidToken, fiber.StatusUnauthorized},
	{services.ErrBadCreds, fiber.StatusUnauthorized},
	{services.ErrForbidden, fiber.StatusForbidden},
	{services.ErrNotFound, fiber.StatusNotFound},
	{services.ErrEmailTaken, fiber.StatusConflict},
	{services.ErrInvalidID, fiber.StatusBadRequest},
	{services.ErrInvalidQuantity, fiber.StatusBadRequest},
	{services.ErrOutOfStock, fiber.StatusBadRequest},
	{services.ErrInvalidSweet, fiber.StatusBadRequest},
	{services.ErrInvalidFilter, fiber.StatusBadRequest},
	{services.ErrInvalidRegistration, fiber.StatusBadRequest},
	{errMalformedBody, fiber.StatusBadRequest},
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// fail maps a domain error onto its status and {"message"} body. Anything
// unrecognized is logged under action and surfaced as a generic 500.
func fail(c *fiber.Ctx, action string, err error) error {
	status := statusFor(err)
	if status != fiber.StatusInternalServerError {
		return message(c, status, err.Error())
	}
	c.Status(status)
	applog.Error(c, action, err, nil)
	return message(c, status, genericFailure)
}

func statusFor(err error) int {
	for _, m := range statusOf {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler is the app-wide fallback for errors no handler mapped,
// including recovered panics and fiber's own routing errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return message(c, fe.Code, fe.Message)
	}
	c.Status(fiber.StatusInternalServerError)
	applog.Error(c, "server.error", err, nil)
	return message(c, fiber.StatusInternalServerError, genericFailure)
}
