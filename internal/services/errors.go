package services

import "errors"

// Domain errors. Handlers map these to HTTP status codes with errors.Is;
// anything else is a store failure and surfaces as a generic 500.
var (
	ErrForbidden       = errors.New("insufficient role for this operation")
	ErrInvalidID       = errors.New("invalid sweet id")
	ErrNotFound        = errors.New("sweet not found")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrOutOfStock      = errors.New("sweet is out of stock")
	ErrInvalidSweet    = errors.New("invalid sweet")
	ErrInvalidFilter   = errors.New("invalid search filter")

	ErrBadCreds            = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrInvalidToken        = errors.New("invalid or expired token")
)
