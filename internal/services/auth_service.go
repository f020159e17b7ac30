package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sweetshop/internal/domain"
	"sweetshop/internal/repos"
	"sweetshop/internal/validate"
)

type AuthService struct {
	Users  *repos.UserRepo
	Tokens *TokenService
}

// Register always creates a USER account. Admins are only ever seeded.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, *domain.User, error) {
	name, ok := validate.Name(name)
	if !ok {
		return "", nil, fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}
	email, ok = validate.Email(email)
	if !ok {
		return "", nil, fmt.Errorf("%w: a valid email is required", ErrInvalidRegistration)
	}
	if !validate.Password(password) {
		return "", nil, fmt.Errorf("%w: password must be 6 to 72 characters", ErrInvalidRegistration)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Hash:      string(hash),
		Role:      domain.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repos.ErrDuplicateEmail) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}
	tok, err := s.Tokens.Issue(u)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email, ok := validate.Email(email)
	if !ok {
		return "", nil, ErrBadCreds
	}
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return "", nil, ErrBadCreds
	}
	tok, err := s.Tokens.Issue(u)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}
