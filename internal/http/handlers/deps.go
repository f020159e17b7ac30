package handlers

import (
	"github.com/jmoiron/sqlx"

	"sweetshop/internal/config"
	"sweetshop/internal/repos"
	"sweetshop/internal/services"
)

type Deps struct {
	SweetHandler *SweetHandler
	AuthHandler  *AuthHandler
	Tokens       *services.TokenService
}

func NewDeps(db *sqlx.DB, cfg config.Config) *Deps {
	sweetRepo := repos.NewSweetRepo(db)
	userRepo := repos.NewUserRepo(db)

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	invSvc := services.NewInventoryService(sweetRepo)
	authSvc := &services.AuthService{Users: userRepo, Tokens: tokens}

	return &Deps{
		SweetHandler: &SweetHandler{Inv: invSvc},
		AuthHandler:  &AuthHandler{Auth: authSvc},
		Tokens:       tokens,
	}
}
