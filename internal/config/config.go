package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "sweetshop-dev-secret"

type Config struct {
	Port          string
	DBDriver      string
	DBDSN         string
	LogFile       string
	JWTSecret     string
	TokenTTL      time.Duration
	AdminName     string
	AdminEmail    string
	AdminPassword string
	RedisAddr     string
	GRPCPort      string
	CORSOrigins   string
}

func Load() Config {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] could not read .env: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driver := strings.ToLower(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "sweetshop.db"
	} // sqlite file in project root
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./sweetshop.log"
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Printf("[config] JWT_SECRET not set, using development secret")
		secret = devJWTSecret
	}
	ttl := 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			ttl = d
		} else {
			log.Printf("[config] ignoring bad TOKEN_TTL=%q", raw)
		}
	}
	adminName := os.Getenv("ADMIN_NAME")
	if adminName == "" {
		adminName = "Admin"
	}
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		origins = "*"
	}

	cfg := Config{
		Port:          port,
		DBDriver:      driver,
		DBDSN:         dsn,
		LogFile:       logFile,
		JWTSecret:     secret,
		TokenTTL:      ttl,
		AdminName:     adminName,
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		GRPCPort:      os.Getenv("GRPC_PORT"),
		CORSOrigins:   origins,
	}
	log.Printf("[config] PORT=%s DB_DRIVER=%s LOG_FILE=%s TOKEN_TTL=%s REDIS_ADDR=%s GRPC_PORT=%s",
		cfg.Port, cfg.DBDriver, cfg.LogFile, cfg.TokenTTL, cfg.RedisAddr, cfg.GRPCPort)
	return cfg
}
