package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"sweetshop/internal/config"
	"sweetshop/internal/health"
	"sweetshop/internal/http/handlers"
	"sweetshop/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	var logFile *os.File
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			logFile = f
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()
	if err != nil {
		log.Printf("[fatal] %v", err)
	}
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or a server fails. Every resource it
// opens is released before it returns.
func run(ctx context.Context, cfg config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := repos.SeedAdmin(ctx, db, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	} else {
		log.Printf("[warn] ADMIN_EMAIL/ADMIN_PASSWORD unset; no admin account provisioned")
	}

	// Shared limiter counters when Redis is configured
	var storage fiber.Storage
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[warn] redis %s unreachable, rate limits stay in memory: %v", cfg.RedisAddr, err)
			rdb.Close()
		} else {
			rs := repos.NewRedisStorage(rdb)
			defer rs.Close()
			storage = rs
			log.Printf("[redis] rate limiter storage -> %s", cfg.RedisAddr)
		}
	}

	app := handlers.NewApp(handlers.NewDeps(db, cfg), handlers.AppOptions{
		CORSOrigins: cfg.CORSOrigins,
		Storage:     storage,
		AccessLog:   true,
	})

	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		checker := health.NewChecker(db, 10*time.Second)
		grpcServer := health.NewServer(checker)
		go checker.Run(ctx)
		go health.Serve(grpcServer, lis)
		defer grpcServer.GracefulStop()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(":" + cfg.Port)
		stop()
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	default:
	}
	return nil
}
