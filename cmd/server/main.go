package main

import (
	"context"
	"ctchen222/user-service/internal/api/controller"
	"ctchen222/user-service/internal/api/repository"
	"ctchen222/user-service/internal/api/router"
	"ctchen222/user-service/internal/api/service"
	"ctchen222/user-service/internal/auth"
	"ctchen222/user-service/internal/config"
	"ctchen222/user-service/internal/db"
	"ctchen222/user-service/internal/logger"
	"ctchen222/user-service/internal/ratelimit"
	"ctchen222/user-service/internal/server"
	"ctchen222/user-service/internal/telemetry"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", os.Getenv("USERS_API_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("user-service: %v", err)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()

	sink, err := logger.NewFileSink(cfg.Log.Dir)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger.Init(cfg.Log, sink)
	if err := sink.Dump("startup", startupSummary(cfg)); err != nil {
		slog.Warn("Failed to write startup summary", "error", err)
	}

	// Initialize the database
	DB, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer DB.Close()
	if err := db.InitializeSchema(ctx, DB); err != nil {
		return err
	}

	// Rate limiting is shared through Redis when it is configured
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if cfg.Redis.Addr != "" {
			rdb, err := db.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer rdb.Close()
			limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		}
	}

	tokens, err := auth.NewTokenService(cfg.Token)
	if err != nil {
		return err
	}

	// Create repositories, services and controllers
	userRepo := repository.NewUserRepository(DB)
	userService := service.NewUserService(userRepo, tokens)
	userController := controller.NewUserController(userService, controller.WithDebug(cfg.Server.Mode == gin.DebugMode))
	dispatcher := router.NewDispatcher(cfg.API, userController, tokens)

	gin.SetMode(cfg.Server.Mode)
	srv := server.NewServer(dispatcher.Handle, limiter)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Engine(),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server started", "addr", cfg.Server.Addr, "mode", cfg.Server.Mode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return err
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server exiting")
	return nil
}

// startupSummary lists the effective settings worth finding in the log
// file. Secrets and DSNs are left out.
func startupSummary(cfg *config.Config) string {
	return fmt.Sprintf("addr=%s mode=%s api=/%s/%s/%s db=%s redis=%t rate_limit=%t(%d/%s) token=%s ttl=%s nbf=%s telemetry=%t",
		cfg.Server.Addr, cfg.Server.Mode,
		cfg.API.Mount, cfg.API.Version, cfg.API.Resource,
		cfg.Database.Driver, cfg.Redis.Addr != "",
		cfg.RateLimit.Enabled, cfg.RateLimit.Requests, cfg.RateLimit.Window,
		cfg.Token.Algorithm, cfg.Token.TTL, cfg.Token.NotBefore,
		cfg.Telemetry.Enabled)
}
