package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/leapdrone/controller/pkg/config"
	customlog "github.com/leapdrone/controller/pkg/log"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	configDir := os.Getenv("LEAPDRONE_CONFIG_DIR")
	if configDir == "" {
		configDir = "./config"
	}

	cfg, err := config.LoadBootstrapConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bootstrap config: %v\n", err)
		os.Exit(1)
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid PORT %q: %v\n", port, err)
			os.Exit(1)
		}
		cfg.Server.HTTPPort = p
	}

	logger, err := customlog.NewRotatingLogger(cfg.Logging.Level, cfg.Logging.LogPath, customlog.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("Loaded bootstrap config from %s", configDir)

	ctrl, err := newController(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize controller: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Leapdrone Controller",
		ErrorHandler: customErrorHandler,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	ctrl.routes(app)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.start(ctx); err != nil {
		logger.Fatalf("Failed to start controller: %v", err)
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		logger.Infof("Server starting on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Infof("Received %s, shutting down", sig)

	cancel()
	ctrl.shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Infof("Controller exited properly")
}

// customErrorHandler renders every error as JSON.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
