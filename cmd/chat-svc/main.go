package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"goconverse/internal/dbmysql"
	"goconverse/internal/di"
	"goconverse/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using system environment variables")
	}

	logger.Info("initializing chat service...")
	app, err := di.InitializeApplication()
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		os.Exit(1)
	}
	logger.SetLevel(app.Config.Logging.Level)

	logger.Info("running database migration...")
	if err := dbmysql.AutoMigrate(app.DB); err != nil {
		logger.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("chat service ready",
		zap.String("environment", app.Config.Server.Environment))

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down chat service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.Bus.Shutdown()

	if err := app.Mongo.Close(ctx); err != nil {
		logger.Warn("mongo disconnect failed", zap.Error(err))
	}

	logger.Info("chat service stopped")
}
