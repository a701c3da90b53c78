package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"goconverse/internal/config"
	"goconverse/internal/logger"
	"goconverse/internal/media"
	"goconverse/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using system environment variables")
	}
	cfg := config.Load()
	logger.SetLevel(cfg.Logging.Level)

	mongoClient, err := storage.NewMongoConnection(cfg)
	if err != nil {
		logger.Error("mongo connection failed", zap.Error(err))
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())

	server := media.NewHTTPServer(storage.NewGridFSStore(mongoClient))

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Info("media server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, server); err != nil {
		logger.Error("media server stopped", zap.Error(err))
		os.Exit(1)
	}
}
