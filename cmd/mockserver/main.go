package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/contender-app/battle-client/internal/mockserver"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	addr := os.Getenv("MOCKSERVER_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	ctx := context.Background()
	h := mockserver.NewHub(ctx, logger.Named("hub"))
	handler := mockserver.SetupRoutes(h, logger)

	logger.Info("mock battle server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
