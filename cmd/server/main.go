package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"casecite-backend/app"
	"casecite-backend/config"
	"casecite-backend/handlers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(nil)
	if err != nil {
		panic(err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	for _, w := range cfg.Validate() {
		logger.Warn("Config adjusted", zap.String("detail", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize search pipeline", zap.Error(err))
	}
	defer a.Close()

	authEnabled := cfg.AuthEnabled
	if authEnabled && a.Clients == nil {
		logger.Warn("AUTH_ENABLED set without a database, API key auth disabled")
		authEnabled = false
	}

	go a.PurgeRateCounters(ctx, 10*time.Minute, time.Hour)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(handlers.RouterConfig{
		Search:       handlers.NewSearchHandler(a.Search, logger),
		Clients:      a.Clients,
		AuthEnabled:  authEnabled,
		Limiter:      a.Limiter,
		DefaultLimit: cfg.DefaultClientLimit,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
	logger.Info("Server stopped")
}
