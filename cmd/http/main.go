package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/awmpietro/golang-api-surface-inference/internal/app"
	"github.com/awmpietro/golang-api-surface-inference/internal/config"
	"github.com/awmpietro/golang-api-surface-inference/internal/logging"
	"github.com/awmpietro/golang-api-surface-inference/internal/transport/httptransport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	rt, err := app.Bootstrap(cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	defer rt.Close()

	h := httptransport.NewHandler(rt.Service,
		httptransport.WithLogger(logger),
		httptransport.WithRequestRecorder(rt.Metrics),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Routes(rt.Metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
