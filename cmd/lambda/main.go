package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/awmpietro/golang-api-surface-inference/internal/app"
	"github.com/awmpietro/golang-api-surface-inference/internal/config"
	"github.com/awmpietro/golang-api-surface-inference/internal/logging"
	"github.com/awmpietro/golang-api-surface-inference/internal/transport/lambdatransport"
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

	h := lambdatransport.NewHandler(rt.Service)

	lambda.Start(h.Handle)
}
