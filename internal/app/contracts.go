package app

import (
	"context"

	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint"
	"github.com/awmpietro/golang-api-surface-inference/internal/pipeline"
	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

// RunService is what transports need to drive a pipeline run.
type RunService interface {
	StartRun(ctx context.Context, req RunRequest) (pipeline.RunView, *pipeline.Trace, error)
}

// EndpointService infers endpoint patterns from an already captured log.
type EndpointService interface {
	InferEndpoints(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error)
}

type API interface {
	RunService
	EndpointService
}
