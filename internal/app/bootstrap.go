package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/awmpietro/golang-api-surface-inference/internal/config"
	"github.com/awmpietro/golang-api-surface-inference/internal/correlate"
	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint/cache"
	"github.com/awmpietro/golang-api-surface-inference/internal/executor"
	"github.com/awmpietro/golang-api-surface-inference/internal/metrics"
	"github.com/awmpietro/golang-api-surface-inference/internal/pipeline"
)

const MetricsNamespace = "apisurface"

// Runtime is a fully wired service. Close flushes the stage observer.
type Runtime struct {
	Service *Service
	Metrics *metrics.Collector
	Close   func()
}

func Bootstrap(cfg config.Runtime, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	graph, err := stageGraph(cfg)
	if err != nil {
		return nil, err
	}

	correlator, err := correlate.NewNearest(cfg.CorrelationWindow, cfg.CorrelationFilter)
	if err != nil {
		return nil, fmt.Errorf("correlation filter: %w", err)
	}

	collector := metrics.NewCollector(MetricsNamespace, logger)
	stageObserver := pipeline.NewAsyncStageLatencyObserver(
		pipeline.MultiStageObserver{pipeline.NewZapStageLogger(logger), collector},
		cfg.ObsBuffer,
	)

	svc := NewService(
		SessionFactory(executor.WithBaseURL(cfg.ExecutorBaseURL), executor.WithLogger(logger)),
		cache.NewInMemory(cfg.CacheMaxItems),
		WithLogger(logger),
		WithRunObserver(collector),
		WithPipelineOptions(
			pipeline.WithGraph(graph),
			pipeline.WithCorrelator(correlator),
			pipeline.WithMaxSteps(cfg.MaxSteps),
			pipeline.WithExecTimeout(cfg.ExecTimeout),
			pipeline.WithStageLatencyObserver(stageObserver),
			pipeline.WithSkipObserver(collector),
		),
	)

	return &Runtime{
		Service: svc,
		Metrics: collector,
		Close: func() {
			stageObserver.Close()
			if dropped := stageObserver.Dropped(); dropped > 0 {
				logger.Warn("stage latency events dropped", zap.Uint64("dropped", dropped))
			}
		},
	}, nil
}

func stageGraph(cfg config.Runtime) (*pipeline.Graph, error) {
	dot, err := cfg.GraphDOT()
	if err != nil {
		return nil, err
	}
	if dot != "" {
		g, err := pipeline.Compile(dot)
		if err != nil {
			return nil, fmt.Errorf("stage graph %s: %w", cfg.GraphFile, err)
		}
		return g, nil
	}
	if cfg.WithAnalysis {
		return pipeline.AnalysisGraph(), nil
	}
	return pipeline.DefaultGraph(), nil
}
