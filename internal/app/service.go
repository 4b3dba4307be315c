// internal/app/service.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint"
	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint/cache"
	"github.com/awmpietro/golang-api-surface-inference/internal/executor"
	"github.com/awmpietro/golang-api-surface-inference/internal/pipeline"
	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

var ErrDescriptionRequired = errors.New("description is required")

type RunRequest struct {
	Description string
	Domain      string
	Steps       []executor.Step
	Debug       bool
}

// ExecutorFactory returns a fresh executor for one run.
type ExecutorFactory func(steps []executor.Step) pipeline.Executor

type Cache interface {
	GetOrCompute(payload string, fn func() (cache.Result, error)) (cache.Result, error)
}

type RunObserver interface {
	ObserveRun(state string)
}

type Service struct {
	newExecutor  ExecutorFactory
	cache        Cache
	pipelineOpts []pipeline.Option
	runObserver  RunObserver
	logger       *zap.Logger
}

type Option func(*Service)

// WithPipelineOptions is applied to every pipeline the service builds.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(s *Service) {
		s.pipelineOpts = append(s.pipelineOpts, opts...)
	}
}

func WithRunObserver(o RunObserver) Option {
	return func(s *Service) {
		s.runObserver = o
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(newExecutor ExecutorFactory, c Cache, opts ...Option) *Service {
	s := &Service{
		newExecutor: newExecutor,
		cache:       c,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionFactory builds in-process executor sessions. Requests with steps get
// a journey; the rest run the description as a single instruction.
func SessionFactory(opts ...executor.Option) ExecutorFactory {
	return func(steps []executor.Step) pipeline.Executor {
		session := executor.NewSession(opts...)
		if len(steps) > 0 {
			return session.Journey(steps)
		}
		return session
	}
}

// StartRun creates a run with a private executor and walks the stage graph.
// Pipeline failures are reported on the returned view, not as an error.
func (s *Service) StartRun(ctx context.Context, req RunRequest) (pipeline.RunView, *pipeline.Trace, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return pipeline.RunView{}, nil, ErrDescriptionRequired
	}
	if s.newExecutor == nil {
		return pipeline.RunView{}, nil, pipeline.ErrNoExecutor
	}

	exec := s.newExecutor(req.Steps)
	defer exec.Reset()

	opts := append([]pipeline.Option{
		pipeline.WithLogger(s.logger),
		pipeline.WithInferencer(s),
	}, s.pipelineOpts...)
	p := pipeline.New(exec, opts...)

	run, trace := p.RunFullPipelineWithTrace(ctx, pipeline.CreateRun(desc, req.Domain))
	if s.runObserver != nil {
		s.runObserver.ObserveRun(string(run.State()))
	}

	if !req.Debug {
		trace = nil
	}
	return run.Snapshot(), trace, nil
}

// InferEndpoints memoizes inference per distinct network log.
func (s *Service) InferEndpoints(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error) {
	compute := func() (cache.Result, error) {
		table, stats := endpoint.InferWithStats(network)
		return cache.Result{Table: table, Stats: stats}, nil
	}
	if s.cache == nil {
		res, _ := compute()
		return res.Table, res.Stats, nil
	}

	key, err := json.Marshal(network)
	if err != nil {
		return nil, endpoint.Stats{}, fmt.Errorf("encode network log: %w", err)
	}

	res, err := s.cache.GetOrCompute(string(key), compute)
	if err != nil {
		return nil, endpoint.Stats{}, err
	}
	if res.Stats.Skipped > 0 {
		s.logger.Debug("skipped malformed network entries",
			zap.Int("skipped", res.Stats.Skipped),
			zap.Int("total", res.Stats.Total),
		)
	}
	return res.Table, res.Stats, nil
}
