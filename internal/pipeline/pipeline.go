// Package pipeline threads a Run record through execution, capture and
// analysis stages in the order given by a compiled stage graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/awmpietro/golang-api-surface-inference/internal/correlate"
	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint"
	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

const DefaultMaxSteps = 100

var ErrNoExecutor = errors.New("no action executor configured")

// Inferencer recomputes the endpoint table for the analysis stage.
type Inferencer interface {
	InferEndpoints(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error)
}

type InferencerFunc func(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error)

func (f InferencerFunc) InferEndpoints(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error) {
	return f(network)
}

var pureInferencer = InferencerFunc(func(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error) {
	table, stats := endpoint.InferWithStats(network)
	return table, stats, nil
})

// InferEndpoints builds the endpoint table for a network log. It does not
// depend on any pipeline state.
func InferEndpoints(networkLog []traffic.NetworkEntry) endpoint.Table {
	return endpoint.Infer(networkLog)
}

type Pipeline struct {
	executor     Executor
	correlator   correlate.Correlator
	inferencer   Inferencer
	graph        *Graph
	maxSteps     int
	execTimeout  time.Duration
	logger       *zap.Logger
	observer     StageLatencyObserver
	skipObserver SkipObserver
	now          func() time.Time
}

type Option func(*Pipeline)

func WithCorrelator(c correlate.Correlator) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.correlator = c
		}
	}
}

func WithInferencer(i Inferencer) Option {
	return func(p *Pipeline) {
		if i != nil {
			p.inferencer = i
		}
	}
}

func WithGraph(g *Graph) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.graph = g
		}
	}
}

func WithMaxSteps(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxSteps = n
		}
	}
}

// WithExecTimeout bounds each executor call. A timeout counts as an executor
// failure.
func WithExecTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.execTimeout = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithStageLatencyObserver(o StageLatencyObserver) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

func WithSkipObserver(o SkipObserver) Option {
	return func(p *Pipeline) {
		p.skipObserver = o
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func New(executor Executor, opts ...Option) *Pipeline {
	p := &Pipeline{
		executor:   executor,
		correlator: &correlate.Nearest{},
		inferencer: pureInferencer,
		graph:      DefaultGraph(),
		maxSteps:   DefaultMaxSteps,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunExecutionStage asks the executor to perform the run description once and
// appends the resulting interaction and captured logs. Executor errors, panics
// and timeouts are recorded on the interaction and never escalate.
func (p *Pipeline) RunExecutionStage(ctx context.Context, run *Run) *Run {
	if run == nil {
		return nil
	}
	run.setState(StateExecuting)

	entry, ok := p.execute(ctx, run.Description())
	run.AppendInteraction(entry)
	if ok {
		run.recordIteration()
	} else {
		p.logger.Warn("executor call failed",
			zap.String("run_id", run.ID()),
			zap.String("stage", StageExecute),
			zap.String("error", entry.Error),
		)
	}

	audit, network := p.drain()
	run.AppendAudit(audit...)
	run.AppendNetwork(network...)

	return run
}

func (p *Pipeline) execute(ctx context.Context, instruction string) (entry traffic.InteractionEntry, ok bool) {
	entry = traffic.InteractionEntry{
		Instruction: instruction,
		Timestamp:   traffic.FormatTimestamp(p.now()),
	}
	if p.executor == nil {
		entry.Error = ErrNoExecutor.Error()
		return entry, false
	}

	if p.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.execTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			entry.Result = nil
			entry.Success = false
			entry.Error = fmt.Sprintf("executor panic: %v", r)
			ok = false
		}
	}()

	res, err := p.executor.Execute(ctx, instruction)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		entry.Error = err.Error()
		return entry, false
	}

	entry.Result = &res
	entry.Success = res.Success
	entry.Error = res.Error
	return entry, true
}

func (p *Pipeline) drain() (audit []traffic.AuditEntry, network []traffic.NetworkEntry) {
	if p.executor == nil {
		return nil, nil
	}
	audit = drainOne(p, "audit", p.executor.DrainAuditLog)
	network = drainOne(p, "network", p.executor.DrainNetworkLog)
	return audit, network
}

// drainOne recovers a panicking drain and yields nil for that log only.
func drainOne[T any](p *Pipeline, log string, fn func() []T) (out []T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("executor drain panicked", zap.String("log", log), zap.Any("panic", r))
			out = nil
		}
	}()
	return fn()
}

// RunCaptureStage correlates every audit entry against the full network log
// and replaces the correlated log. On an internal fault the correlated log is
// emptied and the stage still completes.
func (p *Pipeline) RunCaptureStage(ctx context.Context, run *Run) *Run {
	if run == nil {
		return nil
	}
	run.setState(StateCapturing)

	correlated, err := p.correlateAll(run.AuditLog(), run.NetworkLog())
	if err != nil {
		p.logger.Error("correlation failed",
			zap.String("run_id", run.ID()),
			zap.String("stage", StageCapture),
			zap.Error(err),
		)
		correlated = []traffic.CorrelatedInteraction{}
	}
	run.ReplaceCorrelated(correlated)

	return run
}

func (p *Pipeline) correlateAll(audit []traffic.AuditEntry, network []traffic.NetworkEntry) (out []traffic.CorrelatedInteraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("correlator panic: %v", r)
		}
	}()

	processedAt := traffic.FormatTimestamp(p.now())
	out = make([]traffic.CorrelatedInteraction, 0, len(audit))
	for _, entry := range audit {
		requests := p.correlator.Correlate(entry, network)
		if requests == nil {
			requests = []traffic.NetworkEntry{}
		}
		out = append(out, traffic.CorrelatedInteraction{
			Source:             entry,
			CorrelatedRequests: requests,
			ProcessedAt:        processedAt,
		})
	}
	return out, nil
}

// RunAnalysisStage recomputes the endpoint table from the network log. On an
// internal fault the table is emptied and the stage still completes.
func (p *Pipeline) RunAnalysisStage(ctx context.Context, run *Run) *Run {
	if run == nil {
		return nil
	}
	run.setState(StateAnalyzing)

	table, stats, err := p.infer(run.NetworkLog())
	if err != nil {
		p.logger.Error("endpoint inference failed",
			zap.String("run_id", run.ID()),
			zap.String("stage", StageAnalyze),
			zap.Error(err),
		)
		table = endpoint.Table{}
	} else if stats.Skipped > 0 {
		p.logger.Info("skipped malformed network entries",
			zap.String("run_id", run.ID()),
			zap.Int("skipped", stats.Skipped),
			zap.Int("total", stats.Total),
		)
	}
	if p.skipObserver != nil && stats.Skipped > 0 {
		p.skipObserver.ObserveSkipped(stats.Skipped)
	}
	run.ReplaceEndpoints(table)

	return run
}

func (p *Pipeline) infer(network []traffic.NetworkEntry) (table endpoint.Table, stats endpoint.Stats, err error) {
	defer func() {
		if r := recover(); r != nil {
			table, stats, err = nil, endpoint.Stats{}, fmt.Errorf("inferencer panic: %v", r)
		}
	}()
	return p.inferencer.InferEndpoints(network)
}

// RunFullPipeline walks the stage graph. It never panics; failures escaping
// the walk are recorded on the run, which is always returned.
func (p *Pipeline) RunFullPipeline(ctx context.Context, run *Run) *Run {
	out, _ := p.RunFullPipelineWithTrace(ctx, run)
	return out
}

func (p *Pipeline) RunFullPipelineWithTrace(ctx context.Context, run *Run) (out *Run, trace *Trace) {
	if run == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	trace = &Trace{StartNode: p.graph.Start}
	defer func() {
		if r := recover(); r != nil {
			trace.Terminated = TerminatedPanic
			run.Fail(fmt.Sprintf("pipeline panic: %v", r))
			p.logger.Error("pipeline panicked", zap.String("run_id", run.ID()), zap.Any("panic", r))
		}
		out = run
	}()

	if err := p.walk(ctx, run, trace); err != nil {
		run.Fail(err.Error())
		p.logger.Error("pipeline failed", zap.String("run_id", run.ID()), zap.Error(err))
		return run, trace
	}

	run.setState(StateDone)
	p.logger.Info("pipeline finished",
		zap.String("run_id", run.ID()),
		zap.Int("iterations", run.IterationCount()),
		zap.Strings("path", trace.VisitedPath),
	)
	return run, trace
}

func (p *Pipeline) runStage(ctx context.Context, stage string, run *Run) {
	switch stage {
	case StageExecute:
		p.RunExecutionStage(ctx, run)
	case StageCapture:
		p.RunCaptureStage(ctx, run)
	case StageAnalyze:
		p.RunAnalysisStage(ctx, run)
	}
}

func (p *Pipeline) observeStageLatency(node string, d time.Duration) {
	if p.observer == nil {
		return
	}
	p.observer.ObserveStageLatency(node, d)
}
