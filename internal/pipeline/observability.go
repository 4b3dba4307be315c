package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StageLatencyObserver receives the wall time spent on each visited graph node.
type StageLatencyObserver interface {
	ObserveStageLatency(node string, duration time.Duration)
}

// SkipObserver receives the number of network entries the analysis stage
// could not turn into endpoint patterns.
type SkipObserver interface {
	ObserveSkipped(count int)
}

type ZapStageLogger struct {
	logger *zap.Logger
}

func NewZapStageLogger(logger *zap.Logger) *ZapStageLogger {
	return &ZapStageLogger{logger: logger}
}

func (l *ZapStageLogger) ObserveStageLatency(node string, duration time.Duration) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("pipeline_stage_latency",
		zap.String("node", node),
		zap.Float64("duration_ms", float64(duration.Microseconds())/1000.0),
	)
}

// MultiStageObserver fans one observation out to several observers.
type MultiStageObserver []StageLatencyObserver

func (m MultiStageObserver) ObserveStageLatency(node string, duration time.Duration) {
	for _, o := range m {
		if o != nil {
			o.ObserveStageLatency(node, duration)
		}
	}
}

// AsyncStageLatencyObserver hands observations to a background goroutine and
// drops them when the buffer is full so a slow sink never stalls a run.
type AsyncStageLatencyObserver struct {
	next    StageLatencyObserver
	events  chan stageLatencyEvent
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type stageLatencyEvent struct {
	node     string
	duration time.Duration
}

func NewAsyncStageLatencyObserver(next StageLatencyObserver, buffer int) *AsyncStageLatencyObserver {
	if buffer <= 0 {
		buffer = 1
	}

	o := &AsyncStageLatencyObserver{
		next:   next,
		events: make(chan stageLatencyEvent, buffer),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.events {
			if o.next != nil {
				o.next.ObserveStageLatency(ev.node, ev.duration)
			}
		}
	}()

	return o
}

func (o *AsyncStageLatencyObserver) ObserveStageLatency(node string, duration time.Duration) {
	if o == nil {
		return
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- stageLatencyEvent{node: node, duration: duration}:
	default:
		o.dropped.Add(1)
	}
}

func (o *AsyncStageLatencyObserver) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

// Close stops accepting events and waits until buffered ones are delivered.
func (o *AsyncStageLatencyObserver) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
		o.wg.Wait()
	})
}
