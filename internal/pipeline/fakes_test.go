package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

type fakeExecutor struct {
	mu      sync.Mutex
	execute func(ctx context.Context, instruction string) (traffic.ActionResult, error)
	audit   []traffic.AuditEntry
	network []traffic.NetworkEntry
	calls   []string
	resets  int
}

func (f *fakeExecutor) Execute(ctx context.Context, instruction string) (traffic.ActionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, instruction)
	fn := f.execute
	f.mu.Unlock()
	if fn == nil {
		return traffic.ActionResult{Success: true, Action: instruction}, nil
	}
	return fn(ctx, instruction)
}

func (f *fakeExecutor) DrainAuditLog() []traffic.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.audit
	f.audit = nil
	return out
}

func (f *fakeExecutor) DrainNetworkLog() []traffic.NetworkEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.network
	f.network = nil
	return out
}

func (f *fakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit, f.network = nil, nil
	f.resets++
}

func (f *fakeExecutor) record(audit []traffic.AuditEntry, network []traffic.NetworkEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, audit...)
	f.network = append(f.network, network...)
}

type spyStageObserver struct {
	mu    sync.Mutex
	nodes []string
}

func (s *spyStageObserver) ObserveStageLatency(node string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, node)
}

func (s *spyStageObserver) Nodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.nodes...)
}

type spySkipObserver struct{ total int }

func (s *spySkipObserver) ObserveSkipped(n int) { s.total += n }

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ts(sec int) string {
	return traffic.FormatTimestamp(fixedNow.Add(time.Duration(sec) * time.Second))
}

// loginExecutor records one audit entry and two network calls per Execute.
func loginExecutor() *fakeExecutor {
	f := &fakeExecutor{}
	f.execute = func(_ context.Context, instruction string) (traffic.ActionResult, error) {
		f.record(
			[]traffic.AuditEntry{{Action: "login", Timestamp: ts(1), Success: true}},
			[]traffic.NetworkEntry{
				{URL: "https://app.test/api/login", Method: "POST", Status: 200, Timestamp: ts(1)},
				{URL: "https://app.test/api/users/42", Method: "GET", Status: 200, Timestamp: ts(2)},
			},
		)
		return traffic.ActionResult{Success: true, Action: "login", Timestamp: ts(1)}, nil
	}
	return f
}

// brokenAuditExecutor panics when its audit log is drained.
type brokenAuditExecutor struct {
	*fakeExecutor
}

func (b brokenAuditExecutor) DrainAuditLog() []traffic.AuditEntry {
	panic("audit buffer corrupted")
}
