// internal/pipeline/run.go
package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint"
	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

type State string

const (
	StateCreated   State = "created"
	StateExecuting State = "executing"
	StateCapturing State = "capturing"
	StateAnalyzing State = "analyzing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Run is the record threaded through every stage of one pipeline execution.
// Identity fields are fixed at creation. Audit, network and interaction logs
// only grow; the correlated log and endpoint table are replaced wholesale.
type Run struct {
	mu sync.RWMutex

	id          string
	description string
	domain      string
	createdAt   time.Time

	state          State
	iterationCount int
	auditLog       []traffic.AuditEntry
	networkLog     []traffic.NetworkEntry
	interactionLog []traffic.InteractionEntry
	correlatedLog  []traffic.CorrelatedInteraction
	endpointTable  endpoint.Table
	err            string
}

// CreateRun returns an empty record in the created state.
func CreateRun(description, domain string) *Run {
	return &Run{
		id:             uuid.NewString(),
		description:    description,
		domain:         domain,
		createdAt:      time.Now().UTC(),
		state:          StateCreated,
		auditLog:       []traffic.AuditEntry{},
		networkLog:     []traffic.NetworkEntry{},
		interactionLog: []traffic.InteractionEntry{},
		correlatedLog:  []traffic.CorrelatedInteraction{},
		endpointTable:  endpoint.Table{},
	}
}

func (r *Run) ID() string          { return r.id }
func (r *Run) Description() string { return r.description }
func (r *Run) Domain() string      { return r.domain }

func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Run) IterationCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.iterationCount
}

// Err returns the terminal failure message, empty when the run did not fail.
func (r *Run) Err() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Run) AuditLog() []traffic.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]traffic.AuditEntry{}, r.auditLog...)
}

func (r *Run) NetworkLog() []traffic.NetworkEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]traffic.NetworkEntry{}, r.networkLog...)
}

func (r *Run) InteractionLog() []traffic.InteractionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]traffic.InteractionEntry{}, r.interactionLog...)
}

func (r *Run) CorrelatedLog() []traffic.CorrelatedInteraction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]traffic.CorrelatedInteraction{}, r.correlatedLog...)
}

func (r *Run) EndpointTable() endpoint.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpointTable.Clone()
}

func (r *Run) AppendAudit(entries ...traffic.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditLog = append(r.auditLog, entries...)
}

func (r *Run) AppendNetwork(entries ...traffic.NetworkEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networkLog = append(r.networkLog, entries...)
}

// ReplaceCorrelated swaps in the output of a correlation pass.
func (r *Run) ReplaceCorrelated(entries []traffic.CorrelatedInteraction) {
	if entries == nil {
		entries = []traffic.CorrelatedInteraction{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.correlatedLog = entries
}

// ReplaceEndpoints swaps in the output of an inference pass.
func (r *Run) ReplaceEndpoints(table endpoint.Table) {
	if table == nil {
		table = endpoint.Table{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpointTable = table.Clone()
}

// Fail marks the run as failed. The first message wins.
func (r *Run) Fail(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == "" {
		r.err = msg
	}
	r.state = StateFailed
}

func (r *Run) AppendInteraction(entries ...traffic.InteractionEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactionLog = append(r.interactionLog, entries...)
}

// recordIteration is called by the execution stage once per executor call
// that returned without error.
func (r *Run) recordIteration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.iterationCount++
}

// setState moves the run forward. Failed is terminal.
func (r *Run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateFailed {
		return
	}
	r.state = s
}

// vars exposes counters to stage-graph guards.
func (r *Run) vars() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lastSuccess := false
	if n := len(r.interactionLog); n > 0 {
		lastSuccess = r.interactionLog[n-1].Success
	}
	return map[string]any{
		"iteration_count":   r.iterationCount,
		"audit_count":       len(r.auditLog),
		"network_count":     len(r.networkLog),
		"interaction_count": len(r.interactionLog),
		"last_success":      lastSuccess,
	}
}

// RunView is the serializable form of a Run.
type RunView struct {
	ID             string                          `json:"id"`
	Description    string                          `json:"description"`
	Domain         string                          `json:"domain"`
	CreatedAt      time.Time                       `json:"created_at"`
	State          State                           `json:"state"`
	IterationCount int                             `json:"iteration_count"`
	AuditLog       []traffic.AuditEntry            `json:"audit_log"`
	NetworkLog     []traffic.NetworkEntry          `json:"network_log"`
	InteractionLog []traffic.InteractionEntry      `json:"interaction_log"`
	CorrelatedLog  []traffic.CorrelatedInteraction `json:"correlated_log"`
	Endpoints      []endpoint.Pattern              `json:"endpoints"`
	Error          string                          `json:"error,omitempty"`
}

func (r *Run) Snapshot() RunView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RunView{
		ID:             r.id,
		Description:    r.description,
		Domain:         r.domain,
		CreatedAt:      r.createdAt,
		State:          r.state,
		IterationCount: r.iterationCount,
		AuditLog:       append([]traffic.AuditEntry{}, r.auditLog...),
		NetworkLog:     append([]traffic.NetworkEntry{}, r.networkLog...),
		InteractionLog: append([]traffic.InteractionEntry{}, r.interactionLog...),
		CorrelatedLog:  append([]traffic.CorrelatedInteraction{}, r.correlatedLog...),
		Endpoints:      r.endpointTable.Patterns(),
		Error:          r.err,
	}
}
