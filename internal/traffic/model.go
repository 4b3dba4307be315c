// Package traffic holds the records captured while driving a browser session:
// executor audit entries, observed network calls, pipeline interactions and
// the correlations derived from them.
package traffic

// AuditEntry is written by the action executor once per call, successful or not.
type AuditEntry struct {
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp string         `json:"timestamp"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// NetworkEntry is one observed network call. URL and Method may be empty when
// the capture was malformed; consumers skip such entries instead of failing.
type NetworkEntry struct {
	URL            string         `json:"url"`
	Method         string         `json:"method"`
	Status         int            `json:"status"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Timestamp      string         `json:"timestamp"`
	RequestType    string         `json:"request_type,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Valid reports whether the entry carries both a URL and a method.
func (n NetworkEntry) Valid() bool {
	return n.URL != "" && n.Method != ""
}

// ActionResult is what the executor returns for a top-level instruction.
type ActionResult struct {
	Success   bool           `json:"success"`
	Action    string         `json:"action"`
	Fields    map[string]any `json:"fields,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// InteractionEntry records one instruction the pipeline asked the executor to
// perform. Result is nil when the executor call itself failed.
type InteractionEntry struct {
	Instruction string        `json:"instruction"`
	Result      *ActionResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	Timestamp   string        `json:"timestamp"`
	Success     bool          `json:"success"`
}

// CorrelatedInteraction attaches the network calls attributed to one audit entry.
type CorrelatedInteraction struct {
	Source             AuditEntry     `json:"source"`
	CorrelatedRequests []NetworkEntry `json:"correlated_requests"`
	ProcessedAt        string         `json:"processed_at"`
}
