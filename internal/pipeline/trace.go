package pipeline

// Termination reasons reported in Trace.Terminated.
const (
	TerminatedEnd       = "end"
	TerminatedNoMatch   = "no_edge_matched"
	TerminatedError     = "error"
	TerminatedMaxSteps  = "max_steps"
	TerminatedCancelled = "cancelled"
	TerminatedPanic     = "panic"
)

type Trace struct {
	StartNode   string      `json:"start_node"`
	VisitedPath []string    `json:"visited_path"`
	Steps       []StageStep `json:"steps"`
	Terminated  string      `json:"terminated"`
}

type StageStep struct {
	NodeID         string      `json:"node_id"`
	Stage          string      `json:"stage,omitempty"`
	DurationMicros int64       `json:"duration_micros"`
	ChosenNext     string      `json:"chosen_next,omitempty"`
	Edges          []EdgeTrace `json:"edges,omitempty"`
}

type EdgeTrace struct {
	To      string `json:"to"`
	Cond    string `json:"cond"`
	Matched bool   `json:"matched"`
	Error   string `json:"error,omitempty"`
}
