package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// walk visits graph nodes from the start node, running each node's stage and
// then following the first outgoing edge whose guard holds.
func (p *Pipeline) walk(ctx context.Context, run *Run, trace *Trace) error {
	g := p.graph
	current := g.Start

	for range p.maxSteps {
		if err := ctx.Err(); err != nil {
			trace.Terminated = TerminatedCancelled
			return fmt.Errorf("pipeline cancelled before node %q: %w", current, err)
		}

		started := time.Now()
		node := g.Nodes[current]
		if node == nil {
			trace.Terminated = TerminatedError
			return fmt.Errorf("unknown node %q", current)
		}

		trace.VisitedPath = append(trace.VisitedPath, current)
		step := StageStep{NodeID: current, Stage: node.Stage}

		p.runStage(ctx, node.Stage, run)

		finish := func() {
			d := time.Since(started)
			step.DurationMicros = d.Microseconds()
			trace.Steps = append(trace.Steps, step)
			p.observeStageLatency(current, d)
		}

		if len(node.Outgoing) == 0 {
			finish()
			trace.Terminated = TerminatedEnd
			return nil
		}

		vars := run.vars()
		next := ""
		var errs []string
		for _, edge := range node.Outgoing {
			ok, err := edge.compiled.Run(vars)
			et := EdgeTrace{To: edge.To, Cond: edge.Cond, Matched: err == nil && ok}
			if err != nil {
				et.Error = err.Error()
				errs = append(errs, fmt.Sprintf("%s -> %s (%q): %v", current, edge.To, edge.Cond, err))
			}
			step.Edges = append(step.Edges, et)
			if et.Matched {
				next = edge.To
				break
			}
		}
		step.ChosenNext = next
		finish()

		if next == "" {
			if len(errs) > 0 {
				trace.Terminated = TerminatedError
				return fmt.Errorf("no edge matched at node %q: %s", current, strings.Join(errs, "; "))
			}
			trace.Terminated = TerminatedNoMatch
			return nil
		}
		current = next
	}

	trace.Terminated = TerminatedMaxSteps
	return fmt.Errorf("maxSteps exceeded (possible cycle in stage graph)")
}
