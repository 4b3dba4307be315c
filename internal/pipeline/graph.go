// internal/pipeline/graph.go
package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/awalterschulze/gographviz"
	"github.com/awalterschulze/gographviz/ast"

	"github.com/awmpietro/golang-api-surface-inference/internal/eval"
)

const (
	StageNone    = ""
	StageExecute = "execute"
	StageCapture = "capture"
	StageAnalyze = "analyze"
)

// DefaultGraphDOT runs execution then capture/correlation.
const DefaultGraphDOT = `digraph Pipeline {
  start
  execute [stage="execute"]
  capture [stage="capture"]
  done
  start -> execute -> capture -> done
}`

// AnalysisGraphDOT additionally recomputes the endpoint table after capture.
const AnalysisGraphDOT = `digraph Pipeline {
  start
  execute [stage="execute"]
  capture [stage="capture"]
  analyze [stage="analyze"]
  done
  start -> execute -> capture
  capture -> analyze [cond="network_count > 0"]
  capture -> done
  analyze -> done
}`

// Graph is a compiled stage sequence. Walks begin at Start.
type Graph struct {
	Start string
	Nodes map[string]*Node
}

type Node struct {
	ID       string
	Stage    string
	Outgoing []Edge
}

type Edge struct {
	To   string
	Cond string

	compiled *eval.Compiled
}

var (
	defaultGraph  = sync.OnceValue(func() *Graph { return MustCompile(DefaultGraphDOT) })
	analysisGraph = sync.OnceValue(func() *Graph { return MustCompile(AnalysisGraphDOT) })
)

// DefaultGraph returns the shared compiled DefaultGraphDOT.
func DefaultGraph() *Graph { return defaultGraph() }

// AnalysisGraph returns the shared compiled AnalysisGraphDOT.
func AnalysisGraph() *Graph { return analysisGraph() }

func MustCompile(dot string) *Graph {
	g, err := Compile(dot)
	if err != nil {
		panic(err)
	}
	return g
}

// Compile parses a DOT digraph into a stage graph. Nodes may carry
// stage="execute|capture|analyze"; edges may carry a cond guard. Edge order in
// the source is the evaluation order.
func Compile(dot string) (*Graph, error) {
	tree, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}

	g := &Graph{
		Start: "start",
		Nodes: map[string]*Node{},
	}

	node := func(id string) *Node {
		n, ok := g.Nodes[id]
		if !ok {
			n = &Node{ID: id}
			g.Nodes[id] = n
		}
		return n
	}

	type pendingEdge struct {
		from, to, cond string
	}
	var edges []pendingEdge

	for _, stmt := range tree.StmtList {
		switch s := stmt.(type) {
		case *ast.NodeStmt:
			id := unquote(s.NodeID.GetID().String())
			stage := attr(s.Attrs, "stage")
			if !knownStage(stage) {
				return nil, fmt.Errorf("node %q has unknown stage %q", id, stage)
			}
			n := node(id)
			if stage != "" {
				n.Stage = stage
			}
		case *ast.EdgeStmt:
			cond := attr(s.Attrs, "cond")
			from := s.Source
			for _, rh := range s.EdgeRHS {
				if !from.IsNode() || !rh.Destination.IsNode() {
					return nil, fmt.Errorf("subgraph edges are not supported")
				}
				edges = append(edges, pendingEdge{
					from: unquote(from.GetID().String()),
					to:   unquote(rh.Destination.GetID().String()),
					cond: cond,
				})
				from = rh.Destination
			}
		case *ast.SubGraph:
			return nil, fmt.Errorf("subgraphs are not supported")
		}
	}

	for _, e := range edges {
		node(e.from)
		node(e.to)
	}

	if _, ok := g.Nodes[g.Start]; !ok {
		return nil, fmt.Errorf("missing %q node", g.Start)
	}

	for _, e := range edges {
		compiled, err := eval.Compile(e.cond)
		if err != nil {
			return nil, fmt.Errorf("invalid cond on edge %s->%s: %w", e.from, e.to, err)
		}
		from := g.Nodes[e.from]
		from.Outgoing = append(from.Outgoing, Edge{
			To:       e.to,
			Cond:     strings.TrimSpace(e.cond),
			compiled: compiled,
		})
	}

	return g, nil
}

// Stages lists the stage names reachable in walk order when every guard passes.
func (g *Graph) Stages() []string {
	var out []string
	seen := map[string]bool{}
	current := g.Start
	for !seen[current] {
		seen[current] = true
		n := g.Nodes[current]
		if n == nil {
			break
		}
		if n.Stage != "" {
			out = append(out, n.Stage)
		}
		if len(n.Outgoing) == 0 {
			break
		}
		current = n.Outgoing[0].To
	}
	return out
}

func knownStage(stage string) bool {
	switch stage {
	case StageNone, StageExecute, StageCapture, StageAnalyze:
		return true
	}
	return false
}

// attr reads an attribute from the last attribute list that sets it.
func attr(list ast.AttrList, key string) string {
	return unquote(strings.TrimSpace(list.GetMap()[key]))
}

func unquote(val string) string {
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	return val
}
