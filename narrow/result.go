package narrow

import (
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/diag"
	"github.com/cottand/tyflow/types"
)

// Result is the outcome of a narrowing pass. It is read-only
type Result struct {
	graph    *cfg.Graph
	decls    cfg.Declarations
	entry    map[cfg.NodeID]*Environment
	edges    map[edgeKey]*Environment
	findings *diag.Findings

	// Visits is the number of nodes processed, counting repeated visits
	Visits int
	// Exhausted is set when the pass ran out of fuel. Types after the nodes
	// that were still pending are their declared types
	Exhausted bool
}

func (a *analysis) result(exhausted bool) *Result {
	var findings *diag.Findings
	for _, n := range a.graph.Nodes() {
		if f, ok := a.findings[n.ID]; ok {
			findings = findings.With(f)
		}
	}
	if findings.HasError() {
		logger.Debug("narrowing found invalid assignments", "graph", a.graph.Name, "findings", findings)
	}
	return &Result{
		graph:     a.graph,
		decls:     a.decls,
		entry:     a.entry,
		edges:     a.edges,
		findings:  findings,
		Visits:    a.visits,
		Exhausted: exhausted,
	}
}

func (r *Result) Graph() *cfg.Graph { return r.graph }

func (r *Result) Decls() cfg.Declarations { return r.decls }

// EnvAt returns the Environment on entry to node, or false if node is
// unreachable
func (r *Result) EnvAt(node cfg.NodeID) (*Environment, bool) {
	env, ok := r.entry[node]
	return env, ok
}

// TypeAt returns the narrowed type of binding on entry to node
func (r *Result) TypeAt(node cfg.NodeID, binding string) (types.Type, bool) {
	env, ok := r.entry[node]
	if !ok {
		return nil, false
	}
	return env.Lookup(binding)
}

// EdgeEnv returns the Environment along edge, which leaves from. It returns
// false if from is unreachable
func (r *Result) EdgeEnv(from cfg.NodeID, edge cfg.Edge) (*Environment, bool) {
	env, ok := r.edges[edgeKey{from: from, edge: edge}]
	return env, ok
}

// Reachable is true if there is a path from the entry of the graph to node
func (r *Result) Reachable(node cfg.NodeID) bool {
	_, ok := r.entry[node]
	return ok
}

// Findings returns the invalid assignments found, in graph order
func (r *Result) Findings() *diag.Findings {
	return r.findings
}
