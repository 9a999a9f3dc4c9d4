// Package narrow computes the narrowed type of every binding at every node of
// a control-flow graph, in a single forward dataflow pass.
package narrow

import (
	"cmp"
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/diag"
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/internal/log"
	"github.com/cottand/tyflow/types"
	"github.com/cottand/tyflow/util"
	"github.com/hashicorp/go-set/v3"
)

var logger = log.DefaultLogger.With("section", "narrow")

const DefaultFuel = 10_000

type Options struct {
	// Fuel bounds the number of node visits of a run. Once spent, the nodes
	// still pending and everything after them get their declared types.
	// Zero means DefaultFuel
	Fuel int
}

type edgeKey struct {
	from cfg.NodeID
	edge cfg.Edge
}

type analysis struct {
	graph     *cfg.Graph
	decls     cfg.Declarations
	symbols   *cfg.Symbols
	extractor *guard.Extractor
	outcomes  map[cfg.NodeID]guard.Outcome

	rank  map[cfg.NodeID]int
	order []*cfg.Node
	preds map[cfg.NodeID][]cfg.NodeID

	entry    map[cfg.NodeID]*Environment
	edges    map[edgeKey]*Environment
	findings map[cfg.NodeID]diag.Finding
	visits   int
}

// Analyze runs the narrowing pass over g. Malformed input is reported as an
// error wrapping a *cfg.MalformedError, and no result is produced
func Analyze(g *cfg.Graph, decls cfg.Declarations, symbols *cfg.Symbols, opts Options) (*Result, error) {
	if err := cfg.Validate(g, decls); err != nil {
		return nil, err
	}
	if opts.Fuel <= 0 {
		opts.Fuel = DefaultFuel
	}
	a := &analysis{
		graph:     g,
		decls:     decls,
		symbols:   symbols,
		extractor: guard.NewExtractor(symbols),
		outcomes:  make(map[cfg.NodeID]guard.Outcome),
		order:     g.ReversePostOrder(),
		preds:     g.Preds(),
		entry:     make(map[cfg.NodeID]*Environment),
		edges:     make(map[edgeKey]*Environment),
		findings:  make(map[cfg.NodeID]diag.Finding),
	}
	a.rank = make(map[cfg.NodeID]int, len(a.order))
	for i, n := range a.order {
		a.rank[n.ID] = i
	}

	exhausted := a.run(opts.Fuel)
	return a.result(exhausted), nil
}

// run processes nodes in reverse post-order of the graph until no entry
// Environment changes. It returns whether fuel ran out first
func (a *analysis) run(fuel int) bool {
	pending := set.NewTreeSet[int](cmp.Compare[int])
	a.entry[a.graph.Entry] = NewEnvironment(a.decls)
	pending.Insert(a.rank[a.graph.Entry])

	for !pending.Empty() {
		if a.visits >= fuel {
			logger.Warn("ran out of fuel, giving up narrowing", "graph", a.graph.Name, "visits", a.visits, "pending", pending.Size())
			a.giveUp(pending)
			return true
		}
		rank := pending.Min()
		pending.Remove(rank)
		n := a.order[rank]
		a.visits++

		for _, succ := range a.visit(n) {
			pending.Insert(a.rank[succ])
		}
	}
	return false
}

// visit computes the Environment along every edge out of n, and returns the
// successors whose entry Environment changed
func (a *analysis) visit(n *cfg.Node) []cfg.NodeID {
	env := a.entry[n.ID]
	logger.Debug("visiting", "node", n.String(), "env", env.String())
	var changed []cfg.NodeID
	for _, e := range n.Succs {
		a.edges[edgeKey{from: n.ID, edge: e}] = a.transfer(n, env, e)
		joined := a.joinAt(e.To)
		if old, ok := a.entry[e.To]; ok && old.Equal(joined) {
			continue
		}
		a.entry[e.To] = joined
		changed = append(changed, e.To)
	}
	return changed
}

// joinAt returns the union of the Environments along every edge into id
// that has been traversed so far
func (a *analysis) joinAt(id cfg.NodeID) *Environment {
	var joined *Environment
	for _, pred := range a.preds[id] {
		n, _ := a.graph.Node(pred)
		for _, e := range n.Succs {
			if e.To != id {
				continue
			}
			env, ok := a.edges[edgeKey{from: pred, edge: e}]
			switch {
			case !ok:
			case joined == nil:
				joined = env
			default:
				joined = joined.join(env)
			}
		}
	}
	if id == a.graph.Entry {
		// the entry is also reached from outside the graph
		entry := NewEnvironment(a.decls)
		if joined == nil {
			return entry
		}
		return entry.join(joined)
	}
	return joined
}

// giveUp assigns declared types to every node which may still be affected
// by the nodes in pending, and computes their outgoing edges once
func (a *analysis) giveUp(pending *set.TreeSet[int]) {
	tainted := make(map[int]bool)
	var work util.Stack[int]
	work.Push(pending.Slice()...)
	for work.Len() > 0 {
		rank, _ := work.Pop()
		if tainted[rank] {
			continue
		}
		tainted[rank] = true
		for _, e := range a.order[rank].Succs {
			work.Push(a.rank[e.To])
		}
	}
	for rank, n := range a.order {
		if !tainted[rank] {
			continue
		}
		env := NewEnvironment(a.decls)
		a.entry[n.ID] = env
		for _, e := range n.Succs {
			a.edges[edgeKey{from: n.ID, edge: e}] = a.transfer(n, env, e)
		}
	}
}

func (a *analysis) outcome(n *cfg.Node) guard.Outcome {
	if o, ok := a.outcomes[n.ID]; ok {
		return o
	}
	o := a.extractor.Extract(n.Cond)
	a.outcomes[n.ID] = o
	return o
}

// transfer returns the Environment along e, given env on entry to n
func (a *analysis) transfer(n *cfg.Node, env *Environment, e cfg.Edge) *Environment {
	switch n.Kind {
	case cfg.KindDeclaration:
		if n.Expr == nil {
			return env.Reset(n.Binding)
		}
		return a.assign(n, env)
	case cfg.KindAssignment:
		return a.assign(n, env)
	case cfg.KindBranch:
		if e.Kind == cfg.True {
			return asEnvironment(a.outcome(n).True(env))
		}
		return asEnvironment(a.outcome(n).False(env))
	case cfg.KindAssert:
		return asEnvironment(a.outcome(n).True(env))
	case cfg.KindCall:
		return a.call(n, env)
	}
	return env
}

// asEnvironment recovers the Environment an Outcome was applied to. Outcomes
// only ever return the Scope they were given or one derived from it
func asEnvironment(s guard.Scope) *Environment {
	return s.(*Environment)
}

// assign narrows n.Binding to the type of n.Expr, widened unless the binding
// is frozen, or to its declared type if the assignment is invalid
func (a *analysis) assign(n *cfg.Node, env *Environment) *Environment {
	b := a.decls[n.Binding]
	if types.IsAny(b.Declared) {
		return env
	}
	if types.IsAny(n.Expr) {
		return env.Reset(b.Name)
	}
	if !types.IsAssignable(n.Expr, b.Declared) {
		if _, reported := a.findings[n.ID]; !reported {
			a.findings[n.ID] = diag.New(diag.NewInvalidAssignment{
				Node:      n.ID,
				Binding:   b.Name,
				Attempted: n.Expr,
				Declared:  b.Declared,
			})
		}
		return env.Reset(b.Name)
	}
	if b.Frozen {
		return env.narrowTo(b.Name, n.Expr)
	}
	return env.narrowTo(b.Name, types.WidenWithin(n.Expr, b.Declared))
}

// call resets the bindings the callee may have reassigned. Type predicates
// are known not to reassign anything
func (a *analysis) call(n *cfg.Node, env *Environment) *Environment {
	if _, ok := a.symbols.Predicate(n.Callee); ok {
		return env
	}
	for _, name := range a.decls.Names() {
		if a.decls[name].Captured {
			env = env.Reset(name)
		}
	}
	return env
}
