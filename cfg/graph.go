// Package cfg holds the control-flow graph handed over by a front end, along
// with the declared types of its bindings and the symbols its guards refer to.
package cfg

import (
	"fmt"
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/types"
	"strconv"
)

type NodeID int

func (id NodeID) String() string { return "n" + strconv.Itoa(int(id)) }

type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	// KindDeclaration introduces Binding, initialised with Expr if not nil
	KindDeclaration
	// KindAssignment is `Binding = <expression of type Expr>`
	KindAssignment
	// KindBranch tests Cond and continues along its true and false edges
	KindBranch
	// KindCall calls Callee, which may mutate any captured binding
	KindCall
	KindReturn
	// KindAssert is an assertion such as `x!` used as a statement: Cond holds
	// on every outgoing edge
	KindAssert
)

var nodeKindNames = map[NodeKind]string{
	KindDeclaration: "declaration",
	KindAssignment:  "assignment",
	KindBranch:      "branch",
	KindCall:        "call",
	KindReturn:      "return",
	KindAssert:      "assert",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "invalid"
}

func nodeKindNamed(name string) (NodeKind, bool) {
	for k, n := range nodeKindNames {
		if n == name {
			return k, true
		}
	}
	return KindInvalid, false
}

type EdgeKind uint8

const (
	Unconditional EdgeKind = iota
	True
	False
	// Fallthrough leaves the last arm of a multi-way branch when no arm matched.
	// It refines like False
	Fallthrough
)

var edgeKindNames = [...]string{
	Unconditional: "unconditional",
	True:          "true",
	False:         "false",
	Fallthrough:   "fallthrough",
}

func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return fmt.Sprintf("EdgeKind(%d)", k)
}

func edgeKindNamed(name string) (EdgeKind, bool) {
	for k, n := range edgeKindNames {
		if n == name {
			return EdgeKind(k), true
		}
	}
	return 0, false
}

type Edge struct {
	To   NodeID
	Kind EdgeKind
}

func (e Edge) String() string { return fmt.Sprintf("-%s-> %s", e.Kind, e.To) }

// Node is a single statement of the graph. Which payload fields are set
// depends on Kind
type Node struct {
	ID      NodeID
	Kind    NodeKind
	Binding string
	Expr    types.Type
	Cond    guard.Cond
	Callee  string
	Succs   []Edge
}

// To adds an edge of kind towards id and returns n, so that graphs can be
// built inline
func (n *Node) To(id NodeID, kind EdgeKind) *Node {
	n.Succs = append(n.Succs, Edge{To: id, Kind: kind})
	return n
}

// Edge returns the first outgoing edge of kind
func (n *Node) Edge(kind EdgeKind) (Edge, bool) {
	for _, e := range n.Succs {
		if e.Kind == kind {
			return e, true
		}
	}
	return Edge{}, false
}

func (n *Node) String() string {
	switch n.Kind {
	case KindDeclaration:
		if n.Expr == nil {
			return fmt.Sprintf("%s: let %s", n.ID, n.Binding)
		}
		return fmt.Sprintf("%s: let %s = <%s>", n.ID, n.Binding, n.Expr)
	case KindAssignment:
		return fmt.Sprintf("%s: %s = <%s>", n.ID, n.Binding, n.Expr)
	case KindBranch:
		return fmt.Sprintf("%s: if %s", n.ID, n.Cond)
	case KindAssert:
		return fmt.Sprintf("%s: assert %s", n.ID, n.Cond)
	case KindCall:
		return fmt.Sprintf("%s: %s()", n.ID, n.Callee)
	}
	return fmt.Sprintf("%s: %s", n.ID, n.Kind)
}

// Graph is a control-flow graph. Nodes keep the order they were added in
type Graph struct {
	Name  string
	Entry NodeID
	nodes []*Node
	index map[NodeID]*Node
}

func NewGraph(name string, entry NodeID) *Graph {
	return &Graph{
		Name:  name,
		Entry: entry,
		index: make(map[NodeID]*Node),
	}
}

// Add appends nodes to g. When two nodes share an ID the first one is
// returned by Node, and Validate reports the second
func (g *Graph) Add(nodes ...*Node) *Graph {
	for _, n := range nodes {
		g.nodes = append(g.nodes, n)
		if _, ok := g.index[n.ID]; !ok {
			g.index[n.ID] = n
		}
	}
	return g
}

func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Preds returns the predecessors of every node, in graph order
func (g *Graph) Preds() map[NodeID][]NodeID {
	preds := make(map[NodeID][]NodeID, len(g.nodes))
	for _, n := range g.nodes {
		for _, e := range n.Succs {
			preds[e.To] = append(preds[e.To], n.ID)
		}
	}
	return preds
}

// ReversePostOrder returns the nodes of g in reverse post-order, starting
// from g.Entry. Unreachable nodes are excluded
func (g *Graph) ReversePostOrder() []*Node {
	entry, ok := g.Node(g.Entry)
	if !ok {
		return nil
	}
	visited := make(map[NodeID]bool, len(g.nodes))
	var order []*Node

	var dfs func(n *Node)
	dfs = func(n *Node) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true
		for _, e := range n.Succs {
			if succ, ok := g.Node(e.To); ok {
				dfs(succ)
			}
		}
		order = append(order, n)
	}
	dfs(entry)

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
