package cfg

import (
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// MalformedError is a violation of the contract between the front end and
// the analysis. Node is the offending node, or Binding the offending
// declaration when no node is involved
type MalformedError struct {
	Node    NodeID
	Binding string
	Reason  string
}

func (e *MalformedError) Error() string {
	if e.Binding != "" {
		return fmt.Sprintf("malformed input at binding %q: %s", e.Binding, e.Reason)
	}
	return fmt.Sprintf("malformed input at node %s: %s", e.Node, e.Reason)
}

func malformed(node NodeID, format string, args ...any) error {
	return errors.WithStack(&MalformedError{Node: node, Reason: fmt.Sprintf(format, args...)})
}

// Validate checks g and decls against the front-end contract. Every
// violation found is reported, combined into a single error.
// errors.As with a *MalformedError target finds the first of them
func Validate(g *Graph, decls Declarations) error {
	if g == nil {
		return errors.New("malformed input: no graph")
	}
	var err error
	for _, name := range decls.Names() {
		if decls[name].Declared == nil {
			err = multierr.Append(err, errors.WithStack(&MalformedError{Binding: name, Reason: "binding has no declared type"}))
		}
	}
	if _, ok := g.Node(g.Entry); !ok {
		err = multierr.Append(err, malformed(g.Entry, "entry node does not exist"))
	}
	seen := make(map[NodeID]bool, len(g.nodes))
	for _, n := range g.nodes {
		if seen[n.ID] {
			err = multierr.Append(err, malformed(n.ID, "duplicate node id"))
			continue
		}
		seen[n.ID] = true
		err = multierr.Append(err, validateNode(g, decls, n))
	}
	return err
}

func validateNode(g *Graph, decls Declarations, n *Node) error {
	var err error
	for _, e := range n.Succs {
		if _, ok := g.Node(e.To); !ok {
			err = multierr.Append(err, malformed(n.ID, "edge to node %s, which does not exist", e.To))
		}
		if e.Kind != Unconditional && n.Kind != KindBranch {
			err = multierr.Append(err, malformed(n.ID, "%s edge leaving a %s node", e.Kind, n.Kind))
		}
	}
	declared := func(binding string) {
		if _, ok := decls[binding]; !ok {
			err = multierr.Append(err, malformed(n.ID, "binding %q has no declared type", binding))
		}
	}
	switch n.Kind {
	case KindDeclaration:
		declared(n.Binding)
	case KindAssignment:
		declared(n.Binding)
		if n.Expr == nil {
			err = multierr.Append(err, malformed(n.ID, "assignment without an expression type"))
		}
	case KindBranch, KindAssert:
		if n.Cond == nil {
			err = multierr.Append(err, malformed(n.ID, "%s without a condition", n.Kind))
			break
		}
		for _, subject := range n.Cond.Subjects() {
			declared(subject)
		}
		if n.Kind == KindBranch {
			err = multierr.Append(err, validateBranchEdges(n))
		}
	case KindCall:
		if n.Callee == "" {
			err = multierr.Append(err, malformed(n.ID, "call without a callee"))
		}
	case KindReturn:
		if len(n.Succs) > 0 {
			err = multierr.Append(err, malformed(n.ID, "return with successors"))
		}
	default:
		err = multierr.Append(err, malformed(n.ID, "unknown node kind %d", n.Kind))
	}
	return err
}

func validateBranchEdges(n *Node) error {
	counts := make(map[EdgeKind]int, 4)
	for _, e := range n.Succs {
		counts[e.Kind]++
	}
	switch {
	case counts[True] != 1:
		return malformed(n.ID, "branch needs exactly one true edge, has %d", counts[True])
	case counts[False]+counts[Fallthrough] != 1:
		return malformed(n.ID, "branch needs exactly one false or fallthrough edge, has %d", counts[False]+counts[Fallthrough])
	case counts[Unconditional] > 0:
		return malformed(n.ID, "branch with an unconditional edge")
	}
	return nil
}
