// Package exhaust decides whether the arms of each multi-way branch handle
// every member of the union they test.
//
// A multi-way branch is a chain of branch nodes, each linked to the next arm
// by its false edge. The last arm has a fallthrough edge instead, taken when
// no arm matched: the branch is exhaustive when the tested bindings have type
// never along it
package exhaust

import (
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/diag"
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/internal/log"
	"github.com/cottand/tyflow/narrow"
	"github.com/cottand/tyflow/types"
	"slices"
)

var logger = log.DefaultLogger.With("section", "exhaust")

type Status uint8

const (
	Exhaustive Status = iota
	NonExhaustive
)

func (s Status) String() string {
	if s == Exhaustive {
		return "exhaustive"
	}
	return "non-exhaustive"
}

type Verdict struct {
	// Branch is the first arm of the multi-way branch
	Branch cfg.NodeID
	// Fallthrough is the last arm, where the fallthrough edge leaves from
	Fallthrough cfg.NodeID
	Status      Status
	// Subjects are the bindings tested by the branch
	Subjects []string
	// Missing are the members of the subjects' types no arm handles, in the
	// order they appear in those types
	Missing []diag.Missing
}

// Finding returns the NonExhaustive finding for v, or nil if v is exhaustive
func (v Verdict) Finding() diag.Finding {
	if v.Status == Exhaustive {
		return nil
	}
	return diag.New(diag.NewNonExhaustive{
		Node:     v.Branch,
		Subjects: v.Subjects,
		Missing:  v.Missing,
	})
}

// Check returns a Verdict for every multi-way branch of res's graph, in
// graph order of their first arm
func Check(res *narrow.Result, symbols *cfg.Symbols) []Verdict {
	g := res.Graph()
	preds := g.Preds()
	position := make(map[cfg.NodeID]int, len(g.Nodes()))
	for i, n := range g.Nodes() {
		position[n.ID] = i
	}

	var verdicts []Verdict
	for _, n := range g.Nodes() {
		if n.Kind != cfg.KindBranch {
			continue
		}
		edge, ok := n.Edge(cfg.Fallthrough)
		if !ok {
			continue
		}
		arms, subjects := chain(g, preds, n)
		if len(subjects) == 0 {
			logger.Debug("multi-way branch tests no binding, skipping", "graph", g.Name, "branch", n.ID)
			continue
		}
		v := verdict(res, symbols, arms, subjects, edge)
		logger.Debug("checked branch", "graph", g.Name, "branch", v.Branch, "status", v.Status, "missing", len(v.Missing))
		verdicts = append(verdicts, v)
	}
	slices.SortStableFunc(verdicts, func(a, b Verdict) int {
		return position[a.Branch] - position[b.Branch]
	})
	return verdicts
}

// chain returns the arms of the multi-way branch ending in last, first arm
// first, along with the bindings every one of them tests. Earlier branches
// linked by false edges but testing other bindings are not part of it
func chain(g *cfg.Graph, preds map[cfg.NodeID][]cfg.NodeID, last *cfg.Node) ([]*cfg.Node, []string) {
	arms := []*cfg.Node{last}
	subjects := last.Cond.Subjects()
	seen := map[cfg.NodeID]bool{last.ID: true}
	for current := last; ; {
		prev := previousArm(g, preds, current)
		if prev == nil || seen[prev.ID] {
			break
		}
		prevSubjects := prev.Cond.Subjects()
		shared := slices.DeleteFunc(slices.Clone(subjects), func(s string) bool {
			return !slices.Contains(prevSubjects, s)
		})
		if len(shared) == 0 {
			break
		}
		seen[prev.ID] = true
		arms = append(arms, prev)
		subjects = shared
		current = prev
	}
	slices.Reverse(arms)
	return arms, subjects
}

// previousArm returns the branch node whose false edge leads to arm
func previousArm(g *cfg.Graph, preds map[cfg.NodeID][]cfg.NodeID, arm *cfg.Node) *cfg.Node {
	for _, id := range preds[arm.ID] {
		pred, _ := g.Node(id)
		if pred.Kind != cfg.KindBranch {
			continue
		}
		if e, ok := pred.Edge(cfg.False); ok && e.To == arm.ID {
			return pred
		}
	}
	return nil
}

func verdict(res *narrow.Result, symbols *cfg.Symbols, arms []*cfg.Node, subjects []string, edge cfg.Edge) Verdict {
	last := arms[len(arms)-1]
	v := Verdict{
		Branch:      arms[0].ID,
		Fallthrough: last.ID,
		Status:      Exhaustive,
		Subjects:    subjects,
	}
	env, ok := res.EdgeEnv(last.ID, edge)
	if !ok {
		// no value ever reaches the fallthrough edge
		return v
	}
	for _, subject := range v.Subjects {
		residual, ok := env.Lookup(subject)
		if !ok || types.IsNever(residual) || types.IsAny(residual) {
			// any opts out of checking, so it has no members to miss
			continue
		}
		property := testedProperty(arms, subject)
		for _, m := range types.Members(residual) {
			v.Missing = append(v.Missing, diag.Missing{
				Subject:      subject,
				Discriminant: discriminantOf(m, property, symbols),
				Type:         m,
			})
		}
	}
	if len(v.Missing) > 0 {
		v.Status = NonExhaustive
	}
	return v
}

// testedProperty returns the property the arms compare against a literal
// to tell the members of subject apart, if any
func testedProperty(arms []*cfg.Node, subject string) string {
	for _, arm := range arms {
		if property := discriminantIn(arm.Cond, subject); property != "" {
			return property
		}
	}
	return ""
}

func discriminantIn(c guard.Cond, subject string) string {
	switch c := c.(type) {
	case guard.Discriminant:
		if c.Subject == subject {
			return c.Property
		}
	case guard.And:
		if p := discriminantIn(c.Left, subject); p != "" {
			return p
		}
		return discriminantIn(c.Right, subject)
	case guard.Or:
		if p := discriminantIn(c.Left, subject); p != "" {
			return p
		}
		return discriminantIn(c.Right, subject)
	case guard.Not:
		return discriminantIn(c.Inner, subject)
	}
	return ""
}

// discriminantOf returns the literal value m holds in property, or in the
// first declared discriminant it has when property is empty
func discriminantOf(m types.Type, property string, symbols *cfg.Symbols) string {
	obj, ok := m.(types.Object)
	if !ok {
		return ""
	}
	candidates := []string{property}
	if property == "" && symbols != nil {
		candidates = symbols.Discriminants
	}
	for _, p := range candidates {
		f, ok := obj.Field(p)
		if !ok {
			continue
		}
		if lit, ok := f.Type.(types.Literal); ok {
			return lit.Value
		}
	}
	return ""
}
