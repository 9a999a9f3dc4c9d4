package exhaust

import (
	"fmt"
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/diag"
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/narrow"
	"github.com/cottand/tyflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"slices"
	"testing"
)

func shape(kind string, fields ...types.Field) types.Object {
	return types.NewObject(append(fields, types.Field{Name: "kind", Type: types.StringLit(kind)})...)
}

var (
	circle   = shape("circle", types.Field{Name: "radius", Type: types.Number})
	square   = shape("square", types.Field{Name: "sideLength", Type: types.Number})
	triangle = shape("triangle", types.Field{Name: "base", Type: types.Number}, types.Field{Name: "height", Type: types.Number})
)

// switchOn builds `switch (subject.kind) { case kinds[0]: ... }` with no
// default arm. Arms are nodes 1..len(kinds), arm bodies 101.., and every arm
// and the fallthrough edge continue to node 1000
func switchOn(subject string, kinds ...string) *cfg.Graph {
	g := cfg.NewGraph("switch", 1)
	for i, kind := range kinds {
		id := cfg.NodeID(i + 1)
		arm := &cfg.Node{
			ID:   id,
			Kind: cfg.KindBranch,
			Cond: guard.Discriminant{Subject: subject, Property: "kind", Value: types.StringLit(kind)},
		}
		arm.To(100+id, cfg.True)
		if i == len(kinds)-1 {
			arm.To(1000, cfg.Fallthrough)
		} else {
			arm.To(id+1, cfg.False)
		}
		g.Add(arm, (&cfg.Node{ID: 100 + id, Kind: cfg.KindCall, Callee: "draw"}).To(1000, cfg.Unconditional))
	}
	return g.Add(&cfg.Node{ID: 1000, Kind: cfg.KindReturn})
}

func check(t *testing.T, g *cfg.Graph, decls cfg.Declarations, symbols *cfg.Symbols) []Verdict {
	t.Helper()
	res, err := narrow.Analyze(g, decls, symbols, narrow.Options{})
	require.NoError(t, err)
	return Check(res, symbols)
}

func TestExhaustiveSwitch(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.UnionOf(circle, square)})
	g := switchOn("shape", "circle", "square")
	verdicts := check(t, g, decls, nil)

	require.Len(t, verdicts, 1)
	v := verdicts[0]
	assert.Equal(t, Exhaustive, v.Status)
	assert.Equal(t, cfg.NodeID(1), v.Branch)
	assert.Equal(t, cfg.NodeID(2), v.Fallthrough)
	assert.Equal(t, []string{"shape"}, v.Subjects)
	assert.Empty(t, v.Missing)
	assert.Nil(t, v.Finding())

	res, err := narrow.Analyze(g, decls, nil, narrow.Options{})
	require.NoError(t, err)
	last, _ := g.Node(2)
	fallthroughEdge, _ := last.Edge(cfg.Fallthrough)
	env, _ := res.EdgeEnv(2, fallthroughEdge)
	residual, _ := env.Lookup("shape")
	assert.True(t, types.IsNever(residual))
}

func TestNonExhaustiveSwitch(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.UnionOf(circle, square)})
	verdicts := check(t, switchOn("shape", "circle"), decls, nil)

	require.Len(t, verdicts, 1)
	v := verdicts[0]
	assert.Equal(t, NonExhaustive, v.Status)
	assert.Equal(t, []diag.Missing{{Subject: "shape", Discriminant: "square", Type: square}}, v.Missing)

	finding := v.Finding()
	require.NotNil(t, finding)
	assert.Equal(t, diag.NonExhaustive, finding.Code())
	assert.Equal(t, cfg.NodeID(1), finding.At())
}

func TestCompletenessLaw(t *testing.T) {
	members := []types.Type{circle, square, triangle}
	kinds := []string{"circle", "square", "triangle"}
	decls := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.UnionOf(members...)})

	verdicts := check(t, switchOn("shape", kinds...), decls, nil)
	require.Len(t, verdicts, 1)
	assert.Equal(t, Exhaustive, verdicts[0].Status)

	for i, removed := range kinds {
		t.Run(fmt.Sprint("without ", removed), func(t *testing.T) {
			remaining := slices.Delete(slices.Clone(kinds), i, i+1)
			verdicts := check(t, switchOn("shape", remaining...), decls, nil)
			require.Len(t, verdicts, 1)
			v := verdicts[0]
			assert.Equal(t, NonExhaustive, v.Status)
			require.Len(t, v.Missing, 1)
			assert.Equal(t, removed, v.Missing[0].Discriminant)
			assert.True(t, types.Equal(members[i], v.Missing[0].Type))
		})
	}
}

func TestNewMemberSurfaces(t *testing.T) {
	g := switchOn("shape", "circle", "square")
	before := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.UnionOf(circle, square)})
	after := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.UnionOf(circle, square, triangle)})

	assert.Equal(t, Exhaustive, check(t, g, before, nil)[0].Status)
	v := check(t, g, after, nil)[0]
	assert.Equal(t, NonExhaustive, v.Status)
	assert.Equal(t, []diag.Missing{{Subject: "shape", Discriminant: "triangle", Type: triangle}}, v.Missing)
}

func TestIfElseChain(t *testing.T) {
	decls := cfg.Declare(
		cfg.Binding{Name: "x", Declared: types.UnionOf(types.String, types.Number, types.Null)},
		cfg.Binding{Name: "flag", Declared: types.Boolean},
	)
	// if (flag) {} else if (typeof x === "string") {} else if (typeof x === "number") {}
	g := cfg.NewGraph("chain", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindBranch, Cond: guard.Truthy{Subject: "flag"}}).To(9, cfg.True).To(2, cfg.False),
		(&cfg.Node{ID: 2, Kind: cfg.KindBranch, Cond: guard.TypeOf{Subject: "x", Kind: "string"}}).To(9, cfg.True).To(3, cfg.False),
		(&cfg.Node{ID: 3, Kind: cfg.KindBranch, Cond: guard.TypeOf{Subject: "x", Kind: "number"}}).To(9, cfg.True).To(9, cfg.Fallthrough),
		&cfg.Node{ID: 9, Kind: cfg.KindReturn},
	)
	verdicts := check(t, g, decls, nil)
	require.Len(t, verdicts, 1)
	v := verdicts[0]
	assert.Equal(t, cfg.NodeID(2), v.Branch)
	assert.Equal(t, []string{"x"}, v.Subjects)
	assert.Equal(t, []diag.Missing{{Subject: "x", Type: types.Null}}, v.Missing)
}

func TestDeclaredDiscriminantLabelsMissing(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.UnionOf(circle, square)})
	symbols := &cfg.Symbols{Discriminants: []string{"kind"}}
	g := cfg.NewGraph("in", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindBranch, Cond: guard.In{Subject: "shape", Property: "radius"}}).To(2, cfg.True).To(2, cfg.Fallthrough),
		&cfg.Node{ID: 2, Kind: cfg.KindReturn},
	)
	v := check(t, g, decls, symbols)[0]
	assert.Equal(t, []diag.Missing{{Subject: "shape", Discriminant: "square", Type: square}}, v.Missing)

	v = check(t, g, decls, nil)[0]
	assert.Equal(t, []diag.Missing{{Subject: "shape", Type: square}}, v.Missing)
}

func TestUnreachableFallthroughIsExhaustive(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.UnionOf(circle, square)})
	g := switchOn("shape", "circle")
	g.Entry = 0
	g.Add(&cfg.Node{ID: 0, Kind: cfg.KindReturn})

	verdicts := check(t, g, decls, nil)
	require.Len(t, verdicts, 1)
	assert.Equal(t, Exhaustive, verdicts[0].Status)
}

func TestAnyBindingIsNeverMissingMembers(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "shape", Declared: types.Any})
	verdicts := check(t, switchOn("shape", "circle", "square"), decls, nil)

	require.Len(t, verdicts, 1)
	assert.Equal(t, Exhaustive, verdicts[0].Status)
	assert.Empty(t, verdicts[0].Missing)
	assert.Nil(t, verdicts[0].Finding())
}
