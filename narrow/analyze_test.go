package narrow

import (
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/diag"
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func typeAt(t *testing.T, res *Result, node cfg.NodeID, binding string) types.Type {
	t.Helper()
	typ, ok := res.TypeAt(node, binding)
	require.True(t, ok, "no type for %s at %s", binding, node)
	return typ
}

func assertType(t *testing.T, expected types.Type, res *Result, node cfg.NodeID, binding string) {
	t.Helper()
	actual := typeAt(t, res, node, binding)
	assert.True(t, types.Equal(expected, actual), "%s at %s: expected %s, got %s", binding, node, expected, actual)
}

func TestReassignmentAfterWidening(t *testing.T) {
	declared := types.Widen(types.UnionOf(types.NumberLit(10), types.StringLit("hello world!")))
	require.True(t, types.Equal(types.UnionOf(types.Number, types.String), declared))

	decls := cfg.Declare(cfg.Binding{Name: "x", Declared: declared})
	g := cfg.NewGraph("reassign", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindDeclaration, Binding: "x", Expr: types.NumberLit(10)}).To(2, cfg.Unconditional),
		(&cfg.Node{ID: 2, Kind: cfg.KindAssignment, Binding: "x", Expr: types.StringLit("hello world!")}).To(3, cfg.Unconditional),
		&cfg.Node{ID: 3, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, nil, Options{})
	require.NoError(t, err)

	assertType(t, declared, res, 1, "x")
	assertType(t, types.Number, res, 2, "x")
	assertType(t, types.String, res, 3, "x")
	assert.False(t, res.Findings().HasError())
}

func TestAssignment(t *testing.T) {
	methods := types.UnionOf(types.StringLit("GET"), types.StringLit("POST"))
	testCases := []struct {
		name     string
		binding  cfg.Binding
		expr     types.Type
		expected types.Type
		invalid  bool
	}{
		{
			name:     "literal widens",
			binding:  cfg.Binding{Declared: types.UnionOf(types.String, types.Null)},
			expr:     types.StringLit("a"),
			expected: types.String,
		},
		{
			name:     "frozen literal stays",
			binding:  cfg.Binding{Declared: types.UnionOf(types.String, types.Null), Frozen: true},
			expr:     types.StringLit("a"),
			expected: types.StringLit("a"),
		},
		{
			name:     "literal widens only as far as declared",
			binding:  cfg.Binding{Declared: methods},
			expr:     types.StringLit("GET"),
			expected: types.StringLit("GET"),
		},
		{
			name: "object fields widen",
			binding: cfg.Binding{Declared: types.NewObject(
				types.Field{Name: "n", Type: types.Number},
			)},
			expr:     types.NewObject(types.Field{Name: "n", Type: types.NumberLit(1)}),
			expected: types.NewObject(types.Field{Name: "n", Type: types.Number}),
		},
		{
			name: "object fields widen one at a time",
			binding: cfg.Binding{Declared: types.UnionOf(
				types.NewObject(types.Field{Name: "kind", Type: types.StringLit("circle")}, types.Field{Name: "radius", Type: types.Number}),
				types.NewObject(types.Field{Name: "kind", Type: types.StringLit("square")}, types.Field{Name: "side", Type: types.Number}),
			)},
			expr: types.NewObject(types.Field{Name: "kind", Type: types.StringLit("circle")}, types.Field{Name: "radius", Type: types.NumberLit(5)}),
			expected: types.NewObject(
				types.Field{Name: "kind", Type: types.StringLit("circle")},
				types.Field{Name: "radius", Type: types.Number},
			),
		},
		{
			name:     "invalid assignment keeps declared",
			binding:  cfg.Binding{Declared: types.String},
			expr:     types.Boolean,
			expected: types.String,
			invalid:  true,
		},
		{
			name:     "any expression resets to declared",
			binding:  cfg.Binding{Declared: types.UnionOf(types.String, types.Number)},
			expr:     types.Any,
			expected: types.UnionOf(types.String, types.Number),
		},
		{
			name:     "any binding is never narrowed",
			binding:  cfg.Binding{Declared: types.Any},
			expr:     types.StringLit("a"),
			expected: types.Any,
		},
		{
			name:     "unknown binding takes anything",
			binding:  cfg.Binding{Declared: types.Unknown},
			expr:     types.BoolLit(true),
			expected: types.Boolean,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			testCase.binding.Name = "x"
			decls := cfg.Declare(testCase.binding)
			g := cfg.NewGraph("assign", 1).Add(
				(&cfg.Node{ID: 1, Kind: cfg.KindAssignment, Binding: "x", Expr: testCase.expr}).To(2, cfg.Unconditional),
				&cfg.Node{ID: 2, Kind: cfg.KindReturn},
			)
			res, err := Analyze(g, decls, nil, Options{})
			require.NoError(t, err)
			assertType(t, testCase.expected, res, 2, "x")

			if !testCase.invalid {
				assert.False(t, res.Findings().HasError())
				return
			}
			require.Equal(t, 1, res.Findings().Len())
			finding := res.Findings().All()[0]
			assert.Equal(t, diag.InvalidAssignment, finding.Code())
			assert.Equal(t, cfg.NodeID(1), finding.At())
			invalid, ok := finding.(diag.NewInvalidAssignment)
			require.True(t, ok)
			assert.Equal(t, testCase.expr, invalid.Attempted)
			assert.Equal(t, testCase.binding.Declared, invalid.Declared)
		})
	}
}

// diamond assigns left on the true edge of a branch on c and right on the
// false edge, and joins both at node 4
func diamond(left, right types.Type) *cfg.Graph {
	return cfg.NewGraph("diamond", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindBranch, Cond: guard.Truthy{Subject: "c"}}).To(2, cfg.True).To(3, cfg.False),
		(&cfg.Node{ID: 2, Kind: cfg.KindAssignment, Binding: "x", Expr: left}).To(4, cfg.Unconditional),
		(&cfg.Node{ID: 3, Kind: cfg.KindAssignment, Binding: "x", Expr: right}).To(4, cfg.Unconditional),
		&cfg.Node{ID: 4, Kind: cfg.KindReturn},
	)
}

func TestJoinIsUpperBound(t *testing.T) {
	circle := types.NewObject(
		types.Field{Name: "kind", Type: types.StringLit("circle")},
		types.Field{Name: "radius", Type: types.Number},
	)
	all := []types.Type{
		types.String, types.StringLit("a"), types.NumberLit(1), types.Null, types.Never,
		circle, types.UnionOf(types.Boolean, types.Undefined), types.Function,
	}
	decls := cfg.Declare(
		cfg.Binding{Name: "x", Declared: types.Unknown, Frozen: true},
		cfg.Binding{Name: "c", Declared: types.Boolean},
	)
	for _, left := range all {
		for _, right := range all {
			res, err := Analyze(diamond(left, right), decls, nil, Options{})
			require.NoError(t, err)

			merged := typeAt(t, res, 4, "x")
			assert.True(t, types.IsAssignable(left, merged), "%s is not assignable to join %s", left, merged)
			assert.True(t, types.IsAssignable(right, merged), "%s is not assignable to join %s", right, merged)
			assert.True(t, types.Equal(types.UnionOf(left, right), merged))
		}
	}
}

func TestBranchNarrowsEachEdge(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "x", Declared: types.UnionOf(types.String, types.Number)})
	g := cfg.NewGraph("typeof", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindBranch, Cond: guard.TypeOf{Subject: "x", Kind: "string"}}).To(2, cfg.True).To(3, cfg.False),
		(&cfg.Node{ID: 2, Kind: cfg.KindCall, Callee: "print"}).To(4, cfg.Unconditional),
		(&cfg.Node{ID: 3, Kind: cfg.KindCall, Callee: "print"}).To(4, cfg.Unconditional),
		&cfg.Node{ID: 4, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, nil, Options{})
	require.NoError(t, err)

	assertType(t, types.String, res, 2, "x")
	assertType(t, types.Number, res, 3, "x")
	assertType(t, types.UnionOf(types.String, types.Number), res, 4, "x")

	branch, _ := g.Node(1)
	falseEdge, _ := branch.Edge(cfg.False)
	env, ok := res.EdgeEnv(1, falseEdge)
	require.True(t, ok)
	x, _ := env.Lookup("x")
	assert.True(t, types.Equal(types.Number, x))
}

func TestLoopConverges(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "x", Declared: types.UnionOf(types.String, types.Number, types.Null)})
	// let x = null; while (x) { x = 1 }
	g := cfg.NewGraph("loop", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindDeclaration, Binding: "x", Expr: types.Null}).To(2, cfg.Unconditional),
		(&cfg.Node{ID: 2, Kind: cfg.KindBranch, Cond: guard.Truthy{Subject: "x"}}).To(3, cfg.True).To(4, cfg.False),
		(&cfg.Node{ID: 3, Kind: cfg.KindAssignment, Binding: "x", Expr: types.NumberLit(1)}).To(2, cfg.Unconditional),
		&cfg.Node{ID: 4, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, nil, Options{})
	require.NoError(t, err)
	assert.False(t, res.Exhausted)

	assertType(t, types.UnionOf(types.Null, types.Number), res, 2, "x")
	assertType(t, types.Number, res, 3, "x")
	assertType(t, types.UnionOf(types.Null, types.Number), res, 4, "x")
	assert.Less(t, res.Visits, 10)
}

func TestOutOfFuelFallsBackToDeclared(t *testing.T) {
	declared := types.UnionOf(types.String, types.Number, types.Null)
	decls := cfg.Declare(cfg.Binding{Name: "x", Declared: declared})
	g := cfg.NewGraph("loop", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindDeclaration, Binding: "x", Expr: types.Null}).To(2, cfg.Unconditional),
		(&cfg.Node{ID: 2, Kind: cfg.KindBranch, Cond: guard.Truthy{Subject: "x"}}).To(3, cfg.True).To(4, cfg.False),
		(&cfg.Node{ID: 3, Kind: cfg.KindAssignment, Binding: "x", Expr: types.NumberLit(1)}).To(2, cfg.Unconditional),
		&cfg.Node{ID: 4, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, nil, Options{Fuel: 1})
	require.NoError(t, err)
	assert.True(t, res.Exhausted)

	assertType(t, declared, res, 2, "x")
	assertType(t, declared, res, 3, "x")
	assertType(t, declared, res, 4, "x")
	assert.Equal(t, 1, res.Visits)
}

func TestCallResetsCapturedBindings(t *testing.T) {
	declared := types.UnionOf(types.String, types.Null)
	decls := cfg.Declare(
		cfg.Binding{Name: "captured", Declared: declared, Captured: true},
		cfg.Binding{Name: "local", Declared: declared},
	)
	symbols := &cfg.Symbols{Predicates: map[string]types.Type{"isString": types.String}}
	g := cfg.NewGraph("calls", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindAssert, Cond: guard.And{
			Left:  guard.NonNull{Subject: "captured"},
			Right: guard.NonNull{Subject: "local"},
		}}).To(2, cfg.Unconditional),
		(&cfg.Node{ID: 2, Kind: cfg.KindCall, Callee: "isString"}).To(3, cfg.Unconditional),
		(&cfg.Node{ID: 3, Kind: cfg.KindCall, Callee: "mutate"}).To(4, cfg.Unconditional),
		&cfg.Node{ID: 4, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, symbols, Options{})
	require.NoError(t, err)

	assertType(t, types.String, res, 2, "captured")
	assertType(t, types.String, res, 3, "captured")
	assertType(t, declared, res, 4, "captured")
	assertType(t, types.String, res, 4, "local")
}

func TestAnyIsNeverNarrowed(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "x", Declared: types.Any})
	g := cfg.NewGraph("any", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindBranch, Cond: guard.TypeOf{Subject: "x", Kind: "string"}}).To(2, cfg.True).To(3, cfg.False),
		&cfg.Node{ID: 2, Kind: cfg.KindReturn},
		&cfg.Node{ID: 3, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, nil, Options{})
	require.NoError(t, err)
	assertType(t, types.Any, res, 2, "x")
	assertType(t, types.Any, res, 3, "x")
}

func TestNeverMarksImpossiblePaths(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "x", Declared: types.String})
	g := cfg.NewGraph("never", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindBranch, Cond: guard.TypeOf{Subject: "x", Kind: "number"}}).To(2, cfg.True).To(3, cfg.False),
		&cfg.Node{ID: 2, Kind: cfg.KindReturn},
		&cfg.Node{ID: 3, Kind: cfg.KindReturn},
		&cfg.Node{ID: 4, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, nil, Options{})
	require.NoError(t, err)
	assertType(t, types.Never, res, 2, "x")
	assertType(t, types.String, res, 3, "x")
	assert.False(t, res.Reachable(4))
	_, ok := res.TypeAt(4, "x")
	assert.False(t, ok)
}

func TestMalformedInput(t *testing.T) {
	decls := cfg.Declare(cfg.Binding{Name: "x", Declared: types.String})
	g := cfg.NewGraph("malformed", 1).Add(
		(&cfg.Node{ID: 1, Kind: cfg.KindAssignment, Binding: "y", Expr: types.String}).To(2, cfg.Unconditional),
		&cfg.Node{ID: 2, Kind: cfg.KindReturn},
	)
	res, err := Analyze(g, decls, nil, Options{})
	assert.Nil(t, res)
	var malformed *cfg.MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, cfg.NodeID(1), malformed.Node)
}
