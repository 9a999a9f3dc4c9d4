package cfg

import (
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"strconv"
	"strings"
)

// LoadUnits decodes every YAML document in r as a Unit. Units are not
// validated; see Validate.
//
// Types are written as the name of a primitive (or never, unknown, any,
// function), or as a mapping with a single key:
//
//	literal: circle         # also numbers and booleans
//	bigint: "0"
//	object: {kind: {literal: circle}, radius: number, "tag?": string}
//	union: [string, number]
//
// Conditions are mappings with a single key naming their shape:
//
//	typeof: {subject: x, kind: string}
//	discriminant: {subject: shape, property: kind, value: {literal: circle}}
//	and: [{truthy: a}, {nonNull: b}]
func LoadUnits(r io.Reader) ([]*Unit, error) {
	decoder := yaml.NewDecoder(r)
	var units []*Unit
	for {
		var f fixture
		err := decoder.Decode(&f)
		if errors.Is(err, io.EOF) {
			return units, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding unit #%d", len(units)+1)
		}
		units = append(units, f.unit())
	}
}

// LoadUnit decodes the first YAML document of r as a Unit
func LoadUnit(r io.Reader) (*Unit, error) {
	units, err := LoadUnits(r)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, errors.New("no unit to decode")
	}
	return units[0], nil
}

type fixture struct {
	Name     string           `yaml:"name"`
	Entry    NodeID           `yaml:"entry"`
	Bindings []fixtureBinding `yaml:"bindings"`
	Symbols  struct {
		Predicates    map[string]yamlType `yaml:"predicates"`
		Classes       map[string]yamlType `yaml:"classes"`
		Discriminants []string            `yaml:"discriminants"`
	} `yaml:"symbols"`
	Nodes []fixtureNode `yaml:"nodes"`
}

type fixtureBinding struct {
	Name     string   `yaml:"name"`
	Type     yamlType `yaml:"type"`
	Frozen   bool     `yaml:"frozen"`
	Captured bool     `yaml:"captured"`
}

type fixtureNode struct {
	ID      NodeID        `yaml:"id"`
	Kind    yamlNodeKind  `yaml:"kind"`
	Binding string        `yaml:"binding"`
	Expr    yamlType      `yaml:"expr"`
	Cond    yamlCond      `yaml:"cond"`
	Callee  string        `yaml:"callee"`
	Edges   []fixtureEdge `yaml:"edges"`
}

type fixtureEdge struct {
	To   NodeID       `yaml:"to"`
	Kind yamlEdgeKind `yaml:"kind"`
}

func (f *fixture) unit() *Unit {
	g := NewGraph(f.Name, f.Entry)
	for _, fn := range f.Nodes {
		n := &Node{
			ID:      fn.ID,
			Kind:    NodeKind(fn.Kind),
			Binding: fn.Binding,
			Expr:    fn.Expr.t,
			Cond:    fn.Cond.c,
			Callee:  fn.Callee,
		}
		for _, e := range fn.Edges {
			n.To(e.To, EdgeKind(e.Kind))
		}
		g.Add(n)
	}
	decls := make(Declarations, len(f.Bindings))
	for _, b := range f.Bindings {
		decls[b.Name] = Binding{Name: b.Name, Declared: b.Type.t, Frozen: b.Frozen, Captured: b.Captured}
	}
	symbols := &Symbols{
		Predicates:    make(map[string]types.Type, len(f.Symbols.Predicates)),
		Classes:       make(map[string]types.Type, len(f.Symbols.Classes)),
		Discriminants: f.Symbols.Discriminants,
	}
	for name, t := range f.Symbols.Predicates {
		symbols.Predicates[name] = t.t
	}
	for name, t := range f.Symbols.Classes {
		symbols.Classes[name] = t.t
	}
	return &Unit{Graph: g, Decls: decls, Symbols: symbols}
}

type yamlNodeKind NodeKind

func (k *yamlNodeKind) UnmarshalYAML(value *yaml.Node) error {
	kind, ok := nodeKindNamed(value.Value)
	if !ok {
		return errors.Errorf("line %d: unknown node kind %q", value.Line, value.Value)
	}
	*k = yamlNodeKind(kind)
	return nil
}

type yamlEdgeKind EdgeKind

func (k *yamlEdgeKind) UnmarshalYAML(value *yaml.Node) error {
	kind, ok := edgeKindNamed(value.Value)
	if !ok {
		return errors.Errorf("line %d: unknown edge kind %q", value.Line, value.Value)
	}
	*k = yamlEdgeKind(kind)
	return nil
}

type yamlType struct {
	t types.Type
}

func (y *yamlType) UnmarshalYAML(value *yaml.Node) error {
	t, err := decodeType(value)
	if err != nil {
		return err
	}
	y.t = t
	return nil
}

var namedTypes = map[string]types.Type{
	"never":    types.Never,
	"unknown":  types.Unknown,
	"any":      types.Any,
	"function": types.Function,
}

// single returns the key and value of a mapping with exactly one entry
func single(value *yaml.Node) (string, *yaml.Node, error) {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return "", nil, errors.Errorf("line %d: expected a mapping with a single key", value.Line)
	}
	return value.Content[0].Value, value.Content[1], nil
}

func decodeType(value *yaml.Node) (types.Type, error) {
	if value.Kind == yaml.ScalarNode {
		if t, ok := namedTypes[value.Value]; ok {
			return t, nil
		}
		if kind, ok := types.KindNamed(value.Value); ok {
			return types.Primitive{Kind: kind}, nil
		}
		return nil, errors.Errorf("line %d: unknown type %q", value.Line, value.Value)
	}
	key, inner, err := single(value)
	if err != nil {
		return nil, err
	}
	switch key {
	case "literal":
		return decodeLiteral(inner)
	case "bigint":
		if !isDigits(inner.Value) {
			return nil, errors.Errorf("line %d: %q is not a bigint", inner.Line, inner.Value)
		}
		return types.BigIntLit(inner.Value), nil
	case "object":
		if inner.Kind != yaml.MappingNode {
			return nil, errors.Errorf("line %d: object fields must be a mapping", inner.Line)
		}
		fields := make([]types.Field, 0, len(inner.Content)/2)
		for i := 0; i+1 < len(inner.Content); i += 2 {
			name := inner.Content[i].Value
			t, err := decodeType(inner.Content[i+1])
			if err != nil {
				return nil, err
			}
			optional := strings.HasSuffix(name, "?")
			fields = append(fields, types.Field{Name: strings.TrimSuffix(name, "?"), Type: t, Optional: optional})
		}
		return types.NewObject(fields...), nil
	case "union":
		if inner.Kind != yaml.SequenceNode {
			return nil, errors.Errorf("line %d: union members must be a sequence", inner.Line)
		}
		members := make([]types.Type, 0, len(inner.Content))
		for _, m := range inner.Content {
			t, err := decodeType(m)
			if err != nil {
				return nil, err
			}
			members = append(members, t)
		}
		return types.UnionOf(members...), nil
	}
	return nil, errors.Errorf("line %d: unknown type constructor %q", value.Line, key)
}

func isDigits(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func decodeLiteral(value *yaml.Node) (types.Literal, error) {
	if value.Kind != yaml.ScalarNode {
		return types.Literal{}, errors.Errorf("line %d: literal must be a scalar", value.Line)
	}
	switch value.ShortTag() {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return types.Literal{}, errors.Wrapf(err, "line %d", value.Line)
		}
		return types.NumberLit(f), nil
	case "!!null":
		return types.Literal{}, errors.Errorf("line %d: null is a type, not a literal", value.Line)
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return types.Literal{}, err
		}
		return types.BoolLit(b), nil
	}
	return types.StringLit(value.Value), nil
}

// decodeLiteralType decodes a type which must be a literal, as compared
// against by discriminant and equality guards
func decodeLiteralType(value *yaml.Node) (types.Literal, error) {
	t, err := decodeType(value)
	if err != nil {
		return types.Literal{}, err
	}
	lit, ok := t.(types.Literal)
	if !ok {
		return types.Literal{}, errors.Errorf("line %d: expected a literal type, found %s", value.Line, t)
	}
	return lit, nil
}

type yamlCond struct {
	c guard.Cond
}

func (y *yamlCond) UnmarshalYAML(value *yaml.Node) error {
	c, err := decodeCond(value)
	if err != nil {
		return err
	}
	y.c = c
	return nil
}

// condFields holds the fields any single-subject condition may have
type condFields struct {
	Subject  string    `yaml:"subject"`
	Kind     string    `yaml:"kind"`
	Class    string    `yaml:"class"`
	Property string    `yaml:"property"`
	Func     string    `yaml:"func"`
	Left     string    `yaml:"left"`
	Right    string    `yaml:"right"`
	Value    yaml.Node `yaml:"value"`
}

func decodeCond(value *yaml.Node) (guard.Cond, error) {
	key, inner, err := single(value)
	if err != nil {
		return nil, err
	}
	tag := guard.Tag(key)
	switch tag {
	case guard.TagTruthy:
		return guard.Truthy{Subject: inner.Value}, nil
	case guard.TagNonNull:
		return guard.NonNull{Subject: inner.Value}, nil
	case guard.TagOpaque:
		return guard.Opaque{Text: inner.Value}, nil
	case guard.TagNot:
		c, err := decodeCond(inner)
		if err != nil {
			return nil, err
		}
		return guard.Not{Inner: c}, nil
	case guard.TagAnd, guard.TagOr:
		return decodeConnective(tag, inner)
	}

	build, ok := structuredConds[tag]
	if !ok {
		return nil, errors.Errorf("line %d: unknown condition %q", value.Line, key)
	}
	var f condFields
	if err := inner.Decode(&f); err != nil {
		return nil, errors.Wrapf(err, "line %d", inner.Line)
	}
	return build(f)
}

var structuredConds = map[guard.Tag]func(f condFields) (guard.Cond, error){
	guard.TagTypeOf: func(f condFields) (guard.Cond, error) {
		return guard.TypeOf{Subject: f.Subject, Kind: f.Kind}, nil
	},
	guard.TagInstanceOf: func(f condFields) (guard.Cond, error) {
		return guard.InstanceOf{Subject: f.Subject, Class: f.Class}, nil
	},
	guard.TagIn: func(f condFields) (guard.Cond, error) {
		return guard.In{Subject: f.Subject, Property: f.Property}, nil
	},
	guard.TagPredicate: func(f condFields) (guard.Cond, error) {
		return guard.Predicate{Func: f.Func, Subject: f.Subject}, nil
	},
	guard.TagEquals: func(f condFields) (guard.Cond, error) {
		return guard.Equals{Left: f.Left, Right: f.Right}, nil
	},
	guard.TagDiscriminant: func(f condFields) (guard.Cond, error) {
		lit, err := decodeLiteralType(&f.Value)
		if err != nil {
			return nil, err
		}
		return guard.Discriminant{Subject: f.Subject, Property: f.Property, Value: lit}, nil
	},
	guard.TagEqualsLiteral: func(f condFields) (guard.Cond, error) {
		lit, err := decodeLiteralType(&f.Value)
		if err != nil {
			return nil, err
		}
		return guard.EqualsLiteral{Subject: f.Subject, Value: lit}, nil
	},
}

// decodeConnective folds a sequence of two or more conditions to the left
func decodeConnective(tag guard.Tag, value *yaml.Node) (guard.Cond, error) {
	if value.Kind != yaml.SequenceNode || len(value.Content) < 2 {
		return nil, errors.Errorf("line %d: %s needs a sequence of at least two conditions", value.Line, tag)
	}
	var acc guard.Cond
	for _, operand := range value.Content {
		c, err := decodeCond(operand)
		if err != nil {
			return nil, err
		}
		switch {
		case acc == nil:
			acc = c
		case tag == guard.TagAnd:
			acc = guard.And{Left: acc, Right: c}
		default:
			acc = guard.Or{Left: acc, Right: c}
		}
	}
	return acc, nil
}
