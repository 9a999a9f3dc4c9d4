package cfg

import (
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/types"
	"slices"
	"sort"
)

// Binding is a variable of the analysed program
type Binding struct {
	Name     string
	Declared types.Type
	// Frozen pins the binding to the literal types assigned to it
	Frozen bool
	// Captured marks a binding that calls to unknown code may reassign
	Captured bool
}

// Declarations is the declared-type table, keyed by binding name
type Declarations map[string]Binding

func Declare(bindings ...Binding) Declarations {
	decls := make(Declarations, len(bindings))
	for _, b := range bindings {
		decls[b.Name] = b
	}
	return decls
}

// Names returns the declared binding names, sorted
func (d Declarations) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ guard.Symbols = (*Symbols)(nil)

// Symbols is the symbol table of the front end
type Symbols struct {
	// Predicates maps function names declared as `f(x): x is T` to T
	Predicates map[string]types.Type
	// Classes maps class names to the shape of their instances
	Classes map[string]types.Type
	// Discriminants are the property names declared as discriminants
	Discriminants []string
}

func (s *Symbols) Predicate(name string) (types.Type, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.Predicates[name]
	return t, ok
}

func (s *Symbols) Class(name string) (types.Type, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.Classes[name]
	return t, ok
}

func (s *Symbols) IsDiscriminant(property string) bool {
	return s != nil && slices.Contains(s.Discriminants, property)
}

// Unit is everything needed to analyse one function body
type Unit struct {
	Graph   *Graph
	Decls   Declarations
	Symbols *Symbols
}

func (u *Unit) Name() string {
	if u.Graph == nil {
		return ""
	}
	return u.Graph.Name
}
