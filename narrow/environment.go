package narrow

import (
	"github.com/benbjohnson/immutable"
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/guard"
	"github.com/cottand/tyflow/types"
	"strings"
)

var _ guard.Scope = (*Environment)(nil)

// Environment maps every declared binding to its narrowed type at some
// program point. It is persistent: Narrow and Join leave the receiver as is.
//
// Narrowed types are always assignable to declared types, and bindings
// declared as any are never narrowed
type Environment struct {
	decls  cfg.Declarations
	narrow *immutable.Map[string, types.Type]
}

// NewEnvironment returns the Environment where every binding has its
// declared type
func NewEnvironment(decls cfg.Declarations) *Environment {
	builder := immutable.NewMapBuilder[string, types.Type](nil)
	for name, b := range decls {
		builder.Set(name, b.Declared)
	}
	return &Environment{decls: decls, narrow: builder.Map()}
}

func (e *Environment) Lookup(name string) (types.Type, bool) {
	return e.narrow.Get(name)
}

// Narrow returns the Environment where name has type t, restricted to the
// members of t the declared type of name admits
func (e *Environment) Narrow(name string, t types.Type) guard.Scope {
	return e.narrowTo(name, t)
}

func (e *Environment) narrowTo(name string, t types.Type) *Environment {
	b, ok := e.decls[name]
	if !ok || types.IsAny(b.Declared) {
		return e
	}
	if !types.IsAssignable(t, b.Declared) {
		t = types.IntersectWith(t, func(m types.Type) bool {
			return types.IsAssignable(m, b.Declared)
		})
	}
	return e.set(name, t)
}

// Reset returns the Environment where name has its declared type again
func (e *Environment) Reset(name string) *Environment {
	b, ok := e.decls[name]
	if !ok {
		return e
	}
	return e.set(name, b.Declared)
}

func (e *Environment) set(name string, t types.Type) *Environment {
	if current, ok := e.narrow.Get(name); ok && types.Equal(current, t) {
		return e
	}
	return &Environment{decls: e.decls, narrow: e.narrow.Set(name, t)}
}

// Join returns the Environment where each binding has the union of its
// types in e and other
func (e *Environment) Join(other guard.Scope) guard.Scope {
	return e.join(other)
}

func (e *Environment) join(other guard.Scope) *Environment {
	if other == nil {
		return e
	}
	if o, ok := other.(*Environment); ok && o == e {
		return e
	}
	joined := e
	itr := e.narrow.Iterator()
	for !itr.Done() {
		name, t, _ := itr.Next()
		if otherT, ok := other.Lookup(name); ok {
			joined = joined.set(name, types.UnionOf(t, otherT))
		}
	}
	return joined
}

// Equal is true when every binding has structurally the same type in e and
// other
func (e *Environment) Equal(other *Environment) bool {
	if e == other {
		return true
	}
	if other == nil || e.narrow.Len() != other.narrow.Len() {
		return false
	}
	itr := e.narrow.Iterator()
	for !itr.Done() {
		name, t, _ := itr.Next()
		otherT, ok := other.narrow.Get(name)
		if !ok || !types.Equal(t, otherT) {
			return false
		}
	}
	return true
}

// Names returns the bindings of e, sorted
func (e *Environment) Names() []string {
	return e.decls.Names()
}

func (e *Environment) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, name := range e.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		t, _ := e.Lookup(name)
		sb.WriteString(name + ": " + t.String())
	}
	sb.WriteString("}")
	return sb.String()
}
