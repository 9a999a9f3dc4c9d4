package guard

import (
	"github.com/cottand/tyflow/internal/log"
	"github.com/cottand/tyflow/types"
	"maps"
)

var logger = log.DefaultLogger.With("section", "guard")

// Scope is the environment a refinement reads from and writes to.
// Implementations are immutable: Narrow and Join return new scopes
type Scope interface {
	// Lookup returns the narrowed type of the binding called name
	Lookup(name string) (types.Type, bool)
	// Narrow returns a scope where name has type t
	Narrow(name string, t types.Type) Scope
	// Join returns the scope holding, for each binding, the union of its
	// type in the receiver and in other
	Join(other Scope) Scope
}

// Symbols resolves the names a Cond can refer to besides bindings
type Symbols interface {
	// Predicate returns T for a function declared as `name(x): x is T`
	Predicate(name string) (types.Type, bool)
	// Class returns the instance shape of the class called name
	Class(name string) (types.Type, bool)
}

// Outcome holds the refinement for each way a condition can evaluate
type Outcome struct {
	True, False func(Scope) Scope
}

func identity(s Scope) Scope { return s }

// Identity is the Outcome of a condition that proves nothing
var Identity = Outcome{True: identity, False: identity}

// Refine is a refinement of a single binding's type
type Refine func(types.Type) types.Type

// Pair is the refinement of a single binding for each outcome of a condition
type Pair struct {
	True, False Refine
}

// OnSubject lifts a Pair on the binding called subject to an Outcome
func OnSubject(subject string, pair Pair) Outcome {
	apply := func(refine Refine) func(Scope) Scope {
		return func(s Scope) Scope {
			t, ok := s.Lookup(subject)
			if !ok {
				return s
			}
			return s.Narrow(subject, refine(t))
		}
	}
	return Outcome{True: apply(pair.True), False: apply(pair.False)}
}

// ExtractFunc produces the Outcome of a Cond whose Tag it was registered for
type ExtractFunc func(x *Extractor, c Cond) Outcome

var defaultTable = map[Tag]ExtractFunc{
	TagTypeOf:        extractTypeOf,
	TagInstanceOf:    extractInstanceOf,
	TagIn:            extractIn,
	TagDiscriminant:  extractDiscriminant,
	TagTruthy:        extractTruthy,
	TagEquals:        extractEquals,
	TagEqualsLiteral: extractEqualsLiteral,
	TagPredicate:     extractPredicate,
	TagNonNull:       extractNonNull,
	TagAnd:           extractAnd,
	TagOr:            extractOr,
	TagNot:           extractNot,
}

// Extractor maps conditions to their Outcome through a table keyed by Tag.
// Conditions with no entry in the table do not narrow.
//
// An Extractor is not safe for concurrent use while Register is being called
type Extractor struct {
	table   map[Tag]ExtractFunc
	symbols Symbols
}

// NewExtractor returns an Extractor for the built-in shapes, resolving
// predicates and classes with symbols (which may be nil)
func NewExtractor(symbols Symbols) *Extractor {
	return &Extractor{
		table:   maps.Clone(defaultTable),
		symbols: symbols,
	}
}

// Register adds or replaces the ExtractFunc used for conditions tagged tag
func (x *Extractor) Register(tag Tag, fn ExtractFunc) {
	x.table[tag] = fn
}

// Extract returns the Outcome of c. It never fails: a condition it does not
// recognise yields Identity
func (x *Extractor) Extract(c Cond) Outcome {
	if c == nil {
		return Identity
	}
	fn, ok := x.table[c.Tag()]
	if !ok {
		logger.Debug("unrecognised condition, not narrowing", "cond", c.String(), "tag", c.Tag())
		return Identity
	}
	return fn(x, c)
}

func (x *Extractor) predicate(name string) (types.Type, bool) {
	if x.symbols == nil {
		return nil, false
	}
	return x.symbols.Predicate(name)
}

func (x *Extractor) class(name string) (types.Type, bool) {
	if x.symbols == nil {
		return nil, false
	}
	return x.symbols.Class(name)
}

// extractAnd narrows with the right side only where the left side held
func extractAnd(x *Extractor, c Cond) Outcome {
	and := c.(And)
	left, right := x.Extract(and.Left), x.Extract(and.Right)
	return Outcome{
		True: func(s Scope) Scope {
			return right.True(left.True(s))
		},
		False: func(s Scope) Scope {
			return left.False(s).Join(right.False(left.True(s)))
		},
	}
}

// extractOr narrows with the right side only where the left side failed
func extractOr(x *Extractor, c Cond) Outcome {
	or := c.(Or)
	left, right := x.Extract(or.Left), x.Extract(or.Right)
	return Outcome{
		True: func(s Scope) Scope {
			return left.True(s).Join(right.True(left.False(s)))
		},
		False: func(s Scope) Scope {
			return right.False(left.False(s))
		},
	}
}

func extractNot(x *Extractor, c Cond) Outcome {
	inner := x.Extract(c.(Not).Inner)
	return Outcome{True: inner.False, False: inner.True}
}
