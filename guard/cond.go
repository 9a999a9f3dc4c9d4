// Package guard recognises the boolean tests a branch can perform on a
// binding and turns each of them into a pair of refinements: one for the path
// where the test held, one for the path where it did not.
package guard

import (
	"fmt"
	"github.com/cottand/tyflow/types"
	"slices"
	"strconv"
)

// Tag identifies the shape of a Cond, and is the key of the Extractor's table
type Tag string

const (
	TagTypeOf        Tag = "typeof"
	TagInstanceOf    Tag = "instanceof"
	TagIn            Tag = "in"
	TagDiscriminant  Tag = "discriminant"
	TagTruthy        Tag = "truthy"
	TagEquals        Tag = "equals"
	TagEqualsLiteral Tag = "equalsLiteral"
	TagPredicate     Tag = "predicate"
	TagNonNull       Tag = "nonNull"
	TagAnd           Tag = "and"
	TagOr            Tag = "or"
	TagNot           Tag = "not"
	TagOpaque        Tag = "opaque"
)

// Cond is a branch condition as handed over by the front end
type Cond interface {
	fmt.Stringer
	Tag() Tag
	// Subjects are the names of the bindings the condition tests,
	// in order of appearance and without repetitions
	Subjects() []string
}

var (
	_ Cond = TypeOf{}
	_ Cond = InstanceOf{}
	_ Cond = In{}
	_ Cond = Discriminant{}
	_ Cond = Truthy{}
	_ Cond = Equals{}
	_ Cond = EqualsLiteral{}
	_ Cond = Predicate{}
	_ Cond = NonNull{}
	_ Cond = And{}
	_ Cond = Or{}
	_ Cond = Not{}
	_ Cond = Opaque{}
)

// TypeOf is `typeof Subject === "Kind"`
type TypeOf struct {
	Subject string
	Kind    string
}

func (c TypeOf) Tag() Tag           { return TagTypeOf }
func (c TypeOf) Subjects() []string { return []string{c.Subject} }
func (c TypeOf) String() string {
	return fmt.Sprintf("typeof %s === %s", c.Subject, strconv.Quote(c.Kind))
}

// InstanceOf is `Subject instanceof Class`
type InstanceOf struct {
	Subject string
	Class   string
}

func (c InstanceOf) Tag() Tag           { return TagInstanceOf }
func (c InstanceOf) Subjects() []string { return []string{c.Subject} }
func (c InstanceOf) String() string     { return c.Subject + " instanceof " + c.Class }

// In is `"Property" in Subject`
type In struct {
	Subject  string
	Property string
}

func (c In) Tag() Tag           { return TagIn }
func (c In) Subjects() []string { return []string{c.Subject} }
func (c In) String() string     { return strconv.Quote(c.Property) + " in " + c.Subject }

// Discriminant is `Subject.Property === Value`, where Property is a
// literal-typed field shared by the members of a union
type Discriminant struct {
	Subject  string
	Property string
	Value    types.Literal
}

func (c Discriminant) Tag() Tag           { return TagDiscriminant }
func (c Discriminant) Subjects() []string { return []string{c.Subject} }
func (c Discriminant) String() string {
	return fmt.Sprintf("%s.%s === %s", c.Subject, c.Property, c.Value)
}

// Truthy is the bare use of Subject as a condition
type Truthy struct {
	Subject string
}

func (c Truthy) Tag() Tag           { return TagTruthy }
func (c Truthy) Subjects() []string { return []string{c.Subject} }
func (c Truthy) String() string     { return c.Subject }

// Equals is `Left === Right` between two bindings
type Equals struct {
	Left, Right string
}

func (c Equals) Tag() Tag { return TagEquals }
func (c Equals) Subjects() []string {
	if c.Left == c.Right {
		return []string{c.Left}
	}
	return []string{c.Left, c.Right}
}
func (c Equals) String() string { return c.Left + " === " + c.Right }

// EqualsLiteral is `Subject === Value`
type EqualsLiteral struct {
	Subject string
	Value   types.Literal
}

func (c EqualsLiteral) Tag() Tag           { return TagEqualsLiteral }
func (c EqualsLiteral) Subjects() []string { return []string{c.Subject} }
func (c EqualsLiteral) String() string     { return c.Subject + " === " + c.Value.String() }

// Predicate is a call `Func(Subject)` to a function declared as
// `Func(x): x is T`
type Predicate struct {
	Func    string
	Subject string
}

func (c Predicate) Tag() Tag           { return TagPredicate }
func (c Predicate) Subjects() []string { return []string{c.Subject} }
func (c Predicate) String() string     { return c.Func + "(" + c.Subject + ")" }

// NonNull is the assertion `Subject!`. It has no false outcome
type NonNull struct {
	Subject string
}

func (c NonNull) Tag() Tag           { return TagNonNull }
func (c NonNull) Subjects() []string { return []string{c.Subject} }
func (c NonNull) String() string     { return c.Subject + "!" }

type And struct {
	Left, Right Cond
}

func (c And) Tag() Tag           { return TagAnd }
func (c And) Subjects() []string { return mergeSubjects(c.Left, c.Right) }
func (c And) String() string     { return "(" + c.Left.String() + " && " + c.Right.String() + ")" }

type Or struct {
	Left, Right Cond
}

func (c Or) Tag() Tag           { return TagOr }
func (c Or) Subjects() []string { return mergeSubjects(c.Left, c.Right) }
func (c Or) String() string     { return "(" + c.Left.String() + " || " + c.Right.String() + ")" }

type Not struct {
	Inner Cond
}

func (c Not) Tag() Tag           { return TagNot }
func (c Not) Subjects() []string { return c.Inner.Subjects() }
func (c Not) String() string     { return "!" + c.Inner.String() }

// Opaque is a condition the front end could not map to any known shape.
// It never narrows
type Opaque struct {
	Text string
}

func (c Opaque) Tag() Tag         { return TagOpaque }
func (Opaque) Subjects() []string { return nil }
func (c Opaque) String() string   { return c.Text }

func mergeSubjects(conds ...Cond) []string {
	var subjects []string
	for _, c := range conds {
		for _, s := range c.Subjects() {
			if !slices.Contains(subjects, s) {
				subjects = append(subjects, s)
			}
		}
	}
	return subjects
}
