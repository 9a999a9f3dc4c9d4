// Package diag holds the findings an analysis reports about the program it
// analysed. Findings are not failures of the analysis itself: it is up to the
// caller to decide which of them are errors
package diag

import (
	"fmt"
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/types"
	"runtime/debug"
	"strings"
)

type Code int

const (
	None Code = iota
	InvalidAssignment
	NonExhaustive
)

var codeNames = map[Code]string{
	None:              "none",
	InvalidAssignment: "invalid-assignment",
	NonExhaustive:     "non-exhaustive",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

type Finding interface {
	Error() string
	Code() Code
	// At is the node the finding is about
	At() cfg.NodeID

	withStack([]byte) Finding
	getStack() []byte
}

func FormatWithCode(f Finding) string {
	return fmt.Sprintf("(E%03d) %s", f.Code(), f.Error())
}

// origin returns the file and line New was called from
func origin(f Finding) string {
	lines := strings.Split(string(f.getStack()), "\n")
	if len(lines) <= 6 {
		return ""
	}
	return strings.TrimSpace(lines[6])
}

// New records where f was raised, for debug logs
func New[F Finding](f F) Finding {
	return f.withStack(debug.Stack())
}

// NewInvalidAssignment is an assignment of Attempted to Binding, whose
// declared type does not admit it
type NewInvalidAssignment struct {
	Node      cfg.NodeID
	Binding   string
	Attempted types.Type
	Declared  types.Type
	stack     []byte
}

func (e NewInvalidAssignment) Error() string {
	return fmt.Sprintf("type '%s' is not assignable to '%s', the declared type of %s", e.Attempted, e.Declared, e.Binding)
}
func (e NewInvalidAssignment) Code() Code       { return InvalidAssignment }
func (e NewInvalidAssignment) At() cfg.NodeID   { return e.Node }
func (e NewInvalidAssignment) getStack() []byte { return e.stack }
func (e NewInvalidAssignment) withStack(stack []byte) Finding {
	e.stack = stack
	return e
}

// Missing is a case a multi-way branch does not handle
type Missing struct {
	Subject string
	// Discriminant is the value of the discriminant property of Type, or
	// empty if Type has none
	Discriminant string
	Type         types.Type
}

func (m Missing) String() string {
	if m.Discriminant == "" {
		return m.Type.String()
	}
	return m.Discriminant + " (" + m.Type.String() + ")"
}

// NewNonExhaustive is a multi-way branch which lets some members of the type
// of its subjects reach its fallthrough edge
type NewNonExhaustive struct {
	Node     cfg.NodeID
	Subjects []string
	Missing  []Missing
	stack    []byte
}

func (e NewNonExhaustive) Error() string {
	cases := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		cases[i] = m.String()
	}
	return fmt.Sprintf("branch over %s is not exhaustive, missing: %s", strings.Join(e.Subjects, ", "), strings.Join(cases, ", "))
}
func (e NewNonExhaustive) Code() Code       { return NonExhaustive }
func (e NewNonExhaustive) At() cfg.NodeID   { return e.Node }
func (e NewNonExhaustive) getStack() []byte { return e.stack }
func (e NewNonExhaustive) withStack(stack []byte) Finding {
	e.stack = stack
	return e
}
