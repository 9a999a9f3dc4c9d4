package types

import (
	"encoding/binary"
	"fmt"
	"github.com/cespare/xxhash/v2"
	"github.com/cottand/tyflow/util"
	"slices"
	"strconv"
	"strings"
)

// Type is a value of the type algebra the narrowing engine operates on.
//
// Identical types have the same Hash, see Equal.
// Construct unions with UnionOf and objects with NewObject so that they are
// always normalised.
type Type interface {
	fmt.Stringer
	Hash() uint64
	isType()
}

var (
	_ Type = Primitive{}
	_ Type = Literal{}
	_ Type = Object{}
	_ Type = Union{}
	_ Type = NeverType{}
	_ Type = UnknownType{}
	_ Type = AnyType{}
	_ Type = FunctionType{}
)

// Kind is the kind of a primitive type
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBoolean
	KindNull
	KindUndefined
	KindBigInt
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindString:    "string",
	KindNumber:    "number",
	KindBoolean:   "boolean",
	KindNull:      "null",
	KindUndefined: "undefined",
	KindBigInt:    "bigint",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindNamed returns the primitive Kind called name, as written in a typeof test
func KindNamed(name string) (Kind, bool) {
	for k, kName := range kindNames {
		if k != int(KindInvalid) && kName == name {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// tags prefixing the hashed encoding of each type
const (
	tagPrimitive byte = iota + 1
	tagLiteral
	tagObject
	tagUnion
	tagNever
	tagUnknown
	tagAny
	tagFunction
)

// separatorByte cannot occur in valid UTF-8 sequences
var separatorByte = []byte{255}

type Primitive struct {
	Kind Kind
}

var (
	String    = Primitive{Kind: KindString}
	Number    = Primitive{Kind: KindNumber}
	Boolean   = Primitive{Kind: KindBoolean}
	Null      = Primitive{Kind: KindNull}
	Undefined = Primitive{Kind: KindUndefined}
	BigInt    = Primitive{Kind: KindBigInt}
)

func (Primitive) isType()          {}
func (t Primitive) String() string { return t.Kind.String() }
func (t Primitive) Hash() uint64 {
	return xxhash.Sum64([]byte{tagPrimitive, byte(t.Kind)})
}

// Literal is the type of exactly one value of a primitive Base.
//
// Value holds the canonical text of that value: strings verbatim, numbers in
// their shortest float formatting, booleans as true or false, and bigints as
// decimal digits without the n suffix
type Literal struct {
	Base  Kind
	Value string
}

func StringLit(v string) Literal { return Literal{Base: KindString, Value: v} }
func NumberLit(v float64) Literal {
	return Literal{Base: KindNumber, Value: strconv.FormatFloat(v, 'g', -1, 64)}
}
func BoolLit(v bool) Literal          { return Literal{Base: KindBoolean, Value: strconv.FormatBool(v)} }
func BigIntLit(digits string) Literal { return Literal{Base: KindBigInt, Value: digits} }

func (Literal) isType() {}
func (t Literal) String() string {
	switch t.Base {
	case KindString:
		return strconv.Quote(t.Value)
	case KindBigInt:
		return t.Value + "n"
	default:
		return t.Value
	}
}
func (t Literal) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.Write([]byte{tagLiteral, byte(t.Base)})
	_, _ = h.WriteString(t.Value)
	return h.Sum64()
}

// Field is a property of an Object
type Field struct {
	Name     string
	Type     Type
	Optional bool
}

func (f Field) String() string {
	if f.Optional {
		return f.Name + "?: " + f.Type.String()
	}
	return f.Name + ": " + f.Type.String()
}

// Object is a structural record type. Its fields are kept sorted by name,
// so two objects with the same fields are identical regardless of the order
// they were declared in.
//
// The zero Object is the empty-record type
type Object struct {
	fields []Field
	hash   uint64
}

// NewObject returns the Object with the given fields.
// When a name is repeated, the last Field with that name wins
func NewObject(fields ...Field) Object {
	byName := make([]Field, 0, len(fields))
	for _, f := range fields {
		i := slices.IndexFunc(byName, func(existing Field) bool { return existing.Name == f.Name })
		if i >= 0 {
			byName[i] = f
			continue
		}
		byName = append(byName, f)
	}
	slices.SortFunc(byName, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	return Object{fields: byName, hash: hashObject(byName)}
}

func hashObject(fields []Field) uint64 {
	h := xxhash.New()
	_, _ = h.Write([]byte{tagObject})
	var buf [8]byte
	for _, f := range fields {
		_, _ = h.WriteString(f.Name)
		_, _ = h.Write(separatorByte)
		if f.Optional {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
		binary.LittleEndian.PutUint64(buf[:], f.Type.Hash())
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func (Object) isType() {}

// Fields returns a copy of the fields of t, sorted by name
func (t Object) Fields() []Field { return slices.Clone(t.fields) }
func (t Object) Len() int        { return len(t.fields) }

// Field looks up the field called name
func (t Object) Field(name string) (Field, bool) {
	i, found := slices.BinarySearchFunc(t.fields, name, func(f Field, name string) int {
		return strings.Compare(f.Name, name)
	})
	if !found {
		return Field{}, false
	}
	return t.fields[i], true
}

func (t Object) String() string {
	if len(t.fields) == 0 {
		return "{}"
	}
	return "{" + util.JoinString(t.fields, ", ") + "}"
}

func (t Object) Hash() uint64 {
	if t.hash == 0 {
		return hashObject(t.fields)
	}
	return t.hash
}

// Union has at least two members, none of which is itself a Union, and no two
// of which are identical. Build it with UnionOf.
//
// Members keep the order they were first seen in, but equality ignores order
type Union struct {
	members []Type
	hash    uint64
}

func hashUnion(members []Type) uint64 {
	hashes := make([]uint64, len(members))
	for i, m := range members {
		hashes[i] = m.Hash()
	}
	slices.Sort(hashes)
	h := xxhash.New()
	_, _ = h.Write([]byte{tagUnion})
	var buf [8]byte
	for _, memberHash := range hashes {
		binary.LittleEndian.PutUint64(buf[:], memberHash)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func (Union) isType() {}

// Members returns a copy of the members of t
func (t Union) Members() []Type { return slices.Clone(t.members) }
func (t Union) String() string  { return util.JoinString(t.members, " | ") }
func (t Union) Hash() uint64 {
	if t.hash == 0 {
		return hashUnion(t.members)
	}
	return t.hash
}

// NeverType is the bottom type: no value inhabits it
type NeverType struct{}

// UnknownType is the top type: every value inhabits it, but it is usable
// only where unknown or any is expected
type UnknownType struct{}

// AnyType opts out of checking entirely. Bindings typed any are never narrowed
type AnyType struct{}

// FunctionType is an opaque callable. Its parameters and result are not modelled
type FunctionType struct{}

var (
	Never    = NeverType{}
	Unknown  = UnknownType{}
	Any      = AnyType{}
	Function = FunctionType{}
)

func (NeverType) isType()           {}
func (NeverType) String() string    { return "never" }
func (NeverType) Hash() uint64      { return xxhash.Sum64([]byte{tagNever}) }
func (UnknownType) isType()         {}
func (UnknownType) String() string  { return "unknown" }
func (UnknownType) Hash() uint64    { return xxhash.Sum64([]byte{tagUnknown}) }
func (AnyType) isType()             {}
func (AnyType) String() string      { return "any" }
func (AnyType) Hash() uint64        { return xxhash.Sum64([]byte{tagAny}) }
func (FunctionType) isType()        {}
func (FunctionType) String() string { return "function" }
func (FunctionType) Hash() uint64   { return xxhash.Sum64([]byte{tagFunction}) }

// Equal reports whether a and b are structurally identical. Hashes rule
// out most pairs; matching hashes are confirmed by comparing structure
func Equal(a, b Type) bool {
	return a.Hash() == b.Hash() && identical(a, b)
}

func identical(a, b Type) bool {
	switch a := a.(type) {
	case Object:
		other, ok := b.(Object)
		if !ok || len(a.fields) != len(other.fields) {
			return false
		}
		for i, f := range a.fields {
			g := other.fields[i]
			if f.Name != g.Name || f.Optional != g.Optional || !Equal(f.Type, g.Type) {
				return false
			}
		}
		return true
	case Union:
		other, ok := b.(Union)
		if !ok || len(a.members) != len(other.members) {
			return false
		}
		for _, m := range a.members {
			if !slices.ContainsFunc(other.members, func(n Type) bool { return Equal(m, n) }) {
				return false
			}
		}
		return true
	default:
		// primitives, literals and the singletons are comparable values
		return a == b
	}
}

func IsNever(t Type) bool {
	_, ok := t.(NeverType)
	return ok
}

func IsAny(t Type) bool {
	_, ok := t.(AnyType)
	return ok
}

func IsUnknown(t Type) bool {
	_, ok := t.(UnknownType)
	return ok
}
