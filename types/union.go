package types

import (
	"github.com/hashicorp/go-set/v3"
)

// Members returns the members of t if it is a Union, nothing if it is never,
// or t itself otherwise
func Members(t Type) []Type {
	switch t := t.(type) {
	case Union:
		return t.Members()
	case NeverType:
		return nil
	default:
		return []Type{t}
	}
}

// UnionOf returns the normalised union of ts: nested unions are flattened,
// identical members are kept once, and a union of one member collapses to
// that member. never is the identity, any and unknown absorb every other
// member (any taking precedence).
//
// A Literal and its base Primitive are both kept; see Widen for merging them
func UnionOf(ts ...Type) Type {
	members := make([]Type, 0, len(ts))
	seen := set.NewHashSet[Type, uint64](len(ts))
	absorbed := Type(nil)
	for _, t := range ts {
		for _, m := range Members(t) {
			switch m.(type) {
			case AnyType:
				return Any
			case UnknownType:
				absorbed = Unknown
				continue
			}
			if seen.Insert(m) {
				members = append(members, m)
			}
		}
	}
	if absorbed != nil {
		return absorbed
	}
	switch len(members) {
	case 0:
		return Never
	case 1:
		return members[0]
	}
	return Union{members: members, hash: hashUnion(members)}
}

// IntersectWith restricts t to the members for which keep holds.
// It returns never when no member survives
func IntersectWith(t Type, keep func(member Type) bool) Type {
	var kept []Type
	for _, m := range Members(t) {
		if keep(m) {
			kept = append(kept, m)
		}
	}
	return UnionOf(kept...)
}

// Map replaces every member of t with f(member) and normalises the result.
// Returning never from f drops the member
func Map(t Type, f func(member Type) Type) Type {
	mapped := make([]Type, 0, len(Members(t)))
	for _, m := range Members(t) {
		mapped = append(mapped, f(m))
	}
	return UnionOf(mapped...)
}

// Subtract removes from t every member assignable to u
func Subtract(t, u Type) Type {
	return IntersectWith(t, func(m Type) bool {
		return !IsAssignable(m, u)
	})
}
