package guard

import (
	"github.com/cottand/tyflow/types"
	"github.com/xtgo/set"
	"slices"
	"sort"
)

// typeOfTargets are the types each typeof result narrows unknown to
var typeOfTargets = map[string]types.Type{
	"string":    types.String,
	"number":    types.Number,
	"boolean":   types.Boolean,
	"bigint":    types.BigInt,
	"undefined": types.Undefined,
	"object":    types.UnionOf(types.Object{}, types.Null),
	"function":  types.Function,
}

// matchesTypeOf is true when every value of member makes typeof return kind
func matchesTypeOf(kind string, member types.Type) bool {
	switch member := member.(type) {
	case types.Primitive:
		if kind == "object" {
			return member.Kind == types.KindNull
		}
		return member.Kind.String() == kind
	case types.Literal:
		return member.Base.String() == kind
	case types.Object:
		return kind == "object"
	case types.FunctionType:
		return kind == "function"
	}
	return false
}

func extractTypeOf(_ *Extractor, c Cond) Outcome {
	typeOf := c.(TypeOf)
	target, ok := typeOfTargets[typeOf.Kind]
	if !ok {
		logger.Debug("typeof compared against an impossible result, not narrowing", "cond", typeOf.String())
		return Identity
	}
	return OnSubject(typeOf.Subject, Pair{
		True: func(t types.Type) types.Type {
			return types.Map(t, func(m types.Type) types.Type {
				if types.IsUnknown(m) {
					return target
				}
				if matchesTypeOf(typeOf.Kind, m) {
					return m
				}
				return types.Never
			})
		},
		False: func(t types.Type) types.Type {
			return types.IntersectWith(t, func(m types.Type) bool {
				return !matchesTypeOf(typeOf.Kind, m)
			})
		},
	})
}

// narrowTo keeps the members of t that are assignable to target, and
// replaces those target is assignable to (including unknown) with target
func narrowTo(target types.Type) Refine {
	return func(t types.Type) types.Type {
		return types.Map(t, func(m types.Type) types.Type {
			switch {
			case types.IsAssignable(m, target):
				return m
			case types.IsAssignable(target, m):
				return target
			}
			return types.Never
		})
	}
}

// narrowAway drops the members of t that are assignable to target
func narrowAway(target types.Type) Refine {
	return func(t types.Type) types.Type {
		return types.Subtract(t, target)
	}
}

func extractInstanceOf(x *Extractor, c Cond) Outcome {
	instanceOf := c.(InstanceOf)
	shape, ok := x.class(instanceOf.Class)
	if !ok {
		logger.Debug("instanceof an undeclared class, not narrowing", "cond", instanceOf.String())
		return Identity
	}
	return OnSubject(instanceOf.Subject, Pair{True: narrowTo(shape), False: narrowAway(shape)})
}

func extractPredicate(x *Extractor, c Cond) Outcome {
	predicate := c.(Predicate)
	target, ok := x.predicate(predicate.Func)
	if !ok {
		logger.Debug("call to a function which is not a type predicate, not narrowing", "cond", predicate.String())
		return Identity
	}
	return OnSubject(predicate.Subject, Pair{True: narrowTo(target), False: narrowAway(target)})
}

func extractIn(_ *Extractor, c Cond) Outcome {
	in := c.(In)
	return OnSubject(in.Subject, Pair{
		True: func(t types.Type) types.Type {
			return types.IntersectWith(t, func(m types.Type) bool {
				if types.IsUnknown(m) {
					return true
				}
				obj, ok := m.(types.Object)
				if !ok {
					return false
				}
				_, declared := obj.Field(in.Property)
				return declared
			})
		},
		False: func(t types.Type) types.Type {
			return types.IntersectWith(t, func(m types.Type) bool {
				obj, ok := m.(types.Object)
				if !ok {
					return true
				}
				f, declared := obj.Field(in.Property)
				return !declared || f.Optional
			})
		},
	})
}

func extractDiscriminant(_ *Extractor, c Cond) Outcome {
	disc := c.(Discriminant)
	return OnSubject(disc.Subject, Pair{
		True: func(t types.Type) types.Type {
			return types.IntersectWith(t, func(m types.Type) bool {
				if types.IsUnknown(m) {
					return true
				}
				obj, ok := m.(types.Object)
				if !ok {
					return false
				}
				f, declared := obj.Field(disc.Property)
				return declared && types.IsAssignable(disc.Value, f.Type)
			})
		},
		False: func(t types.Type) types.Type {
			return types.IntersectWith(t, func(m types.Type) bool {
				obj, ok := m.(types.Object)
				if !ok {
					return true
				}
				f, declared := obj.Field(disc.Property)
				// only a field which can hold nothing but Value rules the member out
				return !declared || f.Optional || !types.Equal(f.Type, disc.Value)
			})
		},
	})
}

func extractEqualsLiteral(_ *Extractor, c Cond) Outcome {
	eq := c.(EqualsLiteral)
	return OnSubject(eq.Subject, Pair{
		True: func(t types.Type) types.Type {
			return types.Map(t, func(m types.Type) types.Type {
				if types.IsAssignable(eq.Value, m) {
					return eq.Value
				}
				return types.Never
			})
		},
		False: func(t types.Type) types.Type {
			return types.IntersectWith(t, func(m types.Type) bool {
				return !types.Equal(m, eq.Value)
			})
		},
	})
}

func withoutNullish(t types.Type) types.Type {
	return types.IntersectWith(t, func(m types.Type) bool {
		return !types.Equal(m, types.Null) && !types.Equal(m, types.Undefined)
	})
}

// extractNonNull refines identically on both outcomes: an assertion holds
// wherever control continues
func extractNonNull(_ *Extractor, c Cond) Outcome {
	return OnSubject(c.(NonNull).Subject, Pair{True: withoutNullish, False: withoutNullish})
}

// truthiness is the split of a primitive kind into the part of it that is
// truthy and the part that is falsy
type truthiness struct {
	truthy, falsy types.Type
}

// truthinessTable is how truthiness tests narrow each primitive.
//
// number is kept whole on both sides: its falsy values are 0 and NaN, and
// NaN has no literal type to narrow to
var truthinessTable = map[types.Kind]truthiness{
	types.KindString:    {truthy: types.String, falsy: types.StringLit("")},
	types.KindNumber:    {truthy: types.Number, falsy: types.Number},
	types.KindBoolean:   {truthy: types.BoolLit(true), falsy: types.BoolLit(false)},
	types.KindBigInt:    {truthy: types.BigInt, falsy: types.BigIntLit("0")},
	types.KindNull:      {truthy: types.Never, falsy: types.Null},
	types.KindUndefined: {truthy: types.Never, falsy: types.Undefined},
}

func isFalsyLiteral(l types.Literal) bool {
	switch l.Base {
	case types.KindString:
		return l.Value == ""
	case types.KindNumber:
		return l.Value == "0" || l.Value == "-0" || l.Value == "NaN"
	case types.KindBoolean:
		return l.Value == "false"
	case types.KindBigInt:
		return l.Value == "0"
	}
	return false
}

func split(m types.Type) truthiness {
	switch m := m.(type) {
	case types.Primitive:
		if split, ok := truthinessTable[m.Kind]; ok {
			return split
		}
	case types.Literal:
		if isFalsyLiteral(m) {
			return truthiness{truthy: types.Never, falsy: m}
		}
		return truthiness{truthy: m, falsy: types.Never}
	case types.Object, types.FunctionType:
		return truthiness{truthy: m, falsy: types.Never}
	}
	return truthiness{truthy: m, falsy: m}
}

func extractTruthy(_ *Extractor, c Cond) Outcome {
	return OnSubject(c.(Truthy).Subject, Pair{
		True: func(t types.Type) types.Type {
			return types.Map(t, func(m types.Type) types.Type { return split(m).truthy })
		},
		False: func(t types.Type) types.Type {
			return types.Map(t, func(m types.Type) types.Type { return split(m).falsy })
		},
	})
}

// hashSlice is a sort.Interface over member hashes, as required by set
type hashSlice []uint64

func (h hashSlice) Len() int           { return len(h) }
func (h hashSlice) Less(i, j int) bool { return h[i] < h[j] }
func (h hashSlice) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func sortedHashes(members []types.Type) hashSlice {
	hashes := make(hashSlice, len(members))
	for i, m := range members {
		hashes[i] = m.Hash()
	}
	sort.Sort(hashes)
	return hashes[:set.Uniq(hashes)]
}

// common returns the members of a which b can also hold: members present in
// both, plus members overlapping a member of b, narrowed to the smaller of
// the two
func common(a, b types.Type) types.Type {
	aMembers, bMembers := types.Members(a), types.Members(b)
	left, right := sortedHashes(aMembers), sortedHashes(bMembers)
	both := append(slices.Clone(left), right...)
	shared := both[:set.Inter(both, len(left))]

	return types.Map(a, func(m types.Type) types.Type {
		if _, found := slices.BinarySearch(shared, m.Hash()); found {
			return m
		}
		return overlapping(m, bMembers)
	})
}

// overlapping returns m if it is a proper subtype of one of others, or else
// the members of others which are proper subtypes of m.
// Members identical to m are not considered
func overlapping(m types.Type, others []types.Type) types.Type {
	var overlap []types.Type
	for _, n := range others {
		switch {
		case types.Equal(m, n):
		case types.IsAssignable(m, n):
			return m
		case types.IsAssignable(n, m):
			overlap = append(overlap, n)
		}
	}
	return types.UnionOf(overlap...)
}

// extractEquals narrows both sides to what they have in common when they
// are equal. Failing equality does not rule any member out
func extractEquals(_ *Extractor, c Cond) Outcome {
	eq := c.(Equals)
	return Outcome{
		True: func(s Scope) Scope {
			left, okLeft := s.Lookup(eq.Left)
			right, okRight := s.Lookup(eq.Right)
			if !okLeft || !okRight {
				return s
			}
			return s.Narrow(eq.Left, common(left, right)).Narrow(eq.Right, common(right, left))
		},
		False: identity,
	}
}
