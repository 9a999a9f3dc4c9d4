package types

// Widen replaces literal types with their base primitive: literals at the top
// level and inside unions, and the literal fields of an object one level deep.
//
// It is the inference rule applied to unpinned assignments; UnionOf never
// widens on its own
func Widen(t Type) Type {
	switch t := t.(type) {
	case Object:
		fields := t.Fields()
		for i, f := range fields {
			fields[i].Type = widenLiterals(f.Type)
		}
		return NewObject(fields...)
	case Union:
		return Map(t, Widen)
	default:
		return widenLiterals(t)
	}
}

func widenLiterals(t Type) Type {
	switch t := t.(type) {
	case Literal:
		return Primitive{Kind: t.Base}
	case Union:
		return Map(t, widenLiterals)
	default:
		return t
	}
}

// WidenWithin widens the members of t as far as bound allows. A member whose
// full widening is not assignable to bound keeps its literals, except for
// object fields which can be widened one at a time without leaving bound
func WidenWithin(t, bound Type) Type {
	return Map(t, func(m Type) Type {
		if w := Widen(m); IsAssignable(w, bound) {
			return w
		}
		obj, ok := m.(Object)
		if !ok {
			return m
		}
		fields := obj.Fields()
		for i, f := range fields {
			widened := widenLiterals(f.Type)
			if Equal(widened, f.Type) {
				continue
			}
			fields[i].Type = widened
			if !IsAssignable(NewObject(fields...), bound) {
				fields[i].Type = f.Type
			}
		}
		return NewObject(fields...)
	})
}
