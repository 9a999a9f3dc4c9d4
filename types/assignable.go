package types

// IsAssignable reports whether a value of type source may be used where
// target is expected.
//
// The relation is structural: objects are compared field by field with width
// subtyping, a union source must fit the target with every member, and a
// union target accepts a source fitting at least one of its members
func IsAssignable(source, target Type) bool {
	if Equal(source, target) {
		return true
	}
	// extremes
	switch {
	case IsAny(source) || IsAny(target):
		return true
	case IsUnknown(target):
		return true
	case IsUnknown(source):
		return false
	case IsNever(source):
		return true
	case IsNever(target):
		return false
	}
	// unions
	if sourceUnion, ok := source.(Union); ok {
		// (A | B <: C) => (A <: C and B <: C)
		for _, m := range sourceUnion.members {
			if !IsAssignable(m, target) {
				return false
			}
		}
		return true
	}
	if targetUnion, ok := target.(Union); ok {
		// (A <: B | C) => (A <: B or A <: C)
		for _, m := range targetUnion.members {
			if IsAssignable(source, m) {
				return true
			}
		}
		return false
	}
	switch source := source.(type) {
	case Primitive:
		target, ok := target.(Primitive)
		return ok && source.Kind == target.Kind
	case Literal:
		switch target := target.(type) {
		case Literal:
			return source == target
		case Primitive:
			return source.Base == target.Kind
		}
		return false
	case Object:
		target, ok := target.(Object)
		return ok && isAssignableObject(source, target)
	case FunctionType:
		_, ok := target.(FunctionType)
		return ok
	}
	return false
}

// isAssignableObject is true if for each field in target there is a matching
// field in source. Extra fields in source are allowed
func isAssignableObject(source, target Object) bool {
	for _, targetField := range target.fields {
		sourceField, ok := source.Field(targetField.Name)
		if !ok {
			if targetField.Optional {
				continue
			}
			return false
		}
		// a possibly-absent source field only fits a required target field
		// which accepts undefined
		if sourceField.Optional && !targetField.Optional && !IsAssignable(Undefined, targetField.Type) {
			return false
		}
		if !IsAssignable(sourceField.Type, targetField.Type) {
			return false
		}
	}
	return true
}
