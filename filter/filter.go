package filter

// Filter is a parsed, immutable filter expression. Filters are comparable:
// two filters parsed from equivalent expressions are == and may be used as
// map keys.
type Filter struct {
	registry *Registry
	spec     *Spec
	invert   bool
	op       Operator
	value    any
}

// Name returns the canonical filter name, "all" for the match-all filter.
func (f Filter) Name() string {
	if f.spec == nil {
		return "all"
	}
	return f.spec.Name
}

// Inverted reports whether the filter is negated.
func (f Filter) Inverted() bool { return f.invert }

// Operator returns the comparison operator, OpNone for boolean use.
func (f Filter) Operator() Operator { return f.op }

// Value returns the coerced comparison value.
func (f Filter) Value() any { return f.value }

// Registry returns the registry the filter was parsed with.
func (f Filter) Registry() *Registry { return f.registry }

// IsAll reports whether the filter matches every item.
func (f Filter) IsAll() bool {
	return f.spec == nil && !f.invert
}

// Match reports whether item passes the filter.
func (f Filter) Match(item Item) bool {
	return f.matches(item) != f.invert
}

func (f Filter) matches(item Item) bool {
	switch {
	case f.spec == nil:
		return true
	case f.op == OpNone && f.spec.Boolean():
		return f.spec.Match(item)
	case f.op == OpNone:
		for _, k := range f.spec.NeededKeys {
			v, ok := item.Get(k)
			if !ok || !truthy(v) {
				return false
			}
		}
		return true
	case f.spec.ValueType == TypeExpression:
		return f.registry.matchExpr(item, f.value.(string))
	default:
		return f.spec.compare(item, f.op, f.value)
	}
}

// NeededKeys returns the item keys the filter reads.
func (f Filter) NeededKeys() KeySet {
	if f.spec == nil {
		return KeySet{}
	}
	if f.spec.ValueType == TypeExpression && f.op != OpNone {
		return f.registry.exprKeys(f.value.(string))
	}
	return Keys(f.spec.NeededKeys...)
}

// String renders the filter in canonical form; parsing it yields an equal
// filter.
func (f Filter) String() string {
	if f.spec == nil {
		if f.invert {
			return "!all"
		}
		return "all"
	}
	if f.op == OpNone {
		if f.invert {
			return "!" + f.spec.Name
		}
		return f.spec.Name
	}
	s := f.spec.Name
	if f.invert {
		s += "!"
	}
	return s + string(f.op) + FormatValue(f.spec.ValueType, f.value)
}

// Apply returns the items matched by m, or the ones it rejects when invert
// is set. A nil Matcher matches everything.
func Apply[T Item](m Matcher, items []T, invert bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if (m == nil || m.Match(it)) != invert {
			out = append(out, it)
		}
	}
	return out
}

// Values is like Apply but yields the value under key of each match.
func Values[T Item](m Matcher, items []T, invert bool, key string) []any {
	matched := Apply(m, items, invert)
	out := make([]any, 0, len(matched))
	for _, it := range matched {
		v, _ := it.Get(key)
		out = append(out, v)
	}
	return out
}
