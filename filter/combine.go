package filter

import "strings"

// AndFilter matches items matched by every member.
type AndFilter []Matcher

// OrFilter matches items matched by any member.
type OrFilter []Matcher

// And combines matchers with logical AND. Nested AndFilters are flattened
// and match-all members are dropped; nil means everything.
func And(ms ...Matcher) Matcher {
	var out AndFilter
	for _, m := range ms {
		switch v := m.(type) {
		case nil:
			continue
		case AndFilter:
			out = append(out, v...)
		case Filter:
			if v.IsAll() {
				continue
			}
			out = append(out, v)
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// Or combines matchers with logical OR. Nested OrFilters are flattened and
// duplicates removed. Any match-all member makes the result nil.
func Or(ms ...Matcher) Matcher {
	var out OrFilter
	seen := make(map[string]bool)
	for _, m := range ms {
		if m == nil {
			return nil
		}
		if f, ok := m.(Filter); ok && f.IsAll() {
			return nil
		}
		members := []Matcher{m}
		if nested, ok := m.(OrFilter); ok {
			members = nested
		}
		for _, mm := range members {
			key := mm.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, mm)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (a AndFilter) Match(item Item) bool {
	for _, m := range a {
		if !m.Match(item) {
			return false
		}
	}
	return true
}

func (a AndFilter) NeededKeys() KeySet {
	keys := KeySet{}
	for _, m := range a {
		keys = keys.Union(m.NeededKeys())
	}
	return keys
}

func (a AndFilter) String() string {
	parts := make([]string, len(a))
	for i, m := range a {
		s := m.String()
		if _, ok := m.(OrFilter); ok {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, "&")
}

func (o OrFilter) Match(item Item) bool {
	for _, m := range o {
		if m.Match(item) {
			return true
		}
	}
	return false
}

func (o OrFilter) NeededKeys() KeySet {
	keys := KeySet{}
	for _, m := range o {
		keys = keys.Union(m.NeededKeys())
	}
	return keys
}

func (o OrFilter) String() string {
	parts := make([]string, len(o))
	for i, m := range o {
		parts[i] = m.String()
	}
	return strings.Join(parts, "|")
}

// ParseArgs parses filter arguments as split by a command line: "|" and "&"
// tokens combine the expressions around them, adjacent expressions are
// joined with AND. AND binds tighter than OR. No arguments yield nil.
func (r *Registry) ParseArgs(args ...string) (Matcher, error) {
	var (
		groups []Matcher
		terms  []Matcher
	)
	expectTerm := true
	for _, arg := range args {
		switch arg {
		case "|":
			if expectTerm {
				return nil, &ParseError{Expression: strings.Join(args, " "), Reason: "dangling |", Err: ErrMalformed}
			}
			groups = append(groups, And(terms...))
			terms = nil
			expectTerm = true
		case "&":
			if expectTerm {
				return nil, &ParseError{Expression: strings.Join(args, " "), Reason: "dangling &", Err: ErrMalformed}
			}
			expectTerm = true
		default:
			f, err := r.Parse(arg)
			if err != nil {
				return nil, err
			}
			terms = append(terms, f)
			expectTerm = false
		}
	}
	if len(args) == 0 {
		return nil, nil
	}
	if expectTerm {
		return nil, &ParseError{Expression: strings.Join(args, " "), Reason: "expression ends with an operator", Err: ErrMalformed}
	}
	groups = append(groups, And(terms...))
	return Or(groups...), nil
}
