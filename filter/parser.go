package filter

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse parses a single filter expression of the form
// [!]NAME[!]OPERATOR[VALUE] against the registry.
//
// An empty expression yields the filter matching everything. A NAME that is
// not a known filter and comes without operator is looked up with the
// DEFAULT filter and the ~ operator.
func (r *Registry) Parse(expression string) (Filter, error) {
	if strings.TrimSpace(expression) == "" {
		return Filter{registry: r}, nil
	}

	namePart, op, value, opInvert := splitExpression(expression)

	spaceBeforeOp := namePart != "" && unicode.IsSpace(rune(namePart[len(namePart)-1]))
	name := strings.TrimSpace(namePart)
	invert := false
	if strings.HasPrefix(name, "!") {
		invert = true
		name = strings.TrimSpace(name[1:])
	}
	invert = invert != opInvert
	if spaceBeforeOp {
		value = strings.TrimSpace(value)
	}

	if op == OpNone {
		return r.parseBare(expression, name, invert)
	}
	if value == "" {
		return Filter{}, &ParseError{Expression: expression, Reason: "operator without value", Err: ErrMalformed}
	}

	var spec *Spec
	if name == "" {
		spec = r.Default()
	} else {
		var ok bool
		if spec, ok = r.Lookup(name); !ok {
			return Filter{}, &ParseError{
				Expression:  expression,
				Reason:      fmt.Sprintf("no %s filter named %q", r.Domain, name),
				Suggestions: Suggest(name, r.names()),
				Err:         ErrUnknownFilter,
			}
		}
	}
	if spec.Boolean() {
		return Filter{}, &ParseError{
			Expression: expression,
			Reason:     fmt.Sprintf("%s is a boolean filter and takes no value", spec.Name),
			Err:        ErrOperatorMismatch,
		}
	}
	if op == OpContains && !spec.ValueType.IsString() {
		return Filter{}, &ParseError{
			Expression: expression,
			Reason:     fmt.Sprintf("%s takes a %s value, ~ needs a string", spec.Name, spec.ValueType),
			Err:        ErrOperatorMismatch,
		}
	}
	if !spec.allows(op) {
		return Filter{}, &ParseError{
			Expression: expression,
			Reason:     fmt.Sprintf("%s does not accept %s", spec.Name, op),
			Err:        ErrOperatorMismatch,
		}
	}

	coerced, err := r.coerce(spec, value)
	if err != nil {
		return Filter{}, &ParseError{
			Expression: expression,
			Reason:     fmt.Sprintf("%s expects a %s: %v", spec.Name, spec.ValueType, err),
			Err:        ErrInvalidValue,
		}
	}

	return Filter{registry: r, spec: spec, invert: invert, op: op, value: coerced}, nil
}

// MustParse is like Parse but panics on error.
func (r *Registry) MustParse(expression string) Filter {
	f, err := r.Parse(expression)
	if err != nil {
		panic(err)
	}
	return f
}

func (r *Registry) parseBare(expression, name string, invert bool) (Filter, error) {
	if name == "" {
		return Filter{}, &ParseError{Expression: expression, Reason: "missing filter name", Err: ErrMalformed}
	}
	spec, ok := r.Lookup(name)
	if !ok {
		return Filter{registry: r, spec: r.Default(), invert: invert, op: OpContains, value: name}, nil
	}
	if spec.Name == "all" {
		return Filter{registry: r, invert: invert}, nil
	}
	return Filter{registry: r, spec: spec, invert: invert}, nil
}

func (r *Registry) coerce(spec *Spec, value string) (any, error) {
	v, err := Coerce(spec.ValueType, value)
	if err != nil {
		return nil, err
	}
	if spec.ValueType == TypeExpression {
		if _, err := r.program(value); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// splitExpression cuts an expression at its first operator. A '!' directly
// before the operator belongs to it and is reported as opInvert.
func splitExpression(s string) (name string, op Operator, value string, opInvert bool) {
	for i := 0; i < len(s); i++ {
		for _, candidate := range operators {
			if !strings.HasPrefix(s[i:], string(candidate)) {
				continue
			}
			name = s[:i]
			if i > 0 && s[i-1] == '!' {
				name = s[:i-1]
				opInvert = true
			}
			return name, candidate, s[i+len(candidate):], opInvert
		}
	}
	return s, OpNone, "", false
}
