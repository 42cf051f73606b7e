package filter

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Spec describes one named filter of a registry.
//
// Boolean specs set Match. Comparative specs set ValueType and may set
// Compare; without Compare the value under the first needed key is compared
// with CompareValues.
type Spec struct {
	Name        string
	Aliases     []string
	Description string
	NeededKeys  []string

	Match func(item Item) bool

	ValueType ValueType
	Compare   func(item Item, op Operator, value any) bool
	// Operators restricts the accepted operators. Empty means all.
	Operators []Operator
}

// Boolean reports whether the spec is a boolean filter.
func (s *Spec) Boolean() bool {
	return s.Match != nil
}

func (s *Spec) allows(op Operator) bool {
	return len(s.Operators) == 0 || slices.Contains(s.Operators, op)
}

func (s *Spec) compare(item Item, op Operator, value any) bool {
	if s.Compare != nil {
		return s.Compare(item, op, value)
	}
	if len(s.NeededKeys) == 0 {
		return false
	}
	have, ok := item.Get(s.NeededKeys[0])
	if !ok {
		return false
	}
	return CompareValues(have, op, value)
}

// Registry is the set of filters available for one domain.
type Registry struct {
	Domain        Domain
	DefaultFilter string

	boolean     []*Spec
	comparative []*Spec

	aliasOnce sync.Once
	aliases   map[string]*Spec

	programs *lruCache
}

// NewRegistry builds a registry. It panics when defaultFilter does not name
// one of the comparative specs, which is a programming error.
func NewRegistry(domain Domain, defaultFilter string, boolean, comparative []*Spec) *Registry {
	r := &Registry{
		Domain:        domain,
		DefaultFilter: defaultFilter,
		boolean:       boolean,
		comparative:   comparative,
		programs:      newLRUCache(256, 30*time.Minute),
	}
	if !slices.ContainsFunc(comparative, func(s *Spec) bool { return s.Name == defaultFilter }) {
		panic("filter: registry " + string(domain) + " has no default filter " + defaultFilter)
	}
	return r
}

func (r *Registry) aliasTable() map[string]*Spec {
	r.aliasOnce.Do(func() {
		r.aliases = make(map[string]*Spec)
		for _, s := range r.Specs() {
			r.aliases[s.Name] = s
			for _, a := range s.Aliases {
				r.aliases[a] = s
			}
		}
	})
	return r.aliases
}

// Lookup resolves a filter name or alias.
func (r *Registry) Lookup(name string) (*Spec, bool) {
	s, ok := r.aliasTable()[strings.ToLower(name)]
	return s, ok
}

// Default returns the DEFAULT filter spec.
func (r *Registry) Default() *Spec {
	s, _ := r.Lookup(r.DefaultFilter)
	return s
}

// Specs returns boolean specs followed by comparative specs.
func (r *Registry) Specs() []*Spec {
	return slices.Concat(r.boolean, r.comparative)
}

// BooleanSpecs returns the boolean filters.
func (r *Registry) BooleanSpecs() []*Spec {
	return slices.Clone(r.boolean)
}

// ComparativeSpecs returns the comparative filters.
func (r *Registry) ComparativeSpecs() []*Spec {
	return slices.Clone(r.comparative)
}

// names returns every name and alias, used for suggestions.
func (r *Registry) names() []string {
	out := make([]string, 0, len(r.aliasTable()))
	for name := range r.aliasTable() {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

var registries = map[Domain]*Registry{}

func register(r *Registry) *Registry {
	registries[r.Domain] = r
	return r
}

// ForDomain returns the registry of a domain.
func ForDomain(d Domain) (*Registry, bool) {
	r, ok := registries[d]
	return r, ok
}
