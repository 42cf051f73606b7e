// Package sorter orders items by named criteria such as "size,!name".
package sorter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/s0up4200/torq/filter"
)

var (
	ErrUnknownSort  = errors.New("unknown sort order")
	ErrIncompatible = errors.New("sorters belong to different registries")
)

// ParseError indicates a sort specification could not be parsed.
type ParseError struct {
	Token       string
	Domain      filter.Domain
	Suggestions []string
	Err         error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s for %ss: '%s'", e.Err, e.Domain, e.Token)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Spec is a named sort order.
type Spec struct {
	Name        string
	Aliases     []string
	Description string
	NeededKeys  []string
	// Compare returns a negative number when a sorts before b.
	Compare func(a, b filter.Item) int
}

// Registry is the set of sort orders available for one domain.
type Registry struct {
	Domain      filter.Domain
	DefaultSort string

	specs []*Spec

	aliasOnce sync.Once
	aliases   map[string]*Spec
}

// NewRegistry builds a registry. It panics when defaultSort is not one of
// specs.
func NewRegistry(domain filter.Domain, defaultSort string, specs ...*Spec) *Registry {
	if !slices.ContainsFunc(specs, func(s *Spec) bool { return s.Name == defaultSort }) {
		panic("sorter: registry " + string(domain) + " has no default sort " + defaultSort)
	}
	return &Registry{Domain: domain, DefaultSort: defaultSort, specs: specs}
}

// Lookup resolves a sort name or alias.
func (r *Registry) Lookup(name string) (*Spec, bool) {
	r.aliasOnce.Do(func() {
		r.aliases = make(map[string]*Spec)
		for _, s := range r.specs {
			r.aliases[s.Name] = s
			for _, a := range s.Aliases {
				r.aliases[a] = s
			}
		}
	})
	s, ok := r.aliases[strings.ToLower(name)]
	return s, ok
}

// Default returns the DEFAULT sort spec.
func (r *Registry) Default() *Spec {
	s, _ := r.Lookup(r.DefaultSort)
	return s
}

// Specs returns the sort specs ordered by name.
func (r *Registry) Specs() []*Spec {
	out := slices.Clone(r.specs)
	slices.SortFunc(out, func(a, b *Spec) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (r *Registry) names() []string {
	var out []string
	for _, s := range r.specs {
		out = append(out, s.Name)
		out = append(out, s.Aliases...)
	}
	return out
}

type criterion struct {
	spec    *Spec
	reverse bool
}

// Sorter is an immutable, ordered list of sort criteria. The first
// criterion is primary; the registry DEFAULT sort breaks remaining ties.
type Sorter struct {
	registry *Registry
	criteria []criterion
}

// Parse parses a comma separated sort specification like "size,!name".
func Parse(r *Registry, spec string) (*Sorter, error) {
	return New(r, strings.Split(spec, ",")...)
}

// New builds a Sorter from tokens. A token prefixed with '!' or '.' sorts in
// reverse. Tokens may themselves contain commas. Empty tokens are skipped
// and a repeated sort keeps its first position.
func New(r *Registry, tokens ...string) (*Sorter, error) {
	s := &Sorter{registry: r}
	for _, raw := range tokens {
		for _, token := range strings.Split(raw, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			reverse := false
			for strings.HasPrefix(token, "!") || strings.HasPrefix(token, ".") {
				reverse = !reverse
				token = strings.TrimSpace(token[1:])
			}
			spec, ok := r.Lookup(token)
			if !ok {
				return nil, &ParseError{
					Token:       token,
					Domain:      r.Domain,
					Suggestions: filter.Suggest(token, r.names()),
					Err:         ErrUnknownSort,
				}
			}
			if s.index(spec) >= 0 {
				continue
			}
			s.criteria = append(s.criteria, criterion{spec: spec, reverse: reverse})
		}
	}
	return s, nil
}

// MustParse is like Parse but panics on error.
func MustParse(r *Registry, spec string) *Sorter {
	s, err := Parse(r, spec)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Sorter) index(spec *Spec) int {
	return slices.IndexFunc(s.criteria, func(c criterion) bool { return c.spec == spec })
}

// Registry returns the registry the sorter was built with.
func (s *Sorter) Registry() *Registry {
	return s.registry
}

// Compare orders two items by every criterion, then by the DEFAULT sort.
func (s *Sorter) Compare(a, b filter.Item) int {
	for _, c := range s.criteria {
		if n := c.spec.Compare(a, b); n != 0 {
			if c.reverse {
				return -n
			}
			return n
		}
	}
	def := s.registry.Default()
	if s.index(def) >= 0 {
		return 0
	}
	return def.Compare(a, b)
}

// Apply returns a sorted copy of items.
func (s *Sorter) Apply(items []filter.Item) []filter.Item {
	out := slices.Clone(items)
	s.ApplyInPlace(out)
	return out
}

// ApplyInPlace sorts items in place. The sort is stable.
func (s *Sorter) ApplyInPlace(items []filter.Item) {
	slices.SortStableFunc(items, s.Compare)
}

// ApplyFunc sorts arbitrary values in place by the item key returns.
func ApplyFunc[T any](s *Sorter, values []T, key func(T) filter.Item) {
	slices.SortStableFunc(values, func(a, b T) int {
		return s.Compare(key(a), key(b))
	})
}

// Add returns a sorter with the criteria of other appended. Criteria
// already present move to their new position and direction.
func (s *Sorter) Add(other *Sorter) (*Sorter, error) {
	if other.registry != s.registry {
		return nil, ErrIncompatible
	}
	out := &Sorter{registry: s.registry}
	for _, c := range s.criteria {
		if other.index(c.spec) < 0 {
			out.criteria = append(out.criteria, c)
		}
	}
	out.criteria = append(out.criteria, other.criteria...)
	return out, nil
}

// Remove returns a sorter without the criteria named in other.
func (s *Sorter) Remove(other *Sorter) (*Sorter, error) {
	if other.registry != s.registry {
		return nil, ErrIncompatible
	}
	out := &Sorter{registry: s.registry}
	for _, c := range s.criteria {
		if other.index(c.spec) < 0 {
			out.criteria = append(out.criteria, c)
		}
	}
	return out, nil
}

// NeededKeys is the union of keys read by the criteria and the DEFAULT sort.
func (s *Sorter) NeededKeys() filter.KeySet {
	keys := filter.Keys(s.registry.Default().NeededKeys...)
	for _, c := range s.criteria {
		keys.Add(c.spec.NeededKeys...)
	}
	return keys
}

// String renders the sorter; Parse of the result yields an equal sorter.
func (s *Sorter) String() string {
	parts := make([]string, len(s.criteria))
	for i, c := range s.criteria {
		if c.reverse {
			parts[i] = "!" + c.spec.Name
		} else {
			parts[i] = c.spec.Name
		}
	}
	return strings.Join(parts, ",")
}

// Equal reports whether both sorters have the same criteria.
func (s *Sorter) Equal(other *Sorter) bool {
	return s.registry == other.registry && slices.Equal(s.criteria, other.criteria)
}
