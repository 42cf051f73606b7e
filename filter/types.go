package filter

import (
	"maps"
	"slices"
)

// Item is a single remote object (torrent, file, peer, tracker or setting)
// whose fields are addressed by key name.
type Item interface {
	Get(key string) (any, bool)
}

// Fields is the map backed Item produced by the backends.
type Fields map[string]any

// Get returns the value stored under key.
func (f Fields) Get(key string) (any, bool) {
	v, ok := f[key]
	return v, ok
}

// KeySet is a set of item key names.
type KeySet map[string]struct{}

// Keys builds a KeySet from names.
func Keys(names ...string) KeySet {
	s := make(KeySet, len(names))
	s.Add(names...)
	return s
}

// Add inserts names into the set.
func (s KeySet) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// Has reports whether name is in the set.
func (s KeySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns a new set holding the keys of s and every other set.
func (s KeySet) Union(others ...KeySet) KeySet {
	out := s.Clone()
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// Clone returns a copy of s. A nil set clones to an empty one.
func (s KeySet) Clone() KeySet {
	out := make(KeySet, len(s))
	maps.Copy(out, s)
	return out
}

// Equal reports whether both sets hold the same keys.
func (s KeySet) Equal(o KeySet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the keys in lexical order.
func (s KeySet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Operator is a comparison operator of a filter expression.
type Operator string

const (
	OpNone         Operator = ""
	OpEqual        Operator = "="
	OpContains     Operator = "~"
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// operators in scan order; two character operators first.
var operators = []Operator{OpGreaterEqual, OpLessEqual, OpEqual, OpContains, OpGreater, OpLess}

// Matcher selects items. Filter and the And/Or composites implement it.
type Matcher interface {
	Match(item Item) bool
	NeededKeys() KeySet
	String() string
}

// Domain names the kind of item a registry filters.
type Domain string

const (
	DomainTorrent Domain = "torrent"
	DomainFile    Domain = "file"
	DomainPeer    Domain = "peer"
	DomainTracker Domain = "tracker"
	DomainSetting Domain = "setting"
)
