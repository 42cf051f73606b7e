package filter

import (
	"slices"
	"strings"
	"time"
)

func getString(item Item, key string) string {
	v, _ := item.Get(key)
	s, _ := v.(string)
	return s
}

func getFloat(item Item, key string) float64 {
	v, _ := item.Get(key)
	f, _ := toFloat(v)
	return f
}

func getBool(item Item, key string) bool {
	v, _ := item.Get(key)
	b, _ := v.(bool)
	return b
}

func getTime(item Item, key string) time.Time {
	v, _ := item.Get(key)
	t, _ := v.(time.Time)
	return t
}

// stateIn builds a boolean matcher on the "state" key.
func stateIn(states ...string) func(Item) bool {
	return func(item Item) bool {
		return slices.Contains(states, getString(item, "state"))
	}
}

func positive(key string) func(Item) bool {
	return func(item Item) bool {
		return getFloat(item, key) > 0
	}
}

func boolean(name string, aliases []string, desc string, keys []string, match func(Item) bool) *Spec {
	return &Spec{Name: name, Aliases: aliases, Description: desc, NeededKeys: keys, Match: match}
}

func comparative(name string, aliases []string, desc string, vt ValueType, keys ...string) *Spec {
	return &Spec{Name: name, Aliases: aliases, Description: desc, ValueType: vt, NeededKeys: keys}
}

// caseless builds a comparative spec whose string values compare without
// regard to case on either side.
func caseless(name string, aliases []string, desc string, key string) *Spec {
	s := comparative(name, aliases, desc, TypeString, key)
	s.Compare = func(item Item, op Operator, value any) bool {
		have, ok := item.Get(key)
		if !ok {
			return false
		}
		hs, _ := have.(string)
		want, _ := value.(string)
		return compareStrings(strings.ToLower(hs), op, strings.ToLower(want))
	}
	return s
}

func allSpec() *Spec {
	return boolean("all", []string{"*"}, "All items", nil, func(Item) bool { return true })
}
