package filter

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Suggest returns up to three candidates close to name, best first.
func Suggest(name string, candidates []string) []string {
	name = strings.ToLower(name)
	type scored struct {
		name string
		dist int
	}
	var hits []scored
	for _, c := range candidates {
		dist := fuzzy.LevenshteinDistance(name, c)
		if dist <= 2 || fuzzy.MatchFold(name, c) {
			hits = append(hits, scored{c, dist})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int {
		return a.dist - b.dist
	})

	out := make([]string, 0, 3)
	for _, h := range hits {
		if len(out) == 3 {
			break
		}
		out = append(out, h.name)
	}
	return out
}
