package route

import (
	"sort"

	"github.com/roach88/tagtime/internal/ping"
)

// Route returns the sorted, de-duplicated graph names the entry goes to.
// Returns an empty slice (not nil) when nothing matches; that is not an error.
// Rules see e.RoutingTags(), so non-answered entries also carry "retro".
func Route(e ping.Entry, rules []Rule) []string {
	tags := e.RoutingTags()
	seen := make(map[string]struct{})
	graphs := []string{}
	for _, r := range rules {
		if _, dup := seen[r.Graph]; dup {
			continue
		}
		if r.Matches(tags) {
			seen[r.Graph] = struct{}{}
			graphs = append(graphs, r.Graph)
		}
	}
	sort.Strings(graphs)
	return graphs
}

// RoutesTo reports whether the entry goes to graph under rules.
// Several rules may name the same graph; any one of them matching suffices.
func RoutesTo(e ping.Entry, graph string, rules []Rule) bool {
	tags := e.RoutingTags()
	for _, r := range rules {
		if r.Graph == graph && r.Matches(tags) {
			return true
		}
	}
	return false
}

// Graphs lists distinct graph names in declaration order.
func Graphs(rules []Rule) []string {
	seen := make(map[string]struct{}, len(rules))
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if _, dup := seen[r.Graph]; dup {
			continue
		}
		seen[r.Graph] = struct{}{}
		out = append(out, r.Graph)
	}
	return out
}
