package rules

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning reports a multi-hop cycle among fields: a chain of rules whose
// targets are, directly or transitively, triggers of the first rule.
//
// The engine never re-enters dispatch on its own writes, so a cycle is inert
// unless the host re-observes derived fields (see engine.WithSettle). Cycles
// are warnings, not errors; self-loops are rejected by NewRuleSet.
type CycleWarning struct {
	Path    []string `json:"path"`
	Rules   []string `json:"rules"`
	Message string   `json:"message"`
}

// fieldGraph maps trigger field → target fields, with the IDs of the rules
// that create each edge.
type fieldGraph struct {
	edges map[string][]string
	via   map[[2]string][]string
}

func buildFieldGraph(rules []Rule) fieldGraph {
	g := fieldGraph{
		edges: make(map[string][]string),
		via:   make(map[[2]string][]string),
	}
	for _, r := range rules {
		from, to := r.Trigger.Field, r.Target()
		if _, ok := g.edges[from]; !ok {
			g.edges[from] = []string{}
		}
		if _, ok := g.edges[to]; !ok {
			g.edges[to] = []string{}
		}
		key := [2]string{from, to}
		if _, ok := g.via[key]; !ok {
			g.edges[from] = append(g.edges[from], to)
		}
		g.via[key] = append(g.via[key], r.ID)
	}
	return g
}

// Dependents returns the fields written by rules triggered by field, in
// declaration order of first appearance.
func (rs *RuleSet) Dependents(field string) []string {
	return slices.Clone(rs.graph.edges[field])
}

// Edges returns every trigger → target edge as "trigger -> target", sorted.
func (rs *RuleSet) Edges() []string {
	var out []string
	for from, tos := range rs.graph.edges {
		for _, to := range tos {
			out = append(out, from+" -> "+to)
		}
	}
	slices.Sort(out)
	return out
}

// Cycles returns a warning for each strongly connected component of the field
// graph with more than one field. The result is sorted by path and is empty
// for an acyclic rule set.
func (rs *RuleSet) Cycles() []CycleWarning {
	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(rs.graph.edges) {
		if len(scc) < 2 {
			continue
		}
		path := cyclePath(scc, rs.graph.edges)
		var ruleIDs []string
		for i := 0; i+1 < len(path); i++ {
			ruleIDs = append(ruleIDs, rs.graph.via[[2]string{path[i], path[i+1]}]...)
		}
		warnings = append(warnings, CycleWarning{
			Path:    path,
			Rules:   ruleIDs,
			Message: fmt.Sprintf("field cycle: %s", strings.Join(path, " → ")),
		})
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return slices.Compare(a.Path, b.Path)
	})
	return warnings
}

// tarjanSCC finds strongly connected components. Nodes are visited in sorted
// order so the output is deterministic.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// cyclePath walks an SCC from its smallest field back to itself using a
// breadth-first search restricted to SCC members, so the path is a real
// sequence of edges.
func cyclePath(scc []string, graph map[string][]string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := slices.Min(scc)

	prev := map[string]string{}
	queue := []string{start}
	visited := map[string]bool{start: true}
	var last string
	for len(queue) > 0 && last == "" {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range graph[cur] {
			if !members[next] {
				continue
			}
			if next == start {
				last = cur
				break
			}
			if !visited[next] {
				visited[next] = true
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	if last == "" {
		return []string{start}
	}

	path := []string{start}
	for n := last; n != start; n = prev[n] {
		path = append(path, n)
	}
	slices.Reverse(path[1:])
	return append(path, start)
}
