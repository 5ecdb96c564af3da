package schema

import "sort"

// JoinGraph is the undirected table graph induced by foreign keys.
// Parallel foreign keys between the same pair of tables collapse to one edge.
type JoinGraph struct {
	adjacency map[string]map[string]struct{}
}

func newJoinGraph(c *Catalog) *JoinGraph {
	g := &JoinGraph{adjacency: make(map[string]map[string]struct{}, len(c.tables))}
	for name := range c.tables {
		g.adjacency[name] = make(map[string]struct{})
	}
	for fk := range c.fkIndex {
		g.adjacency[fk.OwningTable][fk.ReferencedTable] = struct{}{}
		g.adjacency[fk.ReferencedTable][fk.OwningTable] = struct{}{}
	}
	return g
}

// Neighbors returns the tables adjacent to table, sorted.
func (g *JoinGraph) Neighbors(table string) []string {
	adj := g.adjacency[canonical(table)]
	out := make([]string, 0, len(adj))
	for n := range adj {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Connected reports whether tables form a single connected component using
// only edges whose endpoints are both in tables. Empty and singleton sets are
// connected. A path through a table outside the set does not count.
func (g *JoinGraph) Connected(tables []string) bool {
	members := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		members[canonical(t)] = struct{}{}
	}
	if len(members) <= 1 {
		return true
	}

	var start string
	for t := range members {
		start = t
		break
	}

	visited := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range g.adjacency[cur] {
			if _, in := members[next]; !in {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}

	return len(visited) == len(members)
}
