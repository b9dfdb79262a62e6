package linkgraph

import "sort"

// unionFind is a disjoint-set structure with path compression and union by
// rank over URL strings.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

func (uf *unionFind) add(x string) {
	if _, ok := uf.parent[x]; ok {
		return
	}
	uf.parent[x] = x
}

func (uf *unionFind) find(x string) string {
	if _, ok := uf.parent[x]; !ok {
		uf.add(x)
		return x
	}
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x])
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y string) {
	rx := uf.find(x)
	ry := uf.find(y)
	if rx == ry {
		return
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
}

// Components partitions the graph into weakly connected components, ignoring
// arc direction. Members of each component are sorted; components are
// ordered by size descending, then by their first member.
//
// A healthy site has one dominant component. Additional components are
// islands the crawler reached but the internal linking does not connect.
func (g *Graph) Components() [][]string {
	uf := newUnionFind()
	for id := range g.nodes {
		uf.add(id)
	}
	for src, dests := range g.out {
		for dst := range dests {
			uf.union(src, dst)
		}
	}

	groups := make(map[string][]string)
	for id := range g.nodes {
		root := uf.find(id)
		groups[root] = append(groups[root], id)
	}

	comps := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		comps = append(comps, members)
	}
	sort.Slice(comps, func(i, j int) bool {
		if len(comps[i]) != len(comps[j]) {
			return len(comps[i]) > len(comps[j])
		}
		return comps[i][0] < comps[j][0]
	})
	return comps
}
