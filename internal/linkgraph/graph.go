// Package linkgraph models a website's internal links as a directed, weighted
// graph. It aggregates raw crawl edges, builds the standard and
// position-weighted graph variants, and scores pages with power-iteration
// PageRank.
package linkgraph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptyGraph is returned when no internal URLs or no qualifying internal
// links remain after filtering. It signals malformed input rather than a
// recoverable condition.
var ErrEmptyGraph = errors.New("empty link graph")

// ErrNodeNotFound is returned when an edge references a URL that is not a node.
var ErrNodeNotFound = errors.New("node not found")

// ErrSelfEdge is returned when an edge would link a page to itself.
var ErrSelfEdge = errors.New("self-referencing edge")

// ErrNegativeWeight is returned when an edge weight is below zero.
var ErrNegativeWeight = errors.New("negative edge weight")

// Graph is a directed graph of page URLs. Parallel arcs between the same
// pair of nodes are merged by summing their weights.
type Graph struct {
	nodes map[string]struct{}
	// out maps source URL → destination URL → accumulated weight.
	out map[string]map[string]float64
	// in maps destination URL → source URL → accumulated weight.
	in map[string]map[string]float64
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		out:   make(map[string]map[string]float64),
		in:    make(map[string]map[string]float64),
	}
}

// AddNode adds a URL to the graph. Adding an existing URL is a no-op.
func (g *Graph) AddNode(url string) {
	if _, ok := g.nodes[url]; ok {
		return
	}
	g.nodes[url] = struct{}{}
	g.out[url] = make(map[string]float64)
	g.in[url] = make(map[string]float64)
}

// HasNode reports whether url is a node of the graph.
func (g *Graph) HasNode(url string) bool {
	_, ok := g.nodes[url]
	return ok
}

// AddEdge adds weight to the arc from → to. Both nodes must exist.
func (g *Graph) AddEdge(from, to string, weight float64) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	if weight < 0 {
		return fmt.Errorf("%w: %s → %s (%g)", ErrNegativeWeight, from, to, weight)
	}
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	g.out[from][to] += weight
	g.in[to][from] += weight
	return nil
}

// Weight returns the accumulated weight of the arc from → to, or 0.
func (g *Graph) Weight(from, to string) float64 {
	return g.out[from][to]
}

// OutWeight returns the total weight leaving url. Arcs are summed in
// destination order so the result does not depend on map iteration.
func (g *Graph) OutWeight(url string) float64 {
	var sum float64
	for _, dst := range sortedKeys(g.out[url]) {
		sum += g.out[url][dst]
	}
	return sum
}

// OutDegree returns the number of distinct destinations linked from url.
func (g *Graph) OutDegree(url string) int {
	return len(g.out[url])
}

// InDegree returns the number of distinct sources linking to url.
func (g *Graph) InDegree(url string) int {
	return len(g.in[url])
}

// Nodes returns all URLs in the graph, sorted alphabetically.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct arcs.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, dests := range g.out {
		n += len(dests)
	}
	return n
}

// Isolated returns the URLs with neither incoming nor outgoing arcs,
// sorted alphabetically.
func (g *Graph) Isolated() []string {
	var result []string
	for id := range g.nodes {
		if len(g.out[id]) == 0 && len(g.in[id]) == 0 {
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result
}
