package linkgraph

import (
	"math"
	"sort"
)

// PageRankOptions configures the iterative PageRank algorithm.
type PageRankOptions struct {
	Damping       float64 `mapstructure:"damping" toml:"damping"`               // damping factor; typically 0.85
	Tolerance     float64 `mapstructure:"tolerance" toml:"tolerance"`           // per-node convergence threshold
	MaxIterations int     `mapstructure:"max_iterations" toml:"max_iterations"` // upper bound on iterations
}

// DefaultPageRankOptions returns production-ready defaults:
// damping 0.85, tolerance 1e-6, max 100 iterations.
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{
		Damping:       0.85,
		Tolerance:     1e-6,
		MaxIterations: 100,
	}
}

// Ranking is the outcome of a PageRank pass.
type Ranking struct {
	// Scores maps every node URL to its authority. Scores sum to 1.
	Scores map[string]float64
	// Iterations is the number of power-iteration steps performed.
	Iterations int
	// Converged reports whether the L1 change dropped below N*Tolerance
	// before MaxIterations was reached.
	Converged bool
	// Delta is the L1 change of the final step.
	Delta float64
}

// PageRank computes authority scores for every node with power iteration.
// Each node spreads its rank over its outgoing arcs in proportion to the
// arc weights. Nodes without outgoing weight (dangling pages) redistribute
// their rank uniformly across all nodes, and every node receives the
// (1-Damping)/N restart share, so isolated pages keep a strictly positive
// floor.
//
// Iteration stops once the L1 distance between successive iterates is below
// N*Tolerance. If MaxIterations is reached first, the last iterate is
// returned with Converged set to false.
func (g *Graph) PageRank(opts PageRankOptions) Ranking {
	ids := g.Nodes()
	n := len(ids)
	if n == 0 {
		return Ranking{Scores: make(map[string]float64), Converged: true}
	}

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	// Precompute the row-normalised in-arcs of every node so each step is a
	// single pass over the arc list.
	type inArc struct {
		src int
		p   float64
	}
	incoming := make([][]inArc, n)
	dangling := make([]bool, n)
	for i, id := range ids {
		total := g.OutWeight(id)
		if total <= 0 {
			dangling[i] = true
			continue
		}
		for _, dst := range sortedKeys(g.out[id]) {
			w := g.out[id][dst]
			if w <= 0 {
				continue
			}
			j := index[dst]
			incoming[j] = append(incoming[j], inArc{src: i, p: w / total})
		}
	}

	nf := float64(n)
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / nf
	}
	next := make([]float64, n)

	result := Ranking{}
	for iter := 0; iter < opts.MaxIterations; iter++ {
		var danglingSum float64
		for i, d := range dangling {
			if d {
				danglingSum += rank[i]
			}
		}
		share := (opts.Damping*danglingSum + (1.0 - opts.Damping)) / nf

		for v := 0; v < n; v++ {
			var sum float64
			for _, a := range incoming[v] {
				sum += rank[a.src] * a.p
			}
			next[v] = opts.Damping*sum + share
		}

		delta := 0.0
		for i := range rank {
			delta += math.Abs(next[i] - rank[i])
		}

		rank, next = next, rank
		result.Iterations = iter + 1
		result.Delta = delta
		if delta < nf*opts.Tolerance {
			result.Converged = true
			break
		}
	}

	result.Scores = make(map[string]float64, n)
	for i, id := range ids {
		result.Scores[id] = rank[i]
	}
	return result
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
