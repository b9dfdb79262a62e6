package linkgraph

import (
	"math"
	"testing"
)

// --- Test fixtures ---

type arc struct {
	from, to string
	w        float64
}

func buildGraph(t *testing.T, nodes []string, arcs []arc) *Graph {
	t.Helper()
	g := New()
	for _, id := range nodes {
		g.AddNode(id)
	}
	for _, a := range arcs {
		if err := g.AddEdge(a.from, a.to, a.w); err != nil {
			t.Fatalf("AddEdge(%q, %q): %v", a.from, a.to, err)
		}
	}
	return g
}

func sumScores(scores map[string]float64) float64 {
	var s float64
	for _, v := range scores {
		s += v
	}
	return s
}

// --- Tests ---

func TestPageRankSumsToOne(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nodes []string
		arcs  []arc
	}{
		{
			name:  "chain",
			nodes: []string{"A", "B", "C", "D"},
			arcs:  []arc{{"A", "B", 1}, {"B", "C", 1}, {"C", "D", 1}},
		},
		{
			name:  "cycle",
			nodes: []string{"A", "B", "C"},
			arcs:  []arc{{"A", "B", 2}, {"B", "C", 1}, {"C", "A", 1}},
		},
		{
			name:  "star with isolated",
			nodes: []string{"hub", "a", "b", "c", "lonely"},
			arcs:  []arc{{"a", "hub", 1}, {"b", "hub", 3}, {"c", "hub", 0.5}, {"hub", "a", 1}},
		},
		{
			name:  "zero weight arc is dangling",
			nodes: []string{"A", "B"},
			arcs:  []arc{{"A", "B", 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := buildGraph(t, tt.nodes, tt.arcs)
			r := g.PageRank(DefaultPageRankOptions())
			if len(r.Scores) != len(tt.nodes) {
				t.Fatalf("got %d scores, want %d", len(r.Scores), len(tt.nodes))
			}
			if s := sumScores(r.Scores); math.Abs(s-1) > 1e-6 {
				t.Errorf("scores sum to %v, want 1", s)
			}
		})
	}
}

func TestPageRankEmptyGraph(t *testing.T) {
	t.Parallel()
	r := New().PageRank(DefaultPageRankOptions())
	if len(r.Scores) != 0 {
		t.Errorf("empty graph scores = %v, want empty", r.Scores)
	}
}

func TestPageRankTwoNodeKnownValues(t *testing.T) {
	t.Parallel()
	// A → B; B is dangling. Stationary distribution solves
	// rA = s, rB = 0.85·s + s with s = (0.85·rB + 0.15)/2.
	g := buildGraph(t, []string{"A", "B"}, []arc{{"A", "B", 1}})
	r := g.PageRank(DefaultPageRankOptions())

	wantA := 1 / 2.85
	wantB := 1.85 / 2.85
	if math.Abs(r.Scores["A"]-wantA) > 1e-4 {
		t.Errorf("A = %v, want %v", r.Scores["A"], wantA)
	}
	if math.Abs(r.Scores["B"]-wantB) > 1e-4 {
		t.Errorf("B = %v, want %v", r.Scores["B"], wantB)
	}
	if !r.Converged {
		t.Error("expected convergence within default iterations")
	}
}

func TestPageRankIsolatedNodeGetsFloor(t *testing.T) {
	t.Parallel()
	// A has no inbound links and I has no links at all: both receive only
	// the restart + dangling share, which must be strictly positive.
	g := buildGraph(t, []string{"A", "B", "I"}, []arc{{"A", "B", 1}})
	r := g.PageRank(DefaultPageRankOptions())

	if r.Scores["I"] <= 0 {
		t.Fatalf("isolated score = %v, want > 0", r.Scores["I"])
	}
	if math.Abs(r.Scores["I"]-r.Scores["A"]) > 1e-9 {
		t.Errorf("isolated %v != unlinked source %v; both should sit at the floor", r.Scores["I"], r.Scores["A"])
	}
	if minFloor := 0.15 / 3; r.Scores["I"] < minFloor {
		t.Errorf("isolated score %v below restart floor %v", r.Scores["I"], minFloor)
	}
	if r.Scores["B"] <= r.Scores["A"] {
		t.Errorf("linked page B (%v) should outrank A (%v)", r.Scores["B"], r.Scores["A"])
	}
}

func TestPageRankSymmetricCycle(t *testing.T) {
	t.Parallel()
	g := buildGraph(t, []string{"A", "B", "C"}, []arc{{"A", "B", 2}, {"B", "C", 1}, {"C", "A", 0.3}})
	r := g.PageRank(DefaultPageRankOptions())
	for _, id := range []string{"A", "B", "C"} {
		if math.Abs(r.Scores[id]-1.0/3) > 1e-4 {
			t.Errorf("%s = %v, want 1/3", id, r.Scores[id])
		}
	}
}

func TestPageRankWeightsShiftAuthority(t *testing.T) {
	t.Parallel()
	// A links to B and C once each; B and C link back to A.
	nodes := []string{"A", "B", "C"}
	even := buildGraph(t, nodes, []arc{{"A", "B", 1}, {"A", "C", 1}, {"B", "A", 1}, {"C", "A", 1}})
	skewed := buildGraph(t, nodes, []arc{{"A", "B", 1.0}, {"A", "C", 0.3}, {"B", "A", 1}, {"C", "A", 1}})

	re := even.PageRank(DefaultPageRankOptions())
	if math.Abs(re.Scores["B"]-re.Scores["C"]) > 1e-9 {
		t.Errorf("even weights: B=%v C=%v, want equal", re.Scores["B"], re.Scores["C"])
	}

	rs := skewed.PageRank(DefaultPageRankOptions())
	if rs.Scores["B"] <= rs.Scores["C"] {
		t.Errorf("skewed weights: B=%v should exceed C=%v", rs.Scores["B"], rs.Scores["C"])
	}
	if math.Abs(sumScores(rs.Scores)-1) > 1e-6 {
		t.Errorf("skewed sum = %v, want 1", sumScores(rs.Scores))
	}
}

func TestPageRankNonConvergenceReturnsLastIterate(t *testing.T) {
	t.Parallel()
	g := buildGraph(t, []string{"A", "B", "C"}, []arc{{"A", "B", 1}, {"B", "C", 1}})
	opts := DefaultPageRankOptions()
	opts.MaxIterations = 1
	r := g.PageRank(opts)

	if r.Converged {
		t.Error("expected Converged = false after a single step")
	}
	if r.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", r.Iterations)
	}
	if r.Delta <= 0 {
		t.Errorf("Delta = %v, want > 0", r.Delta)
	}
	if s := sumScores(r.Scores); math.Abs(s-1) > 1e-9 {
		t.Errorf("partial iterate sums to %v, want 1", s)
	}
}

func TestPageRankDeterministic(t *testing.T) {
	t.Parallel()
	nodes := []string{"a", "b", "c", "d", "e"}
	arcs := []arc{{"a", "b", 1}, {"b", "c", 2}, {"c", "a", 1}, {"d", "a", 5}, {"a", "e", 0.5}}
	first := buildGraph(t, nodes, arcs).PageRank(DefaultPageRankOptions())
	for i := 0; i < 5; i++ {
		again := buildGraph(t, nodes, arcs).PageRank(DefaultPageRankOptions())
		for id, v := range first.Scores {
			if again.Scores[id] != v {
				t.Fatalf("run %d: %s = %v, want %v", i, id, again.Scores[id], v)
			}
		}
	}
}
