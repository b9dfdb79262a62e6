// Package segment groups pages into behavioural clusters with seeded
// k-means over their normalized authority and traffic features.
package segment

import (
	"math"
	"math/rand/v2"

	"github.com/papapumpkin/siterank/internal/site"
)

// Options configures k-means clustering.
type Options struct {
	K             int     `mapstructure:"k" toml:"k"`                           // number of clusters
	Seed          uint64  `mapstructure:"seed" toml:"seed"`                     // random seed for k-means++ seeding
	Restarts      int     `mapstructure:"restarts" toml:"restarts"`             // independent seedings; best inertia wins
	MaxIterations int     `mapstructure:"max_iterations" toml:"max_iterations"` // Lloyd iterations per restart
	Tolerance     float64 `mapstructure:"tolerance" toml:"tolerance"`           // centroid shift that counts as converged
}

// DefaultOptions returns 4 clusters, seed 42, 10 restarts of at most 300
// iterations each.
func DefaultOptions() Options {
	return Options{
		K:             4,
		Seed:          42,
		Restarts:      10,
		MaxIterations: 300,
		Tolerance:     1e-4,
	}
}

// Result is the best clustering found across restarts.
type Result struct {
	Labels    []int
	Centroids [][]float64
	// Inertia is the sum of squared distances of points to their centroid.
	Inertia float64
}

// KMeans clusters points into at most opts.K groups. Seeding uses k-means++
// driven by a PCG generator seeded with opts.Seed, so identical input
// always yields identical labels. Every label lies in [0, K). Datasets with
// fewer distinct points than K, including all-identical points, are
// handled without error.
func KMeans(points [][]float64, opts Options) Result {
	n := len(points)
	if n == 0 || opts.K <= 0 {
		return Result{Labels: make([]int, n)}
	}
	k := opts.K
	if k > n {
		k = n
	}
	restarts := opts.Restarts
	if restarts < 1 {
		restarts = 1
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var best Result
	for r := 0; r < restarts; r++ {
		centroids := seedPlusPlus(points, k, rng)
		res := lloyd(points, centroids, opts)
		if r == 0 || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best
}

// seedPlusPlus picks k initial centroids: the first uniformly, each next
// one with probability proportional to its squared distance from the
// nearest centroid already chosen.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(n)]))

	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}

		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range dist {
				if d <= 0 {
					continue
				}
				next = i
				acc += d
				if acc >= target {
					break
				}
			}
		}
		c := clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// lloyd alternates assignment and centroid update until the centroids
// stop moving or MaxIterations is reached.
func lloyd(points [][]float64, centroids [][]float64, opts Options) Result {
	n := len(points)
	k := len(centroids)
	labels := make([]int, n)
	maxIter := opts.MaxIterations
	if maxIter < 1 {
		maxIter = 1
	}

	for iter := 0; iter < maxIter; iter++ {
		assign(points, centroids, labels)

		dim := len(points[0])
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		counts := make([]int, k)
		for i, p := range points {
			c := labels[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}

		var shift float64
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: move it onto the point worst served by
				// its current centroid, if any point is off-centre.
				far, farDist := -1, 0.0
				for i, p := range points {
					if d := sqDist(p, centroids[labels[i]]); d > farDist {
						far, farDist = i, d
					}
				}
				if far >= 0 {
					shift += sqDist(centroids[c], points[far])
					centroids[c] = clone(points[far])
					labels[far] = c
				}
				continue
			}
			updated := make([]float64, dim)
			for d := range updated {
				updated[d] = sums[c][d] / float64(counts[c])
			}
			shift += sqDist(centroids[c], updated)
			centroids[c] = updated
		}

		if shift <= opts.Tolerance*opts.Tolerance {
			break
		}
	}

	inertia := assign(points, centroids, labels)
	return Result{Labels: labels, Centroids: centroids, Inertia: inertia}
}

// assign labels every point with its nearest centroid (lowest index on
// ties) and returns the total squared distance.
func assign(points [][]float64, centroids [][]float64, labels []int) float64 {
	var inertia float64
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c, cen := range centroids {
			if d := sqDist(p, cen); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}

// Features returns the clustering vector of each record: normalized
// authority, weighted authority, clicks, CTR and raw SEO score. Non-finite
// values become 0.
func Features(records []site.Record) [][]float64 {
	out := make([][]float64, len(records))
	for i, r := range records {
		n := r.Normalized
		out[i] = []float64{
			finite(n.Authority),
			finite(n.WeightedAuthority),
			finite(n.Clicks),
			finite(n.CTR),
			finite(n.RawSEOScore),
		}
	}
	return out
}

// Assign clusters records by their feature vectors and stores each label
// in Record.Cluster. It returns the clustering result.
func Assign(records []site.Record, opts Options) Result {
	res := KMeans(Features(records), opts)
	for i := range records {
		records[i].Cluster = res.Labels[i]
	}
	return res
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
