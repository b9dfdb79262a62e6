package linkgraph

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultFallbackWeight applies to link positions missing from the table.
const DefaultFallbackWeight = 0.2

// RawEdge is one link record as exported by the crawler.
type RawEdge struct {
	Source      string
	Destination string
	LinkType    string
	Position    string
	// Count is the number of occurrences the row stands for. Values below 1
	// count as a single occurrence.
	Count int
}

// Edge is an aggregated link: all raw rows sharing (Source, Destination,
// Position) collapsed into one with the summed occurrence count.
type Edge struct {
	Source      string
	Destination string
	Position    string
	Count       int
}

// PositionWeights maps link position labels to multipliers. Lookup is
// case-insensitive and ignores surrounding whitespace.
type PositionWeights struct {
	table    map[string]float64
	fallback float64
}

// DefaultPositionWeights returns the standard weight table: in-content links
// count fully, navigation menus 0.6, headers 0.5, sidebars 0.4, footers 0.3
// and anything else 0.2.
func DefaultPositionWeights() PositionWeights {
	return NewPositionWeights(map[string]float64{
		"contenu":    1.0,
		"content":    1.0,
		"body":       1.0,
		"header":     0.5,
		"footer":     0.3,
		"sidebar":    0.4,
		"menu":       0.6,
		"navigation": 0.6,
		"nav":        0.6,
	}, DefaultFallbackWeight)
}

// NewPositionWeights builds a weight table from label → weight pairs.
func NewPositionWeights(table map[string]float64, fallback float64) PositionWeights {
	pw := PositionWeights{
		table:    make(map[string]float64, len(table)),
		fallback: fallback,
	}
	for label, w := range table {
		pw.table[normalizeLabel(label)] = w
	}
	return pw
}

// With returns a copy of pw with the given labels overridden.
func (pw PositionWeights) With(overrides map[string]float64) PositionWeights {
	merged := make(map[string]float64, len(pw.table)+len(overrides))
	for k, v := range pw.table {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[normalizeLabel(k)] = v
	}
	return PositionWeights{table: merged, fallback: pw.fallback}
}

// WithFallback returns a copy of pw using w for unknown labels.
func (pw PositionWeights) WithFallback(w float64) PositionWeights {
	return PositionWeights{table: pw.table, fallback: w}
}

// Weight returns the multiplier for a position label.
func (pw PositionWeights) Weight(label string) float64 {
	if w, ok := pw.table[normalizeLabel(label)]; ok {
		return w
	}
	return pw.fallback
}

// Fallback returns the weight used for unknown labels.
func (pw PositionWeights) Fallback() float64 {
	return pw.fallback
}

// Labels returns the known labels, sorted.
func (pw PositionWeights) Labels() []string {
	labels := make([]string, 0, len(pw.table))
	for l := range pw.table {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// BuildOptions configures graph construction.
type BuildOptions struct {
	// SitePrefix restricts pages and both ends of every link to the site's
	// own URL space. An empty prefix accepts every URL.
	SitePrefix string
	Weights    PositionWeights
}

// Graphs holds the two graph variants built from one edge set, along with
// the bookkeeping of what was filtered out.
type Graphs struct {
	// Standard weights every arc by its occurrence count.
	Standard *Graph
	// Weighted weights every arc by occurrence count × position weight.
	Weighted *Graph
	// Edges are the aggregated qualifying links, sorted by source,
	// destination and position.
	Edges []Edge

	InternalURLs  int
	SelfLoops     int
	ExternalEdges int
}

// Build constructs the standard and position-weighted graphs. Both share
// the same node set: every internal page URL, including pages without any
// link, plus the internal endpoints of qualifying edges.
//
// Self-loops and links leaving the site prefix are dropped. Returns
// ErrEmptyGraph when no internal URL or no qualifying link remains.
func Build(urls []string, raw []RawEdge, opts BuildOptions) (*Graphs, error) {
	weights := opts.Weights
	if weights.table == nil {
		weights = DefaultPositionWeights()
	}

	out := &Graphs{
		Standard: New(),
		Weighted: New(),
	}

	for _, u := range urls {
		if !isInternal(u, opts.SitePrefix) {
			continue
		}
		if !out.Standard.HasNode(u) {
			out.InternalURLs++
		}
		out.Standard.AddNode(u)
		out.Weighted.AddNode(u)
	}
	if out.InternalURLs == 0 {
		return nil, fmt.Errorf("%w: no internal URLs match prefix %q", ErrEmptyGraph, opts.SitePrefix)
	}

	type edgeKey struct{ src, dst, pos string }
	counts := make(map[edgeKey]int)
	for _, e := range raw {
		if !isInternal(e.Source, opts.SitePrefix) || !isInternal(e.Destination, opts.SitePrefix) {
			out.ExternalEdges++
			continue
		}
		if e.Source == e.Destination {
			out.SelfLoops++
			continue
		}
		c := e.Count
		if c < 1 {
			c = 1
		}
		counts[edgeKey{e.Source, e.Destination, e.Position}] += c
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: no internal links between %d URLs", ErrEmptyGraph, out.InternalURLs)
	}

	out.Edges = make([]Edge, 0, len(counts))
	for k, c := range counts {
		out.Edges = append(out.Edges, Edge{Source: k.src, Destination: k.dst, Position: k.pos, Count: c})
	}
	sort.Slice(out.Edges, func(i, j int) bool {
		a, b := out.Edges[i], out.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Destination != b.Destination {
			return a.Destination < b.Destination
		}
		return a.Position < b.Position
	})

	for _, e := range out.Edges {
		for _, g := range []*Graph{out.Standard, out.Weighted} {
			g.AddNode(e.Source)
			g.AddNode(e.Destination)
		}
		if err := out.Standard.AddEdge(e.Source, e.Destination, float64(e.Count)); err != nil {
			return nil, fmt.Errorf("linkgraph: standard graph: %w", err)
		}
		w := weights.Weight(e.Position) * float64(e.Count)
		if err := out.Weighted.AddEdge(e.Source, e.Destination, w); err != nil {
			return nil, fmt.Errorf("linkgraph: weighted graph: %w", err)
		}
	}
	return out, nil
}

func isInternal(url, prefix string) bool {
	if url == "" {
		return false
	}
	return prefix == "" || strings.HasPrefix(url, prefix)
}
