package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/papapumpkin/siterank/internal/analysis"
	"github.com/papapumpkin/siterank/internal/fusion"
	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/opportunity"
)

// TopPagesInSummary is how many pages the summary lists by performance.
const TopPagesInSummary = 10

// Summary is the JSON digest of a run.
type Summary struct {
	RunID      string                  `json:"run_id,omitempty"`
	Pages      int                     `json:"pages"`
	Graph      GraphSummary            `json:"graph"`
	Authority  map[string]RankSummary  `json:"authority"`
	Signals    fusion.SignalCounts     `json:"signals"`
	Findings   map[opportunity.Tag]int `json:"findings"`
	Medians    opportunity.Medians     `json:"medians"`
	Clusters   ClusterSummary          `json:"clusters"`
	TopPages   []PageScore             `json:"top_pages"`
	Warnings   []analysis.Warning      `json:"warnings"`
	DurationMS int64                   `json:"duration_ms"`
}

// GraphSummary describes the standard link graph.
type GraphSummary struct {
	Nodes         int `json:"nodes"`
	Arcs          int `json:"arcs"`
	Links         int `json:"links"`
	SelfLoops     int `json:"self_loops"`
	ExternalEdges int `json:"external_edges"`
	Components    int `json:"components"`
	Isolated      int `json:"isolated"`
}

// RankSummary describes one authority pass.
type RankSummary struct {
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Delta      float64 `json:"delta"`
}

// ClusterSummary describes the segmentation.
type ClusterSummary struct {
	Inertia float64 `json:"inertia"`
	Sizes   []int   `json:"sizes"`
}

// PageScore is one page of the performance ranking.
type PageScore struct {
	URL              string  `json:"url"`
	PerformanceScore float64 `json:"performance_score"`
	Authority        float64 `json:"authority"`
	Cluster          int     `json:"cluster"`
}

// Summarize builds the JSON digest of res.
func Summarize(res *analysis.Result) Summary {
	s := Summary{
		RunID:   res.RunID,
		Pages:   len(res.Records),
		Signals: res.Signals,
		Authority: map[string]RankSummary{
			analysis.GraphStandard: rankSummary(res.Standard),
			analysis.GraphWeighted: rankSummary(res.Weighted),
		},
		Findings:   res.Opportunities.Counts(),
		Medians:    res.Opportunities.Medians,
		Warnings:   res.Warnings,
		DurationMS: res.Duration.Milliseconds(),
	}
	if s.Warnings == nil {
		s.Warnings = []analysis.Warning{}
	}

	if g := res.Graphs; g != nil {
		s.Graph = GraphSummary{
			Nodes:         g.Standard.Len(),
			Arcs:          g.Standard.EdgeCount(),
			Links:         len(g.Edges),
			SelfLoops:     g.SelfLoops,
			ExternalEdges: g.ExternalEdges,
			Components:    len(res.Components),
			Isolated:      len(g.Standard.Isolated()),
		}
	}

	sizes := make([]int, len(res.Clusters.Centroids))
	for _, l := range res.Clusters.Labels {
		if l >= 0 && l < len(sizes) {
			sizes[l]++
		}
	}
	s.Clusters = ClusterSummary{Inertia: res.Clusters.Inertia, Sizes: sizes}

	s.TopPages = TopByPerformance(res, TopPagesInSummary)
	return s
}

// TopByPerformance returns the n pages with the highest performance
// score, ties kept in record order.
func TopByPerformance(res *analysis.Result, n int) []PageScore {
	pages := make([]PageScore, len(res.Records))
	for i, r := range res.Records {
		pages[i] = PageScore{
			URL:              r.URL,
			PerformanceScore: r.PerformanceScore,
			Authority:        r.Authority,
			Cluster:          r.Cluster,
		}
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PerformanceScore > pages[j].PerformanceScore
	})
	if len(pages) > n {
		pages = pages[:n]
	}
	return pages
}

func rankSummary(r linkgraph.Ranking) RankSummary {
	return RankSummary{Iterations: r.Iterations, Converged: r.Converged, Delta: r.Delta}
}

func writeSummary(path string, res *analysis.Result) error {
	data, err := json.MarshalIndent(Summarize(res), "", "  ")
	if err != nil {
		return fmt.Errorf("export: encoding summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	return nil
}
