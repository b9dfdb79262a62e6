// Package aggregate computes the site-wide summary tables of a run:
// pairwise correlations between page metrics, grouped statistics by
// category, label and location, and the top and bottom pages by traffic.
package aggregate

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/papapumpkin/siterank/internal/site"
)

// RankingSize is the length of the top and flop traffic tables.
const RankingSize = 50

// UnknownLocation replaces an empty location when grouping.
const UnknownLocation = "Unknown"

// Metric names a per-page numeric column.
type Metric string

// Metrics used by the correlation tables.
const (
	MetricAuthority         Metric = "authority"
	MetricWeightedAuthority Metric = "weighted_authority"
	MetricClicks            Metric = "clicks"
	MetricHits              Metric = "hits"
	MetricWordCount         Metric = "word_count"
	MetricCrawlDepth        Metric = "crawl_depth"
	MetricBacklinks         Metric = "external_backlinks"
	MetricPageSpeed         Metric = "pagespeed"
)

// Value extracts the metric from a record. ok is false when the record
// has no value for it (page speed without a complete sample).
func (m Metric) Value(r site.Record) (v float64, ok bool) {
	switch m {
	case MetricAuthority:
		return r.Authority, true
	case MetricWeightedAuthority:
		return r.WeightedAuthority, true
	case MetricClicks:
		return r.Clicks, true
	case MetricHits:
		return float64(r.Hits), true
	case MetricWordCount:
		return float64(r.WordCount), true
	case MetricCrawlDepth:
		return float64(r.CrawlDepth), true
	case MetricBacklinks:
		return float64(r.ExternalBacklinks), true
	case MetricPageSpeed:
		return r.PageSpeed, r.HasPageSpeed
	default:
		return 0, false
	}
}

// Pair is one correlation of the summary list.
type Pair struct {
	X, Y Metric
}

// Name renders the pair as "x vs y".
func (p Pair) Name() string {
	return string(p.X) + " vs " + string(p.Y)
}

// CorrelationPairs lists the metric pairs reported in the correlation list.
func CorrelationPairs() []Pair {
	return []Pair{
		{MetricAuthority, MetricClicks},
		{MetricAuthority, MetricHits},
		{MetricWeightedAuthority, MetricClicks},
		{MetricWeightedAuthority, MetricHits},
		{MetricAuthority, MetricWeightedAuthority},
		{MetricAuthority, MetricWordCount},
		{MetricWeightedAuthority, MetricWordCount},
		{MetricClicks, MetricWordCount},
		{MetricCrawlDepth, MetricAuthority},
		{MetricCrawlDepth, MetricWeightedAuthority},
		{MetricCrawlDepth, MetricClicks},
		{MetricCrawlDepth, MetricWordCount},
		{MetricAuthority, MetricBacklinks},
		{MetricWeightedAuthority, MetricBacklinks},
		{MetricClicks, MetricBacklinks},
		{MetricHits, MetricBacklinks},
		{MetricAuthority, MetricPageSpeed},
		{MetricClicks, MetricPageSpeed},
		{MetricBacklinks, MetricPageSpeed},
	}
}

// Correlation is one computed Pearson coefficient.
type Correlation struct {
	Pair  Pair
	Value float64
}

// Correlations computes the Pearson coefficient of every pair in
// CorrelationPairs over the records that have both values. Pairs whose
// coefficient is undefined (fewer than two rows, zero variance) are
// omitted.
func Correlations(records []site.Record) []Correlation {
	var out []Correlation
	for _, p := range CorrelationPairs() {
		v, ok := correlate(records, p.X, p.Y)
		if !ok {
			continue
		}
		out = append(out, Correlation{Pair: p, Value: v})
	}
	return out
}

// MatrixMetrics returns the columns of the correlation matrix. Page speed
// is included only when at least one record has it.
func MatrixMetrics(records []site.Record) []Metric {
	ms := []Metric{
		MetricAuthority, MetricWeightedAuthority, MetricClicks, MetricHits,
		MetricCrawlDepth, MetricWordCount, MetricBacklinks,
	}
	for _, r := range records {
		if r.HasPageSpeed {
			return append(ms, MetricPageSpeed)
		}
	}
	return ms
}

// Matrix is a symmetric correlation matrix. Undefined cells are NaN.
type Matrix struct {
	Metrics []Metric
	Values  [][]float64
}

// CorrelationMatrix correlates every pair of MatrixMetrics, rounding each
// cell to two decimals. The diagonal is 1 for any column with variance.
func CorrelationMatrix(records []site.Record) Matrix {
	ms := MatrixMetrics(records)
	vals := make([][]float64, len(ms))
	for i := range ms {
		vals[i] = make([]float64, len(ms))
		for j := range ms {
			v, ok := correlate(records, ms[i], ms[j])
			if !ok {
				vals[i][j] = math.NaN()
				continue
			}
			vals[i][j] = round2(v)
		}
	}
	return Matrix{Metrics: ms, Values: vals}
}

func correlate(records []site.Record, x, y Metric) (float64, bool) {
	var xs, ys stats.Float64Data
	for _, r := range records {
		xv, xok := x.Value(r)
		yv, yok := y.Value(r)
		if !xok || !yok {
			continue
		}
		xs = append(xs, xv)
		ys = append(ys, yv)
	}
	if len(xs) < 2 {
		return 0, false
	}
	sx, err := xs.StandardDeviationPopulation()
	if err != nil || sx == 0 {
		return 0, false
	}
	sy, err := ys.StandardDeviationPopulation()
	if err != nil || sy == 0 {
		return 0, false
	}
	v, err := stats.Correlation(xs, ys)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	// Rounding noise can push perfectly correlated columns past 1.
	return math.Max(-1, math.Min(1, v)), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summary holds mean, min, max and median of one metric within a group.
type Summary struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Totals holds sum, mean and median of a count metric within a group.
type Totals struct {
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// GroupStats aggregates the pages sharing one grouping key.
type GroupStats struct {
	Key        string  `json:"key"`
	Pages      int     `json:"pages"`
	Authority  Summary `json:"authority"`
	Clicks     Summary `json:"clicks"`
	Hits       Summary `json:"hits"`
	WordCount  Summary `json:"word_count"`
	CrawlDepth Summary `json:"crawl_depth"`
	Backlinks  Totals  `json:"external_backlinks"`
	// PageSpeed is the mean combined page-speed score of the group's pages
	// that have one. HasPageSpeed is false when none do.
	PageSpeed    float64 `json:"pagespeed"`
	HasPageSpeed bool    `json:"has_pagespeed"`
}

// ByCategory groups records by category. Pages without a category are
// left out.
func ByCategory(records []site.Record) []GroupStats {
	return groupBy(records, func(r site.Record) string { return r.Category })
}

// ByLabel groups records by label. Pages without a label are left out.
func ByLabel(records []site.Record) []GroupStats {
	return groupBy(records, func(r site.Record) string { return r.Label })
}

// ByLocation groups records by location, with pages lacking one grouped
// under UnknownLocation. It returns nil when no page has a location.
func ByLocation(records []site.Record) []GroupStats {
	found := false
	for _, r := range records {
		if r.Location != "" {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return groupBy(records, func(r site.Record) string {
		if r.Location == "" {
			return UnknownLocation
		}
		return r.Location
	})
}

// groupBy returns one GroupStats per non-empty key, sorted by key.
func groupBy(records []site.Record, key func(site.Record) string) []GroupStats {
	groups := make(map[string][]site.Record)
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], r)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GroupStats, 0, len(keys))
	for _, k := range keys {
		out = append(out, summarizeGroup(k, groups[k]))
	}
	return out
}

func summarizeGroup(key string, rs []site.Record) GroupStats {
	col := func(m Metric) stats.Float64Data {
		d := make(stats.Float64Data, 0, len(rs))
		for _, r := range rs {
			if v, ok := m.Value(r); ok {
				d = append(d, v)
			}
		}
		return d
	}

	g := GroupStats{
		Key:        key,
		Pages:      len(rs),
		Authority:  summarize(col(MetricAuthority)),
		Clicks:     summarize(col(MetricClicks)),
		Hits:       summarize(col(MetricHits)),
		WordCount:  summarize(col(MetricWordCount)),
		CrawlDepth: summarize(col(MetricCrawlDepth)),
		Backlinks:  totals(col(MetricBacklinks)),
	}
	if ps := col(MetricPageSpeed); len(ps) > 0 {
		g.PageSpeed, _ = ps.Mean()
		g.HasPageSpeed = true
	}
	return g
}

// summarize ignores stats errors; they only occur on empty input, where
// the zero Summary is the intended result.
func summarize(d stats.Float64Data) Summary {
	if len(d) == 0 {
		return Summary{}
	}
	var s Summary
	s.Mean, _ = d.Mean()
	s.Min, _ = d.Min()
	s.Max, _ = d.Max()
	s.Median, _ = d.Median()
	return s
}

func totals(d stats.Float64Data) Totals {
	if len(d) == 0 {
		return Totals{}
	}
	var t Totals
	t.Sum, _ = d.Sum()
	t.Mean, _ = d.Mean()
	t.Median, _ = d.Median()
	return t
}

// TopTraffic returns up to RankingSize records with the most clicks,
// ties kept in input order.
func TopTraffic(records []site.Record) []site.Record {
	return rankByClicks(records, true)
}

// FlopTraffic returns up to RankingSize records with the fewest clicks,
// ties kept in input order.
func FlopTraffic(records []site.Record) []site.Record {
	return rankByClicks(records, false)
}

func rankByClicks(records []site.Record, descending bool) []site.Record {
	out := make([]site.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].Clicks < out[j].Clicks
	})
	if len(out) > RankingSize {
		out = out[:RankingSize]
	}
	return out
}

// WeightedAuthorityRanking returns every record ordered by weighted
// authority, highest first.
func WeightedAuthorityRanking(records []site.Record) []site.Record {
	out := make([]site.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WeightedAuthority > out[j].WeightedAuthority
	})
	return out
}
