// Package scoring derives per-page traffic, visibility and SEO scores from
// fused records, min-max normalizes them, and blends the normalized values
// into a single performance score.
package scoring

import (
	"math"

	"github.com/papapumpkin/siterank/internal/site"
)

// Weights are the contributions of each normalized field to the
// performance score.
type Weights struct {
	Authority         float64 `mapstructure:"authority" toml:"authority"`
	WeightedAuthority float64 `mapstructure:"weighted_authority" toml:"weighted_authority"`
	Clicks            float64 `mapstructure:"clicks" toml:"clicks"`
	CTR               float64 `mapstructure:"ctr" toml:"ctr"`
	TrafficScore      float64 `mapstructure:"traffic_score" toml:"traffic_score"`
	RawSEOScore       float64 `mapstructure:"raw_seo_score" toml:"raw_seo_score"`
	VisibilityScore   float64 `mapstructure:"visibility_score" toml:"visibility_score"`
	ContentTypeScore  float64 `mapstructure:"content_type_score" toml:"content_type_score"`
	CountryScore      float64 `mapstructure:"country_score" toml:"country_score"`
}

// DefaultWeights returns the standard blend. The weights sum to 1.
func DefaultWeights() Weights {
	return Weights{
		Authority:         0.15,
		WeightedAuthority: 0.15,
		Clicks:            0.15,
		CTR:               0.10,
		TrafficScore:      0.10,
		RawSEOScore:       0.15,
		VisibilityScore:   0.10,
		ContentTypeScore:  0.05,
		CountryScore:      0.05,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Authority + w.WeightedAuthority + w.Clicks + w.CTR + w.TrafficScore +
		w.RawSEOScore + w.VisibilityScore + w.ContentTypeScore + w.CountryScore
}

// Apply fills the derived, normalized and performance fields of every
// record in place. Fields are computed in dependency order: traffic score,
// authority/traffic ratios, raw SEO score, visibility score, then the
// content-type and country baselines.
//
// Pages without a content type or country get a 0 baseline, so a grouping
// column that was never loaded degrades to a constant instead of failing.
func Apply(records []site.Record, w Weights) {
	if len(records) == 0 {
		return
	}

	for i := range records {
		r := &records[i]
		r.TrafficScore = r.Clicks * r.CTR
		r.AuthorityTrafficRatio = r.Authority / (r.Clicks + 1)
		r.WeightedAuthorityTrafficRatio = r.WeightedAuthority / (r.Clicks + 1)
		r.RawSEOScore = 0.3*r.Authority + 0.3*r.WeightedAuthority +
			0.2*r.Clicks + 0.1*r.CTR + 0.1*r.Impressions
		r.VisibilityScore = 0.4*r.Impressions + 0.4*r.Clicks + 0.2*r.CTR
	}

	contentType := GroupMean(records, func(r site.Record) string { return r.ContentType })
	country := GroupMean(records, func(r site.Record) string { return r.Country })
	for i := range records {
		records[i].ContentTypeScore = contentType[i]
		records[i].CountryScore = country[i]
	}

	type column struct {
		get func(site.Record) float64
		set func(*site.Normalized, float64)
	}
	columns := []column{
		{func(r site.Record) float64 { return r.Authority }, func(n *site.Normalized, v float64) { n.Authority = v }},
		{func(r site.Record) float64 { return r.WeightedAuthority }, func(n *site.Normalized, v float64) { n.WeightedAuthority = v }},
		{func(r site.Record) float64 { return r.Clicks }, func(n *site.Normalized, v float64) { n.Clicks = v }},
		{func(r site.Record) float64 { return r.CTR }, func(n *site.Normalized, v float64) { n.CTR = v }},
		{func(r site.Record) float64 { return r.TrafficScore }, func(n *site.Normalized, v float64) { n.TrafficScore = v }},
		{func(r site.Record) float64 { return r.RawSEOScore }, func(n *site.Normalized, v float64) { n.RawSEOScore = v }},
		{func(r site.Record) float64 { return r.VisibilityScore }, func(n *site.Normalized, v float64) { n.VisibilityScore = v }},
		{func(r site.Record) float64 { return r.ContentTypeScore }, func(n *site.Normalized, v float64) { n.ContentTypeScore = v }},
		{func(r site.Record) float64 { return r.CountryScore }, func(n *site.Normalized, v float64) { n.CountryScore = v }},
	}
	values := make([]float64, len(records))
	for _, c := range columns {
		for i, r := range records {
			values[i] = c.get(r)
		}
		for i, v := range Normalize(values) {
			c.set(&records[i].Normalized, v)
		}
	}

	for i := range records {
		records[i].PerformanceScore = Performance(records[i].Normalized, w)
	}
}

// Performance blends normalized fields with the given weights.
func Performance(n site.Normalized, w Weights) float64 {
	return n.Authority*w.Authority +
		n.WeightedAuthority*w.WeightedAuthority +
		n.Clicks*w.Clicks +
		n.CTR*w.CTR +
		n.TrafficScore*w.TrafficScore +
		n.RawSEOScore*w.RawSEOScore +
		n.VisibilityScore*w.VisibilityScore +
		n.ContentTypeScore*w.ContentTypeScore +
		n.CountryScore*w.CountryScore
}

// Normalize rescales values to [0, 1] with min-max scaling. A column with
// fewer than two distinct values maps to all zeros. NaN and infinite values
// are treated as 0.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		v = finite(v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (finite(v) - lo) / span
	}
	return out
}

// GroupMean returns, for each record, the mean RawSEOScore of all records
// sharing its key. Records with an empty key belong to no group and get 0,
// so a column that is empty everywhere contributes nothing.
func GroupMean(records []site.Record, key func(site.Record) string) []float64 {
	out := make([]float64, len(records))
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		sums[k] += r.RawSEOScore
		counts[k]++
	}
	for i, r := range records {
		if k := key(r); k != "" {
			out[i] = sums[k] / float64(counts[k])
		}
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
