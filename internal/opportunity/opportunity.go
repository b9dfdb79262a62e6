// Package opportunity tags pages with SEO findings (orphans, zombies, deep
// pages, under-trafficked authority pages, high-CTR pages starved of
// impressions) and ranks them into priority tiers.
package opportunity

import (
	"github.com/montanaflynn/stats"

	"github.com/papapumpkin/siterank/internal/site"
)

// Tag identifies a finding kind.
type Tag string

// Finding kinds.
const (
	TagOrphan               Tag = "orphan"
	TagZombie               Tag = "zombie"
	TagDeepPage             Tag = "deep_page"
	TagOpportunity          Tag = "opportunity"
	TagHighCTRLowImpression Tag = "high_ctr_low_impression"
)

// Tags lists every finding kind in report order.
func Tags() []Tag {
	return []Tag{TagOrphan, TagZombie, TagDeepPage, TagOpportunity, TagHighCTRLowImpression}
}

// Prioritized reports whether findings of this kind carry a priority.
func (t Tag) Prioritized() bool {
	return t == TagZombie || t == TagDeepPage || t == TagOpportunity
}

// Priority ranks a finding. PriorityNone is used for kinds without tiers.
type Priority int

// Priority tiers.
const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

// String returns the tier name, or "" for PriorityNone.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return ""
	}
}

// Thresholds used by the classification rules.
const (
	ZombieMaxAuthority    = 0.0001
	ZombieMaxClicks       = 10
	ZombieMaxHits         = 10
	DeepPageMinDepth      = 3
	OpportunityMaxClicks  = 10
	HighCTRMinCTR         = 0.10
	HighCTRMaxImpressions = 100
)

// Finding is one tagged page.
type Finding struct {
	Tag      Tag
	Priority Priority
	Record   site.Record
}

// Medians are the per-run reference values the priority rules compare
// against.
type Medians struct {
	Authority         float64 `json:"authority"`
	WeightedAuthority float64 `json:"weighted_authority"`
	Clicks            float64 `json:"clicks"`
}

// Report groups the findings of one run by tag. Within a tag, findings
// keep the order of the input records.
type Report struct {
	Medians  Medians
	Findings map[Tag][]Finding
}

// ByTag returns the findings of one kind.
func (r Report) ByTag(t Tag) []Finding {
	return r.Findings[t]
}

// Counts returns the number of findings per tag, including zero counts.
func (r Report) Counts() map[Tag]int {
	out := make(map[Tag]int, len(Tags()))
	for _, t := range Tags() {
		out[t] = len(r.Findings[t])
	}
	return out
}

// Classify evaluates every rule against every record. linked holds the
// URLs that are the destination of at least one non-self-loop edge; pages
// absent from it are orphans. A page can carry several tags.
//
// All comparisons are strict, so when a median is 0 a page at 0 never
// exceeds it.
func Classify(records []site.Record, linked map[string]bool) Report {
	rep := Report{Findings: make(map[Tag][]Finding)}
	if len(records) == 0 {
		return rep
	}

	m := computeMedians(records)
	rep.Medians = m

	for _, r := range records {
		orphan := !linked[r.URL]
		if orphan {
			rep.add(TagOrphan, PriorityNone, r)
		}

		if !orphan && r.Authority < ZombieMaxAuthority && r.Clicks < ZombieMaxClicks && r.Hits < ZombieMaxHits {
			rep.add(TagZombie, zombiePriority(r), r)
		}

		if r.CrawlDepth > DeepPageMinDepth {
			rep.add(TagDeepPage, deepPagePriority(r, m), r)
		}

		if (r.Authority > m.Authority || r.WeightedAuthority > m.WeightedAuthority) && r.Clicks < OpportunityMaxClicks {
			rep.add(TagOpportunity, opportunityPriority(r, m), r)
		}

		if r.CTR > HighCTRMinCTR && r.Impressions < HighCTRMaxImpressions {
			rep.add(TagHighCTRLowImpression, PriorityNone, r)
		}
	}
	return rep
}

func (rep *Report) add(t Tag, p Priority, r site.Record) {
	rep.Findings[t] = append(rep.Findings[t], Finding{Tag: t, Priority: p, Record: r})
}

func zombiePriority(r site.Record) Priority {
	switch {
	case r.CrawlDepth > 2:
		return PriorityHigh
	case r.CrawlDepth > 1:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func deepPagePriority(r site.Record, m Medians) Priority {
	switch {
	case r.Authority > m.Authority || r.Clicks > m.Clicks:
		return PriorityHigh
	case r.Authority > 0.5*m.Authority || r.Clicks > 0.5*m.Clicks:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func opportunityPriority(r site.Record, m Medians) Priority {
	switch {
	case (r.Authority > 1.5*m.Authority || r.WeightedAuthority > 1.5*m.WeightedAuthority) && r.WordCount > 500:
		return PriorityHigh
	case (r.Authority > m.Authority || r.WeightedAuthority > m.WeightedAuthority) && r.WordCount > 250:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func computeMedians(records []site.Record) Medians {
	a := make(stats.Float64Data, len(records))
	wa := make(stats.Float64Data, len(records))
	clicks := make(stats.Float64Data, len(records))
	for i, r := range records {
		a[i] = r.Authority
		wa[i] = r.WeightedAuthority
		clicks[i] = r.Clicks
	}
	return Medians{
		Authority:         median(a),
		WeightedAuthority: median(wa),
		Clicks:            median(clicks),
	}
}

// median returns 0 for empty input.
func median(d stats.Float64Data) float64 {
	v, err := d.Median()
	if err != nil {
		return 0
	}
	return v
}
