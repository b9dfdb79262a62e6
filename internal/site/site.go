// Package site defines the page-level records that flow through an analysis
// run: crawler rows, external signals, and the fused per-URL record that the
// scoring, segmentation and classification passes augment.
package site

// Page is one row of the crawler's page export.
type Page struct {
	URL           string `json:"url"`
	ContentType   string `json:"content_type"`
	HTTPCode      int    `json:"http_code"`
	Status        string `json:"status"`
	Indexability  string `json:"indexability"`
	IncomingLinks int    `json:"incoming_links"`
	OutgoingLinks int    `json:"outgoing_links"`
	CrawlDepth    int    `json:"crawl_depth"`
	WordCount     int    `json:"word_count"`
}

// Traffic is one search-console row for a URL.
type Traffic struct {
	URL         string
	Clicks      float64
	Impressions float64
	CTR         float64
	AvgPosition float64
}

// LogEvent is one search-engine bot hit recorded in server logs.
type LogEvent struct {
	URL    string
	Bot    string
	Date   string
	Status int
}

// Backlink is one external link pointing at a page of the site.
type Backlink struct {
	SourceURL string
	TargetURL string
}

// Category assigns editorial grouping to a URL.
type Category struct {
	URL      string
	Category string
	Label    string
	Country  string
	Location string
}

// PageSpeedSample is one lab measurement. Scores are nil when the tool
// could not produce them.
type PageSpeedSample struct {
	URL     string
	Mobile  *float64
	Desktop *float64
}

// Normalized holds the min-max scaled copies of the scoring inputs.
type Normalized struct {
	Authority         float64 `json:"authority"`
	WeightedAuthority float64 `json:"weighted_authority"`
	Clicks            float64 `json:"clicks"`
	CTR               float64 `json:"ctr"`
	TrafficScore      float64 `json:"traffic_score"`
	RawSEOScore       float64 `json:"raw_seo_score"`
	VisibilityScore   float64 `json:"visibility_score"`
	ContentTypeScore  float64 `json:"content_type_score"`
	CountryScore      float64 `json:"country_score"`
}

// Record is the fused, one-row-per-URL view of a page. Fusion fills the
// page, signal and authority fields; scoring and segmentation fill the rest.
type Record struct {
	Page

	Category string `json:"category"`
	Label    string `json:"label"`
	Country  string `json:"country"`
	Location string `json:"location"`

	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	AvgPosition float64 `json:"avg_position"`

	Authority         float64 `json:"authority"`
	WeightedAuthority float64 `json:"weighted_authority"`
	Hits              int     `json:"hits"`
	ExternalBacklinks int     `json:"external_backlinks"`

	// PageSpeed is the mean of the mobile and desktop performance scores.
	// HasPageSpeed is false when no complete sample exists for the URL.
	PageSpeed    float64 `json:"pagespeed"`
	HasPageSpeed bool    `json:"has_pagespeed"`

	TrafficScore                  float64 `json:"traffic_score"`
	AuthorityTrafficRatio         float64 `json:"authority_traffic_ratio"`
	WeightedAuthorityTrafficRatio float64 `json:"weighted_authority_traffic_ratio"`
	RawSEOScore                   float64 `json:"raw_seo_score"`
	VisibilityScore               float64 `json:"visibility_score"`
	ContentTypeScore              float64 `json:"content_type_score"`
	CountryScore                  float64 `json:"country_score"`

	Normalized       Normalized `json:"normalized"`
	PerformanceScore float64    `json:"performance_score"`
	Cluster          int        `json:"cluster"`
}
