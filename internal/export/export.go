// Package export writes the tables of an analysis result to a directory:
// one CSV per table plus a JSON run summary.
package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/papapumpkin/siterank/internal/aggregate"
	"github.com/papapumpkin/siterank/internal/analysis"
	"github.com/papapumpkin/siterank/internal/opportunity"
	"github.com/papapumpkin/siterank/internal/site"
)

// File names written by Write.
const (
	PagesFile             = "pages.csv"
	CorrelationsFile      = "correlations.csv"
	CorrelationMatrixFile = "correlation_matrix.csv"
	StatsByCategoryFile   = "stats_by_category.csv"
	StatsByLabelFile      = "stats_by_label.csv"
	StatsByLocationFile   = "stats_by_location.csv"
	TopTrafficFile        = "top_traffic.csv"
	FlopTrafficFile       = "flop_traffic.csv"
	WeightedAuthorityFile = "weighted_authority.csv"
	SummaryFile           = "summary.json"
)

// FindingsFile returns the file name of one opportunity table.
func FindingsFile(tag opportunity.Tag) string {
	return string(tag) + ".csv"
}

// Write creates dir if needed and writes every table of res into it. It
// returns the paths written, in write order.
func Write(dir string, res *analysis.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: creating %s: %w", dir, err)
	}

	type table struct {
		name string
		rows [][]string
	}
	tables := []table{
		{PagesFile, recordRows(res.Records, nil)},
	}
	for _, tag := range opportunity.Tags() {
		tables = append(tables, table{FindingsFile(tag), findingRows(tag, res.Opportunities.ByTag(tag))})
	}
	tables = append(tables,
		table{CorrelationsFile, correlationRows(res.Correlations)},
		table{CorrelationMatrixFile, matrixRows(res.Matrix)},
		table{StatsByCategoryFile, groupRows("category", res.ByCategory)},
		table{StatsByLabelFile, groupRows("label", res.ByLabel)},
		table{StatsByLocationFile, groupRows("location", res.ByLocation)},
		table{TopTrafficFile, recordRows(res.TopTraffic, nil)},
		table{FlopTrafficFile, recordRows(res.FlopTraffic, nil)},
		table{WeightedAuthorityFile, weightedRows(res.WeightedRanking)},
	)

	written := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		if err := writeCSV(path, t.rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := filepath.Join(dir, SummaryFile)
	if err := writeSummary(path, res); err != nil {
		return written, err
	}
	return append(written, path), nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}

// recordHeader lists the page table columns. extra columns are appended.
func recordHeader(extra []string) []string {
	h := []string{
		"url", "content_type", "http_code", "status", "indexability",
		"incoming_links", "outgoing_links", "crawl_depth", "word_count",
		"category", "label", "country", "location",
		"clicks", "impressions", "ctr", "avg_position",
		"authority", "weighted_authority", "hits", "external_backlinks", "pagespeed",
		"traffic_score", "authority_traffic_ratio", "weighted_authority_traffic_ratio",
		"raw_seo_score", "visibility_score", "content_type_score", "country_score",
		"norm_authority", "norm_weighted_authority", "norm_clicks", "norm_ctr",
		"norm_traffic_score", "norm_raw_seo_score", "norm_visibility_score",
		"norm_content_type_score", "norm_country_score",
		"performance_score", "cluster",
	}
	return append(h, extra...)
}

func recordRow(r site.Record) []string {
	pagespeed := ""
	if r.HasPageSpeed {
		pagespeed = num(r.PageSpeed)
	}
	n := r.Normalized
	return []string{
		r.URL, r.ContentType, strconv.Itoa(r.HTTPCode), r.Status, r.Indexability,
		strconv.Itoa(r.IncomingLinks), strconv.Itoa(r.OutgoingLinks), strconv.Itoa(r.CrawlDepth), strconv.Itoa(r.WordCount),
		r.Category, r.Label, r.Country, r.Location,
		num(r.Clicks), num(r.Impressions), num(r.CTR), num(r.AvgPosition),
		num(r.Authority), num(r.WeightedAuthority), strconv.Itoa(r.Hits), strconv.Itoa(r.ExternalBacklinks), pagespeed,
		num(r.TrafficScore), num(r.AuthorityTrafficRatio), num(r.WeightedAuthorityTrafficRatio),
		num(r.RawSEOScore), num(r.VisibilityScore), num(r.ContentTypeScore), num(r.CountryScore),
		num(n.Authority), num(n.WeightedAuthority), num(n.Clicks), num(n.CTR),
		num(n.TrafficScore), num(n.RawSEOScore), num(n.VisibilityScore),
		num(n.ContentTypeScore), num(n.CountryScore),
		num(r.PerformanceScore), strconv.Itoa(r.Cluster),
	}
}

func recordRows(records []site.Record, extra []string) [][]string {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, recordHeader(extra))
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	return rows
}

// findingRows renders one opportunity table. Prioritized kinds carry a
// trailing priority column.
func findingRows(tag opportunity.Tag, findings []opportunity.Finding) [][]string {
	if !tag.Prioritized() {
		records := make([]site.Record, len(findings))
		for i, f := range findings {
			records[i] = f.Record
		}
		return recordRows(records, nil)
	}
	rows := make([][]string, 0, len(findings)+1)
	rows = append(rows, recordHeader([]string{"priority"}))
	for _, f := range findings {
		rows = append(rows, append(recordRow(f.Record), f.Priority.String()))
	}
	return rows
}

func correlationRows(cs []aggregate.Correlation) [][]string {
	rows := [][]string{{"correlation", "value"}}
	for _, c := range cs {
		rows = append(rows, []string{c.Pair.Name(), num(c.Value)})
	}
	return rows
}

func matrixRows(m aggregate.Matrix) [][]string {
	header := make([]string, 0, len(m.Metrics)+1)
	header = append(header, "metric")
	for _, mt := range m.Metrics {
		header = append(header, string(mt))
	}
	rows := [][]string{header}
	for i, mt := range m.Metrics {
		row := make([]string, 0, len(m.Metrics)+1)
		row = append(row, string(mt))
		for _, v := range m.Values[i] {
			row = append(row, num(v))
		}
		rows = append(rows, row)
	}
	return rows
}

func groupRows(key string, groups []aggregate.GroupStats) [][]string {
	header := []string{key, "pages"}
	for _, m := range []string{"authority", "clicks", "hits", "word_count", "crawl_depth"} {
		header = append(header, m+"_mean", m+"_min", m+"_max", m+"_median")
	}
	header = append(header,
		"external_backlinks_sum", "external_backlinks_mean", "external_backlinks_median",
		"pagespeed_mean")

	rows := [][]string{header}
	for _, g := range groups {
		row := []string{g.Key, strconv.Itoa(g.Pages)}
		for _, s := range []aggregate.Summary{g.Authority, g.Clicks, g.Hits, g.WordCount, g.CrawlDepth} {
			row = append(row, num(s.Mean), num(s.Min), num(s.Max), num(s.Median))
		}
		row = append(row, num(g.Backlinks.Sum), num(g.Backlinks.Mean), num(g.Backlinks.Median))
		if g.HasPageSpeed {
			row = append(row, num(g.PageSpeed))
		} else {
			row = append(row, "")
		}
		rows = append(rows, row)
	}
	return rows
}

func weightedRows(records []site.Record) [][]string {
	rows := [][]string{{"url", "weighted_authority", "authority"}}
	for _, r := range records {
		rows = append(rows, []string{r.URL, num(r.WeightedAuthority), num(r.Authority)})
	}
	return rows
}

// num formats a float in its shortest exact form. NaN renders empty.
func num(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
