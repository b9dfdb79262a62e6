package ingest

import (
	"io"

	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/site"
)

var pageColumns = []column{
	{name: "url", aliases: []string{"adresse", "address"}, required: true},
	{name: "content_type", aliases: []string{"type de contenu", "content type"}},
	{name: "http_code", aliases: []string{"code http", "status code"}},
	{name: "status", aliases: []string{"statut"}},
	{name: "indexability", aliases: []string{"indexabilité", "indexabilite"}},
	{name: "incoming_links", aliases: []string{"liens entrants", "inlinks"}},
	{name: "outgoing_links", aliases: []string{"liens sortants", "outlinks"}},
	{name: "crawl_depth", aliases: []string{"crawl profondeur", "crawl depth", "depth"}, required: true},
	{name: "word_count", aliases: []string{"nombre de mots", "word count"}, required: true},
}

// ReadPages parses the crawler page export.
func ReadPages(r io.Reader) ([]site.Page, error) {
	t, err := readTable(r, "pages", ',', pageColumns)
	if err != nil {
		return nil, err
	}
	out := make([]site.Page, 0, len(t.rows))
	for i := range t.rows {
		p := site.Page{
			URL:          t.str(i, "url"),
			ContentType:  t.str(i, "content_type"),
			Status:       t.str(i, "status"),
			Indexability: t.str(i, "indexability"),
		}
		if p.URL == "" {
			continue
		}
		if p.HTTPCode, err = t.int(i, "http_code"); err != nil {
			return nil, err
		}
		if p.IncomingLinks, err = t.int(i, "incoming_links"); err != nil {
			return nil, err
		}
		if p.OutgoingLinks, err = t.int(i, "outgoing_links"); err != nil {
			return nil, err
		}
		if p.CrawlDepth, err = t.int(i, "crawl_depth"); err != nil {
			return nil, err
		}
		if p.WordCount, err = t.int(i, "word_count"); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var edgeColumns = []column{
	{name: "src", aliases: []string{"source"}, required: true},
	{name: "dst", aliases: []string{"destination", "target"}, required: true},
	{name: "link_type", aliases: []string{"type"}},
	{name: "pos", aliases: []string{"position du lien", "position", "link position"}},
	{name: "count", aliases: []string{"occurrences"}},
}

// ReadEdges parses the crawler link export. Without a count column every
// row counts once.
func ReadEdges(r io.Reader) ([]linkgraph.RawEdge, error) {
	t, err := readTable(r, "edges", ',', edgeColumns)
	if err != nil {
		return nil, err
	}
	out := make([]linkgraph.RawEdge, 0, len(t.rows))
	for i := range t.rows {
		e := linkgraph.RawEdge{
			Source:      t.str(i, "src"),
			Destination: t.str(i, "dst"),
			LinkType:    t.str(i, "link_type"),
			Position:    t.str(i, "pos"),
			Count:       1,
		}
		if t.has("count") && t.str(i, "count") != "" {
			if e.Count, err = t.int(i, "count"); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, nil
}

var trafficColumns = []column{
	{name: "url", aliases: []string{"page", "adresse"}, required: true},
	{name: "clicks", aliases: []string{"clics"}, signal: true},
	{name: "impressions", signal: true},
	{name: "ctr", signal: true},
	{name: "avg_position", aliases: []string{"average position", "position"}},
}

// ReadTraffic parses a search-console export. Unparseable metrics read
// as 0.
func ReadTraffic(r io.Reader) ([]site.Traffic, error) {
	out, _, err := readTraffic(r)
	return out, err
}

func readTraffic(r io.Reader) ([]site.Traffic, *table, error) {
	t, err := readTable(r, "traffic", ',', trafficColumns)
	if err != nil {
		return nil, nil, err
	}
	out := make([]site.Traffic, 0, len(t.rows))
	for i := range t.rows {
		out = append(out, site.Traffic{
			URL:         t.str(i, "url"),
			Clicks:      t.lenient(i, "clicks"),
			Impressions: t.lenient(i, "impressions"),
			CTR:         t.lenient(i, "ctr"),
			AvgPosition: t.lenient(i, "avg_position"),
		})
	}
	return out, t, nil
}

var logColumns = []column{
	{name: "event_url", aliases: []string{"url"}, required: true},
	{name: "event_bot_name", aliases: []string{"bot"}},
	{name: "event_datetime", aliases: []string{"event_date", "date"}},
	{name: "event_status_code", aliases: []string{"event_status", "status"}},
}

// ReadLogEvents parses bot hits extracted from server logs. Unparseable
// status codes read as 0.
func ReadLogEvents(r io.Reader) ([]site.LogEvent, error) {
	out, _, err := readLogEvents(r)
	return out, err
}

func readLogEvents(r io.Reader) ([]site.LogEvent, *table, error) {
	t, err := readTable(r, "logs", ',', logColumns)
	if err != nil {
		return nil, nil, err
	}
	out := make([]site.LogEvent, 0, len(t.rows))
	for i := range t.rows {
		ev := site.LogEvent{
			URL:  t.str(i, "event_url"),
			Bot:  t.str(i, "event_bot_name"),
			Date: t.str(i, "event_datetime"),
		}
		if v := t.optionalFloat(i, "event_status_code"); v != nil {
			ev.Status = int(*v)
		}
		out = append(out, ev)
	}
	return out, t, nil
}

var backlinkColumns = []column{
	{name: "targeturl", aliases: []string{"target url", "target_url", "target"}, required: true},
	{name: "sourceurl", aliases: []string{"source url", "source_url", "source"}},
}

// ReadBacklinks parses a semicolon-separated backlink export.
func ReadBacklinks(r io.Reader) ([]site.Backlink, error) {
	out, _, err := readBacklinks(r)
	return out, err
}

func readBacklinks(r io.Reader) ([]site.Backlink, *table, error) {
	t, err := readTable(r, "backlinks", ';', backlinkColumns)
	if err != nil {
		return nil, nil, err
	}
	out := make([]site.Backlink, 0, len(t.rows))
	for i := range t.rows {
		out = append(out, site.Backlink{
			SourceURL: t.str(i, "sourceurl"),
			TargetURL: t.str(i, "targeturl"),
		})
	}
	return out, t, nil
}

var categoryColumns = []column{
	{name: "url", aliases: []string{"adresse", "address"}, required: true},
	{name: "category", aliases: []string{"catégorie", "categorie"}, signal: true},
	{name: "label", signal: true},
	{name: "country", aliases: []string{"pays"}, signal: true},
	{name: "location", signal: true},
}

// ReadCategories parses the URL categorisation table.
func ReadCategories(r io.Reader) ([]site.Category, error) {
	out, _, err := readCategories(r)
	return out, err
}

func readCategories(r io.Reader) ([]site.Category, *table, error) {
	t, err := readTable(r, "categories", ',', categoryColumns)
	if err != nil {
		return nil, nil, err
	}
	out := make([]site.Category, 0, len(t.rows))
	for i := range t.rows {
		out = append(out, site.Category{
			URL:      t.str(i, "url"),
			Category: t.str(i, "category"),
			Label:    t.str(i, "label"),
			Country:  t.str(i, "country"),
			Location: t.str(i, "location"),
		})
	}
	return out, t, nil
}

var pageSpeedColumns = []column{
	{name: "url", required: true},
	{name: "mobile_performance_score", signal: true},
	{name: "desktop_performance_score", signal: true},
}

// ReadPageSpeed parses lab page-speed samples. Scores that are empty or
// not numeric, or whose column is missing, are kept as absent.
func ReadPageSpeed(r io.Reader) ([]site.PageSpeedSample, error) {
	out, _, err := readPageSpeed(r)
	return out, err
}

func readPageSpeed(r io.Reader) ([]site.PageSpeedSample, *table, error) {
	t, err := readTable(r, "pagespeed", ',', pageSpeedColumns)
	if err != nil {
		return nil, nil, err
	}
	out := make([]site.PageSpeedSample, 0, len(t.rows))
	for i := range t.rows {
		u := t.str(i, "url")
		if u == "" {
			continue
		}
		out = append(out, site.PageSpeedSample{
			URL:     u,
			Mobile:  t.optionalFloat(i, "mobile_performance_score"),
			Desktop: t.optionalFloat(i, "desktop_performance_score"),
		})
	}
	return out, t, nil
}
