package fusion

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/site"
)

// fuseQuery left-joins every signal onto the page table and keeps one row
// per URL: the one with the highest standard authority, ties going to the
// row loaded first. Signal tables are reduced to one row per URL before the
// join so duplicates there cannot fan out page rows.
const fuseQuery = `
WITH
traffic_1 AS (
    SELECT url, clicks, impressions, ctr, avg_position FROM (
        SELECT *, ROW_NUMBER() OVER (PARTITION BY url ORDER BY ord) AS rn FROM traffic
    ) WHERE rn = 1
),
categories_1 AS (
    SELECT url, category, label, country, location FROM (
        SELECT *, ROW_NUMBER() OVER (PARTITION BY url ORDER BY ord) AS rn FROM categories
    ) WHERE rn = 1
),
pagespeed_1 AS (
    SELECT url, (mobile + desktop) / 2.0 AS combined FROM (
        SELECT *, ROW_NUMBER() OVER (PARTITION BY url ORDER BY ord) AS rn
        FROM pagespeed WHERE TRIM(url) <> ''
    ) WHERE rn = 1
),
hits_per_url AS (
    SELECT url, COUNT(*) AS hits FROM log_events GROUP BY url
),
backlinks_per_url AS (
    SELECT TRIM(target_url) AS url, COUNT(*) AS n
    FROM backlinks
    WHERE TRIM(target_url) <> '' AND LOWER(TRIM(target_url)) <> 'nan'
    GROUP BY TRIM(target_url)
),
ranked AS (
    SELECT
        p.ord, p.url, p.content_type, p.http_code, p.status, p.indexability,
        p.incoming_links, p.outgoing_links, p.crawl_depth, p.word_count,
        COALESCE(c.category, '')      AS category,
        COALESCE(c.label, '')         AS label,
        COALESCE(c.country, '')       AS country,
        COALESCE(c.location, '')      AS location,
        COALESCE(t.clicks, 0)         AS clicks,
        COALESCE(t.impressions, 0)    AS impressions,
        COALESCE(t.ctr, 0)            AS ctr,
        COALESCE(t.avg_position, 0)   AS avg_position,
        COALESCE(s.authority, 0)          AS authority,
        COALESCE(s.weighted_authority, 0) AS weighted_authority,
        COALESCE(h.hits, 0)           AS hits,
        COALESCE(b.n, 0)              AS external_backlinks,
        ps.combined                   AS pagespeed,
        ROW_NUMBER() OVER (
            PARTITION BY p.url ORDER BY COALESCE(s.authority, 0) DESC, p.ord ASC
        ) AS rn
    FROM pages p
    LEFT JOIN categories_1 c     ON p.url = c.url
    LEFT JOIN traffic_1 t        ON p.url = t.url
    LEFT JOIN scores s           ON p.url = s.url
    LEFT JOIN hits_per_url h     ON p.url = h.url
    LEFT JOIN backlinks_per_url b ON p.url = b.url
    LEFT JOIN pagespeed_1 ps     ON p.url = ps.url
)
SELECT url, content_type, http_code, status, indexability,
       incoming_links, outgoing_links, crawl_depth, word_count,
       category, label, country, location,
       clicks, impressions, ctr, avg_position,
       authority, weighted_authority, hits, external_backlinks, pagespeed
FROM ranked
WHERE rn = 1
ORDER BY ord`

// Fuse returns exactly one record per page URL with every signal joined.
// Missing numeric signals default to 0 and missing text to "".
func (s *Session) Fuse(ctx context.Context) ([]site.Record, error) {
	rows, err := s.db.QueryContext(ctx, fuseQuery)
	if err != nil {
		return nil, fmt.Errorf("fusion: fuse: %w", err)
	}
	defer rows.Close()

	var out []site.Record
	for rows.Next() {
		var (
			r         site.Record
			pagespeed sql.NullFloat64
		)
		if err := rows.Scan(
			&r.URL, &r.ContentType, &r.HTTPCode, &r.Status, &r.Indexability,
			&r.IncomingLinks, &r.OutgoingLinks, &r.CrawlDepth, &r.WordCount,
			&r.Category, &r.Label, &r.Country, &r.Location,
			&r.Clicks, &r.Impressions, &r.CTR, &r.AvgPosition,
			&r.Authority, &r.WeightedAuthority, &r.Hits, &r.ExternalBacklinks, &pagespeed,
		); err != nil {
			return nil, fmt.Errorf("fusion: fuse: scan: %w", err)
		}
		if pagespeed.Valid {
			r.PageSpeed = pagespeed.Float64
			r.HasPageSpeed = true
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fusion: fuse: %w", err)
	}
	return out, nil
}

// PageURLs returns the distinct page URLs in load order.
func (s *Session) PageURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM pages GROUP BY url ORDER BY MIN(ord)`)
	if err != nil {
		return nil, fmt.Errorf("fusion: page urls: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows, "page urls")
}

// Edges returns every raw link row in load order.
func (s *Session) Edges(ctx context.Context) ([]linkgraph.RawEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT src, dst, link_type, pos, occurrences FROM edges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("fusion: edges: %w", err)
	}
	defer rows.Close()

	var out []linkgraph.RawEdge
	for rows.Next() {
		var e linkgraph.RawEdge
		if err := rows.Scan(&e.Source, &e.Destination, &e.LinkType, &e.Position, &e.Count); err != nil {
			return nil, fmt.Errorf("fusion: edges: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fusion: edges: %w", err)
	}
	return out, nil
}

// LinkedDestinations returns the set of URLs that some other URL links to.
// Self-loops do not count as being linked.
func (s *Session) LinkedDestinations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dst FROM edges WHERE src <> dst`)
	if err != nil {
		return nil, fmt.Errorf("fusion: linked destinations: %w", err)
	}
	defer rows.Close()

	urls, err := scanStrings(rows, "linked destinations")
	if err != nil {
		return nil, err
	}
	linked := make(map[string]bool, len(urls))
	for _, u := range urls {
		linked[u] = true
	}
	return linked, nil
}

// SignalCounts reports how many rows each optional signal table holds.
// The pipeline uses it to flag signals that are absent.
type SignalCounts struct {
	Traffic    int
	LogEvents  int
	Backlinks  int
	Categories int
	PageSpeed  int
}

// Signals returns the row count of every optional signal table.
func (s *Session) Signals(ctx context.Context) (SignalCounts, error) {
	var sc SignalCounts
	for _, t := range []struct {
		table string
		dst   *int
	}{
		{"traffic", &sc.Traffic},
		{"log_events", &sc.LogEvents},
		{"backlinks", &sc.Backlinks},
		{"categories", &sc.Categories},
		{"pagespeed", &sc.PageSpeed},
	} {
		n, err := s.count(ctx, t.table)
		if err != nil {
			return SignalCounts{}, err
		}
		*t.dst = n
	}
	return sc, nil
}

func scanStrings(rows *sql.Rows, what string) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("fusion: %s: scan: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fusion: %s: %w", what, err)
	}
	return out, nil
}
