// Package fusion joins crawler pages with authority scores and external
// signals into one record per URL. Joins and aggregations run in an
// in-memory SQLite database owned by a Session, which lives for exactly one
// analysis run.
package fusion

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/site"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// schema is executed when a session opens. Every table keeps an ord column
// recording input order so "first encountered" tie-breaks are stable.
const schema = `
CREATE TABLE pages (
    ord            INTEGER NOT NULL,
    url            TEXT NOT NULL,
    content_type   TEXT NOT NULL DEFAULT '',
    http_code      INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL DEFAULT '',
    indexability   TEXT NOT NULL DEFAULT '',
    incoming_links INTEGER NOT NULL DEFAULT 0,
    outgoing_links INTEGER NOT NULL DEFAULT 0,
    crawl_depth    INTEGER NOT NULL DEFAULT 0,
    word_count     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_pages_url ON pages(url);

CREATE TABLE edges (
    src         TEXT NOT NULL,
    dst         TEXT NOT NULL,
    link_type   TEXT NOT NULL DEFAULT '',
    pos         TEXT NOT NULL DEFAULT '',
    occurrences INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX idx_edges_dst ON edges(dst);

CREATE TABLE traffic (
    ord          INTEGER NOT NULL,
    url          TEXT NOT NULL,
    clicks       REAL NOT NULL DEFAULT 0,
    impressions  REAL NOT NULL DEFAULT 0,
    ctr          REAL NOT NULL DEFAULT 0,
    avg_position REAL NOT NULL DEFAULT 0
);

CREATE TABLE log_events (
    url    TEXT NOT NULL,
    bot    TEXT NOT NULL DEFAULT '',
    date   TEXT NOT NULL DEFAULT '',
    status INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE backlinks (
    source_url TEXT NOT NULL DEFAULT '',
    target_url TEXT NOT NULL
);

CREATE TABLE categories (
    ord      INTEGER NOT NULL,
    url      TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    label    TEXT NOT NULL DEFAULT '',
    country  TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT ''
);

CREATE TABLE pagespeed (
    ord     INTEGER NOT NULL,
    url     TEXT NOT NULL,
    mobile  REAL,
    desktop REAL
);

CREATE TABLE scores (
    url                TEXT PRIMARY KEY,
    authority          REAL NOT NULL DEFAULT 0,
    weighted_authority REAL NOT NULL DEFAULT 0
);
`

// Session is a caller-owned, in-memory join engine scoped to one analysis
// run. It is not safe for concurrent use.
type Session struct {
	db *sql.DB
}

// Open creates a fresh in-memory database and its schema.
func Open(ctx context.Context) (*Session, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("fusion: open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database, so the pool
	// must never grow past one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fusion: create schema: %w", err)
	}
	return &Session{db: db}, nil
}

// Close releases the database. All loaded data is discarded.
func (s *Session) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("fusion: close: %w", err)
	}
	return nil
}

// bulkInsert runs one prepared INSERT per row inside a single transaction.
func (s *Session) bulkInsert(ctx context.Context, table, query string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fusion: load %s: begin: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("fusion: load %s: prepare: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("fusion: load %s: row %d: %w", table, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fusion: load %s: commit: %w", table, err)
	}
	return nil
}

// LoadPages appends crawler page rows.
func (s *Session) LoadPages(ctx context.Context, pages []site.Page) error {
	const q = `INSERT INTO pages (ord, url, content_type, http_code, status, indexability,
		incoming_links, outgoing_links, crawl_depth, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	base, err := s.count(ctx, "pages")
	if err != nil {
		return err
	}
	return s.bulkInsert(ctx, "pages", q, len(pages), func(i int) []any {
		p := pages[i]
		return []any{base + i, p.URL, p.ContentType, p.HTTPCode, p.Status, p.Indexability,
			p.IncomingLinks, p.OutgoingLinks, p.CrawlDepth, p.WordCount}
	})
}

// LoadEdges appends raw link rows, self-loops and external links included.
func (s *Session) LoadEdges(ctx context.Context, edges []linkgraph.RawEdge) error {
	const q = `INSERT INTO edges (src, dst, link_type, pos, occurrences) VALUES (?, ?, ?, ?, ?)`
	return s.bulkInsert(ctx, "edges", q, len(edges), func(i int) []any {
		e := edges[i]
		c := e.Count
		if c < 1 {
			c = 1
		}
		return []any{e.Source, e.Destination, e.LinkType, e.Position, c}
	})
}

// LoadTraffic appends search traffic rows.
func (s *Session) LoadTraffic(ctx context.Context, rows []site.Traffic) error {
	const q = `INSERT INTO traffic (ord, url, clicks, impressions, ctr, avg_position) VALUES (?, ?, ?, ?, ?, ?)`
	base, err := s.count(ctx, "traffic")
	if err != nil {
		return err
	}
	return s.bulkInsert(ctx, "traffic", q, len(rows), func(i int) []any {
		t := rows[i]
		return []any{base + i, t.URL, t.Clicks, t.Impressions, t.CTR, t.AvgPosition}
	})
}

// LoadLogEvents appends bot hits.
func (s *Session) LoadLogEvents(ctx context.Context, events []site.LogEvent) error {
	const q = `INSERT INTO log_events (url, bot, date, status) VALUES (?, ?, ?, ?)`
	return s.bulkInsert(ctx, "log_events", q, len(events), func(i int) []any {
		e := events[i]
		return []any{e.URL, e.Bot, e.Date, e.Status}
	})
}

// LoadBacklinks appends external backlinks.
func (s *Session) LoadBacklinks(ctx context.Context, links []site.Backlink) error {
	const q = `INSERT INTO backlinks (source_url, target_url) VALUES (?, ?)`
	return s.bulkInsert(ctx, "backlinks", q, len(links), func(i int) []any {
		return []any{links[i].SourceURL, links[i].TargetURL}
	})
}

// LoadCategories appends URL categorisation rows.
func (s *Session) LoadCategories(ctx context.Context, rows []site.Category) error {
	const q = `INSERT INTO categories (ord, url, category, label, country, location) VALUES (?, ?, ?, ?, ?, ?)`
	base, err := s.count(ctx, "categories")
	if err != nil {
		return err
	}
	return s.bulkInsert(ctx, "categories", q, len(rows), func(i int) []any {
		c := rows[i]
		return []any{base + i, c.URL, c.Category, c.Label, c.Country, c.Location}
	})
}

// LoadPageSpeed appends lab performance samples.
func (s *Session) LoadPageSpeed(ctx context.Context, samples []site.PageSpeedSample) error {
	const q = `INSERT INTO pagespeed (ord, url, mobile, desktop) VALUES (?, ?, ?, ?)`
	base, err := s.count(ctx, "pagespeed")
	if err != nil {
		return err
	}
	return s.bulkInsert(ctx, "pagespeed", q, len(samples), func(i int) []any {
		p := samples[i]
		return []any{base + i, p.URL, nullable(p.Mobile), nullable(p.Desktop)}
	})
}

// LoadScores replaces the authority scores. URLs present in only one of the
// maps get 0 for the other score.
func (s *Session) LoadScores(ctx context.Context, standard, weighted map[string]float64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM scores"); err != nil {
		return fmt.Errorf("fusion: reset scores: %w", err)
	}
	urls := make([]string, 0, len(standard)+len(weighted))
	seen := make(map[string]struct{}, len(standard))
	for _, m := range []map[string]float64{standard, weighted} {
		for u := range m {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	const q = `INSERT INTO scores (url, authority, weighted_authority) VALUES (?, ?, ?)`
	return s.bulkInsert(ctx, "scores", q, len(urls), func(i int) []any {
		u := urls[i]
		return []any{u, standard[u], weighted[u]}
	})
}

func (s *Session) count(ctx context.Context, table string) (int, error) {
	var n int
	// table names come from this package only.
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("fusion: count %s: %w", table, err)
	}
	return n, nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
