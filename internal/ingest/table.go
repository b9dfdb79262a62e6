// Package ingest reads the CSV exports an analysis run consumes: crawler
// pages and links, search traffic, bot log events, backlinks, categories
// and page-speed samples. Headers are matched case-insensitively against
// a list of aliases, so both the canonical column names and the French
// headers of the crawler export are accepted.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrMalformedInput reports a CSV that lacks a required column or carries
// an unparseable value.
var ErrMalformedInput = errors.New("malformed input")

// column declares one logical field and the headers that may carry it.
// A signal column feeds a score, so its absence is reported rather than
// silently defaulted.
type column struct {
	name     string
	aliases  []string
	required bool
	signal   bool
}

// table is a parsed CSV with its header resolved against a schema.
type table struct {
	name   string
	idx    map[string]int
	rows   [][]string
	absent []string
	bad    map[string]int
}

// readTable parses r with the given field separator and resolves every
// schema column to a header position. A missing required column fails
// with ErrMalformedInput.
func readTable(r io.Reader, name string, comma rune, schema []column) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ingest: %s: empty file: %w", name, ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: reading header: %w", name, err)
	}

	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = normalizeHeader(h)
		if _, dup := positions[h]; !dup {
			positions[h] = i
		}
	}

	t := &table{name: name, idx: make(map[string]int, len(schema))}
	var missing []string
	for _, c := range schema {
		pos, ok := resolve(positions, c)
		if ok {
			t.idx[c.name] = pos
			continue
		}
		switch {
		case c.required:
			missing = append(missing, c.name)
		case c.signal:
			t.absent = append(t.absent, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("ingest: %s: missing required columns %s: %w",
			name, strings.Join(missing, ", "), ErrMalformedInput)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: %s: %w", name, err)
		}
		if blank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func resolve(positions map[string]int, c column) (int, bool) {
	if pos, ok := positions[normalizeHeader(c.name)]; ok {
		return pos, true
	}
	for _, a := range c.aliases {
		if pos, ok := positions[normalizeHeader(a)]; ok {
			return pos, true
		}
	}
	return 0, false
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// str returns the trimmed field of row i, or "" when the column is absent
// or the row is short.
func (t *table) str(i int, col string) string {
	pos, ok := t.idx[col]
	if !ok || pos >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][pos])
}

// has reports whether the column was found in the header.
func (t *table) has(col string) bool {
	_, ok := t.idx[col]
	return ok
}

// float parses a numeric field. Empty and NaN-like values read as 0. A
// trailing percent sign divides by 100.
func (t *table) float(i int, col string) (float64, error) {
	v, ok, err := parseNumber(t.str(i, col))
	if err != nil {
		return 0, fmt.Errorf("ingest: %s: row %d column %s: %w", t.name, i+2, col, err)
	}
	if !ok {
		return 0, nil
	}
	return v, nil
}

// int parses an integer field, accepting float spellings such as "3.0".
func (t *table) int(i int, col string) (int, error) {
	v, err := t.float(i, col)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

// lenient parses a numeric field of an optional input. An unparseable
// value reads as 0 and is counted against its column.
func (t *table) lenient(i int, col string) float64 {
	v, ok, err := parseNumber(t.str(i, col))
	if err != nil {
		t.reject(col)
		return 0
	}
	if !ok {
		return 0
	}
	return v
}

// optionalFloat parses a field that may be legitimately absent. Anything
// unparseable reads as absent and is counted against its column.
func (t *table) optionalFloat(i int, col string) *float64 {
	v, ok, err := parseNumber(t.str(i, col))
	if err != nil {
		t.reject(col)
		return nil
	}
	if !ok {
		return nil
	}
	return &v
}

func (t *table) reject(col string) {
	if t.bad == nil {
		t.bad = make(map[string]int)
	}
	t.bad[col]++
}

// notes describes the signal columns the header lacked and the columns
// that carried unparseable values.
func (t *table) notes() []Degraded {
	var out []Degraded
	for _, c := range t.absent {
		out = append(out, Degraded{Input: t.name, Column: c, Reason: "absent from header"})
	}
	for _, c := range slices.Sorted(maps.Keys(t.bad)) {
		out = append(out, Degraded{
			Input:  t.name,
			Column: c,
			Reason: fmt.Sprintf("%d unparseable values ignored", t.bad[c]),
		})
	}
	return out
}

func parseNumber(s string) (float64, bool, error) {
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return 0, false, nil
	}
	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%q is not a number: %w", s, ErrMalformedInput)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	if percent {
		v /= 100
	}
	return v, true, nil
}
