package ingest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/site"
)

// Paths locates the CSV inputs of one run. Pages and Edges are required;
// an empty optional path means the signal was not provided.
type Paths struct {
	Pages      string
	Edges      string
	Traffic    string
	Logs       string
	Backlinks  string
	Categories string
	PageSpeed  string
}

// Dataset holds every parsed input of a run.
type Dataset struct {
	Pages      []site.Page
	Edges      []linkgraph.RawEdge
	Traffic    []site.Traffic
	LogEvents  []site.LogEvent
	Backlinks  []site.Backlink
	Categories []site.Category
	PageSpeed  []site.PageSpeedSample

	// Missing lists optional inputs whose configured file does not exist.
	// The run continues without them.
	Missing []string

	// Degraded lists optional inputs that could not be read, and columns of
	// loaded optional inputs that were absent or partly unparseable.
	Degraded []Degraded
}

// Degraded describes an optional input that was skipped or read only in
// part. Column is empty when the whole input was skipped.
type Degraded struct {
	Input  string
	Column string
	Reason string
}

// String formats the note as "input: reason" or "input.column: reason".
func (d Degraded) String() string {
	if d.Column == "" {
		return d.Input + ": " + d.Reason
	}
	return d.Input + "." + d.Column + ": " + d.Reason
}

// Skipped returns the note recording that input was not read at all.
func (ds *Dataset) Skipped(input string) (Degraded, bool) {
	for _, d := range ds.Degraded {
		if d.Input == input && d.Column == "" {
			return d, true
		}
	}
	return Degraded{}, false
}

// Load reads every configured input. A missing or unreadable required file
// is an error. A missing optional file is recorded in Dataset.Missing and
// an unreadable one in Dataset.Degraded; the run continues without it.
func Load(p Paths) (*Dataset, error) {
	if p.Pages == "" || p.Edges == "" {
		return nil, fmt.Errorf("ingest: pages and edges inputs are required: %w", ErrMalformedInput)
	}

	ds := &Dataset{}
	var err error
	if ds.Pages, err = readRequired(p.Pages, ReadPages); err != nil {
		return nil, err
	}
	if ds.Edges, err = readRequired(p.Edges, ReadEdges); err != nil {
		return nil, err
	}

	optional := []struct {
		name string
		path string
		read func(io.Reader) (*table, error)
	}{
		{"traffic", p.Traffic, func(r io.Reader) (t *table, err error) {
			ds.Traffic, t, err = readTraffic(r)
			return
		}},
		{"logs", p.Logs, func(r io.Reader) (t *table, err error) {
			ds.LogEvents, t, err = readLogEvents(r)
			return
		}},
		{"backlinks", p.Backlinks, func(r io.Reader) (t *table, err error) {
			ds.Backlinks, t, err = readBacklinks(r)
			return
		}},
		{"categories", p.Categories, func(r io.Reader) (t *table, err error) {
			ds.Categories, t, err = readCategories(r)
			return
		}},
		{"pagespeed", p.PageSpeed, func(r io.Reader) (t *table, err error) {
			ds.PageSpeed, t, err = readPageSpeed(r)
			return
		}},
	}
	for _, o := range optional {
		if o.path == "" {
			continue
		}
		var t *table
		found, err := readFile(o.path, func(r io.Reader) (err error) {
			t, err = o.read(r)
			return
		})
		switch {
		case err != nil:
			ds.Degraded = append(ds.Degraded, Degraded{Input: o.name, Reason: err.Error()})
		case !found:
			ds.Missing = append(ds.Missing, o.name)
		default:
			ds.Degraded = append(ds.Degraded, t.notes()...)
		}
	}
	return ds, nil
}

func readRequired[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	var out []T
	found, err := readFile(path, func(r io.Reader) error {
		var err error
		out, err = read(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("ingest: %s does not exist: %w", path, ErrMalformedInput)
	}
	return out, nil
}

// readFile opens path and hands it to read. found is false when the file
// does not exist.
func readFile(path string, read func(io.Reader) error) (found bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	if err := read(f); err != nil {
		return true, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}
