package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/papapumpkin/siterank/internal/aggregate"
	"github.com/papapumpkin/siterank/internal/analysis"
	"github.com/papapumpkin/siterank/internal/ingest"
	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/opportunity"
	"github.com/papapumpkin/siterank/internal/site"
)

const prefix = "https://www.example.com/"

func runFixture(t *testing.T) *analysis.Result {
	t.Helper()
	ds := &ingest.Dataset{
		Pages: []site.Page{
			{URL: prefix + "a", CrawlDepth: 0, WordCount: 800},
			{URL: prefix + "b", CrawlDepth: 1, WordCount: 400},
			{URL: prefix + "c", CrawlDepth: 4, WordCount: 300},
		},
		Edges: []linkgraph.RawEdge{
			{Source: prefix + "a", Destination: prefix + "b", Position: "body", Count: 1},
			{Source: prefix + "b", Destination: prefix + "a", Position: "menu", Count: 1},
		},
		Categories: []site.Category{
			{URL: prefix + "a", Category: "home", Location: "Paris"},
			{URL: prefix + "b", Category: "blog"},
		},
	}
	res, err := analysis.New(analysis.DefaultOptions(prefix), nil, nil, nil).Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %q not in %v", name, header)
	return -1
}

func TestWriteProducesEveryTable(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "reports")
	written, err := Write(dir, runFixture(t))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := []string{
		PagesFile, CorrelationsFile, CorrelationMatrixFile,
		StatsByCategoryFile, StatsByLabelFile, StatsByLocationFile,
		TopTrafficFile, FlopTrafficFile, WeightedAuthorityFile, SummaryFile,
	}
	for _, tag := range opportunity.Tags() {
		want = append(want, FindingsFile(tag))
	}
	if len(written) != len(want) {
		t.Errorf("written %d files, want %d", len(written), len(want))
	}
	for _, name := range want {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestPagesTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Write(dir, runFixture(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, PagesFile))
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	header := rows[0]
	urlCol := column(t, header, "url")
	authCol := column(t, header, "authority")
	clusterCol := column(t, header, "cluster")
	psCol := column(t, header, "pagespeed")

	if rows[1][urlCol] != prefix+"a" {
		t.Errorf("first url = %q", rows[1][urlCol])
	}
	for _, r := range rows[1:] {
		if len(r) != len(header) {
			t.Errorf("row %v has %d fields, header %d", r[urlCol], len(r), len(header))
		}
		if r[authCol] == "" || r[clusterCol] == "" {
			t.Errorf("row %v missing authority or cluster", r[urlCol])
		}
		if r[psCol] != "" {
			t.Errorf("row %v pagespeed = %q, want empty without samples", r[urlCol], r[psCol])
		}
	}
}

func TestFindingTablesCarryPriority(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Write(dir, runFixture(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deep := readCSV(t, filepath.Join(dir, FindingsFile(opportunity.TagDeepPage)))
	if len(deep) != 2 {
		t.Fatalf("deep rows = %d, want header + 1", len(deep))
	}
	pri := column(t, deep[0], "priority")
	if pri != len(deep[0])-1 {
		t.Errorf("priority column at %d, want last", pri)
	}
	if deep[1][pri] == "" {
		t.Error("deep page has no priority")
	}

	orphans := readCSV(t, filepath.Join(dir, FindingsFile(opportunity.TagOrphan)))
	for _, h := range orphans[0] {
		if h == "priority" {
			t.Error("orphan table has a priority column")
		}
	}
	if len(orphans) != 2 || orphans[1][0] != prefix+"c" {
		t.Errorf("orphans = %v, want only c", orphans[1:])
	}
}

func TestGroupAndMatrixTables(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Write(dir, runFixture(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cats := readCSV(t, filepath.Join(dir, StatsByCategoryFile))
	if len(cats) != 3 || cats[1][0] != "blog" || cats[2][0] != "home" {
		t.Errorf("category rows = %v", cats)
	}
	locs := readCSV(t, filepath.Join(dir, StatsByLocationFile))
	if len(locs) != 3 || locs[1][0] != "Paris" || locs[2][0] != aggregate.UnknownLocation {
		t.Errorf("location rows = %v", locs)
	}
	labels := readCSV(t, filepath.Join(dir, StatsByLabelFile))
	if len(labels) != 1 {
		t.Errorf("label rows = %d, want header only", len(labels))
	}

	matrix := readCSV(t, filepath.Join(dir, CorrelationMatrixFile))
	if len(matrix) != 8 || len(matrix[0]) != 8 {
		t.Errorf("matrix = %dx%d, want 8x8 including labels", len(matrix), len(matrix[0]))
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	res := runFixture(t)
	dir := t.TempDir()
	if _, err := Write(dir, res); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if s.Pages != 3 {
		t.Errorf("pages = %d, want 3", s.Pages)
	}
	if s.Graph.Nodes != 3 || s.Graph.Arcs != 2 || s.Graph.Isolated != 1 || s.Graph.Components != 2 {
		t.Errorf("graph = %+v", s.Graph)
	}
	if !s.Authority[analysis.GraphStandard].Converged {
		t.Errorf("authority = %+v", s.Authority)
	}
	if s.Findings[opportunity.TagOrphan] != 1 {
		t.Errorf("findings = %v", s.Findings)
	}
	if len(s.TopPages) != 3 {
		t.Fatalf("top pages = %d, want 3", len(s.TopPages))
	}
	for i := 1; i < len(s.TopPages); i++ {
		if s.TopPages[i].PerformanceScore > s.TopPages[i-1].PerformanceScore {
			t.Errorf("top pages not sorted: %+v", s.TopPages)
		}
	}
	total := 0
	for _, n := range s.Clusters.Sizes {
		total += n
	}
	if total != 3 {
		t.Errorf("cluster sizes %v sum to %d, want 3", s.Clusters.Sizes, total)
	}
	if len(s.Warnings) == 0 {
		t.Error("summary has no warnings; traffic, logs, backlinks and pagespeed are absent")
	}
}

func TestNumFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{0.25, "0.25"},
		{1e-7, "1e-07"},
		{math.NaN(), ""},
	}
	for _, tt := range tests {
		if got := num(tt.in); got != tt.want {
			t.Errorf("num(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
