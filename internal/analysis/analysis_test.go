package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/papapumpkin/siterank/internal/ingest"
	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/metrics"
	"github.com/papapumpkin/siterank/internal/opportunity"
	"github.com/papapumpkin/siterank/internal/site"
	"github.com/papapumpkin/siterank/internal/telemetry"
)

const prefix = "https://www.example.com/"

// cycleDataset is three pages linked in a cycle (A→B body x2, B→C body,
// C→A footer) plus an unlinked deep page D. No external signals.
func cycleDataset(t *testing.T) *ingest.Dataset {
	t.Helper()
	return &ingest.Dataset{
		Pages: []site.Page{
			{URL: prefix + "a", CrawlDepth: 0, WordCount: 800},
			{URL: prefix + "b", CrawlDepth: 1, WordCount: 400},
			{URL: prefix + "c", CrawlDepth: 2, WordCount: 300},
			{URL: prefix + "d", CrawlDepth: 5, WordCount: 100},
		},
		Edges: []linkgraph.RawEdge{
			{Source: prefix + "a", Destination: prefix + "b", Position: "body", Count: 2},
			{Source: prefix + "b", Destination: prefix + "c", Position: "body", Count: 1},
			{Source: prefix + "c", Destination: prefix + "a", Position: "footer", Count: 1},
		},
	}
}

func byURL(t *testing.T, records []site.Record) map[string]site.Record {
	t.Helper()
	out := make(map[string]site.Record, len(records))
	for _, r := range records {
		out[r.URL] = r
	}
	return out
}

func hasFinding(t *testing.T, rep opportunity.Report, tag opportunity.Tag, url string) (opportunity.Finding, bool) {
	t.Helper()
	for _, f := range rep.ByTag(tag) {
		if f.Record.URL == url {
			return f, true
		}
	}
	return opportunity.Finding{}, false
}

func TestRunCycleScenario(t *testing.T) {
	t.Parallel()

	p := New(DefaultOptions(prefix), nil, nil, nil)
	res, err := p.Run(context.Background(), cycleDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Records) != 4 {
		t.Fatalf("records = %d, want 4", len(res.Records))
	}
	recs := byURL(t, res.Records)
	a, b, c, d := recs[prefix+"a"], recs[prefix+"b"], recs[prefix+"c"], recs[prefix+"d"]

	for _, pair := range [][2]site.Record{{a, b}, {b, c}, {a, c}} {
		if math.Abs(pair[0].Authority-pair[1].Authority) > 1e-4 {
			t.Errorf("authority %s=%v vs %s=%v, want equal", pair[0].URL, pair[0].Authority, pair[1].URL, pair[1].Authority)
		}
		if math.Abs(pair[0].WeightedAuthority-pair[1].WeightedAuthority) > 1e-4 {
			t.Errorf("weighted %s=%v vs %s=%v, want equal", pair[0].URL, pair[0].WeightedAuthority, pair[1].URL, pair[1].WeightedAuthority)
		}
	}
	if d.Authority <= 0 || d.Authority >= a.Authority {
		t.Errorf("isolated authority = %v, want in (0, %v)", d.Authority, a.Authority)
	}

	var sum, wsum float64
	for _, r := range res.Records {
		sum += r.Authority
		wsum += r.WeightedAuthority
		if r.Cluster < 0 || r.Cluster >= 4 {
			t.Errorf("%s cluster = %d", r.URL, r.Cluster)
		}
	}
	if math.Abs(sum-1) > 1e-6 || math.Abs(wsum-1) > 1e-6 {
		t.Errorf("authority sums = %v, %v; want 1", sum, wsum)
	}

	if _, ok := hasFinding(t, res.Opportunities, opportunity.TagOrphan, prefix+"d"); !ok {
		t.Error("d not tagged orphan")
	}
	if _, ok := hasFinding(t, res.Opportunities, opportunity.TagOpportunity, prefix+"d"); ok {
		t.Error("d tagged opportunity")
	}
	deep, ok := hasFinding(t, res.Opportunities, opportunity.TagDeepPage, prefix+"d")
	if !ok {
		t.Fatal("d not tagged deep")
	}
	if deep.Priority != opportunity.PriorityLow {
		t.Errorf("d deep priority = %s, want Low", deep.Priority)
	}
	if n := len(res.Opportunities.ByTag(opportunity.TagOrphan)); n != 1 {
		t.Errorf("orphans = %d, want 1", n)
	}

	if !res.Standard.Converged || !res.Weighted.Converged {
		t.Errorf("converged = %v, %v", res.Standard.Converged, res.Weighted.Converged)
	}
	if len(res.Components) != 2 {
		t.Errorf("components = %v, want cycle and isolated page", res.Components)
	}
	if len(res.WeightedRanking) != 4 || len(res.TopTraffic) != 4 {
		t.Errorf("rankings = %d weighted, %d top", len(res.WeightedRanking), len(res.TopTraffic))
	}
}

func TestRunWarnsOnAbsentSignals(t *testing.T) {
	t.Parallel()

	ds := cycleDataset(t)
	ds.Traffic = []site.Traffic{{URL: prefix + "a", Clicks: 12, Impressions: 300, CTR: 0.04}}
	ds.Missing = []string{"backlinks"}

	res, err := New(DefaultOptions(prefix), nil, nil, nil).Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var details []string
	for _, w := range res.Warnings {
		if w.Kind != WarningDegradedSignal {
			t.Errorf("unexpected warning %+v", w)
			continue
		}
		details = append(details, w.Detail)
	}
	if len(details) != 4 {
		t.Fatalf("degraded warnings = %v, want 4 (all but traffic)", details)
	}
	joined := strings.Join(details, "\n")
	if strings.Contains(joined, "traffic") {
		t.Errorf("traffic flagged although loaded: %s", joined)
	}
	if !strings.Contains(joined, "backlinks: input file not found") {
		t.Errorf("missing backlinks file not reported: %s", joined)
	}
	if res.Signals.Traffic != 1 {
		t.Errorf("traffic rows = %d, want 1", res.Signals.Traffic)
	}
	if got := byURL(t, res.Records)[prefix+"a"].Clicks; got != 12 {
		t.Errorf("a clicks = %v, want 12", got)
	}
}

func TestRunLogsWarnings(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	res, err := New(DefaultOptions(prefix), zap.New(core), nil, nil).Run(context.Background(), cycleDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	warned := logs.FilterMessage("analysis warning").All()
	if len(warned) != len(res.Warnings) {
		t.Errorf("logged %d warnings, result has %d", len(warned), len(res.Warnings))
	}
	for _, e := range warned {
		if e.Level != zapcore.WarnLevel {
			t.Errorf("warning logged at %v", e.Level)
		}
		if _, ok := e.ContextMap()["kind"]; !ok {
			t.Errorf("warning entry missing kind field: %v", e.ContextMap())
		}
	}
	if n := logs.FilterMessage("stage done").Len(); n != 8 {
		t.Errorf("stage done entries = %d, want 8", n)
	}
	if logs.FilterMessage("analysis finished").Len() != 1 {
		t.Error("missing analysis finished entry")
	}
}

func TestRunNonConvergence(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions(prefix)
	opts.PageRank.MaxIterations = 1
	m := metrics.New()

	res, err := New(opts, nil, nil, m).Run(context.Background(), cycleDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var n int
	for _, w := range res.Warnings {
		if w.Kind == WarningNonConvergence {
			n++
		}
	}
	if n != 2 {
		t.Errorf("non-convergence warnings = %d, want 2", n)
	}
	if got := testutil.ToFloat64(m.WarningsTotal.WithLabelValues(string(WarningNonConvergence))); got != 2 {
		t.Errorf("non_convergence counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Converged.WithLabelValues(GraphStandard)); got != 0 {
		t.Errorf("converged gauge = %v, want 0", got)
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	external := cycleDataset(t)
	for i := range external.Edges {
		external.Edges[i].Destination = "https://elsewhere.org/"
	}

	tests := []struct {
		name string
		ds   *ingest.Dataset
		want error
	}{
		{name: "nil dataset", ds: nil, want: ErrMalformedInput},
		{name: "no pages", ds: &ingest.Dataset{}, want: ErrEmptyGraph},
		{name: "only external links", ds: external, want: ErrEmptyGraph},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(DefaultOptions(prefix), nil, nil, nil).Run(context.Background(), tt.ds)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !IsInputError(err) {
				t.Errorf("IsInputError(%v) = false", err)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(DefaultOptions(prefix), nil, nil, nil).Run(ctx, cycleDataset(t))
	if err == nil {
		t.Fatal("Run with cancelled context returned nil error")
	}
	if IsInputError(err) {
		t.Errorf("cancellation reported as input error: %v", err)
	}
}

func TestRunEmitsTelemetry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")
	em, err := telemetry.NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	res, err := New(DefaultOptions(prefix), nil, em, nil).Run(context.Background(), cycleDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if res.RunID == "" || res.RunID != em.RunID() {
		t.Errorf("result run id = %q, emitter = %q", res.RunID, em.RunID())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	kinds := make(map[string]int)
	stages := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var evt telemetry.Event
		if err := json.Unmarshal(sc.Bytes(), &evt); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		kinds[evt.Kind]++
		if evt.Kind == telemetry.KindStageDone {
			stages[evt.Stage] = true
		}
	}

	if kinds[telemetry.KindRunStart] != 1 || kinds[telemetry.KindRunDone] != 1 {
		t.Errorf("run events = %v", kinds)
	}
	if kinds[telemetry.KindWarning] != 5 {
		t.Errorf("warning events = %d, want 5 degraded signals", kinds[telemetry.KindWarning])
	}
	for _, s := range []string{StageLoad, StageGraph, StageAuthority, StageFusion, StageScoring, StageSegment, StageClassify, StageAggregate} {
		if !stages[s] {
			t.Errorf("no stage_done event for %s", s)
		}
	}
}
