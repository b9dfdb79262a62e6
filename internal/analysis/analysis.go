// Package analysis runs one end-to-end authority analysis: it loads the
// inputs into a fusion session, builds the link graphs, scores authority,
// fuses signals, derives performance scores, clusters pages, tags
// opportunities and computes the summary tables.
//
// Stages run strictly in that order. The two authority passes are
// independent and run concurrently. Non-fatal conditions are collected as
// warnings rather than aborting the run.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/siterank/internal/aggregate"
	"github.com/papapumpkin/siterank/internal/fusion"
	"github.com/papapumpkin/siterank/internal/ingest"
	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/metrics"
	"github.com/papapumpkin/siterank/internal/opportunity"
	"github.com/papapumpkin/siterank/internal/scoring"
	"github.com/papapumpkin/siterank/internal/segment"
	"github.com/papapumpkin/siterank/internal/site"
	"github.com/papapumpkin/siterank/internal/telemetry"
)

// Sentinel errors that abort a run.
var (
	// ErrMalformedInput reports missing inputs or required columns.
	ErrMalformedInput error = ingest.ErrMalformedInput
	// ErrEmptyGraph reports that no internal page or link survived filtering.
	ErrEmptyGraph error = linkgraph.ErrEmptyGraph
)

// Graph variant labels used in warnings, logs and metrics.
const (
	GraphStandard = "standard"
	GraphWeighted = "weighted"
)

// Stage names reported in telemetry and metrics.
const (
	StageLoad      = "load"
	StageGraph     = "graph"
	StageAuthority = "authority"
	StageFusion    = "fusion"
	StageScoring   = "scoring"
	StageSegment   = "segment"
	StageClassify  = "classify"
	StageAggregate = "aggregate"
)

// Options configures a run.
type Options struct {
	SitePrefix  string
	PageRank    linkgraph.PageRankOptions
	Positions   linkgraph.PositionWeights
	Performance scoring.Weights
	Clustering  segment.Options
}

// DefaultOptions returns the standard settings for the given site prefix.
func DefaultOptions(sitePrefix string) Options {
	return Options{
		SitePrefix:  sitePrefix,
		PageRank:    linkgraph.DefaultPageRankOptions(),
		Positions:   linkgraph.DefaultPositionWeights(),
		Performance: scoring.DefaultWeights(),
		Clustering:  segment.DefaultOptions(),
	}
}

// Result is everything one run produces.
type Result struct {
	RunID string

	// Records holds one fused, scored and clustered row per page URL.
	Records []site.Record

	Graphs     *linkgraph.Graphs
	Standard   linkgraph.Ranking
	Weighted   linkgraph.Ranking
	Components [][]string
	Signals    fusion.SignalCounts

	Clusters      segment.Result
	Opportunities opportunity.Report

	Correlations    []aggregate.Correlation
	Matrix          aggregate.Matrix
	ByCategory      []aggregate.GroupStats
	ByLabel         []aggregate.GroupStats
	ByLocation      []aggregate.GroupStats
	TopTraffic      []site.Record
	FlopTraffic     []site.Record
	WeightedRanking []site.Record

	Warnings []Warning
	Duration time.Duration
}

// Pipeline runs analyses with a fixed configuration and set of sinks.
type Pipeline struct {
	opts    Options
	log     *zap.Logger
	events  *telemetry.Emitter
	metrics *metrics.Metrics
}

// New creates a Pipeline. A nil logger discards logs; nil telemetry and
// metrics sinks are no-ops.
func New(opts Options, log *zap.Logger, events *telemetry.Emitter, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{opts: opts, log: log, events: events, metrics: m}
}

// Run executes every stage over ds. The fusion session is opened and
// closed within the call.
func (p *Pipeline) Run(ctx context.Context, ds *ingest.Dataset) (*Result, error) {
	if ds == nil {
		return nil, fmt.Errorf("analysis: no dataset: %w", ErrMalformedInput)
	}

	start := time.Now()
	res := &Result{RunID: p.events.RunID()}
	p.emit(telemetry.Event{Kind: telemetry.KindRunStart, Data: map[string]any{
		"site_prefix": p.opts.SitePrefix,
		"pages":       len(ds.Pages),
		"edges":       len(ds.Edges),
	}})
	p.log.Info("analysis started",
		zap.String("site_prefix", p.opts.SitePrefix),
		zap.Int("pages", len(ds.Pages)),
		zap.Int("edges", len(ds.Edges)))

	if err := p.run(ctx, ds, res); err != nil {
		p.log.Error("analysis failed", zap.Error(err))
		p.emit(telemetry.Event{Kind: telemetry.KindRunFailed, Data: map[string]string{"error": err.Error()}})
		return nil, err
	}

	res.Duration = time.Since(start)
	p.metrics.SetPages(len(res.Records))
	for tag, n := range res.Opportunities.Counts() {
		p.metrics.SetFindings(string(tag), n)
	}
	p.emit(telemetry.Event{Kind: telemetry.KindRunDone, Data: map[string]any{
		"pages":       len(res.Records),
		"warnings":    len(res.Warnings),
		"duration_ms": res.Duration.Milliseconds(),
	}})
	p.log.Info("analysis finished",
		zap.Int("pages", len(res.Records)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, ds *ingest.Dataset, res *Result) error {
	sess, err := fusion.Open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := p.stage(StageLoad, func() error { return p.load(ctx, sess, ds, res) }); err != nil {
		return err
	}

	var linked map[string]bool
	if err := p.stage(StageGraph, func() error {
		urls, err := sess.PageURLs(ctx)
		if err != nil {
			return err
		}
		raw, err := sess.Edges(ctx)
		if err != nil {
			return err
		}
		g, err := linkgraph.Build(urls, raw, linkgraph.BuildOptions{
			SitePrefix: p.opts.SitePrefix,
			Weights:    p.opts.Positions,
		})
		if err != nil {
			return fmt.Errorf("analysis: %w", err)
		}
		res.Graphs = g
		res.Components = g.Standard.Components()
		p.metrics.ObserveGraph(GraphStandard, g.Standard.Len(), g.Standard.EdgeCount())
		p.metrics.ObserveGraph(GraphWeighted, g.Weighted.Len(), g.Weighted.EdgeCount())
		p.log.Debug("graphs built",
			zap.Int("nodes", g.Standard.Len()),
			zap.Int("arcs", g.Standard.EdgeCount()),
			zap.Int("self_loops", g.SelfLoops),
			zap.Int("external_edges", g.ExternalEdges),
			zap.Int("components", len(res.Components)))

		linked, err = sess.LinkedDestinations(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(StageAuthority, func() error { return p.authority(ctx, res) }); err != nil {
		return err
	}

	if err := p.stage(StageFusion, func() error {
		if err := sess.LoadScores(ctx, res.Standard.Scores, res.Weighted.Scores); err != nil {
			return err
		}
		res.Records, err = sess.Fuse(ctx)
		return err
	}); err != nil {
		return err
	}

	p.step(StageScoring, func() { scoring.Apply(res.Records, p.opts.Performance) })
	p.step(StageSegment, func() { res.Clusters = segment.Assign(res.Records, p.opts.Clustering) })
	p.step(StageClassify, func() { res.Opportunities = opportunity.Classify(res.Records, linked) })
	p.step(StageAggregate, func() {
		res.Correlations = aggregate.Correlations(res.Records)
		res.Matrix = aggregate.CorrelationMatrix(res.Records)
		res.ByCategory = aggregate.ByCategory(res.Records)
		res.ByLabel = aggregate.ByLabel(res.Records)
		res.ByLocation = aggregate.ByLocation(res.Records)
		res.TopTraffic = aggregate.TopTraffic(res.Records)
		res.FlopTraffic = aggregate.FlopTraffic(res.Records)
		res.WeightedRanking = aggregate.WeightedAuthorityRanking(res.Records)
	})
	return nil
}

// load fills the session and flags every optional signal that was skipped,
// contributed no rows or lacked one of its score columns.
func (p *Pipeline) load(ctx context.Context, sess *fusion.Session, ds *ingest.Dataset, res *Result) error {
	steps := []func() error{
		func() error { return sess.LoadPages(ctx, ds.Pages) },
		func() error { return sess.LoadEdges(ctx, ds.Edges) },
		func() error { return sess.LoadTraffic(ctx, ds.Traffic) },
		func() error { return sess.LoadLogEvents(ctx, ds.LogEvents) },
		func() error { return sess.LoadBacklinks(ctx, ds.Backlinks) },
		func() error { return sess.LoadCategories(ctx, ds.Categories) },
		func() error { return sess.LoadPageSpeed(ctx, ds.PageSpeed) },
	}
	for _, fn := range steps {
		if err := fn(); err != nil {
			return err
		}
	}

	sig, err := sess.Signals(ctx)
	if err != nil {
		return err
	}
	res.Signals = sig

	missing := make(map[string]bool, len(ds.Missing))
	for _, m := range ds.Missing {
		missing[m] = true
	}
	for _, s := range []struct {
		name string
		rows int
	}{
		{"traffic", sig.Traffic},
		{"logs", sig.LogEvents},
		{"backlinks", sig.Backlinks},
		{"categories", sig.Categories},
		{"pagespeed", sig.PageSpeed},
	} {
		if d, ok := ds.Skipped(s.name); ok {
			p.warn(res, Warning{
				Kind:   WarningDegradedSignal,
				Detail: fmt.Sprintf("%s: input skipped (%s); dependent scores default to 0", s.name, d.Reason),
			})
			continue
		}
		if s.rows == 0 {
			detail := s.name + ": no rows; dependent scores default to 0"
			if missing[s.name] {
				detail = s.name + ": input file not found; dependent scores default to 0"
			}
			p.warn(res, Warning{Kind: WarningDegradedSignal, Detail: detail})
			continue
		}
		for _, d := range ds.Degraded {
			if d.Input == s.name && d.Column != "" {
				p.warn(res, Warning{Kind: WarningDegradedSignal, Detail: d.String()})
			}
		}
	}
	return nil
}

// authority runs both PageRank passes concurrently.
func (p *Pipeline) authority(ctx context.Context, res *Result) error {
	g, gctx := errgroup.WithContext(ctx)
	rank := func(graph *linkgraph.Graph, dst *linkgraph.Ranking) func() error {
		return func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			*dst = graph.PageRank(p.opts.PageRank)
			return nil
		}
	}
	g.Go(rank(res.Graphs.Standard, &res.Standard))
	g.Go(rank(res.Graphs.Weighted, &res.Weighted))
	if err := g.Wait(); err != nil {
		return fmt.Errorf("analysis: authority: %w", err)
	}

	for _, r := range []struct {
		name string
		rank linkgraph.Ranking
	}{
		{GraphStandard, res.Standard},
		{GraphWeighted, res.Weighted},
	} {
		p.metrics.ObserveRanking(r.name, r.rank.Iterations, r.rank.Converged)
		if !r.rank.Converged {
			p.warn(res, Warning{
				Kind: WarningNonConvergence,
				Detail: fmt.Sprintf("%s authority did not converge after %d iterations (delta %.3g)",
					r.name, r.rank.Iterations, r.rank.Delta),
			})
		}
	}
	return nil
}

// stage times a stage that can fail. Errors are returned unchanged and
// the stage is not reported.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		return err
	}
	p.stageDone(name, time.Since(start))
	return nil
}

// step times a stage that cannot fail.
func (p *Pipeline) step(name string, fn func()) {
	start := time.Now()
	fn()
	p.stageDone(name, time.Since(start))
}

func (p *Pipeline) stageDone(name string, d time.Duration) {
	p.metrics.ObserveStage(name, d)
	p.emit(telemetry.Event{
		Kind:  telemetry.KindStageDone,
		Stage: name,
		Data:  map[string]int64{"duration_ms": d.Milliseconds()},
	})
	p.log.Debug("stage done", zap.String("stage", name), zap.Duration("duration", d))
}

func (p *Pipeline) warn(res *Result, w Warning) {
	res.Warnings = append(res.Warnings, w)
	p.metrics.IncWarnings(string(w.Kind))
	p.emit(telemetry.Event{Kind: telemetry.KindWarning, Data: w})
	p.log.Warn("analysis warning", zap.String("kind", string(w.Kind)), zap.String("detail", w.Detail))
}

// emit records a telemetry event. A failing telemetry sink never fails
// the run.
func (p *Pipeline) emit(evt telemetry.Event) {
	if err := p.events.Emit(evt); err != nil {
		p.log.Warn("telemetry write failed", zap.Error(err))
	}
}

// IsInputError reports whether err aborted the run because of its inputs
// rather than an internal failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrEmptyGraph)
}
