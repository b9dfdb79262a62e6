package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/siterank/internal/analysis"
	"github.com/papapumpkin/siterank/internal/config"
	"github.com/papapumpkin/siterank/internal/export"
	"github.com/papapumpkin/siterank/internal/ingest"
	"github.com/papapumpkin/siterank/internal/metrics"
	"github.com/papapumpkin/siterank/internal/telemetry"
	"github.com/papapumpkin/siterank/internal/ui"
	"github.com/papapumpkin/siterank/internal/watch"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rank pages by internal authority and write the report tables",
	Long: `Reads the crawl exports and optional signal files, computes standard and
position-weighted PageRank over the internal link graph, scores and clusters
every page, classifies findings, and writes CSV tables plus summary.json.

With --watch, the analysis re-runs whenever one of the input files changes.`,
	RunE: runAnalyze,
}

func init() {
	addInputFlags(analyzeCmd)
	analyzeCmd.Flags().StringP("output", "o", "", "directory for the report tables")
	analyzeCmd.Flags().String("telemetry", "", "append JSONL run events to this file")
	analyzeCmd.Flags().String("metrics", "", "write Prometheus textfile metrics to this path")
	analyzeCmd.Flags().Bool("watch", false, "re-run when input files change")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	printer := ui.New()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		printer.Error(err.Error())
		return &inputError{err: err}
	}
	profile, err := config.LoadProfile(cfg.WeightsProfile)
	if err != nil {
		printer.Error(err.Error())
		return &inputError{err: err}
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &analyzer{
		cfg:     cfg,
		opts:    pipelineOptions(cfg, profile),
		log:     logger,
		printer: printer,
	}

	printer.Banner(cfg.SitePrefix)
	runErr := r.run(ctx)

	if w, _ := cmd.Flags().GetBool("watch"); w {
		return r.watch(ctx)
	}
	return runErr
}

// analyzer performs one analysis per call to run. Each run gets its own
// telemetry run id and metrics registry.
type analyzer struct {
	cfg     config.Config
	opts    analysis.Options
	log     *zap.Logger
	printer *ui.Printer
}

func (a *analyzer) run(ctx context.Context) error {
	ds, err := ingest.Load(inputPaths(a.cfg.Inputs))
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}

	var events *telemetry.Emitter
	if a.cfg.TelemetryPath != "" {
		if events, err = telemetry.NewEmitter(a.cfg.TelemetryPath); err != nil {
			return err
		}
		defer events.Close()
	}

	m := metrics.New()
	res, err := analysis.New(a.opts, a.log, events, m).Run(ctx, ds)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	for _, w := range res.Warnings {
		a.printer.Warning(w)
	}

	paths, err := export.Write(a.cfg.OutputDir, res)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	if a.cfg.MetricsPath != "" {
		if err := m.WriteTextfile(a.cfg.MetricsPath); err != nil {
			a.log.Warn("metrics write failed", zap.Error(err))
		}
	}

	a.printer.Written(a.cfg.OutputDir, paths)
	a.printer.Summary(res)
	return nil
}

func (a *analyzer) watch(ctx context.Context) error {
	in := a.cfg.Inputs
	w, err := watch.New(in.Pages, in.Edges, in.Traffic, in.Logs, in.Backlinks, in.Categories, in.PageSpeed)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	a.printer.Info(fmt.Sprintf("watching %d input files (ctrl-c to stop)", len(w.Files)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-w.Changes:
			if !ok {
				return nil
			}
			a.printer.Info(fmt.Sprintf("%s %s, re-running", c.File, c.Kind))
			if err := a.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Info("re-run failed", zap.String("trigger", c.File), zap.Error(err))
			}
		}
	}
}

// newLogger builds the run logger. Verbose runs get the human-readable
// development encoder at debug level.
func newLogger(verbose bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
