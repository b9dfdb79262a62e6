package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/siterank/internal/analysis"
	"github.com/papapumpkin/siterank/internal/config"
	"github.com/papapumpkin/siterank/internal/ingest"
)

const (
	exitFailure    = 1
	exitInputError = 2
)

// addInputFlags registers the flags shared by commands that read a dataset.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("site", "", "site URL prefix identifying internal pages")
	cmd.Flags().String("pages", "", "crawl export of pages (CSV)")
	cmd.Flags().String("edges", "", "crawl export of links (CSV)")
	cmd.Flags().String("traffic", "", "search traffic export (CSV, optional)")
	cmd.Flags().String("logs", "", "server log hits (CSV, optional)")
	cmd.Flags().String("backlinks", "", "external backlinks (semicolon CSV, optional)")
	cmd.Flags().String("categories", "", "page categories (CSV, optional)")
	cmd.Flags().String("pagespeed", "", "page speed scores (CSV, optional)")
	cmd.Flags().String("weights", "", "TOML weight profile")
}

// loadConfig loads configuration and applies the flags that were set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cmd, &cfg)
	return cfg, nil
}

// applyFlagOverrides copies explicitly set CLI flags into cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]*string{
		"site":       &cfg.SitePrefix,
		"pages":      &cfg.Inputs.Pages,
		"edges":      &cfg.Inputs.Edges,
		"traffic":    &cfg.Inputs.Traffic,
		"logs":       &cfg.Inputs.Logs,
		"backlinks":  &cfg.Inputs.Backlinks,
		"categories": &cfg.Inputs.Categories,
		"pagespeed":  &cfg.Inputs.PageSpeed,
		"weights":    &cfg.WeightsProfile,
		"output":     &cfg.OutputDir,
		"telemetry":  &cfg.TelemetryPath,
		"metrics":    &cfg.MetricsPath,
	}
	for name, dst := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Verbose = true
	}
}

// inputPaths maps configured inputs onto ingest paths.
func inputPaths(in config.InputConfig) ingest.Paths {
	return ingest.Paths{
		Pages:      in.Pages,
		Edges:      in.Edges,
		Traffic:    in.Traffic,
		Logs:       in.Logs,
		Backlinks:  in.Backlinks,
		Categories: in.Categories,
		PageSpeed:  in.PageSpeed,
	}
}

// pipelineOptions builds analysis options from the config and weight profile.
func pipelineOptions(cfg config.Config, profile config.Profile) analysis.Options {
	opts := analysis.DefaultOptions(cfg.SitePrefix)
	opts.PageRank = cfg.PageRank
	opts.Clustering = cfg.Clustering
	opts.Positions = profile.PositionWeights()
	opts.Performance = profile.Performance
	return opts
}

// exitCode separates bad input from other failures.
func exitCode(err error) int {
	var ie *inputError
	if errors.As(err, &ie) || analysis.IsInputError(err) {
		return exitInputError
	}
	return exitFailure
}

// inputError marks configuration problems the user must fix.
type inputError struct {
	err error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }
