package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/siterank/internal/config"
	"github.com/papapumpkin/siterank/internal/ingest"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration, weight profile and input files without analyzing",
	RunE:  runValidate,
}

func init() {
	addInputFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ok := true

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ config: %v\n", err)
		ok = false
	} else {
		fmt.Fprintf(os.Stderr, "✓ config valid for %s\n", cfg.SitePrefix)
	}

	if _, err := config.LoadProfile(cfg.WeightsProfile); err != nil {
		fmt.Fprintf(os.Stderr, "✗ weights: %v\n", err)
		ok = false
	} else if cfg.WeightsProfile != "" {
		fmt.Fprintf(os.Stderr, "✓ weights profile %s\n", cfg.WeightsProfile)
	}

	ds, err := ingest.Load(inputPaths(cfg.Inputs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ inputs: %v\n", err)
		ok = false
	} else {
		fmt.Fprintf(os.Stderr, "✓ %d pages, %d links\n", len(ds.Pages), len(ds.Edges))
		for _, name := range ds.Missing {
			fmt.Fprintf(os.Stderr, "! %s input not found, signal will be treated as absent\n", name)
		}
		for _, d := range ds.Degraded {
			fmt.Fprintf(os.Stderr, "! %s\n", d)
		}
	}

	if !ok {
		return &inputError{err: fmt.Errorf("validation failed")}
	}
	return nil
}
