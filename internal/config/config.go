package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/segment"
)

// InputConfig holds the CSV paths of one analysis run. Pages and Edges are
// required; an empty optional path means the signal is absent.
type InputConfig struct {
	Pages      string `mapstructure:"pages"`
	Edges      string `mapstructure:"edges"`
	Traffic    string `mapstructure:"traffic"`
	Logs       string `mapstructure:"logs"`
	Backlinks  string `mapstructure:"backlinks"`
	Categories string `mapstructure:"categories"`
	PageSpeed  string `mapstructure:"pagespeed"`
}

// Config holds all runtime configuration for an analysis run.
// Values are populated from .siterank.yaml, SITERANK_* env vars, and CLI flags.
type Config struct {
	SitePrefix     string                    `mapstructure:"site_prefix"`
	Inputs         InputConfig               `mapstructure:"inputs"`
	OutputDir      string                    `mapstructure:"output_dir"`
	WeightsProfile string                    `mapstructure:"weights_profile"`
	TelemetryPath  string                    `mapstructure:"telemetry_path"`
	MetricsPath    string                    `mapstructure:"metrics_path"`
	Verbose        bool                      `mapstructure:"verbose"`
	PageRank       linkgraph.PageRankOptions `mapstructure:"pagerank"`
	Clustering     segment.Options           `mapstructure:"clustering"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	pr := linkgraph.DefaultPageRankOptions()
	km := segment.DefaultOptions()

	viper.SetDefault("site_prefix", "")
	viper.SetDefault("inputs.pages", "data/pages.csv")
	viper.SetDefault("inputs.edges", "data/edges.csv")
	viper.SetDefault("inputs.traffic", "")
	viper.SetDefault("inputs.logs", "")
	viper.SetDefault("inputs.backlinks", "")
	viper.SetDefault("inputs.categories", "")
	viper.SetDefault("inputs.pagespeed", "")
	viper.SetDefault("output_dir", "reports")
	viper.SetDefault("weights_profile", "")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("metrics_path", "")
	viper.SetDefault("verbose", false)
	viper.SetDefault("pagerank.damping", pr.Damping)
	viper.SetDefault("pagerank.tolerance", pr.Tolerance)
	viper.SetDefault("pagerank.max_iterations", pr.MaxIterations)
	viper.SetDefault("clustering.k", km.K)
	viper.SetDefault("clustering.seed", km.Seed)
	viper.SetDefault("clustering.restarts", km.Restarts)
	viper.SetDefault("clustering.max_iterations", km.MaxIterations)
	viper.SetDefault("clustering.tolerance", km.Tolerance)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that would make a run meaningless.
func (c Config) Validate() error {
	switch {
	case c.SitePrefix == "":
		return errors.New("config: site_prefix is required")
	case c.Inputs.Pages == "":
		return errors.New("config: inputs.pages is required")
	case c.Inputs.Edges == "":
		return errors.New("config: inputs.edges is required")
	case c.PageRank.Damping <= 0 || c.PageRank.Damping >= 1:
		return fmt.Errorf("config: pagerank.damping must be in (0, 1), got %v", c.PageRank.Damping)
	case c.PageRank.Tolerance <= 0:
		return fmt.Errorf("config: pagerank.tolerance must be positive, got %v", c.PageRank.Tolerance)
	case c.PageRank.MaxIterations < 1:
		return fmt.Errorf("config: pagerank.max_iterations must be at least 1, got %d", c.PageRank.MaxIterations)
	case c.Clustering.K < 1:
		return fmt.Errorf("config: clustering.k must be at least 1, got %d", c.Clustering.K)
	case c.Clustering.Restarts < 1:
		return fmt.Errorf("config: clustering.restarts must be at least 1, got %d", c.Clustering.Restarts)
	}
	return nil
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}
