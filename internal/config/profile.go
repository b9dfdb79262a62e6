package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/siterank/internal/linkgraph"
	"github.com/papapumpkin/siterank/internal/scoring"
)

// Profile is a TOML weight profile. Position entries override or extend
// the default link-position table; performance weights replace the
// default blend field by field.
//
//	fallback = 0.2
//
//	[positions]
//	content = 1.0
//	breadcrumb = 0.5
//
//	[performance]
//	authority = 0.2
type Profile struct {
	Fallback    float64            `toml:"fallback"`
	Positions   map[string]float64 `toml:"positions"`
	Performance scoring.Weights    `toml:"performance"`
}

// DefaultProfile returns the built-in weights as a profile.
func DefaultProfile() Profile {
	pw := linkgraph.DefaultPositionWeights()
	positions := make(map[string]float64)
	for _, l := range pw.Labels() {
		positions[l] = pw.Weight(l)
	}
	return Profile{
		Fallback:    pw.Fallback(),
		Positions:   positions,
		Performance: scoring.DefaultWeights(),
	}
}

// ParseProfile decodes a TOML profile on top of the defaults, so a
// profile only needs to name the weights it changes.
func ParseProfile(data []byte) (Profile, error) {
	var overlay struct {
		Fallback    *float64           `toml:"fallback"`
		Positions   map[string]float64 `toml:"positions"`
		Performance map[string]float64 `toml:"performance"`
	}
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return Profile{}, fmt.Errorf("config: parsing weight profile: %w", err)
	}

	p := DefaultProfile()
	if overlay.Fallback != nil {
		p.Fallback = *overlay.Fallback
	}
	for label, w := range overlay.Positions {
		p.Positions[label] = w
	}
	for key, w := range overlay.Performance {
		if err := setPerformance(&p.Performance, key, w); err != nil {
			return Profile{}, err
		}
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfile reads and parses the profile at path. An empty path yields
// the defaults.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config: reading weight profile: %w", err)
	}
	return ParseProfile(data)
}

// Validate rejects negative weights and an all-zero performance blend.
func (p Profile) Validate() error {
	if p.Fallback < 0 {
		return fmt.Errorf("config: fallback weight must not be negative, got %v", p.Fallback)
	}
	for label, w := range p.Positions {
		if w < 0 {
			return fmt.Errorf("config: position %q has negative weight %v", label, w)
		}
	}
	if p.Performance.Sum() <= 0 {
		return fmt.Errorf("config: performance weights sum to %v", p.Performance.Sum())
	}
	return nil
}

// PositionWeights converts the profile into the graph builder's table.
func (p Profile) PositionWeights() linkgraph.PositionWeights {
	return linkgraph.NewPositionWeights(p.Positions, p.Fallback)
}

// Encode renders the profile as TOML.
func (p Profile) Encode() ([]byte, error) {
	out, err := toml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("config: encoding weight profile: %w", err)
	}
	return out, nil
}

func setPerformance(w *scoring.Weights, key string, v float64) error {
	if v < 0 {
		return fmt.Errorf("config: performance weight %q must not be negative, got %v", key, v)
	}
	switch key {
	case "authority":
		w.Authority = v
	case "weighted_authority":
		w.WeightedAuthority = v
	case "clicks":
		w.Clicks = v
	case "ctr":
		w.CTR = v
	case "traffic_score":
		w.TrafficScore = v
	case "raw_seo_score":
		w.RawSEOScore = v
	case "visibility_score":
		w.VisibilityScore = v
	case "content_type_score":
		w.ContentTypeScore = v
	case "country_score":
		w.CountryScore = v
	default:
		return fmt.Errorf("config: unknown performance weight %q", key)
	}
	return nil
}
